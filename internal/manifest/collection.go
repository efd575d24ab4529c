package manifest

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Encoding is the surface form of a labels or environment field.
type Encoding int

const (
	// ListEncoding is a sequence of "key=value" strings.
	ListEncoding Encoding = iota
	// MapEncoding is a mapping of key to value.
	MapEncoding
)

// Collection is a labels or environment field in either encoding.
// Collections are values: merges return a new Collection and never modify
// the receiver's storage.
type Collection struct {
	enc   Encoding
	list  []string
	items map[string]any
}

// Entry is one key/value pair to merge into a Collection.
type Entry struct {
	Key   string
	Value any
}

// CollectionOf reads a field value. A missing field (nil) becomes an empty
// collection in encoding def.
func CollectionOf(v any, def Encoding) (Collection, error) {
	switch t := v.(type) {
	case nil:
		return Collection{enc: def, items: map[string]any{}}, nil
	case []any:
		list := make([]string, 0, len(t))
		for _, item := range t {
			list = append(list, fmt.Sprint(item))
		}
		return Collection{enc: ListEncoding, list: list}, nil
	case []string:
		return Collection{enc: ListEncoding, list: append([]string(nil), t...)}, nil
	case map[string]any:
		items := make(map[string]any, len(t))
		for k, val := range t {
			items[k] = val
		}
		return Collection{enc: MapEncoding, items: items}, nil
	default:
		return Collection{}, fmt.Errorf("expected a list or a mapping, got %T", v)
	}
}

// Encoding returns the surface form of c.
func (c Collection) Encoding() Encoding { return c.enc }

// Value returns c in the form it is stored in the manifest.
func (c Collection) Value() any {
	if c.enc == MapEncoding {
		out := make(map[string]any, len(c.items))
		for k, v := range c.items {
			out[k] = v
		}
		return out
	}
	out := make([]any, len(c.list))
	for i, s := range c.list {
		out[i] = s
	}
	return out
}

// Lookup returns the value stored under key.
func (c Collection) Lookup(key string) (string, bool) {
	if c.enc == MapEncoding {
		v, ok := c.items[key]
		if !ok {
			return "", false
		}
		if v == nil {
			return "", true
		}
		return fmt.Sprint(v), true
	}
	for _, s := range c.list {
		if k, v, _ := strings.Cut(s, "="); k == key {
			return v, true
		}
	}
	return "", false
}

// Len returns the number of entries.
func (c Collection) Len() int {
	if c.enc == MapEncoding {
		return len(c.items)
	}
	return len(c.list)
}

// entries returns every key/value pair; list entries without '=' have an
// empty value.
func (c Collection) entries() []Entry {
	var out []Entry
	if c.enc == MapEncoding {
		for _, k := range sortedKeys(c.items) {
			out = append(out, Entry{Key: k, Value: c.items[k]})
		}
		return out
	}
	for _, s := range c.list {
		k, v, _ := strings.Cut(s, "=")
		out = append(out, Entry{Key: k, Value: v})
	}
	return out
}

func (c Collection) merge(additions []Entry, render func(Entry) string) Collection {
	if c.enc == MapEncoding {
		items := make(map[string]any, len(c.items)+len(additions))
		for k, v := range c.items {
			items[k] = v
		}
		for _, a := range additions {
			items[a.Key] = a.Value
		}
		return Collection{enc: MapEncoding, items: items}
	}

	list := append([]string(nil), c.list...)
	index := make(map[string]int, len(list))
	for i, s := range list {
		k, _, _ := strings.Cut(s, "=")
		index[k] = i
	}
	for _, a := range additions {
		line := render(a)
		// An entry with the same key is replaced where it stands, so merging
		// the same additions twice leaves the list unchanged.
		if i, ok := index[a.Key]; ok {
			list[i] = line
			continue
		}
		index[a.Key] = len(list)
		list = append(list, line)
	}
	return Collection{enc: ListEncoding, list: list}
}

// MergeLabels merges labels into existing. In list form string values are
// written as-is and any other value is JSON encoded.
func MergeLabels(existing Collection, labels ...Entry) Collection {
	return existing.merge(labels, func(e Entry) string {
		if s, ok := e.Value.(string); ok {
			return e.Key + "=" + s
		}
		raw, err := json.Marshal(e.Value)
		if err != nil {
			return e.Key + "=" + fmt.Sprint(e.Value)
		}
		return e.Key + "=" + string(raw)
	})
}

// MergeEnv merges "KEY=value" entries into existing. In map form an entry
// without "=" is skipped; in list form it is kept as written.
func MergeEnv(existing Collection, env ...string) Collection {
	entries := make([]Entry, 0, len(env))
	for _, e := range env {
		k, v, ok := strings.Cut(e, "=")
		if !ok {
			if existing.enc == MapEncoding {
				continue
			}
			entries = append(entries, Entry{Key: k, Value: nil})
			continue
		}
		entries = append(entries, Entry{Key: k, Value: v})
	}
	return existing.merge(entries, func(e Entry) string {
		if e.Value == nil {
			return e.Key
		}
		return e.Key + "=" + e.Value.(string)
	})
}
