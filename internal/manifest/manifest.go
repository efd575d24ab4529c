// Package manifest reads, rewrites and writes the compose manifests quay hands
// to the orchestrator.
//
// A Manifest is kept as a generic YAML tree: quay only edits networks,
// volumes, labels and environment, and every other key of the user's file
// must survive the round trip unchanged.
package manifest

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// ErrEmpty is returned when a manifest file has no content.
var ErrEmpty = errors.New("compose file is empty")

// Manifest is a parsed compose document.
type Manifest struct {
	root map[string]any
}

// New wraps an already decoded document. The map is normalized in place.
func New(root map[string]any) *Manifest {
	if root == nil {
		root = map[string]any{}
	}
	return &Manifest{root: normalize(root).(map[string]any)}
}

// Parse decodes a compose document. The source parameter is used only for
// error messages.
func Parse(data []byte, source string) (*Manifest, error) {
	var root map[string]any
	dec := yaml.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&root); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: %s", ErrEmpty, source)
		}
		return nil, fmt.Errorf("invalid YAML in compose file %s: %w", source, err)
	}
	if root == nil {
		return nil, fmt.Errorf("%w: %s", ErrEmpty, source)
	}
	return New(root), nil
}

// ReadFile reads and parses the compose file at path on fs.
func ReadFile(fs afero.Fs, path string) (*Manifest, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("could not read compose file: %w", err)
	}
	return Parse(data, path)
}

// Marshal encodes the manifest as YAML. Map keys are emitted in sorted order,
// so equal manifests always encode to identical bytes.
func (m *Manifest) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(m.root); err != nil {
		return nil, fmt.Errorf("encode compose file: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode compose file: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteFile writes the manifest to path on fs.
func (m *Manifest) WriteFile(fs afero.Fs, path string) error {
	data, err := m.Marshal()
	if err != nil {
		return err
	}
	if err := afero.WriteFile(fs, path, data, 0o644); err != nil {
		return fmt.Errorf("write compose file %s: %w", path, err)
	}
	return nil
}

// Clone returns a deep copy of m.
func (m *Manifest) Clone() *Manifest {
	return &Manifest{root: deepCopy(m.root).(map[string]any)}
}

// ServiceNames returns the declared service names in sorted order.
func (m *Manifest) ServiceNames() []string {
	return sortedKeys(m.section("services"))
}

// HasService reports whether name is declared under services.
func (m *Manifest) HasService(name string) bool {
	_, ok := m.section("services")[name]
	return ok
}

// Service returns the definition of service name, creating an empty mapping
// for a service declared without a body.
func (m *Manifest) Service(name string) (map[string]any, bool) {
	services := m.section("services")
	raw, ok := services[name]
	if !ok {
		return nil, false
	}
	svc, ok := raw.(map[string]any)
	if !ok {
		svc = map[string]any{}
		services[name] = svc
	}
	return svc, true
}

// RemoveService deletes service name if present.
func (m *Manifest) RemoveService(name string) {
	delete(m.section("services"), name)
}

// Volumes returns the top-level volume declarations, or nil.
func (m *Manifest) Volumes() map[string]any {
	return m.section("volumes")
}

// Networks returns the top-level network declarations, creating the section
// when absent.
func (m *Manifest) Networks() map[string]any {
	nets := m.section("networks")
	if nets == nil {
		nets = map[string]any{}
		m.root["networks"] = nets
	}
	return nets
}

func (m *Manifest) section(key string) map[string]any {
	sec, _ := m.root[key].(map[string]any)
	return sec
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// normalize converts map[any]any produced for non-string keys into
// map[string]any, recursively.
func normalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, val := range t {
			t[k] = normalize(val)
		}
		return t
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = normalize(val)
		}
		return out
	case []any:
		for i, val := range t {
			t[i] = normalize(val)
		}
		return t
	default:
		return v
	}
}

func deepCopy(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = deepCopy(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = deepCopy(val)
		}
		return out
	default:
		return v
	}
}
