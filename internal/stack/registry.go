package stack

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

var (
	// ErrInvalidName is returned by Resolve for an empty stack name.
	ErrInvalidName = errors.New("invalid stack name")
	// ErrNotFound is returned by Resolve when no valid stack has the name.
	ErrNotFound = errors.New("stack not found")
	// ErrNoStacksDir is returned by Discover when the root does not exist.
	ErrNoStacksDir = errors.New("stacks directory not found")
)

// Entry is one discovered descriptor. Exactly one of Stack and Err is set.
type Entry struct {
	Path  string
	Stack *Stack
	Err   error
}

// Valid reports whether the descriptor parsed and validated.
func (e Entry) Valid() bool { return e.Err == nil && e.Stack != nil }

// Name returns the stack name, or "" for an invalid entry.
func (e Entry) Name() string {
	if !e.Valid() {
		return ""
	}
	return e.Stack.Name
}

// Error returns the load error text, or "" for a valid entry.
func (e Entry) Error() string {
	if e.Err == nil {
		return ""
	}
	return e.Err.Error()
}

// SourceDir is the directory holding the descriptor and the stack's local files.
func (e Entry) SourceDir() string { return filepath.Dir(e.Path) }

// Discover finds every descriptor under root. A descriptor that fails to load
// is returned as an invalid entry rather than aborting discovery. Entries are
// sorted by path; when two valid descriptors share a name, the later one is
// marked invalid.
func Discover(root string) ([]Entry, error) {
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrNoStacksDir, root)
	}

	var entries []Entry
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return fs.SkipDir
			}
			return nil
		}
		if d.Name() != FileName {
			return nil
		}
		s, err := Load(path)
		if err != nil {
			entries = append(entries, Entry{Path: path, Err: err})
			return nil
		}
		entries = append(entries, Entry{Path: path, Stack: s})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", root, err)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })

	seen := map[string]string{}
	for i := range entries {
		if !entries[i].Valid() {
			continue
		}
		name := entries[i].Stack.Name
		if first, dup := seen[name]; dup {
			entries[i].Err = fmt.Errorf("invalid stack config at %s:\n  - name: duplicate stack name %q (also defined in %s)", entries[i].Path, name, first)
			entries[i].Stack = nil
			continue
		}
		seen[name] = entries[i].Path
	}
	return entries, nil
}

// Resolve returns the valid entry named name.
func Resolve(root, name string) (Entry, error) {
	if name == "" {
		return Entry{}, ErrInvalidName
	}
	entries, err := Discover(root)
	if err != nil {
		return Entry{}, err
	}
	for _, e := range entries {
		if e.Valid() && e.Stack.Name == name {
			return e, nil
		}
	}
	return Entry{}, fmt.Errorf("%w: %q", ErrNotFound, name)
}
