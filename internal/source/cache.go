package source

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/afero"
)

// CommitCache remembers which remote commit each stack was last deployed
// from, so an unchanged remote is not downloaded again.
type CommitCache struct {
	Fs   afero.Fs
	Path string
}

type cacheEntry struct {
	Commit    string    `json:"commit"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (c *CommitCache) read() map[string]cacheEntry {
	entries := map[string]cacheEntry{}
	data, err := afero.ReadFile(c.Fs, c.Path)
	if err != nil {
		return entries
	}
	// A corrupt cache only costs a fresh download.
	_ = json.Unmarshal(data, &entries)
	return entries
}

// Get returns the cached commit of stack, or "".
func (c *CommitCache) Get(stack string) string {
	return c.read()[stack].Commit
}

// Matches reports whether the cached commit of stack is latest. The cache
// may hold the short SHA from an archive name, so a prefix match counts.
func (c *CommitCache) Matches(stack, latest string) bool {
	cached := c.Get(stack)
	return cached != "" && latest != "" && strings.HasPrefix(latest, cached)
}

// Put records commit for stack.
func (c *CommitCache) Put(stack, commit string) error {
	entries := c.read()
	entries[stack] = cacheEntry{Commit: commit, UpdatedAt: time.Now().UTC()}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	if err := afero.WriteFile(c.Fs, c.Path, data, 0o644); err != nil {
		return fmt.Errorf("write commit cache: %w", err)
	}
	return nil
}

// Forget drops stack from the cache.
func (c *CommitCache) Forget(stack string) error {
	entries := c.read()
	if _, ok := entries[stack]; !ok {
		return nil
	}
	delete(entries, stack)
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	if err := afero.WriteFile(c.Fs, c.Path, data, os.FileMode(0o644)); err != nil {
		return fmt.Errorf("write commit cache: %w", err)
	}
	return nil
}
