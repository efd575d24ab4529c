// Package system bundles the quay-system stack: the reverse proxy, the
// volume backup service and the optional management services.
package system

import (
	"embed"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/sarth-shah20/quay/internal/config"
	"github.com/sarth-shah20/quay/internal/manifest"
	"github.com/sarth-shah20/quay/internal/stack"
)

//go:embed all:assets
var assets embed.FS

const root = "assets"

// Descriptor returns the bundled system stack descriptor.
func Descriptor() (*stack.Stack, error) {
	data, err := assets.ReadFile(root + "/" + stack.FileName)
	if err != nil {
		return nil, err
	}
	return stack.LoadSystem(data, "system/"+stack.FileName)
}

// Configured returns the system descriptor with the public endpoints of
// disabled services removed.
func Configured(cfg *config.Config) (*stack.Stack, error) {
	s, err := Descriptor()
	if err != nil {
		return nil, err
	}
	public := s.Public[:0:0]
	for _, ep := range s.Public {
		if manifest.ServiceEnabled(ep.ServiceName(), cfg) {
			public = append(public, ep)
		}
	}
	s.Public = public
	return s, nil
}

// Extract writes the bundled stack files into dest, replacing any that
// already exist.
func Extract(afs afero.Fs, dest string) error {
	return fs.WalkDir(assets, root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dest, rel)
		if d.IsDir() {
			return afs.MkdirAll(target, 0o755)
		}
		data, err := assets.ReadFile(path)
		if err != nil {
			return err
		}
		if err := afero.WriteFile(afs, target, data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", target, err)
		}
		return nil
	})
}
