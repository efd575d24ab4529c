package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mitchellh/go-homedir"
)

const (
	// DataDirName is the default data root, relative to the working directory.
	DataDirName = "quay-data"
	// StacksDirName is the default stacks root, relative to the working directory.
	StacksDirName = "stacks"
	// ManifestFileName is the materialized manifest written into each project directory.
	ManifestFileName = "docker-compose.quay.yml"
)

// Paths holds the resolved on-disk layout quay works against.
type Paths struct {
	// Data is ./quay-data unless overridden.
	Data string
	// Stacks is ./stacks unless overridden.
	Stacks string
}

// ResolvePaths expands ~ and makes both roots absolute. Empty values fall back
// to the defaults under the working directory.
func ResolvePaths(dataDir, stacksDir string) (Paths, error) {
	if dataDir == "" {
		dataDir = DataDirName
	}
	if stacksDir == "" {
		stacksDir = StacksDirName
	}
	data, err := absPath(dataDir)
	if err != nil {
		return Paths{}, err
	}
	stacks, err := absPath(stacksDir)
	if err != nil {
		return Paths{}, err
	}
	return Paths{Data: data, Stacks: stacks}, nil
}

func absPath(p string) (string, error) {
	expanded, err := homedir.Expand(p)
	if err != nil {
		return "", fmt.Errorf("expand path %s: %w", p, err)
	}
	return filepath.Abs(expanded)
}

// ProjectsDir returns the directory holding one project directory per stack.
func (p Paths) ProjectsDir() string {
	return filepath.Join(p.Data, "projects")
}

// VolumesDir returns the bind-mount root walked by the backup service.
func (p Paths) VolumesDir() string {
	return filepath.Join(p.Data, "volumes")
}

// ProjectDir returns the project directory of a stack.
func (p Paths) ProjectDir(stack string) string {
	return filepath.Join(p.ProjectsDir(), stack)
}

// StackVolumesDir returns the volumes directory of a stack.
func (p Paths) StackVolumesDir(stack string) string {
	return filepath.Join(p.VolumesDir(), stack)
}

// ManifestPath returns the persisted manifest of a stack.
func (p Paths) ManifestPath(stack string) string {
	return filepath.Join(p.ProjectDir(stack), ManifestFileName)
}

// SystemDir is where the bundled system stack is extracted before deploying.
func (p Paths) SystemDir() string {
	return filepath.Join(p.Data, "system")
}

// CacheFile returns the remote source commit cache.
func (p Paths) CacheFile() string {
	return filepath.Join(p.Data, "github_cache.json")
}

// EnsureDirs creates the data directories that do not yet exist.
func (p Paths) EnsureDirs() error {
	for _, dir := range []string{p.ProjectsDir(), p.VolumesDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}
