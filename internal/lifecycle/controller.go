// Package lifecycle deploys, starts and stops stacks and reports their
// status. Deploys build the new project tree beside the old one and swap it
// into place, so a failed deploy leaves the previous deployment intact.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gofrs/flock"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/sarth-shah20/quay/internal/config"
	"github.com/sarth-shah20/quay/internal/docker"
	"github.com/sarth-shah20/quay/internal/manifest"
	"github.com/sarth-shah20/quay/internal/source"
	"github.com/sarth-shah20/quay/internal/stack"
	"github.com/sarth-shah20/quay/internal/system"
)

var (
	// ErrNotDeployed is returned when a stack has no persisted manifest.
	ErrNotDeployed = errors.New("stack is not deployed, deploy it first")
	// ErrManifestNotFound is returned when the compose file named by a
	// descriptor is missing from the materialized tree.
	ErrManifestNotFound = errors.New("couldn't find compose file")
	// ErrLocked is returned when another deploy of the same stack holds the lock.
	ErrLocked = errors.New("another deploy of this stack is in progress")
)

// DeployOptions tune a deploy.
type DeployOptions struct {
	// Pull re-downloads remote sources and pulls images even when cached.
	Pull bool
	// SkipLint hands the manifest to compose without validating it first.
	SkipLint bool
}

// LogOptions select what Logs prints.
type LogOptions struct {
	Follow  bool
	Tail    int
	Service string
}

// Controller runs the stack lifecycle against one data directory.
type Controller struct {
	Paths        config.Paths
	Config       *config.Config
	Compose      docker.Compose
	Materializer *source.Materializer
	Transformer  *manifest.Transformer
	Cache        *source.CommitCache
	Fs           afero.Fs
	Logger       *zap.Logger
}

func (c *Controller) fs() afero.Fs {
	if c.Fs == nil {
		return afero.NewOsFs()
	}
	return c.Fs
}

func (c *Controller) logger() *zap.Logger {
	if c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}

// Deploy materializes s from sourceDir, writes its host-specific manifest and
// starts it.
func (c *Controller) Deploy(ctx context.Context, s *stack.Stack, sourceDir string, opts DeployOptions) error {
	if err := c.build(ctx, s, sourceDir, opts); err != nil {
		return err
	}
	return c.Start(ctx, s.Name, opts.Pull)
}

// DeploySystem deploys the bundled system stack. Public endpoints of
// disabled services are dropped before transforming.
func (c *Controller) DeploySystem(ctx context.Context, opts DeployOptions) error {
	s, err := system.Configured(c.Config)
	if err != nil {
		return err
	}
	dir := c.Paths.SystemDir()
	if err := c.fs().RemoveAll(dir); err != nil {
		return fmt.Errorf("clear %s: %w", dir, err)
	}
	if err := system.Extract(c.fs(), dir); err != nil {
		return fmt.Errorf("extract system stack: %w", err)
	}
	return c.Deploy(ctx, s, dir, opts)
}

// Render materializes and transforms s into a scratch directory without
// touching the deployed project, returning the manifest that a deploy would
// write. The scratch directory is removed before returning.
func (c *Controller) Render(ctx context.Context, s *stack.Stack, sourceDir string) (*manifest.Manifest, error) {
	scratch, err := afero.TempDir(c.fs(), "", "quay-render-")
	if err != nil {
		return nil, err
	}
	defer c.fs().RemoveAll(scratch)

	if _, err := c.Materializer.Materialize(ctx, s, sourceDir, scratch); err != nil {
		return nil, err
	}
	m, err := c.readManifest(s, scratch)
	if err != nil {
		return nil, err
	}
	t := c.transformer(s.Name)
	t.Fs = afero.NewMemMapFs()
	res, err := t.Transform(m, s, c.Config)
	if err != nil {
		return nil, err
	}
	return res.Manifest, nil
}

func (c *Controller) build(ctx context.Context, s *stack.Stack, sourceDir string, opts DeployOptions) error {
	if err := checkName(s.Name); err != nil {
		return err
	}
	fs := c.fs()
	unlock, err := c.lock(s.Name)
	if err != nil {
		return err
	}
	defer unlock()

	log := c.logger().With(zap.String("stack", s.Name))
	project := c.Paths.ProjectDir(s.Name)
	staging := filepath.Join(c.Paths.ProjectsDir(), "."+s.Name+".staging")
	if err := fs.RemoveAll(staging); err != nil {
		return fmt.Errorf("clear staging directory: %w", err)
	}

	commit, err := c.populate(ctx, s, sourceDir, staging, opts.Pull)
	if err != nil {
		fs.RemoveAll(staging)
		return err
	}

	m, err := c.readManifest(s, staging)
	if err != nil {
		fs.RemoveAll(staging)
		return err
	}
	res, err := c.transformer(s.Name).Transform(m, s, c.Config)
	if err != nil {
		fs.RemoveAll(staging)
		return fmt.Errorf("transform %s: %w", s.Name, err)
	}
	if !opts.SkipLint {
		if err := manifest.Lint(res.Manifest, s.Name, staging); err != nil {
			fs.RemoveAll(staging)
			return err
		}
	}
	if err := res.Manifest.WriteFile(fs, filepath.Join(staging, config.ManifestFileName)); err != nil {
		fs.RemoveAll(staging)
		return err
	}

	if err := c.swap(staging, project); err != nil {
		fs.RemoveAll(staging)
		return err
	}
	log.Debug("saved manifest", zap.String("path", c.Paths.ManifestPath(s.Name)))

	if commit != "" && c.Cache != nil {
		if err := c.Cache.Put(s.Name, commit); err != nil {
			log.Warn("could not update commit cache", zap.Error(err))
		}
	}
	return nil
}

// populate fills staging with the stack's files. A remote source whose
// commit matches the cache reuses the currently deployed tree. It returns the
// commit to record, or "" when nothing was downloaded.
func (c *Controller) populate(ctx context.Context, s *stack.Stack, sourceDir, staging string, pull bool) (string, error) {
	project := c.Paths.ProjectDir(s.Name)
	if s.Source.IsRemote() && !pull && c.Cache != nil && c.Cache.Get(s.Name) != "" {
		if ok, _ := afero.DirExists(c.fs(), project); ok {
			latest, err := c.Materializer.LatestCommit(ctx, s)
			switch {
			case err != nil:
				c.logger().Debug("could not check remote commit, downloading", zap.Error(err))
			case c.Cache.Matches(s.Name, latest):
				c.logger().Info("no remote changes, reusing cached source", zap.String("stack", s.Name))
				if err := source.CopyTree(c.fs(), project, staging); err != nil {
					return "", err
				}
				return "", c.Materializer.Overlay(sourceDir, staging)
			}
		}
	}
	return c.Materializer.Materialize(ctx, s, sourceDir, staging)
}

// transformer returns the configured transformer, made to reuse the auth
// hashes of the currently deployed manifest.
func (c *Controller) transformer(name string) *manifest.Transformer {
	t := *c.Transformer
	deployed, err := manifest.ReadFile(c.fs(), c.Paths.ManifestPath(name))
	if err != nil {
		return &t
	}
	base := t.Hasher
	if base == nil {
		base = manifest.BcryptHasher{}
	}
	t.Hasher = manifest.ReusingHasher{Hasher: base, Known: manifest.AuthHashes(deployed)}
	return &t
}

func (c *Controller) readManifest(s *stack.Stack, dir string) (*manifest.Manifest, error) {
	m, err := manifest.ReadFile(c.fs(), filepath.Join(dir, s.ComposeFilePath))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w at %s", ErrManifestNotFound, s.ComposeFilePath)
	}
	return m, err
}

// checkName rejects names that would escape or alias the per-stack
// directories, such as "" or "..".
func checkName(name string) error {
	if !stack.ValidName(name) {
		return fmt.Errorf("%w: %q", stack.ErrInvalidName, name)
	}
	return nil
}

// lock takes the per-stack advisory lock shared by deploy and reset.
func (c *Controller) lock(name string) (func(), error) {
	projects := c.Paths.ProjectsDir()
	if err := c.fs().MkdirAll(projects, 0o755); err != nil {
		return nil, fmt.Errorf("create %s: %w", projects, err)
	}
	l := flock.New(filepath.Join(projects, "."+name+".lock"))
	locked, err := l.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock stack %s: %w", name, err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: %s", ErrLocked, name)
	}
	return func() { l.Unlock() }, nil
}

// swap replaces project with staging. The previous tree is moved aside
// first and removed only after staging is in place.
func (c *Controller) swap(staging, project string) error {
	fs := c.fs()
	old := filepath.Join(filepath.Dir(project), "."+filepath.Base(project)+".old")
	if err := fs.RemoveAll(old); err != nil {
		return fmt.Errorf("clear %s: %w", old, err)
	}
	hadOld, err := afero.DirExists(fs, project)
	if err != nil {
		return err
	}
	if hadOld {
		if err := fs.Rename(project, old); err != nil {
			return fmt.Errorf("move previous deployment aside: %w", err)
		}
	}
	if err := fs.Rename(staging, project); err != nil {
		if hadOld {
			fs.Rename(old, project)
		}
		return fmt.Errorf("install project directory: %w", err)
	}
	if hadOld {
		if err := fs.RemoveAll(old); err != nil {
			c.logger().Warn("could not remove previous deployment", zap.String("path", old), zap.Error(err))
		}
	}
	return nil
}

func (c *Controller) deployed(name string) (docker.Invocation, bool, error) {
	if err := checkName(name); err != nil {
		return docker.Invocation{}, false, err
	}
	inv := docker.Invocation{File: c.Paths.ManifestPath(name), ProjectDir: c.Paths.ProjectDir(name)}
	ok, _ := afero.Exists(c.fs(), inv.File)
	return inv, ok, nil
}

// Start brings a deployed stack up, rebuilding images as needed.
func (c *Controller) Start(ctx context.Context, name string, pull bool) error {
	inv, ok, err := c.deployed(name)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%s: %w", name, ErrNotDeployed)
	}
	inv.Command = "up"
	inv.Args = []string{"-d", "--build"}
	if pull {
		inv.Args = append(inv.Args, "--pull", "always")
	}
	return c.Compose.Run(ctx, inv)
}

// Stop stops a deployed stack. With silent set, a stack that was never
// deployed is not an error.
func (c *Controller) Stop(ctx context.Context, name string, silent bool) error {
	inv, ok, err := c.deployed(name)
	if err != nil {
		return err
	}
	if !ok {
		if silent {
			return nil
		}
		return fmt.Errorf("%s: %w", name, ErrNotDeployed)
	}
	inv.Command = "stop"
	return c.Compose.Run(ctx, inv)
}

// Logs streams the logs of a deployed stack.
func (c *Controller) Logs(ctx context.Context, name string, opts LogOptions) error {
	inv, ok, err := c.deployed(name)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%s: %w", name, ErrNotDeployed)
	}
	inv.Command = "logs"
	if opts.Follow {
		inv.Args = append(inv.Args, "-f")
	}
	if opts.Tail > 0 {
		inv.Args = append(inv.Args, "--tail", strconv.Itoa(opts.Tail))
	}
	if opts.Service != "" {
		inv.Args = append(inv.Args, opts.Service)
	}
	return c.Compose.Run(ctx, inv)
}

// Reset takes a stack down and deletes its project and volume directories,
// so the next deploy starts from nothing.
func (c *Controller) Reset(ctx context.Context, name string) error {
	inv, ok, err := c.deployed(name)
	if err != nil {
		return err
	}
	unlock, err := c.lock(name)
	if err != nil {
		return err
	}
	defer unlock()

	if ok {
		inv.Command = "down"
		inv.Args = []string{"--remove-orphans"}
		if err := c.Compose.Run(ctx, inv); err != nil {
			return err
		}
	}
	fs := c.fs()
	for _, dir := range []string{c.Paths.ProjectDir(name), c.Paths.StackVolumesDir(name)} {
		if err := fs.RemoveAll(dir); err != nil {
			return fmt.Errorf("remove %s: %w", dir, err)
		}
	}
	if c.Cache != nil {
		return c.Cache.Forget(name)
	}
	return nil
}
