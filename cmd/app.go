package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/afero"

	"github.com/sarth-shah20/quay/internal/docker"
	"github.com/sarth-shah20/quay/internal/lifecycle"
	"github.com/sarth-shah20/quay/internal/manifest"
	"github.com/sarth-shah20/quay/internal/source"
	"github.com/sarth-shah20/quay/internal/stack"
)

// internalTLS is switched on by QUAY_ENV=development.
func internalTLS() bool { return os.Getenv("QUAY_ENV") == "development" }

func newCompose() (docker.Compose, error) {
	argv, err := cfg.ComposeArgv()
	if err != nil {
		return nil, err
	}
	cli := docker.NewCLI(argv)
	cli.Trace = func(cmdline string) { out.Dim("$ %s", cmdline) }
	return cli, nil
}

func newController() (*lifecycle.Controller, error) {
	compose, err := newCompose()
	if err != nil {
		return nil, err
	}
	fs := afero.NewOsFs()
	return &lifecycle.Controller{
		Paths:   paths,
		Config:  cfg,
		Compose: compose,
		Materializer: &source.Materializer{
			Fs:      fs,
			Fetcher: source.NewGitHub(),
			Token:   cfg.GitHubToken(),
			Logger:  logger,
		},
		Transformer: &manifest.Transformer{
			VolumesDir:  paths.VolumesDir(),
			Fs:          fs,
			Hasher:      manifest.BcryptHasher{},
			Logger:      logger,
			InternalTLS: internalTLS(),
		},
		Cache:  &source.CommitCache{Fs: fs, Path: paths.CacheFile()},
		Fs:     fs,
		Logger: logger,
	}, nil
}

func newProber() (*lifecycle.Prober, error) {
	compose, err := newCompose()
	if err != nil {
		return nil, err
	}
	if cli, ok := compose.(*docker.CLI); ok {
		cli.Trace = nil
	}
	return &lifecycle.Prober{Paths: paths, Compose: compose}, nil
}

// resolveStack finds a valid stack by name under the stacks root.
func resolveStack(name string) (stack.Entry, error) {
	entry, err := stack.Resolve(paths.Stacks, name)
	if errors.Is(err, stack.ErrNotFound) {
		return entry, fmt.Errorf("%w (run 'quay status' to list stacks and their errors)", err)
	}
	return entry, err
}

// ensureNetwork creates the shared network the transformed manifests
// declare as external.
func ensureNetwork(ctx context.Context) error {
	mgr, err := docker.NewManager()
	if err != nil {
		return err
	}
	defer mgr.Close()
	created, err := mgr.EnsureNetwork(ctx, manifest.Network, map[string]string{manifest.ManagedLabel: "true"})
	if err != nil {
		return err
	}
	if created {
		out.Info("Created Docker network %q", manifest.Network)
	}
	return nil
}
