// Package source resolves a stack's files into a working directory: remote
// sources are downloaded first, then the stack's own directory is copied on
// top so local files win.
package source

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/sarth-shah20/quay/internal/stack"
)

// ErrMissingAccessToken is returned for remote sources when no token is
// configured.
var ErrMissingAccessToken = errors.New("GitHub access token is required for github sources (set github.pat)")

// Materializer populates project directories.
type Materializer struct {
	Fs      afero.Fs
	Fetcher Fetcher
	Token   string
	Logger  *zap.Logger
}

// Materialize fills dest with the stack's files: the remote tree, if any,
// then sourceDir copied over it. It returns the fetched commit, or "" for
// local sources.
func (m *Materializer) Materialize(ctx context.Context, s *stack.Stack, sourceDir, dest string) (string, error) {
	var commit string
	if s.Source.IsRemote() {
		var err error
		commit, err = m.Fetch(ctx, s, dest)
		if err != nil {
			return "", err
		}
	}
	if err := m.Overlay(sourceDir, dest); err != nil {
		return "", err
	}
	return commit, nil
}

// Fetch downloads the remote source of s into dest and returns its commit.
func (m *Materializer) Fetch(ctx context.Context, s *stack.Stack, dest string) (string, error) {
	if m.Token == "" {
		return "", ErrMissingAccessToken
	}
	if m.Fetcher == nil {
		return "", errors.New("no fetcher configured for remote sources")
	}
	src := s.Source
	m.logger().Info("downloading remote source",
		zap.String("stack", s.Name), zap.String("slug", src.Slug), zap.String("ref", src.Ref()))

	rc, err := m.Fetcher.Fetch(ctx, src.Owner(), src.Repo(), src.Ref(), m.Token)
	if err != nil {
		return "", err
	}
	defer rc.Close()

	root, err := Unpack(m.fs(), rc, dest)
	if err != nil {
		return "", fmt.Errorf("unpack %s: %w", src.Slug, err)
	}
	return commitFromRoot(root), nil
}

// LatestCommit resolves the current commit of a remote source.
func (m *Materializer) LatestCommit(ctx context.Context, s *stack.Stack) (string, error) {
	if m.Token == "" {
		return "", ErrMissingAccessToken
	}
	src := s.Source
	return m.Fetcher.LatestCommit(ctx, src.Owner(), src.Repo(), src.Ref(), m.Token)
}

// Overlay copies sourceDir over dest, replacing same-named files.
func (m *Materializer) Overlay(sourceDir, dest string) error {
	return CopyTree(m.fs(), sourceDir, dest)
}

func (m *Materializer) fs() afero.Fs {
	if m.Fs == nil {
		return afero.NewOsFs()
	}
	return m.Fs
}

func (m *Materializer) logger() *zap.Logger {
	if m.Logger == nil {
		return zap.NewNop()
	}
	return m.Logger
}
