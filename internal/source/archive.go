package source

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// ErrArchiveLayout is returned for archives that do not hold exactly one
// top-level directory.
var ErrArchiveLayout = errors.New("archive must contain a single top-level directory")

// Unpack extracts a zip archive whose entries all live under one top-level
// directory, writing that directory's contents directly into dest. It returns
// the name of the top-level directory.
func Unpack(fs afero.Fs, archive io.Reader, dest string) (string, error) {
	data, err := io.ReadAll(archive)
	if err != nil {
		return "", fmt.Errorf("read archive: %w", err)
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("invalid zip archive: %w", err)
	}

	root, err := topLevelDir(zr.File)
	if err != nil {
		return "", err
	}

	for _, f := range zr.File {
		name := strings.TrimPrefix(f.Name, "./")
		rel := strings.TrimPrefix(strings.TrimPrefix(name, root), "/")
		if rel == "" {
			continue
		}
		clean := path.Clean(rel)
		if clean == ".." || strings.HasPrefix(clean, "../") || path.IsAbs(clean) {
			return "", fmt.Errorf("archive entry %q escapes the destination", f.Name)
		}
		target := filepath.Join(dest, filepath.FromSlash(clean))
		if f.FileInfo().IsDir() {
			if err := fs.MkdirAll(target, 0o755); err != nil {
				return "", fmt.Errorf("create %s: %w", target, err)
			}
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", fmt.Errorf("open archive entry %s: %w", f.Name, err)
		}
		err = writeFile(fs, target, rc, f.Mode().Perm())
		rc.Close()
		if err != nil {
			return "", err
		}
	}
	return root, nil
}

func topLevelDir(files []*zip.File) (string, error) {
	roots := map[string]bool{} // name -> is a directory
	for _, f := range files {
		name := strings.TrimPrefix(f.Name, "./")
		if name == "" {
			continue
		}
		first, _, nested := strings.Cut(name, "/")
		roots[first] = roots[first] || nested || f.FileInfo().IsDir()
	}
	if len(roots) != 1 {
		return "", fmt.Errorf("%w: found %d top-level entries", ErrArchiveLayout, len(roots))
	}
	for name, isDir := range roots {
		if !isDir {
			return "", fmt.Errorf("%w: %s is not a directory", ErrArchiveLayout, name)
		}
		return name, nil
	}
	return "", ErrArchiveLayout
}
