package source

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// CopyTree copies the contents of src into dst, creating directories as
// needed and overwriting files that already exist. Every failure is collected
// and returned as one error; the copy carries on past individual failures.
func CopyTree(fs afero.Fs, src, dst string) error {
	if err := fs.MkdirAll(dst, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}

	var errs []error
	walkErr := afero.Walk(fs, src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			errs = append(errs, fmt.Errorf("read %s: %w", path, err))
			if info != nil && info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			errs = append(errs, err)
			return nil
		}
		target := filepath.Join(dst, rel)
		if info.IsDir() {
			if err := fs.MkdirAll(target, info.Mode().Perm()|0o700); err != nil {
				errs = append(errs, fmt.Errorf("create %s: %w", target, err))
				return filepath.SkipDir
			}
			return nil
		}
		if info.Mode()&os.ModeSymlink != 0 {
			// Links are followed and their target copied.
			resolved, err := fs.Stat(path)
			if err != nil {
				errs = append(errs, fmt.Errorf("follow link %s: %w", path, err))
				return nil
			}
			if resolved.IsDir() {
				if err := CopyTree(fs, path, target); err != nil {
					errs = append(errs, err)
				}
				return nil
			}
			info = resolved
		}
		if !info.Mode().IsRegular() {
			errs = append(errs, fmt.Errorf("copy %s: unsupported file type %s", path, info.Mode().Type()))
			return nil
		}
		if err := copyFile(fs, path, target, info.Mode().Perm()); err != nil {
			errs = append(errs, err)
		}
		return nil
	})
	if walkErr != nil {
		errs = append(errs, walkErr)
	}
	if len(errs) > 0 {
		return fmt.Errorf("copy %s to %s: %w", src, dst, errors.Join(errs...))
	}
	return nil
}

func copyFile(fs afero.Fs, src, dst string, perm os.FileMode) error {
	in, err := fs.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()
	return writeFile(fs, dst, in, perm)
}

func writeFile(fs afero.Fs, dst string, r io.Reader, perm os.FileMode) error {
	if err := fs.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(dst), err)
	}
	if perm == 0 {
		perm = 0o644
	}
	out, err := fs.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, perm)
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return fmt.Errorf("write %s: %w", dst, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("write %s: %w", dst, err)
	}
	return nil
}
