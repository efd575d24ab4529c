package backup

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// ArchiveRoot is the directory the backup service stores volumes under.
const ArchiveRoot = "backup"

// Decrypt decrypts a GPG-encrypted backup with gpg and returns the path of
// the decrypted archive, next to src. Unencrypted backups are returned as-is.
func Decrypt(ctx context.Context, src, password string) (string, error) {
	if !strings.HasSuffix(src, ".gpg") {
		return src, nil
	}
	dst := strings.TrimSuffix(src, ".gpg")
	cmd := exec.CommandContext(ctx, "gpg", "--batch", "--yes",
		"--pinentry-mode", "loopback", "--passphrase-fd", "0",
		"--output", dst, "--decrypt", src)
	cmd.Stdin = strings.NewReader(password)
	if out, err := cmd.CombinedOutput(); err != nil {
		return "", fmt.Errorf("failed to decrypt backup: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return dst, nil
}

// Extract unpacks a .tar.gz backup into dest.
func Extract(fs afero.Fs, archive, dest string) error {
	f, err := fs.Open(archive)
	if err != nil {
		return err
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("failed to extract backup: %w", err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to extract backup: %w", err)
		}
		clean := filepath.Clean(filepath.FromSlash(strings.TrimPrefix(hdr.Name, "/")))
		if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
			return fmt.Errorf("backup entry %q escapes the destination", hdr.Name)
		}
		target := filepath.Join(dest, clean)
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := fs.MkdirAll(target, os.FileMode(hdr.Mode).Perm()|0o700); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := fs.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			out, err := fs.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, os.FileMode(hdr.Mode).Perm())
			if err != nil {
				return err
			}
			_, err = io.Copy(out, tr)
			out.Close()
			if err != nil {
				return fmt.Errorf("write %s: %w", target, err)
			}
		}
	}
}

// VolumePath returns where a stack's volume lives inside an extracted
// backup. An empty volume selects the whole stack.
func VolumePath(extracted, stackName, volume string) string {
	p := filepath.Join(extracted, ArchiveRoot, stackName)
	if volume != "" {
		p = filepath.Join(p, volume)
	}
	return p
}
