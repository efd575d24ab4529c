package backup

import (
	"context"
	"fmt"

	"github.com/sarth-shah20/quay/internal/manifest"
	"github.com/sarth-shah20/quay/internal/stack"
)

// Execer runs a command inside a compose service.
type Execer interface {
	Exec(ctx context.Context, project, service string, cmd []string) (string, error)
}

// envFile returns the backup service config that produces backups of t.
func envFile(t Type) (string, error) {
	switch t {
	case Manual, "":
		return "/etc/dockervolumebackup/manual.env", nil
	case Daily, Weekly, Monthly:
		return fmt.Sprintf("/etc/dockervolumebackup/conf.d/backup-%s.env", t), nil
	default:
		return "", fmt.Errorf("unknown backup type %q", t)
	}
}

// Command returns the shell command that runs one backup of type t inside
// the backup service.
func Command(t Type) ([]string, error) {
	file, err := envFile(t)
	if err != nil {
		return nil, err
	}
	return []string{"/bin/sh", "-c", fmt.Sprintf("set -a; . %s; set +a && backup", file)}, nil
}

// Trigger runs a backup of type t now and returns the service's output.
func Trigger(ctx context.Context, ex Execer, t Type) (string, error) {
	cmd, err := Command(t)
	if err != nil {
		return "", err
	}
	out, err := ex.Exec(ctx, stack.SystemName, manifest.BackupService, cmd)
	if err != nil {
		return out, fmt.Errorf("backup failed: %w", err)
	}
	return out, nil
}
