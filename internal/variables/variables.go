// Package variables expands the fixed set of <token> placeholders that stack
// descriptors may use. It is not a template language: anything outside the
// token set is left exactly as written.
package variables

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sarth-shah20/quay/internal/config"
)

// ErrBackupNotConfigured is returned by ExpandStrict when a backup token is
// referenced but the configuration has no backup section.
var ErrBackupNotConfigured = errors.New("backup is not configured")

// BackupTokens are only expanded when backup is configured.
var BackupTokens = []string{
	"<backup_password>",
	"<backup_s3_endpoint>",
	"<backup_s3_bucket>",
	"<backup_s3_access_key>",
	"<backup_s3_secret_key>",
}

func replacer(cfg *config.Config) *strings.Replacer {
	pairs := []string{
		"<root>", cfg.RootDomain,
		"<default_auth>", cfg.DefaultAuth,
		"<default_user>", cfg.DefaultUser,
		"<default_password>", cfg.DefaultPassword,
	}
	if b := cfg.Backup; b != nil {
		pairs = append(pairs,
			"<backup_password>", b.Password,
			"<backup_s3_endpoint>", b.S3Endpoint,
			"<backup_s3_bucket>", b.S3Bucket,
			"<backup_s3_access_key>", b.S3AccessKey,
			"<backup_s3_secret_key>", b.S3SecretKey,
		)
	}
	return strings.NewReplacer(pairs...)
}

// Expand replaces every known token in value. Tokens whose value is not
// available are left untouched.
func Expand(value string, cfg *config.Config) string {
	return replacer(cfg).Replace(value)
}

// ExpandStrict is Expand, but fails when value references backup tokens and
// backup is not configured.
func ExpandStrict(value string, cfg *config.Config) (string, error) {
	if cfg.Backup == nil {
		for _, tok := range BackupTokens {
			if strings.Contains(value, tok) {
				return "", fmt.Errorf("%w: %s referenced", ErrBackupNotConfigured, tok)
			}
		}
	}
	return Expand(value, cfg), nil
}

// ExpandAll applies ExpandStrict to every entry of values.
func ExpandAll(values []string, cfg *config.Config) ([]string, error) {
	out := make([]string, 0, len(values))
	for _, v := range values {
		exp, err := ExpandStrict(v, cfg)
		if err != nil {
			return nil, err
		}
		out = append(out, exp)
	}
	return out, nil
}
