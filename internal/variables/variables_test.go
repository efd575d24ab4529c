package variables

import (
	"errors"
	"testing"

	"github.com/sarth-shah20/quay/internal/config"
)

func baseConfig() *config.Config {
	return &config.Config{
		RootDomain:      "example.com",
		DefaultAuth:     "admin:secret",
		DefaultUser:     "admin",
		DefaultPassword: "secret",
	}
}

func TestExpand(t *testing.T) {
	cfg := baseConfig()
	tests := []struct {
		in, want string
	}{
		{"app.<root>", "app.example.com"},
		{"<default_auth>", "admin:secret"},
		{"USER=<default_user> PASS=<default_password>", "USER=admin PASS=secret"},
		{"<root>/<root>", "example.com/example.com"},
		{"<unknown>", "<unknown>"},
		{"no tokens", "no tokens"},
		{"<backup_password>", "<backup_password>"},
	}
	for _, tt := range tests {
		if got := Expand(tt.in, cfg); got != tt.want {
			t.Errorf("Expand(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestExpandBackupTokens(t *testing.T) {
	cfg := baseConfig()
	cfg.Backup = &config.Backup{
		Password:    "enc",
		S3Endpoint:  "s3.example.com",
		S3Bucket:    "bucket",
		S3AccessKey: "AK",
		S3SecretKey: "SK",
	}
	got := Expand("<backup_password>|<backup_s3_endpoint>|<backup_s3_bucket>|<backup_s3_access_key>|<backup_s3_secret_key>", cfg)
	if want := "enc|s3.example.com|bucket|AK|SK"; got != want {
		t.Errorf("Expand = %q, want %q", got, want)
	}
}

func TestExpandStrict(t *testing.T) {
	cfg := baseConfig()
	if _, err := ExpandStrict("PW=<backup_password>", cfg); !errors.Is(err, ErrBackupNotConfigured) {
		t.Fatalf("expected ErrBackupNotConfigured, got %v", err)
	}
	got, err := ExpandStrict("<root> <other>", cfg)
	if err != nil {
		t.Fatalf("ExpandStrict: %v", err)
	}
	if got != "example.com <other>" {
		t.Errorf("ExpandStrict = %q", got)
	}

	cfg.Backup = &config.Backup{Password: "enc"}
	if got, err := ExpandStrict("<backup_password>", cfg); err != nil || got != "enc" {
		t.Errorf("ExpandStrict = %q, %v", got, err)
	}
}

func TestExpandAll(t *testing.T) {
	got, err := ExpandAll([]string{"A=<root>", "B=<default_user>"}, baseConfig())
	if err != nil {
		t.Fatalf("ExpandAll: %v", err)
	}
	if len(got) != 2 || got[0] != "A=example.com" || got[1] != "B=admin" {
		t.Errorf("ExpandAll = %v", got)
	}
	if _, err := ExpandAll([]string{"X=<backup_s3_bucket>"}, baseConfig()); err == nil {
		t.Error("expected error for backup token without backup config")
	}
}
