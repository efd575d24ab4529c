package stack_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sarth-shah20/quay/internal/stack"
)

const validDescriptor = `
name: web
source:
  type: github
  slug: acme/site#v1.2
compose_file_path: ./compose.yml
public:
  - domain: app.<root>
    target: web:8080
    auth: <default_auth>
  - domain: docs.<root>
    target: docs
env:
  shared:
    - TZ=UTC
  by_container:
    web:
      - PORT=8080
backup:
  exclude_volumes:
    - cache
`

func TestLoadBytesValid(t *testing.T) {
	s, err := stack.LoadBytes([]byte(validDescriptor), "test")
	if err != nil {
		t.Fatalf("LoadBytes: %v", err)
	}
	if s.Name != "web" {
		t.Errorf("Name = %q, want web", s.Name)
	}
	if !s.Source.IsRemote() || s.Source.Owner() != "acme" || s.Source.Repo() != "site" || s.Source.Ref() != "v1.2" {
		t.Errorf("Source = %+v", s.Source)
	}
	if s.ComposeFilePath != "./compose.yml" {
		t.Errorf("ComposeFilePath = %q", s.ComposeFilePath)
	}
	if len(s.Public) != 2 {
		t.Fatalf("len(Public) = %d, want 2", len(s.Public))
	}
	if s.Public[0].ServiceName() != "web" || s.Public[0].Port() != 8080 {
		t.Errorf("Public[0] target = %s:%d", s.Public[0].ServiceName(), s.Public[0].Port())
	}
	if s.Public[1].ServiceName() != "docs" || s.Public[1].Port() != 80 {
		t.Errorf("Public[1] target = %s:%d", s.Public[1].ServiceName(), s.Public[1].Port())
	}
	if s.Env == nil || len(s.Env.Shared) != 1 || s.Env.ByContainer["web"][0] != "PORT=8080" {
		t.Errorf("Env = %+v", s.Env)
	}
	if !s.Backup.Excludes("cache") || s.Backup.Excludes("data") {
		t.Errorf("Backup = %+v", s.Backup)
	}
}

func TestLoadBytesDefaults(t *testing.T) {
	s, err := stack.LoadBytes([]byte("name: app\nsource:\n  type: local\n"), "test")
	if err != nil {
		t.Fatalf("LoadBytes: %v", err)
	}
	if s.ComposeFilePath != stack.DefaultComposeFile {
		t.Errorf("ComposeFilePath = %q", s.ComposeFilePath)
	}
	if s.Source.IsRemote() {
		t.Error("local source reported as remote")
	}
	gh := stack.Source{Type: stack.SourceGitHub, Slug: "acme/site"}
	if gh.Ref() != stack.DefaultRef {
		t.Errorf("Ref = %q, want %q", gh.Ref(), stack.DefaultRef)
	}
}

func TestLoadBytesInvalid(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"empty", "", "empty"},
		{"malformed yaml", "invalid: yaml: content:", "YAML"},
		{"unknown field", "name: a\nsource:\n  type: local\nextra: 1\n", "extra"},
		{"missing name", "source:\n  type: local\n", "name"},
		{"reserved name", "name: system\nsource:\n  type: local\n", "reserved"},
		{"reserved system name", "name: Quay-System\nsource:\n  type: local\n", "reserved"},
		{"bad name chars", "name: -bad\nsource:\n  type: local\n", "alphanumeric"},
		{"missing source", "name: a\n", "source.type"},
		{"unknown source", "name: a\nsource:\n  type: s3\n", "unsupported type"},
		{"slug without slash", "name: a\nsource:\n  type: github\n  slug: acme\n", "owner/repo"},
		{"slug empty owner", "name: a\nsource:\n  type: github\n  slug: /repo\n", "owner cannot be empty"},
		{"bad port", "name: a\nsource:\n  type: local\npublic:\n  - domain: x\n    target: web:http\n", "invalid port"},
		{"missing domain", "name: a\nsource:\n  type: local\npublic:\n  - target: web\n", "domain"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := stack.LoadBytes([]byte(tt.raw), "test")
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q should mention %q", err, tt.want)
			}
		})
	}
}

func TestLoadSystemAllowsReservedName(t *testing.T) {
	s, err := stack.LoadSystem([]byte("name: quay-system\nsource:\n  type: local\n"), "system")
	if err != nil {
		t.Fatalf("LoadSystem: %v", err)
	}
	if !s.IsSystem() {
		t.Error("expected system stack")
	}
}

func writeDescriptor(t *testing.T, root, dir, content string) string {
	t.Helper()
	full := filepath.Join(root, dir)
	if err := os.MkdirAll(full, 0o755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(full, stack.FileName)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDiscoverValidAndMalformed(t *testing.T) {
	root := t.TempDir()
	writeDescriptor(t, root, "good", "name: good\nsource:\n  type: local\n")
	writeDescriptor(t, root, "bad", "invalid: yaml: content:")

	entries, err := stack.Discover(root)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("len(entries) = %d, want 2", len(entries))
	}
	// sorted by path: bad/ before good/
	if entries[0].Valid() || entries[0].Name() != "" || entries[0].Error() == "" {
		t.Errorf("entries[0] = %+v, want invalid with error", entries[0])
	}
	if !entries[1].Valid() || entries[1].Name() != "good" {
		t.Errorf("entries[1] = %+v, want valid good", entries[1])
	}

	e, err := stack.Resolve(root, "good")
	if err != nil {
		t.Fatalf("Resolve(good): %v", err)
	}
	if e.SourceDir() != filepath.Join(root, "good") {
		t.Errorf("SourceDir = %q", e.SourceDir())
	}
	if _, err := stack.Resolve(root, "bad"); !errors.Is(err, stack.ErrNotFound) {
		t.Errorf("Resolve(bad) = %v, want ErrNotFound", err)
	}
}

func TestDiscoverNested(t *testing.T) {
	root := t.TempDir()
	writeDescriptor(t, root, "team/a", "name: a\nsource:\n  type: local\n")
	writeDescriptor(t, root, "b", "name: b\nsource:\n  type: local\n")
	entries, err := stack.Discover(root)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(entries) != 2 || entries[0].Name() != "b" || entries[1].Name() != "a" {
		t.Errorf("entries = %+v", entries)
	}
}

func TestDiscoverDuplicateNames(t *testing.T) {
	root := t.TempDir()
	writeDescriptor(t, root, "one", "name: same\nsource:\n  type: local\n")
	writeDescriptor(t, root, "two", "name: same\nsource:\n  type: local\n")
	entries, err := stack.Discover(root)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if !entries[0].Valid() {
		t.Errorf("first entry should stay valid: %v", entries[0].Err)
	}
	if entries[1].Valid() || !strings.Contains(entries[1].Error(), "duplicate") {
		t.Errorf("second entry should be a duplicate error, got %+v", entries[1])
	}
}

func TestDiscoverMissingRoot(t *testing.T) {
	_, err := stack.Discover(filepath.Join(t.TempDir(), "nope"))
	if !errors.Is(err, stack.ErrNoStacksDir) {
		t.Fatalf("expected ErrNoStacksDir, got %v", err)
	}
}

func TestResolveEmptyName(t *testing.T) {
	if _, err := stack.Resolve(t.TempDir(), ""); !errors.Is(err, stack.ErrInvalidName) {
		t.Fatalf("expected ErrInvalidName, got %v", err)
	}
}

func TestValidName(t *testing.T) {
	for name, want := range map[string]bool{
		"site":     true,
		"My_App-2": true,
		"":         false,
		".":        false,
		"..":       false,
		"a/b":      false,
		"-lead":    false,
	} {
		if got := stack.ValidName(name); got != want {
			t.Errorf("ValidName(%q) = %v, want %v", name, got, want)
		}
	}
}
