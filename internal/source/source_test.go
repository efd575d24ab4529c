package source

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/afero"

	"github.com/sarth-shah20/quay/internal/stack"
)

// zipOf builds an in-memory archive; names ending in '/' are directories.
func zipOf(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("zip create %s: %v", name, err)
		}
		if !strings.HasSuffix(name, "/") {
			if _, err := w.Write([]byte(content)); err != nil {
				t.Fatalf("zip write %s: %v", name, err)
			}
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	return buf.Bytes()
}

func readFile(t *testing.T, fs afero.Fs, path string) string {
	t.Helper()
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}

func TestUnpackFlattensTopLevelDir(t *testing.T) {
	fs := afero.NewMemMapFs()
	archive := zipOf(t, map[string]string{
		"acme-app-abc1234/":                   "",
		"acme-app-abc1234/docker-compose.yml": "services: {}\n",
		"acme-app-abc1234/conf/app.ini":       "x=1\n",
	})

	root, err := Unpack(fs, bytes.NewReader(archive), "/dest")
	if err != nil {
		t.Fatalf("Unpack: %v", err)
	}
	if root != "acme-app-abc1234" {
		t.Errorf("root = %q", root)
	}
	if got := readFile(t, fs, "/dest/docker-compose.yml"); got != "services: {}\n" {
		t.Errorf("compose = %q", got)
	}
	if got := readFile(t, fs, "/dest/conf/app.ini"); got != "x=1\n" {
		t.Errorf("nested = %q", got)
	}
	if ok, _ := afero.Exists(fs, "/dest/acme-app-abc1234"); ok {
		t.Error("top-level directory should be flattened away")
	}
}

func TestUnpackRejectsBadLayouts(t *testing.T) {
	tests := []struct {
		name  string
		files map[string]string
	}{
		{"two roots", map[string]string{"a/x": "1", "b/y": "2"}},
		{"file at root", map[string]string{"README.md": "hi"}},
		{"empty", map[string]string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Unpack(afero.NewMemMapFs(), bytes.NewReader(zipOf(t, tt.files)), "/dest")
			if !errors.Is(err, ErrArchiveLayout) {
				t.Fatalf("err = %v, want ErrArchiveLayout", err)
			}
		})
	}
}

func TestUnpackRejectsEscapingEntries(t *testing.T) {
	archive := zipOf(t, map[string]string{"root/../../etc/passwd": "x"})
	if _, err := Unpack(afero.NewMemMapFs(), bytes.NewReader(archive), "/dest"); err == nil {
		t.Fatal("expected an error for an escaping entry")
	}
}

func TestCopyTreeOverwrites(t *testing.T) {
	fs := afero.NewMemMapFs()
	afero.WriteFile(fs, "/src/docker-compose.yml", []byte("local"), 0o644)
	afero.WriteFile(fs, "/src/a/b/c.txt", []byte("deep"), 0o644)
	afero.WriteFile(fs, "/dst/docker-compose.yml", []byte("remote"), 0o644)
	afero.WriteFile(fs, "/dst/keep.txt", []byte("keep"), 0o644)

	if err := CopyTree(fs, "/src", "/dst"); err != nil {
		t.Fatalf("CopyTree: %v", err)
	}
	for path, want := range map[string]string{
		"/dst/docker-compose.yml": "local",
		"/dst/a/b/c.txt":          "deep",
		"/dst/keep.txt":           "keep",
	} {
		if got := readFile(t, fs, path); got != want {
			t.Errorf("%s = %q, want %q", path, got, want)
		}
	}
}

func TestCopyTreeFollowsLinks(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "src")
	dst := filepath.Join(root, "dst")
	shared := filepath.Join(root, "shared")
	for path, content := range map[string]string{
		filepath.Join(root, "shared.env"): "TOKEN=x",
		filepath.Join(shared, "init.sql"): "select 1;",
		filepath.Join(src, "compose.yml"): "services: {}",
	} {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Symlink("../shared.env", filepath.Join(src, ".env")); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink("../shared", filepath.Join(src, "sql")); err != nil {
		t.Fatal(err)
	}

	fs := afero.NewOsFs()
	if err := CopyTree(fs, src, dst); err != nil {
		t.Fatalf("CopyTree: %v", err)
	}
	for path, want := range map[string]string{
		filepath.Join(dst, ".env"):         "TOKEN=x",
		filepath.Join(dst, "sql/init.sql"): "select 1;",
	} {
		if got := readFile(t, fs, path); got != want {
			t.Errorf("%s = %q, want %q", path, got, want)
		}
	}

	if err := os.Symlink("missing.env", filepath.Join(src, "broken.env")); err != nil {
		t.Fatal(err)
	}
	if err := CopyTree(fs, src, filepath.Join(root, "again")); err == nil {
		t.Fatal("expected error for a dangling link")
	}
}

type fakeFetcher struct {
	archive []byte
	commit  string
	err     error
	fetches int
}

func (f *fakeFetcher) Fetch(ctx context.Context, owner, repo, ref, token string) (io.ReadCloser, error) {
	f.fetches++
	if f.err != nil {
		return nil, f.err
	}
	return io.NopCloser(bytes.NewReader(f.archive)), nil
}

func (f *fakeFetcher) LatestCommit(ctx context.Context, owner, repo, ref, token string) (string, error) {
	return f.commit, f.err
}

func TestMaterializeLocal(t *testing.T) {
	fs := afero.NewMemMapFs()
	afero.WriteFile(fs, "/stacks/web/docker-compose.yml", []byte("services: {}"), 0o644)
	afero.WriteFile(fs, "/stacks/web/quay.stack.yml", []byte("name: web"), 0o644)

	m := &Materializer{Fs: fs}
	s := &stack.Stack{Name: "web", Source: stack.Source{Type: stack.SourceLocal}}
	commit, err := m.Materialize(context.Background(), s, "/stacks/web", "/projects/web")
	if err != nil {
		t.Fatalf("Materialize: %v", err)
	}
	if commit != "" {
		t.Errorf("commit = %q, want empty for local sources", commit)
	}
	if got := readFile(t, fs, "/projects/web/docker-compose.yml"); got != "services: {}" {
		t.Errorf("compose = %q", got)
	}
}

func TestMaterializeRemoteLocalWins(t *testing.T) {
	fs := afero.NewMemMapFs()
	afero.WriteFile(fs, "/stacks/app/docker-compose.yml", []byte("local"), 0o644)
	fetcher := &fakeFetcher{archive: zipOf(t, map[string]string{
		"acme-app-deadbee/docker-compose.yml": "remote",
		"acme-app-deadbee/Dockerfile":         "FROM scratch",
	})}

	m := &Materializer{Fs: fs, Fetcher: fetcher, Token: "tok"}
	s := &stack.Stack{Name: "app", Source: stack.Source{Type: stack.SourceGitHub, Slug: "acme/app#main"}}
	commit, err := m.Materialize(context.Background(), s, "/stacks/app", "/projects/app")
	if err != nil {
		t.Fatalf("Materialize: %v", err)
	}
	if commit != "deadbee" {
		t.Errorf("commit = %q, want deadbee", commit)
	}
	if got := readFile(t, fs, "/projects/app/docker-compose.yml"); got != "local" {
		t.Errorf("compose = %q, local file should win", got)
	}
	if got := readFile(t, fs, "/projects/app/Dockerfile"); got != "FROM scratch" {
		t.Errorf("Dockerfile = %q", got)
	}
}

func TestMaterializeRemoteWithoutToken(t *testing.T) {
	fetcher := &fakeFetcher{}
	m := &Materializer{Fs: afero.NewMemMapFs(), Fetcher: fetcher}
	s := &stack.Stack{Name: "app", Source: stack.Source{Type: stack.SourceGitHub, Slug: "acme/app"}}
	_, err := m.Materialize(context.Background(), s, "/stacks/app", "/projects/app")
	if !errors.Is(err, ErrMissingAccessToken) {
		t.Fatalf("err = %v, want ErrMissingAccessToken", err)
	}
	if fetcher.fetches != 0 {
		t.Error("fetcher must not be called without a token")
	}
}

func TestGitHubFetcher(t *testing.T) {
	archive := zipOf(t, map[string]string{"acme-app-abc/x": "1"})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "token tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch r.URL.Path {
		case "/repos/acme/app/zipball/main":
			w.Write(archive)
		case "/repos/acme/app/commits/main":
			w.Write([]byte(`{"sha":"abc0123456789"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	g := &GitHub{Client: srv.Client(), BaseURL: srv.URL}
	ctx := context.Background()

	rc, err := g.Fetch(ctx, "acme", "app", "main", "tok")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	data, _ := io.ReadAll(rc)
	rc.Close()
	if !bytes.Equal(data, archive) {
		t.Error("archive body mismatch")
	}

	sha, err := g.LatestCommit(ctx, "acme", "app", "main", "tok")
	if err != nil || sha != "abc0123456789" {
		t.Fatalf("LatestCommit = %q, %v", sha, err)
	}

	if _, err := g.Fetch(ctx, "acme", "missing", "main", "tok"); !errors.Is(err, ErrRepoNotFound) {
		t.Errorf("missing repo err = %v", err)
	}
	if _, err := g.Fetch(ctx, "acme", "app", "main", "bad"); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("bad token err = %v", err)
	}
}

func TestCommitCache(t *testing.T) {
	fs := afero.NewMemMapFs()
	c := &CommitCache{Fs: fs, Path: filepath.Join("/data", "github_cache.json")}

	if c.Matches("app", "abc123") {
		t.Error("empty cache should not match")
	}
	if err := c.Put("app", "abc"); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if !c.Matches("app", "abc123") {
		t.Error("short cached sha should match the full sha")
	}
	if c.Matches("app", "def456") {
		t.Error("different commit should not match")
	}
	if err := c.Forget("app"); err != nil {
		t.Fatalf("Forget: %v", err)
	}
	if c.Get("app") != "" {
		t.Error("Forget should drop the entry")
	}
}

func TestCommitFromRoot(t *testing.T) {
	if got := commitFromRoot("acme-my-app-1a2b3c4"); got != "1a2b3c4" {
		t.Errorf("commitFromRoot = %q", got)
	}
}
