package cmd

import (
	"os"
	"testing"
)

func TestFormatBytes(t *testing.T) {
	tests := map[int64]string{
		512:             "512 B",
		1536:            "1.5 KB",
		5 * 1024 * 1024: "5.0 MB",
	}
	for n, want := range tests {
		if got := formatBytes(n); got != want {
			t.Errorf("formatBytes(%d) = %q, want %q", n, got, want)
		}
	}
}

func TestAddToGitignore(t *testing.T) {
	chdir(t, t.TempDir())
	if err := os.WriteFile(".gitignore", []byte("node_modules"), 0o644); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 2; i++ {
		if err := addToGitignore("quay-data"); err != nil {
			t.Fatalf("addToGitignore: %v", err)
		}
	}
	got, _ := os.ReadFile(".gitignore")
	if string(got) != "node_modules\nquay-data\n" {
		t.Errorf(".gitignore = %q", got)
	}
}

// chdir changes the working directory for the duration of the test.
func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(wd); err != nil {
			t.Fatal(err)
		}
	})
}
