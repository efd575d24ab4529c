package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestNewLevels(t *testing.T) {
	for _, level := range []string{"", "debug", "info", "warn", "warning", "error", "DEBUG"} {
		if _, err := New(level); err != nil {
			t.Errorf("New(%q): %v", level, err)
		}
	}
	if _, err := New("loud"); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestConsoleMarkers(t *testing.T) {
	var out, errOut bytes.Buffer
	c := &Console{Out: &out, Err: &errOut}
	c.Info("deploying %s", "web")
	c.Ok("done")
	c.Skip("cached")
	c.Warn("careful")
	c.Error("boom")

	if got := out.String(); got != "[+] deploying web\n[✓] done\n[=] cached\n" {
		t.Errorf("stdout = %q", got)
	}
	if got := errOut.String(); !strings.Contains(got, "[!] careful") || !strings.Contains(got, "[!] boom") {
		t.Errorf("stderr = %q", got)
	}
}
