package docker

import (
	"context"
	"errors"
	"reflect"
	"sort"
	"strings"
	"testing"
)

func TestInvocationArgv(t *testing.T) {
	inv := Invocation{File: "/p/docker-compose.quay.yml", ProjectDir: "/p", Command: "up", Args: []string{"-d", "--build"}}
	want := []string{"--file", "/p/docker-compose.quay.yml", "--project-directory", "/p", "up", "-d", "--build"}
	if got := inv.Argv(); !reflect.DeepEqual(got, want) {
		t.Errorf("Argv = %v, want %v", got, want)
	}
}

func TestCLIOutput(t *testing.T) {
	var traced string
	cli := NewCLI([]string{"echo", "compose"})
	cli.Trace = func(s string) { traced = s }

	out, err := cli.Output(context.Background(), Invocation{File: "f.yml", ProjectDir: "dir", Command: "ps", Args: []string{"--all"}})
	if err != nil {
		t.Fatalf("Output: %v", err)
	}
	want := "compose --file f.yml --project-directory dir ps --all"
	if strings.TrimSpace(string(out)) != want {
		t.Errorf("output = %q, want %q", out, want)
	}
	if traced != "echo "+want {
		t.Errorf("trace = %q", traced)
	}
}

func TestCLIExitError(t *testing.T) {
	cli := NewCLI([]string{"false"})
	_, err := cli.Output(context.Background(), Invocation{Command: "stop"})
	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("err = %v, want *ExitError", err)
	}
	if exitErr.Code != 1 || exitErr.Command != "stop" {
		t.Errorf("exit error = %+v", exitErr)
	}
}

func TestHealthFromStatus(t *testing.T) {
	tests := map[string]string{
		"Up 3 minutes (healthy)":         "healthy",
		"Up 1 second (health: starting)": "starting",
		"Up 2 hours (unhealthy)":         "unhealthy",
		"Exited (0) 5 minutes ago":       "",
	}
	for status, want := range tests {
		if got := healthFromStatus(status); got != want {
			t.Errorf("healthFromStatus(%q) = %q, want %q", status, got, want)
		}
	}
}

func TestProjectFilterLowercasesStackName(t *testing.T) {
	if got := ProjectName("MyApp"); got != "myapp" {
		t.Errorf("ProjectName = %q, want myapp", got)
	}

	got := projectFilter("MyApp", "web").Get("label")
	sort.Strings(got)
	want := []string{ProjectLabel + "=myapp", ServiceLabel + "=web"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("labels = %v, want %v", got, want)
	}
	if got := projectFilter("site", "").Get("label"); !reflect.DeepEqual(got, []string{ProjectLabel + "=site"}) {
		t.Errorf("labels = %v", got)
	}
}
