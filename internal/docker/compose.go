package docker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
)

// Invocation is one `docker compose` call against a persisted manifest.
type Invocation struct {
	File       string // manifest path, passed as --file
	ProjectDir string // passed as --project-directory
	Command    string // up, stop, ps, logs, ...
	Args       []string
}

// Argv returns the compose arguments that follow the compose binary.
func (inv Invocation) Argv() []string {
	argv := []string{"--file", inv.File, "--project-directory", inv.ProjectDir, inv.Command}
	return append(argv, inv.Args...)
}

// Compose runs the container orchestrator.
type Compose interface {
	// Run streams the command's output through and waits for it.
	Run(ctx context.Context, inv Invocation) error
	// Output runs the command and returns its stdout.
	Output(ctx context.Context, inv Invocation) ([]byte, error)
}

// ExitError reports a compose command that exited non-zero.
type ExitError struct {
	Command string
	Code    int
	Stderr  string
}

func (e *ExitError) Error() string {
	if msg := strings.TrimSpace(e.Stderr); msg != "" {
		return fmt.Sprintf("docker compose %s failed (exit %d): %s", e.Command, e.Code, msg)
	}
	return fmt.Sprintf("docker compose %s failed with exit code %d", e.Command, e.Code)
}

// CLI runs compose through an external binary.
type CLI struct {
	// Argv is the compose command prefix, e.g. ["docker", "compose"].
	Argv   []string
	Stdout io.Writer
	Stderr io.Writer
	// Trace, when set, receives each command line before it runs.
	Trace func(cmdline string)
}

// NewCLI returns a runner for argv that streams to the process stdio.
func NewCLI(argv []string) *CLI {
	if len(argv) == 0 {
		argv = []string{"docker", "compose"}
	}
	return &CLI{Argv: argv, Stdout: os.Stdout, Stderr: os.Stderr}
}

func (c *CLI) command(ctx context.Context, inv Invocation) *exec.Cmd {
	args := append(append([]string{}, c.Argv[1:]...), inv.Argv()...)
	if c.Trace != nil {
		c.Trace(strings.Join(append([]string{c.Argv[0]}, args...), " "))
	}
	return exec.CommandContext(ctx, c.Argv[0], args...)
}

func (c *CLI) Run(ctx context.Context, inv Invocation) error {
	cmd := c.command(ctx, inv)
	cmd.Stdin = os.Stdin
	cmd.Stdout = c.Stdout
	cmd.Stderr = c.Stderr
	return wrapExit(inv.Command, cmd.Run(), "")
}

func (c *CLI) Output(ctx context.Context, inv Invocation) ([]byte, error) {
	cmd := c.command(ctx, inv)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return nil, wrapExit(inv.Command, err, stderr.String())
	}
	return out, nil
}

func wrapExit(command string, err error, stderr string) error {
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &ExitError{Command: command, Code: exitErr.ExitCode(), Stderr: stderr}
	}
	return fmt.Errorf("run docker compose %s: %w", command, err)
}
