package logging

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/term"
)

// ANSI escape codes.
const (
	reset  = "\033[0m"
	bold   = "\033[1m"
	dim    = "\033[2m"
	cyan   = "\033[36m"
	green  = "\033[32m"
	yellow = "\033[33m"
	red    = "\033[31m"
)

// Console prints the short user-facing progress lines of a command.
// Output is colorized only when the destination is a terminal.
type Console struct {
	Out   io.Writer
	Err   io.Writer
	color bool
}

// NewConsole returns a console writing to stdout and stderr.
func NewConsole() *Console {
	return &Console{
		Out:   os.Stdout,
		Err:   os.Stderr,
		color: term.IsTerminal(int(os.Stdout.Fd())),
	}
}

func (c *Console) paint(color, msg string) string {
	if c.color {
		return color + bold + msg + reset
	}
	return msg
}

func (c *Console) Info(format string, args ...any) {
	fmt.Fprintf(c.Out, "%s %s\n", c.paint(cyan, "[+]"), fmt.Sprintf(format, args...))
}

func (c *Console) Ok(format string, args ...any) {
	fmt.Fprintf(c.Out, "%s %s\n", c.paint(green, "[✓]"), fmt.Sprintf(format, args...))
}

func (c *Console) Skip(format string, args ...any) {
	fmt.Fprintf(c.Out, "%s %s\n", c.paint(yellow, "[=]"), fmt.Sprintf(format, args...))
}

func (c *Console) Warn(format string, args ...any) {
	fmt.Fprintf(c.Err, "%s %s\n", c.paint(yellow, "[!]"), fmt.Sprintf(format, args...))
}

func (c *Console) Error(format string, args ...any) {
	fmt.Fprintf(c.Err, "%s %s\n", c.paint(red, "[!]"), fmt.Sprintf(format, args...))
}

// Dim prints secondary detail such as the commands being run.
func (c *Console) Dim(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if c.color {
		msg = dim + msg + reset
	}
	fmt.Fprintln(c.Out, msg)
}
