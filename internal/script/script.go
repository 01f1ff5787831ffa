// Package script provides the preview scripts entries run in the background.
package script

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"

	"github.com/google/shlex"
)

// ErrEmptyCommand is returned when a command line has nothing to run.
var ErrEmptyCommand = errors.New("empty command")

// Command runs an external program and returns its stdout lines.
type Command struct {
	// Line is the command line. Without Shell it is split with POSIX shell
	// quoting rules and run directly.
	Line string

	// Shell, when set, runs Line through "<Shell> -c" ("/C" for cmd.exe);
	// args become the positional parameters.
	Shell string

	Dir string
	Env []string

	// MaxLines caps the returned lines; zero keeps everything.
	MaxLines int
}

// Run executes the command with args appended. Empty stdout yields nil.
func (c *Command) Run(ctx context.Context, args any) ([]any, error) {
	cmd, err := c.build(ctx, ToArgs(args))
	if err != nil {
		return nil, err
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return nil, fmt.Errorf("%s: %w: %s", c.Line, err, msg)
		}
		return nil, fmt.Errorf("%s: %w", c.Line, err)
	}

	out := strings.TrimRight(stdout.String(), "\r\n")
	if out == "" {
		return nil, nil
	}
	lines := strings.Split(out, "\n")
	if c.MaxLines > 0 && len(lines) > c.MaxLines {
		lines = lines[:c.MaxLines]
	}

	result := make([]any, len(lines))
	for i, l := range lines {
		result[i] = l
	}
	return result, nil
}

func (c *Command) build(ctx context.Context, args []string) (*exec.Cmd, error) {
	if strings.TrimSpace(c.Line) == "" {
		return nil, ErrEmptyCommand
	}

	var cmd *exec.Cmd
	if c.Shell == "" {
		argv, err := shlex.Split(c.Line)
		if err != nil {
			return nil, fmt.Errorf("splitting command: %w", err)
		}
		if len(argv) == 0 {
			return nil, ErrEmptyCommand
		}
		argv = append(argv, args...)
		cmd = exec.CommandContext(ctx, argv[0], argv[1:]...)
	} else {
		cmd = exec.CommandContext(ctx, c.Shell, shellArgs(c.Shell, c.Line, args)...)
	}

	cmd.Dir = c.Dir
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}
	return cmd, nil
}

func shellArgs(shell, line string, args []string) []string {
	if runtime.GOOS == "windows" && isCmdExe(shell) {
		return append([]string{"/C", line}, args...)
	}
	// $0 is the shell name, so positional parameters start at $1.
	return append([]string{"-c", line, "runsel"}, args...)
}

func isCmdExe(shell string) bool {
	s := strings.ToLower(shell)
	return s == "cmd" || s == "cmd.exe" || strings.HasSuffix(s, `\cmd.exe`)
}

// DefaultShell is the shell used when items ask for shell mode without
// naming one.
func DefaultShell() string {
	if runtime.GOOS == "windows" {
		return "cmd.exe"
	}
	if sh := os.Getenv("SHELL"); sh != "" {
		return sh
	}
	return "/bin/sh"
}

// Func adapts a Go function to a preview script.
type Func func(ctx context.Context, args any) ([]any, error)

// Run calls f.
func (f Func) Run(ctx context.Context, args any) ([]any, error) {
	return f(ctx, args)
}

// ToArgs converts an argument payload to command-line arguments.
func ToArgs(args any) []string {
	switch v := args.(type) {
	case nil:
		return nil
	case string:
		return []string{v}
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, a := range v {
			if a == nil {
				continue
			}
			out = append(out, fmt.Sprint(a))
		}
		return out
	default:
		return []string{fmt.Sprint(v)}
	}
}
