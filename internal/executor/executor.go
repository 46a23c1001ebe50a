// Package executor runs external commands: the container engine and vendor
// credential helpers. Callers only see a command line and an exit status.
package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/chis/imagesmith/internal/logging"
)

// Command describes one external process invocation.
type Command struct {
	Name string
	Args []string

	// Stdin is piped to the process. It is never logged or rendered.
	Stdin string

	// Dir is the working directory; empty means the current one.
	Dir string

	// Stream copies the process output to the runner's console writers in
	// addition to capturing it.
	Stream bool
}

// String renders the command line for logs and dry runs.
func (c Command) String() string {
	parts := make([]string, 0, len(c.Args)+1)
	parts = append(parts, c.Name)
	for _, a := range c.Args {
		if a == "" || strings.ContainsAny(a, " \t\"'") {
			a = fmt.Sprintf("%q", a)
		}
		parts = append(parts, a)
	}
	return strings.Join(parts, " ")
}

// Result holds captured output of a finished command.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// ExitError is returned when a command ran but exited nonzero.
type ExitError struct {
	Command  string
	ExitCode int
	Stderr   string
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("%s exited with code %d", e.Command, e.ExitCode)
	if s := strings.TrimSpace(e.Stderr); s != "" {
		msg += ": " + lastLine(s)
	}
	return msg
}

// Runner executes commands.
type Runner interface {
	Run(ctx context.Context, cmd Command) (*Result, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct {
	Stdout io.Writer
	Stderr io.Writer
	log    *logging.Logger
}

// NewExecRunner creates a runner that streams to the process stdout/stderr.
func NewExecRunner(log *logging.Logger) *ExecRunner {
	return &ExecRunner{
		Stdout: os.Stdout,
		Stderr: os.Stderr,
		log:    logging.OrDefault(log).Named("executor"),
	}
}

// Run executes cmd and waits for it. A nonzero exit yields *ExitError with the
// captured result still returned.
func (r *ExecRunner) Run(ctx context.Context, cmd Command) (*Result, error) {
	r.log.DebugContext(ctx, "Running command: %s", cmd)

	c := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	if cmd.Dir != "" {
		c.Dir = cmd.Dir
	}
	if cmd.Stdin != "" {
		c.Stdin = strings.NewReader(cmd.Stdin)
	}

	var stdout, stderr bytes.Buffer
	if cmd.Stream {
		c.Stdout = io.MultiWriter(&stdout, r.Stdout)
		c.Stderr = io.MultiWriter(&stderr, r.Stderr)
	} else {
		c.Stdout = &stdout
		c.Stderr = &stderr
	}

	err := c.Run()
	result := &Result{Stdout: stdout.String(), Stderr: stderr.String()}
	if err == nil {
		return result, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		result.ExitCode = exitErr.ExitCode()
		return result, &ExitError{Command: cmd.Name + " " + firstArg(cmd.Args), ExitCode: result.ExitCode, Stderr: result.Stderr}
	}

	result.ExitCode = -1
	return result, fmt.Errorf("failed to execute %s: %w", cmd.Name, err)
}

func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}

func lastLine(s string) string {
	if idx := strings.LastIndex(s, "\n"); idx >= 0 {
		return s[idx+1:]
	}
	return s
}
