package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"
)

// Command describes a single external process invocation.
type Command struct {
	// Name is the executable, looked up in PATH when it has no separator.
	Name string
	// Args are passed verbatim.
	Args []string
	// Dir is the working directory of the child. Empty means the current one.
	Dir string
	// Env is appended to the parent environment as KEY=VALUE pairs.
	Env []string
	// Progress, when set, receives the child output while it runs.
	Progress io.Writer
}

// String renders the command line for logs.
func (c *Command) String() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

// Result is the outcome of a finished process.
type Result struct {
	// ExitCode is the child exit status, -1 when it was killed by a signal.
	ExitCode int
	// Output is the combined stdout and stderr.
	Output []byte
	// Duration is the wall time between start and exit.
	Duration time.Duration
}

// Success reports whether the process exited with status zero.
func (r *Result) Success() bool {
	return r != nil && r.ExitCode == 0
}

// Runner executes commands. An error means the process could not be
// started or waited for; a non-zero exit is reported through Result.
type Runner interface {
	Run(ctx context.Context, cmd *Command) (*Result, error)
}

// ErrEmptyCommand is returned when a command has no executable name.
var ErrEmptyCommand = errors.New("command name is empty")

// ExecRunner runs commands with os/exec.
type ExecRunner struct {
	// commandContext builds the *exec.Cmd; replaced in tests.
	commandContext func(ctx context.Context, name string, args ...string) *exec.Cmd
}

// NewExecRunner returns a Runner backed by os/exec.
func NewExecRunner() *ExecRunner {
	return &ExecRunner{
		commandContext: exec.CommandContext,
	}
}

// Run starts the command, blocks until it exits and captures its output.
func (r *ExecRunner) Run(ctx context.Context, command *Command) (*Result, error) {
	if command == nil || strings.TrimSpace(command.Name) == "" {
		return nil, ErrEmptyCommand
	}

	cmd := r.commandContext(ctx, command.Name, command.Args...)
	cmd.Dir = command.Dir

	if len(command.Env) > 0 {
		base := cmd.Env
		if base == nil {
			base = os.Environ()
		}

		cmd.Env = append(base, command.Env...)
	}

	var (
		output bytes.Buffer
		sink   io.Writer = &output
	)

	if command.Progress != nil {
		sink = io.MultiWriter(&output, command.Progress)
	}

	cmd.Stdout = sink
	cmd.Stderr = sink

	started := time.Now()
	err := cmd.Run()

	result := &Result{
		Output:   output.Bytes(),
		Duration: time.Since(started),
	}

	if ctxErr := ctx.Err(); err != nil && ctxErr != nil {
		return result, fmt.Errorf("run %s: %w", command.Name, ctxErr)
	}

	var exitErr *exec.ExitError

	switch {
	case err == nil:
		result.ExitCode = 0
	case errors.As(err, &exitErr):
		result.ExitCode = exitErr.ExitCode()
	default:
		return result, fmt.Errorf("run %s: %w", command.Name, err)
	}

	return result, nil
}
