package process

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// TestHelperProcess isn't a real test. It plays the external tool for ExecRunner tests.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}

	args := os.Args
	for i, arg := range args {
		if arg == "--" {
			args = args[i+1:]
			break
		}
	}

	switch args[0] {
	case "echo":
		fmt.Fprint(os.Stdout, args[1])
		fmt.Fprint(os.Stderr, "!")
		os.Exit(0)
	case "exit":
		code, _ := strconv.Atoi(args[1])
		fmt.Fprint(os.Stderr, "failing")
		os.Exit(code)
	case "env":
		fmt.Fprint(os.Stdout, os.Getenv(args[1]))
		os.Exit(0)
	case "pwd":
		wd, _ := os.Getwd()
		fmt.Fprint(os.Stdout, wd)
		os.Exit(0)
	}

	os.Exit(127)
}

func helperRunner() *ExecRunner {
	return &ExecRunner{
		commandContext: func(ctx context.Context, name string, args ...string) *exec.Cmd {
			cs := append([]string{"-test.run=TestHelperProcess", "--", name}, args...)
			cmd := exec.CommandContext(ctx, os.Args[0], cs...)
			cmd.Env = append(os.Environ(), "GO_WANT_HELPER_PROCESS=1")

			return cmd
		},
	}
}

// TestExecRunner_CapturesOutput checks combined output capture and progress streaming.
func TestExecRunner_CapturesOutput(t *testing.T) {
	t.Parallel()

	var progress bytes.Buffer

	result, err := helperRunner().Run(context.Background(), &Command{
		Name:     "echo",
		Args:     []string{"hello"},
		Progress: &progress,
	})
	require.NoError(t, err)
	require.True(t, result.Success())
	require.Equal(t, 0, result.ExitCode)
	require.Contains(t, string(result.Output), "hello")
	require.Contains(t, string(result.Output), "!")
	require.Equal(t, string(result.Output), progress.String())
	require.Positive(t, result.Duration)
}

// TestExecRunner_NonZeroExit reports the exit status through Result, not through the error.
func TestExecRunner_NonZeroExit(t *testing.T) {
	t.Parallel()

	result, err := helperRunner().Run(context.Background(), &Command{Name: "exit", Args: []string{"7"}})
	require.NoError(t, err)
	require.False(t, result.Success())
	require.Equal(t, 7, result.ExitCode)
	require.Equal(t, "failing", string(result.Output))
}

// TestExecRunner_EnvAndDir passes extra environment and the working directory to the child.
func TestExecRunner_EnvAndDir(t *testing.T) {
	t.Parallel()

	result, err := helperRunner().Run(context.Background(), &Command{
		Name: "env",
		Args: []string{"EXTPACK_TEST_VALUE"},
		Env:  []string{"EXTPACK_TEST_VALUE=forty-two"},
	})
	require.NoError(t, err)
	require.Equal(t, "forty-two", string(result.Output))

	dir := t.TempDir()

	result, err = helperRunner().Run(context.Background(), &Command{Name: "pwd", Dir: dir})
	require.NoError(t, err)

	want, err := os.Stat(dir)
	require.NoError(t, err)

	got, err := os.Stat(string(result.Output))
	require.NoError(t, err)
	require.True(t, os.SameFile(want, got))
}

// TestExecRunner_StartFailure returns an error when the executable does not exist.
func TestExecRunner_StartFailure(t *testing.T) {
	t.Parallel()

	_, err := NewExecRunner().Run(context.Background(), &Command{Name: "extpack-definitely-missing-tool"})
	require.Error(t, err)

	_, err = NewExecRunner().Run(context.Background(), &Command{Name: " "})
	require.ErrorIs(t, err, ErrEmptyCommand)

	_, err = NewExecRunner().Run(context.Background(), nil)
	require.ErrorIs(t, err, ErrEmptyCommand)
}

// TestExecRunner_CanceledContext surfaces cancellation as an error.
func TestExecRunner_CanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := helperRunner().Run(ctx, &Command{Name: "echo", Args: []string{"x"}})
	require.ErrorIs(t, err, context.Canceled)
}

// TestCommand_String renders the command line.
func TestCommand_String(t *testing.T) {
	t.Parallel()

	require.Equal(t, "npm install -g gulp-cli", (&Command{Name: "npm", Args: []string{"install", "-g", "gulp-cli"}}).String())
	require.Equal(t, "gulp", (&Command{Name: "gulp"}).String())
	require.False(t, (*Result)(nil).Success())
}
