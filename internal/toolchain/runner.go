package toolchain

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"strings"

	"github.com/oshokin/venv-bootstrap/internal/logger"
)

// Command describes a single subordinate tool invocation.
type Command struct {
	// Name is the executable to run, looked up on PATH unless absolute.
	Name string
	// Args are the command line arguments, without the executable itself.
	Args []string
	// Dir is the working directory; empty means the current one.
	Dir string
	// Env holds extra KEY=VALUE pairs appended to the inherited environment.
	Env []string
}

// String renders the invocation for logs and error messages.
func (c *Command) String() string {
	return strings.Join(append([]string{c.Name}, c.Args...), " ")
}

// Runner executes subordinate tools. The indirection exists so services can
// be tested without conda, uv, or a network in sight.
type Runner interface {
	// LookPath reports the full path of an executable, or an error when it
	// is not discoverable.
	LookPath(file string) (string, error)
	// Run executes the command, streaming its output to the parent's
	// stdout/stderr so tool diagnostics reach the operator unaltered.
	Run(ctx context.Context, cmd *Command) error
	// Output executes the command and returns its trimmed standard output.
	Output(ctx context.Context, cmd *Command) (string, error)
}

// ExecRunner is the production Runner backed by os/exec.
type ExecRunner struct{}

// NewExecRunner returns a Runner that actually executes commands.
func NewExecRunner() *ExecRunner {
	return &ExecRunner{}
}

// LookPath resolves an executable via the process PATH.
func (r *ExecRunner) LookPath(file string) (string, error) {
	return exec.LookPath(file)
}

// Run executes the command with inherited plus extra environment,
// passing output straight through.
func (r *ExecRunner) Run(ctx context.Context, cmd *Command) error {
	logger.DebugKV(ctx, "Running command", "command", cmd.String(), "dir", cmd.Dir)

	execCmd := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	execCmd.Dir = cmd.Dir
	execCmd.Env = append(os.Environ(), cmd.Env...)
	execCmd.Stdout = os.Stdout
	execCmd.Stderr = os.Stderr

	return execCmd.Run()
}

// Output executes the command and captures stdout; stderr still streams
// to the parent so failures stay diagnosable.
func (r *ExecRunner) Output(ctx context.Context, cmd *Command) (string, error) {
	logger.DebugKV(ctx, "Capturing command output", "command", cmd.String(), "dir", cmd.Dir)

	execCmd := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	execCmd.Dir = cmd.Dir
	execCmd.Env = append(os.Environ(), cmd.Env...)
	execCmd.Stderr = os.Stderr

	out, err := execCmd.Output()

	return strings.TrimSpace(string(out)), err
}

// ExitCode extracts the subordinate tool's exit status from an error chain.
// It reports false when the error carries no exit status (lookup failures,
// context cancellation, preflight errors).
func ExitCode(err error) (int, bool) {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), true
	}

	return 0, false
}
