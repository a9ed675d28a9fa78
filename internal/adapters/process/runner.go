// Package process runs external commands to completion.
//
// Every subprocess the runtime adapters start goes through a [Runner] so the
// adapters can be tested with a fake. Non-zero exits and timeouts are
// reported as *domain.RuntimeInvocationError carrying the command line and
// exit code.
package process

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"sync"

	"github.com/melih/rbuild/internal/core/domain"
)

// Command describes a subprocess invocation.
type Command struct {
	Name string
	Args []string
	Dir  string

	// Stream, when set, receives stdout and a copy of stderr as the command
	// runs. Stdout is then not captured.
	Stream io.Writer
}

// String renders the command line for messages.
func (c Command) String() string {
	return strings.Join(append([]string{c.Name}, c.Args...), " ")
}

// Result holds the outcome of a finished command.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Runner executes commands synchronously.
type Runner interface {
	Run(ctx context.Context, cmd Command) (Result, error)
}

// ExecRunner implements Runner with os/exec.
type ExecRunner struct{}

// NewExecRunner creates a runner that executes real processes.
func NewExecRunner() *ExecRunner {
	return &ExecRunner{}
}

// Run executes cmd and waits for it. A context deadline kills the process
// and yields a timed-out RuntimeInvocationError.
func (r *ExecRunner) Run(ctx context.Context, cmd Command) (Result, error) {
	c := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	c.Dir = cmd.Dir

	var stdout, stderr bytes.Buffer
	if cmd.Stream != nil {
		// os/exec copies stdout and stderr from separate goroutines.
		stream := &lockedWriter{w: cmd.Stream}
		c.Stdout = stream
		c.Stderr = io.MultiWriter(stream, &stderr)
	} else {
		c.Stdout = &stdout
		c.Stderr = &stderr
	}

	slog.Debug("running command", "command", cmd.String(), "dir", cmd.Dir)

	err := c.Run()
	result := Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: -1,
	}
	if c.ProcessState != nil {
		result.ExitCode = c.ProcessState.ExitCode()
	}

	if err == nil {
		return result, nil
	}

	invErr := &domain.RuntimeInvocationError{
		Command:  cmd.String(),
		ExitCode: result.ExitCode,
		Stderr:   result.Stderr,
		Err:      err,
	}
	if ctxErr := ctx.Err(); errors.Is(ctxErr, context.DeadlineExceeded) {
		invErr.TimedOut = true
		invErr.Err = ctxErr
	}
	return result, invErr
}

// lockedWriter serializes writes to w.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

var _ Runner = (*ExecRunner)(nil)
