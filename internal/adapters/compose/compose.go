package compose

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/melih/rbuild/internal/adapters/process"
	"github.com/melih/rbuild/internal/core/ports"
)

// Config configures the compose adapter.
type Config struct {
	// Binary is the docker CLI; compose runs as its "compose" plugin.
	// Default: "docker"
	Binary string

	// CommandTimeout bounds config and build calls. Zero means unbounded.
	// Bring-up is bounded by its wait timeout instead.
	CommandTimeout time.Duration

	// Output receives build and bring-up progress. Default: os.Stderr
	Output io.Writer
}

// Adapter implements ports.ComposeService by running `docker compose`.
type Adapter struct {
	config Config
	runner process.Runner
}

// NewAdapter creates a compose adapter running commands through runner.
func NewAdapter(cfg Config, runner process.Runner) *Adapter {
	if cfg.Binary == "" {
		cfg.Binary = "docker"
	}
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}
	return &Adapter{config: cfg, runner: runner}
}

// Config resolves the definition with `docker compose config --format json`
// and returns the output verbatim.
func (a *Adapter) Config(ctx context.Context, file string) ([]byte, error) {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	res, err := a.runner.Run(ctx, process.Command{
		Name: a.config.Binary,
		Args: a.args(file, "config", "--format", "json"),
		Dir:  filepath.Dir(file),
	})
	if err != nil {
		return nil, err
	}
	return []byte(res.Stdout), nil
}

// Build runs `docker compose build` against file.
func (a *Adapter) Build(ctx context.Context, file string, opts ports.BuildOptions) error {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	args := a.args(file, "build")
	if opts.NoCache {
		args = append(args, "--no-cache")
	}
	if opts.Pull {
		args = append(args, "--pull")
	}

	_, err := a.runner.Run(ctx, process.Command{
		Name:   a.config.Binary,
		Args:   args,
		Stream: a.config.Output,
	})
	return err
}

// Up runs `docker compose up` against file. With a wait timeout the call
// blocks until every service is running or healthy, and fails when the
// timeout elapses first.
func (a *Adapter) Up(ctx context.Context, file string, opts ports.UpOptions) error {
	args := a.args(file, "up")
	if opts.RemoveOrphans {
		args = append(args, "--remove-orphans")
	}
	if opts.Detach {
		args = append(args, "--detach")
	}
	if opts.WaitTimeout > 0 {
		args = append(args, "--wait", "--wait-timeout", strconv.Itoa(int(opts.WaitTimeout/time.Second)))
	}

	_, err := a.runner.Run(ctx, process.Command{
		Name:   a.config.Binary,
		Args:   args,
		Stream: a.config.Output,
	})
	return err
}

func (a *Adapter) args(file string, sub ...string) []string {
	return append([]string{"compose", "-f", file}, sub...)
}

func (a *Adapter) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.config.CommandTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, a.config.CommandTimeout)
}

// String describes the adapter for logs.
func (a *Adapter) String() string {
	return fmt.Sprintf("%s compose", a.config.Binary)
}

var _ ports.ComposeService = (*Adapter)(nil)
