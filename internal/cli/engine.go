package cli

import (
	"context"
	"log/slog"

	"github.com/melih/rbuild/internal/adapters/compose"
	"github.com/melih/rbuild/internal/adapters/docker"
	"github.com/melih/rbuild/internal/adapters/git"
	"github.com/melih/rbuild/internal/adapters/process"
	"github.com/melih/rbuild/internal/config"
	"github.com/melih/rbuild/internal/core/domain"
	"github.com/melih/rbuild/internal/core/ports"
	"github.com/melih/rbuild/internal/core/services"
)

// Engine is the engine surface driven by the commands.
type Engine interface {
	ports.RebuildService

	Resolve(ctx context.Context, ref string) (*domain.ResolvedGroup, error)
	RunAll(ctx context.Context, refs []string, force bool) ([]domain.PassResult, error)
	RemoveAll(ctx context.Context, refs []string) ([]string, error)
	PruneBuildCache(ctx context.Context) (uint64, error)
}

// EngineFactory creates an engine for the resolved configuration. The
// returned close function releases its runtime connections.
type EngineFactory func(cfg config.Config) (Engine, func() error, error)

// NewEngine wires the engine against the local docker daemon and CLI.
func NewEngine(cfg config.Config) (Engine, func() error, error) {
	runtime, err := docker.NewAdapter(cfg.CommandTimeout)
	if err != nil {
		return nil, nil, err
	}

	composer := compose.NewAdapter(compose.Config{
		Binary:         cfg.Docker,
		CommandTimeout: cfg.CommandTimeout,
	}, process.NewExecRunner())
	slog.Debug("engine wired", "compose", composer.String(), "command_timeout", cfg.CommandTimeout, "build_period", cfg.BuildPeriod)

	engine := services.NewEngine(composer, runtime, services.Settings{
		TTL:       cfg.BuildPeriod,
		UpTimeout: cfg.UpTimeout,
	}, services.WithSource(git.NewAdapter()))

	return engine, runtime.Close, nil
}
