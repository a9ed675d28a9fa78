package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/melih/rbuild/internal/config"
	"github.com/melih/rbuild/internal/core/domain"
	"github.com/melih/rbuild/internal/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

const (
	flagForceRebuild    = "force-rebuild"
	flagRemoveImages    = "remove-images"
	flagPruneBuildCache = "prune-build-cache"

	// Accepted for compatibility with older invocations.
	flagPruneImageCache = "prune-image-cache"
)

// app holds the state shared by all commands of one invocation.
type app struct {
	factory EngineFactory

	quiet     bool
	verbose   bool
	logFormat string

	force  bool
	remove bool
	prune  bool
}

// Execute runs the root command until it finishes or the process is
// interrupted.
func Execute() error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return NewRootCmd(NewEngine).ExecuteContext(ctx)
}

// NewRootCmd creates the command tree. Engines are created through factory
// once flags and environment have been validated.
func NewRootCmd(factory EngineFactory) *cobra.Command {
	a := &app{factory: factory}

	root := &cobra.Command{
		Use:   "rbuild [flags] FILE...",
		Short: "Rebuild and redeploy docker compose projects whose images went stale",
		Long: `rbuild checks the images of each compose project against a TTL and a
fingerprint of the resolved configuration. Stale projects are rebuilt without
cache, brought up with fresh uniquely tagged images, and the images they
superseded are removed.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return logging.Setup(cmd.ErrOrStderr(), logging.Options{
				Quiet:   a.quiet,
				Verbose: a.verbose,
				Format:  a.logFormat,
			})
		},
		RunE: a.runPass,
	}

	pf := root.PersistentFlags()
	pf.BoolVarP(&a.quiet, "quiet", "q", false, "only log warnings and errors")
	pf.BoolVarP(&a.verbose, "verbose", "v", false, "log debug output, including every runtime command")
	pf.StringVar(&a.logFormat, "log-format", logging.FormatText, "log format, text or json")
	config.RegisterFlags(pf)

	f := root.Flags()
	f.BoolVar(&a.force, flagForceRebuild, false, "rebuild even if the images are fresh")
	f.BoolVar(&a.remove, flagRemoveImages, false, "remove every image built for the given projects")
	f.BoolVar(&a.prune, flagPruneBuildCache, false, "prune the builder cache after all projects are processed")
	f.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		if name == flagPruneImageCache {
			name = flagPruneBuildCache
		}
		return pflag.NormalizedName(name)
	})

	root.AddCommand(newStatusCmd(a))
	root.AddCommand(newServeCmd(a))
	root.AddCommand(newVersionCmd())
	return root
}

// runPass runs a pass, or removal, over every file in order.
func (a *app) runPass(cmd *cobra.Command, args []string) error {
	if a.force && a.remove {
		return &domain.MutualExclusivityError{Flags: []string{flagForceRebuild, flagRemoveImages}}
	}

	refs, err := absRefs(args)
	if err != nil {
		return err
	}

	engine, closeEngine, err := a.engine(cmd)
	if err != nil {
		return err
	}
	defer closeEngine()

	ctx := cmd.Context()
	if a.remove {
		removed, err := engine.RemoveAll(ctx, refs)
		if err != nil {
			return err
		}
		slog.Info("removed images", "count", len(removed))
	} else {
		results, err := engine.RunAll(ctx, refs, a.force)
		if err != nil {
			return err
		}
		rebuilt := 0
		for _, r := range results {
			if r.Rebuilt {
				rebuilt++
			}
		}
		slog.Info("processed projects", "count", len(results), "rebuilt", rebuilt)
	}

	if a.prune {
		if _, err := engine.PruneBuildCache(ctx); err != nil {
			return err
		}
	}
	return nil
}

// engine validates the configuration and creates an engine for it.
func (a *app) engine(cmd *cobra.Command) (Engine, func() error, error) {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return nil, nil, err
	}
	slog.Debug("configuration",
		"build_period", cfg.BuildPeriod,
		"up_timeout", cfg.UpTimeout,
		"command_timeout", cfg.CommandTimeout,
		"docker", cfg.Docker,
	)

	engine, closeEngine, err := a.factory(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize container runtime: %w", err)
	}
	return engine, closeEngine, nil
}

func absRefs(args []string) ([]string, error) {
	refs := make([]string, len(args))
	for i, arg := range args {
		abs, err := filepath.Abs(arg)
		if err != nil {
			return nil, fmt.Errorf("invalid path %q: %w", arg, err)
		}
		refs[i] = abs
	}
	return refs, nil
}
