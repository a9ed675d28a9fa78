package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	httpadapter "github.com/melih/rbuild/internal/adapters/http"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(a *app) *cobra.Command {
	var (
		listen   string
		interval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "serve FILE...",
		Short: "Serve an HTTP API for the given projects, optionally running passes periodically",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
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
			groups, err := groupNames(ctx, engine, refs)
			if err != nil {
				return err
			}

			server := httpadapter.NewApp(httpadapter.NewGroupHandler(engine, groups))

			if interval > 0 {
				go a.loop(ctx, engine, refs, interval)
			}

			errCh := make(chan error, 1)
			go func() {
				errCh <- server.Listen(listen)
			}()
			slog.Info("rbuild is serving", "listen", listen, "groups", len(groups), "interval", interval)

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
				slog.Info("shutting down")
				return server.ShutdownWithTimeout(shutdownTimeout)
			}
		},
	}

	cmd.Flags().StringVar(&listen, "listen", ":8080", "address to serve the HTTP API on")
	cmd.Flags().DurationVar(&interval, "interval", 0, "run a pass over every project at this interval, 0 to only serve requests")
	cmd.Flags().BoolVar(&a.prune, flagPruneBuildCache, false, "prune the builder cache after each interval pass")
	return cmd
}

// groupNames maps each project name to its definition. Two definitions
// sharing a project name cannot be addressed and are rejected.
func groupNames(ctx context.Context, engine Engine, refs []string) (map[string]string, error) {
	groups := make(map[string]string, len(refs))
	for _, ref := range refs {
		group, err := engine.Resolve(ctx, ref)
		if err != nil {
			return nil, err
		}
		if prev, ok := groups[group.Name()]; ok {
			return nil, fmt.Errorf("project %q is defined by both %q and %q", group.Name(), prev, ref)
		}
		groups[group.Name()] = ref
	}
	return groups, nil
}

// loop runs a pass over every project at each tick until ctx is done.
// Failures are logged and the next tick proceeds.
func (a *app) loop(ctx context.Context, engine Engine, refs []string, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		a.tick(ctx, engine, refs)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (a *app) tick(ctx context.Context, engine Engine, refs []string) {
	for _, ref := range refs {
		if _, err := engine.Run(ctx, ref, false); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			slog.Error("pass failed", "ref", ref, "error", err)
		}
	}
	if a.prune {
		if _, err := engine.PruneBuildCache(ctx); err != nil {
			slog.Error("build cache prune failed", "error", err)
		}
	}
}
