package services

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/melih/rbuild/internal/core/domain"
	"github.com/melih/rbuild/internal/core/ports"
)

// Settings are the process-wide values threaded through every pass. They
// are resolved once at startup and never read from the environment here.
type Settings struct {
	// TTL is how long a built image stays fresh.
	TTL time.Duration

	// UpTimeout bounds the wait for services to become healthy.
	UpTimeout time.Duration

	// TempDir holds transient working configs. "" selects the OS default.
	TempDir string
}

// Option customizes an Engine.
type Option func(*Engine)

// WithClock replaces the wall clock, for tests.
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) { e.clock = clock }
}

// WithSource records source revisions in image provenance.
func WithSource(source ports.SourceService) Option {
	return func(e *Engine) { e.source = source }
}

// Engine runs group passes: fingerprint, evaluate, and when needed rebuild
// and collect. Passes are serialized; no two run at the same time.
type Engine struct {
	runtime  ports.ContainerRuntime
	settings Settings
	clock    func() time.Time
	source   ports.SourceService

	fingerprinter *Fingerprinter
	evaluator     *Evaluator
	collector     *Collector
	orchestrator  *Orchestrator

	mu sync.Mutex
}

// NewEngine wires the engine's components.
func NewEngine(compose ports.ComposeService, runtime ports.ContainerRuntime, settings Settings, opts ...Option) *Engine {
	e := &Engine{
		runtime:  runtime,
		settings: settings,
		clock:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}

	e.fingerprinter = NewFingerprinter(compose, e.source)
	e.evaluator = NewEvaluator(runtime, e.clock)
	e.collector = NewCollector(runtime)
	e.orchestrator = NewOrchestrator(compose, e.collector, e.clock, settings.TempDir, settings.UpTimeout)
	return e
}

// Resolve resolves and fingerprints the group at ref.
func (e *Engine) Resolve(ctx context.Context, ref string) (*domain.ResolvedGroup, error) {
	return e.fingerprinter.Resolve(ctx, ref)
}

// Run performs one pass over the group at ref.
func (e *Engine) Run(ctx context.Context, ref string, force bool) (domain.PassResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	start := time.Now()
	group, err := e.fingerprinter.Resolve(ctx, ref)
	if err != nil {
		return domain.PassResult{Ref: ref}, err
	}
	name := group.Name()

	result, err := e.run(ctx, group, force)
	result.Duration = time.Since(start)

	passDuration.WithLabelValues(name).Observe(result.Duration.Seconds())
	switch {
	case err != nil:
		passesTotal.WithLabelValues(name, "error").Inc()
	case result.Rebuilt:
		passesTotal.WithLabelValues(name, "rebuilt").Inc()
	default:
		passesTotal.WithLabelValues(name, "fresh").Inc()
	}
	return result, err
}

func (e *Engine) run(ctx context.Context, group *domain.ResolvedGroup, force bool) (domain.PassResult, error) {
	result := domain.PassResult{
		Group:       group.Name(),
		Ref:         group.Ref,
		Fingerprint: group.Fingerprint,
	}

	decision, err := e.evaluator.Evaluate(ctx, group, e.settings.TTL, force)
	if err != nil {
		return result, err
	}
	result.Decision = decision

	if !decision.Rebuild {
		slog.Info("images are fresh", "group", group.Name(), "containers", decision.Containers)
		return result, nil
	}

	slog.Info("rebuild required",
		"group", group.Name(),
		"reason", decision.Reason,
		"container", decision.ExpiredContainer,
		"fingerprint", group.Fingerprint.Short(),
	)
	rebuildsTotal.WithLabelValues(group.Name(), string(decision.Reason)).Inc()

	rebuilt, err := e.orchestrator.Rebuild(ctx, group)
	if err != nil {
		return result, err
	}

	result.Rebuilt = true
	result.BuildTime = rebuilt.BuildTime
	result.Images = sortedRefs(rebuilt.Images)
	result.Removed = rebuilt.Removed

	slog.Info("rebuild complete", "group", group.Name(), "images", len(result.Images), "removed", len(result.Removed))
	return result, nil
}

// RunAll runs a pass for each ref in order. The first failure stops the
// invocation; results of the completed passes are returned with it.
func (e *Engine) RunAll(ctx context.Context, refs []string, force bool) ([]domain.PassResult, error) {
	results := make([]domain.PassResult, 0, len(refs))
	for _, ref := range refs {
		res, err := e.Run(ctx, ref, force)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}

// Remove deletes every image built for the group at ref.
func (e *Engine) Remove(ctx context.Context, ref string) ([]string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	group, err := e.fingerprinter.Resolve(ctx, ref)
	if err != nil {
		return nil, err
	}
	return e.collector.Collect(ctx, group.Name(), nil)
}

// RemoveAll removes the images of each ref in order, stopping at the first
// failure.
func (e *Engine) RemoveAll(ctx context.Context, refs []string) ([]string, error) {
	var removed []string
	for _, ref := range refs {
		ids, err := e.Remove(ctx, ref)
		if err != nil {
			return removed, err
		}
		removed = append(removed, ids...)
	}
	return removed, nil
}

// Status reports the staleness of every container of the group at ref.
func (e *Engine) Status(ctx context.Context, ref string) (domain.StatusReport, error) {
	group, err := e.fingerprinter.Resolve(ctx, ref)
	if err != nil {
		return domain.StatusReport{}, err
	}
	return e.evaluator.Report(ctx, group, e.settings.TTL)
}

// PruneBuildCache drops the builder cache.
func (e *Engine) PruneBuildCache(ctx context.Context) (uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	reclaimed, err := e.runtime.PruneBuildCache(ctx)
	if err != nil {
		return 0, err
	}
	slog.Info("pruned build cache", "reclaimed_bytes", reclaimed)
	return reclaimed, nil
}

func sortedRefs(s domain.OperatingImageSet) []string {
	refs := s.Refs()
	slices.Sort(refs)
	return refs
}

var _ ports.RebuildService = (*Engine)(nil)
