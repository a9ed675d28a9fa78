package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/melih/rbuild/internal/core/domain"
	"github.com/melih/rbuild/internal/core/ports"
)

// Evaluator decides whether a group's running images are stale.
type Evaluator struct {
	runtime ports.ContainerRuntime
	clock   func() time.Time
}

// NewEvaluator creates an evaluator reading the time from clock.
func NewEvaluator(runtime ports.ContainerRuntime, clock func() time.Time) *Evaluator {
	return &Evaluator{runtime: runtime, clock: clock}
}

// Evaluate returns the group-level rebuild decision. It stops at the first
// expired image; which one is found first does not matter because any
// expired image rebuilds the whole group.
func (e *Evaluator) Evaluate(ctx context.Context, group *domain.ResolvedGroup, ttl time.Duration, force bool) (domain.Decision, error) {
	d, _, err := e.evaluate(ctx, group, ttl, force, true)
	return d, err
}

// Report evaluates every container without short-circuiting. Its decision
// matches Evaluate's.
func (e *Evaluator) Report(ctx context.Context, group *domain.ResolvedGroup, ttl time.Duration) (domain.StatusReport, error) {
	now := e.clock()
	d, verdicts, err := e.evaluate(ctx, group, ttl, false, false)
	if err != nil {
		return domain.StatusReport{}, err
	}
	return domain.StatusReport{
		Group:       group.Name(),
		Ref:         group.Ref,
		Fingerprint: group.Fingerprint,
		TTL:         ttl,
		CheckedAt:   now.UTC(),
		Decision:    d,
		Containers:  verdicts,
	}, nil
}

func (e *Evaluator) evaluate(ctx context.Context, group *domain.ResolvedGroup, ttl time.Duration, force, shortCircuit bool) (domain.Decision, []domain.ContainerVerdict, error) {
	containers, err := e.runtime.ListContainers(ctx, group.Name())
	if err != nil {
		return domain.Decision{}, nil, err
	}

	d := domain.Decision{Containers: len(containers), Reason: domain.ReasonFresh}
	if force && shortCircuit {
		d.Rebuild, d.Reason = true, domain.ReasonForced
		return d, nil, nil
	}

	now := e.clock()
	verdicts := make([]domain.ContainerVerdict, 0, len(containers))
	for _, c := range containers {
		v, err := e.verdict(ctx, c, group.Fingerprint, ttl, now)
		if err != nil {
			return domain.Decision{}, nil, err
		}
		verdicts = append(verdicts, v)

		if v.Expired && !d.Rebuild {
			d.Rebuild, d.Reason = true, domain.ReasonExpired
			d.ExpiredContainer, d.ExpiredImage = c.Name, c.Image
			slog.Debug("image expired", "group", group.Name(), "container", c.Name, "image", c.Image)
			if shortCircuit {
				break
			}
		}
	}

	switch {
	case force:
		d.Rebuild, d.Reason = true, domain.ReasonForced
	case len(containers) == 0:
		d.Rebuild, d.Reason = true, domain.ReasonNoContainers
	}
	return d, verdicts, nil
}

func (e *Evaluator) verdict(ctx context.Context, c domain.RunningContainer, current domain.Fingerprint, ttl time.Duration, now time.Time) (domain.ContainerVerdict, error) {
	img, err := e.runtime.InspectImage(ctx, c.ImageRef())
	if err != nil {
		return domain.ContainerVerdict{}, err
	}

	v := domain.ContainerVerdict{Container: c, Expired: true}
	prov, ok := img.Provenance()
	if !ok {
		// Absent provenance never matches the current fingerprint.
		return v, nil
	}

	v.Provenance = &prov
	v.Age = now.Sub(prov.BuildTime)
	v.Expired = prov.Expired(current, ttl, now)
	return v, nil
}
