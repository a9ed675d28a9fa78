package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/distribution/reference"
	"github.com/melih/rbuild/internal/core/domain"
	"github.com/melih/rbuild/internal/core/ports"
)

// RebuildResult describes a completed rebuild pass.
type RebuildResult struct {
	BuildTime time.Time
	Images    domain.OperatingImageSet
	Removed   []string
}

// Orchestrator rebuilds and redeploys a group, then hands the images it
// produced to the collector.
type Orchestrator struct {
	compose   ports.ComposeService
	collector *Collector
	clock     func() time.Time
	tempDir   string
	upTimeout time.Duration

	mu        sync.Mutex
	lastBuild time.Time
}

// NewOrchestrator creates an orchestrator. Working copies are persisted
// under tempDir ("" selects the OS default).
func NewOrchestrator(compose ports.ComposeService, collector *Collector, clock func() time.Time, tempDir string, upTimeout time.Duration) *Orchestrator {
	return &Orchestrator{
		compose:   compose,
		collector: collector,
		clock:     clock,
		tempDir:   tempDir,
		upTimeout: upTimeout,
	}
}

// ImageTag returns the unique image reference for a service built at t.
func ImageTag(group, service string, t time.Time) (string, error) {
	tag := fmt.Sprintf("rbuild-%s-%s:%d", strings.ToLower(group), strings.ToLower(service), t.UnixNano())
	if _, err := reference.ParseNormalizedNamed(tag); err != nil {
		return "", fmt.Errorf("cannot derive an image name for service %q of %q: %w", service, group, err)
	}
	return tag, nil
}

// Rebuild builds and brings up a labelled working copy of the group, then
// removes the group's superseded images. Any failure aborts the pass before
// garbage collection; the previous deployment is not rolled back.
func (o *Orchestrator) Rebuild(ctx context.Context, group *domain.ResolvedGroup) (RebuildResult, error) {
	buildTime := o.nextBuildTime()

	working, operating, err := o.prepare(group, buildTime)
	if err != nil {
		return RebuildResult{}, err
	}

	file, cleanup, err := o.persist(working)
	if err != nil {
		return RebuildResult{}, err
	}
	defer cleanup()

	slog.Info("building images", "group", group.Name(), "build_time", domain.FormatBuildTime(buildTime))
	if err := o.compose.Build(ctx, file, ports.BuildOptions{NoCache: true, Pull: true}); err != nil {
		return RebuildResult{}, err
	}

	slog.Info("bringing up services", "group", group.Name(), "wait_timeout", o.upTimeout)
	err = o.compose.Up(ctx, file, ports.UpOptions{
		RemoveOrphans: true,
		Detach:        true,
		WaitTimeout:   o.upTimeout,
	})
	if err != nil {
		return RebuildResult{}, err
	}

	removed, err := o.collector.Collect(ctx, group.Name(), operating)
	if err != nil {
		return RebuildResult{}, err
	}

	return RebuildResult{BuildTime: buildTime, Images: operating, Removed: removed}, nil
}

// prepare labels a working copy of the group and assigns fresh image tags.
func (o *Orchestrator) prepare(group *domain.ResolvedGroup, buildTime time.Time) (*domain.ServiceGroupConfig, domain.OperatingImageSet, error) {
	working := group.Config.Clone()
	operating := domain.NewOperatingImageSet()

	labels := domain.ImageProvenance{
		Fingerprint:    group.Fingerprint,
		BuildTime:      buildTime,
		ComposeName:    group.Name(),
		SourceRevision: group.SourceRevision,
	}.Labels()

	for _, service := range working.ServiceNames() {
		if err := working.SetBuildLabels(service, labels); err != nil {
			return nil, nil, err
		}

		tag, err := ImageTag(group.Name(), service, buildTime)
		if err != nil {
			return nil, nil, err
		}
		if err := working.SetImage(service, tag); err != nil {
			return nil, nil, err
		}
		operating.Add(tag)
	}
	return working, operating, nil
}

// persist writes the working copy to a private temporary file. The returned
// cleanup removes it and must run on every path.
func (o *Orchestrator) persist(working *domain.ServiceGroupConfig) (string, func(), error) {
	data, err := json.Marshal(working)
	if err != nil {
		return "", nil, fmt.Errorf("failed to serialize working config: %w", err)
	}

	f, err := os.CreateTemp(o.tempDir, "rbuild-*.json")
	if err != nil {
		return "", nil, fmt.Errorf("failed to create working config: %w", err)
	}
	cleanup := func() {
		if err := os.Remove(f.Name()); err != nil && !os.IsNotExist(err) {
			slog.Warn("failed to remove working config", "path", f.Name(), "error", err)
		}
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		cleanup()
		return "", nil, fmt.Errorf("failed to write working config: %w", err)
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("failed to write working config: %w", err)
	}

	slog.Debug("persisted working config", "path", f.Name())
	return f.Name(), cleanup, nil
}

// nextBuildTime returns the current UTC time, forced past any build time
// this orchestrator already issued so tags never repeat.
func (o *Orchestrator) nextBuildTime() time.Time {
	o.mu.Lock()
	defer o.mu.Unlock()

	t := o.clock().UTC()
	if !t.After(o.lastBuild) {
		t = o.lastBuild.Add(time.Nanosecond)
	}
	o.lastBuild = t
	return t
}
