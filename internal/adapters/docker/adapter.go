package docker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/melih/rbuild/internal/core/domain"
	"github.com/melih/rbuild/internal/core/ports"
)

// Labels compose puts on the containers it creates.
const (
	projectLabel = "com.docker.compose.project"
	serviceLabel = "com.docker.compose.service"
	oneoffLabel  = "com.docker.compose.oneoff"
)

// engineAPI is the subset of the Docker client the adapter uses.
type engineAPI interface {
	ContainerList(ctx context.Context, options container.ListOptions) ([]types.Container, error)
	ImageList(ctx context.Context, options types.ImageListOptions) ([]image.Summary, error)
	ImageInspectWithRaw(ctx context.Context, imageID string) (types.ImageInspect, []byte, error)
	ImageRemove(ctx context.Context, imageID string, options types.ImageRemoveOptions) ([]image.DeleteResponse, error)
	BuildCachePrune(ctx context.Context, opts types.BuildCachePruneOptions) (*types.BuildCachePruneReport, error)
	Close() error
}

// Adapter implements ports.ContainerRuntime using the Docker SDK
type Adapter struct {
	cli     engineAPI
	timeout time.Duration
}

// NewAdapter creates a new Docker adapter instance. A non-zero timeout
// bounds every Engine API call.
func NewAdapter(timeout time.Duration) (*Adapter, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}
	return &Adapter{cli: cli, timeout: timeout}, nil
}

// Close releases the client's connections.
func (a *Adapter) Close() error {
	return a.cli.Close()
}

// ListContainers returns the project's containers, stopped ones included,
// excluding one-off `compose run` containers.
func (a *Adapter) ListContainers(ctx context.Context, project string) ([]domain.RunningContainer, error) {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	containers, err := a.cli.ContainerList(ctx, container.ListOptions{
		All: true,
		Filters: filters.NewArgs(
			filters.Arg("label", projectLabel+"="+project),
			filters.Arg("label", oneoffLabel+"=False"),
		),
	})
	if err != nil {
		return nil, invocationError(ctx, "docker ps --all --filter label="+projectLabel+"="+project, err)
	}

	result := make([]domain.RunningContainer, 0, len(containers))
	for _, c := range containers {
		result = append(result, toRunningContainer(c))
	}
	return result, nil
}

// InspectImage returns an image's tags and labels.
func (a *Adapter) InspectImage(ctx context.Context, ref string) (domain.Image, error) {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	inspect, _, err := a.cli.ImageInspectWithRaw(ctx, ref)
	if err != nil {
		return domain.Image{}, invocationError(ctx, "docker inspect "+ref, err)
	}
	return toImage(inspect), nil
}

// ListImages returns the top-level images known to the engine. Labels are
// taken from the list summary; callers needing the authoritative view
// should inspect each image.
func (a *Adapter) ListImages(ctx context.Context) ([]domain.Image, error) {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	summaries, err := a.cli.ImageList(ctx, types.ImageListOptions{})
	if err != nil {
		return nil, invocationError(ctx, "docker image list", err)
	}

	result := make([]domain.Image, 0, len(summaries))
	for _, s := range summaries {
		result = append(result, domain.Image{ID: s.ID, RepoTags: s.RepoTags, Labels: s.Labels})
	}
	return result, nil
}

// RemoveImages removes every ref, untagging and deleting each image. Like
// `docker image rm`, it attempts all refs and fails if any removal failed.
// Removals are not rolled back, so the error names the refs already gone.
func (a *Adapter) RemoveImages(ctx context.Context, refs []string) error {
	if len(refs) == 0 {
		return nil
	}

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	var (
		errs    []error
		removed []string
	)
	for _, ref := range refs {
		if _, err := a.cli.ImageRemove(ctx, ref, types.ImageRemoveOptions{PruneChildren: true}); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", ref, err))
			continue
		}
		removed = append(removed, ref)
	}
	if len(errs) == 0 {
		return nil
	}

	err := errors.Join(errs...)
	if len(removed) > 0 {
		err = fmt.Errorf("removed %s before failing: %w", strings.Join(removed, " "), err)
	}
	return invocationError(ctx, "docker image rm "+strings.Join(refs, " "), err)
}

// PruneBuildCache removes the builder cache.
func (a *Adapter) PruneBuildCache(ctx context.Context) (uint64, error) {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	report, err := a.cli.BuildCachePrune(ctx, types.BuildCachePruneOptions{All: true})
	if err != nil {
		return 0, invocationError(ctx, "docker builder prune --all --force", err)
	}
	if report == nil {
		return 0, nil
	}
	return report.SpaceReclaimed, nil
}

func (a *Adapter) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, a.timeout)
}

func toRunningContainer(c types.Container) domain.RunningContainer {
	// Use the first name if available, remove slash
	name := ""
	if len(c.Names) > 0 {
		name = strings.TrimPrefix(c.Names[0], "/")
	}

	return domain.RunningContainer{
		ID:      c.ID,
		Name:    name,
		Service: c.Labels[serviceLabel],
		Image:   c.Image,
		ImageID: c.ImageID,
		State:   c.State,
	}
}

func toImage(inspect types.ImageInspect) domain.Image {
	img := domain.Image{ID: inspect.ID, RepoTags: inspect.RepoTags}
	if inspect.Config != nil {
		img.Labels = inspect.Config.Labels
	}
	return img
}

func invocationError(ctx context.Context, command string, err error) error {
	return &domain.RuntimeInvocationError{
		Command:  command,
		ExitCode: -1,
		TimedOut: errors.Is(ctx.Err(), context.DeadlineExceeded),
		Err:      err,
	}
}

var _ ports.ContainerRuntime = (*Adapter)(nil)
