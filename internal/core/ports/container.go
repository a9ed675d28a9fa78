package ports

import (
	"context"

	"github.com/melih/rbuild/internal/core/domain"
)

// ContainerService lists the containers of a compose project.
type ContainerService interface {
	// ListContainers returns every container of the project, stopped ones
	// included.
	ListContainers(ctx context.Context, project string) ([]domain.RunningContainer, error)
}

// ImageService defines the image operations the rebuild engine needs.
// This interface allows us to switch between Docker and Podman without
// changing the staleness or garbage collection logic.
type ImageService interface {
	InspectImage(ctx context.Context, ref string) (domain.Image, error)
	ListImages(ctx context.Context) ([]domain.Image, error)

	// RemoveImages removes all refs in one call. Any failure fails the call.
	RemoveImages(ctx context.Context, refs []string) error

	// PruneBuildCache drops the builder cache and returns the bytes reclaimed.
	PruneBuildCache(ctx context.Context) (uint64, error)
}

// ContainerRuntime is the full runtime surface consumed by the engine.
type ContainerRuntime interface {
	ContainerService
	ImageService
}
