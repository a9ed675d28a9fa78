package ports

import (
	"context"

	"github.com/melih/rbuild/internal/core/domain"
)

// RebuildService defines the group-level operations exposed to drivers
// such as the HTTP API.
type RebuildService interface {
	// Run performs one staleness check and, if needed, a rebuild pass.
	Run(ctx context.Context, ref string, force bool) (domain.PassResult, error)

	// Remove deletes every image built for the group at ref.
	Remove(ctx context.Context, ref string) ([]string, error)

	// Status evaluates the group at ref without changing anything.
	Status(ctx context.Context, ref string) (domain.StatusReport, error)
}
