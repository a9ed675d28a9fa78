package ports

import (
	"context"
	"time"
)

// BuildOptions configures an image build.
type BuildOptions struct {
	NoCache bool
	Pull    bool
}

// UpOptions configures a bring-up.
type UpOptions struct {
	RemoveOrphans bool
	Detach        bool
	WaitTimeout   time.Duration
}

// ComposeService defines the compose operations used to resolve, build and
// deploy a service group.
type ComposeService interface {
	// Config resolves a definition file and returns the resolver's JSON
	// output verbatim.
	Config(ctx context.Context, file string) ([]byte, error)

	// Build builds every service of the definition at file.
	Build(ctx context.Context, file string, opts BuildOptions) error

	// Up brings the definition at file up and waits for it to be healthy.
	Up(ctx context.Context, file string, opts UpOptions) error
}

// SourceService reports the revision of the sources a definition lives in.
type SourceService interface {
	// Revision returns the revision of the repository containing path, or
	// "" when path is not under version control.
	Revision(ctx context.Context, path string) (string, error)
}
