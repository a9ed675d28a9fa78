package services

import (
	"context"
	"log/slog"

	"github.com/melih/rbuild/internal/core/domain"
	"github.com/melih/rbuild/internal/core/ports"
	"github.com/opencontainers/go-digest"
)

// Fingerprinter resolves group definitions and fingerprints them.
type Fingerprinter struct {
	compose ports.ComposeService
	source  ports.SourceService
}

// NewFingerprinter creates a fingerprinter. source may be nil.
func NewFingerprinter(compose ports.ComposeService, source ports.SourceService) *Fingerprinter {
	return &Fingerprinter{compose: compose, source: source}
}

// Fingerprint digests the resolver output exactly as produced. It is never
// computed over a re-serialization, so it is as deterministic as the
// resolver itself.
func Fingerprint(raw []byte) domain.Fingerprint {
	return domain.Fingerprint(digest.SHA256.FromBytes(raw).Encoded())
}

// Resolve resolves the definition at ref. Every failure is a
// *domain.ResolutionError.
func (f *Fingerprinter) Resolve(ctx context.Context, ref string) (*domain.ResolvedGroup, error) {
	raw, err := f.compose.Config(ctx, ref)
	if err != nil {
		return nil, &domain.ResolutionError{Ref: ref, Err: err}
	}

	cfg, err := domain.ParseServiceGroupConfig(raw)
	if err != nil {
		return nil, &domain.ResolutionError{Ref: ref, Err: err}
	}

	group := &domain.ResolvedGroup{
		Ref:         ref,
		Raw:         raw,
		Config:      cfg,
		Fingerprint: Fingerprint(raw),
	}

	if f.source != nil {
		rev, err := f.source.Revision(ctx, ref)
		if err != nil {
			// Provenance extra only; resolution still succeeds.
			slog.Warn("could not read source revision", "ref", ref, "error", err)
		}
		group.SourceRevision = rev
	}

	slog.Debug("resolved group",
		"group", group.Name(),
		"ref", ref,
		"fingerprint", group.Fingerprint.Short(),
		"services", len(cfg.ServiceNames()),
	)
	return group, nil
}
