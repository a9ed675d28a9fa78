package domain

import (
	"fmt"
	"time"
)

// Labels attached to every image rbuild builds.
const (
	LabelConfigFingerprint = "rbuild.config_sha256"
	LabelBuildTime         = "rbuild.build_time"
	LabelComposeName       = "rbuild.compose_name"

	// Optional; never required for an image to count as managed.
	LabelSourceRevision = "rbuild.source_revision"
)

// legacyBuildTimeLayout matches the naive ISO-8601 timestamps written by
// earlier releases. They carry no zone and are always UTC.
const legacyBuildTimeLayout = "2006-01-02T15:04:05.999999999"

// Fingerprint is the hex SHA-256 digest of a resolved group definition.
type Fingerprint string

func (f Fingerprint) String() string { return string(f) }

// Short returns the first twelve characters, for logs.
func (f Fingerprint) Short() string {
	if len(f) > 12 {
		return string(f[:12])
	}
	return string(f)
}

// ImageProvenance is the metadata rbuild attaches to an image it builds.
type ImageProvenance struct {
	Fingerprint    Fingerprint `json:"config_fingerprint" yaml:"config_fingerprint"`
	BuildTime      time.Time   `json:"build_time" yaml:"build_time"`
	ComposeName    string      `json:"compose_name" yaml:"compose_name"`
	SourceRevision string      `json:"source_revision,omitempty" yaml:"source_revision,omitempty"`
}

// Labels renders the provenance as build-time labels.
func (p ImageProvenance) Labels() map[string]string {
	labels := map[string]string{
		LabelConfigFingerprint: p.Fingerprint.String(),
		LabelBuildTime:         FormatBuildTime(p.BuildTime),
		LabelComposeName:       p.ComposeName,
	}
	if p.SourceRevision != "" {
		labels[LabelSourceRevision] = p.SourceRevision
	}
	return labels
}

// Expired reports whether an image with this provenance must be rebuilt.
// An image is expired when it was built from a different definition or when
// more than ttl has elapsed since it was built.
func (p ImageProvenance) Expired(current Fingerprint, ttl time.Duration, now time.Time) bool {
	if p.Fingerprint != current {
		return true
	}
	return now.Sub(p.BuildTime) > ttl
}

// ProvenanceFromLabels extracts provenance from image labels. ok is false
// when any required label is missing or the build time does not parse.
func ProvenanceFromLabels(labels map[string]string) (ImageProvenance, bool) {
	if !HasProvenanceLabels(labels) {
		return ImageProvenance{}, false
	}

	buildTime, err := ParseBuildTime(labels[LabelBuildTime])
	if err != nil {
		return ImageProvenance{}, false
	}

	return ImageProvenance{
		Fingerprint:    Fingerprint(labels[LabelConfigFingerprint]),
		BuildTime:      buildTime,
		ComposeName:    labels[LabelComposeName],
		SourceRevision: labels[LabelSourceRevision],
	}, true
}

// HasProvenanceLabels reports whether all three required labels are present
// and non-empty. Images without them are foreign and never removed.
func HasProvenanceLabels(labels map[string]string) bool {
	for _, key := range []string{LabelConfigFingerprint, LabelBuildTime, LabelComposeName} {
		if labels[key] == "" {
			return false
		}
	}
	return true
}

// FormatBuildTime renders t as an ISO-8601 timestamp in UTC.
func FormatBuildTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// ParseBuildTime parses a build time label. Zoned RFC 3339 values and naive
// values (treated as UTC) are both accepted.
func ParseBuildTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.ParseInLocation(legacyBuildTimeLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid build time %q: %w", s, err)
	}
	return t, nil
}
