package domain

import "time"

// DecisionReason explains a rebuild decision.
type DecisionReason string

const (
	ReasonForced       DecisionReason = "forced"
	ReasonNoContainers DecisionReason = "no_containers"
	ReasonExpired      DecisionReason = "expired"
	ReasonFresh        DecisionReason = "fresh"
)

// Decision is the group-level outcome of a staleness evaluation.
type Decision struct {
	Rebuild    bool           `json:"rebuild" yaml:"rebuild"`
	Reason     DecisionReason `json:"reason" yaml:"reason"`
	Containers int            `json:"containers" yaml:"containers"`

	// Set when Reason is ReasonExpired.
	ExpiredContainer string `json:"expired_container,omitempty" yaml:"expired_container,omitempty"`
	ExpiredImage     string `json:"expired_image,omitempty" yaml:"expired_image,omitempty"`
}

// ContainerVerdict is the staleness verdict for one container's image.
type ContainerVerdict struct {
	Container  RunningContainer `json:"container" yaml:"container"`
	Provenance *ImageProvenance `json:"provenance,omitempty" yaml:"provenance,omitempty"`
	Expired    bool             `json:"expired" yaml:"expired"`
	Age        time.Duration    `json:"age,omitempty" yaml:"age,omitempty"`
}

// StatusReport is a full, read-only staleness evaluation of a group.
type StatusReport struct {
	Group       string             `json:"group" yaml:"group"`
	Ref         string             `json:"ref" yaml:"ref"`
	Fingerprint Fingerprint        `json:"fingerprint" yaml:"fingerprint"`
	TTL         time.Duration      `json:"ttl" yaml:"ttl"`
	CheckedAt   time.Time          `json:"checked_at" yaml:"checked_at"`
	Decision    Decision           `json:"decision" yaml:"decision"`
	Containers  []ContainerVerdict `json:"containers" yaml:"containers"`
}

// PassResult summarizes one group pass.
type PassResult struct {
	Group       string        `json:"group" yaml:"group"`
	Ref         string        `json:"ref" yaml:"ref"`
	Fingerprint Fingerprint   `json:"fingerprint" yaml:"fingerprint"`
	Decision    Decision      `json:"decision" yaml:"decision"`
	Rebuilt     bool          `json:"rebuilt" yaml:"rebuilt"`
	BuildTime   time.Time     `json:"build_time,omitempty" yaml:"build_time,omitempty"`
	Images      []string      `json:"images,omitempty" yaml:"images,omitempty"`
	Removed     []string      `json:"removed,omitempty" yaml:"removed,omitempty"`
	Duration    time.Duration `json:"duration" yaml:"duration"`
}
