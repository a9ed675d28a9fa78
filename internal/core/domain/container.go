package domain

// RunningContainer represents a container that belongs to a service group.
// Stopped containers are included; only the image is relevant to staleness.
type RunningContainer struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Service string `json:"service"`
	Image   string `json:"image"`
	ImageID string `json:"image_id"`
	State   string `json:"state"` // running, exited, etc.
}

// ImageRef returns the reference used to look up the container's image.
// The image ID is preferred because a tag may have moved since creation.
func (c RunningContainer) ImageRef() string {
	if c.ImageID != "" {
		return c.ImageID
	}
	return c.Image
}

// Image represents an inspected image known to the runtime.
type Image struct {
	ID       string            `json:"id"`
	RepoTags []string          `json:"repo_tags"`
	Labels   map[string]string `json:"labels,omitempty"`
}

// Provenance returns the image's provenance and whether all required
// provenance labels parsed.
func (i Image) Provenance() (ImageProvenance, bool) {
	return ProvenanceFromLabels(i.Labels)
}

// OperatingImageSet holds the image references produced by one rebuild pass.
type OperatingImageSet map[string]struct{}

// NewOperatingImageSet creates a set holding refs.
func NewOperatingImageSet(refs ...string) OperatingImageSet {
	s := make(OperatingImageSet, len(refs))
	for _, ref := range refs {
		s.Add(ref)
	}
	return s
}

// Add records ref in the set.
func (s OperatingImageSet) Add(ref string) {
	s[ref] = struct{}{}
}

// Contains reports whether ref is in the set. A nil set contains nothing.
func (s OperatingImageSet) Contains(ref string) bool {
	_, ok := s[ref]
	return ok
}

// ContainsAny reports whether any of refs is in the set.
func (s OperatingImageSet) ContainsAny(refs []string) bool {
	for _, ref := range refs {
		if s.Contains(ref) {
			return true
		}
	}
	return false
}

// Refs returns the set's members in no particular order.
func (s OperatingImageSet) Refs() []string {
	refs := make([]string, 0, len(s))
	for ref := range s {
		refs = append(refs, ref)
	}
	return refs
}
