package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

// ServiceSpec is the part of a service definition rbuild reads and writes.
type ServiceSpec struct {
	Name        string            `json:"name"`
	Image       string            `json:"image,omitempty"`
	BuildLabels map[string]string `json:"build_labels,omitempty"`
}

// ServiceGroupConfig is a resolved compose project.
//
// The document is kept generic so that every field emitted by the resolver
// survives when a working copy is written back for build and bring-up.
type ServiceGroupConfig struct {
	doc map[string]any
}

// ParseServiceGroupConfig parses the resolver's JSON output. The document
// must carry a non-empty "name" and a "services" mapping.
func ParseServiceGroupConfig(raw []byte) (*ServiceGroupConfig, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var doc map[string]any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("malformed config output: %w", err)
	}
	if doc == nil {
		return nil, errors.New("malformed config output: empty document")
	}

	name, _ := doc["name"].(string)
	if name == "" {
		return nil, errors.New(`config output has no project "name"`)
	}
	if _, ok := doc["services"].(map[string]any); !ok {
		return nil, errors.New(`config output has no "services" mapping`)
	}

	return &ServiceGroupConfig{doc: doc}, nil
}

// Name returns the project name.
func (c *ServiceGroupConfig) Name() string {
	name, _ := c.doc["name"].(string)
	return name
}

// ServiceNames returns the service names in sorted order.
func (c *ServiceGroupConfig) ServiceNames() []string {
	services := c.services()
	names := make([]string, 0, len(services))
	for name := range services {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Service returns the named service.
func (c *ServiceGroupConfig) Service(name string) (ServiceSpec, bool) {
	svc, ok := c.services()[name].(map[string]any)
	if !ok {
		return ServiceSpec{}, false
	}

	spec := ServiceSpec{Name: name}
	spec.Image, _ = svc["image"].(string)

	if build, ok := svc["build"].(map[string]any); ok {
		if labels, ok := build["labels"].(map[string]any); ok {
			spec.BuildLabels = make(map[string]string, len(labels))
			for k, v := range labels {
				spec.BuildLabels[k] = fmt.Sprint(v)
			}
		}
	}
	return spec, true
}

// SetBuildLabels merges labels into the service's build labels, creating
// the build section and label mapping when absent. Existing keys are
// overwritten.
func (c *ServiceGroupConfig) SetBuildLabels(service string, labels map[string]string) error {
	svc, err := c.service(service)
	if err != nil {
		return err
	}

	build, ok := svc["build"].(map[string]any)
	if !ok {
		build = map[string]any{}
		svc["build"] = build
	}
	existing, ok := build["labels"].(map[string]any)
	if !ok {
		existing = map[string]any{}
		build["labels"] = existing
	}
	for k, v := range labels {
		existing[k] = v
	}
	return nil
}

// SetImage sets the service's runtime image reference.
func (c *ServiceGroupConfig) SetImage(service, ref string) error {
	svc, err := c.service(service)
	if err != nil {
		return err
	}
	svc["image"] = ref
	return nil
}

// Clone returns a deep copy suitable for mutation.
func (c *ServiceGroupConfig) Clone() *ServiceGroupConfig {
	return &ServiceGroupConfig{doc: deepCopy(c.doc).(map[string]any)}
}

// MarshalJSON serializes the document. Keys are emitted in sorted order.
func (c *ServiceGroupConfig) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.doc)
}

func (c *ServiceGroupConfig) services() map[string]any {
	services, _ := c.doc["services"].(map[string]any)
	return services
}

func (c *ServiceGroupConfig) service(name string) (map[string]any, error) {
	svc, ok := c.services()[name].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("service %q not found in %q", name, c.Name())
	}
	return svc, nil
}

func deepCopy(v any) any {
	switch v := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, val := range v {
			out[k] = deepCopy(val)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, val := range v {
			out[i] = deepCopy(val)
		}
		return out
	default:
		return v
	}
}

// ResolvedGroup is a group definition resolved and fingerprinted.
type ResolvedGroup struct {
	Ref            string
	Raw            []byte
	Config         *ServiceGroupConfig
	Fingerprint    Fingerprint
	SourceRevision string
}

// Name returns the group's project name.
func (g *ResolvedGroup) Name() string {
	return g.Config.Name()
}
