package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/melih/rbuild/internal/core/domain"
	"github.com/melih/rbuild/internal/core/ports"
)

const webConfig = `{"name":"web","services":{"app":{"build":{"context":"/src/app"},"ports":[{"target":80,"published":"8080"}]},"worker":{"build":{"context":"/src/worker","labels":{"team":"core"}}}}}`

// fakeClock is a settable wall clock.
type fakeClock struct {
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

// fakeRuntime keeps containers and images in memory.
type fakeRuntime struct {
	containers map[string][]domain.RunningContainer
	images     map[string]domain.Image

	listErr    error
	inspectErr error
	removeErr  error

	inspected   []string
	removeCalls [][]string
	pruned      int
	nextID      int
}

func newFakeRuntime() *fakeRuntime {
	return &fakeRuntime{
		containers: map[string][]domain.RunningContainer{},
		images:     map[string]domain.Image{},
	}
}

func (r *fakeRuntime) ListContainers(_ context.Context, project string) ([]domain.RunningContainer, error) {
	if r.listErr != nil {
		return nil, r.listErr
	}
	return r.containers[project], nil
}

func (r *fakeRuntime) InspectImage(_ context.Context, ref string) (domain.Image, error) {
	r.inspected = append(r.inspected, ref)
	if r.inspectErr != nil {
		return domain.Image{}, r.inspectErr
	}
	if img, ok := r.images[ref]; ok {
		return img, nil
	}
	for _, img := range r.images {
		for _, tag := range img.RepoTags {
			if tag == ref {
				return img, nil
			}
		}
	}
	return domain.Image{}, &domain.RuntimeInvocationError{Command: "image inspect " + ref, ExitCode: -1, Err: errors.New("No such image")}
}

func (r *fakeRuntime) ListImages(context.Context) ([]domain.Image, error) {
	ids := make([]string, 0, len(r.images))
	for id := range r.images {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]domain.Image, 0, len(ids))
	for _, id := range ids {
		out = append(out, domain.Image{ID: id, RepoTags: r.images[id].RepoTags})
	}
	return out, nil
}

func (r *fakeRuntime) RemoveImages(_ context.Context, refs []string) error {
	r.removeCalls = append(r.removeCalls, refs)
	if r.removeErr != nil {
		return r.removeErr
	}
	for _, ref := range refs {
		delete(r.images, ref)
	}
	return nil
}

func (r *fakeRuntime) PruneBuildCache(context.Context) (uint64, error) {
	r.pruned++
	return 4096, nil
}

// addImage stores an image and returns its ID.
func (r *fakeRuntime) addImage(tags []string, labels map[string]string) string {
	r.nextID++
	id := fmt.Sprintf("sha256:%04d", r.nextID)
	r.images[id] = domain.Image{ID: id, RepoTags: tags, Labels: labels}
	return id
}

// addContainer runs a container of project on the image with id.
func (r *fakeRuntime) addContainer(project, service, id string) {
	img := r.images[id]
	ref := id
	if len(img.RepoTags) > 0 {
		ref = img.RepoTags[0]
	}
	r.containers[project] = append(r.containers[project], domain.RunningContainer{
		ID:      fmt.Sprintf("c-%s-%d", service, len(r.containers[project])),
		Name:    fmt.Sprintf("%s-%s-1", project, service),
		Service: service,
		Image:   ref,
		ImageID: id,
		State:   "running",
	})
}

// fakeCompose resolves definitions from memory and, when backed by a
// runtime, builds and deploys into it the way docker compose would.
type fakeCompose struct {
	configs map[string]string
	runtime *fakeRuntime

	configErr error
	buildErr  error
	upErr     error

	files     []string
	built     []string
	buildOpts []ports.BuildOptions
	upOpts    []ports.UpOptions
}

func (c *fakeCompose) Config(_ context.Context, file string) ([]byte, error) {
	if c.configErr != nil {
		return nil, c.configErr
	}
	cfg, ok := c.configs[file]
	if !ok {
		return nil, &domain.RuntimeInvocationError{Command: "docker compose -f " + file + " config", ExitCode: 1, Stderr: "no such file"}
	}
	return []byte(cfg), nil
}

func (c *fakeCompose) Build(_ context.Context, file string, opts ports.BuildOptions) error {
	data, err := os.ReadFile(file)
	if err != nil {
		return err
	}
	c.files = append(c.files, file)
	c.built = append(c.built, string(data))
	c.buildOpts = append(c.buildOpts, opts)
	if c.buildErr != nil {
		return c.buildErr
	}

	if c.runtime == nil {
		return nil
	}
	cfg, err := domain.ParseServiceGroupConfig(data)
	if err != nil {
		return err
	}
	for _, name := range cfg.ServiceNames() {
		svc, _ := cfg.Service(name)
		c.runtime.addImage([]string{svc.Image}, svc.BuildLabels)
	}
	return nil
}

func (c *fakeCompose) Up(_ context.Context, file string, opts ports.UpOptions) error {
	c.upOpts = append(c.upOpts, opts)
	if c.upErr != nil {
		return c.upErr
	}
	if c.runtime == nil {
		return nil
	}

	cfg, err := domain.ParseServiceGroupConfig([]byte(c.built[len(c.built)-1]))
	if err != nil {
		return err
	}
	c.runtime.containers[cfg.Name()] = nil
	for _, name := range cfg.ServiceNames() {
		svc, _ := cfg.Service(name)
		img, err := c.runtime.InspectImage(context.Background(), svc.Image)
		if err != nil {
			return err
		}
		c.runtime.addContainer(cfg.Name(), name, img.ID)
	}
	return nil
}

type fakeSource struct {
	rev string
	err error
}

func (s fakeSource) Revision(context.Context, string) (string, error) {
	return s.rev, s.err
}

// managedLabels returns provenance labels for an image of group.
func managedLabels(group string, fp domain.Fingerprint, built time.Time) map[string]string {
	return domain.ImageProvenance{Fingerprint: fp, BuildTime: built, ComposeName: group}.Labels()
}
