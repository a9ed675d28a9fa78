package docker

import (
	"context"
	"errors"
	"testing"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/melih/rbuild/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEngine struct {
	listOpts   container.ListOptions
	containers []types.Container
	images     []image.Summary
	inspect    map[string]types.ImageInspect
	removed    []string
	removeErr  map[string]error
	pruneOpts  types.BuildCachePruneOptions
}

func (f *fakeEngine) ContainerList(_ context.Context, options container.ListOptions) ([]types.Container, error) {
	f.listOpts = options
	return f.containers, nil
}

func (f *fakeEngine) ImageList(context.Context, types.ImageListOptions) ([]image.Summary, error) {
	return f.images, nil
}

func (f *fakeEngine) ImageInspectWithRaw(_ context.Context, id string) (types.ImageInspect, []byte, error) {
	img, ok := f.inspect[id]
	if !ok {
		return types.ImageInspect{}, nil, errors.New("No such image: " + id)
	}
	return img, nil, nil
}

func (f *fakeEngine) ImageRemove(_ context.Context, id string, _ types.ImageRemoveOptions) ([]image.DeleteResponse, error) {
	if err := f.removeErr[id]; err != nil {
		return nil, err
	}
	f.removed = append(f.removed, id)
	return []image.DeleteResponse{{Deleted: id}}, nil
}

func (f *fakeEngine) BuildCachePrune(_ context.Context, opts types.BuildCachePruneOptions) (*types.BuildCachePruneReport, error) {
	f.pruneOpts = opts
	return &types.BuildCachePruneReport{SpaceReclaimed: 2048}, nil
}

func (f *fakeEngine) Close() error { return nil }

func TestAdapter_ListContainers(t *testing.T) {
	engine := &fakeEngine{containers: []types.Container{{
		ID:      "c1",
		Names:   []string{"/web-app-1"},
		Image:   "rbuild-web-app:1",
		ImageID: "sha256:aaa",
		State:   "exited",
		Labels:  map[string]string{serviceLabel: "app"},
	}}}
	a := &Adapter{cli: engine}

	got, err := a.ListContainers(context.Background(), "web")

	require.NoError(t, err)
	assert.Equal(t, []domain.RunningContainer{{
		ID: "c1", Name: "web-app-1", Service: "app",
		Image: "rbuild-web-app:1", ImageID: "sha256:aaa", State: "exited",
	}}, got)
	assert.True(t, engine.listOpts.All)
	assert.ElementsMatch(t,
		[]string{projectLabel + "=web", oneoffLabel + "=False"},
		engine.listOpts.Filters.Get("label"))
}

func TestAdapter_InspectImage(t *testing.T) {
	engine := &fakeEngine{inspect: map[string]types.ImageInspect{
		"sha256:aaa": {
			ID:       "sha256:aaa",
			RepoTags: []string{"rbuild-web-app:1"},
			Config:   &container.Config{Labels: map[string]string{domain.LabelComposeName: "web"}},
		},
		"sha256:bare": {ID: "sha256:bare"},
	}}
	a := &Adapter{cli: engine}

	img, err := a.InspectImage(context.Background(), "sha256:aaa")
	require.NoError(t, err)
	assert.Equal(t, "web", img.Labels[domain.LabelComposeName])
	assert.Equal(t, []string{"rbuild-web-app:1"}, img.RepoTags)

	bare, err := a.InspectImage(context.Background(), "sha256:bare")
	require.NoError(t, err)
	assert.Nil(t, bare.Labels)

	_, err = a.InspectImage(context.Background(), "missing")
	var invErr *domain.RuntimeInvocationError
	require.True(t, errors.As(err, &invErr))
	assert.Equal(t, "docker inspect missing", invErr.Command)
}

func TestAdapter_RemoveImages(t *testing.T) {
	t.Run("all removed", func(t *testing.T) {
		engine := &fakeEngine{}
		a := &Adapter{cli: engine}

		require.NoError(t, a.RemoveImages(context.Background(), []string{"a", "b"}))
		assert.Equal(t, []string{"a", "b"}, engine.removed)
	})

	t.Run("one in use fails the call", func(t *testing.T) {
		engine := &fakeEngine{removeErr: map[string]error{"a": errors.New("image is being used by stopped container")}}
		a := &Adapter{cli: engine}

		err := a.RemoveImages(context.Background(), []string{"a", "b"})

		require.Error(t, err)
		assert.Contains(t, err.Error(), "being used")
		assert.Equal(t, []string{"b"}, engine.removed)
	})

	t.Run("partial failure names the removed images", func(t *testing.T) {
		engine := &fakeEngine{removeErr: map[string]error{"c": errors.New("conflict: unable to delete")}}
		a := &Adapter{cli: engine}

		err := a.RemoveImages(context.Background(), []string{"a", "b", "c"})

		var invErr *domain.RuntimeInvocationError
		require.ErrorAs(t, err, &invErr)
		assert.Equal(t, "docker image rm a b c", invErr.Command)
		assert.Contains(t, err.Error(), "removed a b before failing")
		assert.Contains(t, err.Error(), "conflict")
		assert.Equal(t, []string{"a", "b"}, engine.removed)
	})

	t.Run("nothing removed keeps the plain error", func(t *testing.T) {
		engine := &fakeEngine{removeErr: map[string]error{"a": errors.New("no such image")}}
		a := &Adapter{cli: engine}

		err := a.RemoveImages(context.Background(), []string{"a"})

		require.Error(t, err)
		assert.NotContains(t, err.Error(), "before failing")
	})

	t.Run("nothing to remove", func(t *testing.T) {
		a := &Adapter{cli: &fakeEngine{}}
		assert.NoError(t, a.RemoveImages(context.Background(), nil))
	})
}

func TestAdapter_PruneBuildCache(t *testing.T) {
	engine := &fakeEngine{}
	a := &Adapter{cli: engine}

	reclaimed, err := a.PruneBuildCache(context.Background())

	require.NoError(t, err)
	assert.Equal(t, uint64(2048), reclaimed)
	assert.True(t, engine.pruneOpts.All)
}
