package services

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/melih/rbuild/internal/core/domain"
	"github.com/melih/rbuild/internal/core/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImageTag(t *testing.T) {
	at := time.Unix(1714564800, 123)

	tag, err := ImageTag("Web", "App", at)
	require.NoError(t, err)
	assert.Equal(t, "rbuild-web-app:1714564800000000123", tag)

	_, err = ImageTag("web", "bad service", at)
	assert.Error(t, err)
}

func newTestOrchestrator(t *testing.T, compose *fakeCompose, runtime *fakeRuntime, clock *fakeClock) *Orchestrator {
	t.Helper()
	return NewOrchestrator(compose, NewCollector(runtime), clock.Now, t.TempDir(), 90*time.Second)
}

func TestOrchestrator_Rebuild(t *testing.T) {
	group := resolveWeb(t)
	group.SourceRevision = "0123abcd"
	clock := newFakeClock()
	runtime := newFakeRuntime()
	old := runtime.addImage([]string{"rbuild-web-app:1"}, managedLabels("web", "stale", clock.Now().Add(-48*time.Hour)))
	runtime.addContainer("web", "app", old)
	compose := &fakeCompose{runtime: runtime}
	o := newTestOrchestrator(t, compose, runtime, clock)

	res, err := o.Rebuild(context.Background(), group)

	require.NoError(t, err)
	assert.Equal(t, clock.Now(), res.BuildTime)
	assert.Equal(t, []string{old}, res.Removed)

	appTag, _ := ImageTag("web", "app", clock.Now())
	workerTag, _ := ImageTag("web", "worker", clock.Now())
	assert.ElementsMatch(t, []string{appTag, workerTag}, res.Images.Refs())

	assert.Equal(t, []ports.BuildOptions{{NoCache: true, Pull: true}}, compose.buildOpts)
	assert.Equal(t, []ports.UpOptions{{RemoveOrphans: true, Detach: true, WaitTimeout: 90 * time.Second}}, compose.upOpts)

	// The persisted working copy carries the provenance and new tags.
	require.Len(t, compose.built, 1)
	working, err := domain.ParseServiceGroupConfig([]byte(compose.built[0]))
	require.NoError(t, err)

	app, _ := working.Service("app")
	assert.Equal(t, appTag, app.Image)
	assert.Equal(t, group.Fingerprint.String(), app.BuildLabels[domain.LabelConfigFingerprint])
	assert.Equal(t, "web", app.BuildLabels[domain.LabelComposeName])
	assert.Equal(t, "0123abcd", app.BuildLabels[domain.LabelSourceRevision])
	assert.Equal(t, domain.FormatBuildTime(clock.Now()), app.BuildLabels[domain.LabelBuildTime])

	worker, _ := working.Service("worker")
	assert.Equal(t, workerTag, worker.Image)
	assert.Equal(t, "core", worker.BuildLabels["team"])
	assert.Contains(t, compose.built[0], `"published":"8080"`)

	// The original config is untouched.
	orig, _ := group.Config.Service("app")
	assert.Empty(t, orig.Image)
	assert.Empty(t, orig.BuildLabels)

	_, err = os.Stat(compose.files[0])
	assert.True(t, os.IsNotExist(err), "working config should be removed")
}

func TestOrchestrator_RebuildFailures(t *testing.T) {
	boom := &domain.RuntimeInvocationError{Command: "docker compose", ExitCode: 1}

	tests := []struct {
		name     string
		buildErr error
		upErr    error
		upCalls  int
	}{
		{name: "build fails", buildErr: boom, upCalls: 0},
		{name: "up fails", upErr: boom, upCalls: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			group := resolveWeb(t)
			runtime := newFakeRuntime()
			runtime.addImage([]string{"rbuild-web-app:1"}, managedLabels("web", "stale", time.Unix(0, 0)))
			compose := &fakeCompose{buildErr: tt.buildErr, upErr: tt.upErr}

			_, err := newTestOrchestrator(t, compose, runtime, newFakeClock()).Rebuild(context.Background(), group)

			assert.ErrorIs(t, err, boom)
			assert.Len(t, compose.upOpts, tt.upCalls)
			assert.Empty(t, runtime.removeCalls, "no garbage collection after a failed pass")
			require.Len(t, compose.files, 1)
			_, statErr := os.Stat(compose.files[0])
			assert.True(t, os.IsNotExist(statErr), "working config should be removed")
		})
	}
}

func TestOrchestrator_BuildTimesIncrease(t *testing.T) {
	group := resolveWeb(t)
	clock := newFakeClock()
	runtime := newFakeRuntime()
	o := newTestOrchestrator(t, &fakeCompose{runtime: runtime}, runtime, clock)

	first, err := o.Rebuild(context.Background(), group)
	require.NoError(t, err)
	second, err := o.Rebuild(context.Background(), group)
	require.NoError(t, err)

	assert.True(t, second.BuildTime.After(first.BuildTime))
	assert.NotEqual(t, first.Images.Refs(), second.Images.Refs())
}

func TestOrchestrator_GarbageCollectionFailure(t *testing.T) {
	group := resolveWeb(t)
	runtime := newFakeRuntime()
	runtime.addImage([]string{"rbuild-web-app:1"}, managedLabels("web", "stale", time.Unix(0, 0)))
	runtime.removeErr = errors.New("conflict")
	compose := &fakeCompose{runtime: runtime}

	_, err := newTestOrchestrator(t, compose, runtime, newFakeClock()).Rebuild(context.Background(), group)

	var gcErr *domain.GarbageCollectionError
	require.ErrorAs(t, err, &gcErr)
	assert.Len(t, gcErr.Images, 1)
	assert.Len(t, compose.upOpts, 1)
}
