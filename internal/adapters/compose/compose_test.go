package compose

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/melih/rbuild/internal/adapters/process"
	"github.com/melih/rbuild/internal/core/domain"
	"github.com/melih/rbuild/internal/core/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	calls    []process.Command
	deadline []bool
	result   process.Result
	err      error
}

func (f *fakeRunner) Run(ctx context.Context, cmd process.Command) (process.Result, error) {
	_, hasDeadline := ctx.Deadline()
	f.calls = append(f.calls, cmd)
	f.deadline = append(f.deadline, hasDeadline)
	return f.result, f.err
}

func TestAdapter_Config(t *testing.T) {
	runner := &fakeRunner{result: process.Result{Stdout: `{"name":"web"}`}}
	a := NewAdapter(Config{}, runner)

	raw, err := a.Config(context.Background(), "/srv/web/compose.yml")

	require.NoError(t, err)
	assert.Equal(t, `{"name":"web"}`, string(raw))
	require.Len(t, runner.calls, 1)
	assert.Equal(t, "docker", runner.calls[0].Name)
	assert.Equal(t, []string{"compose", "-f", "/srv/web/compose.yml", "config", "--format", "json"}, runner.calls[0].Args)
	assert.Equal(t, "/srv/web", runner.calls[0].Dir)
	assert.False(t, runner.deadline[0], "no deadline without a command timeout")
}

func TestAdapter_ConfigFailure(t *testing.T) {
	runner := &fakeRunner{err: &domain.RuntimeInvocationError{Command: "docker compose", ExitCode: 15}}
	a := NewAdapter(Config{}, runner)

	_, err := a.Config(context.Background(), "compose.yml")

	var invErr *domain.RuntimeInvocationError
	require.True(t, errors.As(err, &invErr))
	assert.Equal(t, 15, invErr.ExitCode)
}

func TestAdapter_Build(t *testing.T) {
	runner := &fakeRunner{}
	var out bytes.Buffer
	a := NewAdapter(Config{Binary: "podman", CommandTimeout: time.Minute, Output: &out}, runner)

	err := a.Build(context.Background(), "/tmp/rbuild-1.json", ports.BuildOptions{NoCache: true, Pull: true})

	require.NoError(t, err)
	require.Len(t, runner.calls, 1)
	assert.Equal(t, "podman", runner.calls[0].Name)
	assert.Equal(t, []string{"compose", "-f", "/tmp/rbuild-1.json", "build", "--no-cache", "--pull"}, runner.calls[0].Args)
	assert.Same(t, &out, runner.calls[0].Stream)
	assert.True(t, runner.deadline[0])
}

func TestAdapter_Up(t *testing.T) {
	runner := &fakeRunner{}
	a := NewAdapter(Config{CommandTimeout: time.Minute}, runner)

	err := a.Up(context.Background(), "/tmp/rbuild-1.json", ports.UpOptions{
		RemoveOrphans: true,
		Detach:        true,
		WaitTimeout:   90 * time.Second,
	})

	require.NoError(t, err)
	require.Len(t, runner.calls, 1)
	assert.Equal(t, []string{
		"compose", "-f", "/tmp/rbuild-1.json", "up",
		"--remove-orphans", "--detach", "--wait", "--wait-timeout", "90",
	}, runner.calls[0].Args)
	assert.False(t, runner.deadline[0], "bring-up is bounded by its wait timeout only")
}

func TestAdapter_String(t *testing.T) {
	assert.Equal(t, "podman compose", NewAdapter(Config{Binary: "podman"}, &fakeRunner{}).String())
	assert.Equal(t, "docker compose", NewAdapter(Config{}, &fakeRunner{}).String())
}
