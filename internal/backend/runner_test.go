package backend

import (
	"context"
	"errors"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireTool(t *testing.T, name string) {
	t.Helper()
	if _, err := exec.LookPath(name); err != nil {
		t.Skipf("%s not available", name)
	}
}

func TestRunReturnsStdout(t *testing.T) {
	requireTool(t, "echo")
	r := NewExecRunner(time.Second, nil)

	out, err := r.Run(context.Background(), "echo", "hello")
	require.NoError(t, err)
	assert.Equal(t, "hello\n", string(out))
}

func TestRunMissingTool(t *testing.T) {
	r := NewExecRunner(time.Second, nil)

	_, err := r.Run(context.Background(), "screenbridge-no-such-tool")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrToolNotFound))
	assert.False(t, r.Available("screenbridge-no-such-tool"))
}

func TestRunNonZeroExit(t *testing.T) {
	requireTool(t, "sh")
	r := NewExecRunner(time.Second, nil)

	_, err := r.Run(context.Background(), "sh", "-c", "echo boom >&2; exit 3")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCommandFailed))
	assert.Contains(t, err.Error(), "boom")
}

func TestRunTimeout(t *testing.T) {
	requireTool(t, "sleep")
	r := NewExecRunner(100*time.Millisecond, nil)

	start := time.Now()
	_, err := r.Run(context.Background(), "sleep", "5")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTimeout))
	assert.Less(t, time.Since(start), 3*time.Second)
}

func TestMissing(t *testing.T) {
	r := &ExecRunner{lookPath: func(name string) (string, error) {
		if name == "xdotool" {
			return "/usr/bin/xdotool", nil
		}
		return "", exec.ErrNotFound
	}}

	assert.Equal(t, []string{"scrot", "wmctrl"}, Missing(r, "xdotool", "scrot", "wmctrl"))
	assert.Empty(t, Missing(r, "xdotool"))
}
