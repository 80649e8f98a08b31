package tray

import (
	"bytes"
	"context"
	"image/color"
	"image/png"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"screenbridge/internal/liveness"
)

func TestMenuItemIDs(t *testing.T) {
	tr := New("ScreenControl", "tooltip", nil)
	status := tr.AddStatusItem("Status: Checking...")
	tr.AddSeparator()
	quit := tr.AddMenuItem("Quit", func() {})

	assert.Equal(t, 0, status)
	assert.Equal(t, 2, quit)
	assert.Equal(t, "Status: Checking...", tr.ItemTitle(status))
	assert.Empty(t, tr.ItemTitle(1))
	assert.Empty(t, tr.ItemTitle(42))
}

func TestSetItemTitleBeforeRun(t *testing.T) {
	tr := New("ScreenControl", "", nil)
	id := tr.AddStatusItem("Status: Checking...")

	tr.SetItemTitle(id, "Status: Connected")
	tr.SetItemTitle(-1, "ignored")
	tr.SetItemChecked(id, true)

	assert.Equal(t, "Status: Connected", tr.ItemTitle(id))
}

func TestFollowStatus(t *testing.T) {
	tr := New("ScreenControl", "", nil)
	id := tr.AddStatusItem("Status: Checking...")

	updates := make(chan liveness.Status, 1)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		tr.FollowStatus(ctx, updates, id)
		close(done)
	}()

	updates <- liveness.Status{State: liveness.StateConnected}
	require.Eventually(t, func() bool { return tr.ItemTitle(id) == "Status: Connected" }, time.Second, 5*time.Millisecond)
	assert.Equal(t, StatusIcon(true), tr.Icon())

	updates <- liveness.Status{State: liveness.StateDisconnected, Reason: liveness.ReasonNotRunning}
	require.Eventually(t, func() bool { return tr.ItemTitle(id) == "Status: Service not running" }, time.Second, 5*time.Millisecond)
	assert.Equal(t, StatusIcon(false), tr.Icon())

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("FollowStatus did not return after cancel")
	}
}

func TestStatusIcon(t *testing.T) {
	for _, tc := range []struct {
		connected bool
		want      color.NRGBA
	}{
		{true, connectedColor},
		{false, disconnectedColor},
	} {
		img, err := png.Decode(bytes.NewReader(StatusIcon(tc.connected)))
		require.NoError(t, err)
		assert.Equal(t, iconSize, img.Bounds().Dx())

		center := color.NRGBAModel.Convert(img.At(iconSize/2, iconSize/2)).(color.NRGBA)
		assert.Equal(t, tc.want, center)
		corner := color.NRGBAModel.Convert(img.At(0, 0)).(color.NRGBA)
		assert.Zero(t, corner.A)
	}
}
