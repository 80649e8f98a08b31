package display

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/jezek/xgb"
	"github.com/jezek/xgb/xproto"
)

// ErrNoDisplay is returned by queries on an absent display connection
var ErrNoDisplay = errors.New("no X11 display connection")

// Handle is the process-wide X11 connection. A nil *Handle is valid and
// means degraded mode: every query returns ErrNoDisplay.
type Handle struct {
	conn   *xgb.Conn
	root   xproto.Window
	width  int
	height int
}

// Open connects to the X server named by $DISPLAY. The connection is held for
// the life of the process and is never closed.
func Open(logger *slog.Logger) (*Handle, error) {
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := xgb.NewConn()
	if err != nil {
		return nil, fmt.Errorf("connect to X server: %w", err)
	}

	screen := xproto.Setup(conn).DefaultScreen(conn)
	h := &Handle{
		conn:   conn,
		root:   screen.Root,
		width:  int(screen.WidthInPixels),
		height: int(screen.HeightInPixels),
	}
	logger.Info("X11 display initialized", "width", h.width, "height", h.height)
	return h, nil
}

// Connected reports whether direct protocol calls are possible
func (h *Handle) Connected() bool {
	return h != nil && h.conn != nil
}

// Pointer returns the pointer position relative to the root window
func (h *Handle) Pointer() (int, int, error) {
	if !h.Connected() {
		return 0, 0, ErrNoDisplay
	}
	reply, err := xproto.QueryPointer(h.conn, h.root).Reply()
	if err != nil {
		return 0, 0, fmt.Errorf("query pointer: %w", err)
	}
	return int(reply.RootX), int(reply.RootY), nil
}

// Size returns the default screen dimensions captured at connect time
func (h *Handle) Size() (int, int) {
	if !h.Connected() {
		return 0, 0
	}
	return h.width, h.height
}
