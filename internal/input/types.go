// Package input injects pointer and keyboard events through xdotool.
package input

import (
	"context"
	"strings"
)

// Button is a mouse button name as sent by API callers
type Button string

const (
	ButtonLeft   Button = "left"
	ButtonRight  Button = "right"
	ButtonMiddle Button = "middle"
)

// Index returns the X button number. Unknown names map to the left button.
func (b Button) Index() int {
	switch b {
	case ButtonRight:
		return 3
	case ButtonMiddle:
		return 2
	default:
		return 1
	}
}

// ScrollDirection is the wheel direction
type ScrollDirection string

const (
	ScrollDown ScrollDirection = "down"
	ScrollUp   ScrollDirection = "up"
)

// Index returns the X wheel button number; anything but "down" scrolls up
func (d ScrollDirection) Index() int {
	if d == ScrollDown {
		return 5
	}
	return 4
}

// DefaultScrollAmount is the wheel click count when the caller gives none
const DefaultScrollAmount = 3

var keySyms = map[string]string{
	"enter":     "Return",
	"return":    "Return",
	"tab":       "Tab",
	"escape":    "Escape",
	"esc":       "Escape",
	"backspace": "BackSpace",
	"delete":    "Delete",
	"space":     "space",
	"up":        "Up",
	"down":      "Down",
	"left":      "Left",
	"right":     "Right",
	"home":      "Home",
	"end":       "End",
	"pageup":    "Page_Up",
	"pagedown":  "Page_Down",
}

// KeySym maps an informal key name to its X keysym. Unknown names pass through unchanged.
func KeySym(name string) string {
	if sym, ok := keySyms[strings.ToLower(name)]; ok {
		return sym
	}
	return name
}

// PointerSource answers pointer queries without spawning a process
type PointerSource interface {
	Connected() bool
	Pointer() (int, int, error)
}

// Controller is the set of pointer and keyboard operations the bridge exposes
type Controller interface {
	MoveMouse(ctx context.Context, x, y int) error
	Click(ctx context.Context, x, y int, button Button) error
	DoubleClick(ctx context.Context, x, y int) error
	Scroll(ctx context.Context, direction ScrollDirection, amount int) error
	Drag(ctx context.Context, startX, startY, endX, endY int) error
	TypeText(ctx context.Context, text string) error
	PressKey(ctx context.Context, key string) error
	Position(ctx context.Context) (int, int, error)
}
