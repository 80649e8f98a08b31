package input

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"screenbridge/internal/backend"
)

const toolXdotool = "xdotool"

// Injector drives xdotool. Click-style primitives act on the current pointer
// location, so every positional operation warps the pointer first.
type Injector struct {
	runner  backend.Runner
	display PointerSource
	logger  *slog.Logger
}

var _ Controller = (*Injector)(nil)

// NewInjector creates an injector. display may be nil; position queries then
// always go through xdotool.
func NewInjector(runner backend.Runner, display PointerSource, logger *slog.Logger) *Injector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Injector{runner: runner, display: display, logger: logger}
}

func (i *Injector) xdotool(ctx context.Context, args ...string) ([]byte, error) {
	return i.runner.Run(ctx, toolXdotool, args...)
}

func (i *Injector) warp(ctx context.Context, x, y int) error {
	_, err := i.xdotool(ctx, "mousemove", strconv.Itoa(x), strconv.Itoa(y))
	return err
}

// MoveMouse moves the pointer to absolute screen coordinates
func (i *Injector) MoveMouse(ctx context.Context, x, y int) error {
	if err := i.warp(ctx, x, y); err != nil {
		return fmt.Errorf("mouse move: %w", err)
	}
	return nil
}

// Click clicks button at (x, y)
func (i *Injector) Click(ctx context.Context, x, y int, button Button) error {
	if err := i.warp(ctx, x, y); err != nil {
		return fmt.Errorf("click: %w", err)
	}
	if _, err := i.xdotool(ctx, "click", strconv.Itoa(button.Index())); err != nil {
		return fmt.Errorf("click: %w", err)
	}
	return nil
}

// DoubleClick warps once and lets xdotool repeat the left click so the
// inter-click delay stays under the desktop's double-click threshold.
func (i *Injector) DoubleClick(ctx context.Context, x, y int) error {
	if err := i.warp(ctx, x, y); err != nil {
		return fmt.Errorf("double-click: %w", err)
	}
	if _, err := i.xdotool(ctx, "click", "--repeat", "2", strconv.Itoa(ButtonLeft.Index())); err != nil {
		return fmt.Errorf("double-click: %w", err)
	}
	return nil
}

// Scroll turns the wheel amount clicks at the current pointer position
func (i *Injector) Scroll(ctx context.Context, direction ScrollDirection, amount int) error {
	if _, err := i.xdotool(ctx, "click", "--repeat", strconv.Itoa(amount), strconv.Itoa(direction.Index())); err != nil {
		return fmt.Errorf("scroll: %w", err)
	}
	return nil
}

// Drag presses the left button at the start point and releases it at the end
// point. No intermediate motion events are generated.
func (i *Injector) Drag(ctx context.Context, startX, startY, endX, endY int) error {
	left := strconv.Itoa(ButtonLeft.Index())
	steps := [][]string{
		{"mousemove", strconv.Itoa(startX), strconv.Itoa(startY)},
		{"mousedown", left},
		{"mousemove", strconv.Itoa(endX), strconv.Itoa(endY)},
		{"mouseup", left},
	}
	for n, args := range steps {
		if _, err := i.xdotool(ctx, args...); err != nil {
			if n > 0 {
				i.release(ctx, left)
			}
			return fmt.Errorf("drag: %w", err)
		}
	}
	return nil
}

// release lifts the button after a failed drag so it is not left held down.
// It ignores cancellation of ctx and is bounded by the runner's own timeout.
func (i *Injector) release(ctx context.Context, button string) {
	if _, err := i.xdotool(context.WithoutCancel(ctx), "mouseup", button); err != nil {
		i.logger.Warn("failed to release mouse button after drag", "button", button, "error", err)
	}
}

// TypeText types text literally, with held modifiers cleared
func (i *Injector) TypeText(ctx context.Context, text string) error {
	if _, err := i.xdotool(ctx, "type", "--clearmodifiers", text); err != nil {
		return fmt.Errorf("type text: %w", err)
	}
	return nil
}

// PressKey presses and releases a key given by informal name or keysym
func (i *Injector) PressKey(ctx context.Context, key string) error {
	if _, err := i.xdotool(ctx, "key", KeySym(key)); err != nil {
		return fmt.Errorf("press key %q: %w", key, err)
	}
	return nil
}

// Position returns the pointer location, preferring the X11 connection
func (i *Injector) Position(ctx context.Context) (int, int, error) {
	if i.display != nil && i.display.Connected() {
		x, y, err := i.display.Pointer()
		if err == nil {
			return x, y, nil
		}
		i.logger.Warn("X11 pointer query failed, using xdotool", "error", err)
	}

	out, err := i.xdotool(ctx, "getmouselocation")
	if err != nil {
		return 0, 0, fmt.Errorf("get mouse position: %w", err)
	}
	x, y, err := parseMouseLocation(string(out))
	if err != nil {
		return 0, 0, fmt.Errorf("get mouse position: %w", err)
	}
	return x, y, nil
}

// parseMouseLocation reads "x:123 y:456 screen:0 window:12345"
func parseMouseLocation(out string) (int, int, error) {
	var x, y int
	var haveX, haveY bool
	for _, field := range strings.Fields(out) {
		key, value, ok := strings.Cut(field, ":")
		if !ok {
			continue
		}
		n, err := strconv.Atoi(value)
		if err != nil {
			continue
		}
		switch key {
		case "x":
			x, haveX = n, true
		case "y":
			y, haveY = n, true
		}
	}
	if !haveX || !haveY {
		return 0, 0, fmt.Errorf("unexpected xdotool output %q", strings.TrimSpace(out))
	}
	return x, y, nil
}
