package capture

import (
	"screenbridge/internal/backend"
	"screenbridge/internal/display"
)

// Strategy is the capture backend selected once at construction
type Strategy int

const (
	// StrategyX11Scrot captures with scrot; a failure is final
	StrategyX11Scrot Strategy = iota

	// StrategyWaylandGrim captures with grim and falls back to gnome-screenshot
	StrategyWaylandGrim

	// StrategyWaylandFallback captures with gnome-screenshot only (grim is absent)
	StrategyWaylandFallback
)

const (
	toolScrot           = "scrot"
	toolGrim            = "grim"
	toolGnomeScreenshot = "gnome-screenshot"
)

// String returns a short strategy name for logs and status output
func (s Strategy) String() string {
	switch s {
	case StrategyWaylandGrim:
		return "wayland-grim"
	case StrategyWaylandFallback:
		return "wayland-gnome-screenshot"
	default:
		return "x11-scrot"
	}
}

// SelectStrategy picks the capture backend for the session
func SelectStrategy(session display.Session, runner backend.Runner) Strategy {
	if session != display.SessionWayland {
		return StrategyX11Scrot
	}
	if runner.Available(toolGrim) {
		return StrategyWaylandGrim
	}
	return StrategyWaylandFallback
}
