// Package window lists and focuses top-level windows through wmctrl.
package window

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode"

	"screenbridge/internal/backend"
)

const toolWmctrl = "wmctrl"

// Info describes one top-level window as wmctrl reports it
type Info struct {
	ID      string `json:"id"`
	Desktop string `json:"desktop"`
	PID     string `json:"pid"`
	Machine string `json:"machine"`
	Title   string `json:"title"`
}

// Manager enumerates and focuses windows
type Manager struct {
	runner backend.Runner
	logger *slog.Logger
}

// NewManager creates a window manager backed by wmctrl
func NewManager(runner backend.Runner, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{runner: runner, logger: logger}
}

// List returns the windows in wmctrl's order. Backend errors yield an empty list.
func (m *Manager) List(ctx context.Context) []Info {
	out, err := m.runner.Run(ctx, toolWmctrl, "-l", "-p")
	if err != nil {
		m.logger.Error("get windows failed", "error", err)
		return []Info{}
	}
	return ParseList(string(out))
}

// Focus activates the window with the given wmctrl id
func (m *Manager) Focus(ctx context.Context, id string) error {
	if _, err := m.runner.Run(ctx, toolWmctrl, "-i", "-a", id); err != nil {
		return fmt.Errorf("focus window %s: %w", id, err)
	}
	return nil
}

// ParseList parses `wmctrl -l -p` output. The first four fields are id,
// desktop, pid and machine; the rest of the line is the title, spaces included.
// Lines with fewer than five fields are skipped.
func ParseList(out string) []Info {
	windows := []Info{}
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimRight(line, "\r")
		parts := splitN(line, 5)
		if len(parts) < 5 {
			continue
		}
		windows = append(windows, Info{
			ID:      parts[0],
			Desktop: parts[1],
			PID:     parts[2],
			Machine: parts[3],
			Title:   parts[4],
		})
	}
	return windows
}

// splitN splits on whitespace runs into at most n parts; the last part keeps
// its inner whitespace.
func splitN(s string, n int) []string {
	var parts []string
	rest := strings.TrimLeftFunc(s, unicode.IsSpace)
	for rest != "" && len(parts) < n-1 {
		i := strings.IndexFunc(rest, unicode.IsSpace)
		if i < 0 {
			break
		}
		parts = append(parts, rest[:i])
		rest = strings.TrimLeftFunc(rest[i:], unicode.IsSpace)
	}
	if rest != "" {
		parts = append(parts, rest)
	}
	return parts
}
