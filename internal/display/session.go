// Package display detects the desktop session type and holds the optional
// long-lived X11 connection used for direct protocol queries.
package display

import "strings"

// Session is the kind of display server the desktop session runs on
type Session int

const (
	// SessionX11 is a legacy X11 session (also assumed when the type is unknown)
	SessionX11 Session = iota

	// SessionWayland is a compositor-managed Wayland session
	SessionWayland
)

// String returns the session name as XDG_SESSION_TYPE spells it
func (s Session) String() string {
	switch s {
	case SessionWayland:
		return "wayland"
	default:
		return "x11"
	}
}

// DetectSession inspects XDG_SESSION_TYPE through getenv
func DetectSession(getenv func(string) string) Session {
	if strings.EqualFold(strings.TrimSpace(getenv("XDG_SESSION_TYPE")), "wayland") {
		return SessionWayland
	}
	return SessionX11
}
