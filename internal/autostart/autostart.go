// Package autostart manages the XDG autostart entry that launches the bridge on login.
package autostart

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"text/template"
)

// FileName is the autostart entry name under $XDG_CONFIG_HOME/autostart
const FileName = "screencontrol-tray.desktop"

const desktopEntry = `[Desktop Entry]
Type=Application
Name=ScreenControl Tray
Comment=ScreenControl system tray application
Exec={{.ExecutablePath}}{{range .Args}} {{.}}{{end}}
Icon=network-transmit-receive
Terminal=false
Categories=Utility;
StartupNotify=false
X-GNOME-Autostart-enabled=true
`

var entryTemplate = template.Must(template.New("desktop").Parse(desktopEntry))

// Path returns the location of the autostart entry
func Path() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate config dir: %w", err)
	}
	return filepath.Join(dir, "autostart", FileName), nil
}

// Enable enables auto-start on login for the running executable
func Enable(args ...string) error {
	execPath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get executable path: %w", err)
	}
	return EnableFor(execPath, args...)
}

// EnableFor writes an autostart entry launching execPath with args
func EnableFor(execPath string, args ...string) error {
	path, err := Path()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := entryTemplate.Execute(&buf, struct {
		ExecutablePath string
		Args           []string
	}{execPath, args}); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

// Disable disables auto-start on login. Removing a missing entry is not an error.
func Disable() error {
	path, err := Path()
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// IsEnabled checks if auto-start is enabled
func IsEnabled() bool {
	path, err := Path()
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}
