package main

import (
	"log/slog"
	"os"

	"screenbridge/internal/api"
	"screenbridge/internal/backend"
	"screenbridge/internal/capture"
	"screenbridge/internal/config"
	"screenbridge/internal/display"
	"screenbridge/internal/input"
	"screenbridge/internal/liveness"
	"screenbridge/internal/window"
)

// requiredTools must be installed for the default X11 setup
var requiredTools = []string{"xdotool", "scrot"}

// optionalTools are used on Wayland or for window control
var optionalTools = []string{"grim", "gnome-screenshot", "wmctrl"}

// app holds the wired components of one bridge process
type app struct {
	server   *api.Server
	reporter *liveness.Reporter
}

// newApp wires the adapters to the API server. A nil handle means the
// adapters run through external tools only.
func newApp(cfg *config.Config, logger *slog.Logger, runner backend.Runner, session display.Session, handle *display.Handle) *app {
	var pointer input.PointerSource
	if handle.Connected() {
		pointer = handle
	}

	capturer := capture.New(runner, capture.Options{
		Session: session,
		Logger:  logger,
	})
	injector := input.NewInjector(runner, pointer, logger)
	windows := window.NewManager(runner, logger)
	reporter := liveness.NewReporter(liveness.Options{
		URL:      cfg.ServiceHealthURL(),
		Interval: cfg.PollInterval,
		Timeout:  cfg.PollTimeout,
	}, logger)

	width, height := handle.Size()
	server := api.NewServer(api.Deps{
		Capturer: capturer,
		Input:    injector,
		Windows:  windows,
		Liveness: reporter,
	}, api.Options{
		MaxBody: int64(cfg.MaxBody.Bytes()),
		Logger:  logger,
		Capabilities: api.Capabilities{
			Session:          session.String(),
			CaptureStrategy:  capturer.Strategy().String(),
			DisplayConnected: handle.Connected(),
			ScreenWidth:      width,
			ScreenHeight:     height,
		},
	})

	return &app{server: server, reporter: reporter}
}

// openDisplay connects to X11 when enabled and the session is X11.
// Failure is logged and yields a nil handle.
func openDisplay(cfg *config.Config, session display.Session, logger *slog.Logger) *display.Handle {
	if !cfg.X11 || session != display.SessionX11 || os.Getenv("DISPLAY") == "" {
		logger.Info("X11 connection disabled, running in degraded mode", "session", session.String())
		return nil
	}
	handle, err := display.Open(logger)
	if err != nil {
		logger.Warn("X11 display unavailable, running in degraded mode", "error", err)
		return nil
	}
	return handle
}

// warnMissingTools logs the startup tool check
func warnMissingTools(runner backend.Runner, logger *slog.Logger) []string {
	missing := backend.Missing(runner, requiredTools...)
	if len(missing) > 0 {
		logger.Warn("missing tools, some features may not work", "tools", missing)
	}
	return missing
}
