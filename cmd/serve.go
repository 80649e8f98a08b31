package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"screenbridge/internal/autostart"
	"screenbridge/internal/backend"
	"screenbridge/internal/config"
	"screenbridge/internal/display"
	"screenbridge/internal/liveness"
	"screenbridge/internal/logging"
	"screenbridge/internal/tray"
)

const shutdownTimeout = 5 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the GUI bridge (default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd)
		},
	}
}

func runServe(cmd *cobra.Command) error {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return err
	}

	logs, err := logging.New(logging.Options{
		Level:   cfg.LogLevel,
		File:    cfg.LogFile,
		Console: cmd.ErrOrStderr(),
	})
	if err != nil {
		return err
	}
	defer logs.Close()
	logger := logs.Logger

	logger.Info("screenbridge starting", "version", version, "port", cfg.BridgePort)

	runner := backend.NewExecRunner(cfg.CommandTimeout, logger)
	warnMissingTools(runner, logger)

	session := display.DetectSession(os.Getenv)
	handle := openDisplay(cfg, session, logger)
	a := newApp(cfg, logger, runner, session, handle)

	if err := a.server.Listen(cfg.BridgePort); err != nil {
		logger.Error("failed to start GUI bridge server", "error", err)
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(a.server.Serve)
	g.Go(func() error {
		return a.reporter.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, done := context.WithTimeout(context.Background(), shutdownTimeout)
		defer done()
		return a.server.Stop(shutdownCtx)
	})

	if cfg.Tray {
		// systray needs the main goroutine
		runTray(gctx, a.reporter, logger)
		cancel()
	}

	err = g.Wait()
	logger.Info("screenbridge stopped")
	return err
}

// runTray shows the status indicator until ctx is done or Quit is chosen
func runTray(ctx context.Context, reporter *liveness.Reporter, logger *slog.Logger) {
	t := tray.New("ScreenControl", "ScreenControl GUI bridge", logger)

	statusID := t.AddStatusItem(reporter.Status().Label())
	t.AddSeparator()
	var autostartID int
	autostartID = t.AddMenuItem("Start automatically at login", func() {
		if err := toggleAutostart(); err != nil {
			logger.Error("failed to change autostart", "error", err)
		}
		t.SetItemChecked(autostartID, autostart.IsEnabled())
	})
	t.SetItemChecked(autostartID, autostart.IsEnabled())
	t.AddSeparator()
	t.AddMenuItem("Quit", t.Stop)

	updates, unsubscribe := reporter.Subscribe()
	defer unsubscribe()
	t.ShowStatus(statusID, reporter.Status())
	go t.FollowStatus(ctx, updates, statusID)

	go func() {
		select {
		case <-ctx.Done():
			<-t.Ready()
			t.Stop()
		case <-t.Done():
		}
	}()

	logger.Info("tray starting")
	t.Run()
}

func toggleAutostart() error {
	if autostart.IsEnabled() {
		return autostart.Disable()
	}
	return autostart.Enable("serve")
}
