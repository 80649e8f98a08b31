package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"screenbridge/internal/backend"
	"screenbridge/internal/capture"
	"screenbridge/internal/config"
	"screenbridge/internal/display"
	"screenbridge/internal/liveness"
	"screenbridge/internal/logging"
)

func newDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check the desktop tools and the control service",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cmd.Flags())
			if err != nil {
				return err
			}
			logs, err := logging.New(logging.Options{Level: "warn", Console: cmd.ErrOrStderr()})
			if err != nil {
				return err
			}
			defer logs.Close()

			runner := backend.NewExecRunner(cfg.CommandTimeout, logs.Logger)
			reporter := liveness.NewReporter(liveness.Options{
				URL:     cfg.ServiceHealthURL(),
				Timeout: cfg.PollTimeout,
			}, logs.Logger)

			session := display.DetectSession(os.Getenv)
			report := doctorReport{
				Session:  session,
				Strategy: capture.SelectStrategy(session, runner),
				Missing:  backend.Missing(runner, requiredTools...),
				Optional: backend.Missing(runner, optionalTools...),
				Service:  reporter.Check(cmd.Context()),
				URL:      cfg.ServiceHealthURL(),
			}
			if cfg.X11 && session == display.SessionX11 {
				_, err := display.Open(logs.Logger)
				report.X11Err = err
				report.X11Tried = true
			}

			if err := report.write(cmd.OutOrStdout()); err != nil {
				return err
			}
			if len(report.Missing) > 0 {
				return fmt.Errorf("missing required tools: %s", strings.Join(report.Missing, ", "))
			}
			return nil
		},
	}
}

type doctorReport struct {
	Session  display.Session
	Strategy capture.Strategy
	Missing  []string
	Optional []string
	X11Tried bool
	X11Err   error
	Service  liveness.Status
	URL      string
}

func (r doctorReport) write(w io.Writer) error {
	var b strings.Builder
	fmt.Fprintf(&b, "session:          %s\n", r.Session)
	fmt.Fprintf(&b, "capture strategy: %s\n", r.Strategy)
	switch {
	case !r.X11Tried:
		fmt.Fprintf(&b, "x11 connection:   skipped\n")
	case r.X11Err != nil:
		fmt.Fprintf(&b, "x11 connection:   unavailable (%v)\n", r.X11Err)
	default:
		fmt.Fprintf(&b, "x11 connection:   ok\n")
	}
	if len(r.Missing) == 0 {
		fmt.Fprintf(&b, "required tools:   ok\n")
	} else {
		fmt.Fprintf(&b, "required tools:   missing %s\n", strings.Join(r.Missing, ", "))
		fmt.Fprintf(&b, "                  install with: sudo apt install %s\n", strings.Join(r.Missing, " "))
	}
	if len(r.Optional) == 0 {
		fmt.Fprintf(&b, "optional tools:   ok\n")
	} else {
		fmt.Fprintf(&b, "optional tools:   missing %s\n", strings.Join(r.Optional, ", "))
	}
	fmt.Fprintf(&b, "control service:  %s (%s)\n", strings.TrimPrefix(r.Service.Label(), "Status: "), r.URL)
	_, err := io.WriteString(w, b.String())
	return err
}
