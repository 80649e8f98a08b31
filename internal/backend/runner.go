// Package backend runs the external desktop tools (xdotool, scrot, grim, wmctrl)
// that perform capture, input and window operations.
package backend

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"
)

// DefaultTimeout bounds a single backend invocation when no timeout is configured
const DefaultTimeout = 10 * time.Second

// Runner invokes an external tool and returns its standard output
type Runner interface {
	// Run executes name with args and returns stdout. A non-zero exit is an error.
	Run(ctx context.Context, name string, args ...string) ([]byte, error)

	// Available reports whether the tool can be found
	Available(name string) bool
}

// ExecRunner runs tools as child processes, each under its own time bound
type ExecRunner struct {
	timeout  time.Duration
	logger   *slog.Logger
	lookPath func(string) (string, error)
}

// NewExecRunner creates a runner that kills any tool running longer than timeout
func NewExecRunner(timeout time.Duration, logger *slog.Logger) *ExecRunner {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ExecRunner{
		timeout:  timeout,
		logger:   logger,
		lookPath: exec.LookPath,
	}
}

// Available reports whether name resolves on PATH
func (r *ExecRunner) Available(name string) bool {
	_, err := r.lookPath(name)
	return err == nil
}

// Run executes the tool and waits for it to exit
func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	path, err := r.lookPath(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	configureProcessGroup(cmd)

	start := time.Now()
	err = cmd.Run()
	r.logger.Debug("backend command finished",
		"tool", name,
		"args", args,
		"duration_ms", time.Since(start).Milliseconds(),
		"error", err)

	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %s after %s", ErrTimeout, name, r.timeout)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%s: %w", name, ctxErr)
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return nil, fmt.Errorf("%w: %s: %v", ErrCommandFailed, name, err)
		}
		return nil, fmt.Errorf("%w: %s: %v: %s", ErrCommandFailed, name, err, msg)
	}
	return stdout.Bytes(), nil
}

// Missing returns the subset of tools that cannot be found
func Missing(r Runner, tools ...string) []string {
	var missing []string
	for _, tool := range tools {
		if !r.Available(tool) {
			missing = append(missing, tool)
		}
	}
	return missing
}
