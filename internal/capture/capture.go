// Package capture produces full-screen images through the session's capture tool.
package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"

	"screenbridge/internal/backend"
	"screenbridge/internal/display"
)

// Options configures a Capturer
type Options struct {
	// Session decides the backend strategy
	Session display.Session

	// TempDir holds the per-request capture files; empty means os.TempDir()
	TempDir string

	Logger *slog.Logger
}

// Capturer takes screenshots using the strategy chosen at construction
type Capturer struct {
	runner   backend.Runner
	strategy Strategy
	tempDir  string
	logger   *slog.Logger
}

// New creates a Capturer and resolves its strategy once
func New(runner backend.Runner, opts Options) *Capturer {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	c := &Capturer{
		runner:   runner,
		strategy: SelectStrategy(opts.Session, runner),
		tempDir:  opts.TempDir,
		logger:   logger,
	}
	logger.Info("capture backend selected", "session", opts.Session.String(), "strategy", c.strategy.String())
	return c
}

// Strategy returns the backend strategy in use
func (c *Capturer) Strategy() Strategy {
	return c.strategy
}

// Capture grabs the whole screen and returns it encoded as format.
// Every failure wraps ErrCapture.
func (c *Capturer) Capture(ctx context.Context, format Format, quality int) (*Result, error) {
	if format != FormatJPEG && format != FormatPNG {
		return nil, fmt.Errorf("%w: %w: %q", ErrCapture, ErrUnsupportedFormat, format)
	}

	f, err := os.CreateTemp(c.tempDir, "screenbridge-*.png")
	if err != nil {
		return nil, fmt.Errorf("%w: create temp file: %w", ErrCapture, err)
	}
	path := f.Name()
	f.Close()
	defer func() {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			c.logger.Warn("failed to remove capture file", "path", path, "error", err)
		}
	}()

	if err := c.grab(ctx, path); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCapture, err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read capture: %w", ErrCapture, err)
	}
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %w: %v", ErrCapture, ErrDecode, err)
	}

	res, err := Encode(img, format, quality)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCapture, err)
	}
	return res, nil
}

// grab writes a PNG of the full screen to path
func (c *Capturer) grab(ctx context.Context, path string) error {
	switch c.strategy {
	case StrategyWaylandGrim:
		_, err := c.runner.Run(ctx, toolGrim, path)
		if err == nil {
			return nil
		}
		c.logger.Warn("grim failed, falling back to gnome-screenshot", "error", err)
		_, err = c.runner.Run(ctx, toolGnomeScreenshot, "-f", path)
		return err
	case StrategyWaylandFallback:
		_, err := c.runner.Run(ctx, toolGnomeScreenshot, "-f", path)
		return err
	default:
		_, err := c.runner.Run(ctx, toolScrot, "-o", path)
		return err
	}
}
