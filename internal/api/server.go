// Package api provides the loopback HTTP API that exposes screen capture,
// input injection and window control to local callers.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"screenbridge/internal/capture"
	"screenbridge/internal/input"
	"screenbridge/internal/liveness"
	"screenbridge/internal/window"
)

// ServiceName identifies the bridge on /health
const ServiceName = "screencontrol-gui-bridge"

// DefaultMaxBody caps POST bodies when Options.MaxBody is zero
const DefaultMaxBody = 1 << 20

// Capturer produces encoded screen images
type Capturer interface {
	Capture(ctx context.Context, format capture.Format, quality int) (*capture.Result, error)
}

// Windows lists and focuses top-level windows
type Windows interface {
	List(ctx context.Context) []window.Info
	Focus(ctx context.Context, id string) error
}

// StatusSource reports the control service liveness
type StatusSource interface {
	Status() liveness.Status
	Subscribe() (<-chan liveness.Status, func())
}

// Capabilities describes how the bridge reaches the desktop
type Capabilities struct {
	Session          string `json:"session"`
	CaptureStrategy  string `json:"capture_strategy"`
	DisplayConnected bool   `json:"display_connected"`
	Degraded         bool   `json:"degraded"`

	// Screen size from the X11 connection; zero in degraded mode
	ScreenWidth  int `json:"screen_width"`
	ScreenHeight int `json:"screen_height"`
}

// Deps are the adapters the server dispatches to
type Deps struct {
	Capturer Capturer
	Input    input.Controller
	Windows  Windows
	Liveness StatusSource
}

// Options tunes the server
type Options struct {
	MaxBody      int64
	Capabilities Capabilities
	Logger       *slog.Logger
}

// Server provides the bridge HTTP API
type Server struct {
	capturer Capturer
	input    input.Controller
	windows  Windows
	liveness StatusSource
	caps     Capabilities
	maxBody  int64
	logger   *slog.Logger

	hub *statusHub

	mu         sync.Mutex
	listener   net.Listener
	httpServer *http.Server
	hubCancel  context.CancelFunc
}

// NewServer creates a new API server
func NewServer(deps Deps, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	maxBody := opts.MaxBody
	if maxBody <= 0 {
		maxBody = DefaultMaxBody
	}
	s := &Server{
		capturer: deps.Capturer,
		input:    deps.Input,
		windows:  deps.Windows,
		liveness: deps.Liveness,
		caps:     opts.Capabilities,
		maxBody:  maxBody,
		logger:   logger,
	}
	s.hub = newStatusHub(s.liveness, logger)
	return s
}

// Handler returns the routed handler with all middleware applied
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(s.recoverMiddleware, corsMiddleware, s.logMiddleware)

	r.Get("/health", s.handleHealth)
	r.Get("/status", s.handleStatus)
	r.Get("/status/stream", s.hub.handleWebSocket)
	r.Get("/screenshot", s.handleScreenshot)
	r.Get("/mouse/position", s.handleMousePosition)
	r.Get("/ui/windows", s.handleWindows)

	r.Post("/click", s.handleClick)
	r.Post("/double_click", s.handleDoubleClick)
	r.Post("/mouse/move", s.handleMouseMove)
	r.Post("/mouse/scroll", s.handleScroll)
	r.Post("/mouse/drag", s.handleDrag)
	r.Post("/keyboard/type", s.handleTypeText)
	r.Post("/keyboard/key", s.handlePressKey)
	r.Post("/ui/focus", s.handleFocus)

	r.NotFound(handleNotFound)
	r.MethodNotAllowed(handleNotFound)
	return r
}

// Listen binds the loopback interface. Port 0 picks a free port.
func (s *Server) Listen(port int) error {
	addr := fmt.Sprintf("127.0.0.1:%d", port)
	ln, err := net.Listen("tcp4", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.listener = ln
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return nil
}

// Addr returns the bound address, or nil before Listen
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Serve handles connections until Stop. Each request runs on its own goroutine.
func (s *Server) Serve() error {
	s.mu.Lock()
	ln, srv := s.listener, s.httpServer
	if ln == nil {
		s.mu.Unlock()
		return errors.New("api server: Serve called before Listen")
	}
	hubCtx, cancel := context.WithCancel(context.Background())
	s.hubCancel = cancel
	s.mu.Unlock()

	go s.hub.run(hubCtx)

	s.logger.Info("GUI bridge server started", "addr", ln.Addr().String())
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.logger.Error("API server stopped", "error", err)
		return err
	}
	return nil
}

// Start listens on port and serves; it blocks until Stop
func (s *Server) Start(port int) error {
	if err := s.Listen(port); err != nil {
		return err
	}
	return s.Serve()
}

// Stop shuts the server down, waiting for in-flight requests until ctx expires
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv, cancel := s.httpServer, s.hubCancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if srv == nil {
		return nil
	}
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown API server: %w", err)
	}
	s.logger.Info("GUI bridge server stopped")
	return nil
}
