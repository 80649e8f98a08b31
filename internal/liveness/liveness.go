// Package liveness polls the local control service and reports whether it is
// reachable and healthy.
package liveness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// State is the coarse result of the last health check
type State int

const (
	StateUnknown State = iota
	StateConnected
	StateDisconnected
)

// String returns the state name used in JSON payloads
func (s State) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

const (
	// ReasonUnhealthy means the service answered with a non-200 status
	ReasonUnhealthy = "unhealthy"

	// ReasonNotRunning means the service could not be reached at all
	ReasonNotRunning = "not running"
)

// Status is a snapshot of the control service health
type Status struct {
	State     State
	Reason    string
	CheckedAt time.Time
}

// Connected reports whether the last check succeeded
func (s Status) Connected() bool {
	return s.State == StateConnected
}

// Label returns the indicator text for the status
func (s Status) Label() string {
	switch {
	case s.State == StateConnected:
		return "Status: Connected"
	case s.State == StateUnknown:
		return "Status: Checking..."
	case s.Reason == ReasonNotRunning:
		return "Status: Service not running"
	default:
		return "Status: Disconnected"
	}
}

// Options configures a Reporter
type Options struct {
	// URL is the health endpoint, e.g. http://127.0.0.1:3459/health
	URL      string
	Interval time.Duration
	Timeout  time.Duration
	Client   *http.Client
}

// Reporter polls the health endpoint on a fixed interval
type Reporter struct {
	url      string
	interval time.Duration
	client   *http.Client
	logger   *slog.Logger

	mu     sync.RWMutex
	status Status
	subs   map[chan Status]struct{}
}

// NewReporter creates a reporter; call Run to start polling
func NewReporter(opts Options, logger *slog.Logger) *Reporter {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Interval <= 0 {
		opts.Interval = 5 * time.Second
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 2 * time.Second
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}
	return &Reporter{
		url:      opts.URL,
		interval: opts.Interval,
		client:   client,
		logger:   logger,
		subs:     make(map[chan Status]struct{}),
	}
}

// Run checks immediately and then every interval until ctx is done
func (r *Reporter) Run(ctx context.Context) error {
	r.logger.Info("liveness reporter started", "url", r.url, "interval", r.interval)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.Check(ctx)
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("liveness reporter stopped")
			return nil
		case <-ticker.C:
			r.Check(ctx)
		}
	}
}

// Check performs one health request and records the result. It never panics.
func (r *Reporter) Check(ctx context.Context) Status {
	var st Status
	func() {
		defer func() {
			if rec := recover(); rec != nil {
				r.logger.Error("health check panicked", "panic", rec)
				st = Status{State: StateDisconnected, Reason: ReasonNotRunning}
			}
		}()
		st = r.probe(ctx)
	}()
	st.CheckedAt = time.Now()
	r.set(st)
	return st
}

func (r *Reporter) probe(ctx context.Context) Status {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.url, nil)
	if err != nil {
		r.logger.Debug("health check failed", "error", err)
		return Status{State: StateDisconnected, Reason: ReasonNotRunning}
	}
	resp, err := r.client.Do(req)
	if err != nil {
		r.logger.Debug("health check failed", "error", err)
		return Status{State: StateDisconnected, Reason: ReasonNotRunning}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode != http.StatusOK {
		r.logger.Debug("health check unhealthy", "status", resp.StatusCode)
		return Status{State: StateDisconnected, Reason: fmt.Sprintf("%s (HTTP %d)", ReasonUnhealthy, resp.StatusCode)}
	}
	return Status{State: StateConnected}
}

func (r *Reporter) set(st Status) {
	r.mu.Lock()
	prev := r.status
	r.status = st
	subs := make([]chan Status, 0, len(r.subs))
	for ch := range r.subs {
		subs = append(subs, ch)
	}
	r.mu.Unlock()

	if prev.State != st.State || prev.Reason != st.Reason {
		r.logger.Info("control service status changed", "state", st.State.String(), "reason", st.Reason)
		for _, ch := range subs {
			offer(ch, st)
		}
	}
}

// offer delivers st, replacing an undelivered older value
func offer(ch chan Status, st Status) {
	for {
		select {
		case ch <- st:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

// Status returns the latest result
func (r *Reporter) Status() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.status
}

// Subscribe returns a channel receiving each status change and a cancel func.
// A slow reader only ever sees the newest status.
func (r *Reporter) Subscribe() (<-chan Status, func()) {
	ch := make(chan Status, 1)
	r.mu.Lock()
	r.subs[ch] = struct{}{}
	r.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			r.mu.Lock()
			delete(r.subs, ch)
			r.mu.Unlock()
		})
	}
}
