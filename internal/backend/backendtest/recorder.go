// Package backendtest provides a recording backend.Runner for tests.
package backendtest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"screenbridge/internal/backend"
)

// Call is one recorded tool invocation
type Call struct {
	Name string
	Args []string
}

// String renders the call as a command line
func (c Call) String() string {
	if len(c.Args) == 0 {
		return c.Name
	}
	return c.Name + " " + strings.Join(c.Args, " ")
}

// Recorder records every invocation and answers through Handler
type Recorder struct {
	mu    sync.Mutex
	calls []Call

	// Handler produces the tool output; nil means success with empty output
	Handler func(call Call) ([]byte, error)

	// Missing lists tools reported as unavailable
	Missing map[string]bool
}

var _ backend.Runner = (*Recorder)(nil)

// Run records the call and dispatches to Handler
func (r *Recorder) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	call := Call{Name: name, Args: append([]string(nil), args...)}

	r.mu.Lock()
	r.calls = append(r.calls, call)
	handler := r.Handler
	missing := r.Missing[name]
	r.mu.Unlock()

	if missing {
		return nil, fmt.Errorf("%w: %s", backend.ErrToolNotFound, name)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if handler == nil {
		return nil, nil
	}
	return handler(call)
}

// Available reports false only for tools listed in Missing
func (r *Recorder) Available(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return !r.Missing[name]
}

// Calls returns a copy of the recorded invocations
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

// Lines returns the recorded invocations as command lines
func (r *Recorder) Lines() []string {
	calls := r.Calls()
	lines := make([]string, len(calls))
	for i, c := range calls {
		lines[i] = c.String()
	}
	return lines
}

// Reset forgets all recorded invocations
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = nil
}

// Fail returns a handler that fails every invocation of tool and succeeds otherwise
func Fail(tool string) func(Call) ([]byte, error) {
	return func(c Call) ([]byte, error) {
		if c.Name == tool {
			return nil, fmt.Errorf("%w: %s: exit status 1", backend.ErrCommandFailed, tool)
		}
		return nil, nil
	}
}
