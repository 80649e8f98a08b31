package backend

import "errors"

var (
	// ErrToolNotFound is returned when the required external tool is not on PATH
	ErrToolNotFound = errors.New("required tool not found")

	// ErrCommandFailed is returned when the external command exits non-zero
	ErrCommandFailed = errors.New("command execution failed")

	// ErrTimeout is returned when the external command exceeds its time bound
	ErrTimeout = errors.New("command timed out")
)
