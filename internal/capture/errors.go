package capture

import "errors"

var (
	// ErrCapture wraps every failure surfaced by Capture
	ErrCapture = errors.New("screenshot failed")

	// ErrDecode is returned when the captured file is not a readable image
	ErrDecode = errors.New("cannot decode captured image")

	// ErrUnsupportedFormat is returned for output formats other than jpeg and png
	ErrUnsupportedFormat = errors.New("unsupported image format")
)
