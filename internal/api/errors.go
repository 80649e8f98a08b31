package api

import "errors"

var (
	errInternal         = errors.New("internal server error")
	errMalformedRequest = errors.New("malformed request body")
	errNoCapturer       = errors.New("screen capture is not configured")
)
