// Package client talks to the POS backend over HTTP. This file defines the
// error type used to classify failures at the reconciliation boundary.
package client

import (
	"errors"
	"fmt"
)

// APIError is a response the backend actually produced with a non-success
// status. Its class decides what the reconciler does with a queued entry:
// 4xx means the payload itself was refused and retrying it verbatim can
// never succeed; 5xx means the backend was unhealthy and a later retry may.
type APIError struct {
	StatusCode int
	Message    string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("backend returned %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("backend returned %d", e.StatusCode)
}

// Permanent reports whether the backend rejected the request itself (4xx).
func (e *APIError) Permanent() bool {
	return e.StatusCode >= 400 && e.StatusCode < 500
}

// IsPermanent reports whether err is a backend rejection that will never
// succeed on retry. Transport errors and 5xx responses are not permanent.
func IsPermanent(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Permanent()
}

// IsTransient reports whether err is worth retrying on a later drain:
// any transport-level failure, or a 5xx from the backend.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return !apiErr.Permanent()
	}
	// No HTTP response at all: the request never reached a healthy backend.
	return true
}
