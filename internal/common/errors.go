package common

import (
	"errors"
	"fmt"
	"time"
)

// Common sentinel errors.
var (
	ErrNoText           = errors.New("no text could be extracted")
	ErrUnsupportedInput = errors.New("unsupported input format")
	ErrStoreUnavailable = errors.New("store unavailable")
)

// BackendError wraps a failure from a text-generation backend.
// Transient errors (network, 5xx, timeout) are eligible for retry;
// structural errors (auth, 4xx) are surfaced immediately.
type BackendError struct {
	Provider   string
	StatusCode int
	Transient  bool
	Err        error
}

func (e *BackendError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("backend %s: status %d: %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("backend %s: %v", e.Provider, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }

// NewTransientBackendError marks a retryable backend failure.
func NewTransientBackendError(provider string, status int, err error) *BackendError {
	return &BackendError{Provider: provider, StatusCode: status, Transient: true, Err: err}
}

// NewStructuralBackendError marks a non-retryable backend failure.
func NewStructuralBackendError(provider string, status int, err error) *BackendError {
	return &BackendError{Provider: provider, StatusCode: status, Transient: false, Err: err}
}

// IsTransient reports whether err is a retryable backend failure.
func IsTransient(err error) bool {
	var be *BackendError
	return errors.As(err, &be) && be.Transient
}

// RateLimitError is returned by the rate limiter the instant any
// dimension would be exceeded. The caller decides whether to retry.
type RateLimitError struct {
	Dimension  string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded on %s, retry after %s", e.Dimension, e.RetryAfter)
}

// MalformedOutputError means generation succeeded but the raw text did
// not parse as the declared schema even after one repair pass.
type MalformedOutputError struct {
	Raw string
	Err error
}

func (e *MalformedOutputError) Error() string {
	return fmt.Sprintf("malformed structured output: %v", e.Err)
}

func (e *MalformedOutputError) Unwrap() error { return e.Err }

// DegradedError records a low-confidence or partial extraction. It is
// metadata, not a fatal failure: callers attach it to the stage and
// keep going.
type DegradedError struct {
	Reason     string
	Confidence float32
}

func (e *DegradedError) Error() string {
	return fmt.Sprintf("extraction degraded: %s (confidence %.2f)", e.Reason, e.Confidence)
}
