package jikan

import (
	"errors"
	"fmt"
)

// errSuperseded is the cancellation cause for a search replaced by a newer one.
var errSuperseded = errors.New("superseded by a newer search")

// ErrRateLimited indicates the upstream kept throttling until retries ran out.
type ErrRateLimited struct {
	Attempts int
	Err      error
}

func (e ErrRateLimited) Error() string {
	return fmt.Errorf("rate_limited after %d attempts: %w", e.Attempts, e.Err).Error()
}

func (e ErrRateLimited) Unwrap() error {
	return e.Err
}

// ErrTransport indicates a non-2xx response or a network failure.
// StatusCode is zero when no response was received.
type ErrTransport struct {
	StatusCode int
	Err        error
}

func (e ErrTransport) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("API error: %d", e.StatusCode)
	}
	if e.StatusCode == 0 {
		return fmt.Errorf("API error: %w", e.Err).Error()
	}
	return fmt.Errorf("API error: %d: %w", e.StatusCode, e.Err).Error()
}

func (e ErrTransport) Unwrap() error {
	return e.Err
}

// ErrCancelled indicates the request was withdrawn before it settled. Callers
// treat it as "no update", never as a failure to show.
type ErrCancelled struct {
	Err error
}

func (e ErrCancelled) Error() string {
	return fmt.Errorf("cancelled: %w", e.Err).Error()
}

func (e ErrCancelled) Unwrap() error {
	return e.Err
}

// Superseded reports whether a newer search replaced this request.
func (e ErrCancelled) Superseded() bool {
	return errors.Is(e.Err, errSuperseded)
}

// ErrInvalidArgument rejects a call before any network activity.
type ErrInvalidArgument struct {
	Field string
	Err   error
}

func (e ErrInvalidArgument) Error() string {
	return fmt.Errorf("invalid %s: %w", e.Field, e.Err).Error()
}

func (e ErrInvalidArgument) Unwrap() error {
	return e.Err
}

// IsCancelled reports whether err is an ErrCancelled.
func IsCancelled(err error) bool {
	var cancelled ErrCancelled
	return errors.As(err, &cancelled)
}

// IsRateLimited reports whether err is an ErrRateLimited.
func IsRateLimited(err error) bool {
	var rateLimited ErrRateLimited
	return errors.As(err, &rateLimited)
}

// ErrorLabel maps an error to its metrics label.
func ErrorLabel(err error) string {
	if err == nil {
		return "unknown"
	}
	var cancelled ErrCancelled
	if errors.As(err, &cancelled) {
		return "cancelled"
	}
	var rateLimited ErrRateLimited
	if errors.As(err, &rateLimited) {
		return "rate_limited"
	}
	var invalid ErrInvalidArgument
	if errors.As(err, &invalid) {
		return "invalid_argument"
	}
	var transport ErrTransport
	if errors.As(err, &transport) {
		switch {
		case transport.StatusCode == 0:
			return "connection"
		case transport.StatusCode == 404:
			return "not_found"
		case transport.StatusCode >= 500:
			return "server"
		default:
			return "client"
		}
	}
	return "other"
}
