package jikan

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestErrorLabel(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{name: "nil", err: nil, expected: "unknown"},
		{name: "rate limited", err: ErrRateLimited{Attempts: 4}, expected: "rate_limited"},
		{name: "wrapped rate limited", err: fmt.Errorf("top: %w", ErrRateLimited{Attempts: 4}), expected: "rate_limited"},
		{name: "cancelled", err: ErrCancelled{Err: errSuperseded}, expected: "cancelled"},
		{name: "connection", err: ErrTransport{Err: errors.New("dial tcp: refused")}, expected: "connection"},
		{name: "not found", err: ErrTransport{StatusCode: 404}, expected: "not_found"},
		{name: "server", err: ErrTransport{StatusCode: 502}, expected: "server"},
		{name: "client", err: ErrTransport{StatusCode: 400}, expected: "client"},
		{name: "invalid argument", err: ErrInvalidArgument{Field: "id", Err: errors.New("bad")}, expected: "invalid_argument"},
		{name: "other", err: errors.New("some other error"), expected: "other"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ErrorLabel(tt.err); got != tt.expected {
				t.Fatalf("ErrorLabel(%v) = %q, want %q", tt.err, got, tt.expected)
			}
		})
	}
}

func TestTransportErrorMessage(t *testing.T) {
	if got := (ErrTransport{StatusCode: 500}).Error(); got != "API error: 500" {
		t.Fatalf("message = %q", got)
	}
	err := ErrTransport{Err: context.DeadlineExceeded}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("transport error should unwrap its cause")
	}
}

func TestCancelledSuperseded(t *testing.T) {
	if !(ErrCancelled{Err: errSuperseded}).Superseded() {
		t.Fatalf("expected superseded")
	}
	if (ErrCancelled{Err: context.Canceled}).Superseded() {
		t.Fatalf("caller cancellation is not a supersede")
	}
	if !IsCancelled(fmt.Errorf("wrap: %w", ErrCancelled{Err: context.Canceled})) {
		t.Fatalf("IsCancelled should see through wrapping")
	}
	if IsRateLimited(ErrCancelled{}) {
		t.Fatalf("cancelled is not rate limited")
	}
}
