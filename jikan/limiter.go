package jikan

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// Limiter spaces request issuance by a fixed minimum interval. One Limiter
// is owned by each Client; share it between clients with WithLimiter.
type Limiter struct {
	clock   clock.Clock
	spacing time.Duration

	mu   sync.Mutex
	last time.Time
}

// NewLimiter builds a limiter. A nil clock uses the wall clock.
func NewLimiter(spacing time.Duration, clk clock.Clock) *Limiter {
	if clk == nil {
		clk = clock.New()
	}
	if spacing < 0 {
		spacing = 0
	}
	return &Limiter{clock: clk, spacing: spacing}
}

// Last returns the issue time of the most recent request.
func (l *Limiter) Last() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.last
}

// Wait blocks until the caller may issue a request. It returns the time
// spent waiting, or the context error if cancelled first.
func (l *Limiter) Wait(ctx context.Context, sleep sleepFunc) (time.Duration, error) {
	_, waited, err := l.acquire(ctx, sleep)
	return waited, err
}

// acquire records the issue time only when the caller is actually let
// through, so a waiter cancelled mid-sleep leaves no trace for later
// callers. Waiters that wake together re-check and the losers sleep again.
func (l *Limiter) acquire(ctx context.Context, sleep sleepFunc) (time.Time, time.Duration, error) {
	var waited time.Duration
	for {
		if err := ctx.Err(); err != nil {
			return time.Time{}, waited, err
		}

		l.mu.Lock()
		now := l.clock.Now()
		wait := l.delayLocked(now)
		if wait <= 0 {
			l.last = now
			l.mu.Unlock()
			return now, waited, nil
		}
		l.mu.Unlock()

		if err := sleep(ctx, wait); err != nil {
			return time.Time{}, waited, err
		}
		waited += wait
	}
}

func (l *Limiter) delayLocked(now time.Time) time.Duration {
	if l.last.IsZero() {
		return 0
	}
	return l.last.Add(l.spacing).Sub(now)
}

type sleepFunc func(ctx context.Context, d time.Duration) error

// clockSleep waits for d on clk, returning early when ctx is done.
func clockSleep(clk clock.Clock) sleepFunc {
	return func(ctx context.Context, d time.Duration) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if d <= 0 {
			return nil
		}
		timer := clk.Timer(d)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return nil
		}
	}
}
