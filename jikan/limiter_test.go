package jikan

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
)

// advance is a sleeper that moves the mock clock forward instead of blocking.
func advance(mock *clock.Mock) sleepFunc {
	return func(ctx context.Context, d time.Duration) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		mock.Add(d)
		return nil
	}
}

func TestLimiterSpacesConcurrentWaiters(t *testing.T) {
	mock := clock.NewMock()
	l := NewLimiter(time.Second, mock)

	var wg sync.WaitGroup
	var mu sync.Mutex
	var issued []time.Time
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			at, _, err := l.acquire(context.Background(), advance(mock))
			if err != nil {
				t.Errorf("acquire: %v", err)
				return
			}
			mu.Lock()
			issued = append(issued, at)
			mu.Unlock()
		}()
	}
	wg.Wait()

	if len(issued) != 5 {
		t.Fatalf("issued = %d, want 5", len(issued))
	}
	sort.Slice(issued, func(i, j int) bool { return issued[i].Before(issued[j]) })
	for i := 1; i < len(issued); i++ {
		if gap := issued[i].Sub(issued[i-1]); gap < time.Second {
			t.Fatalf("gap between request %d and %d = %s, want >= 1s", i-1, i, gap)
		}
	}
}

func TestLimiterNoWaitAfterSpacingElapsed(t *testing.T) {
	mock := clock.NewMock()
	l := NewLimiter(time.Second, mock)
	sleep := advance(mock)
	ctx := context.Background()

	if waited, err := l.Wait(ctx, sleep); err != nil || waited != 0 {
		t.Fatalf("first wait = %s, %v; want 0", waited, err)
	}
	mock.Add(1500 * time.Millisecond)
	if waited, err := l.Wait(ctx, sleep); err != nil || waited != 0 {
		t.Fatalf("wait after spacing = %s, %v; want 0", waited, err)
	}
	mock.Add(300 * time.Millisecond)
	if waited, err := l.Wait(ctx, sleep); err != nil || waited != 700*time.Millisecond {
		t.Fatalf("wait inside window = %s, %v; want 700ms", waited, err)
	}
}

func TestLimiterCancelledWaitLeavesNoTrace(t *testing.T) {
	mock := clock.NewMock()
	l := NewLimiter(time.Second, mock)

	if _, err := l.Wait(context.Background(), advance(mock)); err != nil {
		t.Fatalf("first wait: %v", err)
	}
	first := l.Last()

	failing := func(ctx context.Context, d time.Duration) error {
		return context.Canceled
	}
	if _, err := l.Wait(context.Background(), failing); err == nil {
		t.Fatalf("expected wait error")
	}
	if !l.Last().Equal(first) {
		t.Fatalf("cancelled wait moved the issue marker: %s", l.Last().Sub(first))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := l.Wait(ctx, advance(mock)); err == nil {
		t.Fatalf("expected error for cancelled context")
	}
	if !l.Last().Equal(first) {
		t.Fatalf("cancelled context moved the issue marker")
	}
}

func TestLimiterLaterWaiterNotDelayedByCancelledOne(t *testing.T) {
	mock := clock.NewMock()
	l := NewLimiter(time.Second, mock)
	start := mock.Now()

	if _, err := l.Wait(context.Background(), advance(mock)); err != nil {
		t.Fatalf("first wait: %v", err)
	}

	// The parked waiter only wakes once the later waiter has gone through.
	parked := make(chan struct{})
	wake := make(chan struct{})
	park := func(ctx context.Context, d time.Duration) error {
		close(parked)
		<-ctx.Done()
		<-wake
		return ctx.Err()
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := l.Wait(ctx, park)
		done <- err
	}()
	<-parked
	cancel()

	at, waited, err := l.acquire(context.Background(), advance(mock))
	if err != nil {
		t.Fatalf("later wait: %v", err)
	}
	if want := start.Add(time.Second); !at.Equal(want) {
		t.Fatalf("later request issued at t0+%s, want t0+1s", at.Sub(start))
	}
	if waited != time.Second {
		t.Fatalf("later request waited %s, want 1s", waited)
	}

	close(wake)
	if err := <-done; err == nil {
		t.Fatalf("parked waiter should report cancellation")
	}
	if got := l.Last(); !got.Equal(start.Add(time.Second)) {
		t.Fatalf("issue marker = t0+%s after cancelled waiter returned, want t0+1s", got.Sub(start))
	}
}

func TestLimiterSharedBetweenClients(t *testing.T) {
	mock := clock.NewMock()
	shared := NewLimiter(time.Second, mock)

	cfg := testConfig()
	a, err := New(cfg, WithClock(mock), WithLimiter(shared))
	if err != nil {
		t.Fatalf("new client a: %v", err)
	}
	b, err := New(cfg, WithClock(mock), WithLimiter(shared))
	if err != nil {
		t.Fatalf("new client b: %v", err)
	}
	if a.Limiter() != b.Limiter() {
		t.Fatalf("clients should share the limiter")
	}

	c, err := New(cfg, WithClock(mock))
	if err != nil {
		t.Fatalf("new client c: %v", err)
	}
	if c.Limiter() == shared {
		t.Fatalf("clients without WithLimiter must own their limiter")
	}
}

func TestClockSleepHonoursContext(t *testing.T) {
	sleep := clockSleep(clock.NewMock())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- sleep(ctx, time.Hour) }()
	cancel()

	select {
	case err := <-done:
		if err == nil {
			t.Fatalf("expected context error")
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("sleep ignored cancellation")
	}
}
