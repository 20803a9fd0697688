package source

import (
	"context"
	"testing"
	"time"
)

func TestRateLimiterFirstCallDoesNotWait(t *testing.T) {
	limiter := NewRateLimiter(30)
	limiter.sleep = func(ctx context.Context, d time.Duration) error {
		t.Fatalf("unexpected sleep of %s on first call", d)
		return nil
	}

	waited, err := limiter.Wait(context.Background())
	if err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if waited != 0 {
		t.Fatalf("Wait() waited = %s, want 0", waited)
	}
}

func TestRateLimiterEnforcesInterval(t *testing.T) {
	limiter := NewRateLimiter(60) // one request per second
	var slept time.Duration
	limiter.sleep = func(ctx context.Context, d time.Duration) error {
		slept = d
		return nil
	}

	ctx := context.Background()
	if _, err := limiter.Wait(ctx); err != nil {
		t.Fatalf("first Wait() error = %v", err)
	}
	waited, err := limiter.Wait(ctx)
	if err != nil {
		t.Fatalf("second Wait() error = %v", err)
	}

	if waited == 0 {
		t.Fatal("second Wait() should have waited")
	}
	if waited != slept {
		t.Fatalf("Wait() reported %s but slept %s", waited, slept)
	}
	if slept > time.Second {
		t.Fatalf("slept %s, want at most the 1s interval", slept)
	}
}

func TestRateLimiterHonorsContextCancellation(t *testing.T) {
	limiter := NewRateLimiter(1) // one request per minute
	ctx, cancel := context.WithCancel(context.Background())

	if _, err := limiter.Wait(ctx); err != nil {
		t.Fatalf("first Wait() error = %v", err)
	}

	cancel()
	if _, err := limiter.Wait(ctx); err != context.Canceled {
		t.Fatalf("Wait() error = %v, want context.Canceled", err)
	}
}

func TestRateLimiterDefaultsInvalidRate(t *testing.T) {
	limiter := NewRateLimiter(0)
	if limiter.interval != time.Second {
		t.Fatalf("interval = %s, want 1s default", limiter.interval)
	}
}
