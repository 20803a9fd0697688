package source

import (
	"context"
	"sync"
	"time"
)

// RateLimiter is a token-bucket-of-one: it enforces a minimum interval of
// 60/maxPerMinute seconds between requests. The wait is local to this
// limiter; unrelated sources are unaffected.
type RateLimiter struct {
	mu       sync.Mutex
	interval time.Duration
	last     time.Time
	sleep    func(ctx context.Context, d time.Duration) error
}

// NewRateLimiter builds a limiter allowing maxPerMinute requests.
func NewRateLimiter(maxPerMinute int) *RateLimiter {
	if maxPerMinute <= 0 {
		maxPerMinute = 60
	}
	return &RateLimiter{
		interval: time.Duration(float64(time.Minute) / float64(maxPerMinute)),
		sleep:    sleepCtx,
	}
}

// Wait blocks until a request is allowed or the context is cancelled.
// It returns the time actually waited.
func (r *RateLimiter) Wait(ctx context.Context) (time.Duration, error) {
	r.mu.Lock()
	now := time.Now()
	var wait time.Duration
	if !r.last.IsZero() {
		if elapsed := now.Sub(r.last); elapsed < r.interval {
			wait = r.interval - elapsed
		}
	}
	r.last = now.Add(wait)
	r.mu.Unlock()

	if wait == 0 {
		return 0, nil
	}
	if err := r.sleep(ctx, wait); err != nil {
		return 0, err
	}
	return wait, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
