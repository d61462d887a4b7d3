package remote

import (
	"context"
	"sync"
	"time"
)

const (
	DefaultRateLimit  = 100
	DefaultRateWindow = 60 * time.Second

	// throttleRatio is the share of the window allowance after which callers wait.
	throttleRatio = 0.8
)

// RateLimiter counts requests in a fixed window. Once the count reaches 80%
// of the allowance, Wait blocks until the window has elapsed and starts a new one.
type RateLimiter struct {
	mu          sync.Mutex
	max         int
	window      time.Duration
	count       int
	windowStart time.Time

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewRateLimiter creates a limiter allowing max requests per window.
// Non-positive values fall back to 100 requests per 60s.
func NewRateLimiter(max int, window time.Duration) *RateLimiter {
	if max <= 0 {
		max = DefaultRateLimit
	}
	if window <= 0 {
		window = DefaultRateWindow
	}
	return &RateLimiter{
		max:    max,
		window: window,
		now:    time.Now,
		sleep:  sleepContext,
	}
}

// Threshold is the request count at which Wait starts to suspend.
func (r *RateLimiter) Threshold() int {
	t := int(float64(r.max) * throttleRatio)
	if t < 1 {
		t = 1
	}
	return t
}

// Wait records one request, suspending first if the window is nearly spent.
func (r *RateLimiter) Wait(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if r.windowStart.IsZero() || now.Sub(r.windowStart) >= r.window {
		r.count = 0
		r.windowStart = now
	}

	if r.count >= r.Threshold() {
		remaining := r.window - now.Sub(r.windowStart)
		if remaining > 0 {
			if err := r.sleep(ctx, remaining); err != nil {
				return err
			}
		}
		r.count = 0
		r.windowStart = r.now()
	}

	r.count++
	return nil
}

// Reset starts a fresh window with no recorded requests.
func (r *RateLimiter) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.count = 0
	r.windowStart = r.now()
}

// Count returns the number of requests recorded in the current window.
func (r *RateLimiter) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
