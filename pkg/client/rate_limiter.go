package client

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// RateLimiter paces calls to the backend
type RateLimiter interface {
	Wait(ctx context.Context) error
	Observe(status int, header http.Header)
	CheckLimit() (remaining int, resetTime time.Time)
}

// headerRateLimiter keeps a minimum delay between calls and holds further
// calls back when the backend reports an exhausted rate limit
type headerRateLimiter struct {
	mu        sync.Mutex
	remaining int
	resetTime time.Time
	minDelay  time.Duration
	lastCall  time.Time
	now       func() time.Time
}

// NewRateLimiter creates a rate limiter spacing calls by at least minDelay
func NewRateLimiter(minDelay time.Duration) RateLimiter {
	return &headerRateLimiter{
		remaining: -1,
		minDelay:  minDelay,
		now:       time.Now,
	}
}

// Wait blocks until it is safe to make another call
func (r *headerRateLimiter) Wait(ctx context.Context) error {
	r.mu.Lock()
	now := r.now()
	var wait time.Duration
	if r.remaining == 0 && r.resetTime.After(now) {
		wait = r.resetTime.Sub(now)
	}
	if next := r.lastCall.Add(r.minDelay); next.After(now) && next.Sub(now) > wait {
		wait = next.Sub(now)
	}
	// reserve the slot before sleeping so concurrent callers queue behind it
	r.lastCall = now.Add(wait)
	if r.remaining == 0 && wait > 0 {
		r.remaining = -1
	}
	r.mu.Unlock()

	if wait <= 0 {
		return nil
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Observe updates the limit from X-RateLimit-* or Retry-After headers
func (r *headerRateLimiter) Observe(status int, header http.Header) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if v := header.Get("X-RateLimit-Remaining"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			r.remaining = n
		}
	}
	if v := header.Get("X-RateLimit-Reset"); v != "" {
		if sec, err := strconv.ParseInt(v, 10, 64); err == nil {
			r.resetTime = time.Unix(sec, 0)
		}
	}
	if status == http.StatusTooManyRequests {
		r.remaining = 0
		if v := header.Get("Retry-After"); v != "" {
			if sec, err := strconv.Atoi(v); err == nil {
				r.resetTime = r.now().Add(time.Duration(sec) * time.Second)
			}
		}
	}
}

// CheckLimit returns the last reported limit; remaining is -1 when unknown
func (r *headerRateLimiter) CheckLimit() (remaining int, resetTime time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.remaining, r.resetTime
}
