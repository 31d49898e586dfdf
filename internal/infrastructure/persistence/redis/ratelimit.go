package redis

import (
	"context"
	"time"
)

// Counter is the windowed counter a WriteLimiter needs. *Client implements it.
type Counter interface {
	Increment(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
}

var _ Counter = (*Client)(nil)

// Decision is the outcome of one rate limit check.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// WriteLimiter caps progress writes per learner in fixed windows.
type WriteLimiter struct {
	counter Counter
	limit   int
	window  time.Duration
	action  string
}

// NewWriteLimiter allows limit writes per window for each learner.
func NewWriteLimiter(counter Counter, limit int, window time.Duration) *WriteLimiter {
	if limit <= 0 {
		limit = 60
	}
	if window <= 0 {
		window = time.Minute
	}
	return &WriteLimiter{
		counter: counter,
		limit:   limit,
		window:  window,
		action:  "progress_write",
	}
}

// Allow counts one write for userID. When the counter store fails the write
// is allowed and the error returned so the caller can log it.
func (l *WriteLimiter) Allow(ctx context.Context, userID string) (Decision, error) {
	count, ttl, err := l.counter.Increment(ctx, RateLimitKey(userID, l.action), l.window)
	if err != nil {
		return Decision{Allowed: true, Limit: l.limit, Remaining: l.limit}, err
	}

	d := Decision{
		Allowed:   count <= int64(l.limit),
		Limit:     l.limit,
		Remaining: l.limit - int(count),
	}
	if d.Remaining < 0 {
		d.Remaining = 0
	}
	if !d.Allowed {
		d.RetryAfter = ttl
	}
	return d, nil
}
