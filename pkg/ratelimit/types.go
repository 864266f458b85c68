package ratelimit

import (
	"context"
	"time"
)

// Result is the outcome of one rate limit check.
type Result struct {
	// Allowed reports whether the request may proceed.
	Allowed bool

	// Limit is the maximum number of requests per window.
	Limit int

	// Remaining is the number of requests left in the current window.
	Remaining int

	// ResetAt is when the current window ends.
	ResetAt time.Time
}

// RetryAfter returns how long to wait before the next request is allowed,
// zero when the request was allowed.
func (r *Result) RetryAfter() time.Duration {
	if r.Allowed {
		return 0
	}
	return time.Until(r.ResetAt)
}

// Limiter checks and consumes rate limit quota.
type Limiter interface {
	// Allow consumes one slot for the key and reports the result.
	Allow(ctx context.Context, key string) (*Result, error)

	// Status reports the current window state without consuming a slot.
	Status(ctx context.Context, key string) (*Result, error)

	// Reset clears the key's counter.
	Reset(ctx context.Context, key string) error
}

// Store is the counter backend for the fixed-window limiter.
type Store interface {
	// IncrementAndGet atomically adds one to the key's counter, starting a
	// new window with the given duration when the key is fresh, and
	// returns the new count plus the remaining window time.
	IncrementAndGet(ctx context.Context, key string, window time.Duration) (count int64, ttl time.Duration, err error)

	// Get returns the key's current count and remaining window time.
	Get(ctx context.Context, key string) (count int64, ttl time.Duration, err error)

	// Delete removes the key.
	Delete(ctx context.Context, key string) error
}
