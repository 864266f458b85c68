package ratelimit

import (
	"context"
	"time"
)

// FixedWindow is a fixed-window limiter: up to limit requests per window,
// counter resets when the window expires. Bursts at window boundaries can
// briefly double the rate, which is acceptable for checkout endpoints where
// the limiter exists to blunt abuse, not to meter precisely.
type FixedWindow struct {
	store  Store
	limit  int
	window time.Duration
}

// NewFixedWindow creates a fixed-window limiter.
func NewFixedWindow(store Store, limit int, window time.Duration) (*FixedWindow, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if limit <= 0 {
		return nil, ErrInvalidLimit
	}
	if window <= 0 {
		return nil, ErrInvalidInterval
	}
	return &FixedWindow{store: store, limit: limit, window: window}, nil
}

func (l *FixedWindow) Allow(ctx context.Context, key string) (*Result, error) {
	count, ttl, err := l.store.IncrementAndGet(ctx, key, l.window)
	if err != nil {
		return nil, err
	}
	return l.result(count, ttl), nil
}

func (l *FixedWindow) Status(ctx context.Context, key string) (*Result, error) {
	count, ttl, err := l.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if ttl <= 0 {
		ttl = l.window
		count = 0
	}
	result := l.result(count, ttl)
	// Status does not consume, so a full window still "allows" the next
	// probe-free request check.
	result.Allowed = count < int64(l.limit)
	return result, nil
}

func (l *FixedWindow) Reset(ctx context.Context, key string) error {
	return l.store.Delete(ctx, key)
}

func (l *FixedWindow) result(count int64, ttl time.Duration) *Result {
	remaining := l.limit - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return &Result{
		Allowed:   count <= int64(l.limit),
		Limit:     l.limit,
		Remaining: remaining,
		ResetAt:   time.Now().Add(ttl),
	}
}
