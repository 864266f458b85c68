package ratelimit

import "errors"

var (
	ErrInvalidLimit    = errors.New("rate limit must be positive")
	ErrInvalidInterval = errors.New("rate limit window must be positive")
	ErrStoreRequired   = errors.New("rate limit store is required")
)
