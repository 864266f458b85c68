// Package ratelimit implements fixed-window request rate limiting for the
// payment endpoints. Counters live in Redis so limits hold across API
// replicas; an in-memory store backs tests and single-node deployments.
//
// The middleware fails open: if the store is unreachable, requests pass.
// Checkout availability beats limiter strictness.
package ratelimit
