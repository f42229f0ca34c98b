// Package store provides the shared fast store used for cross-instance
// coordination: rate window counters, block flags, and revoked credential
// records. All operations are single-key and atomic so the gatekeeper scales
// horizontally without any coordination protocol beyond the store's own
// atomicity. Records are destroyed exclusively by TTL expiry; no component
// performs manual cleanup sweeps.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable marks store failures. Callers decide their own fallback
// (the rate limiter fails open, the revocation registry fails closed), so
// this error is never surfaced to the HTTP caller directly.
var ErrUnavailable = errors.New("shared store unavailable")

// Store is the contract for the shared fast store. Implementations must be
// safe for concurrent use and must apply a short per-call timeout so store
// latency cannot become unbounded request latency.
type Store interface {
	// IncrWithTTL atomically increments the counter at key, creating it with
	// the given TTL when absent. Concurrent first requests must not
	// double-initialize the TTL. Returns the post-increment count.
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)

	// SetWithTTL stores value at key with the given TTL, replacing any
	// existing value and TTL.
	SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error

	// SetIfAbsent stores value at key with the given TTL only when the key
	// does not exist. Returns whether the value was written.
	SetIfAbsent(ctx context.Context, key, value string, ttl time.Duration) (bool, error)

	// Exists reports whether key is present and unexpired.
	Exists(ctx context.Context, key string) (bool, error)

	// TTL returns the remaining lifetime of key, or zero when the key is
	// absent or carries no expiry.
	TTL(ctx context.Context, key string) (time.Duration, error)

	// Ping verifies connectivity for health checks.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}
