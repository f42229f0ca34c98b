// Package revocation makes logout and forced credential invalidation
// immediate and authoritative. Credentials are otherwise self-verifying, so
// the only way to kill one early is a shared registry of revoked token IDs,
// consulted on every authenticated request.
package revocation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gatekeeper/internal/events"
	"gatekeeper/internal/models"
	"gatekeeper/internal/store"
)

const revokedKeyPrefix = "gk:revoked:"

// ErrUnverifiable is returned by IsRevoked when the registry cannot reach the
// store. A missed revocation is a security hole, so unlike the rate limiter
// this component fails closed: callers must treat this error as a denial.
var ErrUnverifiable = errors.New("revocation state unverifiable")

// Registry records revoked credential IDs. Record TTLs mirror the
// credential's own remaining validity, so revocation state never outlives
// what it revokes and store growth is bounded by the number of live revoked
// credentials.
type Registry struct {
	store   store.Store
	emitter events.Emitter
}

// NewRegistry creates a registry over the given store.
func NewRegistry(s store.Store, emitter events.Emitter) *Registry {
	return &Registry{store: s, emitter: emitter}
}

// Revoke records tokenID as revoked until expiresAt. Idempotent: revoking an
// already-revoked credential succeeds, and revoking a credential past its
// natural expiry is a no-op.
func (r *Registry) Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}

	revokedAt := time.Now().UTC().Format(time.RFC3339)
	if _, err := r.store.SetIfAbsent(ctx, revokedKeyPrefix+tokenID, revokedAt, ttl); err != nil {
		return fmt.Errorf("revoke %s: %w", tokenID, err)
	}
	return nil
}

// IsRevoked reports whether tokenID has been revoked. On store failure it
// returns ErrUnverifiable and emits a high-severity event; it never guesses.
func (r *Registry) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	revoked, err := r.store.Exists(ctx, revokedKeyPrefix+tokenID)
	if err != nil {
		r.emitter.Emit(models.NewSecurityEvent(
			models.EventStoreUnavailable, models.SeverityHigh, "", "",
			fmt.Sprintf("revocation registry store failure: %v", err),
		))
		return false, fmt.Errorf("%w: %v", ErrUnverifiable, err)
	}
	return revoked, nil
}
