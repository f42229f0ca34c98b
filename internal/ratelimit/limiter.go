// Package ratelimit enforces per-tier, per-identity request limits through
// the shared fast store. Counting uses one atomic create-or-increment per
// request; repeat offenders escalate into timed hard blocks whose duration is
// a pure function of the violation history. There is no in-process mutable
// state, so any number of gatekeeper instances agree on the same counts.
package ratelimit

import (
	"context"

	"gatekeeper/internal/models"
)

// Limiter decides whether a request from identity may pass under tier's
// policy. Implementations must be safe for concurrent use.
type Limiter interface {
	// Check evaluates the request. route is diagnostic context for emitted
	// security events only; it never affects the decision.
	Check(ctx context.Context, tier *models.LimitTier, identity, route string) models.Decision
}
