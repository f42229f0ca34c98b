package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"gatekeeper/internal/events"
	"gatekeeper/internal/models"
	"gatekeeper/internal/store"
)

// Key prefixes for the three record kinds owned by this package.
const (
	windowKeyPrefix    = "gk:win:"
	blockKeyPrefix     = "gk:block:"
	violationKeyPrefix = "gk:viol:"
)

// TieredLimiter is the store-backed Limiter. All coordination happens through
// single-key atomic store operations; every record carries a finite TTL at
// creation and is destroyed only by expiry.
type TieredLimiter struct {
	store      store.Store
	emitter    events.Emitter
	lookback   time.Duration
	failPolicy models.FailPolicy
}

var _ Limiter = (*TieredLimiter)(nil)

// Option configures the TieredLimiter.
type Option func(*TieredLimiter)

// WithLookback sets how far back repeat violations count toward escalation.
func WithLookback(d time.Duration) Option {
	return func(l *TieredLimiter) { l.lookback = d }
}

// WithFailPolicy overrides the degradation policy for store outages.
// The default is fail-open: this is an abuse-mitigation layer, not an
// authorization layer, so availability wins.
func WithFailPolicy(p models.FailPolicy) Option {
	return func(l *TieredLimiter) { l.failPolicy = p }
}

// NewTieredLimiter creates a limiter over the given store and event emitter.
func NewTieredLimiter(s store.Store, emitter events.Emitter, opts ...Option) *TieredLimiter {
	l := &TieredLimiter{
		store:      s,
		emitter:    emitter,
		lookback:   10 * time.Minute,
		failPolicy: models.FailOpen,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Check evaluates one request against tier. The block check runs before the
// window increment so blocked identities do not pollute counts used for
// future-window decisions.
func (l *TieredLimiter) Check(ctx context.Context, tier *models.LimitTier, identity, route string) models.Decision {
	blockKey := blockKeyPrefix + tier.Name + ":" + identity

	remaining, err := l.store.TTL(ctx, blockKey)
	if err != nil {
		return l.degrade(identity, route, err)
	}
	if remaining > 0 {
		l.emitter.Emit(models.NewSecurityEvent(
			models.EventBlockedIdentity, models.SeverityLow, identity, route,
			fmt.Sprintf("request while blocked, %s remaining", remaining.Round(time.Second)),
		))
		return models.DenyRetryAfter(models.ReasonBlocked, remaining)
	}

	windowKey := windowKeyPrefix + tier.Name + ":" + identity
	count, err := l.store.IncrWithTTL(ctx, windowKey, tier.Window)
	if err != nil {
		return l.degrade(identity, route, err)
	}

	switch {
	case count <= tier.MaxRequests:
		return models.Allow()
	case count <= tier.BurstCeiling():
		return models.AllowBurst()
	}

	return l.punish(ctx, tier, identity, route, count)
}

// punish records a violation and installs or escalates the block record.
func (l *TieredLimiter) punish(ctx context.Context, tier *models.LimitTier, identity, route string, count int64) models.Decision {
	violationKey := violationKeyPrefix + tier.Name + ":" + identity

	violations, err := l.store.IncrWithTTL(ctx, violationKey, l.lookback)
	if err != nil {
		// Counting failed but the ceiling was exceeded with certainty, so
		// still deny; treat this as a first violation.
		slog.Warn("violation counter unavailable, assuming first violation",
			"identity", identity, "tier", tier.Name, "error", err)
		violations = 1
	}

	duration := BlockDuration(tier.BlockDuration, tier.BlockMultiplier, violations, tier.MaxBlockDuration)

	blockKey := blockKeyPrefix + tier.Name + ":" + identity
	if err := l.store.SetWithTTL(ctx, blockKey, strconv.FormatInt(violations, 10), duration); err != nil {
		slog.Warn("failed to install block record", "identity", identity, "tier", tier.Name, "error", err)
	}

	severity := models.SeverityMedium
	if violations > 1 {
		severity = models.SeverityHigh
	}
	l.emitter.Emit(models.NewSecurityEvent(
		models.EventRateLimitViolation, severity, identity, route,
		fmt.Sprintf("count %d exceeded ceiling %d on tier %s, violation %d, blocked for %s",
			count, tier.BurstCeiling(), tier.Name, violations, duration),
	))

	return models.DenyRetryAfter(models.ReasonRateLimited, duration)
}

// degrade applies the configured fail policy when the store is unreachable.
func (l *TieredLimiter) degrade(identity, route string, err error) models.Decision {
	l.emitter.Emit(models.NewSecurityEvent(
		models.EventStoreUnavailable, models.SeverityHigh, identity, route,
		fmt.Sprintf("rate limiter store failure: %v", err),
	))

	if l.failPolicy == models.FailClosed {
		return models.Deny(models.ReasonRateLimited)
	}

	slog.Warn("rate limiter failing open", "identity", identity, "error", err)
	return models.Allow()
}
