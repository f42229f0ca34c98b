package models

import (
	"time"

	"github.com/google/uuid"
)

// EventType classifies a security event.
type EventType string

const (
	EventRateLimitViolation   EventType = "rate_limit_violation"
	EventSuspiciousPattern    EventType = "suspicious_pattern"
	EventBlockedIdentity      EventType = "blocked_identity"
	EventRevokedCredentialUse EventType = "revoked_credential_use"
	EventStoreUnavailable     EventType = "store_unavailable"
)

// Severity ranks how urgent a security event is.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// SecurityEvent is an immutable, append-only record describing something the
// gatekeeper observed. Events are consumed by external observability; the
// gatekeeper never reads them back.
type SecurityEvent struct {
	ID         string    `json:"id"`
	Type       EventType `json:"event_type"`
	Severity   Severity  `json:"severity"`
	Identity   string    `json:"identity"`
	Route      string    `json:"route"`
	Detail     string    `json:"detail"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NewSecurityEvent creates an event stamped with a fresh ID and the current time.
func NewSecurityEvent(eventType EventType, severity Severity, identity, route, detail string) SecurityEvent {
	return SecurityEvent{
		ID:         uuid.New().String(),
		Type:       eventType,
		Severity:   severity,
		Identity:   identity,
		Route:      route,
		Detail:     detail,
		OccurredAt: time.Now().UTC(),
	}
}
