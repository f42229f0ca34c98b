package models

import "time"

// DenyReason is the machine-readable reason carried by a denying Decision.
// The HTTP layer translates these into wire-specific status codes and headers.
type DenyReason string

const (
	ReasonRateLimited       DenyReason = "rate_limited"
	ReasonBlocked           DenyReason = "blocked"
	ReasonRevokedCredential DenyReason = "revoked_credential"
	ReasonAuthRequired      DenyReason = "auth_required"
)

// Decision is the pipeline's terminal verdict for one request. Either the
// request is fully admitted or fully denied before the protected handler runs.
type Decision struct {
	Allowed    bool          `json:"allowed"`
	Reason     DenyReason    `json:"reason,omitempty"`
	RetryAfter time.Duration `json:"retry_after,omitempty"`
	Burst      bool          `json:"burst,omitempty"` // allowed by burst tolerance, observability only
}

// Allow returns an admitting decision.
func Allow() Decision {
	return Decision{Allowed: true}
}

// AllowBurst returns an admitting decision flagged as burst consumption.
func AllowBurst() Decision {
	return Decision{Allowed: true, Burst: true}
}

// Deny returns a denying decision with the given reason.
func Deny(reason DenyReason) Decision {
	return Decision{Allowed: false, Reason: reason}
}

// DenyRetryAfter returns a denying decision carrying a retry hint.
func DenyRetryAfter(reason DenyReason, retryAfter time.Duration) Decision {
	return Decision{Allowed: false, Reason: reason, RetryAfter: retryAfter}
}
