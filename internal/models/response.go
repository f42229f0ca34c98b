// Package models - API response types.
// Responses keep a consistent JSON structure across all endpoints, with
// machine-readable codes for programmatic handling and RFC3339 timestamps.
package models

import (
	"time"
)

// Error code constants for machine-readable error handling
const (
	ErrorCodeRateLimited    = "RATE_LIMIT_EXCEEDED"
	ErrorCodeBlocked        = "IDENTITY_BLOCKED"
	ErrorCodeUnauthorized   = "UNAUTHORIZED"
	ErrorCodeInvalidRequest = "INVALID_REQUEST"
	ErrorCodeInternalError  = "INTERNAL_ERROR"
)

// ErrorResponse provides structured error information with debugging context.
type ErrorResponse struct {
	Error     string    `json:"error"`          // Error type (always "error")
	Message   string    `json:"message"`        // Human-readable error description
	Code      string    `json:"code,omitempty"` // Machine-readable error code
	Timestamp time.Time `json:"timestamp"`      // Error occurrence time
}

// NewErrorResponse creates a standardized error response.
func NewErrorResponse(message, code string) *ErrorResponse {
	return &ErrorResponse{
		Error:     "error",
		Message:   message,
		Code:      code,
		Timestamp: time.Now().UTC(),
	}
}

// HealthCheckResponse reports service liveness and component status.
type HealthCheckResponse struct {
	Status     string                     `json:"status"`
	Timestamp  time.Time                  `json:"timestamp"`
	Version    string                     `json:"version,omitempty"`
	Components map[string]ComponentHealth `json:"components,omitempty"`
}

type ComponentHealth struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// LogoutResponse acknowledges a credential revocation.
type LogoutResponse struct {
	Revoked   bool      `json:"revoked"`
	Timestamp time.Time `json:"timestamp"`
}
