package gatekeeper

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"gatekeeper/internal/models"
)

// Middleware adapts the pipeline to net/http. Every inbound request is
// normalized, processed, and either passed to next or answered with a
// machine-readable denial.
func Middleware(pipeline *Pipeline) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			view := models.NewRequestView(r)

			decision := pipeline.Process(r.Context(), view)
			if decision.Allowed {
				next.ServeHTTP(w, r)
				return
			}

			writeDenial(w, r, decision)
		})
	}
}

// writeDenial translates a denying decision into a wire response. Revoked
// and missing/invalid credentials are answered with byte-identical bodies;
// only internal logs carry the precise reason.
func writeDenial(w http.ResponseWriter, r *http.Request, decision models.Decision) {
	slog.Info("request denied",
		"reason", string(decision.Reason),
		"path", r.URL.Path,
		"remote_addr", r.RemoteAddr,
		"retry_after", decision.RetryAfter,
	)

	w.Header().Set("Content-Type", "application/json")

	switch decision.Reason {
	case models.ReasonRateLimited, models.ReasonBlocked:
		if decision.RetryAfter > 0 {
			retryAfterSecs := int(decision.RetryAfter.Seconds()) + 1
			w.Header().Set("Retry-After", fmt.Sprintf("%d", retryAfterSecs))
		}
		code := models.ErrorCodeRateLimited
		if decision.Reason == models.ReasonBlocked {
			code = models.ErrorCodeBlocked
		}
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(models.NewErrorResponse("Rate limit exceeded", code))

	case models.ReasonRevokedCredential, models.ReasonAuthRequired:
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(models.NewErrorResponse("Invalid or missing credentials", models.ErrorCodeUnauthorized))

	default:
		w.WriteHeader(http.StatusForbidden)
		json.NewEncoder(w).Encode(models.NewErrorResponse("Request denied", models.ErrorCodeInvalidRequest))
	}
}
