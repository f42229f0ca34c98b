// Package api provides the HTTP surface around the gatekeeper pipeline:
// health checks, the logout endpoint that drives credential revocation, and
// the demo protected routes the pipeline guards. Business handlers behind
// the gate belong to collaborating services; the ones here exist so the
// service is runnable and testable end to end.
package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"gatekeeper/internal/gatekeeper"
	"gatekeeper/internal/models"
	"gatekeeper/internal/store"
	"gatekeeper/internal/version"
)

// Handlers holds dependencies for the HTTP handlers.
type Handlers struct {
	pipeline *gatekeeper.Pipeline
	store    store.Store
}

// NewHandlers creates the handler set.
func NewHandlers(pipeline *gatekeeper.Pipeline, s store.Store) *Handlers {
	return &Handlers{pipeline: pipeline, store: s}
}

// HealthCheck reports liveness and shared store connectivity.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	resp := models.HealthCheckResponse{
		Status:     "healthy",
		Timestamp:  time.Now().UTC(),
		Version:    version.GetInfo().Version,
		Components: map[string]models.ComponentHealth{},
	}

	status := http.StatusOK
	if err := h.store.Ping(r.Context()); err != nil {
		// The service stays up in degraded mode; per-component fail
		// policies handle store outages on the request path.
		resp.Status = "degraded"
		resp.Components["store"] = models.ComponentHealth{Status: "unhealthy", Message: err.Error()}
	} else {
		resp.Components["store"] = models.ComponentHealth{Status: "healthy"}
	}

	writeJSON(w, status, resp)
}

// Logout revokes the presented credential for the remainder of its natural
// validity. Idempotent: logging out twice succeeds both times.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	raw := bearerToken(r)
	if raw == "" {
		writeJSON(w, http.StatusUnauthorized,
			models.NewErrorResponse("Invalid or missing credentials", models.ErrorCodeUnauthorized))
		return
	}

	if err := h.pipeline.RevokeCredential(r.Context(), raw); err != nil {
		// Malformed, forged, and expired tokens all get the same answer.
		writeJSON(w, http.StatusUnauthorized,
			models.NewErrorResponse("Invalid or missing credentials", models.ErrorCodeUnauthorized))
		return
	}

	writeJSON(w, http.StatusOK, models.LogoutResponse{
		Revoked:   true,
		Timestamp: time.Now().UTC(),
	})
}

// Resource is a stand-in for a protected API handler. Reaching it means the
// pipeline admitted the request.
func (h *Handlers) Resource(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Stream is a stand-in for the real-time stream subscription handler.
func (h *Handlers) Stream(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "subscribed"})
}

func bearerToken(r *http.Request) string {
	const prefix = "Bearer "
	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, prefix) {
		return ""
	}
	return auth[len(prefix):]
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
