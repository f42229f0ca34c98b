// Package gatekeeper orchestrates the request-gating pipeline: Identify,
// Detect, RateLimit, Authenticate-and-check-revocation, Admit. Stages run in
// that fixed order and short-circuit on the first hard failure. The ordering
// is load-bearing: detection precedes authentication so unauthenticated
// malicious probes are still logged, and rate limiting precedes the
// revocation check so a flood of stale-credential requests cannot probe the
// registry at unbounded rate.
package gatekeeper

import (
	"context"
	"fmt"
	"log/slog"

	"gatekeeper/internal/detect"
	"gatekeeper/internal/events"
	"gatekeeper/internal/models"
	"gatekeeper/internal/ratelimit"
	"gatekeeper/internal/revocation"
)

// CredentialVerifier validates credential structure and signature. Token
// issuance lives with the identity service; the gatekeeper only verifies.
type CredentialVerifier interface {
	// Verify parses raw and checks its signature and natural expiry. The
	// returned credential is trustworthy only when err is nil.
	Verify(raw string) (*models.Credential, error)
}

// HMACVerifier verifies the compact HMAC-SHA256 token format.
type HMACVerifier struct {
	secret []byte
}

var _ CredentialVerifier = (*HMACVerifier)(nil)

func NewHMACVerifier(secret string) *HMACVerifier {
	return &HMACVerifier{secret: []byte(secret)}
}

func (v *HMACVerifier) Verify(raw string) (*models.Credential, error) {
	cred, err := models.ParseCredential(raw)
	if err != nil {
		return nil, err
	}
	if err := cred.Verify(raw, v.secret); err != nil {
		return nil, err
	}
	return cred, nil
}

// Recorder receives decision and finding counts for metrics. Implementations
// must tolerate concurrent calls; a nil Recorder disables recording.
type Recorder interface {
	RecordDecision(ctx context.Context, decision models.Decision)
	RecordFinding(ctx context.Context, rule string)
}

// Pipeline is the per-request orchestrator. Construct once at startup; safe
// for concurrent use across arbitrarily many in-flight requests.
type Pipeline struct {
	tiers          *models.TierTable
	detector       *detect.Detector
	limiter        ratelimit.Limiter
	registry       *revocation.Registry
	verifier       CredentialVerifier
	emitter        events.Emitter
	trustedProxies []string
	authEnabled    bool
	revocationFail models.FailPolicy
	recorder       Recorder
}

// PipelineOption configures optional pipeline behavior.
type PipelineOption func(*Pipeline)

// WithDetector enables threat detection.
func WithDetector(d *detect.Detector) PipelineOption {
	return func(p *Pipeline) { p.detector = d }
}

// WithAuth enables the authentication stage with the given verifier.
func WithAuth(v CredentialVerifier) PipelineOption {
	return func(p *Pipeline) {
		p.verifier = v
		p.authEnabled = true
	}
}

// WithTrustedProxies sets the peers whose X-Forwarded-For headers are honored.
func WithTrustedProxies(proxies []string) PipelineOption {
	return func(p *Pipeline) { p.trustedProxies = proxies }
}

// WithRevocationFailPolicy overrides the registry degradation policy.
// The default is fail-closed; see the revocation package.
func WithRevocationFailPolicy(policy models.FailPolicy) PipelineOption {
	return func(p *Pipeline) { p.revocationFail = policy }
}

// WithRecorder attaches a metrics recorder.
func WithRecorder(r Recorder) PipelineOption {
	return func(p *Pipeline) { p.recorder = r }
}

// NewPipeline assembles a pipeline over the given components.
func NewPipeline(tiers *models.TierTable, limiter ratelimit.Limiter, registry *revocation.Registry, emitter events.Emitter, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		tiers:          tiers,
		limiter:        limiter,
		registry:       registry,
		emitter:        emitter,
		revocationFail: models.FailClosed,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process runs the pipeline for one request. Either the request is fully
// admitted or fully denied; no partial state ever reaches the protected
// handler.
func (p *Pipeline) Process(ctx context.Context, view models.RequestView) models.Decision {
	decision := p.process(ctx, view)
	if p.recorder != nil {
		p.recorder.RecordDecision(ctx, decision)
	}
	return decision
}

func (p *Pipeline) process(ctx context.Context, view models.RequestView) models.Decision {
	// Identify. Never fails; a verified subject beats the network origin.
	cred := p.verifiedCredential(view)
	identity := resolveIdentity(view, cred, p.trustedProxies)

	// Detect. Non-blocking: findings are recorded regardless of outcome and
	// the request continues to the rate limiter either way.
	if p.detector != nil {
		for _, finding := range p.detector.Inspect(view) {
			p.emitter.Emit(finding.Event(identity, view.Path))
			if p.recorder != nil {
				p.recorder.RecordFinding(ctx, finding.Rule)
			}
		}
	}

	// RateLimit.
	tier, route := p.tiers.Resolve(view.Path)
	if tier == nil {
		// No tiers configured at all; nothing to enforce.
		slog.Warn("no limit tier resolved, admitting", "path", view.Path)
		return models.Allow()
	}
	decision := p.limiter.Check(ctx, tier, identity, view.Path)
	if !decision.Allowed {
		return decision
	}

	// Authenticate and check revocation, only where the route demands it.
	if p.authEnabled && route != nil && route.RequireAuth {
		if denied := p.authenticate(ctx, view, cred, identity); denied != nil {
			return *denied
		}
	}

	// Admit.
	return decision
}

// verifiedCredential returns the request's credential when present and
// verified, nil otherwise. Verification failures here are not yet denials;
// they only matter on routes that require authentication.
func (p *Pipeline) verifiedCredential(view models.RequestView) *models.Credential {
	if p.verifier == nil || view.RawCredential == "" {
		return nil
	}
	cred, err := p.verifier.Verify(view.RawCredential)
	if err != nil {
		return nil
	}
	return cred
}

// authenticate enforces the credential and revocation requirements. Returns
// nil when the request may proceed. Revoked and invalid credentials produce
// decisions the HTTP layer renders identically, so an attacker cannot
// distinguish revocation from forgery; the precise reason is logged here.
func (p *Pipeline) authenticate(ctx context.Context, view models.RequestView, cred *models.Credential, identity string) *models.Decision {
	if cred == nil {
		denied := models.Deny(models.ReasonAuthRequired)
		return &denied
	}

	revoked, err := p.registry.IsRevoked(ctx, cred.TokenID)
	if err != nil {
		if p.revocationFail == models.FailOpen {
			slog.Warn("revocation registry unavailable, failing open by configuration",
				"token_id", cred.TokenID, "error", err)
			return nil
		}
		slog.Warn("revocation registry unavailable, rejecting",
			"token_id", cred.TokenID, "error", err)
		denied := models.Deny(models.ReasonAuthRequired)
		return &denied
	}

	if revoked {
		p.emitter.Emit(models.NewSecurityEvent(
			models.EventRevokedCredentialUse, models.SeverityMedium, identity, view.Path,
			fmt.Sprintf("revoked credential %s presented", cred.TokenID),
		))
		denied := models.Deny(models.ReasonRevokedCredential)
		return &denied
	}

	return nil
}

// RevokeCredential verifies the presented token and records its ID as
// revoked until the token's natural expiry. Used by the logout path.
func (p *Pipeline) RevokeCredential(ctx context.Context, raw string) error {
	if p.verifier == nil {
		return fmt.Errorf("authentication is not enabled")
	}
	cred, err := p.verifier.Verify(raw)
	if err != nil {
		return err
	}
	return p.registry.Revoke(ctx, cred.TokenID, cred.ExpiresAt)
}
