package gatekeeper

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gatekeeper/internal/detect"
	"gatekeeper/internal/models"
	"gatekeeper/internal/ratelimit"
	"gatekeeper/internal/revocation"
	"gatekeeper/internal/store"
)

var testSecret = "pipeline-test-secret"

type captureEmitter struct {
	mu     sync.Mutex
	events []models.SecurityEvent
}

func (c *captureEmitter) Emit(event models.SecurityEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
}

func (c *captureEmitter) byType(t models.EventType) []models.SecurityEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []models.SecurityEvent
	for _, e := range c.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// recordingLimiter notes the identities it was asked about and always admits.
type recordingLimiter struct {
	mu         sync.Mutex
	identities []string
	decision   models.Decision
}

func (r *recordingLimiter) Check(ctx context.Context, tier *models.LimitTier, identity, route string) models.Decision {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.identities = append(r.identities, identity)
	return r.decision
}

type pipelineFixture struct {
	pipeline *Pipeline
	emitter  *captureEmitter
	store    *store.MemoryStore
}

func newPipelineFixture(t *testing.T, opts ...PipelineOption) *pipelineFixture {
	t.Helper()

	s := store.NewMemoryStore()
	t.Cleanup(func() { s.Close() })

	emitter := &captureEmitter{}
	limiter := ratelimit.NewTieredLimiter(s, emitter)
	registry := revocation.NewRegistry(s, emitter)
	tiers := models.NewTierTable(models.DefaultTiers(), models.DefaultRoutes())

	base := []PipelineOption{
		WithDetector(detect.NewDetector(models.DetectorConfig{
			MaxHeaderCount: 50,
			MaxHeaderBytes: 8192,
			MaxBodyBytes:   1024,
			BlockedAgents:  []string{"sqlmap"},
		})),
		WithAuth(NewHMACVerifier(testSecret)),
	}

	return &pipelineFixture{
		pipeline: NewPipeline(tiers, limiter, registry, emitter, append(base, opts...)...),
		emitter:  emitter,
		store:    s,
	}
}

func issueToken(t *testing.T, subject string, ttl time.Duration) (string, *models.Credential) {
	t.Helper()
	raw, cred, err := models.EncodeCredential(subject, time.Now().Add(ttl), []byte(testSecret))
	require.NoError(t, err)
	return raw, cred
}

func TestPipeline_AdmitsCleanAnonymousRequest(t *testing.T) {
	f := newPipelineFixture(t)

	decision := f.pipeline.Process(context.Background(), models.RequestView{
		Method:     "GET",
		Path:       "/api/v1/resource",
		RemoteAddr: "203.0.113.9:1234",
	})

	assert.True(t, decision.Allowed)
	assert.Empty(t, f.emitter.events)
}

func TestPipeline_SuspiciousPatternIsLoggedButNotBlocked(t *testing.T) {
	f := newPipelineFixture(t)

	decision := f.pipeline.Process(context.Background(), models.RequestView{
		Method:     "GET",
		Path:       "/api/v1/search",
		RawQuery:   "q=1 or 1=1",
		RemoteAddr: "203.0.113.9:1234",
	})

	// Detection informs, it never decides.
	assert.True(t, decision.Allowed)

	findings := f.emitter.byType(models.EventSuspiciousPattern)
	require.Len(t, findings, 1)
	assert.Equal(t, "ip:203.0.113.9", findings[0].Identity)
}

func TestPipeline_DetectionSeesUnauthenticatedProbes(t *testing.T) {
	f := newPipelineFixture(t)

	// Auth-required route, no credential, hostile query: the request is
	// denied, but the finding must still be recorded.
	decision := f.pipeline.Process(context.Background(), models.RequestView{
		Method:     "GET",
		Path:       "/api/v1/stream",
		RawQuery:   "q='; drop table sessions",
		RemoteAddr: "203.0.113.9:1234",
	})

	assert.False(t, decision.Allowed)
	assert.Equal(t, models.ReasonAuthRequired, decision.Reason)
	assert.Len(t, f.emitter.byType(models.EventSuspiciousPattern), 1)
}

func TestPipeline_AuthRequiredWithoutCredential(t *testing.T) {
	f := newPipelineFixture(t)

	decision := f.pipeline.Process(context.Background(), models.RequestView{
		Method:     "GET",
		Path:       "/api/v1/stream",
		RemoteAddr: "203.0.113.9:1234",
	})

	assert.False(t, decision.Allowed)
	assert.Equal(t, models.ReasonAuthRequired, decision.Reason)
}

func TestPipeline_AuthRequiredWithForgedCredential(t *testing.T) {
	f := newPipelineFixture(t)

	raw, _, err := models.EncodeCredential("intruder", time.Now().Add(time.Hour), []byte("wrong-secret"))
	require.NoError(t, err)

	decision := f.pipeline.Process(context.Background(), models.RequestView{
		Method:        "GET",
		Path:          "/api/v1/stream",
		RemoteAddr:    "203.0.113.9:1234",
		RawCredential: raw,
	})

	assert.False(t, decision.Allowed)
	assert.Equal(t, models.ReasonAuthRequired, decision.Reason)
}

func TestPipeline_AdmitsValidCredentialOnProtectedRoute(t *testing.T) {
	f := newPipelineFixture(t)
	raw, _ := issueToken(t, "user-42", time.Hour)

	decision := f.pipeline.Process(context.Background(), models.RequestView{
		Method:        "GET",
		Path:          "/api/v1/stream",
		RemoteAddr:    "203.0.113.9:1234",
		RawCredential: raw,
	})

	assert.True(t, decision.Allowed)
}

func TestPipeline_RevokedCredentialIsDenied(t *testing.T) {
	f := newPipelineFixture(t)
	ctx := context.Background()
	raw, cred := issueToken(t, "user-42", time.Hour)

	require.NoError(t, f.pipeline.RevokeCredential(ctx, raw))

	decision := f.pipeline.Process(ctx, models.RequestView{
		Method:        "GET",
		Path:          "/api/v1/stream",
		RemoteAddr:    "203.0.113.9:1234",
		RawCredential: raw,
	})

	assert.False(t, decision.Allowed)
	assert.Equal(t, models.ReasonRevokedCredential, decision.Reason)

	uses := f.emitter.byType(models.EventRevokedCredentialUse)
	require.Len(t, uses, 1)
	assert.Contains(t, uses[0].Detail, cred.TokenID)
}

func TestPipeline_RevokedCredentialStillAllowedOnOpenRoutes(t *testing.T) {
	f := newPipelineFixture(t)
	ctx := context.Background()
	raw, _ := issueToken(t, "user-42", time.Hour)

	require.NoError(t, f.pipeline.RevokeCredential(ctx, raw))

	// Routes that never demand auth do not consult the registry.
	decision := f.pipeline.Process(ctx, models.RequestView{
		Method:        "GET",
		Path:          "/api/v1/resource",
		RemoteAddr:    "203.0.113.9:1234",
		RawCredential: raw,
	})

	assert.True(t, decision.Allowed)
}

func TestPipeline_RateLimitRunsBeforeRevocation(t *testing.T) {
	f := newPipelineFixture(t)
	ctx := context.Background()
	raw, _ := issueToken(t, "flooder", time.Hour)
	require.NoError(t, f.pipeline.RevokeCredential(ctx, raw))

	view := models.RequestView{
		Method:        "GET",
		Path:          "/api/v1/stream",
		RemoteAddr:    "203.0.113.9:1234",
		RawCredential: raw,
	}

	// Exhaust the stream tier (50 req / 10s, ceiling 75) with the revoked
	// credential. Up to the ceiling every denial is the registry's; at
	// request 76 the limiter must deny first, proving the registry is no
	// longer consulted at flood rates.
	var last models.Decision
	for i := 0; i < 76; i++ {
		last = f.pipeline.Process(ctx, view)
		if i < 75 {
			require.Equal(t, models.ReasonRevokedCredential, last.Reason, "request %d", i+1)
		}
	}

	assert.False(t, last.Allowed)
	assert.Equal(t, models.ReasonRateLimited, last.Reason)
}

func TestPipeline_VerifiedSubjectIsTheLimitingIdentity(t *testing.T) {
	limiter := &recordingLimiter{decision: models.Allow()}
	emitter := &captureEmitter{}
	s := store.NewMemoryStore()
	t.Cleanup(func() { s.Close() })
	registry := revocation.NewRegistry(s, emitter)
	tiers := models.NewTierTable(models.DefaultTiers(), models.DefaultRoutes())

	pipeline := NewPipeline(tiers, limiter, registry, emitter, WithAuth(NewHMACVerifier(testSecret)))

	raw, _ := issueToken(t, "user-42", time.Hour)
	pipeline.Process(context.Background(), models.RequestView{
		Path:          "/api/v1/resource",
		RemoteAddr:    "203.0.113.9:1234",
		RawCredential: raw,
	})
	pipeline.Process(context.Background(), models.RequestView{
		Path:       "/api/v1/resource",
		RemoteAddr: "203.0.113.9:1234",
	})

	require.Len(t, limiter.identities, 2)
	assert.Equal(t, "sub:user-42", limiter.identities[0])
	assert.Equal(t, "ip:203.0.113.9", limiter.identities[1])
}

func TestPipeline_RevocationFailOpenByConfiguration(t *testing.T) {
	emitter := &captureEmitter{}
	limiter := &recordingLimiter{decision: models.Allow()}
	registry := revocation.NewRegistry(brokenStore{}, emitter)
	tiers := models.NewTierTable(models.DefaultTiers(), models.DefaultRoutes())

	raw, _ := issueToken(t, "user-42", time.Hour)
	view := models.RequestView{
		Path:          "/api/v1/stream",
		RemoteAddr:    "203.0.113.9:1234",
		RawCredential: raw,
	}

	// Default: fail closed, the request is rejected.
	closed := NewPipeline(tiers, limiter, registry, emitter, WithAuth(NewHMACVerifier(testSecret)))
	decision := closed.Process(context.Background(), view)
	assert.False(t, decision.Allowed)
	assert.Equal(t, models.ReasonAuthRequired, decision.Reason)

	// Explicit fail-open lets the request through.
	open := NewPipeline(tiers, limiter, registry, emitter,
		WithAuth(NewHMACVerifier(testSecret)),
		WithRevocationFailPolicy(models.FailOpen),
	)
	decision = open.Process(context.Background(), view)
	assert.True(t, decision.Allowed)
}

func TestPipeline_RevokeCredentialRejectsForgeries(t *testing.T) {
	f := newPipelineFixture(t)

	raw, _, err := models.EncodeCredential("intruder", time.Now().Add(time.Hour), []byte("wrong-secret"))
	require.NoError(t, err)

	assert.Error(t, f.pipeline.RevokeCredential(context.Background(), raw))
	assert.Error(t, f.pipeline.RevokeCredential(context.Background(), "garbage"))
}

func TestPipeline_NoTiersAdmits(t *testing.T) {
	emitter := &captureEmitter{}
	limiter := &recordingLimiter{decision: models.Allow()}
	s := store.NewMemoryStore()
	t.Cleanup(func() { s.Close() })
	registry := revocation.NewRegistry(s, emitter)

	pipeline := NewPipeline(models.NewTierTable(nil, nil), limiter, registry, emitter)
	decision := pipeline.Process(context.Background(), models.RequestView{
		Path:       "/anything",
		RemoteAddr: "1.2.3.4:1",
	})
	assert.True(t, decision.Allowed)
	assert.Empty(t, limiter.identities)
}

// brokenStore fails every operation.
type brokenStore struct{}

func (brokenStore) IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	return 0, assert.AnError
}
func (brokenStore) SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error {
	return assert.AnError
}
func (brokenStore) SetIfAbsent(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	return false, assert.AnError
}
func (brokenStore) Exists(ctx context.Context, key string) (bool, error) {
	return false, assert.AnError
}
func (brokenStore) TTL(ctx context.Context, key string) (time.Duration, error) {
	return 0, assert.AnError
}
func (brokenStore) Ping(ctx context.Context) error { return assert.AnError }
func (brokenStore) Close() error                   { return nil }
