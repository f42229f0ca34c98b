package observability

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gatekeeper/internal/models"
	"gatekeeper/internal/version"
)

func findFamily(t *testing.T, name string) *dto.MetricFamily {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func sumCounters(mf *dto.MetricFamily) float64 {
	var total float64
	for _, m := range mf.GetMetric() {
		total += m.GetCounter().GetValue()
	}
	return total
}

func TestGateMeters_ExportedThroughPrometheus(t *testing.T) {
	cfg := models.MetricsConfig{Enabled: true, Path: "/metrics", Port: 9090}
	obs := models.ObservabilityConfig{ServiceName: "gatekeeper-test"}

	provider, err := Setup(cfg, obs, version.GetInfo())
	require.NoError(t, err)
	defer provider.Shutdown(context.Background())
	require.NotNil(t, provider.PrometheusExporter())

	meters, err := NewGateMeters()
	require.NoError(t, err)

	ctx := context.Background()
	meters.RecordDecision(ctx, models.Allow())
	meters.RecordDecision(ctx, models.AllowBurst())
	meters.RecordDecision(ctx, models.DenyRetryAfter(models.ReasonRateLimited, time.Minute))
	meters.RecordFinding(ctx, "injection_pattern")

	decisions := findFamily(t, "gate_decisions_total")
	require.NotNil(t, decisions, "gate decision counter not exported")
	assert.Equal(t, float64(3), sumCounters(decisions))

	// Denials carry the reason as a label.
	var sawReason bool
	for _, m := range decisions.GetMetric() {
		for _, lp := range m.GetLabel() {
			if lp.GetName() == "reason" && lp.GetValue() == "rate_limited" {
				sawReason = true
			}
		}
	}
	assert.True(t, sawReason, "denied decision missing reason label")

	findings := findFamily(t, "gate_findings_total")
	require.NotNil(t, findings, "finding counter not exported")
	assert.Equal(t, float64(1), sumCounters(findings))
}

func TestSetup_MetricsDisabled(t *testing.T) {
	provider, err := Setup(
		models.MetricsConfig{Enabled: false},
		models.ObservabilityConfig{ServiceName: "gatekeeper-test"},
		version.GetInfo(),
	)
	require.NoError(t, err)
	defer provider.Shutdown(context.Background())

	assert.Nil(t, provider.PrometheusExporter())
}

func TestSetup_UnsupportedTraceExporter(t *testing.T) {
	_, err := Setup(
		models.MetricsConfig{Enabled: false},
		models.ObservabilityConfig{
			ServiceName: "gatekeeper-test",
			Tracing:     models.TracingConfig{Enabled: true, Exporter: "jaeger"},
		},
		version.GetInfo(),
	)
	assert.Error(t, err)
}
