package observability

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"gatekeeper/internal/models"
)

// MetricsServer serves Prometheus metrics on a separate port.
type MetricsServer struct {
	server *http.Server
}

// NewMetricsServer creates a metrics HTTP server serving the Prometheus handler
// at the given path on the given port.
func NewMetricsServer(port int, path string, provider *Provider) *MetricsServer {
	mux := http.NewServeMux()

	if provider != nil && provider.promExporter != nil {
		mux.Handle(path, promhttp.Handler())
	}

	return &MetricsServer{
		server: &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: mux,
		},
	}
}

// Start begins serving metrics in a blocking call.
// Returns http.ErrServerClosed on graceful shutdown.
func (ms *MetricsServer) Start() error {
	slog.Info("Starting metrics server", "addr", ms.server.Addr)
	return ms.server.ListenAndServe()
}

// Shutdown gracefully stops the metrics server.
func (ms *MetricsServer) Shutdown(ctx context.Context) error {
	return ms.server.Shutdown(ctx)
}

// GateMeters holds the pipeline-level instruments: decisions by outcome and
// reason, and detector findings by rule. It satisfies the pipeline's
// Recorder interface.
type GateMeters struct {
	decisions metric.Int64Counter
	findings  metric.Int64Counter
}

// NewGateMeters creates the gate instruments on the global meter provider.
func NewGateMeters() (*GateMeters, error) {
	meter := otel.Meter("gatekeeper/pipeline")

	decisions, err := meter.Int64Counter(
		"gate.decisions",
		metric.WithDescription("Gate decisions by outcome and reason"),
		metric.WithUnit("{decision}"),
	)
	if err != nil {
		return nil, err
	}

	findings, err := meter.Int64Counter(
		"gate.findings",
		metric.WithDescription("Threat detector findings by rule"),
		metric.WithUnit("{finding}"),
	)
	if err != nil {
		return nil, err
	}

	return &GateMeters{decisions: decisions, findings: findings}, nil
}

// RecordDecision counts one pipeline decision.
func (g *GateMeters) RecordDecision(ctx context.Context, decision models.Decision) {
	attrs := []attribute.KeyValue{
		attribute.Bool("allowed", decision.Allowed),
		attribute.Bool("burst", decision.Burst),
	}
	if !decision.Allowed {
		attrs = append(attrs, attribute.String("reason", string(decision.Reason)))
	}
	g.decisions.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordFinding counts one detector finding.
func (g *GateMeters) RecordFinding(ctx context.Context, rule string) {
	g.findings.Add(ctx, 1, metric.WithAttributes(attribute.String("rule", rule)))
}
