package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"gatekeeper/internal/store"
)

// InstrumentedStore wraps a store.Store implementation with OpenTelemetry
// tracing and metrics instrumentation. Store calls sit on the hot path of
// every request, so their latency distribution and error rate are the first
// things to look at when gate decisions slow down or degrade.
type InstrumentedStore struct {
	inner    store.Store
	tracer   trace.Tracer
	duration metric.Float64Histogram
	errors   metric.Int64Counter
}

var _ store.Store = (*InstrumentedStore)(nil)

// NewInstrumentedStore creates a store wrapper that records trace spans,
// operation latency histograms, and error counters for every store call.
func NewInstrumentedStore(inner store.Store) (*InstrumentedStore, error) {
	tracer := otel.Tracer("gatekeeper/store")
	meter := otel.Meter("gatekeeper/store")

	duration, err := meter.Float64Histogram(
		"store.operation.duration",
		metric.WithDescription("Duration of shared store operations in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	errCounter, err := meter.Int64Counter(
		"store.operation.errors",
		metric.WithDescription("Number of shared store operation errors"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	return &InstrumentedStore{
		inner:    inner,
		tracer:   tracer,
		duration: duration,
		errors:   errCounter,
	}, nil
}

func (s *InstrumentedStore) startSpan(ctx context.Context, operation string) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "store."+operation,
		trace.WithAttributes(attribute.String("store.operation", operation)),
	)
}

func (s *InstrumentedStore) record(ctx context.Context, span trace.Span, operation string, start time.Time, err error) {
	elapsed := time.Since(start).Seconds()
	attrs := metric.WithAttributes(attribute.String("operation", operation))

	s.duration.Record(ctx, elapsed, attrs)

	if err != nil {
		s.errors.Add(ctx, 1, attrs)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}

	span.End()
}

func (s *InstrumentedStore) IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	ctx, span := s.startSpan(ctx, "IncrWithTTL")
	start := time.Now()
	count, err := s.inner.IncrWithTTL(ctx, key, ttl)
	s.record(ctx, span, "IncrWithTTL", start, err)
	return count, err
}

func (s *InstrumentedStore) SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error {
	ctx, span := s.startSpan(ctx, "SetWithTTL")
	start := time.Now()
	err := s.inner.SetWithTTL(ctx, key, value, ttl)
	s.record(ctx, span, "SetWithTTL", start, err)
	return err
}

func (s *InstrumentedStore) SetIfAbsent(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	ctx, span := s.startSpan(ctx, "SetIfAbsent")
	start := time.Now()
	set, err := s.inner.SetIfAbsent(ctx, key, value, ttl)
	s.record(ctx, span, "SetIfAbsent", start, err)
	return set, err
}

func (s *InstrumentedStore) Exists(ctx context.Context, key string) (bool, error) {
	ctx, span := s.startSpan(ctx, "Exists")
	start := time.Now()
	exists, err := s.inner.Exists(ctx, key)
	s.record(ctx, span, "Exists", start, err)
	return exists, err
}

func (s *InstrumentedStore) TTL(ctx context.Context, key string) (time.Duration, error) {
	ctx, span := s.startSpan(ctx, "TTL")
	start := time.Now()
	ttl, err := s.inner.TTL(ctx, key)
	s.record(ctx, span, "TTL", start, err)
	return ttl, err
}

func (s *InstrumentedStore) Ping(ctx context.Context) error {
	ctx, span := s.startSpan(ctx, "Ping")
	start := time.Now()
	err := s.inner.Ping(ctx)
	s.record(ctx, span, "Ping", start, err)
	return err
}

func (s *InstrumentedStore) Close() error {
	return s.inner.Close()
}
