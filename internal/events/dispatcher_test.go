package events

import (
	"bytes"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gatekeeper/internal/models"
)

// countingSink records every event it receives.
type countingSink struct {
	mu     sync.Mutex
	events []models.SecurityEvent
	closed bool
}

func (c *countingSink) Emit(event models.SecurityEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
}

func (c *countingSink) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *countingSink) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}

func testEvent(severity models.Severity) models.SecurityEvent {
	return models.NewSecurityEvent(models.EventRateLimitViolation, severity, "ip:1.2.3.4", "/r", "detail")
}

func TestDispatcher_PassesThroughUnderRate(t *testing.T) {
	sink := &countingSink{}
	d := NewDispatcher(sink, 1000, 1000)

	for i := 0; i < 10; i++ {
		d.Emit(testEvent(models.SeverityMedium))
	}

	assert.Equal(t, 10, sink.count())
	assert.Equal(t, int64(0), d.Dropped())
}

func TestDispatcher_DropsBeyondBurst(t *testing.T) {
	sink := &countingSink{}
	// 1 event/s sustained with a burst of 3: a flood of 50 delivers at most
	// the burst plus whatever trickles in during the loop.
	d := NewDispatcher(sink, 1, 3)

	for i := 0; i < 50; i++ {
		d.Emit(testEvent(models.SeverityMedium))
	}

	assert.LessOrEqual(t, sink.count(), 4)
	assert.GreaterOrEqual(t, sink.count(), 3)
	assert.Equal(t, int64(50-sink.count()), d.Dropped())
}

func TestDispatcher_CriticalBypassesDamping(t *testing.T) {
	sink := &countingSink{}
	d := NewDispatcher(sink, 1, 1)

	// Exhaust the budget, then emit criticals: all must be delivered.
	d.Emit(testEvent(models.SeverityMedium))
	for i := 0; i < 10; i++ {
		d.Emit(testEvent(models.SeverityCritical))
	}

	require.GreaterOrEqual(t, sink.count(), 11)
	assert.Equal(t, int64(0), d.Dropped())
}

func TestDispatcher_ZeroRateDisablesDamping(t *testing.T) {
	sink := &countingSink{}
	d := NewDispatcher(sink, 0, 0)

	for i := 0; i < 500; i++ {
		d.Emit(testEvent(models.SeverityLow))
	}

	assert.Equal(t, 500, sink.count())
	assert.Equal(t, int64(0), d.Dropped())
}

func TestDispatcher_CloseClosesSink(t *testing.T) {
	sink := &countingSink{}
	d := NewDispatcher(sink, 100, 100)

	require.NoError(t, d.Close())
	assert.True(t, sink.closed)
}

func TestLogSink_EmitWritesStructuredRecord(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	sink := NewLogSink(logger)
	sink.Emit(models.NewSecurityEvent(
		models.EventSuspiciousPattern, models.SeverityHigh,
		"ip:1.2.3.4", "/api/v1/search", "injection_pattern: union select",
	))
	require.NoError(t, sink.Close())

	out := buf.String()
	assert.Contains(t, out, "suspicious_pattern")
	assert.Contains(t, out, "high")
	assert.Contains(t, out, "ip:1.2.3.4")
	assert.Contains(t, out, "/api/v1/search")
	assert.Contains(t, out, "injection_pattern")
}

func TestNew_LogSinkByDefault(t *testing.T) {
	sink, err := New(models.EventsConfig{Sink: models.SinkTypeLog, MaxPerSecond: 10, Burst: 20}, slog.Default())
	require.NoError(t, err)
	defer sink.Close()

	_, ok := sink.(*Dispatcher)
	assert.True(t, ok, "factory wraps sinks in the damping dispatcher")
}

func TestNew_UnknownSink(t *testing.T) {
	_, err := New(models.EventsConfig{Sink: "kafka"}, slog.Default())
	assert.Error(t, err)
}
