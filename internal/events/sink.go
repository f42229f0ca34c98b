// Package events delivers security events to an append-only sink. The
// gatekeeper only writes events; reading them back is the job of external
// observability. Sinks are pluggable (structured log, SQLite, PostgreSQL)
// and every sink sits behind a rate-limited dispatcher so an attack cannot
// amplify into sink overload.
package events

import (
	"log/slog"

	"gatekeeper/internal/models"
)

// Emitter is the append-only emission interface consumed by the pipeline
// components. Emit must never block the request path for long; slow sinks
// belong behind the Dispatcher.
type Emitter interface {
	Emit(event models.SecurityEvent)
}

// Sink persists security events. Implementations report delivery errors to
// their own logs; a failed event write never fails the request that caused it.
type Sink interface {
	Emitter

	// Close flushes and releases sink resources.
	Close() error
}

// LogSink writes events to the structured logger. It is the default sink and
// needs no external dependencies.
type LogSink struct {
	logger *slog.Logger
}

var _ Sink = (*LogSink)(nil)

// NewLogSink creates a sink writing to the given logger, or slog.Default()
// when logger is nil.
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

func (s *LogSink) Emit(event models.SecurityEvent) {
	s.logger.Warn("security event",
		"event_id", event.ID,
		"event_type", string(event.Type),
		"severity", string(event.Severity),
		"identity", event.Identity,
		"route", event.Route,
		"detail", event.Detail,
		"occurred_at", event.OccurredAt,
	)
}

func (s *LogSink) Close() error {
	return nil
}
