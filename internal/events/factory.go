package events

import (
	"fmt"
	"log/slog"

	"gatekeeper/internal/models"
)

// New instantiates the configured sink wrapped in a storm-damping dispatcher.
// Supported sinks:
//   - log: structured logger (default, no external dependencies)
//   - sqlite: local durable audit trail
//   - postgres: fleet-wide durable audit trail
func New(cfg models.EventsConfig, logger *slog.Logger) (Sink, error) {
	var sink Sink
	var err error

	switch cfg.Sink {
	case models.SinkTypeLog:
		sink = NewLogSink(logger)
	case models.SinkTypeSQLite:
		sink, err = NewSQLiteSink(cfg.DSN)
	case models.SinkTypePostgres:
		sink, err = NewPostgresSink(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported event sink: %s", cfg.Sink)
	}
	if err != nil {
		return nil, err
	}

	return NewDispatcher(sink, cfg.MaxPerSecond, cfg.Burst), nil
}
