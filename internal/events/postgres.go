package events

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"gatekeeper/internal/models"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS security_events (
	id          TEXT PRIMARY KEY,
	event_type  TEXT NOT NULL,
	severity    TEXT NOT NULL,
	identity    TEXT NOT NULL,
	route       TEXT NOT NULL,
	detail      TEXT NOT NULL,
	occurred_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_security_events_occurred_at ON security_events (occurred_at);
`

// PostgresSink persists events to PostgreSQL for fleet-wide audit. Writes are
// bounded by a short timeout so a slow database cannot stall emission.
type PostgresSink struct {
	pool *pgxpool.Pool
}

var _ Sink = (*PostgresSink)(nil)

// NewPostgresSink connects to PostgreSQL and ensures the event schema exists.
func NewPostgresSink(dsn string) (*PostgresSink, error) {
	if dsn == "" {
		return nil, fmt.Errorf("DSN is required for postgres event sink")
	}

	pool, err := pgxpool.New(context.Background(), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping event database: %w", err)
	}

	if _, err := pool.Exec(context.Background(), postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to initialize event schema: %w", err)
	}

	return &PostgresSink{pool: pool}, nil
}

func (s *PostgresSink) Emit(event models.SecurityEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO security_events (id, event_type, severity, identity, route, detail, occurred_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		event.ID, string(event.Type), string(event.Severity),
		event.Identity, event.Route, event.Detail, event.OccurredAt,
	)
	if err != nil {
		slog.Error("failed to persist security event", "event_id", event.ID, "error", err)
	}
}

func (s *PostgresSink) Close() error {
	s.pool.Close()
	return nil
}
