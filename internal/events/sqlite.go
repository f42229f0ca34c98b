package events

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "modernc.org/sqlite"

	"gatekeeper/internal/models"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS security_events (
	id          TEXT PRIMARY KEY,
	event_type  TEXT NOT NULL,
	severity    TEXT NOT NULL,
	identity    TEXT NOT NULL,
	route       TEXT NOT NULL,
	detail      TEXT NOT NULL,
	occurred_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_security_events_occurred_at ON security_events (occurred_at);
`

// SQLiteSink persists events to a local SQLite database. Suited to single
// node deployments that want a durable, queryable audit trail without
// running a database server.
type SQLiteSink struct {
	db *sql.DB
}

var _ Sink = (*SQLiteSink)(nil)

// NewSQLiteSink opens (and if needed initializes) the event database at dsn.
func NewSQLiteSink(dsn string) (*SQLiteSink, error) {
	if dsn == "" {
		return nil, fmt.Errorf("DSN is required for sqlite event sink")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open event database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping event database: %w", err)
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize event schema: %w", err)
	}

	return &SQLiteSink{db: db}, nil
}

func (s *SQLiteSink) Emit(event models.SecurityEvent) {
	_, err := s.db.ExecContext(context.Background(),
		`INSERT INTO security_events (id, event_type, severity, identity, route, detail, occurred_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		event.ID, string(event.Type), string(event.Severity),
		event.Identity, event.Route, event.Detail, event.OccurredAt,
	)
	if err != nil {
		// A failed event write never fails the request that caused it.
		slog.Error("failed to persist security event", "event_id", event.ID, "error", err)
	}
}

func (s *SQLiteSink) Close() error {
	return s.db.Close()
}
