package events

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gatekeeper/internal/models"
)

func TestSQLiteSink_PersistsEvents(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "events.db")

	sink, err := NewSQLiteSink(dsn)
	require.NoError(t, err)
	defer sink.Close()

	event := models.NewSecurityEvent(
		models.EventRateLimitViolation, models.SeverityMedium,
		"ip:1.2.3.4", "/api/v1/resource", "count 121 exceeded ceiling 120",
	)
	sink.Emit(event)
	sink.Emit(models.NewSecurityEvent(
		models.EventRevokedCredentialUse, models.SeverityMedium,
		"sub:user-1", "/api/v1/stream", "revoked credential presented",
	))

	var count int
	err = sink.db.QueryRow(`SELECT COUNT(*) FROM security_events`).Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	var eventType, identity, detail string
	err = sink.db.QueryRow(
		`SELECT event_type, identity, detail FROM security_events WHERE id = ?`, event.ID,
	).Scan(&eventType, &identity, &detail)
	require.NoError(t, err)
	assert.Equal(t, "rate_limit_violation", eventType)
	assert.Equal(t, "ip:1.2.3.4", identity)
	assert.Equal(t, "count 121 exceeded ceiling 120", detail)
}

func TestSQLiteSink_SchemaIsIdempotent(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "events.db")

	first, err := NewSQLiteSink(dsn)
	require.NoError(t, err)
	first.Emit(models.NewSecurityEvent(models.EventBlockedIdentity, models.SeverityLow, "ip:1.1.1.1", "/r", "d"))
	require.NoError(t, first.Close())

	// Reopening the same database must not disturb existing rows.
	second, err := NewSQLiteSink(dsn)
	require.NoError(t, err)
	defer second.Close()

	var count int
	require.NoError(t, second.db.QueryRow(`SELECT COUNT(*) FROM security_events`).Scan(&count))
	assert.Equal(t, 1, count)
}

func TestNewSQLiteSink_RequiresDSN(t *testing.T) {
	_, err := NewSQLiteSink("")
	assert.Error(t, err)
}
