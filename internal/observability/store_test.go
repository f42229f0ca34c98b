package observability

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gatekeeper/internal/store"
)

func TestInstrumentedStore_DelegatesToInner(t *testing.T) {
	inner := store.NewMemoryStore()
	t.Cleanup(func() { inner.Close() })

	instrumented, err := NewInstrumentedStore(inner)
	require.NoError(t, err)
	ctx := context.Background()

	count, err := instrumented.IncrWithTTL(ctx, "counter", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	count, err = instrumented.IncrWithTTL(ctx, "counter", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	require.NoError(t, instrumented.SetWithTTL(ctx, "block", "1", time.Minute))

	remaining, err := instrumented.TTL(ctx, "block")
	require.NoError(t, err)
	assert.Greater(t, remaining, time.Duration(0))

	set, err := instrumented.SetIfAbsent(ctx, "block", "2", time.Minute)
	require.NoError(t, err)
	assert.False(t, set)

	exists, err := instrumented.Exists(ctx, "block")
	require.NoError(t, err)
	assert.True(t, exists)

	assert.NoError(t, instrumented.Ping(ctx))
}
