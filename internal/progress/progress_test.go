package progress

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrackerLifecycle(t *testing.T) {
	tracker := NewTracker(NewMemoryStore())
	ctx := context.Background()

	state, err := tracker.Get(ctx, "orders", 1)
	require.NoError(t, err)
	assert.Nil(t, state)

	tracker.Start(ctx, "orders", 1)
	state, err = tracker.Get(ctx, "orders", 1)
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.Equal(t, StatusSyncing, state.Status)
	assert.Equal(t, 0, state.Percent)

	tracker.Update(ctx, "orders", 1, 40, "processed 100 orders")
	state, _ = tracker.Get(ctx, "orders", 1)
	assert.Equal(t, 40, state.Percent)
	assert.Equal(t, "processed 100 orders", state.Message)

	tracker.Complete(ctx, "orders", 1, map[string]interface{}{"imported": 10})
	state, _ = tracker.Get(ctx, "orders", 1)
	assert.Equal(t, StatusCompleted, state.Status)
	assert.Equal(t, 100, state.Percent)
	assert.EqualValues(t, 10, state.Summary["imported"])
}

func TestTrackerFail(t *testing.T) {
	tracker := NewTracker(NewMemoryStore())
	ctx := context.Background()

	tracker.Start(ctx, "products", 2)
	tracker.Fail(ctx, "products", 2, "token expired")

	state, err := tracker.Get(ctx, "products", 2)
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.Equal(t, StatusFailed, state.Status)
	assert.Equal(t, "token expired", state.Message)
}

func TestTrackerKeysAreIsolated(t *testing.T) {
	tracker := NewTracker(NewMemoryStore())
	ctx := context.Background()

	tracker.Start(ctx, "orders", 1)
	state, err := tracker.Get(ctx, "products", 1)
	require.NoError(t, err)
	assert.Nil(t, state)
	state, err = tracker.Get(ctx, "orders", 2)
	require.NoError(t, err)
	assert.Nil(t, state)
}

func TestMemoryStoreExpiry(t *testing.T) {
	store := NewMemoryStore()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "k", map[string]int{"v": 1}, time.Minute))

	var out map[string]int
	ok, err := store.Get(ctx, "k", &out)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, out["v"])

	// Past the TTL the entry reads as absent.
	now = now.Add(2 * time.Minute)
	ok, err = store.Get(ctx, "k", &out)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryStoreDelete(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "k", "v", time.Minute))
	require.NoError(t, store.Delete(ctx, "k"))

	var out string
	ok, err := store.Get(ctx, "k", &out)
	require.NoError(t, err)
	assert.False(t, ok)
}
