package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/kbsync-cli/internal/core/domain"
)

func newTestStore(t *testing.T) *StateStore {
	t.Helper()
	store, err := NewStateStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStateStore_FreshDatabase_IsEmptyState(t *testing.T) {
	store := newTestStore(t)

	state, err := store.LoadState(context.Background())
	require.NoError(t, err)
	assert.True(t, state.IsEmpty())
}

func TestStateStore_MarkerUpsert(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.SaveLastRunMarker(ctx, "2024-06-01T12:00:00Z"))
	require.NoError(t, store.SaveLastRunMarker(ctx, "2024-06-02T12:00:00Z"))

	state, err := store.LoadState(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2024-06-02T12:00:00Z", state.LastRunMarker)
}

func TestStateStore_MappingReplacedWholesale(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.SaveMapping(ctx, map[string]string{"1": "a", "2": "b"}))
	require.NoError(t, store.SaveMapping(ctx, map[string]string{"2": "b2", "3": "c"}))

	state, err := store.LoadState(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"2": "b2", "3": "c"}, state.Mapping)
}

func TestStateStore_Collection_NotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.LoadCollection(context.Background())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStateStore_CollectionRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	created := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	info := domain.CollectionInfo{
		CollectionID: "col-1",
		CreatedAt:    created,
		LastUpdated:  created,
		Stats:        &domain.CollectionStats{TotalFiles: 5, CompletedFiles: 4, FailedFiles: 1, UsageBytes: 2048},
	}
	require.NoError(t, store.SaveCollection(ctx, info))

	got, err := store.LoadCollection(ctx)
	require.NoError(t, err)
	assert.Equal(t, "col-1", got.CollectionID)
	assert.True(t, got.CreatedAt.Equal(created))
	assert.True(t, got.LastUpdated.Equal(created))
	assert.Equal(t, info.Stats, got.Stats)
}

func TestStateStore_CollectionUpsert_KeepsSingleRow(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	ts := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, store.SaveCollection(ctx, domain.CollectionInfo{CollectionID: "col-1", CreatedAt: ts, LastUpdated: ts}))
	require.NoError(t, store.SaveCollection(ctx, domain.CollectionInfo{CollectionID: "col-2", CreatedAt: ts, LastUpdated: ts}))

	got, err := store.LoadCollection(ctx)
	require.NoError(t, err)
	assert.Equal(t, "col-2", got.CollectionID)

	var count int
	row := store.db.QueryRow("SELECT COUNT(*) FROM collection_info")
	require.NoError(t, row.Scan(&count))
	assert.Equal(t, 1, count)
}

func TestStateStore_MigrationsIdempotent(t *testing.T) {
	dir := t.TempDir()

	store, err := NewStateStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.SaveLastRunMarker(context.Background(), "2024-06-01T12:00:00Z"))
	require.NoError(t, store.Close())

	// Reopening the same database must not re-run applied migrations
	// or lose data.
	store, err = NewStateStore(dir)
	require.NoError(t, err)
	defer store.Close()

	state, err := store.LoadState(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "2024-06-01T12:00:00Z", state.LastRunMarker)
}
