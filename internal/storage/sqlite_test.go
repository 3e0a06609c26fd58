package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestSQLite(t *testing.T, key string) *SQLiteStore {
	store, err := NewSQLiteStore(":memory:", key)
	require.NoError(t, err)

	require.NoError(t, store.RunMigrations("./migrations"))
	t.Cleanup(func() { _ = store.Close() })

	return store
}

func TestSQLiteStore_LoadMissing(t *testing.T) {
	store := setupTestSQLite(t, "shoppingCart")

	data, err := store.Load(context.Background())

	assert.ErrorIs(t, err, ErrSnapshotNotFound)
	assert.Nil(t, data)
}

func TestSQLiteStore_SaveOverwrites(t *testing.T) {
	store := setupTestSQLite(t, "shoppingCart")
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, []byte(`[{"id":"a","quantity":1}]`)))
	require.NoError(t, store.Save(ctx, []byte(`[]`)))

	data, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, `[]`, string(data))
}

func TestSQLiteStore_KeysAreIsolated(t *testing.T) {
	store := setupTestSQLite(t, "one")
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, []byte(`["one"]`)))

	other := &SQLiteStore{db: store.db, key: "two"}
	_, err := other.Load(ctx)
	assert.ErrorIs(t, err, ErrSnapshotNotFound)

	require.NoError(t, other.Save(ctx, []byte(`["two"]`)))
	data, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, `["one"]`, string(data))
}

func TestSQLiteStore_MigrationsAreIdempotent(t *testing.T) {
	store := setupTestSQLite(t, "shoppingCart")

	assert.NoError(t, store.RunMigrations("./migrations"))
}

func TestOpen_UnknownBackend(t *testing.T) {
	_, err := Open(context.Background(), Options{Backend: "floppy"})

	assert.ErrorContains(t, err, "unknown cart store backend")
}

func TestOpen_SQLite(t *testing.T) {
	store, err := Open(context.Background(), Options{
		Backend:          BackendSQLite,
		Key:              "shoppingCart",
		SQLitePath:       ":memory:",
		SQLiteMigrations: "./migrations",
	})
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Save(context.Background(), []byte(`[]`)))
	data, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, `[]`, string(data))
}

func TestNewSQLiteStore_UnopenablePath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "cart.db")

	store, err := NewSQLiteStore(path, "shoppingCart")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to ping database")
	assert.Nil(t, store)
}
