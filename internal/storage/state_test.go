package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lodeworks/lode/internal/interfaces"
)

// stateStoreUnderTest runs the same contract against every StateStore
// implementation.
func stateStoreUnderTest(t *testing.T, name string, open func(t *testing.T) interfaces.StateStore) {
	ctx := context.Background()

	t.Run(name+"/get missing returns ErrNotFound", func(t *testing.T) {
		store := open(t)
		defer func() { _ = store.Close() }()

		_, err := store.Get(ctx, "part", "missing")
		assert.ErrorIs(t, err, interfaces.ErrNotFound)
	})

	t.Run(name+"/put then get round trips", func(t *testing.T) {
		store := open(t)
		defer func() { _ = store.Close() }()

		require.NoError(t, store.Put(ctx, "part", "k", 3, []byte("payload")))

		entry, err := store.Get(ctx, "part", "k")
		require.NoError(t, err)
		assert.Equal(t, "part", entry.Partition)
		assert.Equal(t, "k", entry.Key)
		assert.Equal(t, 3, entry.Version)
		assert.Equal(t, []byte("payload"), entry.Data)
		assert.WithinDuration(t, time.Now(), entry.UpdatedAt, time.Minute)
	})

	t.Run(name+"/put replaces existing entry", func(t *testing.T) {
		store := open(t)
		defer func() { _ = store.Close() }()

		require.NoError(t, store.Put(ctx, "part", "k", 1, []byte("old")))
		require.NoError(t, store.Put(ctx, "part", "k", 2, []byte("new")))

		entry, err := store.Get(ctx, "part", "k")
		require.NoError(t, err)
		assert.Equal(t, 2, entry.Version)
		assert.Equal(t, []byte("new"), entry.Data)
	})

	t.Run(name+"/partitions are isolated", func(t *testing.T) {
		store := open(t)
		defer func() { _ = store.Close() }()

		require.NoError(t, store.Put(ctx, "one", "k", 1, []byte("a")))
		require.NoError(t, store.Put(ctx, "two", "k", 1, []byte("b")))

		entry, err := store.Get(ctx, "one", "k")
		require.NoError(t, err)
		assert.Equal(t, []byte("a"), entry.Data)

		entry, err = store.Get(ctx, "two", "k")
		require.NoError(t, err)
		assert.Equal(t, []byte("b"), entry.Data)
	})

	t.Run(name+"/delete removes entry", func(t *testing.T) {
		store := open(t)
		defer func() { _ = store.Close() }()

		require.NoError(t, store.Put(ctx, "part", "k", 1, []byte("x")))
		require.NoError(t, store.Delete(ctx, "part", "k"))

		_, err := store.Get(ctx, "part", "k")
		assert.ErrorIs(t, err, interfaces.ErrNotFound)

		// Deleting again is not an error.
		assert.NoError(t, store.Delete(ctx, "part", "k"))
	})

	t.Run(name+"/list returns sorted keys", func(t *testing.T) {
		store := open(t)
		defer func() { _ = store.Close() }()

		require.NoError(t, store.Put(ctx, "part", "zebra", 1, []byte("z")))
		require.NoError(t, store.Put(ctx, "part", "alpha", 1, []byte("a")))
		require.NoError(t, store.Put(ctx, "other", "middle", 1, []byte("m")))

		keys, err := store.List(ctx, "part")
		require.NoError(t, err)
		assert.Equal(t, []string{"alpha", "zebra"}, keys)

		keys, err = store.List(ctx, "empty")
		require.NoError(t, err)
		assert.Empty(t, keys)
	})
}

func TestMemoryStateStore(t *testing.T) {
	stateStoreUnderTest(t, "memory", func(t *testing.T) interfaces.StateStore {
		return NewMemoryStateStore()
	})
}

func TestSQLiteStateStore(t *testing.T) {
	stateStoreUnderTest(t, "sqlite", func(t *testing.T) interfaces.StateStore {
		store, err := NewSQLiteStateStore(filepath.Join(t.TempDir(), "state.db"))
		require.NoError(t, err)
		return store
	})
}

func TestMemoryStateStoreCopiesData(t *testing.T) {
	store := NewMemoryStateStore()
	ctx := context.Background()

	payload := []byte("original")
	require.NoError(t, store.Put(ctx, "p", "k", 1, payload))
	payload[0] = 'X'

	entry, err := store.Get(ctx, "p", "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("original"), entry.Data)

	entry.Data[0] = 'Y'
	again, err := store.Get(ctx, "p", "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("original"), again.Data)
}

func TestSQLiteStateStorePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	ctx := context.Background()

	store, err := NewSQLiteStateStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx, "_system.configuration", "last_merged", 1, []byte("a: 1\n")))
	require.NoError(t, store.Close())

	reopened, err := NewSQLiteStateStore(path)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	entry, err := reopened.Get(ctx, "_system.configuration", "last_merged")
	require.NoError(t, err)
	assert.Equal(t, []byte("a: 1\n"), entry.Data)
	assert.Equal(t, 1, entry.Version)
}

func TestSQLiteStateStoreCreatesParentDirs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "deeper", "state.db")

	store, err := NewSQLiteStateStore(path)
	require.NoError(t, err)
	assert.NoError(t, store.Close())
}
