package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lodeworks/lode/internal/errors"
)

func newTestRedisCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	cache, err := NewRedisCache(context.Background(), RedisCacheConfig{
		Addr:      mr.Addr(),
		KeyPrefix: "lode:",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })
	return cache, mr
}

func TestRedisCacheRoundTrip(t *testing.T) {
	cache, _ := newTestRedisCache(t)
	ctx := context.Background()

	_, found, err := cache.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, cache.Set(ctx, "k", []byte("value"), 0))

	data, found, err := cache.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []byte("value"), data)
}

func TestRedisCacheAppliesKeyPrefix(t *testing.T) {
	cache, mr := newTestRedisCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "item", []byte("v"), 0))

	got, err := mr.Get("lode:item")
	require.NoError(t, err)
	assert.Equal(t, "v", got)
}

func TestRedisCacheTTL(t *testing.T) {
	cache, mr := newTestRedisCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "k", []byte("v"), time.Second))

	_, found, err := cache.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, found)

	mr.FastForward(2 * time.Second)

	_, found, err = cache.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, found, "entry should expire after its ttl")
}

func TestRedisCacheDelete(t *testing.T) {
	cache, _ := newTestRedisCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "k", []byte("v"), 0))
	require.NoError(t, cache.Delete(ctx, "k"))

	_, found, err := cache.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, found)

	assert.NoError(t, cache.Delete(ctx, "k"))
}

func TestNewRedisCacheUnreachable(t *testing.T) {
	_, err := NewRedisCache(context.Background(), RedisCacheConfig{
		Addr: "localhost:1",
	})
	require.Error(t, err)
	assert.True(t, errors.IsStorageError(err))

	var lodeErr *errors.LodeError
	require.True(t, errors.As(err, &lodeErr))
	assert.Equal(t, errors.ErrCodeCacheProvider, lodeErr.Code)
}

func TestNewRedisProvider(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	cfg := testConfig(t, fmt.Sprintf(`
cache:
  provider: redis
  redis:
    addr: %s
`, mr.Addr()))

	store, err := New(context.Background(), cfg, testLogger())
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	rc, ok := store.(*RedisCache)
	require.True(t, ok, "provider redis should build the redis cache")
	assert.Equal(t, mr.Addr(), rc.config.Addr)

	require.NoError(t, store.Set(context.Background(), "probe", []byte("1"), 0))
	data, found, err := store.Get(context.Background(), "probe")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []byte("1"), data)
}
