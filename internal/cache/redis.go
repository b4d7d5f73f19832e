package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lodeworks/lode/internal/errors"
	"github.com/lodeworks/lode/internal/interfaces"
)

// redisPingTimeout bounds the connectivity check at construction.
const redisPingTimeout = 5 * time.Second

// RedisCacheConfig controls the shared Redis provider.
type RedisCacheConfig struct {
	Addr     string
	DB       int
	Password string
	// KeyPrefix namespaces all keys so several applications can share one
	// Redis instance.
	KeyPrefix string
}

// RedisCache stores cache entries in a shared Redis instance.
type RedisCache struct {
	config RedisCacheConfig
	client *redis.Client
}

var _ interfaces.CacheStore = (*RedisCache)(nil)

// NewRedisCache connects to Redis and verifies the connection with a ping.
// An unreachable backend fails construction so startup can abort instead of
// running with a cache that drops every operation.
func NewRedisCache(ctx context.Context, cfg RedisCacheConfig) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		DB:       cfg.DB,
		Password: cfg.Password,
	})

	pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()
	if _, err := client.Ping(pingCtx).Result(); err != nil {
		_ = client.Close()
		return nil, errors.NewStorageError(errors.ErrCodeCacheProvider,
			"failed to connect to redis at "+cfg.Addr, err)
	}

	return &RedisCache{config: cfg, client: client}, nil
}

func (c *RedisCache) key(key string) string {
	return c.config.KeyPrefix + key
}

// Get returns the cached value for key, or found=false on a miss.
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := c.client.Get(ctx, c.key(key)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.NewStorageError(errors.ErrCodeCacheProvider,
			"redis get failed for key "+key, err)
	}
	return data, true, nil
}

// Set stores value under key. A positive ttl expires the entry; ttl <= 0
// stores it without expiry.
func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	if err := c.client.Set(ctx, c.key(key), value, ttl).Err(); err != nil {
		return errors.NewStorageError(errors.ErrCodeCacheProvider,
			"redis set failed for key "+key, err)
	}
	return nil
}

// Delete removes key. Deleting an absent key is not an error.
func (c *RedisCache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, c.key(key)).Err(); err != nil {
		return errors.NewStorageError(errors.ErrCodeCacheProvider,
			"redis delete failed for key "+key, err)
	}
	return nil
}

// Close releases the client connection pool.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
