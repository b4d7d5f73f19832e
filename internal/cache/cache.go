// Package cache provides the byte cache used by the indexing pipeline to
// avoid refetching unchanged content. Two providers are available: an
// in-process LRU with TTL eviction (the default) and a shared Redis cache
// for multi-instance deployments. The provider is chosen by the
// cache.provider configuration key.
package cache

import (
	"context"

	"github.com/lodeworks/lode/internal/config"
	"github.com/lodeworks/lode/internal/errors"
	"github.com/lodeworks/lode/internal/interfaces"
	"github.com/lodeworks/lode/internal/logging"
)

// Provider names accepted by the cache.provider configuration key.
const (
	ProviderMemory = "memory"
	ProviderRedis  = "redis"
)

// New builds the cache store selected by the configuration. Unknown
// provider names and unreachable backends are reported as errors rather
// than silently degrading to a different provider.
func New(ctx context.Context, cfg *config.Configuration, logger logging.Logger) (interfaces.CacheStore, error) {
	provider := cfg.GetString("cache.provider", ProviderMemory)

	switch provider {
	case ProviderMemory:
		store := NewMemoryCache(MemoryCacheConfig{
			MaxEntries: cfg.GetInt("cache.memory.size", DefaultMemoryCacheSize),
			TTL:        parseTTL(cfg.GetString("cache.memory.ttl", "")),
		})
		logger.Debug(ctx, "Cache provider initialized",
			"provider", ProviderMemory,
			"max_entries", store.config.MaxEntries,
			"ttl", store.config.TTL.String())
		return store, nil

	case ProviderRedis:
		store, err := NewRedisCache(ctx, RedisCacheConfig{
			Addr:      cfg.GetString("cache.redis.addr", "localhost:6379"),
			DB:        cfg.GetInt("cache.redis.db", 0),
			Password:  cfg.GetString("cache.redis.password", ""),
			KeyPrefix: cfg.GetString("cache.redis.key_prefix", "lode:"),
		})
		if err != nil {
			return nil, err
		}
		logger.Debug(ctx, "Cache provider initialized",
			"provider", ProviderRedis,
			"addr", store.config.Addr,
			"db", store.config.DB)
		return store, nil

	default:
		return nil, errors.NewConfigError(errors.ErrCodeCacheProvider,
			"unknown cache provider "+provider+" (expected memory or redis)")
	}
}
