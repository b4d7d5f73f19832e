package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/lodeworks/lode/internal/interfaces"
)

// DefaultMemoryCacheSize bounds the in-process cache when cache.memory.size
// is not configured.
const DefaultMemoryCacheSize = 4096

// DefaultMemoryCacheTTL applies when cache.memory.ttl is absent or invalid.
const DefaultMemoryCacheTTL = time.Hour

// MemoryCacheConfig controls the in-process provider.
type MemoryCacheConfig struct {
	// MaxEntries caps the number of cached values before LRU eviction.
	MaxEntries int
	// TTL is the longest any entry may live. Set calls can shorten an
	// entry's lifetime but never extend it past this bound.
	TTL time.Duration
}

type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

// MemoryCache is an in-process LRU cache with TTL eviction.
type MemoryCache struct {
	config MemoryCacheConfig
	lru    *expirable.LRU[string, memoryEntry]
}

var _ interfaces.CacheStore = (*MemoryCache)(nil)

// NewMemoryCache creates an in-process cache. Zero or negative values fall
// back to the package defaults.
func NewMemoryCache(cfg MemoryCacheConfig) *MemoryCache {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = DefaultMemoryCacheSize
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultMemoryCacheTTL
	}
	return &MemoryCache{
		config: cfg,
		lru:    expirable.NewLRU[string, memoryEntry](cfg.MaxEntries, nil, cfg.TTL),
	}
}

// Get returns the cached value for key, or found=false when the key is
// absent or its entry has expired.
func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	entry, ok := c.lru.Get(key)
	if !ok {
		return nil, false, nil
	}
	if !entry.expiresAt.IsZero() && time.Now().After(entry.expiresAt) {
		c.lru.Remove(key)
		return nil, false, nil
	}
	data := make([]byte, len(entry.data))
	copy(data, entry.data)
	return data, true, nil
}

// Set stores value under key. A positive ttl shorter than the configured
// cache TTL expires the entry early; ttl <= 0 leaves only the cache-wide
// TTL in effect.
func (c *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	entry := memoryEntry{data: make([]byte, len(value))}
	copy(entry.data, value)
	if ttl > 0 && ttl < c.config.TTL {
		entry.expiresAt = time.Now().Add(ttl)
	}
	c.lru.Add(key, entry)
	return nil
}

// Delete removes key from the cache. Deleting an absent key is not an error.
func (c *MemoryCache) Delete(_ context.Context, key string) error {
	c.lru.Remove(key)
	return nil
}

// Len reports the number of live entries.
func (c *MemoryCache) Len() int {
	return c.lru.Len()
}

// Close purges the cache.
func (c *MemoryCache) Close() error {
	c.lru.Purge()
	return nil
}

// parseTTL interprets a duration string from configuration, falling back to
// the default for empty or malformed values.
func parseTTL(raw string) time.Duration {
	if raw == "" {
		return DefaultMemoryCacheTTL
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return DefaultMemoryCacheTTL
	}
	return d
}
