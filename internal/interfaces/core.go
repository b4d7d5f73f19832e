// Package interfaces provides core abstractions for the lode
// application. This package defines interfaces to reduce coupling
// between packages and improve testability by enabling dependency
// injection and mocking.
package interfaces

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by store lookups when no entry exists for
// the requested key.
var ErrNotFound = errors.New("entry not found")

// StateEntry is one versioned blob in the state store.
type StateEntry struct {
	Partition string
	Key       string
	Version   int
	Data      []byte
	UpdatedAt time.Time
}

// StateStore persists small versioned blobs across runs, partitioned
// by subsystem. Reserved partitions start with an underscore.
// Implementations are safe for concurrent use.
type StateStore interface {
	// Get returns the entry at (partition, key), or ErrNotFound.
	Get(ctx context.Context, partition, key string) (StateEntry, error)

	// Put writes or replaces the entry at (partition, key).
	Put(ctx context.Context, partition, key string, version int, data []byte) error

	// Delete removes the entry at (partition, key). Missing entries are not an error.
	Delete(ctx context.Context, partition, key string) error

	// List returns the keys present in a partition, sorted.
	List(ctx context.Context, partition string) ([]string, error)

	// Close releases underlying resources.
	Close() error
}

// Item is one piece of indexed content.
type Item struct {
	ID          string
	URL         string
	Title       string
	Text        string
	ContentHash string
	FetchedAt   time.Time
}

// ItemStats summarizes the data store's contents.
type ItemStats struct {
	Count       int64
	OldestFetch time.Time
	NewestFetch time.Time
}

// DataStore persists indexed content items.
// Implementations are safe for concurrent use.
type DataStore interface {
	// PutItem writes or replaces an item by its ID.
	PutItem(ctx context.Context, item Item) error

	// GetItem returns the item with the given ID, or ErrNotFound.
	GetItem(ctx context.Context, id string) (Item, error)

	// SearchItems returns up to limit items whose title or text
	// matches the query, newest first.
	SearchItems(ctx context.Context, query string, limit int) ([]Item, error)

	// DeleteOlderThan removes items fetched before the cutoff and
	// returns how many were deleted.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)

	// Stats summarizes the store's contents.
	Stats(ctx context.Context) (ItemStats, error)

	// Close releases underlying resources.
	Close() error
}

// CacheStore is a byte cache with per-entry TTLs.
// Implementations are safe for concurrent use.
type CacheStore interface {
	// Get returns the cached value and whether it was present.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores a value. A zero ttl uses the provider's default.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a key. Missing keys are not an error.
	Delete(ctx context.Context, key string) error

	// Close releases underlying resources.
	Close() error
}

// Task is one unit of queued work, dispatched to a registered handler
// by name.
type Task struct {
	ID         string
	Name       string
	Payload    map[string]interface{}
	Priority   bool
	EnqueuedAt time.Time
}

// QueueStats is a snapshot of queue activity.
type QueueStats struct {
	Depth         int
	PriorityDepth int
	Enqueued      int64
	Processed     int64
	Failed        int64
}

// TaskQueue accepts tasks and hands them to workers, priority tasks
// first. Implementations are safe for concurrent use.
type TaskQueue interface {
	// Enqueue adds a regular priority task.
	Enqueue(ctx context.Context, task Task) error

	// EnqueuePriority adds a high priority task.
	EnqueuePriority(ctx context.Context, task Task) error

	// Next blocks until a task is available, the context is done, or
	// the queue is closed.
	Next(ctx context.Context) (Task, error)

	// Stats returns a snapshot of queue activity.
	Stats() QueueStats

	// Close shuts the queue down; pending Next calls return an error.
	Close()
}
