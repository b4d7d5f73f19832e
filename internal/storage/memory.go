package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/lodeworks/lode/internal/interfaces"
)

// MemoryStateStore is an in-memory interfaces.StateStore used by tests
// and one-shot runs that should not touch disk. Data blobs are copied
// on the way in and out so callers never share backing arrays.
type MemoryStateStore struct {
	mu         sync.RWMutex
	partitions map[string]map[string]interfaces.StateEntry
}

var _ interfaces.StateStore = (*MemoryStateStore)(nil)

// NewMemoryStateStore creates an empty in-memory state store.
func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{
		partitions: make(map[string]map[string]interfaces.StateEntry),
	}
}

// Get returns the entry at (partition, key), or interfaces.ErrNotFound.
func (s *MemoryStateStore) Get(ctx context.Context, partition, key string) (interfaces.StateEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.partitions[partition][key]
	if !ok {
		return interfaces.StateEntry{}, interfaces.ErrNotFound
	}
	entry.Data = append([]byte(nil), entry.Data...)
	return entry, nil
}

// Put writes or replaces the entry at (partition, key).
func (s *MemoryStateStore) Put(ctx context.Context, partition, key string, version int, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys, ok := s.partitions[partition]
	if !ok {
		keys = make(map[string]interfaces.StateEntry)
		s.partitions[partition] = keys
	}
	keys[key] = interfaces.StateEntry{
		Partition: partition,
		Key:       key,
		Version:   version,
		Data:      append([]byte(nil), data...),
		UpdatedAt: time.Now().UTC(),
	}
	return nil
}

// Delete removes the entry at (partition, key).
func (s *MemoryStateStore) Delete(ctx context.Context, partition, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.partitions[partition], key)
	return nil
}

// List returns the keys present in a partition, sorted.
func (s *MemoryStateStore) List(ctx context.Context, partition string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.partitions[partition]))
	for key := range s.partitions[partition] {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStateStore) Close() error {
	return nil
}
