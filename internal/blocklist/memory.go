package blocklist

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store for single-instance deployments and
// tests. Blocks do not survive a restart.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewMemoryStore creates an empty in-memory block list.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]Entry),
	}
}

// List returns all entries.
func (ms *MemoryStore) List(ctx context.Context) ([]Entry, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	entries := make([]Entry, 0, len(ms.entries))
	for _, e := range ms.entries {
		entries = append(entries, e)
	}
	return entries, nil
}

// Add records a permanent block, ignoring duplicates.
func (ms *MemoryStore) Add(ctx context.Context, entry Entry) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if _, exists := ms.entries[entry.IP]; exists {
		return nil
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	ms.entries[entry.IP] = entry
	return nil
}

// Close is a no-op for the memory store.
func (ms *MemoryStore) Close() error {
	return nil
}
