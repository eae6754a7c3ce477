package ratelimit

import (
	"context"
	"sync"
	"time"
)

// counterEntry holds a windowed counter and its expiry for cleanup.
type counterEntry struct {
	count     int64
	expiresAt time.Time
}

// MemoryCounterStore is an in-process CounterStore. Window keys rotate as
// windows roll over; a background goroutine periodically evicts expired
// entries so abandoned windows do not accumulate.
type MemoryCounterStore struct {
	cleanupInterval time.Duration

	mu       sync.Mutex
	counters map[string]*counterEntry
	done     chan struct{}
	closed   bool
}

// NewMemoryCounterStore creates a counter store with the given cleanup
// interval. It starts a background goroutine for eviction.
func NewMemoryCounterStore(cleanupInterval time.Duration) *MemoryCounterStore {
	m := &MemoryCounterStore{
		cleanupInterval: cleanupInterval,
		counters:        make(map[string]*counterEntry),
		done:            make(chan struct{}),
	}
	go m.cleanup()
	return m
}

// Increment atomically increments the counter for key, creating it with the
// given retention when absent, and returns the new count.
func (m *MemoryCounterStore) Increment(ctx context.Context, key string, window time.Duration) (int64, error) {
	now := time.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	e, exists := m.counters[key]
	if !exists || now.After(e.expiresAt) {
		e = &counterEntry{expiresAt: now.Add(window)}
		m.counters[key] = e
	}
	e.count++
	return e.count, nil
}

// Close stops the background cleanup goroutine.
func (m *MemoryCounterStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.done)
	}
	return nil
}

// cleanup periodically evicts expired counters.
func (m *MemoryCounterStore) cleanup() {
	if m.cleanupInterval <= 0 {
		return
	}
	ticker := time.NewTicker(m.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			m.evictExpired()
		}
	}
}

func (m *MemoryCounterStore) evictExpired() {
	now := time.Now()
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, e := range m.counters {
		if now.After(e.expiresAt) {
			delete(m.counters, key)
		}
	}
}
