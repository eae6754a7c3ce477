// Package blocklist persists the permanent block list so administrative
// blocks survive restarts. It provides a clean abstraction implemented by
// in-memory, JSON file, PostgreSQL and SQLite backends.
package blocklist

import (
	"context"
	"time"
)

// Entry is one permanently blocked client.
type Entry struct {
	IP        string    `json:"ip"`
	Reason    string    `json:"reason,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Store defines the permanent block list persistence contract. The list is
// append-only: there is no removal operation.
type Store interface {
	// List returns all permanently blocked entries.
	List(ctx context.Context) ([]Entry, error)

	// Add records a permanent block. Adding an IP that is already present
	// is a no-op.
	Add(ctx context.Context, entry Entry) error

	// Close closes the store and releases resources.
	Close() error
}
