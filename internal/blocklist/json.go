package blocklist

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// JSONStore persists the block list to a JSON file. The whole file is loaded
// at open and rewritten atomically on every Add; the list is small and
// append-only, so this stays cheap.
type JSONStore struct {
	path string

	mu      sync.Mutex
	entries map[string]Entry
}

// jsonFile is the on-disk layout.
type jsonFile struct {
	UpdatedAt time.Time `json:"updated_at"`
	Blocks    []Entry   `json:"blocks"`
}

// NewJSONStore opens (or creates) a JSON-backed block list at path.
func NewJSONStore(path string) (*JSONStore, error) {
	if path == "" {
		return nil, fmt.Errorf("path is required for JSON blocklist storage")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create blocklist directory: %w", err)
	}

	js := &JSONStore{
		path:    path,
		entries: make(map[string]Entry),
	}
	if err := js.load(); err != nil {
		return nil, err
	}
	return js, nil
}

func (js *JSONStore) load() error {
	data, err := os.ReadFile(js.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read blocklist file: %w", err)
	}
	if len(data) == 0 {
		return nil
	}

	var file jsonFile
	if err := json.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse blocklist file: %w", err)
	}
	for _, e := range file.Blocks {
		js.entries[e.IP] = e
	}
	return nil
}

// save writes the list via a temp file rename so a crash mid-write never
// truncates the block list.
func (js *JSONStore) save() error {
	file := jsonFile{
		UpdatedAt: time.Now().UTC(),
		Blocks:    make([]Entry, 0, len(js.entries)),
	}
	for _, e := range js.entries {
		file.Blocks = append(file.Blocks, e)
	}

	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal blocklist: %w", err)
	}

	tmp := js.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write blocklist file: %w", err)
	}
	if err := os.Rename(tmp, js.path); err != nil {
		return fmt.Errorf("failed to replace blocklist file: %w", err)
	}
	return nil
}

// List returns all entries.
func (js *JSONStore) List(ctx context.Context) ([]Entry, error) {
	js.mu.Lock()
	defer js.mu.Unlock()

	entries := make([]Entry, 0, len(js.entries))
	for _, e := range js.entries {
		entries = append(entries, e)
	}
	return entries, nil
}

// Add records a permanent block and persists the updated list.
func (js *JSONStore) Add(ctx context.Context, entry Entry) error {
	js.mu.Lock()
	defer js.mu.Unlock()

	if _, exists := js.entries[entry.IP]; exists {
		return nil
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	js.entries[entry.IP] = entry

	if err := js.save(); err != nil {
		delete(js.entries, entry.IP)
		return err
	}
	return nil
}

// Close is a no-op; every Add already persisted.
func (js *JSONStore) Close() error {
	return nil
}
