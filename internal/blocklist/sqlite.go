package blocklist

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using SQLite, a lightweight
// durable option for single-instance deployments.
type SQLiteStore struct {
	db *sql.DB
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS permanent_blocks (
	ip TEXT PRIMARY KEY,
	reason TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMP NOT NULL
)`

// NewSQLiteStore creates a SQLite-backed block list at path, creating the
// table when missing.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("path is required for SQLite blocklist storage")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create blocklist table: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// List returns all permanently blocked entries.
func (ss *SQLiteStore) List(ctx context.Context) ([]Entry, error) {
	rows, err := ss.db.QueryContext(ctx,
		`SELECT ip, reason, created_at FROM permanent_blocks ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to query blocklist: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.IP, &e.Reason, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan blocklist row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read blocklist rows: %w", err)
	}
	return entries, nil
}

// Add records a permanent block, ignoring duplicates.
func (ss *SQLiteStore) Add(ctx context.Context, entry Entry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := ss.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO permanent_blocks (ip, reason, created_at)
		 VALUES (?, ?, ?)`,
		entry.IP, entry.Reason, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert block: %w", err)
	}
	return nil
}

// Close closes the database handle.
func (ss *SQLiteStore) Close() error {
	return ss.db.Close()
}
