package blocklist

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements the Store interface using PostgreSQL, for
// horizontally scaled deployments that share one block list.
type PostgresStore struct {
	pool *pgxpool.Pool
}

const pgSchema = `
CREATE TABLE IF NOT EXISTS permanent_blocks (
	ip TEXT PRIMARY KEY,
	reason TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// NewPostgresStore creates a PostgreSQL-backed block list, creating the
// table when missing.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("dsn is required for postgres blocklist storage")
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := pool.Exec(ctx, pgSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create blocklist table: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

// List returns all permanently blocked entries.
func (ps *PostgresStore) List(ctx context.Context) ([]Entry, error) {
	rows, err := ps.pool.Query(ctx,
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

// Add records a permanent block, ignoring duplicates via ON CONFLICT.
func (ps *PostgresStore) Add(ctx context.Context, entry Entry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := ps.pool.Exec(ctx,
		`INSERT INTO permanent_blocks (ip, reason, created_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (ip) DO NOTHING`,
		entry.IP, entry.Reason, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert block: %w", err)
	}
	return nil
}

// Close closes the connection pool.
func (ps *PostgresStore) Close() error {
	ps.pool.Close()
	return nil
}
