package blocklist

import (
	"context"
	"fmt"

	"gatekeeper/internal/models"
)

// New instantiates a block list store based on the provided configuration.
// Supported types:
//   - memory: in-process only (blocks lost on restart)
//   - json: JSON file, durable, single instance
//   - sqlite: SQLite database, durable, single instance
//   - postgres: PostgreSQL, shared across instances
func New(ctx context.Context, cfg models.BlocklistConfig) (Store, error) {
	switch cfg.Type {
	case models.BlocklistTypeMemory:
		return NewMemoryStore(), nil
	case models.BlocklistTypeJSON:
		return NewJSONStore(cfg.Path)
	case models.BlocklistTypeSQLite:
		return NewSQLiteStore(cfg.Path)
	case models.BlocklistTypePostgres:
		return NewPostgresStore(ctx, cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported blocklist type: %s", cfg.Type)
	}
}
