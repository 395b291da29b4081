package store

import (
	"context"
	"errors"
	"fmt"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS fusion_counter (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		count INTEGER NOT NULL DEFAULT 0,
		last_updated INTEGER NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS rate_limits (
		window_key TEXT PRIMARY KEY,
		class TEXT NOT NULL,
		client_id TEXT NOT NULL,
		request_count INTEGER NOT NULL DEFAULT 0,
		reset_at INTEGER NOT NULL
	);`,
	`CREATE INDEX IF NOT EXISTS idx_rate_limits_reset ON rate_limits(reset_at);`,
	`CREATE INDEX IF NOT EXISTS idx_rate_limits_class ON rate_limits(class);`,
}

// Migrate ensures the required database tables exist.
func (s *Store) Migrate(ctx context.Context) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	for _, stmt := range schemaStatements {
		if _, err := s.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("store migration failed: %w", err)
		}
	}

	return nil
}
