package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// FusionCount returns the current counter value and when it last changed.
// A missing row reads as zero.
func (s *Store) FusionCount(ctx context.Context) (int64, time.Time, error) {
	if s == nil || s.DB == nil {
		return 0, time.Time{}, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var (
		count       int64
		lastUpdated int64
	)
	row := s.DB.QueryRowContext(ctx, `SELECT count, last_updated FROM fusion_counter WHERE id = 1`)
	if err := row.Scan(&count, &lastUpdated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, time.Time{}, nil
		}
		return 0, time.Time{}, fmt.Errorf("fetch fusion count: %w", err)
	}
	return count, time.UnixMilli(lastUpdated).UTC(), nil
}

// IncrementFusionCount adds one to the counter and returns the new value.
func (s *Store) IncrementFusionCount(ctx context.Context, now time.Time) (int64, error) {
	if s == nil || s.DB == nil {
		return 0, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin increment: %w", err)
	}
	defer tx.Rollback() // nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO fusion_counter (id, count, last_updated)
		VALUES (1, 1, ?)
		ON CONFLICT(id) DO UPDATE SET
			count = count + 1,
			last_updated = excluded.last_updated
	`, now.UTC().UnixMilli()); err != nil {
		return 0, fmt.Errorf("increment fusion count: %w", err)
	}

	var count int64
	if err := tx.QueryRowContext(ctx, `SELECT count FROM fusion_counter WHERE id = 1`).Scan(&count); err != nil {
		return 0, fmt.Errorf("read fusion count: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit increment: %w", err)
	}
	return count, nil
}
