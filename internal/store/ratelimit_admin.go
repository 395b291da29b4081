package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// RateLimitEntry is one persisted window.
type RateLimitEntry struct {
	Class        string
	ClientID     string
	RequestCount int
	ResetAt      time.Time
}

// RateLimitQuery selects persisted windows.
type RateLimitQuery struct {
	All      bool
	Class    string
	ClientID string
}

func (q RateLimitQuery) Validate() error {
	if q.All {
		return nil
	}
	if strings.TrimSpace(q.Class) != "" {
		return nil
	}
	if strings.TrimSpace(q.ClientID) != "" {
		return nil
	}
	return errors.New("must specify --all, --class, or --client")
}

func (q RateLimitQuery) whereClause() (string, []any, error) {
	if err := q.Validate(); err != nil {
		return "", nil, err
	}
	if q.All {
		return "", nil, nil
	}

	var (
		clauses []string
		args    []any
	)
	if class := strings.TrimSpace(q.Class); class != "" {
		clauses = append(clauses, "class = ?")
		args = append(args, class)
	}
	if client := strings.TrimSpace(q.ClientID); client != "" {
		clauses = append(clauses, "client_id = ?")
		args = append(args, client)
	}
	return "WHERE " + strings.Join(clauses, " AND "), args, nil
}

func (s *Store) ListRateLimits(ctx context.Context, q RateLimitQuery) ([]RateLimitEntry, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	where, args, err := q.whereClause()
	if err != nil {
		return nil, err
	}

	rows, err := s.DB.QueryContext(ctx, fmt.Sprintf(`
		SELECT class, client_id, request_count, reset_at
		FROM rate_limits
		%s
		ORDER BY class, client_id
	`, where), args...)
	if err != nil {
		return nil, fmt.Errorf("list rate limits: %w", err)
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup

	entries := []RateLimitEntry{}
	for rows.Next() {
		var (
			entry   RateLimitEntry
			resetAt int64
		)
		if err := rows.Scan(&entry.Class, &entry.ClientID, &entry.RequestCount, &resetAt); err != nil {
			return nil, fmt.Errorf("scan rate limits: %w", err)
		}
		entry.ResetAt = time.UnixMilli(resetAt).UTC()
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list rate limits: %w", err)
	}

	return entries, nil
}

func (s *Store) CountRateLimits(ctx context.Context, q RateLimitQuery) (int, error) {
	if s == nil || s.DB == nil {
		return 0, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	where, args, err := q.whereClause()
	if err != nil {
		return 0, err
	}

	row := s.DB.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT COUNT(*)
		FROM rate_limits
		%s
	`, where), args...)

	var count int
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count rate limits: %w", err)
	}
	return count, nil
}

func (s *Store) ResetRateLimits(ctx context.Context, q RateLimitQuery) (int64, error) {
	if s == nil || s.DB == nil {
		return 0, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	where, args, err := q.whereClause()
	if err != nil {
		return 0, err
	}

	result, err := s.DB.ExecContext(ctx, fmt.Sprintf(`
		DELETE FROM rate_limits
		%s
	`, where), args...)
	if err != nil {
		return 0, fmt.Errorf("reset rate limits: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reset rate limits: %w", err)
	}
	return affected, nil
}
