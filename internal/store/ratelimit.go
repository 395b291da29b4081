package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fusionlab/fusionlab/internal/ratelimit"
)

// RateLimiter keeps fixed-window state in the rate_limits table so windows
// survive restarts and can be shared by processes using the same database.
type RateLimiter struct {
	Store  *Store
	Limits map[string]ratelimit.RateLimit
	Clock  func() time.Time

	// OnReject, when set, is called for every rejected request.
	OnReject func(class, clientID string)
}

// NewRateLimiter returns a limiter backed by s.
func NewRateLimiter(s *Store, limits map[string]ratelimit.RateLimit) *RateLimiter {
	return &RateLimiter{Store: s, Limits: limits}
}

// IsRateLimited records the request and reports whether it exceeds the budget.
func (l *RateLimiter) IsRateLimited(ctx context.Context, class, clientID string) (bool, error) {
	if l == nil || l.Store == nil || l.Store.DB == nil {
		return false, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	limit := ratelimit.ResolveLimit(l.Limits, class)
	now := l.now()
	windowKey := ratelimit.Key(class, clientID)

	tx, err := l.Store.DB.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin rate limit check: %w", err)
	}
	defer tx.Rollback() // nolint:errcheck // no-op after commit

	var (
		count   int
		resetAt int64
	)
	err = tx.QueryRowContext(ctx, `
		SELECT request_count, reset_at
		FROM rate_limits
		WHERE window_key = ?
	`, windowKey).Scan(&count, &resetAt)

	switch {
	case errors.Is(err, sql.ErrNoRows) || (err == nil && now.UnixMilli() > resetAt):
		_, err = tx.ExecContext(ctx, `
			INSERT INTO rate_limits (window_key, class, client_id, request_count, reset_at)
			VALUES (?, ?, ?, 1, ?)
			ON CONFLICT(window_key) DO UPDATE SET
				request_count = 1,
				reset_at = excluded.reset_at
		`, windowKey, class, clientID, now.Add(limit.WindowDuration).UnixMilli())
		if err != nil {
			return false, fmt.Errorf("open rate limit window: %w", err)
		}
	case err != nil:
		return false, fmt.Errorf("fetch rate limit: %w", err)
	case count >= limit.RequestsPerWindow:
		if l.OnReject != nil {
			l.OnReject(class, clientID)
		}
		return true, nil
	default:
		if _, err := tx.ExecContext(ctx, `
			UPDATE rate_limits SET request_count = request_count + 1
			WHERE window_key = ?
		`, windowKey); err != nil {
			return false, fmt.Errorf("count rate limit: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit rate limit: %w", err)
	}
	return false, nil
}

// Sweep deletes windows that expired more than grace ago.
func (l *RateLimiter) Sweep(ctx context.Context, grace time.Duration) (int64, error) {
	if l == nil || l.Store == nil || l.Store.DB == nil {
		return 0, errors.New("store is not initialized")
	}
	cutoff := l.now().Add(-grace).UnixMilli()
	result, err := l.Store.DB.ExecContext(ctx, `DELETE FROM rate_limits WHERE reset_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("sweep rate limits: %w", err)
	}
	return result.RowsAffected()
}

// StartSweeper runs Sweep every interval until ctx is done. A non-positive
// interval disables sweeping.
func (l *RateLimiter) StartSweeper(ctx context.Context, interval, grace time.Duration, onSweep func(removed int64, err error)) {
	if interval <= 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				removed, err := l.Sweep(ctx, grace)
				if onSweep != nil {
					onSweep(removed, err)
				}
			}
		}
	}()
}

func (l *RateLimiter) now() time.Time {
	if l.Clock != nil {
		return l.Clock()
	}
	return time.Now()
}
