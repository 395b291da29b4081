package counter

import (
	"context"
	"time"

	"github.com/fusionlab/fusionlab/internal/store"
)

// DBStore keeps the counter in the libsql store.
type DBStore struct {
	Store *store.Store
	Clock func() time.Time
}

// NewDBStore wraps an opened and migrated store.
func NewDBStore(s *store.Store) *DBStore {
	return &DBStore{Store: s}
}

// Get returns the current value.
func (d *DBStore) Get(ctx context.Context) (Snapshot, error) {
	count, updated, err := d.Store.FusionCount(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{Count: count, LastUpdated: updated}, nil
}

// Increment adds one inside a transaction.
func (d *DBStore) Increment(ctx context.Context) (Snapshot, error) {
	now := time.Now().UTC()
	if d.Clock != nil {
		now = d.Clock().UTC()
	}
	count, err := d.Store.IncrementFusionCount(ctx, now)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{Count: count, LastUpdated: now}, nil
}

// Check pings the database.
func (d *DBStore) Check(ctx context.Context) error {
	return d.Store.Ping(ctx)
}
