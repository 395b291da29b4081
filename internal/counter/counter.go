// Package counter persists the running total of completed fusions.
package counter

import (
	"context"
	"time"
)

// Drivers accepted by configuration.
const (
	DriverFile   = "file"
	DriverLibsql = "libsql"
)

// DefaultPath is where the file driver keeps its data.
const DefaultPath = "data/fusion-count.json"

// Snapshot is the counter value and the time it last changed.
type Snapshot struct {
	Count       int64     `json:"count"`
	LastUpdated time.Time `json:"lastUpdated"`
}

// Store reads and increments the counter. Increments are serialized.
type Store interface {
	Get(ctx context.Context) (Snapshot, error)
	Increment(ctx context.Context) (Snapshot, error)
	Check(ctx context.Context) error
}
