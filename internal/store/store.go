package store

import (
	"context"

	"github.com/spendsense/finance-api/internal/rates"
)

// SnapshotStore persists rate snapshots append-only: one row per refresh,
// read back as "most recent row". Implementations never mutate existing
// rows; retention is an external concern.
type SnapshotStore interface {
	// Latest returns the most recently captured snapshot, or nil when the
	// store is empty.
	Latest(ctx context.Context) (*rates.Snapshot, error)

	// Save appends one snapshot.
	Save(ctx context.Context, snap *rates.Snapshot) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
