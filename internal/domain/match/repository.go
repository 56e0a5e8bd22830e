package match

import "context"

// Store is the shared snapshot store. It is the only mutable state reconciliation touches.
type Store interface {
	// Get returns the stored snapshot and false when none exists yet.
	Get(ctx context.Context, matchID string) (Snapshot, bool, error)
	// CompareAndSwap writes next only if the stored version equals expectedVersion.
	// expectedVersion 0 means the snapshot must not exist yet. A lost race returns false with a nil error.
	CompareAndSwap(ctx context.Context, expectedVersion int64, next Snapshot) (bool, error)
}
