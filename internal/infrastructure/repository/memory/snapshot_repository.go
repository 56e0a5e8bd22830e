package memory

import (
	"context"
	"sync"

	"github.com/riskibarqy/cricket-match-service/internal/domain/match"
)

// SnapshotRepository keeps snapshots in process memory. The mutex only makes
// compare-and-swap atomic; callers never lock.
type SnapshotRepository struct {
	mu    sync.RWMutex
	items map[string]match.Snapshot
}

func NewSnapshotRepository(seed ...match.Snapshot) *SnapshotRepository {
	items := make(map[string]match.Snapshot, len(seed))
	for _, item := range seed {
		items[item.MatchID] = item.Clone()
	}
	return &SnapshotRepository{items: items}
}

func (r *SnapshotRepository) Get(_ context.Context, matchID string) (match.Snapshot, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	item, ok := r.items[matchID]
	if !ok {
		return match.Snapshot{}, false, nil
	}
	return item.Clone(), true, nil
}

func (r *SnapshotRepository) CompareAndSwap(ctx context.Context, expectedVersion int64, next match.Snapshot) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.items[next.MatchID]
	switch {
	case expectedVersion == 0 && ok:
		return false, nil
	case expectedVersion != 0 && (!ok || current.Version != expectedVersion):
		return false, nil
	}

	r.items[next.MatchID] = next.Clone()
	return true, nil
}
