package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/riskibarqy/cricket-match-service/internal/domain/match"
	"github.com/riskibarqy/cricket-match-service/internal/infrastructure/codec"
)

var errVersionMismatch = errors.New("snapshot version mismatch")

// SnapshotRepository keeps one JSON document per match. Writes use WATCH/MULTI so a
// concurrent writer aborts the transaction instead of overwriting.
type SnapshotRepository struct {
	client    goredis.UniversalClient
	keyPrefix string
	ttl       time.Duration
}

// NewSnapshotRepository stores keys as <keyPrefix>match:<id>. ttl <= 0 keeps keys forever.
func NewSnapshotRepository(client goredis.UniversalClient, keyPrefix string, ttl time.Duration) *SnapshotRepository {
	if ttl < 0 {
		ttl = 0
	}
	return &SnapshotRepository{client: client, keyPrefix: keyPrefix, ttl: ttl}
}

func (r *SnapshotRepository) key(matchID string) string {
	return r.keyPrefix + "match:" + matchID
}

func (r *SnapshotRepository) Get(ctx context.Context, matchID string) (match.Snapshot, bool, error) {
	raw, err := r.client.Get(ctx, r.key(matchID)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return match.Snapshot{}, false, nil
		}
		return match.Snapshot{}, false, fmt.Errorf("get match snapshot %s: %w", matchID, err)
	}

	snapshot, err := codec.DecodeSnapshot(raw)
	if err != nil {
		return match.Snapshot{}, false, fmt.Errorf("decode match snapshot %s: %w", matchID, err)
	}
	return snapshot, true, nil
}

func (r *SnapshotRepository) CompareAndSwap(ctx context.Context, expectedVersion int64, next match.Snapshot) (bool, error) {
	payload, err := codec.EncodeSnapshot(next)
	if err != nil {
		return false, fmt.Errorf("encode match snapshot %s: %w", next.MatchID, err)
	}

	key := r.key(next.MatchID)
	err = r.client.Watch(ctx, func(tx *goredis.Tx) error {
		current, err := storedVersion(ctx, tx, key)
		if err != nil {
			return err
		}
		if current != expectedVersion {
			return errVersionMismatch
		}
		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.Set(ctx, key, payload, r.ttl)
			return nil
		})
		return err
	}, key)

	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, errVersionMismatch), errors.Is(err, goredis.TxFailedErr):
		return false, nil
	default:
		return false, fmt.Errorf("write match snapshot %s: %w", next.MatchID, err)
	}
}

// storedVersion returns 0 when the key does not exist.
func storedVersion(ctx context.Context, tx *goredis.Tx, key string) (int64, error) {
	raw, err := tx.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return 0, nil
		}
		return 0, err
	}
	snapshot, err := codec.DecodeSnapshot(raw)
	if err != nil {
		return 0, fmt.Errorf("decode stored snapshot: %w", err)
	}
	return snapshot.Version, nil
}
