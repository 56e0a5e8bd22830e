package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/riskibarqy/cricket-match-service/internal/domain/match"
	qb "github.com/riskibarqy/cricket-match-service/internal/platform/querybuilder"
)

type SnapshotRepository struct {
	db *sqlx.DB
}

func NewSnapshotRepository(db *sqlx.DB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

func (r *SnapshotRepository) Get(ctx context.Context, matchID string) (match.Snapshot, bool, error) {
	columns, err := qb.ModelColumns(matchSnapshotTableModel{})
	if err != nil {
		return match.Snapshot{}, false, fmt.Errorf("resolve match snapshot columns: %w", err)
	}
	query, args, err := qb.Select(columns...).From(matchSnapshotsTable).
		Where(qb.Eq("match_id", matchID)).
		Limit(1).
		ToSQL()
	if err != nil {
		return match.Snapshot{}, false, fmt.Errorf("build select match snapshot query: %w", err)
	}

	var row matchSnapshotTableModel
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if isNotFound(err) {
			return match.Snapshot{}, false, nil
		}
		return match.Snapshot{}, false, fmt.Errorf("get match snapshot %s: %w", matchID, err)
	}

	snapshot, err := rowToSnapshot(row)
	if err != nil {
		return match.Snapshot{}, false, fmt.Errorf("decode match snapshot %s: %w", matchID, err)
	}
	return snapshot, true, nil
}

// CompareAndSwap inserts when expectedVersion is 0 and otherwise updates guarded by the stored version.
func (r *SnapshotRepository) CompareAndSwap(ctx context.Context, expectedVersion int64, next match.Snapshot) (bool, error) {
	row, err := snapshotToRow(next)
	if err != nil {
		return false, fmt.Errorf("encode match snapshot %s: %w", next.MatchID, err)
	}

	var (
		query string
		args  []any
	)
	if expectedVersion == 0 {
		query, args, err = qb.InsertModel(matchSnapshotsTable, row, "ON CONFLICT (match_id) DO NOTHING")
	} else {
		var builder *qb.UpdateBuilder
		builder, err = qb.UpdateModel(matchSnapshotsTable, row, "match_id")
		if err == nil {
			query, args, err = builder.
				SetExpr("updated_at", "NOW()").
				Where(qb.Eq("match_id", next.MatchID), qb.Eq("version", expectedVersion)).
				ToSQL()
		}
	}
	if err != nil {
		return false, fmt.Errorf("build match snapshot write query: %w", err)
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("write match snapshot %s: %w", next.MatchID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("read affected rows for match snapshot %s: %w", next.MatchID, err)
	}
	return affected == 1, nil
}
