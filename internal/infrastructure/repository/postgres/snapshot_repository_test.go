package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/riskibarqy/cricket-match-service/internal/domain/match"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	selectSnapshotQuery = "SELECT match_id, status, status_inferred, status_text, format, start_time, end_time, venue, teams, version, last_reconciled_at, raw_payload FROM match_snapshots WHERE match_id = $1 LIMIT 1"
	insertSnapshotQuery = "INSERT INTO match_snapshots (match_id, status, status_inferred, status_text, format, start_time, end_time, venue, teams, version, last_reconciled_at, raw_payload) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::jsonb, $10, $11, $12::jsonb) ON CONFLICT (match_id) DO NOTHING"
	updateSnapshotQuery = "UPDATE match_snapshots SET status = $1, status_inferred = $2, status_text = $3, format = $4, start_time = $5, end_time = $6, venue = $7, teams = $8::jsonb, version = $9, last_reconciled_at = $10, raw_payload = $11::jsonb, updated_at = NOW() WHERE match_id = $12 AND version = $13"
)

func newMockRepository(t *testing.T) (*SnapshotRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
	})
	return NewSnapshotRepository(sqlx.NewDb(db, "postgres")), mock
}

func snapshotColumns() []string {
	return []string{"match_id", "status", "status_inferred", "status_text", "format", "start_time", "end_time", "venue", "teams", "version", "last_reconciled_at", "raw_payload"}
}

func TestSnapshotRepository_Get(t *testing.T) {
	t.Parallel()

	repo, mock := newMockRepository(t)
	start := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	reconciled := start.Add(2 * time.Hour)

	mock.ExpectQuery(selectSnapshotQuery).
		WithArgs("87654").
		WillReturnRows(sqlmock.NewRows(snapshotColumns()).AddRow(
			"87654", "LIVE", false, "India need 40 runs", "T20", start, nil, "Wankhede",
			`[{"team_id":"2","team_name":"India","runs":120,"wickets":3,"overs":15.2},{"team_id":"3","team_name":"Australia","runs":159,"wickets":8,"overs":20}]`,
			int64(4), reconciled, `{"matchInfo":{}}`,
		))

	snapshot, exists, err := repo.Get(context.Background(), "87654")
	require.NoError(t, err)
	require.True(t, exists)
	assert.Equal(t, match.StatusLive, snapshot.Status)
	assert.Equal(t, match.FormatT20, snapshot.Format)
	assert.Equal(t, start, snapshot.StartTime)
	assert.Nil(t, snapshot.EndTime)
	assert.Equal(t, int64(4), snapshot.Version)
	assert.Equal(t, "India", snapshot.Teams[0].TeamName)
	assert.Equal(t, 92, snapshot.Teams[0].Balls)
	assert.Equal(t, 7.95, snapshot.Teams[1].RunRate)
	assert.JSONEq(t, `{"matchInfo":{}}`, string(snapshot.RawPayload))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSnapshotRepository_GetMissing(t *testing.T) {
	t.Parallel()

	repo, mock := newMockRepository(t)
	mock.ExpectQuery(selectSnapshotQuery).
		WithArgs("1").
		WillReturnRows(sqlmock.NewRows(snapshotColumns()))

	_, exists, err := repo.Get(context.Background(), "1")
	require.NoError(t, err)
	assert.False(t, exists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSnapshotRepository_GetError(t *testing.T) {
	t.Parallel()

	repo, mock := newMockRepository(t)
	mock.ExpectQuery(selectSnapshotQuery).
		WithArgs("1").
		WillReturnError(errors.New("connection reset"))

	_, _, err := repo.Get(context.Background(), "1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestSnapshotRepository_CompareAndSwapInsert(t *testing.T) {
	t.Parallel()

	repo, mock := newMockRepository(t)
	next := match.Snapshot{
		MatchID:          "87654",
		Status:           match.StatusUpcoming,
		StatusInferred:   true,
		Version:          1,
		LastReconciledAt: time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC),
	}

	mock.ExpectExec(insertSnapshotQuery).
		WillReturnResult(sqlmock.NewResult(0, 1))
	ok, err := repo.CompareAndSwap(context.Background(), 0, next)
	require.NoError(t, err)
	assert.True(t, ok)

	mock.ExpectExec(insertSnapshotQuery).
		WillReturnResult(sqlmock.NewResult(0, 0))
	ok, err = repo.CompareAndSwap(context.Background(), 0, next)
	require.NoError(t, err)
	assert.False(t, ok, "existing row must be reported as a lost race")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSnapshotRepository_CompareAndSwapUpdate(t *testing.T) {
	t.Parallel()

	repo, mock := newMockRepository(t)
	next := match.Snapshot{
		MatchID: "87654",
		Status:  match.StatusLive,
		Version: 3,
	}

	mock.ExpectExec(updateSnapshotQuery).
		WithArgs(
			"LIVE", false, "", "", sqlmock.AnyArg(), sqlmock.AnyArg(), "",
			sqlmock.AnyArg(), int64(3), sqlmock.AnyArg(), sqlmock.AnyArg(),
			"87654", int64(2),
		).
		WillReturnResult(sqlmock.NewResult(0, 1))
	ok, err := repo.CompareAndSwap(context.Background(), 2, next)
	require.NoError(t, err)
	assert.True(t, ok)

	mock.ExpectExec(updateSnapshotQuery).
		WillReturnResult(sqlmock.NewResult(0, 0))
	ok, err = repo.CompareAndSwap(context.Background(), 2, next)
	require.NoError(t, err)
	assert.False(t, ok)

	mock.ExpectExec(updateSnapshotQuery).
		WillReturnError(errors.New("deadlock detected"))
	_, err = repo.CompareAndSwap(context.Background(), 2, next)
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSnapshotRowRoundTrip(t *testing.T) {
	t.Parallel()

	end := time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)
	in := match.Snapshot{
		MatchID: "1",
		Status:  match.StatusCompleted,
		EndTime: &end,
		Teams: [2]match.TeamScore{
			match.TeamScore{TeamName: "Nepal", Runs: 150, Wickets: 9, Overs: 20}.Normalize(),
			match.TeamScore{TeamName: "Oman", Runs: 151, Wickets: 4, Overs: 19.3}.Normalize(),
		},
	}

	row, err := snapshotToRow(in)
	require.NoError(t, err)
	assert.False(t, row.StartTime.Valid)
	assert.False(t, row.RawPayload.Valid)

	out, err := rowToSnapshot(row)
	require.NoError(t, err)
	assert.Equal(t, in.Teams, out.Teams)
	require.NotNil(t, out.EndTime)
	assert.Equal(t, end, *out.EndTime)
}

func TestRowToSnapshot_RejectsUnknownStatus(t *testing.T) {
	t.Parallel()

	_, err := rowToSnapshot(matchSnapshotTableModel{MatchID: "1", Status: "FINISHED"})
	assert.ErrorContains(t, err, `unknown stored status "FINISHED"`)

	out, err := rowToSnapshot(matchSnapshotTableModel{MatchID: "1", Status: "live"})
	require.NoError(t, err)
	assert.Equal(t, match.StatusLive, out.Status)
}
