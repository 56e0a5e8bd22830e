package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	goredis "github.com/redis/go-redis/v9"
	"github.com/riskibarqy/cricket-match-service/internal/domain/match"
	"github.com/riskibarqy/cricket-match-service/internal/infrastructure/codec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotRepository_Get(t *testing.T) {
	t.Parallel()

	client, mock := redismock.NewClientMock()
	repo := NewSnapshotRepository(client, "cricket:", 0)

	stored := match.Snapshot{
		MatchID:          "87654",
		Status:           match.StatusCompleted,
		Version:          5,
		LastReconciledAt: time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC),
	}
	raw, err := codec.EncodeSnapshot(stored)
	require.NoError(t, err)
	mock.ExpectGet("cricket:match:87654").SetVal(string(raw))

	snapshot, exists, err := repo.Get(context.Background(), "87654")
	require.NoError(t, err)
	require.True(t, exists)
	assert.Equal(t, match.StatusCompleted, snapshot.Status)
	assert.Equal(t, int64(5), snapshot.Version)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSnapshotRepository_GetMissingAndErrors(t *testing.T) {
	t.Parallel()

	client, mock := redismock.NewClientMock()
	repo := NewSnapshotRepository(client, "", 0)

	mock.ExpectGet("match:1").RedisNil()
	_, exists, err := repo.Get(context.Background(), "1")
	require.NoError(t, err)
	assert.False(t, exists)

	mock.ExpectGet("match:2").SetErr(errors.New("READONLY You can't write against a read only replica"))
	_, _, err = repo.Get(context.Background(), "2")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "match snapshot 2")

	mock.ExpectGet("match:3").SetVal(`{"teams":`)
	_, _, err = repo.Get(context.Background(), "3")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSnapshotRepository_CompareAndSwapInsert(t *testing.T) {
	t.Parallel()

	client, mock := redismock.NewClientMock()
	repo := NewSnapshotRepository(client, "cricket:", 0)

	next := match.Snapshot{MatchID: "87654", Status: match.StatusUpcoming, StatusInferred: true, Version: 1}
	payload, err := codec.EncodeSnapshot(next)
	require.NoError(t, err)

	mock.ExpectWatch("cricket:match:87654")
	mock.ExpectGet("cricket:match:87654").RedisNil()
	mock.ExpectTxPipeline()
	mock.ExpectSet("cricket:match:87654", payload, 0).SetVal("OK")
	mock.ExpectTxPipelineExec()

	swapped, err := repo.CompareAndSwap(context.Background(), 0, next)
	require.NoError(t, err)
	assert.True(t, swapped)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSnapshotRepository_CompareAndSwapConflicts(t *testing.T) {
	t.Parallel()

	stored, err := codec.EncodeSnapshot(match.Snapshot{MatchID: "1", Status: match.StatusLive, Version: 5})
	require.NoError(t, err)
	next := match.Snapshot{MatchID: "1", Status: match.StatusLive, Version: 5}
	payload, err := codec.EncodeSnapshot(next)
	require.NoError(t, err)

	t.Run("stored version moved on", func(t *testing.T) {
		client, mock := redismock.NewClientMock()
		repo := NewSnapshotRepository(client, "", 0)

		mock.ExpectWatch("match:1")
		mock.ExpectGet("match:1").SetVal(string(stored))

		swapped, err := repo.CompareAndSwap(context.Background(), 4, next)
		require.NoError(t, err)
		assert.False(t, swapped)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("watched key changed before exec", func(t *testing.T) {
		client, mock := redismock.NewClientMock()
		repo := NewSnapshotRepository(client, "", 0)

		mock.ExpectWatch("match:1")
		mock.ExpectGet("match:1").SetVal(string(stored))
		mock.ExpectTxPipeline()
		mock.ExpectSet("match:1", payload, 0).SetVal("OK")
		mock.ExpectTxPipelineExec().SetErr(goredis.TxFailedErr)

		swapped, err := repo.CompareAndSwap(context.Background(), 5, next)
		require.NoError(t, err)
		assert.False(t, swapped)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestSnapshotRepository_CompareAndSwapReadError(t *testing.T) {
	t.Parallel()

	client, mock := redismock.NewClientMock()
	repo := NewSnapshotRepository(client, "", 0)

	mock.ExpectWatch("match:9")
	mock.ExpectGet("match:9").SetErr(errors.New("connection reset by peer"))

	swapped, err := repo.CompareAndSwap(context.Background(), 2, match.Snapshot{MatchID: "9", Status: match.StatusLive, Version: 3})
	require.Error(t, err)
	assert.False(t, swapped)
	assert.Contains(t, err.Error(), "write match snapshot 9")
	assert.Contains(t, err.Error(), "connection reset by peer")
	require.NoError(t, mock.ExpectationsWereMet())
}
