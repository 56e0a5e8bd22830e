package usecase

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/riskibarqy/cricket-match-service/internal/platform/logging"
	"go.opentelemetry.io/otel/attribute"
)

const (
	syncStatusSuccess = "success"
	syncStatusFailed  = "failed"
	syncStatusSkipped = "skipped"

	defaultSyncWorkers = 4
	maxSyncWorkers     = 32
)

type SyncInput struct {
	Kind       MatchListKind
	MaxWorkers int
	// DryRun lists matches without reconciling them.
	DryRun bool
}

type SyncResult struct {
	Kind         string            `json:"kind"`
	MatchCount   int               `json:"match_count"`
	SuccessCount int               `json:"success_count"`
	FailedCount  int               `json:"failed_count"`
	SkippedCount int               `json:"skipped_count"`
	WorkerCount  int               `json:"worker_count"`
	Matches      []SyncMatchResult `json:"matches"`
}

type SyncMatchResult struct {
	MatchID        string `json:"match_id"`
	Status         string `json:"status"`
	Outcome        string `json:"outcome,omitempty"`
	SnapshotStatus string `json:"snapshot_status,omitempty"`
	Version        int64  `json:"version,omitempty"`
	DurationMs     int64  `json:"duration_ms"`
	Message        string `json:"message,omitempty"`
}

type snapshotReconciler interface {
	ReconcileWith(ctx context.Context, req ReconcileRequest) (ReconcileResult, error)
}

// MatchSyncService reconciles every match the provider lists for a kind.
type MatchSyncService struct {
	provider   MatchProvider
	reconciler snapshotReconciler
	maxWorkers int
	logger     *logging.Logger
}

func NewMatchSyncService(provider MatchProvider, reconciler snapshotReconciler, maxWorkers int, logger *logging.Logger) *MatchSyncService {
	if logger == nil {
		logger = logging.Default()
	}
	return &MatchSyncService{
		provider:   provider,
		reconciler: reconciler,
		maxWorkers: maxWorkers,
		logger:     logger,
	}
}

func (s *MatchSyncService) Sync(ctx context.Context, input SyncInput) (SyncResult, error) {
	kind, err := ParseMatchListKind(string(input.Kind))
	if err != nil {
		return SyncResult{}, err
	}

	ctx, span := startUsecaseSpan(ctx, "usecase.MatchSyncService.Sync", attribute.String("sync.kind", string(kind)))
	defer span.End()

	if s.provider == nil || s.reconciler == nil {
		return SyncResult{}, fmt.Errorf("%w: match sync is not configured", ErrDependencyUnavailable)
	}

	listed, err := s.provider.ListMatches(ctx, kind)
	if err != nil {
		err = fmt.Errorf("list %s matches: %w", kind, upstreamError(err))
		recordSpanError(span, err)
		return SyncResult{}, err
	}
	listed = dedupeListed(listed)

	maxWorkers := input.MaxWorkers
	if maxWorkers <= 0 {
		maxWorkers = s.maxWorkers
	}
	workerCount := normalizeSyncWorkerCount(maxWorkers, len(listed))
	result := SyncResult{
		Kind:        string(kind),
		MatchCount:  len(listed),
		WorkerCount: workerCount,
		Matches:     make([]SyncMatchResult, 0, len(listed)),
	}
	if len(listed) == 0 {
		return result, nil
	}

	if input.DryRun {
		for _, item := range listed {
			result.Matches = append(result.Matches, SyncMatchResult{
				MatchID: item.MatchID,
				Status:  syncStatusSkipped,
				Message: "dry run",
			})
		}
		result.SkippedCount = len(listed)
		sortSyncRows(result.Matches)
		return result, nil
	}

	results := make(chan SyncMatchResult, len(listed))
	var successCount atomic.Int32
	var failedCount atomic.Int32

	pool, err := ants.NewPool(workerCount)
	if err != nil {
		return SyncResult{}, fmt.Errorf("create worker pool: %w", err)
	}
	defer pool.Release()

	var workers sync.WaitGroup
	for _, item := range listed {
		item := item
		workers.Add(1)
		if err := pool.Submit(func() {
			defer workers.Done()
			row := s.syncOne(ctx, kind, item)
			if row.Status == syncStatusSuccess {
				successCount.Add(1)
			} else {
				failedCount.Add(1)
			}
			results <- row
		}); err != nil {
			workers.Done()
			return SyncResult{}, fmt.Errorf("submit match to worker pool: %w", err)
		}
	}

	workers.Wait()
	close(results)

	for row := range results {
		result.Matches = append(result.Matches, row)
	}
	sortSyncRows(result.Matches)

	result.SuccessCount = int(successCount.Load())
	result.FailedCount = int(failedCount.Load())
	s.logger.InfoContext(ctx, "match sync finished",
		"kind", kind,
		"matches", result.MatchCount,
		"success", result.SuccessCount,
		"failed", result.FailedCount,
		"workers", workerCount,
	)
	return result, nil
}

func (s *MatchSyncService) syncOne(ctx context.Context, kind MatchListKind, item ListedMatch) SyncMatchResult {
	start := time.Now()
	payload := item.Payload
	reconciled, err := s.reconciler.ReconcileWith(ctx, ReconcileRequest{
		MatchID:       item.MatchID,
		DefaultStatus: kind.DefaultStatus(),
		Fetch: func(context.Context) (FetchResult, error) {
			return FetchResult{Info: payload}, nil
		},
	})
	row := SyncMatchResult{
		MatchID:    item.MatchID,
		DurationMs: time.Since(start).Milliseconds(),
	}
	if err != nil {
		s.logger.WarnContext(ctx, "sync match failed", "match_id", item.MatchID, "kind", kind, "error", err)
		row.Status = syncStatusFailed
		row.Message = err.Error()
		return row
	}
	row.Status = syncStatusSuccess
	row.Outcome = reconciled.Outcome
	row.SnapshotStatus = string(reconciled.Snapshot.Status)
	row.Version = reconciled.Snapshot.Version
	return row
}

func dedupeListed(items []ListedMatch) []ListedMatch {
	seen := make(map[string]struct{}, len(items))
	out := make([]ListedMatch, 0, len(items))
	for _, item := range items {
		if item.MatchID == "" {
			continue
		}
		if _, ok := seen[item.MatchID]; ok {
			continue
		}
		seen[item.MatchID] = struct{}{}
		out = append(out, item)
	}
	return out
}

func normalizeSyncWorkerCount(requested, taskCount int) int {
	workers := requested
	if workers <= 0 {
		workers = defaultSyncWorkers
	}
	if workers > maxSyncWorkers {
		workers = maxSyncWorkers
	}
	if taskCount > 0 && workers > taskCount {
		workers = taskCount
	}
	if workers <= 0 {
		workers = 1
	}
	return workers
}

func sortSyncRows(rows []SyncMatchResult) {
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].MatchID < rows[j].MatchID
	})
}
