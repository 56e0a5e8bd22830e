package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/riskibarqy/cricket-match-service/internal/domain/match"
	"github.com/riskibarqy/cricket-match-service/internal/domain/scorecard"
	"github.com/riskibarqy/cricket-match-service/internal/platform/logging"
	"github.com/sourcegraph/conc"
	"go.opentelemetry.io/otel/attribute"
)

const (
	OutcomeCacheHit    = "cache_hit"
	OutcomeRefreshed   = "refreshed"
	OutcomeStaleServed = "stale_served"
	outcomeFailed      = "failed"

	defaultFetchTimeout  = 15 * time.Second
	defaultCommitRetries = 3
	defaultCommitBackoff = 100 * time.Millisecond
)

type ReconcileConfig struct {
	Freshness  match.FreshnessPolicy
	Classifier match.ClassifierConfig
	// FetchTimeout bounds the whole upstream fetch, secondary documents included.
	FetchTimeout time.Duration
	// MaxCommitRetries counts writes after the first conflicting one.
	MaxCommitRetries int
	CommitBackoff    time.Duration
	DefaultStatus    match.Status
}

type ReconcileRequest struct {
	MatchID string
	// DefaultStatus is used when no status keyword matches. Empty falls back to the service default.
	DefaultStatus match.Status
	// Fetch replaces the provider-backed fetch when set.
	Fetch FetchFunc
}

// Diagnostics records what was recovered locally instead of being returned as an error.
type Diagnostics struct {
	Gaps              []string
	StatusReason      string
	ScoreSources      [2]scorecard.Source
	ClampedFields     []string
	ScorecardFallback bool
	UpstreamError     string
}

type ReconcileResult struct {
	Snapshot    match.Snapshot
	Outcome     string
	Attempts    int
	Diagnostics Diagnostics
}

// ReconcileService turns provider documents into committed match snapshots.
// Concurrent calls for the same match are not serialized; the store's compare-and-swap decides.
type ReconcileService struct {
	store      match.Store
	provider   MatchProvider
	publisher  SnapshotPublisher
	metrics    ReconcileMetrics
	classifier *match.Classifier
	validate   *validator.Validate
	cfg        ReconcileConfig
	logger     *logging.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func NewReconcileService(
	store match.Store,
	provider MatchProvider,
	publisher SnapshotPublisher,
	metrics ReconcileMetrics,
	cfg ReconcileConfig,
	logger *logging.Logger,
) *ReconcileService {
	if logger == nil {
		logger = logging.Default()
	}
	if metrics == nil {
		metrics = noopReconcileMetrics{}
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = defaultFetchTimeout
	}
	if cfg.MaxCommitRetries <= 0 {
		cfg.MaxCommitRetries = defaultCommitRetries
	}
	if cfg.CommitBackoff <= 0 {
		cfg.CommitBackoff = defaultCommitBackoff
	}
	if !cfg.DefaultStatus.Valid() {
		cfg.DefaultStatus = match.StatusUpcoming
	}

	return &ReconcileService{
		store:      store,
		provider:   provider,
		publisher:  publisher,
		metrics:    metrics,
		classifier: match.NewClassifier(cfg.Classifier),
		validate:   match.NewScoreValidator(),
		cfg:        cfg,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
		sleep:      sleepContext,
	}
}

// Reconcile returns the current snapshot for matchID, refreshing it from the provider when stale.
func (s *ReconcileService) Reconcile(ctx context.Context, matchID string) (match.Snapshot, error) {
	result, err := s.ReconcileWith(ctx, ReconcileRequest{MatchID: matchID})
	if err != nil {
		return match.Snapshot{}, err
	}
	return result.Snapshot, nil
}

// Cached reads the stored snapshot without touching the provider.
func (s *ReconcileService) Cached(ctx context.Context, matchID string) (match.Snapshot, bool, error) {
	matchID = strings.TrimSpace(matchID)
	if matchID == "" {
		return match.Snapshot{}, false, fmt.Errorf("%w: match id is required", ErrInvalidInput)
	}
	snapshot, exists, err := s.store.Get(ctx, matchID)
	if err != nil {
		return match.Snapshot{}, false, fmt.Errorf("load snapshot match=%s: %w", matchID, err)
	}
	return snapshot, exists, nil
}

func (s *ReconcileService) ReconcileWith(ctx context.Context, req ReconcileRequest) (ReconcileResult, error) {
	matchID := strings.TrimSpace(req.MatchID)
	if matchID == "" {
		return ReconcileResult{}, fmt.Errorf("%w: match id is required", ErrInvalidInput)
	}

	ctx, span := startUsecaseSpan(ctx, "usecase.ReconcileService.ReconcileWith", attribute.String("match.id", matchID))
	defer span.End()

	started := time.Now()
	result, err := s.reconcile(ctx, matchID, req)
	if err != nil {
		recordSpanError(span, err)
		s.metrics.ObserveReconcile(outcomeFailed, time.Since(started))
		return ReconcileResult{}, err
	}
	span.SetAttributes(
		attribute.String("reconcile.outcome", result.Outcome),
		attribute.Int64("snapshot.version", result.Snapshot.Version),
	)
	s.metrics.ObserveReconcile(result.Outcome, time.Since(started))
	return result, nil
}

func (s *ReconcileService) reconcile(ctx context.Context, matchID string, req ReconcileRequest) (ReconcileResult, error) {
	current, exists, err := s.store.Get(ctx, matchID)
	if err != nil {
		return ReconcileResult{}, fmt.Errorf("load snapshot match=%s: %w", matchID, err)
	}

	now := s.now()
	if exists && !s.cfg.Freshness.NeedsRefresh(current.Status, current.LastReconciledAt, now) {
		s.logger.DebugContext(ctx, "serve cached match snapshot", "match_id", matchID, "version", current.Version)
		return ReconcileResult{Snapshot: current, Outcome: OutcomeCacheHit}, nil
	}

	payload, err := s.fetch(ctx, matchID, req.Fetch)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ReconcileResult{}, fmt.Errorf("reconcile match=%s: %w", matchID, ctxErr)
	}
	if err != nil {
		if !exists {
			return ReconcileResult{}, err
		}
		s.logger.WarnContext(ctx, "upstream fetch failed, serving stale snapshot",
			"match_id", matchID,
			"version", current.Version,
			"error", err,
		)
		return ReconcileResult{
			Snapshot:    current,
			Outcome:     OutcomeStaleServed,
			Diagnostics: Diagnostics{UpstreamError: err.Error()},
		}, nil
	}

	defaultStatus := req.DefaultStatus
	if !defaultStatus.Valid() {
		defaultStatus = s.cfg.DefaultStatus
	}
	cand := s.prepareCandidate(ctx, matchID, payload, defaultStatus, now, current, exists)
	if !exists && !cand.identifiesMatch() {
		return ReconcileResult{}, fmt.Errorf("%w: upstream document for match=%s carries no match data", ErrNotFound, matchID)
	}

	snapshot, attempts, diag, err := s.commit(ctx, cand, current, exists)
	if err != nil {
		return ReconcileResult{}, err
	}
	if len(diag.Gaps) > 0 || len(diag.ClampedFields) > 0 {
		s.logger.DebugContext(ctx, "snapshot reconciled with local recovery",
			"match_id", matchID,
			"gaps", diag.Gaps,
			"clamped", diag.ClampedFields,
			"status_reason", diag.StatusReason,
		)
	}

	s.publish(ctx, snapshot)
	return ReconcileResult{
		Snapshot:    snapshot,
		Outcome:     OutcomeRefreshed,
		Attempts:    attempts,
		Diagnostics: diag,
	}, nil
}

func (s *ReconcileService) fetch(ctx context.Context, matchID string, fetch FetchFunc) (FetchResult, error) {
	if fetch == nil {
		if s.provider == nil {
			return FetchResult{}, fmt.Errorf("%w: match provider is not configured", ErrDependencyUnavailable)
		}
		fetch = s.providerFetch(matchID)
	}

	fetchCtx, cancel := context.WithTimeout(ctx, s.cfg.FetchTimeout)
	defer cancel()

	payload, err := fetch(fetchCtx)
	if err != nil {
		return FetchResult{}, upstreamError(err)
	}
	if len(payload.Info) == 0 && len(payload.Scorecard) == 0 {
		return FetchResult{}, fmt.Errorf("%w: empty payload for match=%s", ErrUpstreamUnavailable, matchID)
	}
	return payload, nil
}

// providerFetch requires the match info document. Commentary is fetched alongside it and dropped on failure.
func (s *ReconcileService) providerFetch(matchID string) FetchFunc {
	return func(ctx context.Context) (FetchResult, error) {
		var (
			result  FetchResult
			infoErr error
			wg      conc.WaitGroup
		)
		wg.Go(func() {
			result.Info, infoErr = s.provider.FetchMatchInfo(ctx, matchID)
		})
		wg.Go(func() {
			commentary, err := s.provider.FetchCommentary(ctx, matchID)
			if err != nil {
				s.logger.DebugContext(ctx, "skip commentary document", "match_id", matchID, "error", err)
				return
			}
			result.Commentary = commentary
		})
		wg.Wait()

		if infoErr != nil {
			return FetchResult{}, infoErr
		}
		return result, nil
	}
}

func upstreamError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, ErrRateLimited),
		errors.Is(err, ErrUpstreamUnavailable),
		errors.Is(err, ErrDependencyUnavailable):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: upstream fetch timed out: %v", ErrUpstreamUnavailable, err)
	default:
		return fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
}

// candidate is the fully built, not yet committed result of one fetch.
type candidate struct {
	matchID       string
	fields        scorecard.AdaptedFields
	format        match.Format
	scores        [2]match.TeamScore
	sources       [2]scorecard.Source
	defaultStatus match.Status
	raw           []byte
	fallback      bool
	now           time.Time
}

func (s *ReconcileService) prepareCandidate(
	ctx context.Context,
	matchID string,
	payload FetchResult,
	defaultStatus match.Status,
	now time.Time,
	previous match.Snapshot,
	exists bool,
) candidate {
	cand := candidate{
		matchID:       matchID,
		fields:        adaptPayload(payload),
		defaultStatus: defaultStatus,
		now:           now,
	}
	if scorecard.Decode(payload.Info) != nil {
		cand.raw = payload.Info
	}
	cand.format = match.ParseFormat(cand.fields.Format)
	cand.extract()

	if len(payload.Scorecard) > 0 || s.provider == nil || cand.hasScore() {
		return cand
	}
	if s.classify(cand, previous, exists).Status == match.StatusUpcoming {
		return cand
	}

	fetchCtx, cancel := context.WithTimeout(ctx, s.cfg.FetchTimeout)
	defer cancel()
	raw, err := s.provider.FetchScorecard(fetchCtx, matchID)
	if err != nil {
		s.logger.WarnContext(ctx, "scorecard fallback failed", "match_id", matchID, "error", err)
		return cand
	}
	doc := scorecard.Decode(raw)
	if doc == nil {
		return cand
	}
	cand.fields = scorecard.Merge(cand.fields, scorecard.Adapt(doc))
	cand.format = match.ParseFormat(cand.fields.Format)
	cand.fallback = true
	cand.extract()
	return cand
}

func adaptPayload(payload FetchResult) scorecard.AdaptedFields {
	primary := scorecard.Adapt(scorecard.Decode(payload.Info))
	var secondaries []scorecard.AdaptedFields
	for _, raw := range [][]byte{payload.Scorecard, payload.Commentary} {
		if doc := scorecard.Decode(raw); doc != nil {
			secondaries = append(secondaries, scorecard.Adapt(doc))
		}
	}
	return scorecard.Merge(primary, secondaries...)
}

func (c *candidate) extract() {
	for i := range c.scores {
		c.scores[i], c.sources[i] = scorecard.ExtractWithSource(c.fields, i)
	}
}

func (c candidate) hasScore() bool {
	return c.scores[0].HasScore() || c.scores[1].HasScore()
}

// identifiesMatch is false for documents such as {} or null that name no team, status,
// start time or score. Such a document cannot seed a new snapshot.
func (c candidate) identifiesMatch() bool {
	for _, team := range c.fields.Teams {
		if team.ID != "" || team.Name != "" || team.ShortName != "" {
			return true
		}
	}
	return c.fields.StatusText != "" || c.fields.StateText != "" || c.fields.StartTime != nil || c.hasScore()
}

func (s *ReconcileService) classify(cand candidate, base match.Snapshot, baseExists bool) match.Classification {
	in := match.ClassifyInput{
		StatusText: cand.fields.StatusText,
		StateText:  cand.fields.StateText,
		StartTime:  cand.fields.StartTime,
		Now:        cand.now,
		Default:    cand.defaultStatus,
		Format:     cand.format,
	}
	if baseExists {
		in.Previous = base.Status
		in.PreviousInferred = base.StatusInferred
		if in.StartTime == nil && !base.StartTime.IsZero() {
			start := base.StartTime
			in.StartTime = &start
		}
		if in.Format == match.FormatUnknown {
			in.Format = base.Format
		}
	}
	return s.classifier.Classify(in)
}

// compose applies the candidate onto base. Fields the candidate resolved win; the rest keep base values.
func (s *ReconcileService) compose(cand candidate, base match.Snapshot, baseExists bool) (match.Snapshot, Diagnostics) {
	next := match.Snapshot{MatchID: cand.matchID}
	if baseExists {
		next = base.Clone()
	}
	diag := Diagnostics{
		Gaps:              cand.fields.Gaps,
		ScoreSources:      cand.sources,
		ScorecardFallback: cand.fallback,
	}

	class := s.classify(cand, base, baseExists)
	next.Status = class.Status
	next.StatusInferred = !class.Explicit
	diag.StatusReason = class.Reason

	if text := firstNonBlank(cand.fields.StatusText, cand.fields.StateText); text != "" {
		next.StatusText = text
	}
	if cand.format != match.FormatUnknown {
		next.Format = cand.format
	}
	if cand.fields.StartTime != nil {
		next.StartTime = cand.fields.StartTime.UTC()
	}
	if cand.fields.EndTime != nil {
		end := cand.fields.EndTime.UTC()
		next.EndTime = &end
	}
	if cand.fields.Venue != "" {
		next.Venue = cand.fields.Venue
	}
	if len(cand.raw) > 0 {
		next.RawPayload = append(json.RawMessage(nil), cand.raw...)
	}

	for i := range next.Teams {
		previous := next.Teams[i]
		extracted := cand.scores[i]
		merged := previous
		merged.TeamID = firstNonBlank(extracted.TeamID, previous.TeamID)
		merged.TeamName = firstNonBlank(extracted.TeamName, previous.TeamName)
		merged.TeamShortName = firstNonBlank(extracted.TeamShortName, previous.TeamShortName)

		if cand.sources[i] != scorecard.SourceNone {
			merged.Runs = extracted.Runs
			merged.Wickets = extracted.Wickets
			merged.Overs = extracted.Overs
			if invalid := match.InvalidScoreFields(s.validate, merged); len(invalid) > 0 {
				merged = clampScore(merged, previous, invalid)
				for _, field := range invalid {
					diag.ClampedFields = append(diag.ClampedFields, fmt.Sprintf("team%d.%s", i+1, strings.ToLower(field)))
				}
			}
		}
		next.Teams[i] = merged.Normalize()
	}

	return next, diag
}

// clampScore restores the named fields from the last valid score.
func clampScore(score, lastValid match.TeamScore, fields []string) match.TeamScore {
	for _, field := range fields {
		switch field {
		case "Runs":
			score.Runs = lastValid.Runs
		case "Wickets":
			score.Wickets = lastValid.Wickets
		case "Overs":
			score.Overs = lastValid.Overs
		}
	}
	return score
}

// commit writes the candidate with compare-and-swap. A conflict re-reads the latest snapshot,
// re-applies the candidate onto it and retries after a fixed backoff.
func (s *ReconcileService) commit(
	ctx context.Context,
	cand candidate,
	base match.Snapshot,
	baseExists bool,
) (match.Snapshot, int, Diagnostics, error) {
	for attempt := 1; ; attempt++ {
		next, diag := s.compose(cand, base, baseExists)
		var expected int64
		if baseExists {
			expected = base.Version
		}
		next.Version = expected + 1
		next.LastReconciledAt = cand.now

		swapped, err := s.store.CompareAndSwap(ctx, expected, next)
		if err != nil {
			return match.Snapshot{}, attempt, diag, fmt.Errorf("commit snapshot match=%s: %w", cand.matchID, err)
		}
		if swapped {
			return next, attempt, diag, nil
		}

		s.metrics.IncCommitConflict()
		if attempt > s.cfg.MaxCommitRetries {
			s.logger.ErrorContext(ctx, "snapshot commit retries exhausted",
				"match_id", cand.matchID,
				"attempts", attempt,
				"expected_version", expected,
			)
			return match.Snapshot{}, attempt, diag, fmt.Errorf("%w: match=%s attempts=%d", ErrConcurrencyExhausted, cand.matchID, attempt)
		}
		s.logger.DebugContext(ctx, "snapshot commit conflict, retrying",
			"match_id", cand.matchID,
			"attempt", attempt,
			"expected_version", expected,
		)

		if err := s.sleep(ctx, s.cfg.CommitBackoff); err != nil {
			return match.Snapshot{}, attempt, diag, fmt.Errorf("reconcile match=%s: %w", cand.matchID, err)
		}
		latest, exists, err := s.store.Get(ctx, cand.matchID)
		if err != nil {
			return match.Snapshot{}, attempt, diag, fmt.Errorf("reload snapshot match=%s: %w", cand.matchID, err)
		}
		base, baseExists = latest, exists
	}
}

func (s *ReconcileService) publish(ctx context.Context, snapshot match.Snapshot) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishSnapshot(ctx, snapshot); err != nil {
		s.logger.WarnContext(ctx, "publish snapshot update failed",
			"match_id", snapshot.MatchID,
			"version", snapshot.Version,
			"error", err,
		)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func firstNonBlank(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
