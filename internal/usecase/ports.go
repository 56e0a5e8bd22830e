package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/riskibarqy/cricket-match-service/internal/domain/match"
)

// FetchResult carries the raw provider documents for one match. Only Info is required.
type FetchResult struct {
	Info       []byte
	Scorecard  []byte
	Commentary []byte
}

// FetchFunc obtains the raw documents for a match. It must honor ctx cancellation.
type FetchFunc func(ctx context.Context) (FetchResult, error)

type MatchListKind string

const (
	MatchListLive     MatchListKind = "live"
	MatchListRecent   MatchListKind = "recent"
	MatchListUpcoming MatchListKind = "upcoming"
)

func ParseMatchListKind(raw string) (MatchListKind, error) {
	switch kind := MatchListKind(strings.ToLower(strings.TrimSpace(raw))); kind {
	case "":
		return MatchListLive, nil
	case MatchListLive, MatchListRecent, MatchListUpcoming:
		return kind, nil
	default:
		return "", fmt.Errorf("%w: unsupported match list kind %q", ErrInvalidInput, raw)
	}
}

// DefaultStatus is the status assumed for a listed match whose status text matches nothing.
func (k MatchListKind) DefaultStatus() match.Status {
	switch k {
	case MatchListLive:
		return match.StatusLive
	case MatchListRecent:
		return match.StatusCompleted
	default:
		return match.StatusUpcoming
	}
}

type ListedMatch struct {
	MatchID string
	Payload []byte
}

// MatchProvider is the upstream cricket data feed.
type MatchProvider interface {
	FetchMatchInfo(ctx context.Context, matchID string) ([]byte, error)
	FetchScorecard(ctx context.Context, matchID string) ([]byte, error)
	FetchCommentary(ctx context.Context, matchID string) ([]byte, error)
	ListMatches(ctx context.Context, kind MatchListKind) ([]ListedMatch, error)
}

// SnapshotPublisher fans committed snapshots out to downstream consumers.
type SnapshotPublisher interface {
	PublishSnapshot(ctx context.Context, snapshot match.Snapshot) error
}

type ReconcileMetrics interface {
	ObserveReconcile(outcome string, duration time.Duration)
	IncCommitConflict()
}

type noopReconcileMetrics struct{}

func (noopReconcileMetrics) ObserveReconcile(string, time.Duration) {}
func (noopReconcileMetrics) IncCommitConflict()                     {}
