package publisher

import (
	"context"
	"fmt"
	"strings"

	sonic "github.com/bytedance/sonic"
	goredis "github.com/redis/go-redis/v9"
	"github.com/riskibarqy/cricket-match-service/internal/domain/match"
	"github.com/riskibarqy/cricket-match-service/internal/infrastructure/codec"
)

const (
	DefaultStreamKey    = "matches.updates"
	defaultStreamMaxLen = 10000
)

// StreamPublisher appends committed snapshots to a redis stream.
type StreamPublisher struct {
	client goredis.Cmdable
	stream string
	maxLen int64
}

func NewStreamPublisher(client goredis.Cmdable, stream string, maxLen int64) *StreamPublisher {
	stream = strings.TrimSpace(stream)
	if stream == "" {
		stream = DefaultStreamKey
	}
	if maxLen <= 0 {
		maxLen = defaultStreamMaxLen
	}
	return &StreamPublisher{client: client, stream: stream, maxLen: maxLen}
}

func (p *StreamPublisher) PublishSnapshot(ctx context.Context, snapshot match.Snapshot) error {
	doc := codec.NewSnapshotDocument(snapshot)
	doc.RawPayload = nil
	data, err := sonic.MarshalString(doc)
	if err != nil {
		return fmt.Errorf("marshal snapshot update %s: %w", snapshot.MatchID, err)
	}

	err = p.client.XAdd(ctx, &goredis.XAddArgs{
		Stream: p.stream,
		MaxLen: p.maxLen,
		Approx: true,
		Values: []any{
			"match_id", snapshot.MatchID,
			"status", string(snapshot.Status),
			"version", snapshot.Version,
			"data", data,
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("publish snapshot update %s: %w", snapshot.MatchID, err)
	}
	return nil
}
