package httpapi

import (
	"github.com/riskibarqy/cricket-match-service/internal/domain/match"
	"github.com/riskibarqy/cricket-match-service/internal/infrastructure/codec"
	"github.com/riskibarqy/cricket-match-service/internal/usecase"
)

type matchDTO struct {
	codec.SnapshotDocument
	Outcome string `json:"outcome"`
	// Stale marks a snapshot served past its freshness window.
	Stale bool `json:"stale"`
}

func snapshotToDTO(snapshot match.Snapshot, outcome string, includeRaw bool) matchDTO {
	if !includeRaw {
		snapshot.RawPayload = nil
	}
	return matchDTO{
		SnapshotDocument: codec.NewSnapshotDocument(snapshot),
		Outcome:          outcome,
		Stale:            outcome == usecase.OutcomeStaleServed,
	}
}
