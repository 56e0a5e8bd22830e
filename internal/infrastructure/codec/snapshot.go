// Package codec holds the JSON document form of match snapshots shared by the
// redis store, the update stream and the HTTP API.
package codec

import (
	"encoding/json"
	"fmt"
	"time"

	sonic "github.com/bytedance/sonic"
	"github.com/riskibarqy/cricket-match-service/internal/domain/match"
)

type TeamScoreDocument struct {
	TeamID        string  `json:"team_id,omitempty"`
	TeamName      string  `json:"team_name,omitempty"`
	TeamShortName string  `json:"team_short_name,omitempty"`
	Runs          int     `json:"runs"`
	Wickets       int     `json:"wickets"`
	Overs         float64 `json:"overs"`
	Balls         int     `json:"balls"`
	RunRate       float64 `json:"run_rate"`
}

type SnapshotDocument struct {
	MatchID          string              `json:"match_id"`
	Status           string              `json:"status"`
	StatusInferred   bool                `json:"status_inferred"`
	StatusText       string              `json:"status_text,omitempty"`
	Format           string              `json:"format,omitempty"`
	StartTime        *time.Time          `json:"start_time,omitempty"`
	EndTime          *time.Time          `json:"end_time,omitempty"`
	Venue            string              `json:"venue,omitempty"`
	Teams            []TeamScoreDocument `json:"teams"`
	Version          int64               `json:"version"`
	LastReconciledAt time.Time           `json:"last_reconciled_at"`
	RawPayload       json.RawMessage     `json:"raw_payload,omitempty"`
}

func NewSnapshotDocument(s match.Snapshot) SnapshotDocument {
	doc := SnapshotDocument{
		MatchID:          s.MatchID,
		Status:           string(s.Status),
		StatusInferred:   s.StatusInferred,
		StatusText:       s.StatusText,
		Format:           string(s.Format),
		Venue:            s.Venue,
		Teams:            make([]TeamScoreDocument, 0, len(s.Teams)),
		Version:          s.Version,
		LastReconciledAt: s.LastReconciledAt.UTC(),
		RawPayload:       s.RawPayload,
	}
	if !s.StartTime.IsZero() {
		start := s.StartTime.UTC()
		doc.StartTime = &start
	}
	if s.EndTime != nil {
		end := s.EndTime.UTC()
		doc.EndTime = &end
	}
	for _, team := range s.Teams {
		doc.Teams = append(doc.Teams, TeamScoreDocument{
			TeamID:        team.TeamID,
			TeamName:      team.TeamName,
			TeamShortName: team.TeamShortName,
			Runs:          team.Runs,
			Wickets:       team.Wickets,
			Overs:         team.Overs,
			Balls:         team.Balls,
			RunRate:       team.RunRate,
		})
	}
	return doc
}

func (d SnapshotDocument) Snapshot() match.Snapshot {
	out := match.Snapshot{
		MatchID:          d.MatchID,
		Status:           match.Status(d.Status),
		StatusInferred:   d.StatusInferred,
		StatusText:       d.StatusText,
		Format:           match.Format(d.Format),
		Venue:            d.Venue,
		Version:          d.Version,
		LastReconciledAt: d.LastReconciledAt.UTC(),
	}
	if d.StartTime != nil {
		out.StartTime = d.StartTime.UTC()
	}
	if d.EndTime != nil {
		end := d.EndTime.UTC()
		out.EndTime = &end
	}
	for i := 0; i < len(d.Teams) && i < len(out.Teams); i++ {
		team := d.Teams[i]
		out.Teams[i] = match.TeamScore{
			TeamID:        team.TeamID,
			TeamName:      team.TeamName,
			TeamShortName: team.TeamShortName,
			Runs:          team.Runs,
			Wickets:       team.Wickets,
			Overs:         team.Overs,
		}.Normalize()
	}
	if len(d.RawPayload) > 0 {
		out.RawPayload = append(json.RawMessage(nil), d.RawPayload...)
	}
	return out
}

func EncodeSnapshot(s match.Snapshot) ([]byte, error) {
	return sonic.Marshal(NewSnapshotDocument(s))
}

func DecodeSnapshot(raw []byte) (match.Snapshot, error) {
	var doc SnapshotDocument
	if err := sonic.Unmarshal(raw, &doc); err != nil {
		return match.Snapshot{}, err
	}
	status, ok := match.ParseStatus(doc.Status)
	if !ok {
		return match.Snapshot{}, fmt.Errorf("unknown snapshot status %q", doc.Status)
	}
	out := doc.Snapshot()
	out.Status = status
	return out, nil
}
