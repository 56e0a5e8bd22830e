package postgres

import (
	"database/sql"
	"fmt"
	"time"

	sonic "github.com/bytedance/sonic"
	"github.com/riskibarqy/cricket-match-service/internal/domain/match"
)

const matchSnapshotsTable = "match_snapshots"

type matchSnapshotTableModel struct {
	MatchID          string         `db:"match_id"`
	Status           string         `db:"status"`
	StatusInferred   bool           `db:"status_inferred"`
	StatusText       string         `db:"status_text"`
	Format           string         `db:"format"`
	StartTime        sql.NullTime   `db:"start_time"`
	EndTime          sql.NullTime   `db:"end_time"`
	Venue            string         `db:"venue"`
	Teams            string         `db:"teams,jsonb"`
	Version          int64          `db:"version"`
	LastReconciledAt time.Time      `db:"last_reconciled_at"`
	RawPayload       sql.NullString `db:"raw_payload,jsonb"`
}

type teamScoreDocument struct {
	TeamID        string  `json:"team_id,omitempty"`
	TeamName      string  `json:"team_name,omitempty"`
	TeamShortName string  `json:"team_short_name,omitempty"`
	Runs          int     `json:"runs"`
	Wickets       int     `json:"wickets"`
	Overs         float64 `json:"overs"`
}

func snapshotToRow(s match.Snapshot) (matchSnapshotTableModel, error) {
	teams := make([]teamScoreDocument, 0, len(s.Teams))
	for _, team := range s.Teams {
		teams = append(teams, teamScoreDocument{
			TeamID:        team.TeamID,
			TeamName:      team.TeamName,
			TeamShortName: team.TeamShortName,
			Runs:          team.Runs,
			Wickets:       team.Wickets,
			Overs:         team.Overs,
		})
	}
	encoded, err := sonic.MarshalString(teams)
	if err != nil {
		return matchSnapshotTableModel{}, err
	}

	row := matchSnapshotTableModel{
		MatchID:          s.MatchID,
		Status:           string(s.Status),
		StatusInferred:   s.StatusInferred,
		StatusText:       s.StatusText,
		Format:           string(s.Format),
		Venue:            s.Venue,
		Teams:            encoded,
		Version:          s.Version,
		LastReconciledAt: s.LastReconciledAt.UTC(),
	}
	if !s.StartTime.IsZero() {
		row.StartTime = sql.NullTime{Time: s.StartTime.UTC(), Valid: true}
	}
	if s.EndTime != nil {
		row.EndTime = sql.NullTime{Time: s.EndTime.UTC(), Valid: true}
	}
	if len(s.RawPayload) > 0 {
		row.RawPayload = sql.NullString{String: string(s.RawPayload), Valid: true}
	}
	return row, nil
}

func rowToSnapshot(row matchSnapshotTableModel) (match.Snapshot, error) {
	var teams []teamScoreDocument
	if row.Teams != "" {
		if err := sonic.UnmarshalString(row.Teams, &teams); err != nil {
			return match.Snapshot{}, err
		}
	}

	status, ok := match.ParseStatus(row.Status)
	if !ok {
		return match.Snapshot{}, fmt.Errorf("unknown stored status %q", row.Status)
	}

	out := match.Snapshot{
		MatchID:          row.MatchID,
		Status:           status,
		StatusInferred:   row.StatusInferred,
		StatusText:       row.StatusText,
		Format:           match.Format(row.Format),
		Venue:            row.Venue,
		Version:          row.Version,
		LastReconciledAt: row.LastReconciledAt.UTC(),
	}
	for i := 0; i < len(teams) && i < len(out.Teams); i++ {
		out.Teams[i] = match.TeamScore{
			TeamID:        teams[i].TeamID,
			TeamName:      teams[i].TeamName,
			TeamShortName: teams[i].TeamShortName,
			Runs:          teams[i].Runs,
			Wickets:       teams[i].Wickets,
			Overs:         teams[i].Overs,
		}.Normalize()
	}
	if row.StartTime.Valid {
		out.StartTime = row.StartTime.Time.UTC()
	}
	if row.EndTime.Valid {
		end := row.EndTime.Time.UTC()
		out.EndTime = &end
	}
	if row.RawPayload.Valid {
		out.RawPayload = []byte(row.RawPayload.String)
	}
	return out, nil
}
