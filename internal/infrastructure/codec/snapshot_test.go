package codec

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/riskibarqy/cricket-match-service/internal/domain/match"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotCodec(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	in := match.Snapshot{
		MatchID:          "87654",
		Status:           match.StatusLive,
		StatusText:       "Innings Break",
		Format:           match.FormatODI,
		StartTime:        start,
		Venue:            "Eden Gardens",
		Teams:            [2]match.TeamScore{match.TeamScore{TeamName: "India", Runs: 205, Wickets: 10, Overs: 38.2}.Normalize()},
		Version:          7,
		LastReconciledAt: start.Add(3 * time.Hour),
		RawPayload:       json.RawMessage(`{"matchInfo":{"matchId":87654}}`),
	}

	raw, err := EncodeSnapshot(in)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"status":"LIVE"`)
	assert.Contains(t, string(raw), `"balls":230`)

	out, err := DecodeSnapshot(raw)
	require.NoError(t, err)
	assert.Equal(t, in.Teams, out.Teams)
	assert.Equal(t, in.StartTime, out.StartTime)
	assert.Nil(t, out.EndTime)
	assert.Equal(t, in.Version, out.Version)
	assert.JSONEq(t, string(in.RawPayload), string(out.RawPayload))

	_, err = DecodeSnapshot([]byte(`{"teams":`))
	assert.Error(t, err)

	_, err = DecodeSnapshot([]byte(`{"match_id":"1","status":"DONE"}`))
	assert.ErrorContains(t, err, "unknown snapshot status")
}
