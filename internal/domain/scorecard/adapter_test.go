package scorecard

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const matchCenterPayload = `{
  "matchInfo": {
    "matchId": 87654,
    "matchFormat": "T20",
    "status": "India won by 6 wickets",
    "state": "Complete",
    "startDate": "1772366400000",
    "endDate": 1772380800000,
    "team1": {"teamId": 2, "teamName": "India", "teamSName": "IND"},
    "team2": {"teamId": 4, "teamName": "Australia", "teamSName": "AUS"},
    "venueInfo": {"ground": "Wankhede Stadium", "city": "Mumbai"}
  },
  "matchScore": {
    "team1Score": {"inngs1": {"inningsId": 2, "runs": 171, "wickets": 4, "overs": 19.2}},
    "team2Score": {"inngs1": {"inningsId": 1, "runs": 168, "wickets": 8, "overs": 20}}
  }
}`

const flatListPayload = `{
  "id": "m-1",
  "matchStatus": "Match starts at 14:30 GMT",
  "dateTimeGMT": "2026-03-01T14:30:00",
  "venue": "Eden Gardens",
  "teamA": "Bangladesh",
  "teamB": {"name": "Sri Lanka", "shortName": "SL", "score": "145/3 (18.2 ov)"},
  "format": "odi"
}`

func TestAdapt_MatchCenterShape(t *testing.T) {
	t.Parallel()

	fields := Adapt(Decode([]byte(matchCenterPayload)))

	assert.Equal(t, "2", fields.Teams[0].ID)
	assert.Equal(t, "India", fields.Teams[0].Name)
	assert.Equal(t, "IND", fields.Teams[0].ShortName)
	assert.Equal(t, "Australia", fields.Teams[1].Name)
	assert.Equal(t, "India won by 6 wickets", fields.StatusText)
	assert.Equal(t, "Complete", fields.StateText)
	assert.Equal(t, "Wankhede Stadium", fields.Venue)
	assert.Equal(t, "T20", fields.Format)
	require.NotNil(t, fields.StartTime)
	assert.True(t, fields.StartTime.Equal(time.UnixMilli(1772366400000)))
	require.NotNil(t, fields.EndTime)
	assert.True(t, fields.EndTime.Equal(time.UnixMilli(1772380800000)))
	assert.NotEmpty(t, fields.Score.TeamBlocks[0])
	assert.NotEmpty(t, fields.Score.TeamBlocks[1])
	assert.Empty(t, fields.Gaps)
}

func TestAdapt_FlatListShape(t *testing.T) {
	t.Parallel()

	fields := Adapt(Decode([]byte(flatListPayload)))

	assert.Equal(t, "Bangladesh", fields.Teams[0].Name)
	assert.Equal(t, "Sri Lanka", fields.Teams[1].Name)
	assert.Equal(t, "SL", fields.Teams[1].ShortName)
	assert.Equal(t, "Match starts at 14:30 GMT", fields.StatusText)
	assert.Equal(t, "Eden Gardens", fields.Venue)
	assert.Equal(t, "odi", fields.Format)
	require.NotNil(t, fields.StartTime)
	assert.Equal(t, time.Date(2026, 3, 1, 14, 30, 0, 0, time.UTC), *fields.StartTime)
	assert.Empty(t, fields.Gaps)
}

func TestAdapt_NeverFailsOnMalformedInput(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{"", "null", "[1,2,3]", "{not json", `{"matchInfo": "oops"}`} {
		fields := Adapt(Decode([]byte(raw)))
		assert.Empty(t, fields.StatusText, raw)
		assert.Nil(t, fields.StartTime, raw)
		assert.ElementsMatch(t,
			[]string{FieldTeam1, FieldTeam2, FieldStatus, FieldStartTime, FieldVenue, FieldScore},
			fields.Gaps, raw)
	}
}

func TestAdapt_PathPriority(t *testing.T) {
	t.Parallel()

	doc := map[string]any{
		"status":    "from top level",
		"matchInfo": map[string]any{"status": "from match info"},
		"venue":     map[string]any{"name": "Lord's"},
		"ground":    "ignored ground",
	}
	fields := Adapt(doc)

	assert.Equal(t, "from match info", fields.StatusText)
	assert.Equal(t, "Lord's", fields.Venue)
}

func TestMerge_FillsOnlyEmptyFields(t *testing.T) {
	t.Parallel()

	primary := Adapt(map[string]any{
		"status": "Live",
		"team1":  map[string]any{"teamName": "India"},
	})
	secondary := Adapt(Decode([]byte(matchCenterPayload)))

	merged := Merge(primary, secondary)

	assert.Equal(t, "Live", merged.StatusText)
	assert.Equal(t, "India", merged.Teams[0].Name)
	assert.Equal(t, "2", merged.Teams[0].ID)
	assert.Equal(t, "Australia", merged.Teams[1].Name)
	assert.Equal(t, "Wankhede Stadium", merged.Venue)
	assert.NotEmpty(t, merged.Score.TeamBlocks[0])
	assert.Empty(t, merged.Gaps)
}

func TestLookup_ArrayIndex(t *testing.T) {
	t.Parallel()

	doc := Decode([]byte(`{"teams":[{"name":"Kenya"},{"name":"Nepal"}]}`))
	assert.Equal(t, "Nepal", StringValue(Lookup(doc, "teams.1.name")))
	assert.Nil(t, Lookup(doc, "teams.5.name"))
	assert.Nil(t, Lookup(doc, "teams.x"))
}
