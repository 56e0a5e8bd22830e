package scorecard

import (
	"sort"
	"strconv"
	"strings"
	"time"
)

// Field names reported in AdaptedFields.Gaps.
const (
	FieldTeam1     = "team1"
	FieldTeam2     = "team2"
	FieldStatus    = "status"
	FieldStartTime = "start_time"
	FieldVenue     = "venue"
	FieldScore     = "score"
)

// TeamFields is a team's identity plus its raw entry, which may carry a flat score.
type TeamFields struct {
	ID        string
	Name      string
	ShortName string
	Entry     map[string]any
}

func (t TeamFields) empty() bool {
	return t.ID == "" && t.Name == "" && t.ShortName == "" && len(t.Entry) == 0
}

// ScoreFields holds the score shapes the extractor understands.
type ScoreFields struct {
	// Innings is a finished-match scorecard list, one object per innings.
	Innings []map[string]any
	// TeamBlocks are live score blocks keyed team1Score/team2Score holding inngs1, inngs2, ...
	TeamBlocks [2]map[string]any
}

func (s ScoreFields) empty() bool {
	return len(s.Innings) == 0 && len(s.TeamBlocks[0]) == 0 && len(s.TeamBlocks[1]) == 0
}

// AdaptedFields is one normalized view over any provider document shape.
type AdaptedFields struct {
	Teams      [2]TeamFields
	StatusText string
	StateText  string
	StartTime  *time.Time
	EndTime    *time.Time
	Venue      string
	Format     string
	Score      ScoreFields
	// Gaps names fields no rule resolved; each falls back to its zero value.
	Gaps []string
}

// Ordered candidate paths per field. Earlier paths win.
var (
	teamPaths = [2][]string{
		{"matchInfo.team1", "matchHeader.team1", "miniscore.matchHeader.team1", "team1", "teamA", "teams.0", "teamInfo.0"},
		{"matchInfo.team2", "matchHeader.team2", "miniscore.matchHeader.team2", "team2", "teamB", "teams.1", "teamInfo.1"},
	}
	teamIDKeys    = []string{"teamId", "id", "team_id"}
	teamNameKeys  = []string{"teamName", "name", "team_name", "teamFullName", "fullName"}
	teamShortKeys = []string{"teamSName", "shortName", "short_name", "sName", "teamShortName", "shortname"}

	statusPaths = []string{
		"matchInfo.status", "matchHeader.status", "miniscore.matchHeader.status",
		"status", "matchStatus", "statusText", "match_status", "customStatus",
	}
	statePaths = []string{
		"matchInfo.state", "matchHeader.state", "miniscore.matchHeader.state",
		"state", "matchState", "stateTitle",
	}
	startPaths = []string{
		"matchInfo.startDate", "matchHeader.matchStartTimestamp", "miniscore.matchHeader.matchStartTimestamp",
		"matchStartTimestamp", "startDate", "startTime", "dateTimeGMT", "start_time", "date",
	}
	endPaths = []string{
		"matchInfo.endDate", "matchHeader.matchCompleteTimestamp", "miniscore.matchHeader.matchCompleteTimestamp",
		"matchCompleteTimestamp", "endDate", "endTime", "end_time",
	}
	venuePaths = []string{
		"matchInfo.venueInfo.ground", "venueInfo.ground", "matchInfo.venue.name", "matchHeader.venue.name",
		"venue.name", "venue.ground", "venue", "ground",
	}
	formatPaths = []string{
		"matchInfo.matchFormat", "matchHeader.matchFormat", "miniscore.matchHeader.matchFormat",
		"matchFormat", "format", "matchType",
	}
	inningsPaths = []string{"scoreCard", "scorecard", "innings", "scorecards", "matchScorecard"}
	blockPaths   = [2][]string{
		{"matchScore.team1Score", "team1Score", "score.team1Score", "miniscore.matchScore.team1Score"},
		{"matchScore.team2Score", "team2Score", "score.team2Score", "miniscore.matchScore.team2Score"},
	}
)

// Adapt resolves every field of doc through its ordered path list. It never fails:
// unresolved fields keep zero values and are listed in Gaps.
func Adapt(doc map[string]any) AdaptedFields {
	out := AdaptedFields{
		StatusText: firstString(doc, statusPaths...),
		StateText:  firstString(doc, statePaths...),
		StartTime:  firstTime(doc, startPaths...),
		EndTime:    firstTime(doc, endPaths...),
		Venue:      firstString(doc, venuePaths...),
		Format:     firstString(doc, formatPaths...),
	}
	for i := range out.Teams {
		out.Teams[i] = adaptTeam(doc, teamPaths[i])
		out.Score.TeamBlocks[i] = firstMap(doc, blockPaths[i]...)
	}
	out.Score.Innings = adaptInnings(firstSlice(doc, inningsPaths...))
	out.Gaps = gaps(out)
	return out
}

// Merge fills every empty field of primary from the secondaries, in order.
func Merge(primary AdaptedFields, secondaries ...AdaptedFields) AdaptedFields {
	out := primary
	for _, other := range secondaries {
		for i := range out.Teams {
			out.Teams[i] = mergeTeam(out.Teams[i], other.Teams[i])
			if len(out.Score.TeamBlocks[i]) == 0 {
				out.Score.TeamBlocks[i] = other.Score.TeamBlocks[i]
			}
		}
		out.StatusText = firstNonEmpty(out.StatusText, other.StatusText)
		out.StateText = firstNonEmpty(out.StateText, other.StateText)
		out.Venue = firstNonEmpty(out.Venue, other.Venue)
		out.Format = firstNonEmpty(out.Format, other.Format)
		if out.StartTime == nil {
			out.StartTime = other.StartTime
		}
		if out.EndTime == nil {
			out.EndTime = other.EndTime
		}
		if len(out.Score.Innings) == 0 {
			out.Score.Innings = other.Score.Innings
		}
	}
	out.Gaps = gaps(out)
	return out
}

func adaptTeam(doc map[string]any, paths []string) TeamFields {
	for _, path := range paths {
		switch value := Lookup(doc, path).(type) {
		case map[string]any:
			team := TeamFields{
				ID:        firstString(value, teamIDKeys...),
				Name:      firstString(value, teamNameKeys...),
				ShortName: firstString(value, teamShortKeys...),
				Entry:     value,
			}
			if !team.empty() {
				return team
			}
		case string:
			if name := strings.TrimSpace(value); name != "" {
				return TeamFields{Name: name}
			}
		}
	}
	return TeamFields{}
}

func adaptInnings(items []any) []map[string]any {
	if len(items) == 0 {
		return nil
	}
	out := make([]map[string]any, 0, len(items))
	for _, item := range items {
		if entry, ok := item.(map[string]any); ok {
			out = append(out, entry)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func mergeTeam(current, other TeamFields) TeamFields {
	current.ID = firstNonEmpty(current.ID, other.ID)
	current.Name = firstNonEmpty(current.Name, other.Name)
	current.ShortName = firstNonEmpty(current.ShortName, other.ShortName)
	if len(current.Entry) == 0 {
		current.Entry = other.Entry
	}
	return current
}

func gaps(fields AdaptedFields) []string {
	var out []string
	if fields.Teams[0].empty() {
		out = append(out, FieldTeam1)
	}
	if fields.Teams[1].empty() {
		out = append(out, FieldTeam2)
	}
	if fields.StatusText == "" && fields.StateText == "" {
		out = append(out, FieldStatus)
	}
	if fields.StartTime == nil {
		out = append(out, FieldStartTime)
	}
	if fields.Venue == "" {
		out = append(out, FieldVenue)
	}
	if fields.Score.empty() && !hasFlatScore(fields.Teams[0].Entry) && !hasFlatScore(fields.Teams[1].Entry) {
		out = append(out, FieldScore)
	}
	return out
}

// inningsKeys returns the inngsN keys of a live score block ordered by N.
func inningsKeys(block map[string]any) []string {
	keys := make([]string, 0, len(block))
	for key := range block {
		if _, ok := inningsNumber(key); ok {
			keys = append(keys, key)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		left, _ := inningsNumber(keys[i])
		right, _ := inningsNumber(keys[j])
		return left < right
	})
	return keys
}

func inningsNumber(key string) (int, bool) {
	lower := strings.ToLower(key)
	for _, prefix := range []string{"inngs", "innings", "inning"} {
		if !strings.HasPrefix(lower, prefix) {
			continue
		}
		n, err := strconv.Atoi(strings.TrimPrefix(lower, prefix))
		if err != nil || n <= 0 {
			return 0, false
		}
		return n, true
	}
	return 0, false
}

func firstNonEmpty(values ...string) string {
	for _, item := range values {
		if strings.TrimSpace(item) != "" {
			return strings.TrimSpace(item)
		}
	}
	return ""
}
