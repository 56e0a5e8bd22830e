package scorecard

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/riskibarqy/cricket-match-service/internal/domain/match"
)

// Source names the score shape a TeamScore was extracted from.
type Source string

const (
	SourceNone         Source = ""
	SourceScorecard    Source = "scorecard"
	SourceInningsBlock Source = "innings_block"
	SourceFlat         Source = "flat"
)

var (
	runsPaths    = []string{"scoreDetails.runs", "runs", "score", "r", "total"}
	wicketsPaths = []string{"scoreDetails.wickets", "wickets", "wkts", "w"}
	oversPaths   = []string{"scoreDetails.overs", "overs", "o"}

	batTeamIDPaths    = []string{"batTeamDetails.batTeamId", "batTeamId", "battingTeam.id", "batting_team_id"}
	batTeamNamePaths  = []string{"batTeamDetails.batTeamName", "batTeamName", "battingTeam.name", "batting_team"}
	batTeamShortPaths = []string{"batTeamDetails.batTeamShortName", "batTeamSName", "batTeamShortName", "battingTeam.shortName"}

	flatScorePaths = []string{"score", "teamScore", "scores"}

	// "145/3 (18.2 ov)", "145-3", "212"
	scoreTextRegex = regexp.MustCompile(`^(\d+)(?:\s*[/-]\s*(\d+))?(?:\s*\(\s*(\d+(?:\.\d)?)\s*(?:ov|overs)?\s*\))?`)
)

type inningsLine struct {
	runs    int
	wickets int
	balls   int
}

// Extract builds the aggregate score for team index 0 (team1) or 1 (team2).
// Missing numbers are zero; run rate and balls are always recomputed.
func Extract(fields AdaptedFields, teamIndex int) match.TeamScore {
	score, _ := ExtractWithSource(fields, teamIndex)
	return score
}

// ExtractWithSource is Extract plus the shape that produced the numbers.
// SourceNone means no shape held a score for the team.
func ExtractWithSource(fields AdaptedFields, teamIndex int) (match.TeamScore, Source) {
	if teamIndex < 0 || teamIndex > 1 {
		return match.TeamScore{}, SourceNone
	}
	team := fields.Teams[teamIndex]
	out := match.TeamScore{
		TeamID:        team.ID,
		TeamName:      team.Name,
		TeamShortName: team.ShortName,
	}

	if innings := teamInnings(fields, teamIndex); len(innings) > 0 {
		lines := make([]inningsLine, 0, len(innings))
		for _, entry := range innings {
			if line, ok := readInnings(entry); ok {
				lines = append(lines, line)
			}
		}
		if len(lines) > 0 {
			out = fillIdentity(out, innings[len(innings)-1])
			return aggregate(out, lines).Normalize(), SourceScorecard
		}
	}

	if lines := blockLines(fields.Score.TeamBlocks[teamIndex]); len(lines) > 0 {
		return aggregate(out, lines).Normalize(), SourceInningsBlock
	}

	if lines := blockLines(team.Entry); len(lines) > 0 {
		return aggregate(out, lines).Normalize(), SourceInningsBlock
	}

	if line, ok := flatLine(team.Entry); ok {
		return aggregate(out, []inningsLine{line}).Normalize(), SourceFlat
	}

	return out.Normalize(), SourceNone
}

// Runs and balls accumulate across innings. Wickets come from the most recent innings only.
func aggregate(out match.TeamScore, lines []inningsLine) match.TeamScore {
	balls := 0
	for _, line := range lines {
		out.Runs += line.runs
		balls += line.balls
	}
	out.Wickets = lines[len(lines)-1].wickets
	out.Overs = match.OversFromBalls(balls)
	return out
}

// teamInnings picks the scorecard innings batted by the team. Innings are matched on batting
// team identity when the scorecard carries it, otherwise by position (even index team1, odd team2).
func teamInnings(fields AdaptedFields, teamIndex int) []map[string]any {
	innings := fields.Score.Innings
	if len(innings) == 0 {
		return nil
	}
	team := fields.Teams[teamIndex]
	teamKnown := team.ID != "" || team.Name != "" || team.ShortName != ""

	identified := false
	var matched []map[string]any
	for _, entry := range innings {
		id := firstString(entry, batTeamIDPaths...)
		name := firstString(entry, batTeamNamePaths...)
		short := firstString(entry, batTeamShortPaths...)
		if id == "" && name == "" && short == "" {
			continue
		}
		identified = true
		if sameTeam(team, id, name, short) {
			matched = append(matched, entry)
		}
	}
	if identified && teamKnown {
		return matched
	}

	var byIndex []map[string]any
	for i, entry := range innings {
		if i%2 == teamIndex {
			byIndex = append(byIndex, entry)
		}
	}
	return byIndex
}

func sameTeam(team TeamFields, id, name, short string) bool {
	if team.ID != "" && id != "" {
		return team.ID == id
	}
	if team.Name != "" && name != "" && strings.EqualFold(team.Name, name) {
		return true
	}
	return team.ShortName != "" && short != "" && strings.EqualFold(team.ShortName, short)
}

func fillIdentity(out match.TeamScore, entry map[string]any) match.TeamScore {
	if out.TeamID == "" {
		out.TeamID = firstString(entry, batTeamIDPaths...)
	}
	if out.TeamName == "" {
		out.TeamName = firstString(entry, batTeamNamePaths...)
	}
	if out.TeamShortName == "" {
		out.TeamShortName = firstString(entry, batTeamShortPaths...)
	}
	return out
}

func blockLines(block map[string]any) []inningsLine {
	keys := inningsKeys(block)
	if len(keys) == 0 {
		return nil
	}
	lines := make([]inningsLine, 0, len(keys))
	for _, key := range keys {
		entry, ok := block[key].(map[string]any)
		if !ok {
			continue
		}
		if line, ok := readInnings(entry); ok {
			lines = append(lines, line)
		}
	}
	return lines
}

func flatLine(entry map[string]any) (inningsLine, bool) {
	if line, ok := readInnings(entry); ok {
		return line, true
	}
	if nested := firstMap(entry, flatScorePaths...); nested != nil {
		return readInnings(nested)
	}
	for _, path := range flatScorePaths {
		if text, ok := Lookup(entry, path).(string); ok {
			if line, ok := parseScoreText(text); ok {
				return line, true
			}
		}
	}
	return inningsLine{}, false
}

func parseScoreText(text string) (inningsLine, bool) {
	parts := scoreTextRegex.FindStringSubmatch(strings.TrimSpace(text))
	if parts == nil {
		return inningsLine{}, false
	}
	runs, _ := strconv.Atoi(parts[1])
	wickets, _ := strconv.Atoi(parts[2])
	overs, _ := strconv.ParseFloat(parts[3], 64)
	return inningsLine{runs: runs, wickets: wickets, balls: match.BallsFromOvers(overs)}, true
}

func hasFlatScore(entry map[string]any) bool {
	if len(blockLines(entry)) > 0 {
		return true
	}
	_, ok := flatLine(entry)
	return ok
}

func readInnings(entry map[string]any) (inningsLine, bool) {
	if len(entry) == 0 {
		return inningsLine{}, false
	}
	runs, hasRuns := firstNumber(entry, runsPaths...)
	wickets, hasWickets := firstNumber(entry, wicketsPaths...)
	overs, hasOvers := firstNumber(entry, oversPaths...)
	if !hasRuns && !hasWickets && !hasOvers {
		return inningsLine{}, false
	}
	return inningsLine{
		runs:    int(runs),
		wickets: int(wickets),
		balls:   match.BallsFromOvers(overs),
	}, true
}
