package cricbuzz

import "encoding/json"

// matchListResponse is the /matches/v1/{kind} envelope. Match entries stay raw so the
// reconciler adapts them like any other document.
type matchListResponse struct {
	TypeMatches []typeMatches `json:"typeMatches"`
}

type typeMatches struct {
	MatchType     string          `json:"matchType"`
	SeriesMatches []seriesMatches `json:"seriesMatches"`
}

type seriesMatches struct {
	SeriesAdWrapper *seriesAdWrapper `json:"seriesAdWrapper"`
}

type seriesAdWrapper struct {
	SeriesID   int64             `json:"seriesId"`
	SeriesName string            `json:"seriesName"`
	Matches    []json.RawMessage `json:"matches"`
}
