package match

import (
	"encoding/json"
	"strings"
	"time"
)

// Status is the canonical lifecycle state every provider status text is normalized into.
type Status string

const (
	StatusUpcoming  Status = "UPCOMING"
	StatusLive      Status = "LIVE"
	StatusCompleted Status = "COMPLETED"
	StatusAbandoned Status = "ABANDONED"
	StatusCancelled Status = "CANCELLED"
)

func (s Status) Valid() bool {
	switch s {
	case StatusUpcoming, StatusLive, StatusCompleted, StatusAbandoned, StatusCancelled:
		return true
	default:
		return false
	}
}

// Terminal reports whether no forward transition leaves s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusAbandoned || s == StatusCancelled
}

func ParseStatus(raw string) (Status, bool) {
	status := Status(strings.ToUpper(strings.TrimSpace(raw)))
	if !status.Valid() {
		return "", false
	}
	return status, true
}

type Format string

const (
	FormatUnknown Format = ""
	FormatT20     Format = "T20"
	FormatODI     Format = "ODI"
	FormatTest    Format = "TEST"
)

// ParseFormat maps provider format labels such as "T20I", "Test" or "odi" onto Format.
// Labels outside the known set are kept upper-cased.
func ParseFormat(raw string) Format {
	value := strings.ToUpper(strings.TrimSpace(raw))
	switch {
	case value == "":
		return FormatUnknown
	case strings.Contains(value, "TEST"):
		return FormatTest
	case strings.Contains(value, "ODI"):
		return FormatODI
	case strings.Contains(value, "T20"):
		return FormatT20
	default:
		return Format(value)
	}
}

// TeamScore is one side's aggregate score across every innings it has batted.
type TeamScore struct {
	TeamID        string
	TeamName      string
	TeamShortName string
	Runs          int     `validate:"gte=0"`
	Wickets       int     `validate:"gte=0,lte=10"`
	Overs         float64 `validate:"gte=0,cricket_overs"`
	Balls         int
	RunRate       float64
}

// Normalize recomputes the derived fields from runs and overs.
func (t TeamScore) Normalize() TeamScore {
	t.Balls = BallsFromOvers(t.Overs)
	t.RunRate = RunRate(t.Runs, t.Overs)
	return t
}

func (t TeamScore) HasScore() bool {
	return t.Runs != 0 || t.Wickets != 0 || t.Overs != 0
}

// Snapshot is the canonical cached unit for one match.
type Snapshot struct {
	MatchID          string
	Status           Status
	StatusInferred   bool
	StatusText       string
	Format           Format
	StartTime        time.Time
	EndTime          *time.Time
	Venue            string
	Teams            [2]TeamScore
	Version          int64
	LastReconciledAt time.Time
	RawPayload       json.RawMessage
}

// Clone returns a copy that shares no mutable memory with s.
func (s Snapshot) Clone() Snapshot {
	out := s
	if s.EndTime != nil {
		end := *s.EndTime
		out.EndTime = &end
	}
	if s.RawPayload != nil {
		out.RawPayload = append(json.RawMessage(nil), s.RawPayload...)
	}
	return out
}
