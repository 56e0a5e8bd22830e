package match

import (
	"regexp"
	"strings"
	"time"
)

const DefaultLiveInferenceWindow = 8 * time.Hour

type keywordRule struct {
	status    Status
	contains  []string
	patterns  []*regexp.Regexp
	// timeToken marks matches on a bare clock time or zone, which hint at a schedule
	// without stating one.
	timeToken bool
}

// Evaluated in order; the first matching group wins. COMPLETED comes before LIVE because
// result strings often carry live-looking words.
var keywordRules = []keywordRule{
	{
		status:   StatusCompleted,
		contains: []string{"complete", "finished", "won by", "match tied", "no result", "result", "match drawn"},
	},
	{
		status: StatusLive,
		contains: []string{
			"in progress", "innings break", "rain delay", "tea break", "lunch break", "drinks break",
			"stumps", "opt to", "elected to", "chose to", "lead by", "trail by",
		},
		patterns: []*regexp.Regexp{regexp.MustCompile(`\blive\b`), regexp.MustCompile(`\bneeds?\b`)},
	},
	{
		status:   StatusAbandoned,
		contains: []string{"abandon", "washed out"},
	},
	{
		status:   StatusCancelled,
		contains: []string{"cancel", "postponed"},
	},
	{
		status:   StatusUpcoming,
		contains: []string{"match starts", "starts at", "upcoming", "scheduled", "preview"},
	},
	{
		status: StatusUpcoming,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`\b\d{1,2}:\d{2}\b`),
			regexp.MustCompile(`\bgmt\b`),
			regexp.MustCompile(`\bist\b`),
		},
		timeToken: true,
	},
}

// MatchKeywords classifies free text by keyword group only. ok is false when nothing matched.
func MatchKeywords(text string) (Status, bool) {
	rule, ok := matchKeywordRule(text)
	if !ok {
		return "", false
	}
	return rule.status, true
}

func matchKeywordRule(text string) (keywordRule, bool) {
	normalized := strings.ToLower(strings.TrimSpace(text))
	if normalized == "" {
		return keywordRule{}, false
	}
	for _, rule := range keywordRules {
		for _, needle := range rule.contains {
			if strings.Contains(normalized, needle) {
				return rule, true
			}
		}
		for _, pattern := range rule.patterns {
			if pattern.MatchString(normalized) {
				return rule, true
			}
		}
	}
	return keywordRule{}, false
}

// CanTransition reports whether the lifecycle permits moving from one status to another.
// An empty from means the match has no prior classification.
func CanTransition(from, to Status) bool {
	if !to.Valid() {
		return false
	}
	if from == "" || from == to {
		return true
	}
	switch from {
	case StatusUpcoming:
		return true
	case StatusLive:
		return to.Terminal()
	default:
		return false
	}
}

type ClassifierConfig struct {
	LiveInferenceWindow     time.Duration
	TestLiveInferenceWindow time.Duration
}

// Classifier maps provider status text onto Status with time-based and stickiness rules.
type Classifier struct {
	liveWindow     time.Duration
	testLiveWindow time.Duration
}

func NewClassifier(cfg ClassifierConfig) *Classifier {
	liveWindow := cfg.LiveInferenceWindow
	if liveWindow <= 0 {
		liveWindow = DefaultLiveInferenceWindow
	}
	testWindow := cfg.TestLiveInferenceWindow
	if testWindow <= 0 {
		testWindow = liveWindow
	}
	return &Classifier{liveWindow: liveWindow, testLiveWindow: testWindow}
}

type ClassifyInput struct {
	StatusText string
	// StateText is the provider's secondary state field, consulted when StatusText matches nothing.
	StateText string
	StartTime *time.Time
	Now       time.Time
	// Previous is the stored status, empty when the match has never been classified.
	Previous         Status
	PreviousInferred bool
	// Default is used when no keyword group matches. Invalid values fall back to UPCOMING.
	Default Status
	Format  Format
}

type Classification struct {
	Status Status
	// Explicit is true when the status came from a keyword match rather than a default or inference.
	Explicit bool
	Reason   string
}

const (
	ReasonKeyword         = "keyword"
	ReasonStateKeyword    = "state_keyword"
	ReasonTimeToken       = "time_token"
	ReasonDefault         = "default"
	ReasonStartElapsed    = "start_time_elapsed"
	ReasonStickyLive      = "sticky_live"
	ReasonStickyTerminal  = "sticky_terminal"
	ReasonTerminalCorrect = "terminal_correction"
)

// Classify implements keyword precedence, caller default, live inference from start time,
// and stickiness against the previous status.
func (c *Classifier) Classify(in ClassifyInput) Classification {
	out := c.classifyText(in)

	if c.shouldInferLive(in, out) {
		out = Classification{Status: StatusLive, Reason: ReasonStartElapsed}
	}

	return applyStickiness(in.Previous, in.PreviousInferred, out)
}

func (c *Classifier) classifyText(in ClassifyInput) Classification {
	for _, source := range []struct{ text, reason string }{
		{in.StatusText, ReasonKeyword},
		{in.StateText, ReasonStateKeyword},
	} {
		rule, ok := matchKeywordRule(source.text)
		if !ok {
			continue
		}
		reason := source.reason
		if rule.timeToken {
			reason = ReasonTimeToken
		}
		return Classification{Status: rule.status, Explicit: true, Reason: reason}
	}

	fallback := in.Default
	if !fallback.Valid() {
		fallback = StatusUpcoming
	}
	return Classification{Status: fallback, Reason: ReasonDefault}
}

// An explicit terminal or explicit LIVE keyword is never overridden by the clock.
func (c *Classifier) shouldInferLive(in ClassifyInput, current Classification) bool {
	if in.Previous != "" && in.Previous != StatusUpcoming {
		return false
	}
	if in.StartTime == nil || in.StartTime.IsZero() {
		return false
	}
	if current.Explicit && current.Status != StatusUpcoming {
		return false
	}
	elapsed := in.Now.Sub(*in.StartTime)
	return elapsed > 0 && elapsed < c.LiveInferenceWindow(in.Format)
}

func (c *Classifier) LiveInferenceWindow(format Format) time.Duration {
	if format == FormatTest {
		return c.testLiveWindow
	}
	return c.liveWindow
}

// applyStickiness enforces the lifecycle against the stored status. LIVE only moves to an
// explicit terminal status. A terminal status is final unless it was inferred, in which
// case explicit text other than a bare clock time may correct it.
func applyStickiness(previous Status, previousInferred bool, next Classification) Classification {
	switch {
	case previous == StatusLive:
		if next.Explicit && next.Status.Terminal() && CanTransition(previous, next.Status) {
			return next
		}
		return Classification{Status: StatusLive, Explicit: !previousInferred, Reason: ReasonStickyLive}
	case previous.Terminal():
		if next.Explicit && CanTransition(previous, next.Status) {
			return next
		}
		if previousInferred && next.Explicit && next.Reason != ReasonTimeToken {
			next.Reason = ReasonTerminalCorrect
			return next
		}
		return Classification{Status: previous, Explicit: !previousInferred, Reason: ReasonStickyTerminal}
	default:
		return next
	}
}
