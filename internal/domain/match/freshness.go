package match

import "time"

const (
	DefaultLiveRefreshInterval     = 30 * time.Second
	DefaultUpcomingRefreshInterval = 5 * time.Minute
	DefaultTerminalRefreshInterval = time.Hour
)

// FreshnessPolicy decides whether a cached snapshot may be served without a refetch.
type FreshnessPolicy struct {
	Live     time.Duration
	Upcoming time.Duration
	Terminal time.Duration
}

func DefaultFreshnessPolicy() FreshnessPolicy {
	return FreshnessPolicy{
		Live:     DefaultLiveRefreshInterval,
		Upcoming: DefaultUpcomingRefreshInterval,
		Terminal: DefaultTerminalRefreshInterval,
	}
}

// Interval returns the refresh interval for status. Unknown statuses use the LIVE interval.
func (p FreshnessPolicy) Interval(status Status) time.Duration {
	defaults := DefaultFreshnessPolicy()
	switch {
	case status == StatusUpcoming:
		return positiveOr(p.Upcoming, defaults.Upcoming)
	case status.Terminal():
		return positiveOr(p.Terminal, defaults.Terminal)
	default:
		return positiveOr(p.Live, defaults.Live)
	}
}

// NeedsRefresh is true when now-lastReconciledAt >= Interval(status), or when the snapshot was never reconciled.
func (p FreshnessPolicy) NeedsRefresh(status Status, lastReconciledAt, now time.Time) bool {
	if lastReconciledAt.IsZero() {
		return true
	}
	return now.Sub(lastReconciledAt) >= p.Interval(status)
}

func positiveOr(value, fallback time.Duration) time.Duration {
	if value > 0 {
		return value
	}
	return fallback
}
