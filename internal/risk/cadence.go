package risk

import (
	"time"

	"github.com/haqhal13/EDGEBOTPRO/internal/config"
)

const (
	secondWindow = time.Second
	minuteWindow = time.Minute
)

// AllowCadence decides whether a trade may be issued at now given the last
// trade time and the recent trade history. A nil configuration always allows.
// Counts at the cap reject: the window count must be strictly below the cap
// for a trade to pass.
func AllowCadence(lastTrade *time.Time, recent []time.Time, params *config.CadenceParams, now time.Time) bool {
	if params == nil {
		return true
	}

	if lastTrade != nil && params.MinIntervalMs > 0 {
		if now.Sub(*lastTrade) < time.Duration(params.MinIntervalMs)*time.Millisecond {
			return false
		}
	}

	if params.MaxPerSecond > 0 && countWithin(recent, now, secondWindow) >= params.MaxPerSecond {
		return false
	}
	if params.MaxPerMinute > 0 && countWithin(recent, now, minuteWindow) >= params.MaxPerMinute {
		return false
	}
	return true
}

// PruneCadence drops timestamps that can no longer influence any window.
func PruneCadence(recent []time.Time, now time.Time) []time.Time {
	cutoff := now.Add(-minuteWindow)
	idx := 0
	for i, ts := range recent {
		if ts.After(cutoff) {
			idx = i
			break
		}
		idx = i + 1
	}
	if idx > 0 && idx <= len(recent) {
		recent = recent[idx:]
	}
	return recent
}

func countWithin(recent []time.Time, now time.Time, window time.Duration) int {
	cutoff := now.Add(-window)
	n := 0
	for _, ts := range recent {
		if ts.After(cutoff) && !ts.After(now) {
			n++
		}
	}
	return n
}
