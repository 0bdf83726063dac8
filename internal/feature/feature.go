// Package feature converts a price-tape history into the fixed feature vector
// consumed by the entry policy.
package feature

import (
	"math"
	"sort"
	"time"

	"github.com/haqhal13/EDGEBOTPRO/internal/signal"
)

// Retention bounds how much tape history is kept; twice the largest delta
// window is the most any feature can reach back.
const Retention = 60 * time.Second

// Vector is the feature set for one tick. Optional features are nil, never
// zero, when the history cannot support them; callers must treat nil and 0
// as distinct.
type Vector struct {
	DistFromParity float64

	// Per-side deltas over the lookback windows.
	DeltaUp1s    *float64
	DeltaUp5s    *float64
	DeltaUp30s   *float64
	DeltaDown1s  *float64
	DeltaDown5s  *float64
	DeltaDown30s *float64

	// Side deltas alias the UP-side deltas regardless of which side is being
	// evaluated; this mirrors the observed policy and is intentional. Callers
	// needing a DOWN figure read the Down-named fields directly.
	DeltaSide1s  *float64
	DeltaSide5s  *float64
	DeltaSide30s *float64

	Vol5s  *float64
	Vol30s *float64
}

var deltaWindows = []time.Duration{time.Second, 5 * time.Second, 30 * time.Second}
var volWindows = []time.Duration{5 * time.Second, 30 * time.Second}

// Compute derives the feature vector for tick against history. The history
// may arrive unordered; it is sorted ascending by timestamp first. The tick
// itself is not required to be part of history.
func Compute(tick signal.PriceTick, history []signal.PriceTick) Vector {
	v := Vector{DistFromParity: math.Abs(tick.Up - 0.5)}

	sorted := make([]signal.PriceTick, len(history))
	copy(sorted, history)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Ts.Before(sorted[j].Ts) })

	now := tick.Ts
	for _, w := range deltaWindows {
		ref, ok := nearest(sorted, now.Add(-w), 2*w)
		if !ok {
			continue
		}
		up := tick.Up - ref.Up
		down := tick.Down - ref.Down
		switch w {
		case time.Second:
			v.DeltaUp1s, v.DeltaDown1s, v.DeltaSide1s = &up, &down, &up
		case 5 * time.Second:
			v.DeltaUp5s, v.DeltaDown5s, v.DeltaSide5s = &up, &down, &up
		case 30 * time.Second:
			v.DeltaUp30s, v.DeltaDown30s, v.DeltaSide30s = &up, &down, &up
		}
	}

	for _, w := range volWindows {
		vol, ok := volatility(sorted, now, w)
		if !ok {
			continue
		}
		switch w {
		case 5 * time.Second:
			v.Vol5s = &vol
		case 30 * time.Second:
			v.Vol30s = &vol
		}
	}

	return v
}

// nearest returns the sample whose timestamp is closest to target, accepted
// only when it lies within maxDist of the target.
func nearest(sorted []signal.PriceTick, target time.Time, maxDist time.Duration) (signal.PriceTick, bool) {
	if len(sorted) == 0 {
		return signal.PriceTick{}, false
	}
	idx := sort.Search(len(sorted), func(i int) bool { return !sorted[i].Ts.Before(target) })
	best := -1
	var bestDist time.Duration
	for _, i := range []int{idx - 1, idx} {
		if i < 0 || i >= len(sorted) {
			continue
		}
		d := absDuration(sorted[i].Ts.Sub(target))
		if best == -1 || d < bestDist {
			best, bestDist = i, d
		}
	}
	if best == -1 || bestDist >= maxDist {
		return signal.PriceTick{}, false
	}
	return sorted[best], true
}

// volatility is the population standard deviation of the UP-side price over
// samples in [now-w, now]; it requires at least two samples.
func volatility(sorted []signal.PriceTick, now time.Time, w time.Duration) (float64, bool) {
	lo := now.Add(-w)
	var xs []float64
	for _, s := range sorted {
		if s.Ts.Before(lo) || s.Ts.After(now) {
			continue
		}
		xs = append(xs, s.Up)
	}
	if len(xs) < 2 {
		return 0, false
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	mean := sum / float64(len(xs))
	var sq float64
	for _, x := range xs {
		sq += (x - mean) * (x - mean)
	}
	return math.Sqrt(sq / float64(len(xs))), true
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

// Tape accumulates ticks for one market and prunes entries older than the
// feature retention horizon.
type Tape struct {
	ticks []signal.PriceTick
}

// Add appends a tick and drops anything beyond the retention window.
func (t *Tape) Add(tick signal.PriceTick) {
	t.ticks = append(t.ticks, tick)
	cutoff := tick.Ts.Add(-Retention)
	idx := 0
	for i, existing := range t.ticks {
		if existing.Ts.After(cutoff) {
			idx = i
			break
		}
		idx = i + 1
	}
	if idx > 0 && idx <= len(t.ticks) {
		t.ticks = t.ticks[idx:]
	}
}

// History returns the retained ticks, oldest first.
func (t *Tape) History() []signal.PriceTick {
	return t.ticks
}

// Len reports the number of retained ticks.
func (t *Tape) Len() int { return len(t.ticks) }
