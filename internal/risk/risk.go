// Package risk holds the guard-rails applied between an entry signal and an
// executed trade: notional limits, inventory caps with skew correction, and
// trade-cadence throttling.
package risk

type Limits struct {
	MaxNotionalPerTrade float64
}

func (l Limits) Allow(notional float64) bool {
	if l.MaxNotionalPerTrade <= 0 {
		return true
	}
	return notional <= l.MaxNotionalPerTrade
}
