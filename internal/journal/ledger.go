package journal

import (
	"sync"

	"github.com/haqhal13/EDGEBOTPRO/internal/signal"
)

// Ledger stores trade events in memory for quick inspection.
type Ledger struct {
	mu     sync.Mutex
	trades []signal.TradeEvent
}

// NewLedger creates an empty ledger optionally pre-sizing storage.
func NewLedger(capacity int) *Ledger {
	if capacity < 0 {
		capacity = 0
	}
	return &Ledger{trades: make([]signal.TradeEvent, 0, capacity)}
}

// RecordTrade appends a trade to the ledger.
func (l *Ledger) RecordTrade(ev signal.TradeEvent) {
	l.mu.Lock()
	l.trades = append(l.trades, ev)
	l.mu.Unlock()
}

// Snapshot returns a copy of the recorded trades.
func (l *Ledger) Snapshot() []signal.TradeEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]signal.TradeEvent, len(l.trades))
	copy(out, l.trades)
	return out
}

// Len reports how many trades have been recorded.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.trades)
}

// Reset clears all stored trades.
func (l *Ledger) Reset() {
	l.mu.Lock()
	l.trades = l.trades[:0]
	l.mu.Unlock()
}

// Fanout duplicates trade events to multiple sinks.
type Fanout []TradeSink

// RecordTrade forwards the event to every sink.
func (f Fanout) RecordTrade(ev signal.TradeEvent) {
	for _, sink := range f {
		sink.RecordTrade(ev)
	}
}
