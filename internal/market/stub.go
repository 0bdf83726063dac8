package market

import (
	"context"
	"sync"
)

// StubSource serves scripted prices and market metadata. Offline runs and
// tests drive the engine with it.
type StubSource struct {
	mu      sync.Mutex
	prices  map[string]float64
	markets []Market
	trades  []ObservedTrade
}

// NewStubSource returns an empty scripted source.
func NewStubSource() *StubSource {
	return &StubSource{prices: make(map[string]float64)}
}

// SetPrice scripts the mid-price for an asset. A non-positive price removes it.
func (s *StubSource) SetPrice(asset string, px float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if px <= 0 {
		delete(s.prices, asset)
		return
	}
	s.prices[asset] = px
}

// SetMarkets replaces the scripted market list.
func (s *StubSource) SetMarkets(markets []Market) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.markets = append(s.markets[:0], markets...)
}

// AddObservedTrade queues one shadowed-trader fill.
func (s *StubSource) AddObservedTrade(t ObservedTrade) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trades = append(s.trades, t)
}

// MidPrice implements PriceSource.
func (s *StubSource) MidPrice(_ context.Context, asset string) (float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	px, ok := s.prices[asset]
	return px, ok
}

// ActiveMarkets implements MetadataSource.
func (s *StubSource) ActiveMarkets(context.Context) ([]Market, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Market, len(s.markets))
	copy(out, s.markets)
	return out, nil
}

// ObservedTrades implements TradeObserver, draining the queued fills.
func (s *StubSource) ObservedTrades(context.Context) ([]ObservedTrade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.trades
	s.trades = nil
	return out, nil
}
