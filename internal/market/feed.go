package market

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/haqhal13/EDGEBOTPRO/internal/metrics"
	"github.com/haqhal13/EDGEBOTPRO/internal/signal"
)

const (
	// ProviderStub emits deterministic synthetic ticks (useful for tests/offline work).
	ProviderStub = "stub"
	// ProviderWS streams ticks from a venue websocket.
	ProviderWS = "ws"
	// ProviderHTTP polls the venue's REST API for mid-prices.
	ProviderHTTP = "http"
)

// Feed represents a pluggable price-tick stream implementation.
type Feed struct {
	provider     string
	log          zerolog.Logger
	wsURL        string
	baseURL      string
	pollInterval time.Duration
	batchSize    int
	markets      []Market
	mu           sync.RWMutex
}

// Option configures Feed construction parameters.
type Option func(*Feed)

const defaultPollInterval = time.Second

// WithPollInterval overrides the default polling cadence for the HTTP provider.
func WithPollInterval(d time.Duration) Option {
	return func(f *Feed) {
		if d > 0 {
			f.pollInterval = d
		}
	}
}

// WithWSURL sets the websocket endpoint for the ws provider.
func WithWSURL(url string) Option {
	return func(f *Feed) { f.wsURL = url }
}

// WithBaseURL sets the REST endpoint for the http provider.
func WithBaseURL(url string) Option {
	return func(f *Feed) { f.baseURL = strings.TrimSuffix(url, "/") }
}

// WithBatchSize bounds parallel fetches for the http provider.
func WithBatchSize(n int) Option {
	return func(f *Feed) {
		if n > 0 {
			f.batchSize = n
		}
	}
}

// NewFeed constructs a feed backed by the requested provider.
func NewFeed(provider string, log zerolog.Logger, opts ...Option) *Feed {
	if provider == "" {
		provider = ProviderStub
	}
	f := &Feed{
		provider:     strings.ToLower(provider),
		log:          log,
		pollInterval: defaultPollInterval,
		batchSize:    8,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// SetMarkets replaces the tracked market list (deduplicated by ID, sorted).
func (f *Feed) SetMarkets(markets []Market) {
	f.mu.Lock()
	defer f.mu.Unlock()
	unique := make(map[string]Market, len(markets))
	for _, m := range markets {
		if m.ID == "" {
			continue
		}
		unique[m.ID] = m
	}
	f.markets = f.markets[:0]
	for _, m := range unique {
		f.markets = append(f.markets, m)
	}
	sort.Slice(f.markets, func(i, j int) bool { return f.markets[i].ID < f.markets[j].ID })
}

func (f *Feed) snapshotMarkets() []Market {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]Market, len(f.markets))
	copy(out, f.markets)
	return out
}

// Run pushes ticks onto the provided channel until the context is canceled.
func (f *Feed) Run(ctx context.Context, out chan<- signal.PriceTick) error {
	switch f.provider {
	case ProviderWS:
		return f.runWS(ctx, out)
	case ProviderHTTP:
		return f.runHTTP(ctx, out)
	default:
		return f.runStub(ctx, out)
	}
}

// runStub drifts each market's UP price upward a touch per tick so builds,
// arbitrage, and settlement all get exercised without a venue.
func (f *Feed) runStub(ctx context.Context, out chan<- signal.PriceTick) error {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	drift := make(map[string]float64)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ts := <-ticker.C:
			for _, m := range f.snapshotMarkets() {
				up := 0.50 + drift[m.ID]
				if up > 0.97 {
					up = 0.97
				}
				drift[m.ID] += 0.002
				tick := signal.PriceTick{Market: m.ID, Up: up, Down: 1 - up, Ts: ts}
				select {
				case out <- tick:
					metrics.TicksTotal.WithLabelValues(m.ID).Inc()
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		}
	}
}
