// Package engine drives the per-market lifecycle: discovered markets build a
// two-sided position through randomized split trades, arbitrage the clear
// loser in the final pre-expiry window, settle after expiry, and return
// capital to the shared pool. One loop owns all mutable state; the mutex
// exists only because the status HTTP handlers read snapshots concurrently.
package engine

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/haqhal13/EDGEBOTPRO/internal/config"
	"github.com/haqhal13/EDGEBOTPRO/internal/feature"
	"github.com/haqhal13/EDGEBOTPRO/internal/journal"
	"github.com/haqhal13/EDGEBOTPRO/internal/market"
	"github.com/haqhal13/EDGEBOTPRO/internal/metrics"
	"github.com/haqhal13/EDGEBOTPRO/internal/risk"
	"github.com/haqhal13/EDGEBOTPRO/internal/signal"
)

// MarketSource supplies the tradable market universe and the shadowed
// trader's fills. *market.Discovery satisfies it.
type MarketSource interface {
	Markets() []market.Market
	DrainObserved() []market.ObservedTrade
}

// Engine owns capital, build states, and positions for every tracked market.
type Engine struct {
	log      zerolog.Logger
	cfg      config.Engine
	policies *config.PolicyStore
	prices   market.PriceSource
	source   MarketSource
	trades   journal.TradeSink
	settles  journal.SettlementSink

	rng       *rand.Rand
	clock     func() time.Time
	batchSize int
	limits    risk.Limits

	mu          sync.Mutex
	capital     float64
	builds      map[string]*BuildState
	positions   map[string]*Position
	tapes       map[string]*feature.Tape
	lastTick    map[string]signal.PriceTick
	cycleKeys   map[string]struct{}
	seenTrades  map[string]struct{}
	totalTrades int
	lastSweep   time.Time
	lastStatus  time.Time
}

// Option configures Engine construction.
type Option func(*Engine)

// WithClock injects a time source, used by tests to force determinism.
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) {
		if clock != nil {
			e.clock = clock
		}
	}
}

// WithRand injects the pseudo-random source used for gap and size draws.
func WithRand(rng *rand.Rand) Option {
	return func(e *Engine) {
		if rng != nil {
			e.rng = rng
		}
	}
}

// WithBatchSize bounds parallel price fetches per refresh.
func WithBatchSize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.batchSize = n
		}
	}
}

// New assembles an engine. trades and settles may be nil when no journaling
// is wanted (tests often pass an in-memory ledger).
func New(log zerolog.Logger, cfg config.Engine, policies *config.PolicyStore, prices market.PriceSource, source MarketSource, trades journal.TradeSink, settles journal.SettlementSink, opts ...Option) *Engine {
	seed := cfg.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	e := &Engine{
		log:        log,
		cfg:        cfg,
		policies:   policies,
		prices:     prices,
		source:     source,
		trades:     trades,
		settles:    settles,
		rng:        rand.New(rand.NewPCG(seed, seed>>1)),
		clock:      func() time.Time { return time.Now().UTC() },
		batchSize:  8,
		limits:     risk.Limits{MaxNotionalPerTrade: cfg.MaxTradeNotionalUSD},
		capital:    cfg.StartingCapital,
		builds:     make(map[string]*BuildState),
		positions:  make(map[string]*Position),
		tapes:      make(map[string]*feature.Tape),
		lastTick:   make(map[string]signal.PriceTick),
		cycleKeys:  make(map[string]struct{}),
		seenTrades: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	metrics.CapitalUSD.Set(e.capital)
	return e
}

// Run drives the loop until the context is canceled or an invariant breaks.
func (e *Engine) Run(ctx context.Context) error {
	interval := time.Duration(e.cfg.LoopIntervalMs) * time.Millisecond
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := e.Step(ctx); err != nil {
				return err
			}
		}
	}
}

// Step runs one full iteration: discovery, price refresh, per-market policy
// evaluation, settlement, sweep, and status, in that fixed order. Every
// tracked market is evaluated at most once per call.
func (e *Engine) Step(ctx context.Context) error {
	now := e.clock()
	markets := e.source.Markets()
	e.noteObserved(e.source.DrainObserved())

	ticks := market.FetchTicks(ctx, e.prices, markets, e.batchSize, now, e.log)

	e.mu.Lock()
	defer e.mu.Unlock()

	for id, tick := range ticks {
		e.lastTick[id] = tick
		tape, ok := e.tapes[id]
		if !ok {
			tape = &feature.Tape{}
			e.tapes[id] = tape
		}
		tape.Add(tick)
	}

	for _, m := range markets {
		if err := e.processMarket(m, now); err != nil {
			return err
		}
	}

	e.settleExpired(ctx, now)
	e.purgeSettled(now)

	if e.lastSweep.IsZero() || now.Sub(e.lastSweep) >= time.Duration(e.cfg.SweepIntervalSecs)*time.Second {
		e.sweep(markets, now)
		e.lastSweep = now
	}
	if e.lastStatus.IsZero() || now.Sub(e.lastStatus) >= time.Duration(e.cfg.StatusIntervalSecs)*time.Second {
		e.logStatus()
		e.lastStatus = now
	}

	metrics.CapitalUSD.Set(e.capital)
	metrics.BuildingMarkets.Set(float64(len(e.builds)))
	metrics.OpenPositions.Set(float64(len(e.positions)))
	return nil
}

// processMarket advances one market through its lifecycle. Exactly one
// BuildState or one Position may be authoritative for a market; both at once
// is a broken invariant and aborts the loop.
func (e *Engine) processMarket(m market.Market, now time.Time) error {
	build, building := e.builds[m.ID]
	pos, positioned := e.positions[m.ID]
	if building && positioned {
		return fmt.Errorf("market %s has both a build state and a position", m.ID)
	}

	tick, hasTick := e.lastTick[m.ID]

	if positioned {
		if !pos.Settled && hasTick {
			e.maybeArbitrage(pos, tick, now)
		}
		return nil
	}

	if !building {
		// Discovered -> Building once assets and valid prices exist. An
		// already-expired market never opens a build; a stale discovery
		// snapshot would otherwise re-create and re-settle it every cycle.
		if hasTick && !m.Expired(now) && tick.Up > 0 && tick.Down > 0 && m.UpAsset != "" && m.DownAsset != "" {
			e.builds[m.ID] = e.newBuildState(m, tick, now)
			e.log.Info().Str("market", m.ID).Time("expiry", m.Expiry).Msg("building position")
		}
		return nil
	}

	if !m.Expiry.IsZero() && m.Expiry.Sub(now) <= time.Duration(e.cfg.FinalizeWindowSecs)*time.Second {
		e.finalize(build)
		return nil
	}

	if hasTick {
		e.buildTick(build, tick, now)
	}
	return nil
}

// noteObserved dedupes externally observed trader fills by (trader, txid).
// They serve discovery only; a repeat fill is dropped silently.
func (e *Engine) noteObserved(trades []market.ObservedTrade) {
	if len(trades) == 0 {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, t := range trades {
		key := t.Trader + "|" + t.TxID
		if _, seen := e.seenTrades[key]; seen {
			continue
		}
		e.seenTrades[key] = struct{}{}
		e.log.Debug().Str("market", t.Market).Str("side", string(t.Side)).Msg("observed trader fill")
	}
}

// sweep returns reserved capital from builds and positions whose market has
// disappeared or sat expired beyond the grace period.
func (e *Engine) sweep(markets []market.Market, now time.Time) {
	grace := time.Duration(e.cfg.OrphanGraceSecs) * time.Second
	known := make(map[string]struct{}, len(markets))
	for _, m := range markets {
		known[m.ID] = struct{}{}
	}

	orphaned := func(id string, expiry time.Time) bool {
		if _, ok := known[id]; !ok {
			return true
		}
		return !expiry.IsZero() && now.Sub(expiry) > grace
	}

	for id, b := range e.builds {
		if !orphaned(id, b.Market.Expiry) {
			continue
		}
		refund := b.InvestedUp + b.InvestedDown
		e.capital += refund
		delete(e.builds, id)
		e.log.Warn().Str("market", id).Float64("refund", refund).Msg("swept orphaned build")
	}
	for id, p := range e.positions {
		if p.Settled || !orphaned(id, p.Market.Expiry) {
			continue
		}
		refund := p.TotalCost()
		e.capital += refund
		delete(e.positions, id)
		e.log.Warn().Str("market", id).Float64("refund", refund).Msg("swept orphaned position")
	}
}

func (e *Engine) logStatus() {
	e.log.Info().
		Float64("capital", e.capital).
		Int("building", len(e.builds)).
		Int("positions", len(e.positions)).
		Int("trades", e.totalTrades).
		Msg("engine status")
}

// Status returns the snapshot served on /status.
func (e *Engine) Status() signal.StatusSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return signal.StatusSnapshot{
		Capital:     e.capital,
		Building:    len(e.builds),
		Positions:   len(e.positions),
		TotalTrades: e.totalTrades,
		Ts:          e.clock(),
	}
}

// Positions returns the per-market detail served on /positions.
func (e *Engine) Positions() any {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]PositionView, 0, len(e.positions))
	for _, p := range e.positions {
		out = append(out, p.View())
	}
	return out
}

// Capital reports the free capital pool.
func (e *Engine) Capital() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.capital
}

func (e *Engine) emitTrade(ev signal.TradeEvent) {
	e.totalTrades++
	metrics.TradesTotal.WithLabelValues(ev.Market, string(ev.Side), ev.Action).Inc()
	if e.trades != nil {
		e.trades.RecordTrade(ev)
	}
}

func (e *Engine) emitSettlement(ev signal.SettlementEvent) {
	metrics.SettlementsTotal.WithLabelValues(ev.Market, string(ev.Winner)).Inc()
	if e.settles != nil {
		e.settles.RecordSettlement(ev)
	}
}
