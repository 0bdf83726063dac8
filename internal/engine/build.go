package engine

import (
	"time"

	"github.com/haqhal13/EDGEBOTPRO/internal/config"
	"github.com/haqhal13/EDGEBOTPRO/internal/feature"
	"github.com/haqhal13/EDGEBOTPRO/internal/market"
	"github.com/haqhal13/EDGEBOTPRO/internal/risk"
	"github.com/haqhal13/EDGEBOTPRO/internal/signal"
	"github.com/haqhal13/EDGEBOTPRO/internal/strategy"
)

// Build-phase policy constants. These replicate the observed trader's split
// behavior and are deliberately not per-market configuration.
const (
	bothSidesProbability = 0.35
	biasCheckInterval    = 30 * time.Second
	biasMinDrift         = 0.02
	biasFullDrift        = 0.10 // drift at which the bias saturates
	catchUpLagThreshold  = 0.05 // progress gap that triggers catch-up
	catchUpBias          = 0.75
	targetGrowthTrigger  = 0.98
	targetGrowthFactor   = 1.10
	minTradeShares       = 1.0
	entrySideShift       = 0.15
	biasShift            = 0.25
	sizeJitterLow        = 0.9
	sizeJitterSpan       = 0.2
)

// shareOptions is the discrete share-count menu with draw weights. Sizes are
// always drawn in shares, never derived from a dollar amount.
var shareOptions = []struct {
	shares float64
	weight float64
}{
	{5, 30},
	{10, 25},
	{15, 18},
	{20, 12},
	{25, 10},
	{50, 5},
}

// gapTiers is the inter-trade gap distribution, skewed toward short gaps.
var gapTiers = []struct {
	low, high time.Duration
	prob      float64
}{
	{2 * time.Second, 5 * time.Second, 0.55},
	{5 * time.Second, 10 * time.Second, 0.25},
	{10 * time.Second, 30 * time.Second, 0.15},
	{30 * time.Second, 60 * time.Second, 0.05},
}

// BuildState accumulates a two-sided position before the finalize window.
type BuildState struct {
	Market market.Market

	StartUp   float64 // side prices recorded when the build opened
	StartDown float64

	TargetUp   float64 // dollar targets per side
	TargetDown float64

	InvestedUp   float64
	InvestedDown float64
	SharesUp     float64
	SharesDown   float64
	AvgPriceUp   float64 // volume-weighted fill price
	AvgPriceDown float64

	Bias          float64 // in [-1, 1]; positive favors UP
	BiasCheckedAt time.Time
	NextEligible  time.Time
	LastTrade     *time.Time
	Recent        []time.Time
	StartedAt     time.Time
}

func (e *Engine) newBuildState(m market.Market, tick signal.PriceTick, now time.Time) *BuildState {
	half := e.cfg.BuildBudgetUSD / 2
	return &BuildState{
		Market:        m,
		StartUp:       tick.Up,
		StartDown:     tick.Down,
		TargetUp:      half,
		TargetDown:    half,
		BiasCheckedAt: now,
		NextEligible:  now,
		StartedAt:     now,
	}
}

// buildTick runs one eligible-trade attempt for a building market.
func (e *Engine) buildTick(b *BuildState, tick signal.PriceTick, now time.Time) {
	if now.Before(b.NextEligible) {
		return
	}

	params := e.policies.ForMarket(b.Market.Category)

	if now.Sub(b.BiasCheckedAt) >= biasCheckInterval {
		b.recomputeBias(tick)
		b.BiasCheckedAt = now
	}

	var history []signal.PriceTick
	if tape := e.tapes[b.Market.ID]; tape != nil {
		history = tape.History()
	}
	vector := feature.Compute(tick, history)
	decision := strategy.Evaluate(tick, vector, params.Entry)
	if !decision.Trade {
		return
	}

	b.Recent = risk.PruneCadence(b.Recent, now)
	if !risk.AllowCadence(b.LastTrade, b.Recent, params.Cadence, now) {
		return
	}

	sides := e.chooseSides(b, decision.Side)
	orders := make([]order, 0, 2)
	for _, side := range sides {
		resolved, ok := risk.Rebalance(b.SharesUp, b.SharesDown, side, params.Inventory)
		if !ok {
			continue
		}
		price := tick.SidePrice(resolved)
		if price <= 0 {
			continue
		}
		shares := e.drawShares(price, params.Size)
		shares = capByTarget(shares, price, b.remainingTarget(resolved))
		if shares < minTradeShares {
			continue
		}
		if !e.limits.Allow(shares * price) {
			continue
		}
		orders = append(orders, order{side: resolved, shares: shares, price: price})
	}
	orders = e.capByCapital(orders)

	executed := false
	for _, o := range orders {
		cost := o.shares * o.price
		b.apply(o.side, o.shares, cost)
		e.capital -= cost
		executed = true

		ev := signal.TradeEvent{
			Market: b.Market.ID,
			Side:   o.side,
			Action: "build",
			Shares: o.shares,
			Cost:   cost,
			Price:  o.price,
			Ts:     now,
		}
		e.emitTrade(ev)
		e.log.Debug().
			Str("market", b.Market.ID).
			Str("side", string(o.side)).
			Str("reason", decision.Reason).
			Float64("shares", o.shares).
			Float64("price", o.price).
			Msg("build trade")

		b.Recent = append(b.Recent, now)
	}
	if !executed {
		return
	}

	ts := now
	b.LastTrade = &ts
	b.NextEligible = now.Add(e.drawGap())
	b.growTargetsIfNearlyFull()
}

type order struct {
	side   signal.Side
	shares float64
	price  float64
}

// recomputeBias compares current prices to the build-open prices. Bias only
// moves once the drift clears the minimum threshold, and saturates at +/-1.
func (b *BuildState) recomputeBias(tick signal.PriceTick) {
	drift := tick.Up - b.StartUp
	if drift < biasMinDrift && drift > -biasMinDrift {
		b.Bias = 0
		return
	}
	bias := drift / biasFullDrift
	if bias > 1 {
		bias = 1
	}
	if bias < -1 {
		bias = -1
	}
	b.Bias = bias
}

// chooseSides picks the side(s) for this attempt: both sides with a fixed
// probability, otherwise a single side drawn with a probability shaped by the
// entry decision, the momentum bias, and catch-up toward the lagging side.
func (e *Engine) chooseSides(b *BuildState, entrySide signal.Side) []signal.Side {
	if e.rng.Float64() < bothSidesProbability {
		return []signal.Side{signal.Up, signal.Down}
	}

	pUp := 0.5
	if entrySide == signal.Up {
		pUp += entrySideShift
	} else {
		pUp -= entrySideShift
	}
	pUp += b.Bias * biasShift

	progressUp := progress(b.InvestedUp, b.TargetUp)
	progressDown := progress(b.InvestedDown, b.TargetDown)
	if progressDown-progressUp >= catchUpLagThreshold {
		pUp = catchUpBias
	} else if progressUp-progressDown >= catchUpLagThreshold {
		pUp = 1 - catchUpBias
	}

	if pUp < 0.05 {
		pUp = 0.05
	}
	if pUp > 0.95 {
		pUp = 0.95
	}
	if e.rng.Float64() < pUp {
		return []signal.Side{signal.Up}
	}
	return []signal.Side{signal.Down}
}

// drawShares sizes one order. The inferred sizing table wins when present;
// otherwise the weighted share-count menu is drawn. Both get jitter.
func (e *Engine) drawShares(price float64, sizeParams *config.SizeParams) float64 {
	var shares float64
	if sizeParams != nil && len(sizeParams.Table) > 0 {
		shares = strategy.Size(price, sizeParams)
	} else {
		shares = e.drawShareOption()
	}
	jitter := sizeJitterLow + e.rng.Float64()*sizeJitterSpan
	return shares * jitter
}

func (e *Engine) drawShareOption() float64 {
	var total float64
	for _, opt := range shareOptions {
		total += opt.weight
	}
	roll := e.rng.Float64() * total
	for _, opt := range shareOptions {
		roll -= opt.weight
		if roll < 0 {
			return opt.shares
		}
	}
	return shareOptions[len(shareOptions)-1].shares
}

func (e *Engine) drawGap() time.Duration {
	roll := e.rng.Float64()
	for _, tier := range gapTiers {
		if roll < tier.prob {
			span := tier.high - tier.low
			return tier.low + time.Duration(e.rng.Float64()*float64(span))
		}
		roll -= tier.prob
	}
	last := gapTiers[len(gapTiers)-1]
	return last.low + time.Duration(e.rng.Float64()*float64(last.high-last.low))
}

// capByCapital scales all orders down proportionally when their combined cost
// exceeds free capital. Orders that fall below the share floor are dropped.
func (e *Engine) capByCapital(orders []order) []order {
	var combined float64
	for _, o := range orders {
		combined += o.shares * o.price
	}
	if combined <= e.capital || combined == 0 {
		return orders
	}
	if e.capital <= 0 {
		return nil
	}
	scale := e.capital / combined
	kept := orders[:0]
	for _, o := range orders {
		o.shares *= scale
		if o.shares < minTradeShares {
			continue
		}
		kept = append(kept, o)
	}
	return kept
}

func capByTarget(shares, price, remaining float64) float64 {
	if remaining <= 0 {
		return 0
	}
	if cost := shares * price; cost > remaining {
		return remaining / price
	}
	return shares
}

func (b *BuildState) remainingTarget(s signal.Side) float64 {
	if s == signal.Up {
		return b.TargetUp - b.InvestedUp
	}
	return b.TargetDown - b.InvestedDown
}

func (b *BuildState) apply(s signal.Side, shares, cost float64) {
	if s == signal.Up {
		b.InvestedUp += cost
		b.SharesUp += shares
		b.AvgPriceUp = b.InvestedUp / b.SharesUp
	} else {
		b.InvestedDown += cost
		b.SharesDown += shares
		b.AvgPriceDown = b.InvestedDown / b.SharesDown
	}
}

// growTargetsIfNearlyFull lifts both targets once both sides sit at or above
// the growth trigger, so building continues until the finalize window.
func (b *BuildState) growTargetsIfNearlyFull() {
	if b.TargetUp <= 0 || b.TargetDown <= 0 {
		return
	}
	if b.InvestedUp >= targetGrowthTrigger*b.TargetUp && b.InvestedDown >= targetGrowthTrigger*b.TargetDown {
		b.TargetUp *= targetGrowthFactor
		b.TargetDown *= targetGrowthFactor
	}
}

func progress(invested, target float64) float64 {
	if target <= 0 {
		return 1
	}
	return invested / target
}

// finalize converts a BuildState into a Position: shares per side derive from
// invested dollars over the volume-weighted fill price.
func (e *Engine) finalize(b *BuildState) {
	pos := &Position{
		Market:   b.Market,
		CostUp:   b.InvestedUp,
		CostDown: b.InvestedDown,
	}
	if b.AvgPriceUp > 0 {
		pos.SharesUp = b.InvestedUp / b.AvgPriceUp
	}
	if b.AvgPriceDown > 0 {
		pos.SharesDown = b.InvestedDown / b.AvgPriceDown
	}
	delete(e.builds, b.Market.ID)
	e.positions[b.Market.ID] = pos
	e.log.Info().
		Str("market", b.Market.ID).
		Float64("shares_up", pos.SharesUp).
		Float64("shares_down", pos.SharesDown).
		Float64("cost", pos.TotalCost()).
		Msg("finalized position")
}
