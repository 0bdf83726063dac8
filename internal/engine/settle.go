package engine

import (
	"context"
	"time"

	"github.com/haqhal13/EDGEBOTPRO/internal/market"
	"github.com/haqhal13/EDGEBOTPRO/internal/signal"
)

// staleTickAge is how old a book snapshot may be before settlement refreshes
// both side prices directly from the price source.
const staleTickAge = 30 * time.Second

// Position is the finalized holding awaiting expiry and settlement.
type Position struct {
	Market market.Market

	SharesUp   float64
	SharesDown float64
	CostUp     float64
	CostDown   float64

	Arbitraged bool
	ArbSide    signal.Side
	ArbShares  float64
	ArbCost    float64

	Settled   bool
	SettledAt time.Time
	Winner    signal.Side
	Value     float64
	PnL       float64
}

// TotalCost sums build-phase and arbitrage-phase spend.
func (p *Position) TotalCost() float64 {
	return p.CostUp + p.CostDown + p.ArbCost
}

// winningShares combines split-phase and arbitrage-phase holdings on a side.
func (p *Position) winningShares(s signal.Side) float64 {
	shares := p.SharesDown
	if s == signal.Up {
		shares = p.SharesUp
	}
	if p.Arbitraged && p.ArbSide == s {
		shares += p.ArbShares
	}
	return shares
}

// PositionView is the JSON shape served on /positions.
type PositionView struct {
	Market     string      `json:"market"`
	Category   string      `json:"category"`
	Expiry     time.Time   `json:"expiry"`
	SharesUp   float64     `json:"shares_up"`
	SharesDown float64     `json:"shares_down"`
	Cost       float64     `json:"cost"`
	Arbitraged bool        `json:"arbitraged"`
	Settled    bool        `json:"settled"`
	Winner     signal.Side `json:"winner,omitempty"`
	PnL        float64     `json:"pnl"`
}

// View renders the position for the status API.
func (p *Position) View() PositionView {
	return PositionView{
		Market:     p.Market.ID,
		Category:   p.Market.Category,
		Expiry:     p.Market.Expiry,
		SharesUp:   p.SharesUp,
		SharesDown: p.SharesDown,
		Cost:       p.TotalCost(),
		Arbitraged: p.Arbitraged,
		Settled:    p.Settled,
		Winner:     p.Winner,
		PnL:        p.PnL,
	}
}

// settleExpired resolves every position whose market has expired. Settlement
// is idempotent: the Settled flag guards capital and P&L from double credit.
func (e *Engine) settleExpired(ctx context.Context, now time.Time) {
	for _, p := range e.positions {
		if p.Settled || p.Market.Expiry.IsZero() || now.Before(p.Market.Expiry) {
			continue
		}
		tick := e.settlementTick(ctx, p.Market, now)
		e.settle(p, tick, now)
	}
}

// settlementTick prefers the cached book but refreshes both sides when the
// cache is stale, since expiry may land between refresh cycles.
func (e *Engine) settlementTick(ctx context.Context, m market.Market, now time.Time) signal.PriceTick {
	tick, ok := e.lastTick[m.ID]
	if ok && now.Sub(tick.Ts) <= staleTickAge {
		return tick
	}
	up, okUp := e.prices.MidPrice(ctx, m.UpAsset)
	down, okDown := e.prices.MidPrice(ctx, m.DownAsset)
	if okUp && okDown {
		fresh := signal.PriceTick{Market: m.ID, Up: up, Down: down, Ts: now}
		e.lastTick[m.ID] = fresh
		return fresh
	}
	return tick
}

// settle realizes the outcome: the side whose terminal price clears the
// winner threshold pays $1 per share; an unresolved book returns full cost.
func (e *Engine) settle(p *Position, tick signal.PriceTick, now time.Time) {
	if p.Settled {
		return
	}

	cost := p.TotalCost()
	var winner signal.Side
	var value float64
	switch {
	case tick.Up >= e.cfg.ClearWinnerPrice:
		winner = signal.Up
		value = p.winningShares(signal.Up)
	case tick.Down >= e.cfg.ClearWinnerPrice:
		winner = signal.Down
		value = p.winningShares(signal.Down)
	default:
		// No side clearly resolved: hand the full cost back, zero P&L.
		value = cost
	}

	p.Settled = true
	p.SettledAt = now
	p.Winner = winner
	p.Value = value
	p.PnL = value - cost
	e.capital += value

	e.emitSettlement(signal.SettlementEvent{
		Market: p.Market.ID,
		Winner: winner,
		Cost:   cost,
		Value:  value,
		PnL:    p.PnL,
		Ts:     now,
	})
	e.log.Info().
		Str("market", p.Market.ID).
		Str("winner", string(winner)).
		Float64("cost", cost).
		Float64("value", value).
		Float64("pnl", p.PnL).
		Msg("settled position")
}

// purgeSettled removes settled positions once the delay has passed, leaving a
// window for any final status read to observe the settled flag.
func (e *Engine) purgeSettled(now time.Time) {
	delay := time.Duration(e.cfg.PurgeDelaySecs) * time.Second
	for id, p := range e.positions {
		if p.Settled && now.Sub(p.SettledAt) >= delay {
			delete(e.positions, id)
			delete(e.lastTick, id)
			delete(e.tapes, id)
		}
	}
}
