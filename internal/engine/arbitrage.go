package engine

import (
	"fmt"
	"time"

	"github.com/haqhal13/EDGEBOTPRO/internal/signal"
)

// maybeArbitrage inspects a finalized position inside the pre-expiry window
// and buys the clearly losing side when the book shows a decided outcome. A
// market with no clear winner is left alone: that null result is policy, not
// a failure. The cycle key caps the attempt at one per market per
// expiry-minute bucket even if the window is evaluated twice in one tick.
func (e *Engine) maybeArbitrage(pos *Position, tick signal.PriceTick, now time.Time) {
	if pos.Arbitraged || pos.Market.Expiry.IsZero() {
		return
	}
	untilExpiry := pos.Market.Expiry.Sub(now)
	low := time.Duration(e.cfg.ArbWindowLowSecs) * time.Second
	high := time.Duration(e.cfg.FinalizeWindowSecs) * time.Second
	if untilExpiry < low || untilExpiry > high {
		return
	}

	winner, loser, clear := clearWinner(tick, e.cfg.ClearWinnerPrice, e.cfg.LoserBandHigh)
	if !clear {
		return
	}

	key := cycleKey(pos.Market.ID, pos.Market.Expiry)
	if _, done := e.cycleKeys[key]; done {
		return
	}
	e.cycleKeys[key] = struct{}{}

	spend := e.cfg.ArbCapitalFraction * e.capital
	if spend > e.cfg.ArbMaxSpendUSD {
		spend = e.cfg.ArbMaxSpendUSD
	}
	loserPrice := tick.SidePrice(loser)
	if spend <= 0 || loserPrice <= 0 {
		return
	}
	shares := spend / loserPrice
	cost := shares * loserPrice

	pos.Arbitraged = true
	pos.ArbSide = loser
	pos.ArbShares = shares
	pos.ArbCost = cost
	e.capital -= cost

	e.emitTrade(signal.TradeEvent{
		Market: pos.Market.ID,
		Side:   loser,
		Action: "arbitrage",
		Shares: shares,
		Cost:   cost,
		Price:  loserPrice,
		Ts:     now,
	})
	e.log.Info().
		Str("market", pos.Market.ID).
		Str("winner", string(winner)).
		Str("bought", string(loser)).
		Float64("shares", shares).
		Float64("price", loserPrice).
		Msg("arbitrage purchase")
}

// clearWinner reports a decided market: one side at or above the winner
// threshold while the other sits in a thin, non-zero low band.
func clearWinner(tick signal.PriceTick, winnerMin, loserMax float64) (winner, loser signal.Side, ok bool) {
	if tick.Up >= winnerMin && tick.Down > 0 && tick.Down <= loserMax {
		return signal.Up, signal.Down, true
	}
	if tick.Down >= winnerMin && tick.Up > 0 && tick.Up <= loserMax {
		return signal.Down, signal.Up, true
	}
	return "", "", false
}

func cycleKey(marketID string, expiry time.Time) string {
	return fmt.Sprintf("%s|%d", marketID, expiry.Unix()/60)
}
