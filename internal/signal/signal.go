// Package signal standardizes payloads shared between data ingestion, policy, and accounting layers.
package signal

import (
	"fmt"
	"time"
)

// Side identifies one of the two outcomes of a binary market.
type Side string

const (
	// Up is the outcome priced as the probability the underlying rises.
	Up Side = "UP"
	// Down is the complementary outcome.
	Down Side = "DOWN"
)

// Opposite returns the other side of the market.
func (s Side) Opposite() Side {
	if s == Up {
		return Down
	}
	return Up
}

// PriceTick carries one observation of both side prices for a market.
// Prices are probabilities; Up+Down is expected to sit near 1.0.
type PriceTick struct {
	Market string
	Up     float64
	Down   float64
	Ts     time.Time
}

// SidePrice returns the price of the requested side.
func (t PriceTick) SidePrice(s Side) float64 {
	if s == Up {
		return t.Up
	}
	return t.Down
}

// TradeEvent is emitted on every executed trade, build phase or arbitrage phase.
type TradeEvent struct {
	Market string    `json:"market"`
	Side   Side      `json:"side"`
	Action string    `json:"action"` // "build" or "arbitrage"
	Shares float64   `json:"shares"`
	Cost   float64   `json:"cost"`
	Price  float64   `json:"price"`
	Ts     time.Time `json:"ts"`
	Note   string    `json:"note,omitempty"`
}

// FormatNote renders the event in the observed bot's tape format, e.g.
// "WATCH: UP 12.5000 shares @ $0.2300".
func (e TradeEvent) FormatNote(bot string) string {
	return fmt.Sprintf("%s: %s %.4f shares @ $%.4f", bot, e.Side, e.Shares, e.Price)
}

// SettlementEvent is emitted once when a position resolves.
type SettlementEvent struct {
	Market string    `json:"market"`
	Winner Side      `json:"winner,omitempty"` // empty when no side clearly resolved
	Cost   float64   `json:"cost"`
	Value  float64   `json:"value"`
	PnL    float64   `json:"pnl"`
	Ts     time.Time `json:"ts"`
}

// StatusSnapshot summarizes engine state for periodic display and the status API.
type StatusSnapshot struct {
	Capital     float64   `json:"capital"`
	Building    int       `json:"building"`
	Positions   int       `json:"positions"`
	TotalTrades int       `json:"total_trades"`
	Ts          time.Time `json:"ts"`
}
