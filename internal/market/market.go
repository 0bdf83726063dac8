// Package market hosts connectors for binary-market venues: metadata
// discovery, price sources, and tick feeds.
package market

import (
	"context"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/haqhal13/EDGEBOTPRO/internal/metrics"
	"github.com/haqhal13/EDGEBOTPRO/internal/signal"
)

// Market identifies one binary UP/DOWN market and its two tradable assets.
type Market struct {
	ID        string    `json:"id"`
	Category  string    `json:"category"` // e.g. BTC_15M, ETH_1H
	UpAsset   string    `json:"up_asset"`
	DownAsset string    `json:"down_asset"`
	Expiry    time.Time `json:"expiry"`
}

// Expired reports whether the market's expiry has passed.
func (m Market) Expired(now time.Time) bool {
	return !m.Expiry.IsZero() && now.After(m.Expiry)
}

// PriceSource returns a mid-price per tradable asset. A failed fetch reports
// ok=false and is treated as "no update" by callers, never as zero.
type PriceSource interface {
	MidPrice(ctx context.Context, asset string) (float64, bool)
}

// MetadataSource lists the currently tradable markets.
type MetadataSource interface {
	ActiveMarkets(ctx context.Context) ([]Market, error)
}

// ObservedTrade is an externally observed trade from the tracked trader,
// used only to discover markets the trader is active in.
type ObservedTrade struct {
	Trader string      `json:"trader"`
	TxID   string      `json:"tx_id"`
	Market string      `json:"market"`
	Side   signal.Side `json:"side"`
	Ts     time.Time   `json:"ts"`
}

// TradeObserver optionally extends a MetadataSource with the tracked
// trader's recent fills.
type TradeObserver interface {
	ObservedTrades(ctx context.Context) ([]ObservedTrade, error)
}

// MarketSink receives market-universe updates from discovery. *Feed and
// *TickCache both implement it.
type MarketSink interface {
	SetMarkets([]Market)
}

// MarketSinks fans a universe update out to multiple sinks.
type MarketSinks []MarketSink

// SetMarkets forwards the list to every sink.
func (s MarketSinks) SetMarkets(markets []Market) {
	for _, sink := range s {
		sink.SetMarkets(markets)
	}
}

// parityTolerance bounds |up+down-1| before a tick is flagged as suspect.
const parityTolerance = 0.05

// FetchTicks refreshes both side prices for every market, running fetches in
// parallel batches of at most batchSize. Markets missing either side price
// are omitted from the result. Ticks that break the sum-to-one invariant are
// still returned but counted and logged, matching the "sanity is advisory"
// stance.
func FetchTicks(ctx context.Context, src PriceSource, markets []Market, batchSize int, now time.Time, log zerolog.Logger) map[string]signal.PriceTick {
	if batchSize <= 0 {
		batchSize = 8
	}
	out := make(map[string]signal.PriceTick, len(markets))
	var mu sync.Mutex

	for start := 0; start < len(markets); start += batchSize {
		end := start + batchSize
		if end > len(markets) {
			end = len(markets)
		}
		var wg sync.WaitGroup
		for _, m := range markets[start:end] {
			wg.Add(1)
			go func(m Market) {
				defer wg.Done()
				up, okUp := src.MidPrice(ctx, m.UpAsset)
				down, okDown := src.MidPrice(ctx, m.DownAsset)
				if !okUp || !okDown {
					return
				}
				tick := signal.PriceTick{Market: m.ID, Up: up, Down: down, Ts: now}
				if math.Abs(up+down-1.0) > parityTolerance {
					metrics.ParityBreaksTotal.Inc()
					log.Debug().Str("market", m.ID).Float64("sum", up+down).Msg("side prices break the sum-to-one check")
				}
				mu.Lock()
				out[m.ID] = tick
				mu.Unlock()
				metrics.TicksTotal.WithLabelValues(m.ID).Inc()
			}(m)
		}
		wg.Wait()
		if ctx.Err() != nil {
			break
		}
	}
	return out
}

// NormalizeCategory canonicalizes a market category key for policy lookup.
func NormalizeCategory(category string) string {
	return strings.ToUpper(strings.TrimSpace(category))
}
