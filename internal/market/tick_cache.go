package market

import (
	"context"
	"sync"

	"github.com/haqhal13/EDGEBOTPRO/internal/signal"
)

// TickCache bridges a streaming feed to the engine's pull model: it drains
// ticks from a channel, keeps the latest one per market, and serves per-asset
// mid-prices from it. It satisfies PriceSource and receives the market list
// from discovery so asset ids can be resolved to a market and side.
type TickCache struct {
	mu     sync.RWMutex
	assets map[string]assetRef
	ticks  map[string]signal.PriceTick
}

type assetRef struct {
	market string
	side   signal.Side
}

// NewTickCache returns an empty cache.
func NewTickCache() *TickCache {
	return &TickCache{
		assets: make(map[string]assetRef),
		ticks:  make(map[string]signal.PriceTick),
	}
}

// SetMarkets rebuilds the asset-to-market index. Cached ticks for markets no
// longer listed are dropped.
func (c *TickCache) SetMarkets(markets []Market) {
	assets := make(map[string]assetRef, 2*len(markets))
	known := make(map[string]struct{}, len(markets))
	for _, m := range markets {
		if m.ID == "" {
			continue
		}
		known[m.ID] = struct{}{}
		if m.UpAsset != "" {
			assets[m.UpAsset] = assetRef{market: m.ID, side: signal.Up}
		}
		if m.DownAsset != "" {
			assets[m.DownAsset] = assetRef{market: m.ID, side: signal.Down}
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.assets = assets
	for id := range c.ticks {
		if _, ok := known[id]; !ok {
			delete(c.ticks, id)
		}
	}
}

// Apply stores the latest tick for a market.
func (c *TickCache) Apply(tick signal.PriceTick) {
	if tick.Market == "" {
		return
	}
	c.mu.Lock()
	c.ticks[tick.Market] = tick
	c.mu.Unlock()
}

// Consume drains the tick channel until it closes or the context is canceled.
func (c *TickCache) Consume(ctx context.Context, ticks <-chan signal.PriceTick) {
	for {
		select {
		case <-ctx.Done():
			return
		case tick, ok := <-ticks:
			if !ok {
				return
			}
			c.Apply(tick)
		}
	}
}

// MidPrice implements PriceSource from the cached stream. Unknown assets and
// markets without a tick yet report ok=false, which callers treat as
// "no update".
func (c *TickCache) MidPrice(_ context.Context, asset string) (float64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ref, ok := c.assets[asset]
	if !ok {
		return 0, false
	}
	tick, ok := c.ticks[ref.market]
	if !ok {
		return 0, false
	}
	px := tick.SidePrice(ref.side)
	if px <= 0 {
		return 0, false
	}
	return px, true
}
