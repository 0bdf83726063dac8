package market

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/haqhal13/EDGEBOTPRO/internal/config"
)

// Discovery keeps a fresh snapshot of tradable markets, filtered to the
// configured categories, and buffers the shadowed trader's fills for the
// engine to consume.
type Discovery struct {
	log        zerolog.Logger
	src        MetadataSource
	sink       MarketSink
	categories map[string]struct{}
	interval   time.Duration

	mu       sync.Mutex
	markets  map[string]Market
	observed []ObservedTrade
	lastIDs  []string
}

// NewDiscovery constructs a discovery service; returns nil if disabled or
// the metadata source is missing. sink may be nil when nothing needs the
// universe pushed to it.
func NewDiscovery(log zerolog.Logger, src MetadataSource, sink MarketSink, cfg config.Discovery) *Discovery {
	if src == nil || !cfg.Enabled {
		return nil
	}
	categories := make(map[string]struct{}, len(cfg.Categories))
	for _, c := range cfg.Categories {
		if c = NormalizeCategory(c); c != "" {
			categories[c] = struct{}{}
		}
	}
	interval := time.Duration(cfg.RefreshIntervalMs) * time.Millisecond
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &Discovery{
		log:        log,
		src:        src,
		sink:       sink,
		categories: categories,
		interval:   interval,
		markets:    make(map[string]Market),
	}
}

// Start launches the discovery loop in a goroutine.
func (d *Discovery) Start(ctx context.Context) {
	if d == nil {
		return
	}
	go d.loop(ctx)
}

func (d *Discovery) loop(ctx context.Context) {
	if err := d.Refresh(ctx); err != nil {
		d.log.Warn().Err(err).Msg("market discovery refresh failed")
	}
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := d.Refresh(ctx); err != nil {
				d.log.Warn().Err(err).Msg("market discovery refresh failed")
			}
		}
	}
}

// Refresh performs a single discovery cycle.
func (d *Discovery) Refresh(ctx context.Context) error {
	if d == nil {
		return nil
	}
	listed, err := d.src.ActiveMarkets(ctx)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	fresh := make(map[string]Market, len(listed))
	for _, m := range listed {
		if m.ID == "" || m.Expired(now) {
			continue
		}
		if len(d.categories) > 0 {
			if _, ok := d.categories[NormalizeCategory(m.Category)]; !ok {
				continue
			}
		}
		fresh[m.ID] = m
	}

	var trades []ObservedTrade
	if observer, ok := d.src.(TradeObserver); ok {
		trades, err = observer.ObservedTrades(ctx)
		if err != nil {
			d.log.Debug().Err(err).Msg("observed-trade fetch failed")
			trades = nil
		}
	}

	d.mu.Lock()
	d.markets = fresh
	d.observed = append(d.observed, trades...)
	ids := make([]string, 0, len(fresh))
	for id := range fresh {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	changed := !slicesEqual(ids, d.lastIDs)
	prev := d.lastIDs
	d.lastIDs = ids
	d.mu.Unlock()

	if d.sink != nil {
		d.sink.SetMarkets(d.Markets())
	}
	if changed {
		d.log.Info().Strs("markets", ids).Strs("previous", prev).Msg("updated market universe")
	}
	return nil
}

// Markets returns the latest snapshot sorted by ID.
func (d *Discovery) Markets() []Market {
	if d == nil {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Market, 0, len(d.markets))
	for _, m := range d.markets {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// DrainObserved returns buffered trader fills and clears the buffer.
func (d *Discovery) DrainObserved() []ObservedTrade {
	if d == nil {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	out := d.observed
	d.observed = nil
	return out
}

func slicesEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
