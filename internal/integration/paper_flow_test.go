package integration

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/haqhal13/EDGEBOTPRO/internal/config"
	"github.com/haqhal13/EDGEBOTPRO/internal/engine"
	"github.com/haqhal13/EDGEBOTPRO/internal/journal"
	"github.com/haqhal13/EDGEBOTPRO/internal/market"
)

// TestPaperFlowEndToEnd drives the full pipeline: a stub metadata/price source
// feeds discovery, the engine builds a position, arbitrages the clear loser in
// the final window, settles after expiry, and every trade lands both in the
// in-memory ledger and the JSONL tape on disk.
func TestPaperFlowEndToEnd(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	dir := t.TempDir()
	paramsPath := filepath.Join(dir, "params.json")
	params := `{"per_market":{"BTC_15M":{"entry":{"up_min":0.0,"up_max":1.0,"down_min":0.0,"down_max":1.0,"mode":"none"},"cadence":{"min_interval_ms":1000,"max_per_second":2,"max_per_minute":30}}}}`
	if err := os.WriteFile(paramsPath, []byte(params), 0o644); err != nil {
		t.Fatalf("write params fixture: %v", err)
	}
	policies := config.NewPolicyStore(zerolog.Nop(), paramsPath)

	// Discovery filters expired markets against the wall clock, so the
	// simulated timeline has to be anchored to it.
	start := time.Now().UTC().Truncate(time.Second)
	now := start
	clock := func() time.Time { return now }

	src := market.NewStubSource()
	m := market.Market{
		ID:        "btc-updown-1230",
		Category:  "BTC_15M",
		UpAsset:   "btc-updown-1230-UP",
		DownAsset: "btc-updown-1230-DOWN",
		Expiry:    start.Add(10 * time.Minute),
	}
	src.SetMarkets([]market.Market{m})
	src.SetPrice(m.UpAsset, 0.50)
	src.SetPrice(m.DownAsset, 0.50)

	discovery := market.NewDiscovery(zerolog.Nop(), src, nil, config.Discovery{
		Enabled:           true,
		Categories:        []string{"BTC_15m"},
		RefreshIntervalMs: 60000,
	})
	if discovery == nil {
		t.Fatalf("expected discovery to construct")
	}
	if err := discovery.Refresh(ctx); err != nil {
		t.Fatalf("Refresh returned error: %v", err)
	}

	recorder, err := journal.NewJSONLRecorder(
		filepath.Join(dir, "trades.jsonl"),
		filepath.Join(dir, "settlements.jsonl"),
		"PAPER",
	)
	if err != nil {
		t.Fatalf("NewJSONLRecorder returned error: %v", err)
	}
	defer recorder.Close()

	ledger := journal.NewLedger(64)
	sinks := journal.Fanout{ledger, recorder}

	cfg := config.Engine{
		StartingCapital:    10000,
		LoopIntervalMs:     1000,
		FinalizeWindowSecs: 120,
		ArbWindowLowSecs:   10,
		ArbMaxSpendUSD:     250,
		ArbCapitalFraction: 0.25,
		ClearWinnerPrice:   0.95,
		LoserBandHigh:      0.10,
		PurgeDelaySecs:     30,
		OrphanGraceSecs:    300,
		SweepIntervalSecs:  60,
		StatusIntervalSecs: 30,
		BuildBudgetUSD:     1000,
		Seed:               42,
	}
	eng := engine.New(zerolog.Nop(), cfg, policies, src, discovery, sinks, recorder,
		engine.WithClock(clock))

	// Build phase: step forward through the first minutes with balanced prices.
	for i := 0; i < 120; i++ {
		if err := eng.Step(ctx); err != nil {
			t.Fatalf("Step returned error during build: %v", err)
		}
		now = now.Add(2 * time.Second)
	}
	builds := ledger.Len()
	if builds == 0 {
		t.Fatalf("expected build trades to be recorded")
	}

	// Final window: the market decides, the loser trades in the arb band.
	now = m.Expiry.Add(-60 * time.Second)
	src.SetPrice(m.UpAsset, 0.96)
	src.SetPrice(m.DownAsset, 0.04)
	if err := eng.Step(ctx); err != nil {
		t.Fatalf("Step returned error entering final window: %v", err)
	}
	now = now.Add(2 * time.Second)
	if err := eng.Step(ctx); err != nil {
		t.Fatalf("Step returned error in final window: %v", err)
	}

	var arbs int
	for _, ev := range ledger.Snapshot() {
		if ev.Action == "arbitrage" {
			arbs++
			if ev.Side != "DOWN" {
				t.Fatalf("arbitrage must buy the losing side, got %s", ev.Side)
			}
		}
	}
	if arbs != 1 {
		t.Fatalf("expected exactly one arbitrage trade, got %d", arbs)
	}

	// Expiry: the position settles and pays out the winning side.
	now = m.Expiry.Add(2 * time.Second)
	if err := eng.Step(ctx); err != nil {
		t.Fatalf("Step returned error at settlement: %v", err)
	}

	status := eng.Status()
	if status.Positions != 1 {
		t.Fatalf("expected the settled position to linger until purge, got %d", status.Positions)
	}
	if status.TotalTrades != ledger.Len() {
		t.Fatalf("status trade count %d does not match ledger %d", status.TotalTrades, ledger.Len())
	}
	if eng.Capital() <= 0 {
		t.Fatalf("capital must stay positive, got %v", eng.Capital())
	}

	// The JSONL tape on disk must mirror the in-memory ledger.
	if err := recorder.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}
	trades, skipped, err := journal.ReadTrades(filepath.Join(dir, "trades.jsonl"))
	if err != nil {
		t.Fatalf("ReadTrades returned error: %v", err)
	}
	if skipped != 0 {
		t.Fatalf("expected no malformed lines, got %d", skipped)
	}
	if len(trades) != ledger.Len() {
		t.Fatalf("tape has %d trades, ledger has %d", len(trades), ledger.Len())
	}
	for _, ev := range trades {
		if !strings.HasPrefix(ev.Note, "PAPER: ") {
			t.Fatalf("trade note missing bot label: %q", ev.Note)
		}
	}
}
