package journal

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/haqhal13/EDGEBOTPRO/internal/signal"
)

func sampleTrade(market string, ts time.Time) signal.TradeEvent {
	return signal.TradeEvent{
		Market: market,
		Side:   signal.Up,
		Action: "build",
		Shares: 12.5,
		Cost:   2.875,
		Price:  0.23,
		Ts:     ts,
	}
}

func TestJSONLRecorderRoundTrip(t *testing.T) {
	dir := t.TempDir()
	tradesPath := filepath.Join(dir, "trades.jsonl")
	settlesPath := filepath.Join(dir, "settlements.jsonl")

	rec, err := NewJSONLRecorder(tradesPath, settlesPath, "PAPER")
	if err != nil {
		t.Fatalf("NewJSONLRecorder returned error: %v", err)
	}
	now := time.Now().UTC().Truncate(time.Millisecond)
	rec.RecordTrade(sampleTrade("BTC_15m", now))
	rec.RecordSettlement(signal.SettlementEvent{Market: "BTC_15m", Winner: signal.Up, Cost: 100, Value: 120, PnL: 20, Ts: now})
	if err := rec.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}

	trades, skipped, err := ReadTrades(tradesPath)
	if err != nil {
		t.Fatalf("ReadTrades returned error: %v", err)
	}
	if skipped != 0 {
		t.Fatalf("expected no skipped lines, got %d", skipped)
	}
	if len(trades) != 1 {
		t.Fatalf("expected 1 trade, got %d", len(trades))
	}
	got := trades[0]
	if got.Market != "BTC_15m" || got.Side != signal.Up || got.Shares != 12.5 {
		t.Fatalf("trade did not round-trip: %+v", got)
	}
	if got.Note != "PAPER: UP 12.5000 shares @ $0.2300" {
		t.Fatalf("unexpected note: %q", got.Note)
	}
}

func TestReadTradesSkipsMalformedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trades.jsonl")
	content := strings.Join([]string{
		`{"market":"BTC_15m","side":"UP","action":"build","shares":5,"cost":2.5,"price":0.5,"ts":"2026-08-01T00:00:00Z"}`,
		`not json`,
		`{"side":"UP"}`,
		``,
		`{"market":"ETH_1h","side":"DOWN","action":"arbitrage","shares":10,"cost":0.5,"price":0.05,"ts":"2026-08-01T00:01:00Z"}`,
	}, "\n")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	trades, skipped, err := ReadTrades(path)
	if err != nil {
		t.Fatalf("ReadTrades returned error: %v", err)
	}
	if len(trades) != 2 {
		t.Fatalf("expected 2 trades, got %d", len(trades))
	}
	if skipped != 2 {
		t.Fatalf("expected 2 skipped lines, got %d", skipped)
	}
}

func TestLedgerRecordsAndResets(t *testing.T) {
	ledger := NewLedger(4)
	now := time.Now()
	ledger.RecordTrade(sampleTrade("BTC_15m", now))
	ledger.RecordTrade(sampleTrade("ETH_1h", now))

	snap := ledger.Snapshot()
	if len(snap) != 2 || ledger.Len() != 2 {
		t.Fatalf("expected 2 recorded trades, got %d", len(snap))
	}
	snap[0].Market = "mutated"
	if ledger.Snapshot()[0].Market == "mutated" {
		t.Fatalf("snapshot must be a copy")
	}

	ledger.Reset()
	if ledger.Len() != 0 {
		t.Fatalf("expected empty ledger after reset")
	}
}

func TestFanoutForwardsToAllSinks(t *testing.T) {
	a, b := NewLedger(0), NewLedger(0)
	Fanout{a, b}.RecordTrade(sampleTrade("BTC_15m", time.Now()))
	if a.Len() != 1 || b.Len() != 1 {
		t.Fatalf("expected both sinks to receive the trade")
	}
}
