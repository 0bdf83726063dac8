package market

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/haqhal13/EDGEBOTPRO/internal/signal"
)

func testMarket(id string) Market {
	return Market{
		ID:        id,
		Category:  "BTC_15M",
		UpAsset:   id + "-UP",
		DownAsset: id + "-DOWN",
		Expiry:    time.Now().Add(15 * time.Minute),
	}
}

func TestFeedRunEmitsTicks(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	feed := NewFeed(ProviderStub, zerolog.Nop())
	feed.SetMarkets([]Market{testMarket("btc-1200")})
	ticks := make(chan signal.PriceTick, 1)

	go func() {
		_ = feed.Run(ctx, ticks)
	}()

	select {
	case tk := <-ticks:
		if tk.Market != "btc-1200" {
			t.Fatalf("unexpected market %s", tk.Market)
		}
		if tk.Up <= 0 || tk.Down <= 0 {
			t.Fatalf("expected positive side prices, got %+v", tk)
		}
		cancel()
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for tick")
	}
}

func TestFetchTicksSkipsMissingPrices(t *testing.T) {
	src := NewStubSource()
	src.SetPrice("a-UP", 0.60)
	src.SetPrice("a-DOWN", 0.40)
	src.SetPrice("b-UP", 0.55)
	// b-DOWN deliberately missing: the whole market is skipped.

	now := time.Now()
	ticks := FetchTicks(context.Background(), src, []Market{testMarket("a"), testMarket("b")}, 2, now, zerolog.Nop())
	if len(ticks) != 1 {
		t.Fatalf("expected 1 tick, got %d", len(ticks))
	}
	tick, ok := ticks["a"]
	if !ok || tick.Up != 0.60 || tick.Down != 0.40 || !tick.Ts.Equal(now) {
		t.Fatalf("unexpected tick: %+v", tick)
	}
}

func TestFetchTicksBatchesAllMarkets(t *testing.T) {
	src := NewStubSource()
	ids := []string{"m1", "m2", "m3", "m4", "m5"}
	markets := make([]Market, 0, len(ids))
	for _, id := range ids {
		src.SetPrice(id+"-UP", 0.5)
		src.SetPrice(id+"-DOWN", 0.5)
		markets = append(markets, testMarket(id))
	}

	ticks := FetchTicks(context.Background(), src, markets, 2, time.Now(), zerolog.Nop())
	if len(ticks) != len(ids) {
		t.Fatalf("expected %d ticks, got %d", len(ids), len(ticks))
	}
}

func TestFetchTicksLogsParityBreak(t *testing.T) {
	src := NewStubSource()
	src.SetPrice("a-UP", 0.90)
	src.SetPrice("a-DOWN", 0.50)

	var buf bytes.Buffer
	log := zerolog.New(&buf).Level(zerolog.DebugLevel)
	ticks := FetchTicks(context.Background(), src, []Market{testMarket("a")}, 1, time.Now(), log)
	if len(ticks) != 1 {
		t.Fatalf("suspect tick must still be returned, got %d", len(ticks))
	}
	out := buf.String()
	if !strings.Contains(out, "sum-to-one") || !strings.Contains(out, `"market":"a"`) || !strings.Contains(out, "1.4") {
		t.Fatalf("parity break not logged with market and sum: %s", out)
	}
}

func TestHTTPSourceMidPrice(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/price/asset-up":
			_, _ = w.Write([]byte(`{"mid":0.62}`))
		case "/price/asset-bad":
			_, _ = w.Write([]byte(`{"mid":1.50}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	src := NewHTTPSource(server.URL, "", zerolog.Nop())
	px, ok := src.MidPrice(context.Background(), "asset-up")
	if !ok || px != 0.62 {
		t.Fatalf("expected 0.62, got %v ok=%v", px, ok)
	}
	if _, ok := src.MidPrice(context.Background(), "asset-bad"); ok {
		t.Fatalf("out-of-range price must be rejected")
	}
	if _, ok := src.MidPrice(context.Background(), "missing"); ok {
		t.Fatalf("fetch failure must report ok=false")
	}
}

func TestRunHTTPEmitsTick(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/price/btc-1200-UP":
			_, _ = w.Write([]byte(`{"mid":0.58}`))
		case "/price/btc-1200-DOWN":
			_, _ = w.Write([]byte(`{"mid":0.42}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	feed := NewFeed(ProviderHTTP, zerolog.Nop(), WithBaseURL(server.URL), WithPollInterval(50*time.Millisecond))
	feed.SetMarkets([]Market{testMarket("btc-1200")})

	ticks := make(chan signal.PriceTick, 1)
	errCh := make(chan error, 1)
	go func() {
		if err := feed.Run(ctx, ticks); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case tk := <-ticks:
		if tk.Market != "btc-1200" || tk.Up != 0.58 || tk.Down != 0.42 {
			t.Fatalf("unexpected tick: %+v", tk)
		}
		cancel()
	case <-time.After(2 * time.Second):
		cancel()
		t.Fatalf("timed out waiting for tick")
	}

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("feed returned error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("feed did not stop after cancel")
	}
}

func TestRunWSEmitsTick(t *testing.T) {
	done := make(chan struct{})
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		msg := []byte(`{"market":"btc-1200","up":0.61,"down":0.39,"ts_ms":1700000000000}`)
		if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
		// Hold the connection open so the feed does not spin on reconnects.
		<-done
	}))
	defer server.Close()
	defer close(done)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	feed := NewFeed(ProviderWS, zerolog.Nop(), WithWSURL(wsURL))
	ticks := make(chan signal.PriceTick, 1)
	go func() {
		_ = feed.Run(ctx, ticks)
	}()

	select {
	case tk := <-ticks:
		if tk.Market != "btc-1200" || tk.Up != 0.61 || tk.Down != 0.39 {
			t.Fatalf("unexpected tick: %+v", tk)
		}
		if !tk.Ts.Equal(time.UnixMilli(1700000000000)) {
			t.Fatalf("timestamp not taken from the message: %v", tk.Ts)
		}
		cancel()
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for websocket tick")
	}
}

func TestNormalizeCategory(t *testing.T) {
	cases := map[string]string{
		"BTC_15m":  "BTC_15M",
		" eth_1h ": "ETH_1H",
		"":         "",
	}
	for in, want := range cases {
		if got := NormalizeCategory(in); got != want {
			t.Fatalf("NormalizeCategory(%q) = %q, want %q", in, got, want)
		}
	}
}
