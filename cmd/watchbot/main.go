package main

import (
	"context"
	"errors"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/haqhal13/EDGEBOTPRO/internal/config"
	"github.com/haqhal13/EDGEBOTPRO/internal/engine"
	"github.com/haqhal13/EDGEBOTPRO/internal/journal"
	"github.com/haqhal13/EDGEBOTPRO/internal/market"
	"github.com/haqhal13/EDGEBOTPRO/internal/metrics"
	"github.com/haqhal13/EDGEBOTPRO/internal/signal"
	"github.com/haqhal13/EDGEBOTPRO/internal/util"
)

const defaultConfigPath = "internal/config/config.yaml"

func main() {
	_ = godotenv.Load() // best effort, .env is optional

	configPath := os.Getenv("WATCHBOT_CONFIG")
	if configPath == "" {
		configPath = defaultConfigPath
	}

	bootstrap := util.NewLogger("info")
	cfg, err := config.Load(configPath)
	if err != nil {
		bootstrap.Fatal().Err(err).Str("path", configPath).Msg("load config")
	}
	log := util.NewLogger(cfg.App.LogLevel)

	ctx, cancel := ossignal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	policies := config.NewPolicyStore(log, cfg.ParamsPath)
	go policies.Watch(ctx.Done(), 10*time.Second)

	recorder, err := journal.NewJSONLRecorder(cfg.Journal.TradesPath, cfg.Journal.SettlementsPath, cfg.Journal.BotLabel)
	if err != nil {
		log.Fatal().Err(err).Msg("open journal")
	}
	defer recorder.Close()

	var prices market.PriceSource
	var meta market.MetadataSource
	var sink market.MarketSink
	switch cfg.Feed.Provider {
	case market.ProviderWS:
		// Metadata still comes over REST; prices stream over the websocket
		// into a cache the engine pulls from.
		src := market.NewHTTPSource(cfg.Feed.BaseURL, os.Getenv("WATCHBOT_TRADER"), log)
		meta = src

		feed := market.NewFeed(market.ProviderWS, log, market.WithWSURL(cfg.Feed.WSURL))
		cache := market.NewTickCache()
		ticks := make(chan signal.PriceTick, 256)
		go func() {
			if err := feed.Run(ctx, ticks); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("price stream stopped")
			}
		}()
		go cache.Consume(ctx, ticks)
		prices = cache
		sink = market.MarketSinks{feed, cache}
	case market.ProviderHTTP:
		src := market.NewHTTPSource(cfg.Feed.BaseURL, os.Getenv("WATCHBOT_TRADER"), log)
		prices, meta = src, src
	default:
		stub := offlineStub(cfg)
		prices, meta = stub, stub
	}

	discovery := market.NewDiscovery(log, meta, sink, cfg.Discovery)
	if discovery == nil {
		log.Fatal().Msg("discovery disabled: the engine has no market universe")
	}
	discovery.Start(ctx)

	eng := engine.New(log, cfg.Engine, policies, prices, discovery, recorder, recorder,
		engine.WithBatchSize(cfg.Feed.FetchBatchSize))

	srv := metrics.Serve(cfg.App.MetricsAddr, eng.Status, eng.Positions)
	defer srv.Close()
	log.Info().Str("addr", cfg.App.MetricsAddr).Msg("metrics up")

	log.Info().
		Float64("capital", cfg.Engine.StartingCapital).
		Str("provider", cfg.Feed.Provider).
		Msg("watchbot started")
	if err := eng.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal().Err(err).Msg("engine stopped")
	}
	log.Info().Msg("shutting down")
}

// offlineStub seeds a synthetic universe so the engine can run end to end
// without a venue: one market per configured category, prices drifting via
// the stub source's scripted values.
func offlineStub(cfg *config.Config) *market.StubSource {
	stub := market.NewStubSource()
	now := time.Now().UTC()
	markets := make([]market.Market, 0, len(cfg.Discovery.Categories))
	for i, category := range cfg.Discovery.Categories {
		id := market.NormalizeCategory(category) + "-demo"
		markets = append(markets, market.Market{
			ID:        id,
			Category:  category,
			UpAsset:   id + "-UP",
			DownAsset: id + "-DOWN",
			Expiry:    now.Add(time.Duration(15*(i+1)) * time.Minute),
		})
		stub.SetPrice(id+"-UP", 0.52)
		stub.SetPrice(id+"-DOWN", 0.48)
	}
	stub.SetMarkets(markets)
	return stub
}
