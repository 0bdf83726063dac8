// Package config exposes strongly typed application configuration structs loaded from YAML,
// plus the per-market policy parameters produced by the offline inference pipeline.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// App captures process-wide runtime settings such as name, environment, metrics, and logging levels.
type App struct {
	Name        string `yaml:"name"`
	Env         string `yaml:"env"`
	MetricsAddr string `yaml:"metrics_addr"`
	LogLevel    string `yaml:"log_level"`
}

// Engine tunes the per-market lifecycle state machine.
type Engine struct {
	StartingCapital     float64 `yaml:"starting_capital"`
	LoopIntervalMs      int     `yaml:"loop_interval_ms"`
	FinalizeWindowSecs  int     `yaml:"finalize_window_secs"` // pre-expiry window that ends the build phase
	ArbWindowLowSecs    int     `yaml:"arb_window_low_secs"`  // lower bound of the arbitrage window
	ArbMaxSpendUSD      float64 `yaml:"arb_max_spend_usd"`
	ArbCapitalFraction  float64 `yaml:"arb_capital_fraction"`
	ClearWinnerPrice    float64 `yaml:"clear_winner_price"`
	LoserBandHigh       float64 `yaml:"loser_band_high"`
	PurgeDelaySecs      int     `yaml:"purge_delay_secs"`
	OrphanGraceSecs     int     `yaml:"orphan_grace_secs"`
	SweepIntervalSecs   int     `yaml:"sweep_interval_secs"`
	StatusIntervalSecs  int     `yaml:"status_interval_secs"`
	BuildBudgetUSD      float64 `yaml:"build_budget_usd"`       // target allocation per market (split across sides)
	MaxTradeNotionalUSD float64 `yaml:"max_trade_notional_usd"` // per-trade cost cap, 0 disables
	Seed                uint64  `yaml:"seed"`                   // 0 means seed from wall clock
}

// Feed describes the price source the engine subscribes to.
type Feed struct {
	Provider       string `yaml:"provider"` // stub | ws | http
	BaseURL        string `yaml:"base_url"`
	WSURL          string `yaml:"ws_url"`
	PollIntervalMs int    `yaml:"poll_interval_ms"`
	FetchBatchSize int    `yaml:"fetch_batch_size"`
}

// Discovery configures the periodic market-metadata refresh.
type Discovery struct {
	Enabled           bool     `yaml:"enabled"`
	Categories        []string `yaml:"categories"` // e.g. BTC_15m, ETH_1h
	RefreshIntervalMs int      `yaml:"refresh_interval_ms"`
}

// Journal points the trade/settlement recorders at their output files.
type Journal struct {
	TradesPath      string `yaml:"trades_path"`
	SettlementsPath string `yaml:"settlements_path"`
	BotLabel        string `yaml:"bot_label"` // tag written into trade notes, e.g. PAPER
}

// Config collects every configuration leaf for easy marshaling from YAML.
type Config struct {
	App        App       `yaml:"app"`
	Engine     Engine    `yaml:"engine"`
	Feed       Feed      `yaml:"feed"`
	Discovery  Discovery `yaml:"discovery"`
	Journal    Journal   `yaml:"journal"`
	ParamsPath string    `yaml:"params_path"` // JSON file emitted by the inference pipeline
}

// Load reads a YAML file from disk and hydrates a Config struct.
func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var config Config
	if err := yaml.NewDecoder(file).Decode(&config); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	config.applyDefaults()
	return &config, nil
}

// Save persists a Config struct to disk as YAML.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Engine.LoopIntervalMs <= 0 {
		c.Engine.LoopIntervalMs = 1000
	}
	if c.Engine.FinalizeWindowSecs <= 0 {
		c.Engine.FinalizeWindowSecs = 120
	}
	if c.Engine.ArbWindowLowSecs <= 0 {
		c.Engine.ArbWindowLowSecs = 10
	}
	if c.Engine.ArbMaxSpendUSD <= 0 {
		c.Engine.ArbMaxSpendUSD = 250
	}
	if c.Engine.ArbCapitalFraction <= 0 || c.Engine.ArbCapitalFraction > 1 {
		c.Engine.ArbCapitalFraction = 0.25
	}
	if c.Engine.ClearWinnerPrice <= 0 {
		c.Engine.ClearWinnerPrice = 0.95
	}
	if c.Engine.LoserBandHigh <= 0 {
		c.Engine.LoserBandHigh = 0.10
	}
	if c.Engine.PurgeDelaySecs <= 0 {
		c.Engine.PurgeDelaySecs = 30
	}
	if c.Engine.OrphanGraceSecs <= 0 {
		c.Engine.OrphanGraceSecs = 300
	}
	if c.Engine.SweepIntervalSecs <= 0 {
		c.Engine.SweepIntervalSecs = 60
	}
	if c.Engine.StatusIntervalSecs <= 0 {
		c.Engine.StatusIntervalSecs = 30
	}
	if c.Engine.BuildBudgetUSD <= 0 {
		c.Engine.BuildBudgetUSD = 1000
	}
	if c.Feed.FetchBatchSize <= 0 {
		c.Feed.FetchBatchSize = 8
	}
	if c.Feed.PollIntervalMs <= 0 {
		c.Feed.PollIntervalMs = 1000
	}
	if c.Discovery.RefreshIntervalMs <= 0 {
		c.Discovery.RefreshIntervalMs = 15000
	}
	if c.Journal.BotLabel == "" {
		c.Journal.BotLabel = "PAPER"
	}
}
