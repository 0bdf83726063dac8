package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/haqhal13/EDGEBOTPRO/internal/config"
)

const defaultConfigPath = "internal/config/config.yaml"

func main() {
	reader := bufio.NewReader(os.Stdin)

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	for {
		fmt.Println("\n=== WatchBot Control ===")
		fmt.Println("1) Show configuration summary")
		fmt.Println("2) Edit capital and engine knobs")
		fmt.Println("3) Edit discovery settings")
		fmt.Println("4) Save config")
		fmt.Println("5) Launch watchbot")
		fmt.Println("6) Reload config from disk")
		fmt.Println("0) Exit")
		fmt.Print("Select option: ")

		input, _ := reader.ReadString('\n')
		choice := strings.TrimSpace(input)

		switch choice {
		case "1":
			printSummary(cfg)
		case "2":
			editEngine(reader, cfg)
		case "3":
			editDiscovery(reader, cfg)
		case "4":
			if err := saveConfig(cfg); err != nil {
				fmt.Fprintf(os.Stderr, "save failed: %v\n", err)
			} else {
				fmt.Println("config saved")
			}
		case "5":
			launchBot(reader)
		case "6":
			reloaded, err := loadConfig()
			if err != nil {
				fmt.Fprintf(os.Stderr, "reload failed: %v\n", err)
			} else {
				cfg = reloaded
				fmt.Println("config reloaded")
			}
		case "0":
			return
		default:
			fmt.Println("unknown option")
		}
	}
}

func printSummary(cfg *config.Config) {
	fmt.Println("\n--- Configuration Summary ---")
	fmt.Printf("Starting capital: $%.2f\n", cfg.Engine.StartingCapital)
	fmt.Printf("Build budget per market: $%.2f\n", cfg.Engine.BuildBudgetUSD)
	fmt.Printf("Arbitrage cap: $%.2f (%.0f%% of free capital)\n", cfg.Engine.ArbMaxSpendUSD, cfg.Engine.ArbCapitalFraction*100)
	fmt.Printf("Finalize window: %ds | arbitrage floor: %ds\n", cfg.Engine.FinalizeWindowSecs, cfg.Engine.ArbWindowLowSecs)
	fmt.Printf("Clear winner threshold: %.2f | loser band top: %.2f\n", cfg.Engine.ClearWinnerPrice, cfg.Engine.LoserBandHigh)
	fmt.Printf("Feed provider: %s\n", cfg.Feed.Provider)
	fmt.Println("Discovery categories:", strings.Join(cfg.Discovery.Categories, ", "))
	fmt.Printf("Policy params file: %s\n", cfg.ParamsPath)
}

func editEngine(reader *bufio.Reader, cfg *config.Config) {
	fmt.Println("\n--- Edit Capital / Engine ---")
	cfg.Engine.StartingCapital = promptFloat(reader, "Starting capital", cfg.Engine.StartingCapital)
	cfg.Engine.BuildBudgetUSD = promptFloat(reader, "Build budget per market (USD)", cfg.Engine.BuildBudgetUSD)
	cfg.Engine.ArbMaxSpendUSD = promptFloat(reader, "Max arbitrage spend (USD)", cfg.Engine.ArbMaxSpendUSD)
	cfg.Engine.ArbCapitalFraction = promptPercent(reader, "Arbitrage capital fraction (%)", cfg.Engine.ArbCapitalFraction)
	cfg.Engine.ClearWinnerPrice = promptFloat(reader, "Clear winner threshold", cfg.Engine.ClearWinnerPrice)
	cfg.Engine.LoserBandHigh = promptFloat(reader, "Loser band top", cfg.Engine.LoserBandHigh)
	cfg.Engine.FinalizeWindowSecs = int(promptFloat(reader, "Finalize window (secs)", float64(cfg.Engine.FinalizeWindowSecs)))
}

func editDiscovery(reader *bufio.Reader, cfg *config.Config) {
	fmt.Println("\n--- Edit Discovery ---")
	fmt.Printf("Current categories: %s\n", strings.Join(cfg.Discovery.Categories, ", "))
	fmt.Print("Enter categories comma-separated (blank to keep): ")
	if line, _ := reader.ReadString('\n'); strings.TrimSpace(line) != "" {
		parts := strings.Split(strings.TrimSpace(line), ",")
		cfg.Discovery.Categories = nil
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				cfg.Discovery.Categories = append(cfg.Discovery.Categories, trimmed)
			}
		}
	}
	cfg.Discovery.RefreshIntervalMs = int(promptFloat(reader, "Refresh interval (ms)", float64(cfg.Discovery.RefreshIntervalMs)))
}

func launchBot(reader *bufio.Reader) {
	fmt.Println("Launching watchbot (Ctrl+C to stop)...")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cmd := exec.CommandContext(ctx, "go", "run", "./cmd/watchbot")
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Stdin = os.Stdin

	if err := cmd.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to start bot: %v\n", err)
		return
	}

	go func() {
		_ = cmd.Wait()
		cancel()
	}()

	fmt.Print("\nPress ENTER to stop the bot and return to menu...")
	_, _ = reader.ReadString('\n')
	cancel()
	time.Sleep(500 * time.Millisecond)
}

func promptFloat(reader *bufio.Reader, label string, current float64) float64 {
	fmt.Printf("%s [%.2f]: ", label, current)
	line, _ := reader.ReadString('\n')
	line = strings.TrimSpace(line)
	if line == "" {
		return current
	}
	val, err := strconv.ParseFloat(line, 64)
	if err != nil {
		fmt.Printf("invalid number, keeping %.2f\n", current)
		return current
	}
	return val
}

func promptPercent(reader *bufio.Reader, label string, current float64) float64 {
	pct := promptFloat(reader, label, current*100)
	return pct / 100
}

func loadConfig() (*config.Config, error) {
	return config.Load(locateConfig())
}

func saveConfig(cfg *config.Config) error {
	return config.Save(locateConfig(), cfg)
}

func locateConfig() string {
	if filepath.IsAbs(defaultConfigPath) {
		return defaultConfigPath
	}
	return filepath.Clean(defaultConfigPath)
}
