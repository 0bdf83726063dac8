package journal

import (
	"bufio"
	"bytes"
	"fmt"
	"os"

	jsoniter "github.com/json-iterator/go"

	"github.com/haqhal13/EDGEBOTPRO/internal/signal"
)

var fastJSON = jsoniter.ConfigCompatibleWithStandardLibrary

// ReadTrades loads a JSONL trade log. Trade tapes can run to millions of
// lines, hence the streaming scanner and jsoniter decode. Malformed lines are
// counted and skipped rather than aborting the load.
func ReadTrades(path string) ([]signal.TradeEvent, int, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("open trade log: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var trades []signal.TradeEvent
	skipped := 0
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var ev signal.TradeEvent
		if err := fastJSON.Unmarshal(line, &ev); err != nil || ev.Market == "" {
			skipped++
			continue
		}
		trades = append(trades, ev)
	}
	if err := scanner.Err(); err != nil {
		return nil, skipped, fmt.Errorf("scan trade log: %w", err)
	}
	return trades, skipped, nil
}
