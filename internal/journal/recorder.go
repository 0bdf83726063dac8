// Package journal records executed trades and settlements, both as JSON lines
// for offline analysis and in memory for quick inspection.
package journal

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/haqhal13/EDGEBOTPRO/internal/signal"
)

// TradeSink receives every executed trade event.
type TradeSink interface {
	RecordTrade(signal.TradeEvent)
}

// SettlementSink receives every settlement event.
type SettlementSink interface {
	RecordSettlement(signal.SettlementEvent)
}

// JSONLRecorder appends trade and settlement events as JSON lines.
type JSONLRecorder struct {
	mu        sync.Mutex
	bot       string
	trades    *os.File
	tradeEnc  *json.Encoder
	settles   *os.File
	settleEnc *json.Encoder
}

// NewJSONLRecorder creates/opens both target files. The bot label is stamped
// into each trade's note so the output matches the observed bot's tape format.
func NewJSONLRecorder(tradesPath, settlementsPath, bot string) (*JSONLRecorder, error) {
	trades, err := openAppend(tradesPath)
	if err != nil {
		return nil, err
	}
	settles, err := openAppend(settlementsPath)
	if err != nil {
		trades.Close()
		return nil, err
	}
	return &JSONLRecorder{
		bot:       bot,
		trades:    trades,
		tradeEnc:  json.NewEncoder(trades),
		settles:   settles,
		settleEnc: json.NewEncoder(settles),
	}, nil
}

func openAppend(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
}

// RecordTrade writes a single trade to the trades file.
func (r *JSONLRecorder) RecordTrade(ev signal.TradeEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ev.Note == "" {
		ev.Note = ev.FormatNote(r.bot)
	}
	_ = r.tradeEnc.Encode(ev)
}

// RecordSettlement writes a single settlement to the settlements file.
func (r *JSONLRecorder) RecordSettlement(ev signal.SettlementEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_ = r.settleEnc.Encode(ev)
}

// Close flushes and closes both file handles.
func (r *JSONLRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var first error
	for _, f := range []**os.File{&r.trades, &r.settles} {
		if *f == nil {
			continue
		}
		if err := (*f).Close(); err != nil && first == nil {
			first = err
		}
		*f = nil
	}
	return first
}
