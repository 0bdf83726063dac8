package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// EntryParams bounds entry decisions for one market category. Band bounds are
// pointers because the inference pipeline omits sides it saw no trades on; a
// band is only usable when both bounds are present.
type EntryParams struct {
	UpMin             *float64 `json:"up_min"`
	UpMax             *float64 `json:"up_max"`
	DownMin           *float64 `json:"down_min"`
	DownMax           *float64 `json:"down_max"`
	Mode              string   `json:"mode"` // momentum | reversion | none
	MomentumThreshold float64  `json:"momentum_threshold"`
}

// SizeParams maps half-open price intervals to trade sizes.
type SizeParams struct {
	Edges []float64          `json:"edges"` // ascending bin edges
	Table map[string]float64 `json:"table"` // keyed by "(lower, upper]" interval text
}

// InventoryParams caps per-side and total holdings and sets the skew ratio
// beyond which the policy substitutes the underweight side.
type InventoryParams struct {
	MaxPerSide     float64 `json:"max_per_side"`
	MaxTotal       float64 `json:"max_total"`
	RebalanceRatio float64 `json:"rebalance_ratio"` // in (0,1)
}

// CadenceParams throttles trade frequency.
type CadenceParams struct {
	MinIntervalMs int64 `json:"min_interval_ms"`
	MaxPerSecond  int   `json:"max_per_second"`
	MaxPerMinute  int   `json:"max_per_minute"`
}

// MarketParams bundles the four per-market parameter groups. Any group may be
// nil, in which case the consuming component falls back to its documented default.
type MarketParams struct {
	Entry     *EntryParams     `json:"entry"`
	Size      *SizeParams      `json:"size"`
	Inventory *InventoryParams `json:"inventory"`
	Cadence   *CadenceParams   `json:"cadence"`
}

type paramsFile struct {
	PerMarket map[string]MarketParams `json:"per_market"`
}

// PolicyStore holds the per-market-category parameters and reloads them when
// the underlying file changes. Lookups are safe from any goroutine.
type PolicyStore struct {
	log  zerolog.Logger
	path string

	mu       sync.RWMutex
	params   map[string]MarketParams
	loadedAt time.Time
	mtime    time.Time
}

// NewPolicyStore loads the params file once; a missing file yields an empty
// store (every market then runs on defaults) rather than an error.
func NewPolicyStore(log zerolog.Logger, path string) *PolicyStore {
	s := &PolicyStore{log: log, path: path, params: map[string]MarketParams{}}
	if err := s.Reload(); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("policy params unavailable, using defaults")
	}
	return s
}

// Reload re-reads the params file unconditionally.
func (s *PolicyStore) Reload() error {
	if s.path == "" {
		return nil
	}
	info, err := os.Stat(s.path)
	if err != nil {
		return fmt.Errorf("stat params: %w", err)
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("read params: %w", err)
	}
	var file paramsFile
	if err := json.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("decode params: %w", err)
	}
	normalized := make(map[string]MarketParams, len(file.PerMarket))
	for key, mp := range file.PerMarket {
		normalized[normalizeCategory(key)] = mp
	}

	s.mu.Lock()
	s.params = normalized
	s.loadedAt = time.Now()
	s.mtime = info.ModTime()
	s.mu.Unlock()
	s.log.Info().Int("markets", len(normalized)).Str("path", s.path).Msg("policy params loaded")
	return nil
}

// Watch polls the file mtime and reloads on change until the stop channel closes.
func (s *PolicyStore) Watch(stop <-chan struct{}, every time.Duration) {
	if s.path == "" {
		return
	}
	if every <= 0 {
		every = 10 * time.Second
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			info, err := os.Stat(s.path)
			if err != nil {
				continue
			}
			s.mu.RLock()
			stale := info.ModTime().After(s.mtime)
			s.mu.RUnlock()
			if !stale {
				continue
			}
			if err := s.Reload(); err != nil {
				s.log.Warn().Err(err).Msg("policy params reload failed")
			}
		}
	}
}

// ForMarket returns the parameter bundle for a market category. The zero
// MarketParams (all nil groups) is returned for unknown categories.
func (s *PolicyStore) ForMarket(category string) MarketParams {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.params[normalizeCategory(category)]
}

// Markets lists the configured categories.
func (s *PolicyStore) Markets() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.params))
	for k := range s.params {
		out = append(out, k)
	}
	return out
}

func normalizeCategory(key string) string {
	return strings.ToUpper(strings.TrimSpace(key))
}
