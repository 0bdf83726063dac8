// Package parity reconciles two trade logs by nearest-timestamp matching and
// reports per-market agreement statistics. It answers the question "how close
// did the replica come to the trader it shadows" without touching live state.
package parity

import (
	"math"
	"sort"
	"time"

	"github.com/haqhal13/EDGEBOTPRO/internal/signal"
)

// Match pairs one reference trade with its nearest replica trade.
type Match struct {
	Market    string        `json:"market"`
	RefTs     time.Time     `json:"ref_ts"`
	RepTs     time.Time     `json:"rep_ts"`
	Delta     time.Duration `json:"delta"`
	RefSide   signal.Side   `json:"ref_side"`
	RepSide   signal.Side   `json:"rep_side"`
	SameSide  bool          `json:"same_side"`
	RefShares float64       `json:"ref_shares"`
	RepShares float64       `json:"rep_shares"`
	SizeRatio float64       `json:"size_ratio"`
	RefPrice  float64       `json:"ref_price"`
	RepPrice  float64       `json:"rep_price"`
	PriceDiff float64       `json:"price_diff"`
}

// MarketStats aggregates the matches of a single market.
type MarketStats struct {
	Market          string  `json:"market"`
	Reference       int     `json:"reference_trades"`
	Matched         int     `json:"matched"`
	Missed          int     `json:"missed"`
	MatchRate       float64 `json:"match_rate"`
	SameSideRate    float64 `json:"same_side_rate"`
	MedianSizeRatio float64 `json:"median_size_ratio"`
	SizeRatioMAD    float64 `json:"size_ratio_mad"`
	MedianPriceDiff float64 `json:"median_price_diff"`
	AvgDelta        float64 `json:"avg_delta_ms"`
	Top             []Match `json:"top_price_diffs"`
}

// Report is the full comparison output.
type Report struct {
	Window  time.Duration `json:"window"`
	Matches []Match       `json:"matches"`
	Markets []MarketStats `json:"markets"`
}

// Compare matches every reference trade against the replica trade with the
// smallest absolute time delta inside the window. Ties on delta keep the
// first replica trade found in timestamp order. Reference trades with no
// replica inside the window count as missed. topN bounds the per-market list
// of matches ranked by fill-price difference.
func Compare(reference, replica []signal.TradeEvent, window time.Duration, topN int) Report {
	byMarket := groupByMarket(replica)
	for _, trades := range byMarket {
		sort.Slice(trades, func(i, j int) bool { return trades[i].Ts.Before(trades[j].Ts) })
	}

	report := Report{Window: window}
	refCounts := map[string]int{}
	for _, ref := range reference {
		refCounts[ref.Market]++
		rep, ok := nearest(byMarket[ref.Market], ref.Ts, window)
		if !ok {
			continue
		}
		ratio := 0.0
		if ref.Shares > 0 {
			ratio = rep.Shares / ref.Shares
		}
		report.Matches = append(report.Matches, Match{
			Market:    ref.Market,
			RefTs:     ref.Ts,
			RepTs:     rep.Ts,
			Delta:     absDuration(rep.Ts.Sub(ref.Ts)),
			RefSide:   ref.Side,
			RepSide:   rep.Side,
			SameSide:  ref.Side == rep.Side,
			RefShares: ref.Shares,
			RepShares: rep.Shares,
			SizeRatio: ratio,
			RefPrice:  ref.Price,
			RepPrice:  rep.Price,
			PriceDiff: math.Abs(ref.Price - rep.Price),
		})
	}

	report.Markets = summarize(report.Matches, refCounts, topN)
	return report
}

// nearest returns the trade in the sorted slice with the smallest |ts delta|
// that still falls inside the window. A strict comparison keeps the earliest
// trade on an exact tie.
func nearest(sorted []signal.TradeEvent, ts time.Time, window time.Duration) (signal.TradeEvent, bool) {
	best := -1
	var bestDelta time.Duration
	for i := range sorted {
		delta := absDuration(sorted[i].Ts.Sub(ts))
		if delta > window {
			if sorted[i].Ts.After(ts) {
				break
			}
			continue
		}
		if best < 0 || delta < bestDelta {
			best, bestDelta = i, delta
		}
	}
	if best < 0 {
		return signal.TradeEvent{}, false
	}
	return sorted[best], true
}

func summarize(matches []Match, refCounts map[string]int, topN int) []MarketStats {
	byMarket := map[string][]Match{}
	for _, m := range matches {
		byMarket[m.Market] = append(byMarket[m.Market], m)
	}

	markets := make([]string, 0, len(refCounts))
	for market := range refCounts {
		markets = append(markets, market)
	}
	sort.Strings(markets)

	stats := make([]MarketStats, 0, len(markets))
	for _, market := range markets {
		ms := byMarket[market]
		st := MarketStats{
			Market:    market,
			Reference: refCounts[market],
			Matched:   len(ms),
			Missed:    refCounts[market] - len(ms),
		}
		if st.Reference > 0 {
			st.MatchRate = float64(st.Matched) / float64(st.Reference)
		}
		if len(ms) > 0 {
			sameSide := 0
			ratios := make([]float64, 0, len(ms))
			diffs := make([]float64, 0, len(ms))
			deviations := make([]float64, 0, len(ms))
			var deltaSum float64
			for _, m := range ms {
				if m.SameSide {
					sameSide++
				}
				ratios = append(ratios, m.SizeRatio)
				diffs = append(diffs, m.PriceDiff)
				deviations = append(deviations, math.Abs(m.SizeRatio-1.0))
				deltaSum += float64(m.Delta.Milliseconds())
			}
			st.SameSideRate = float64(sameSide) / float64(len(ms))
			st.MedianSizeRatio = median(ratios)
			st.SizeRatioMAD = median(deviations)
			st.MedianPriceDiff = median(diffs)
			st.AvgDelta = deltaSum / float64(len(ms))
			st.Top = topByPriceDiff(ms, topN)
		}
		stats = append(stats, st)
	}
	return stats
}

func topByPriceDiff(ms []Match, n int) []Match {
	if n <= 0 {
		return nil
	}
	out := make([]Match, len(ms))
	copy(out, ms)
	sort.SliceStable(out, func(i, j int) bool { return out[i].PriceDiff > out[j].PriceDiff })
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// median interpolates between the two middle values for even-length input.
func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

func groupByMarket(trades []signal.TradeEvent) map[string][]signal.TradeEvent {
	out := map[string][]signal.TradeEvent{}
	for _, t := range trades {
		out[t.Market] = append(out[t.Market], t)
	}
	return out
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
