package strategy

import (
	"fmt"
	"math"
	"sort"

	"github.com/haqhal13/EDGEBOTPRO/internal/config"
)

// defaultSize is returned whenever no usable sizing table exists.
const defaultSize = 1.0

// Size maps the side's current price to a trade size via the bucketed lookup.
// A nil or empty table yields the fixed default. Table keys use the exact
// interval text "(lower, upper]" produced by the inference pipeline.
func Size(price float64, params *config.SizeParams) float64 {
	if params == nil || len(params.Table) == 0 || len(params.Edges) < 2 {
		return defaultSize
	}

	lo, hi := bucketFor(price, params.Edges)
	key := IntervalKey(lo, hi)
	if v, ok := params.Table[key]; ok {
		return round4(v)
	}
	return round4(medianValue(params.Table))
}

// IntervalKey renders the textual key for a half-open price interval.
func IntervalKey(lower, upper float64) string {
	return fmt.Sprintf("(%g, %g]", lower, upper)
}

// bucketFor scans bins lower-inclusive-first-match: a price exactly on edge[i]
// resolves to bin i, even though the table keys render the intervals as
// upper-inclusive text. Out-of-range prices clamp to the first or last bin.
func bucketFor(price float64, edges []float64) (float64, float64) {
	last := len(edges) - 2
	if price < edges[0] {
		return edges[0], edges[1]
	}
	for i := 0; i < last; i++ {
		if price >= edges[i] && price < edges[i+1] {
			return edges[i], edges[i+1]
		}
	}
	return edges[last], edges[last+1]
}

// medianValue picks the upper-median of the table's values: sorted, element
// at floor(n/2).
func medianValue(table map[string]float64) float64 {
	values := make([]float64, 0, len(table))
	for _, v := range table {
		values = append(values, v)
	}
	sort.Float64s(values)
	return values[len(values)/2]
}

func round4(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}
