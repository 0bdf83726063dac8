package strategy

import (
	"testing"

	"github.com/haqhal13/EDGEBOTPRO/internal/config"
)

func sizeParams() *config.SizeParams {
	return &config.SizeParams{
		Edges: []float64{0.2, 0.4, 0.6, 0.8},
		Table: map[string]float64{
			"(0.2, 0.4]": 5,
			"(0.4, 0.6]": 10.12345,
			"(0.6, 0.8]": 20,
		},
	}
}

func TestSizeNilOrEmpty(t *testing.T) {
	if got := Size(0.5, nil); got != 1.0 {
		t.Fatalf("nil params: got %.4f want 1.0", got)
	}
	if got := Size(0.5, &config.SizeParams{Edges: []float64{0, 1}}); got != 1.0 {
		t.Fatalf("empty table: got %.4f want 1.0", got)
	}
}

func TestSizeLookupAndRounding(t *testing.T) {
	if got := Size(0.5, sizeParams()); got != 10.1235 {
		t.Fatalf("mid bin: got %.4f want 10.1235", got)
	}
	if got := Size(0.3, sizeParams()); got != 5 {
		t.Fatalf("low bin: got %.4f want 5", got)
	}
}

func TestSizeEdgeResolvesToLowerInclusiveBin(t *testing.T) {
	// Price exactly on an interior edge belongs to the bin that starts there.
	if got := Size(0.4, sizeParams()); got != 10.1235 {
		t.Fatalf("edge 0.4: got %.4f want 10.1235", got)
	}
	// The terminal edge clamps into the last bin.
	if got := Size(0.8, sizeParams()); got != 20 {
		t.Fatalf("edge 0.8: got %.4f want 20", got)
	}
}

func TestSizeOutOfRangeClamps(t *testing.T) {
	if got := Size(0.05, sizeParams()); got != 5 {
		t.Fatalf("below range: got %.4f want 5", got)
	}
	if got := Size(0.95, sizeParams()); got != 20 {
		t.Fatalf("above range: got %.4f want 20", got)
	}
}

func TestSizeMedianFallback(t *testing.T) {
	params := &config.SizeParams{
		Edges: []float64{0.0, 0.5, 1.0},
		Table: map[string]float64{
			// No key matches the (0, 0.5] bucket text, forcing the fallback.
			"(0.5, 1]": 8,
			"stale_a":  2,
			"stale_b":  4,
			"stale_c":  16,
		},
	}
	// Sorted values {2,4,8,16}: upper-median (index 2) is 8.
	if got := Size(0.25, params); got != 8 {
		t.Fatalf("median fallback: got %.4f want 8", got)
	}
}

func TestIntervalKeyFormat(t *testing.T) {
	if got := IntervalKey(0.2, 0.4); got != "(0.2, 0.4]" {
		t.Fatalf("key: got %q", got)
	}
}
