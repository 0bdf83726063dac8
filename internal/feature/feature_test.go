package feature

import (
	"math"
	"testing"
	"time"

	"github.com/haqhal13/EDGEBOTPRO/internal/signal"
)

func tick(ts time.Time, up float64) signal.PriceTick {
	return signal.PriceTick{Market: "BTC_15m", Up: up, Down: 1 - up, Ts: ts}
}

func TestComputeParityDistanceAlwaysPresent(t *testing.T) {
	now := time.Now()
	v := Compute(tick(now, 0.62), nil)
	if math.Abs(v.DistFromParity-0.12) > 1e-9 {
		t.Fatalf("parity distance: got %.4f want 0.12", v.DistFromParity)
	}
	if v.DeltaUp5s != nil || v.Vol5s != nil {
		t.Fatalf("expected optional features absent with empty history")
	}
}

func TestComputeDeltaPresentOnlyWithinTwiceWindow(t *testing.T) {
	now := time.Now()
	// Sample 6s old: within 2*5s of the 5s target, but 5s outside the 2*1s
	// tolerance for the 1s window.
	history := []signal.PriceTick{tick(now.Add(-6*time.Second), 0.50)}
	v := Compute(tick(now, 0.55), history)

	if v.DeltaUp5s == nil {
		t.Fatalf("expected 5s delta present")
	}
	if math.Abs(*v.DeltaUp5s-0.05) > 1e-9 {
		t.Fatalf("5s delta: got %.4f want 0.05", *v.DeltaUp5s)
	}
	if v.DeltaUp1s != nil {
		t.Fatalf("expected 1s delta absent, sample is 5s from target")
	}
	if v.DeltaUp30s != nil {
		t.Fatalf("expected 30s delta absent, sample is 24s from target")
	}
}

func TestComputeDeltaBoundaryIsExclusive(t *testing.T) {
	now := time.Now()
	// Exactly 2w from the target rejects (strict <).
	history := []signal.PriceTick{tick(now.Add(-3*time.Second), 0.50)}
	v := Compute(tick(now, 0.55), history)
	if v.DeltaUp1s != nil {
		t.Fatalf("expected 1s delta absent at exactly 2w distance")
	}
}

func TestComputeSideDeltaAliasesUp(t *testing.T) {
	now := time.Now()
	history := []signal.PriceTick{{Market: "BTC_15m", Up: 0.40, Down: 0.60, Ts: now.Add(-5 * time.Second)}}
	v := Compute(signal.PriceTick{Market: "BTC_15m", Up: 0.48, Down: 0.52, Ts: now}, history)

	if v.DeltaSide5s == nil || v.DeltaUp5s == nil || v.DeltaDown5s == nil {
		t.Fatalf("expected 5s deltas present")
	}
	if *v.DeltaSide5s != *v.DeltaUp5s {
		t.Fatalf("side delta should alias UP delta: side=%.4f up=%.4f", *v.DeltaSide5s, *v.DeltaUp5s)
	}
	if math.Abs(*v.DeltaDown5s+0.08) > 1e-9 {
		t.Fatalf("down delta: got %.4f want -0.08", *v.DeltaDown5s)
	}
}

func TestComputeVolatilityRequiresTwoSamples(t *testing.T) {
	now := time.Now()
	one := []signal.PriceTick{tick(now.Add(-2*time.Second), 0.50)}
	v := Compute(tick(now, 0.50), one)
	if v.Vol5s != nil {
		t.Fatalf("expected vol absent with a single in-window sample")
	}

	two := append(one, tick(now.Add(-1*time.Second), 0.60))
	v = Compute(tick(now, 0.50), two)
	if v.Vol5s == nil {
		t.Fatalf("expected vol present with two samples")
	}
	// Population stddev of {0.50, 0.60} is 0.05.
	if math.Abs(*v.Vol5s-0.05) > 1e-9 {
		t.Fatalf("vol: got %.4f want 0.05", *v.Vol5s)
	}
}

func TestComputeHandlesUnorderedHistory(t *testing.T) {
	now := time.Now()
	history := []signal.PriceTick{
		tick(now.Add(-1*time.Second), 0.52),
		tick(now.Add(-30*time.Second), 0.40),
		tick(now.Add(-5*time.Second), 0.50),
	}
	v := Compute(tick(now, 0.55), history)
	if v.DeltaUp30s == nil || math.Abs(*v.DeltaUp30s-0.15) > 1e-9 {
		t.Fatalf("expected 30s delta 0.15 from unordered history")
	}
}

func TestTapePrunesBeyondRetention(t *testing.T) {
	now := time.Now()
	var tape Tape
	tape.Add(tick(now.Add(-90*time.Second), 0.50))
	tape.Add(tick(now.Add(-30*time.Second), 0.51))
	tape.Add(tick(now, 0.52))
	if tape.Len() != 2 {
		t.Fatalf("expected stale tick pruned, got %d entries", tape.Len())
	}
	if tape.History()[0].Up != 0.51 {
		t.Fatalf("expected oldest retained tick to be the 30s-old sample")
	}
}
