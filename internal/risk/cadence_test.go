package risk

import (
	"testing"
	"time"

	"github.com/haqhal13/EDGEBOTPRO/internal/config"
)

func cadParams() *config.CadenceParams {
	return &config.CadenceParams{MinIntervalMs: 2000, MaxPerSecond: 2, MaxPerMinute: 10}
}

func TestAllowCadenceNilConfig(t *testing.T) {
	now := time.Now()
	if !AllowCadence(&now, []time.Time{now}, nil, now) {
		t.Fatalf("nil config must always allow")
	}
}

func TestAllowCadenceMinInterval(t *testing.T) {
	now := time.Now()
	last := now.Add(-1500 * time.Millisecond)
	if AllowCadence(&last, nil, cadParams(), now) {
		t.Fatalf("expected reject inside min interval")
	}
	last = now.Add(-2 * time.Second)
	if !AllowCadence(&last, nil, cadParams(), now) {
		t.Fatalf("expected allow at min interval boundary")
	}
}

func TestAllowCadencePerSecondBoundaryRejects(t *testing.T) {
	now := time.Now()
	recent := []time.Time{now.Add(-900 * time.Millisecond), now.Add(-500 * time.Millisecond)}
	// Two trades in the trailing second equals the cap: equality rejects.
	if AllowCadence(nil, recent, cadParams(), now) {
		t.Fatalf("count at per-second cap must reject")
	}
	if !AllowCadence(nil, recent[:1], cadParams(), now) {
		t.Fatalf("count under cap must allow")
	}
}

func TestAllowCadencePerMinuteCap(t *testing.T) {
	now := time.Now()
	recent := make([]time.Time, 10)
	for i := range recent {
		recent[i] = now.Add(-time.Duration(i+2) * time.Second)
	}
	if AllowCadence(nil, recent, cadParams(), now) {
		t.Fatalf("count at per-minute cap must reject")
	}
}

func TestAllowCadenceIgnoresStaleTimestamps(t *testing.T) {
	now := time.Now()
	recent := []time.Time{now.Add(-2 * time.Minute), now.Add(-90 * time.Second)}
	if !AllowCadence(nil, recent, cadParams(), now) {
		t.Fatalf("timestamps outside both windows must not count")
	}
}

func TestPruneCadence(t *testing.T) {
	now := time.Now()
	recent := []time.Time{
		now.Add(-2 * time.Minute),
		now.Add(-30 * time.Second),
		now.Add(-1 * time.Second),
	}
	pruned := PruneCadence(recent, now)
	if len(pruned) != 2 {
		t.Fatalf("expected 2 retained timestamps, got %d", len(pruned))
	}
}
