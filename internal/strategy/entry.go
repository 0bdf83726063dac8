// Package strategy contains the entry policy replicated from the observed trader:
// band-gated side selection with optional momentum or reversion confirmation,
// and the price-bucketed sizing table.
package strategy

import (
	"github.com/haqhal13/EDGEBOTPRO/internal/config"
	"github.com/haqhal13/EDGEBOTPRO/internal/feature"
	"github.com/haqhal13/EDGEBOTPRO/internal/signal"
)

// Entry modes understood by the evaluator.
const (
	ModeMomentum  = "momentum"
	ModeReversion = "reversion"
	ModeNone      = "none"
)

// Reason codes attached to entry decisions.
const (
	ReasonNoEntryParams = "no_entry_params"
	ReasonNoBandMatch   = "no_band_match"
	ReasonBandUp        = "band_match_up"
	ReasonBandDown      = "band_match_down"
	ReasonMomentumUp    = "momentum_up"
	ReasonMomentumDown  = "momentum_down"
	ReasonReversionUp   = "reversion_up"
	ReasonReversionDown = "reversion_down"
)

// Decision is the outcome of one entry evaluation.
type Decision struct {
	Trade  bool
	Side   signal.Side
	Reason string
}

// Evaluate applies the entry policy to one tick. UP is always checked before
// DOWN; when both bands would match, UP wins. This ordering is a deliberate
// tie-break and must not be reordered.
func Evaluate(tick signal.PriceTick, v feature.Vector, params *config.EntryParams) Decision {
	if params == nil {
		return Decision{Reason: ReasonNoEntryParams}
	}

	if inBand(tick.Up, params.UpMin, params.UpMax) {
		if ok, reason := modeConfirms(params, v.DeltaSide5s, ReasonBandUp, ReasonMomentumUp, ReasonReversionUp); ok {
			return Decision{Trade: true, Side: signal.Up, Reason: reason}
		}
	}

	if inBand(tick.Down, params.DownMin, params.DownMax) {
		// The DOWN check prefers the DOWN-specific delta but falls back to the
		// aliased (UP) side delta when it is absent, matching the source policy.
		delta := v.DeltaDown5s
		if delta == nil {
			delta = v.DeltaSide5s
		}
		if ok, reason := modeConfirms(params, delta, ReasonBandDown, ReasonMomentumDown, ReasonReversionDown); ok {
			return Decision{Trade: true, Side: signal.Down, Reason: reason}
		}
	}

	return Decision{Reason: ReasonNoBandMatch}
}

// inBand reports whether price lies inside [min, max]. A band with either
// bound missing is unusable.
func inBand(price float64, min, max *float64) bool {
	if min == nil || max == nil {
		return false
	}
	return price >= *min && price <= *max
}

func modeConfirms(params *config.EntryParams, delta *float64, bandReason, momentumReason, reversionReason string) (bool, string) {
	switch params.Mode {
	case ModeMomentum:
		if delta != nil && *delta >= params.MomentumThreshold {
			return true, momentumReason
		}
		return false, ""
	case ModeReversion:
		if delta != nil && *delta <= -params.MomentumThreshold {
			return true, reversionReason
		}
		return false, ""
	default:
		return true, bandReason
	}
}
