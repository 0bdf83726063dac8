package risk

import (
	"github.com/haqhal13/EDGEBOTPRO/internal/config"
	"github.com/haqhal13/EDGEBOTPRO/internal/signal"
)

// dust is the share quantity below which a side is treated as empty.
const dust = 1e-6

// Rebalance gates a proposed trade side against the inventory configuration.
// It returns the side to actually trade and whether a trade is allowed at all.
// A nil configuration passes the proposal through unchanged.
//
// When both sides hold shares and the UP share ratio breaches the rebalance
// ratio, the proposal is substituted with the underweight side provided that
// side still has headroom; otherwise the trade is rejected.
func Rebalance(upShares, downShares float64, proposed signal.Side, params *config.InventoryParams) (signal.Side, bool) {
	if params == nil {
		return proposed, true
	}

	total := upShares + downShares
	if params.MaxTotal > 0 && total >= params.MaxTotal {
		return "", false
	}
	if params.MaxPerSide > 0 && sideShares(upShares, downShares, proposed) >= params.MaxPerSide {
		return "", false
	}

	if upShares > dust && downShares > dust && params.RebalanceRatio > 0 && params.RebalanceRatio < 1 {
		upRatio := upShares / total
		switch {
		case upRatio > params.RebalanceRatio && proposed == signal.Up:
			if hasHeadroom(downShares, params) {
				return signal.Down, true
			}
			return "", false
		case upRatio < 1-params.RebalanceRatio && proposed == signal.Down:
			if hasHeadroom(upShares, params) {
				return signal.Up, true
			}
			return "", false
		}
	}

	return proposed, true
}

func sideShares(up, down float64, s signal.Side) float64 {
	if s == signal.Up {
		return up
	}
	return down
}

func hasHeadroom(shares float64, params *config.InventoryParams) bool {
	return params.MaxPerSide <= 0 || shares < params.MaxPerSide
}
