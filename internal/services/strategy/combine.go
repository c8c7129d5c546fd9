package strategy

import (
	"math"

	"TradeDesk/internal/domain/models"
)

// vote is one internal sub-indicator result.
type vote struct {
	signal     models.Signal
	confidence float64
	label      string
}

type tally struct {
	buy, sell, hold float64
	n               int
}

func count(votes []vote) tally {
	t := tally{n: len(votes)}
	for _, v := range votes {
		switch v.signal {
		case models.SignalBuy:
			t.buy += v.confidence
		case models.SignalSell:
			t.sell += v.confidence
		default:
			t.hold += v.confidence
		}
	}
	return t
}

func (t tally) avg(score float64) float64 {
	return math.Min(score/float64(t.n), 1)
}

// pickMax returns the signal with the highest summed score, preferring
// BUY then SELL on ties. A zero-score winner falls back to HOLD.
func (t tally) pickMax(zeroHold float64) (models.Signal, float64) {
	top := math.Max(t.buy, math.Max(t.sell, t.hold))
	switch {
	case top == t.buy && t.buy > 0:
		return models.SignalBuy, t.avg(t.buy)
	case top == t.sell && t.sell > 0:
		return models.SignalSell, t.avg(t.sell)
	case t.hold > 0:
		return models.SignalHold, t.avg(t.hold)
	default:
		return models.SignalHold, zeroHold
	}
}
