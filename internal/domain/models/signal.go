package models

import (
	"fmt"
	"strings"
)

// Signal is a trading direction produced by a strategy or the aggregation engine.
type Signal string

const (
	SignalBuy  Signal = "BUY"
	SignalSell Signal = "SELL"
	SignalHold Signal = "HOLD"
)

// IsActionable reports whether the signal mutates a ledger.
func (s Signal) IsActionable() bool {
	return s == SignalBuy || s == SignalSell
}

// ParseSignal accepts any casing of BUY, SELL or HOLD.
func ParseSignal(s string) (Signal, error) {
	switch Signal(strings.ToUpper(strings.TrimSpace(s))) {
	case SignalBuy:
		return SignalBuy, nil
	case SignalSell:
		return SignalSell, nil
	case SignalHold:
		return SignalHold, nil
	default:
		return "", fmt.Errorf("unknown signal %q", s)
	}
}

// Opinion is one strategy's view of a symbol at one point in time.
type Opinion struct {
	Strategy   string  `json:"strategy_name"`
	Signal     Signal  `json:"signal"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
	Weight     float64 `json:"weight"`
	Enabled    bool    `json:"enabled"`
}

// Hold builds a neutral opinion, used for "insufficient data" answers.
func Hold(confidence float64, reason string) Opinion {
	return Opinion{Signal: SignalHold, Confidence: confidence, Reason: reason}
}

// Clamp01 bounds v to [0,1].
func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
