package aggregation

import (
	"fmt"
	"math"

	"TradeDesk/internal/domain/models"
	"TradeDesk/pkg/config"
)

// NearMissMargin is the distance below the threshold still reported as a near miss.
const NearMissMargin = 0.1

// Gate demotes sub-threshold decisions to HOLD.
type Gate struct {
	minConfidence float64
}

func NewGate(minConfidence float64) (*Gate, error) {
	if minConfidence < 0 || minConfidence > 1 || math.IsNaN(minConfidence) {
		return nil, config.NewConfigError("min_confidence", "must be in [0,1], got %v", minConfidence)
	}
	return &Gate{minConfidence: minConfidence}, nil
}

func (g *Gate) Threshold() float64 { return g.minConfidence }

// Apply returns the gated signal, reason and execution telemetry.
// Confidence is never changed; the pre-gate signal stays in the telemetry.
func (g *Gate) Apply(r Result) (models.Signal, string, models.ExecutionGate) {
	exec := r.Confidence >= g.minConfidence
	eg := models.ExecutionGate{
		WouldExecute:       exec,
		Threshold:          g.minConfidence,
		OriginalSignal:     r.Signal,
		OriginalConfidence: r.Confidence,
	}
	if exec {
		return r.Signal, r.Reason, eg
	}
	eg.Gap = g.minConfidence - r.Confidence
	eg.NearMiss = math.Abs(eg.Gap) < NearMissMargin
	reason := fmt.Sprintf("Below threshold (%.2f < %.2f): %s", r.Confidence, g.minConfidence, r.Reason)
	return models.SignalHold, reason, eg
}
