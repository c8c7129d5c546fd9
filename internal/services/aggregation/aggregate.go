package aggregation

import (
	"fmt"
	"strings"

	"TradeDesk/internal/domain/models"
	"TradeDesk/pkg/config"
)

// Result is a pre-gate aggregated signal.
type Result struct {
	Signal     models.Signal
	Confidence float64
	Reason     string
}

// unanimousDisagreeConfidence is reported when unanimous voters disagree.
const unanimousDisagreeConfidence = 0.3

// Aggregate combines enabled opinions with the named method.
// Disabled opinions are ignored, as if they were never produced.
func Aggregate(method string, opinions []models.Opinion) (Result, error) {
	if !config.ValidMethod(method) {
		return Result{}, config.NewConfigError("aggregation_method", "unknown method %q", method)
	}
	active := make([]models.Opinion, 0, len(opinions))
	for _, op := range opinions {
		if op.Enabled {
			active = append(active, op)
		}
	}
	if len(active) == 0 {
		return Result{Signal: models.SignalHold, Confidence: 0, Reason: "no opinions"}, nil
	}

	var r Result
	switch method {
	case config.MethodWeightedVote:
		r = weightedVote(active)
	case config.MethodHighestConfidence:
		r = highestConfidence(active)
	default:
		r = unanimous(active)
	}
	r.Confidence = models.Clamp01(r.Confidence)
	return r, nil
}

// weightedVote sums confidence*weight per signal. BUY and SELL are normalised
// by actionable weight only; HOLD by the total weight.
func weightedVote(ops []models.Opinion) Result {
	scores := map[models.Signal]float64{}
	reasons := map[models.Signal][]string{}
	var actionableWeight, holdWeight float64
	for _, op := range ops {
		scores[op.Signal] += op.Confidence * op.Weight
		reasons[op.Signal] = append(reasons[op.Signal], op.Strategy+": "+op.Reason)
		if op.Signal.IsActionable() {
			actionableWeight += op.Weight
		} else {
			holdWeight += op.Weight
		}
	}

	buy, sell, hold := scores[models.SignalBuy], scores[models.SignalSell], scores[models.SignalHold]
	winner := models.SignalHold
	switch {
	case buy > 0 && buy > sell && buy > hold:
		winner = models.SignalBuy
	case sell > 0 && sell > buy && sell > hold:
		winner = models.SignalSell
	}

	var conf float64
	if winner.IsActionable() {
		if actionableWeight > 0 {
			conf = scores[winner] / actionableWeight
		}
	} else if total := actionableWeight + holdWeight; total > 0 {
		conf = hold / total
	}

	rs := reasons[winner]
	if len(rs) == 0 {
		// HOLD won on a tie without any HOLD voter
		return Result{Signal: winner, Confidence: conf, Reason: fmt.Sprintf("HOLD on balanced votes (BUY %.2f, SELL %.2f)", buy, sell)}
	}
	return Result{
		Signal:     winner,
		Confidence: conf,
		Reason:     fmt.Sprintf("%s signal from %d strategies: %s", winner, len(rs), strings.Join(firstN(rs, 2), "; ")),
	}
}

// highestConfidence picks the opinion with the largest confidence*weight.
// The first one wins ties.
func highestConfidence(ops []models.Opinion) Result {
	best := ops[0]
	for _, op := range ops[1:] {
		if op.Confidence*op.Weight > best.Confidence*best.Weight {
			best = op
		}
	}
	return Result{
		Signal:     best.Signal,
		Confidence: best.Confidence,
		Reason:     fmt.Sprintf("Highest confidence from %s: %s", best.Strategy, best.Reason),
	}
}

func unanimous(ops []models.Opinion) Result {
	first := ops[0].Signal
	agree := true
	sum := 0.0
	for _, op := range ops {
		sum += op.Confidence
		if op.Signal != first {
			agree = false
		}
	}
	if !agree {
		parts := make([]string, len(ops))
		for i, op := range ops {
			parts[i] = fmt.Sprintf("%s=%s", op.Strategy, op.Signal)
		}
		return Result{
			Signal:     models.SignalHold,
			Confidence: unanimousDisagreeConfidence,
			Reason:     "Strategies disagree: " + strings.Join(parts, ", "),
		}
	}
	rs := make([]string, len(ops))
	for i, op := range ops {
		rs[i] = op.Strategy + ": " + op.Reason
	}
	return Result{
		Signal:     first,
		Confidence: sum / float64(len(ops)),
		Reason:     "All strategies agree: " + strings.Join(firstN(rs, 2), "; "),
	}
}

func firstN(xs []string, n int) []string {
	if len(xs) > n {
		return xs[:n]
	}
	return xs
}
