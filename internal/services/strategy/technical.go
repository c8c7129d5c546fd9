package strategy

import (
	"context"
	"fmt"
	"math"
	"strings"

	"TradeDesk/internal/domain/models"
	domsvc "TradeDesk/internal/domain/service"
	"TradeDesk/internal/services/features"
)

// balanceEpsilon is the BUY/SELL score gap below which the technical
// strategy refuses to pick a side.
const balanceEpsilon = 0.2

// TechnicalParams tunes the technical strategy.
type TechnicalParams struct {
	ShortSMA         int     `yaml:"short_sma"`
	LongSMA          int     `yaml:"long_sma"`
	RSIPeriod        int     `yaml:"rsi_period"`
	Oversold         float64 `yaml:"oversold"`
	Overbought       float64 `yaml:"overbought"`
	MomentumLookback int     `yaml:"momentum_lookback"`
	MomentumPct      float64 `yaml:"momentum_pct"`
}

// DefaultTechnicalParams returns the stock SMA(20/50), RSI(14) and 5-bar momentum setup.
func DefaultTechnicalParams() TechnicalParams {
	return TechnicalParams{
		ShortSMA:         20,
		LongSMA:          50,
		RSIPeriod:        14,
		Oversold:         30,
		Overbought:       70,
		MomentumLookback: 5,
		MomentumPct:      3,
	}
}

func (p TechnicalParams) validate() error {
	if p.ShortSMA <= 0 || p.LongSMA < p.ShortSMA {
		return fmt.Errorf("sma windows must satisfy 0 < short_sma <= long_sma")
	}
	if p.RSIPeriod <= 0 {
		return fmt.Errorf("rsi_period must be positive")
	}
	if p.Oversold >= p.Overbought {
		return fmt.Errorf("oversold must be below overbought")
	}
	if p.MomentumLookback <= 0 {
		return fmt.Errorf("momentum_lookback must be positive")
	}
	return nil
}

// Technical combines a moving average crossover, RSI extremes and short-term momentum.
type Technical struct {
	p TechnicalParams
}

func NewTechnical(p TechnicalParams) (*Technical, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	return &Technical{p: p}, nil
}

func (s *Technical) Name() string { return "technical" }

func (s *Technical) Evaluate(_ context.Context, mc models.MarketContext) (models.Opinion, error) {
	if mc.Price <= 0 {
		return models.Hold(0, "No price data available"), nil
	}
	h := mc.PriceHistory

	var votes []vote
	if len(h) >= s.p.ShortSMA {
		votes = append(votes, s.sma(mc.Price, h))
	}
	if len(h) >= s.p.RSIPeriod {
		votes = append(votes, s.rsi(h))
	}
	if len(h) >= s.p.MomentumLookback {
		votes = append(votes, s.momentum(mc.Price, h))
	}
	if len(votes) == 0 {
		return models.Hold(0, "Insufficient price history for technical analysis"), nil
	}

	sig, conf := combineTechnical(votes)
	labels := make([]string, len(votes))
	for i, v := range votes {
		labels[i] = fmt.Sprintf("%s: %s", v.label, v.signal)
	}
	return models.Opinion{
		Signal:     sig,
		Confidence: conf,
		Reason:     "Technical: " + strings.Join(labels, ", "),
	}, nil
}

func (s *Technical) sma(price float64, h []float64) vote {
	short, _ := features.SMA(h, s.p.ShortSMA)
	long, ok := features.SMA(h, s.p.LongSMA)
	if !ok {
		long = short
	}
	switch {
	case price > short && short > long:
		return vote{models.SignalBuy, 0.7, "SMA"}
	case price < short && short < long:
		return vote{models.SignalSell, 0.7, "SMA"}
	default:
		return vote{models.SignalHold, 0.3, "SMA"}
	}
}

func (s *Technical) rsi(h []float64) vote {
	rsi, ok := features.RSI(h, s.p.RSIPeriod)
	if !ok {
		return vote{models.SignalHold, 0, "RSI"}
	}
	switch {
	case rsi < s.p.Oversold:
		return vote{models.SignalBuy, 0.8, "RSI"}
	case rsi > s.p.Overbought:
		return vote{models.SignalSell, 0.8, "RSI"}
	default:
		return vote{models.SignalHold, 0.4, "RSI"}
	}
}

func (s *Technical) momentum(price float64, h []float64) vote {
	change, ok := features.PercentChange(price, h, s.p.MomentumLookback)
	if !ok {
		return vote{models.SignalHold, 0, "Momentum"}
	}
	switch {
	case change > s.p.MomentumPct:
		return vote{models.SignalBuy, 0.6, "Momentum"}
	case change < -s.p.MomentumPct:
		return vote{models.SignalSell, 0.6, "Momentum"}
	default:
		return vote{models.SignalHold, 0.4, "Momentum"}
	}
}

// combineTechnical prefers HOLD when BUY and SELL scores are within balanceEpsilon.
func combineTechnical(votes []vote) (models.Signal, float64) {
	t := count(votes)
	if math.Abs(t.buy-t.sell) < balanceEpsilon && math.Max(t.buy, t.sell) > 0 {
		if t.hold > 0 {
			return models.SignalHold, t.avg(t.hold)
		}
		return models.SignalHold, 0.4
	}
	return t.pickMax(0.3)
}

var _ domsvc.Strategy = (*Technical)(nil)
