package strategy

import (
	"context"
	"fmt"
	"strings"

	"TradeDesk/internal/domain/models"
	domsvc "TradeDesk/internal/domain/service"
	"TradeDesk/internal/services/features"
)

// VolumeParams tunes the volume strategy.
type VolumeParams struct {
	SpikeWindow    int     `yaml:"spike_window"`
	SpikeRatio     float64 `yaml:"spike_ratio"`
	ElevatedRatio  float64 `yaml:"elevated_ratio"`
	TrendBars      int     `yaml:"trend_bars"`
	PriceMovePct   float64 `yaml:"price_move_pct"`
	OBVBars        int     `yaml:"obv_bars"`
	OBVChangeRatio float64 `yaml:"obv_change_ratio"`
}

func DefaultVolumeParams() VolumeParams {
	return VolumeParams{
		SpikeWindow:    20,
		SpikeRatio:     2.0,
		ElevatedRatio:  1.5,
		TrendBars:      5,
		PriceMovePct:   2,
		OBVBars:        5,
		OBVChangeRatio: 0.05,
	}
}

func (p VolumeParams) validate() error {
	if p.SpikeWindow <= 0 || p.TrendBars <= 0 || p.OBVBars <= 1 {
		return fmt.Errorf("spike_window, trend_bars and obv_bars must be positive")
	}
	if p.ElevatedRatio > p.SpikeRatio {
		return fmt.Errorf("elevated_ratio must not exceed spike_ratio")
	}
	return nil
}

// Volume reads spikes, volume/price divergence and on-balance volume.
type Volume struct {
	p VolumeParams
}

func NewVolume(p VolumeParams) (*Volume, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	return &Volume{p: p}, nil
}

func (s *Volume) Name() string { return "volume" }

func (s *Volume) Evaluate(_ context.Context, mc models.MarketContext) (models.Opinion, error) {
	if mc.Volume <= 0 || mc.Price <= 0 {
		return models.Hold(0, "No volume data available"), nil
	}
	ph, vh := mc.PriceHistory, mc.VolumeHistory

	var votes []vote
	if len(vh) >= s.p.SpikeWindow {
		votes = append(votes, s.spike(mc.Volume, vh))
	}
	if len(vh) >= 2*s.p.TrendBars && len(ph) >= 2*s.p.TrendBars {
		votes = append(votes, s.divergence(mc.Price, ph, vh))
	}
	if len(ph) >= s.p.OBVBars && len(vh) >= s.p.OBVBars {
		votes = append(votes, s.obv(ph, vh))
	}
	if len(votes) == 0 {
		return models.Hold(0, "Insufficient volume history for analysis"), nil
	}

	sig, conf := count(votes).pickMax(0)
	labels := make([]string, len(votes))
	for i, v := range votes {
		labels[i] = v.label
	}
	return models.Opinion{
		Signal:     sig,
		Confidence: conf,
		Reason:     "Volume: " + strings.Join(labels, " | "),
	}, nil
}

func (s *Volume) spike(cur float64, vh []float64) vote {
	avg, _ := features.SMA(vh, s.p.SpikeWindow)
	ratio := 1.0
	if avg > 0 {
		ratio = cur / avg
	}
	switch {
	case ratio > s.p.SpikeRatio:
		return vote{models.SignalHold, 0.7, fmt.Sprintf("Volume spike %.1fx avg", ratio)}
	case ratio > s.p.ElevatedRatio:
		return vote{models.SignalHold, 0.5, fmt.Sprintf("Elevated volume %.1fx avg", ratio)}
	default:
		return vote{models.SignalHold, 0.3, "Normal volume"}
	}
}

func (s *Volume) divergence(price float64, ph, vh []float64) vote {
	n := s.p.TrendBars
	change, ok := features.PercentChange(price, ph, n)
	if !ok {
		return vote{models.SignalHold, 0.3, "No clear volume-price pattern"}
	}
	recent := features.Mean(vh[len(vh)-n:])
	older := features.Mean(vh[len(vh)-2*n : len(vh)-n])

	volUp := recent > older*1.2
	volDown := recent < older*0.8
	priceUp := change > s.p.PriceMovePct
	priceDown := change < -s.p.PriceMovePct

	switch {
	case priceUp && volUp:
		return vote{models.SignalBuy, 0.8, "Price up with rising volume (strong bullish)"}
	case priceDown && volUp:
		return vote{models.SignalSell, 0.8, "Price down with rising volume (strong bearish)"}
	case priceUp && volDown:
		return vote{models.SignalHold, 0.4, "Price up with falling volume (weak trend)"}
	case priceDown && volDown:
		return vote{models.SignalHold, 0.4, "Price down with falling volume (weak trend)"}
	default:
		return vote{models.SignalHold, 0.3, "No clear volume-price pattern"}
	}
}

func (s *Volume) obv(ph, vh []float64) vote {
	series := features.OBV(ph, vh)
	if len(series) < s.p.OBVBars {
		return vote{models.SignalHold, 0, "Insufficient OBV data"}
	}
	window := series[len(series)-s.p.OBVBars:]
	start, end := window[0], window[len(window)-1]
	switch {
	case end > start*(1+s.p.OBVChangeRatio):
		return vote{models.SignalBuy, 0.6, "OBV rising (accumulation)"}
	case end < start*(1-s.p.OBVChangeRatio):
		return vote{models.SignalSell, 0.6, "OBV falling (distribution)"}
	default:
		return vote{models.SignalHold, 0.3, "OBV neutral"}
	}
}

var _ domsvc.Strategy = (*Volume)(nil)
