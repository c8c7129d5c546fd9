package performance

import (
	"math"

	"TradeDesk/internal/domain/models"
	"TradeDesk/internal/services/features"
)

// periodsPerYear annualises per-step statistics. Steps are treated as days
// regardless of candle interval.
const periodsPerYear = 365

// RoundTrip is a SELL paired with the BUY it closes.
type RoundTrip struct {
	Buy    models.Trade
	Sell   models.Trade
	Profit float64
}

// Analyze derives performance metrics from a valuation log and a trade log.
// initialCapital anchors total and annualised return.
func Analyze(valuations []models.ValuationSnapshot, trades []models.Trade, initialCapital float64) models.PerformanceMetrics {
	m := models.PerformanceMetrics{
		InitialCapital: initialCapital,
		FinalValue:     initialCapital,
		PeakValue:      initialCapital,
		TotalTrades:    len(trades),
	}
	applyTrades(&m, trades)
	if len(valuations) == 0 {
		return m
	}

	values := make([]float64, len(valuations))
	for i, v := range valuations {
		values[i] = v.TotalValue
	}
	first, last := valuations[0], valuations[len(valuations)-1]
	m.StartDate = first.Timestamp
	m.EndDate = last.Timestamp
	m.Days = int(last.Timestamp.Sub(first.Timestamp).Hours() / 24)
	m.FinalValue = values[len(values)-1]
	m.PeakValue = values[0]
	for _, v := range values {
		m.PeakValue = math.Max(m.PeakValue, v)
	}

	if initialCapital > 0 {
		m.TotalReturnPct = (m.FinalValue - initialCapital) / initialCapital * 100
		if m.Days > 0 && m.FinalValue > 0 {
			m.AnnualizedReturnPct = (math.Pow(m.FinalValue/initialCapital, float64(periodsPerYear)/float64(m.Days)) - 1) * 100
		}
	}

	m.MaxDrawdownPct = MaxDrawdown(values) * 100

	returns := features.SimpleReturns(values)
	if len(returns) > 0 {
		std := features.StdDev(returns)
		m.VolatilityPct = std * math.Sqrt(periodsPerYear) * 100
		if std > 0 {
			m.SharpeRatio = features.Mean(returns) / std * math.Sqrt(periodsPerYear)
		}
	}
	if m.MaxDrawdownPct > 0 {
		m.CalmarRatio = m.AnnualizedReturnPct / m.MaxDrawdownPct
	}
	return m
}

// MaxDrawdown returns the largest peak-to-trough decline as a fraction.
func MaxDrawdown(values []float64) float64 {
	peak, worst := 0.0, 0.0
	for i, v := range values {
		if i == 0 || v > peak {
			peak = v
		}
		if peak > 0 {
			worst = math.Max(worst, (peak-v)/peak)
		}
	}
	return worst
}

// PairTrades matches each SELL with the most recent earlier BUY of the same
// symbol that has not been matched yet. This is an approximation, not lot
// accounting; partial sells consume a whole BUY.
func PairTrades(trades []models.Trade) []RoundTrip {
	open := make(map[string][]models.Trade)
	var out []RoundTrip
	for _, t := range trades {
		switch t.Action {
		case models.ActionBuy:
			open[t.Symbol] = append(open[t.Symbol], t)
		case models.ActionSell:
			stack := open[t.Symbol]
			if len(stack) == 0 {
				continue
			}
			buy := stack[len(stack)-1]
			open[t.Symbol] = stack[:len(stack)-1]
			out = append(out, RoundTrip{
				Buy:    buy,
				Sell:   t,
				Profit: (t.Price-buy.Price)*t.Amount - t.Fee - buy.Fee,
			})
		}
	}
	return out
}

func applyTrades(m *models.PerformanceMetrics, trades []models.Trade) {
	trips := PairTrades(trades)
	m.CompletedTrades = len(trips)
	for _, rt := range trips {
		if rt.Profit > 0 {
			m.ProfitableTrades++
			m.TotalProfit += rt.Profit
		} else {
			m.LosingTrades++
			m.TotalLoss += -rt.Profit
		}
	}
	m.NetProfit = m.TotalProfit - m.TotalLoss
	if m.CompletedTrades > 0 {
		m.WinRate = float64(m.ProfitableTrades) / float64(m.CompletedTrades)
		m.AvgProfitPerTrade = m.NetProfit / float64(m.CompletedTrades)
	}
	if m.TotalLoss > 0 {
		m.ProfitFactor = m.TotalProfit / m.TotalLoss
	}
}
