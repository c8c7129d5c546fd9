package performance

import (
	"math"
	"testing"
	"time"

	"TradeDesk/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var day0 = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func snapshots(values ...float64) []models.ValuationSnapshot {
	out := make([]models.ValuationSnapshot, len(values))
	for i, v := range values {
		out[i] = models.ValuationSnapshot{Timestamp: day0.AddDate(0, 0, i), Cash: v, TotalValue: v}
	}
	return out
}

func trade(action models.Action, symbol string, price, amount float64, fee float64) models.Trade {
	return models.Trade{Action: action, Symbol: symbol, Price: price, Amount: amount, Fee: fee, GrossValue: price * amount}
}

func TestAnalyzeReturnsAndRisk(t *testing.T) {
	vals := []float64{100, 110, 99, 121}
	m := Analyze(snapshots(vals...), nil, 100)

	assert.InDelta(t, 21.0, m.TotalReturnPct, 1e-9)
	assert.Equal(t, 3, m.Days)
	assert.InDelta(t, (math.Pow(1.21, 365.0/3)-1)*100, m.AnnualizedReturnPct, 1e-6)
	assert.InDelta(t, 10.0, m.MaxDrawdownPct, 1e-9)
	assert.Equal(t, 121.0, m.PeakValue)
	assert.Equal(t, 121.0, m.FinalValue)

	returns := []float64{0.1, -0.1, (121.0 - 99.0) / 99.0}
	mean := (returns[0] + returns[1] + returns[2]) / 3
	var ss float64
	for _, r := range returns {
		ss += (r - mean) * (r - mean)
	}
	std := math.Sqrt(ss / 3)
	assert.InDelta(t, mean/std*math.Sqrt(365), m.SharpeRatio, 1e-9)
	assert.InDelta(t, std*math.Sqrt(365)*100, m.VolatilityPct, 1e-9)
	assert.InDelta(t, m.AnnualizedReturnPct/m.MaxDrawdownPct, m.CalmarRatio, 1e-9)
	assert.Equal(t, day0, m.StartDate)
}

func TestAnalyzeGuards(t *testing.T) {
	m := Analyze(snapshots(100, 100), nil, 100)
	assert.Zero(t, m.AnnualizedReturnPct)
	assert.Zero(t, m.SharpeRatio)
	assert.Zero(t, m.CalmarRatio)
	assert.Zero(t, m.ProfitFactor)
	assert.Zero(t, m.WinRate)

	// same-day snapshots: days == 0
	vs := snapshots(100, 120)
	vs[1].Timestamp = vs[0].Timestamp.Add(time.Hour)
	m = Analyze(vs, nil, 100)
	assert.Zero(t, m.AnnualizedReturnPct)
	assert.InDelta(t, 20.0, m.TotalReturnPct, 1e-9)

	m = Analyze(nil, nil, 500)
	assert.Equal(t, 500.0, m.FinalValue)
}

func TestPairTradesMostRecentBuy(t *testing.T) {
	trades := []models.Trade{
		trade(models.ActionBuy, "BTCUSD", 100, 1, 1),
		trade(models.ActionBuy, "BTCUSD", 120, 1, 1),
		trade(models.ActionBuy, "ETHUSD", 10, 1, 0),
		trade(models.ActionSell, "BTCUSD", 130, 1, 1),
		trade(models.ActionSell, "BTCUSD", 90, 1, 1),
		trade(models.ActionSell, "SOLUSD", 5, 1, 0),
	}
	trips := PairTrades(trades)
	require.Len(t, trips, 2)
	assert.Equal(t, 120.0, trips[0].Buy.Price)
	assert.InDelta(t, 8.0, trips[0].Profit, 1e-9)
	assert.Equal(t, 100.0, trips[1].Buy.Price)
	assert.InDelta(t, -12.0, trips[1].Profit, 1e-9)

	m := Analyze(nil, trades, 1000)
	assert.Equal(t, 6, m.TotalTrades)
	assert.Equal(t, 2, m.CompletedTrades)
	assert.Equal(t, 1, m.ProfitableTrades)
	assert.Equal(t, 1, m.LosingTrades)
	assert.InDelta(t, 0.5, m.WinRate, 1e-12)
	assert.InDelta(t, 8.0, m.TotalProfit, 1e-9)
	assert.InDelta(t, 12.0, m.TotalLoss, 1e-9)
	assert.InDelta(t, -4.0, m.NetProfit, 1e-9)
	assert.InDelta(t, 8.0/12.0, m.ProfitFactor, 1e-9)
	assert.InDelta(t, -2.0, m.AvgProfitPerTrade, 1e-9)
}

func TestMaxDrawdown(t *testing.T) {
	assert.InDelta(t, 0.5, MaxDrawdown([]float64{100, 200, 100, 150}), 1e-12)
	assert.Zero(t, MaxDrawdown([]float64{1, 2, 3}))
	assert.Zero(t, MaxDrawdown(nil))
}

func TestReportSections(t *testing.T) {
	m := Analyze(snapshots(10000, 10500, 10250), []models.Trade{
		trade(models.ActionBuy, "BTCUSD", 50000, 0.1, 13),
		trade(models.ActionSell, "BTCUSD", 51000, 0.1, 13.26),
	}, 10000)
	out := Report(models.BacktestRequest{Symbols: []string{"BTCUSD"}, Interval: "1h", PositionSizePct: 0.03}, m)
	for _, s := range []string{"CONFIGURATION", "RETURNS", "RISK METRICS", "TRADE STATISTICS", "PROFIT & LOSS"} {
		assert.Contains(t, out, s)
	}
	assert.Contains(t, out, "Initial Capital:    $10,000.00")
	assert.Contains(t, out, "Total Profit:       $73.74")
	assert.Contains(t, out, "Win Rate:           100.00%")
}

func TestMoney(t *testing.T) {
	assert.Equal(t, "$0.00", Money(0))
	assert.Equal(t, "$999.99", Money(999.99))
	assert.Equal(t, "$1,234,567.89", Money(1234567.891))
	assert.Equal(t, "-$1,000.50", Money(-1000.5))
}
