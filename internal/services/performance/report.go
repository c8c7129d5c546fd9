package performance

import (
	"fmt"
	"strings"

	"TradeDesk/internal/domain/models"

	"github.com/shopspring/decimal"
)

const reportWidth = 70

// Report renders a plain-text backtest report.
func Report(req models.BacktestRequest, m models.PerformanceMetrics) string {
	var b strings.Builder
	rule := strings.Repeat("=", reportWidth)
	line := strings.Repeat("-", reportWidth)
	section := func(title string) {
		b.WriteString(title + "\n" + line + "\n")
	}
	row := func(label, value string) {
		fmt.Fprintf(&b, "%-20s%s\n", label+":", value)
	}

	b.WriteString(rule + "\nBACKTEST PERFORMANCE REPORT\n" + rule + "\n\n")

	section("CONFIGURATION")
	row("Symbols", strings.Join(req.Symbols, ", "))
	row("Period", fmt.Sprintf("%s to %s (%d days)", m.StartDate.Format("2006-01-02"), m.EndDate.Format("2006-01-02"), m.Days))
	row("Interval", req.Interval)
	row("Initial Capital", Money(m.InitialCapital))
	row("Position Size", Percent(req.PositionSizePct*100))
	b.WriteString("\n")

	section("RETURNS")
	row("Total Return", Percent(m.TotalReturnPct))
	row("Annualized Return", Percent(m.AnnualizedReturnPct))
	row("Final Value", Money(m.FinalValue))
	row("Peak Value", Money(m.PeakValue))
	row("Net Profit", Money(m.NetProfit))
	b.WriteString("\n")

	section("RISK METRICS")
	row("Max Drawdown", Percent(m.MaxDrawdownPct))
	row("Volatility", Percent(m.VolatilityPct))
	row("Sharpe Ratio", fixed(m.SharpeRatio))
	row("Calmar Ratio", fixed(m.CalmarRatio))
	b.WriteString("\n")

	section("TRADE STATISTICS")
	row("Total Trades", fmt.Sprintf("%d", m.TotalTrades))
	row("Completed Trades", fmt.Sprintf("%d", m.CompletedTrades))
	row("Win Rate", Percent(m.WinRate*100))
	row("Profitable Trades", fmt.Sprintf("%d", m.ProfitableTrades))
	row("Losing Trades", fmt.Sprintf("%d", m.LosingTrades))
	b.WriteString("\n")

	section("PROFIT & LOSS")
	row("Total Profit", Money(m.TotalProfit))
	row("Total Loss", Money(m.TotalLoss))
	row("Net Profit", Money(m.NetProfit))
	row("Profit Factor", fixed(m.ProfitFactor))
	row("Avg Per Trade", Money(m.AvgProfitPerTrade))
	b.WriteString("\n" + rule + "\n")
	return b.String()
}

func fixed(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}

// Percent formats v (already in percent) with two decimals.
func Percent(v float64) string {
	return fixed(v) + "%"
}

// Money formats v as dollars with thousands separators, e.g. -$1,234.50.
func Money(v float64) string {
	d := decimal.NewFromFloat(v).Round(2)
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Abs()
	}
	s := d.StringFixed(2)
	intPart, frac := s[:len(s)-3], s[len(s)-3:]
	var grouped strings.Builder
	for i, c := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			grouped.WriteByte(',')
		}
		grouped.WriteRune(c)
	}
	return sign + "$" + grouped.String() + frac
}
