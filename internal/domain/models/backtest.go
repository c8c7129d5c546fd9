package models

import "time"

// BacktestRequest describes one replay run.
type BacktestRequest struct {
	Symbols         []string `json:"symbols"`
	DaysBack        int      `json:"days_back"`
	Interval        string   `json:"interval"`
	InitialCapital  float64  `json:"initial_capital"`
	PositionSizePct float64  `json:"position_size_pct"`
}

// PerformanceMetrics is derived from a valuation log and a trade log.
type PerformanceMetrics struct {
	TotalReturnPct      float64 `json:"total_return_pct"`
	AnnualizedReturnPct float64 `json:"annualized_return_pct"`
	MaxDrawdownPct      float64 `json:"max_drawdown_pct"`
	VolatilityPct       float64 `json:"volatility_pct"`
	SharpeRatio         float64 `json:"sharpe_ratio"`
	CalmarRatio         float64 `json:"calmar_ratio"`

	TotalTrades      int     `json:"total_trades"`
	CompletedTrades  int     `json:"completed_trades"`
	WinRate          float64 `json:"win_rate"`
	ProfitableTrades int     `json:"profitable_trades"`
	LosingTrades     int     `json:"losing_trades"`

	TotalProfit       float64 `json:"total_profit"`
	TotalLoss         float64 `json:"total_loss"`
	NetProfit         float64 `json:"net_profit"`
	ProfitFactor      float64 `json:"profit_factor"`
	AvgProfitPerTrade float64 `json:"avg_profit_per_trade"`

	InitialCapital float64   `json:"initial_capital"`
	FinalValue     float64   `json:"final_value"`
	PeakValue      float64   `json:"peak_value"`
	Days           int       `json:"backtest_days"`
	StartDate      time.Time `json:"start_date"`
	EndDate        time.Time `json:"end_date"`
}

// BacktestResult is the full output of a replay.
type BacktestResult struct {
	Request        BacktestRequest     `json:"request"`
	Trades         []Trade             `json:"trades"`
	ValuationLog   []ValuationSnapshot `json:"valuation_log"`
	Metrics        PerformanceMetrics  `json:"metrics"`
	Report         string              `json:"report,omitempty"`
	SkippedSymbols map[string]string   `json:"skipped_symbols,omitempty"`
	Steps          int                 `json:"steps"`
	Errors         int                 `json:"errors"`
}

// BacktestJob tracks an asynchronous backtest.
type BacktestJob struct {
	ID        string          `json:"id"`
	Status    string          `json:"status"`
	Request   BacktestRequest `json:"request"`
	Result    *BacktestResult `json:"result,omitempty"`
	Error     string          `json:"error,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

const (
	JobQueued  = "queued"
	JobRunning = "running"
	JobDone    = "done"
	JobFailed  = "failed"
)
