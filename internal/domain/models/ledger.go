package models

import "time"

// Action is a ledger operation.
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionHold Action = "HOLD"
)

// Position is an open holding. Zero-amount positions are never kept.
type Position struct {
	Symbol    string  `json:"symbol"`
	Amount    float64 `json:"amount"`
	AvgCost   float64 `json:"avg_cost"`
	LastPrice float64 `json:"last_price"`
}

// CostBasis is amount times average cost.
func (p Position) CostBasis() float64 { return p.Amount * p.AvgCost }

// MarketValue is amount times the last seen price.
func (p Position) MarketValue() float64 { return p.Amount * p.LastPrice }

// UnrealizedPnL is market value minus cost basis.
func (p Position) UnrealizedPnL() float64 { return p.MarketValue() - p.CostBasis() }

// Trade is an append-only execution record.
type Trade struct {
	Timestamp  time.Time `json:"timestamp"`
	Action     Action    `json:"action"`
	Symbol     string    `json:"symbol"`
	Price      float64   `json:"price"`
	Amount     float64   `json:"amount"`
	GrossValue float64   `json:"gross_value"`
	Fee        float64   `json:"fee"`
	NetValue   float64   `json:"net_value"`
	DecisionID string    `json:"linked_decision_id,omitempty"`
}

// ValuationSnapshot is the portfolio value at one evaluated timestamp.
type ValuationSnapshot struct {
	Timestamp     time.Time `json:"timestamp"`
	Cash          float64   `json:"cash"`
	HoldingsValue float64   `json:"holdings_value"`
	TotalValue    float64   `json:"total_value"`
}

// ExecutionResult is the uniform outcome of buy, sell and hold.
// Rejections are values with Success=false, not errors.
type ExecutionResult struct {
	Success bool   `json:"success"`
	Action  Action `json:"action"`
	Symbol  string `json:"symbol"`
	Reason  string `json:"reason"`
	Trade   *Trade `json:"trade,omitempty"`
}

// Sizing carries the parameters used to turn a decision into an order size.
type Sizing struct {
	PositionSizePct float64
	// Prices values every open position; the decision symbol uses the execution price.
	Prices map[string]float64
}

// PortfolioView is a read-only snapshot of a ledger.
type PortfolioView struct {
	Cash          float64    `json:"cash"`
	Positions     []Position `json:"positions"`
	HoldingsValue float64    `json:"holdings_value"`
	TotalValue    float64    `json:"total_value"`
	TradeCount    int        `json:"trade_count"`
}
