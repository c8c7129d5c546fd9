package models

// Requests for trading HTTP endpoints. Symbols are checked with the "symbol"
// validator and normalized by the handler.

type EvaluateRequest struct {
	Symbol string `json:"symbol" validate:"required,symbol"`
}

type BacktestHTTPRequest struct {
	Symbols         []string `json:"symbols" validate:"required,min=1,max=20,dive,required,symbol"`
	DaysBack        int      `json:"days_back" default:"30" validate:"gte=1,lte=365"`
	Interval        string   `json:"interval" default:"1h" validate:"oneof=1m 5m 15m 30m 1h 4h 1d 1w"`
	InitialCapital  float64  `json:"initial_capital" default:"10000" validate:"gt=0"`
	PositionSizePct float64  `json:"position_size_pct" default:"0.03" validate:"gt=0,lte=1"`
	Async           bool     `json:"async"`
}

type StrategyPatchRequest struct {
	Name    string   `param:"name" validate:"required"`
	Enabled *bool    `json:"enabled"`
	Weight  *float64 `json:"weight" validate:"omitempty,gte=0"`
}

type LatestDecisionRequest struct {
	Symbol string `query:"symbol" validate:"required,symbol"`
}

type TradesRequest struct {
	Symbol string `query:"symbol" validate:"omitempty,symbol"`
	Limit  int    `query:"limit" default:"100" validate:"gte=1,lte=5000"`
}

type BacktestJobRequest struct {
	ID string `param:"id" validate:"required,uuid"`
}
