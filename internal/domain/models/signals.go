package models

import "time"

// ExecutionGate is the confidence gate telemetry attached to every decision.
// OriginalSignal and OriginalConfidence keep the pre-gate values so thresholds
// can be tuned without replaying history.
type ExecutionGate struct {
	WouldExecute       bool    `json:"would_execute"`
	Threshold          float64 `json:"threshold"`
	Gap                float64 `json:"gap"`
	NearMiss           bool    `json:"near_miss"`
	OriginalSignal     Signal  `json:"original_signal"`
	OriginalConfidence float64 `json:"original_confidence"`
}

// AggregatedDecision is the engine output for one symbol evaluation.
// Note: no transport (kafka/http) concerns here.
type AggregatedDecision struct {
	ID          string            `json:"id,omitempty"`
	Symbol      string            `json:"symbol"`
	Timestamp   time.Time         `json:"timestamp"`
	Price       float64           `json:"price"`
	Method      string            `json:"aggregation_method"`
	Signal      Signal            `json:"final_signal"`
	Confidence  float64           `json:"final_confidence"`
	Reason      string            `json:"final_reason"`
	PerStrategy []Opinion         `json:"per_strategy"`
	Execution   ExecutionGate     `json:"execution"`
	Errors      map[string]string `json:"errors,omitempty"`
}
