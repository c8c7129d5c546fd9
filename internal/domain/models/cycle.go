package models

import "time"

// Trigger names what started a live cycle.
type Trigger string

const (
	TriggerScheduled Trigger = "scheduled"
	TriggerManual    Trigger = "manual"
)

// SymbolOutcome is the per-symbol part of a cycle report.
type SymbolOutcome struct {
	Symbol    string              `json:"symbol"`
	Decision  *AggregatedDecision `json:"decision,omitempty"`
	Execution *ExecutionResult    `json:"execution,omitempty"`
	Error     string              `json:"error,omitempty"`
}

// CycleReport summarizes one live decision cycle.
type CycleReport struct {
	Trigger   Trigger         `json:"trigger"`
	StartedAt time.Time       `json:"started_at"`
	EndedAt   time.Time       `json:"ended_at"`
	Skipped   bool            `json:"skipped"`
	Message   string          `json:"message"`
	Symbols   []SymbolOutcome `json:"symbols"`
}

// LiveStatus is the last cycle status exposed to operators.
type LiveStatus struct {
	Time    *time.Time `json:"time"`
	Message string     `json:"message"`
	NextRun *time.Time `json:"next_run"`
}
