package metrics

import "TradeDesk/internal/domain/models"

// Nop discards every measurement. Backtests and tests use it.
type Nop struct{}

func (Nop) RecordDecision(string, string, models.Signal, float64, bool) {}
func (Nop) RecordNearMiss(string)                                       {}
func (Nop) RecordStrategyError(string)                                  {}
func (Nop) RecordTrade(string, models.Action, bool)                     {}
func (Nop) RecordCycle(string, float64, bool)                           {}
func (Nop) RecordPortfolioValue(float64)                                {}
func (Nop) RecordLastPrice(string, float64)                             {}
func (Nop) RecordError(string)                                          {}
func (Nop) RecordLatency(string, float64)                               {}
