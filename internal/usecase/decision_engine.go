package usecase

import (
	"context"
	"fmt"
	"math"
	"sync"

	"TradeDesk/internal/domain/models"
	domrepo "TradeDesk/internal/domain/repository"
	domsvc "TradeDesk/internal/domain/service"
	"TradeDesk/internal/services/aggregation"
	"TradeDesk/internal/services/strategy"
	"TradeDesk/pkg/config"
	applogger "TradeDesk/pkg/logger"
)

// StrategyError wraps a failed or panicking strategy evaluation.
type StrategyError struct {
	Strategy string
	Err      error
}

func (e *StrategyError) Error() string {
	return fmt.Sprintf("strategy %s: %v", e.Strategy, e.Err)
}

func (e *StrategyError) Unwrap() error { return e.Err }

type strategySlot struct {
	strategy domsvc.Strategy
	enabled  bool
	weight   float64
}

// StrategyInfo describes one registered strategy.
type StrategyInfo struct {
	Name    string  `json:"name"`
	Enabled bool    `json:"enabled"`
	Weight  float64 `json:"weight"`
}

// EngineSummary is the management view of the engine.
type EngineSummary struct {
	Method        string         `json:"aggregation_method"`
	MinConfidence float64        `json:"min_confidence"`
	Strategies    []StrategyInfo `json:"strategies"`
}

// DecisionEngine evaluates strategies and aggregates their opinions.
// Management calls may run concurrently with Evaluate, which works on a snapshot.
type DecisionEngine struct {
	mu      sync.RWMutex
	order   []string
	slots   map[string]*strategySlot
	method  string
	gate    *aggregation.Gate
	metrics domrepo.Metrics
	lgr     *applogger.Logger
}

// NewDecisionEngine builds the configured strategies through the registry.
func NewDecisionEngine(
	method string,
	minConfidence float64,
	strategies []config.StrategyConfig,
	reg *strategy.Registry,
	deps strategy.Deps,
	metrics domrepo.Metrics,
	lgr *applogger.Logger,
) (*DecisionEngine, error) {
	if !config.ValidMethod(method) {
		return nil, config.NewConfigError("aggregation_method", "unknown method %q", method)
	}
	gate, err := aggregation.NewGate(minConfidence)
	if err != nil {
		return nil, err
	}
	if lgr == nil {
		lgr = applogger.Nop()
	}
	e := &DecisionEngine{
		slots:   make(map[string]*strategySlot),
		method:  method,
		gate:    gate,
		metrics: orNop(metrics),
		lgr:     lgr,
	}
	for _, sc := range strategies {
		s, err := reg.Build(sc, deps)
		if err != nil {
			return nil, err
		}
		if err := e.AddStrategy(s, sc.Weight, sc.Enabled); err != nil {
			return nil, err
		}
	}
	return e, nil
}

func validWeight(name string, w float64) error {
	if w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
		return config.NewConfigError("strategies."+name+".weight", "must be >= 0, got %v", w)
	}
	return nil
}

// AddStrategy registers s, replacing any strategy with the same name.
func (e *DecisionEngine) AddStrategy(s domsvc.Strategy, weight float64, enabled bool) error {
	if err := validWeight(s.Name(), weight); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.slots[s.Name()]; !ok {
		e.order = append(e.order, s.Name())
	}
	e.slots[s.Name()] = &strategySlot{strategy: s, enabled: enabled, weight: weight}
	return nil
}

// RemoveStrategy reports whether name was registered.
func (e *DecisionEngine) RemoveStrategy(name string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.slots[name]; !ok {
		return false
	}
	delete(e.slots, name)
	for i, n := range e.order {
		if n == name {
			e.order = append(e.order[:i], e.order[i+1:]...)
			break
		}
	}
	return true
}

func (e *DecisionEngine) setEnabled(name string, enabled bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.slots[name]
	if !ok {
		return fmt.Errorf("strategy %q: %w", name, domrepo.ErrNotFound)
	}
	s.enabled = enabled
	return nil
}

func (e *DecisionEngine) EnableStrategy(name string) error  { return e.setEnabled(name, true) }
func (e *DecisionEngine) DisableStrategy(name string) error { return e.setEnabled(name, false) }

func (e *DecisionEngine) SetWeight(name string, weight float64) error {
	if err := validWeight(name, weight); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.slots[name]
	if !ok {
		return fmt.Errorf("strategy %q: %w", name, domrepo.ErrNotFound)
	}
	s.weight = weight
	return nil
}

func (e *DecisionEngine) SetMethod(method string) error {
	if !config.ValidMethod(method) {
		return config.NewConfigError("aggregation_method", "unknown method %q", method)
	}
	e.mu.Lock()
	e.method = method
	e.mu.Unlock()
	return nil
}

func (e *DecisionEngine) SetMinConfidence(v float64) error {
	g, err := aggregation.NewGate(v)
	if err != nil {
		return err
	}
	e.mu.Lock()
	e.gate = g
	e.mu.Unlock()
	return nil
}

func (e *DecisionEngine) Summary() EngineSummary {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := EngineSummary{Method: e.method, MinConfidence: e.gate.Threshold()}
	for _, n := range e.order {
		s := e.slots[n]
		out.Strategies = append(out.Strategies, StrategyInfo{Name: n, Enabled: s.enabled, Weight: s.weight})
	}
	return out
}

type evalSnapshot struct {
	method string
	gate   *aggregation.Gate
	names  []string
	slots  []strategySlot
}

func (e *DecisionEngine) snapshot() evalSnapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	s := evalSnapshot{method: e.method, gate: e.gate}
	for _, n := range e.order {
		s.names = append(s.names, n)
		s.slots = append(s.slots, *e.slots[n])
	}
	return s
}

// Evaluate runs every enabled strategy against mc and returns the gated decision.
// Failing strategies are excluded and listed in Errors.
func (e *DecisionEngine) Evaluate(ctx context.Context, mc models.MarketContext) *models.AggregatedDecision {
	snap := e.snapshot()
	d := &models.AggregatedDecision{
		Symbol:    mc.Symbol,
		Timestamp: mc.Timestamp,
		Price:     mc.Price,
		Method:    snap.method,
	}

	opinions := make([]models.Opinion, 0, len(snap.slots))
	for i, slot := range snap.slots {
		if !slot.enabled {
			continue
		}
		op, err := e.run(ctx, slot.strategy, mc)
		if err != nil {
			if d.Errors == nil {
				d.Errors = make(map[string]string)
			}
			d.Errors[snap.names[i]] = err.Error()
			e.metrics.RecordStrategyError(snap.names[i])
			e.lgr.Warn("strategy excluded",
				applogger.String("strategy", snap.names[i]),
				applogger.String("symbol", mc.Symbol),
				applogger.Error(err),
			)
			continue
		}
		op.Strategy = snap.names[i]
		op.Weight = slot.weight
		op.Enabled = true
		opinions = append(opinions, op)
	}
	d.PerStrategy = opinions

	// method was validated when set
	r, _ := aggregation.Aggregate(snap.method, opinions)
	d.Signal, d.Reason, d.Execution = snap.gate.Apply(r)
	d.Confidence = r.Confidence

	e.metrics.RecordDecision(mc.Symbol, snap.method, d.Signal, d.Confidence, d.Execution.WouldExecute)
	if d.Execution.NearMiss {
		e.metrics.RecordNearMiss(mc.Symbol)
	}
	return d
}

// run evaluates one strategy, turning panics into StrategyErrors and clamping confidence.
func (e *DecisionEngine) run(ctx context.Context, s domsvc.Strategy, mc models.MarketContext) (op models.Opinion, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = &StrategyError{Strategy: s.Name(), Err: fmt.Errorf("panic: %v", rec)}
		}
	}()
	op, err = s.Evaluate(ctx, mc)
	if err != nil {
		return op, &StrategyError{Strategy: s.Name(), Err: err}
	}
	if _, perr := models.ParseSignal(string(op.Signal)); perr != nil {
		return op, &StrategyError{Strategy: s.Name(), Err: perr}
	}
	if op.Confidence < 0 || op.Confidence > 1 || math.IsNaN(op.Confidence) {
		e.lgr.Warn("strategy confidence clamped",
			applogger.String("strategy", s.Name()),
			applogger.Float64("confidence", op.Confidence),
		)
		if math.IsNaN(op.Confidence) {
			op.Confidence = 0
		}
		op.Confidence = models.Clamp01(op.Confidence)
	}
	return op, nil
}
