package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"TradeDesk/internal/domain/models"
	domrepo "TradeDesk/internal/domain/repository"
	applogger "TradeDesk/pkg/logger"
)

// CycleLockKey is the distributed lock held while a live cycle runs.
const CycleLockKey = "cycle:lock"

// ContextProvider builds the live strategy context for a symbol.
type ContextProvider interface {
	Context(ctx context.Context, symbol string, headlines []string) (models.MarketContext, error)
}

// CycleOptions configures the live cycle.
type CycleOptions struct {
	Symbols         []string
	PositionSizePct float64
	LockTTL         time.Duration
}

// TradeCycle evaluates and executes every configured symbol. Scheduled and
// manual runs share one mutex so the ledger is never mutated concurrently.
type TradeCycle struct {
	mu        sync.Mutex
	engine    *DecisionEngine
	exec      *Executor
	market    ContextProvider
	headlines *HeadlineBuffer
	lock      domrepo.CycleLock
	opts      CycleOptions
	metrics   domrepo.Metrics
	lgr       *applogger.Logger

	statusMu sync.RWMutex
	status   models.LiveStatus
	now      func() time.Time
}

func NewTradeCycle(
	engine *DecisionEngine,
	exec *Executor,
	market ContextProvider,
	headlines *HeadlineBuffer,
	lock domrepo.CycleLock,
	opts CycleOptions,
	metrics domrepo.Metrics,
	lgr *applogger.Logger,
) *TradeCycle {
	if lgr == nil {
		lgr = applogger.Nop()
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = 5 * time.Minute
	}
	return &TradeCycle{
		engine:    engine,
		exec:      exec,
		market:    market,
		headlines: headlines,
		lock:      lock,
		opts:      opts,
		metrics:   orNop(metrics),
		lgr:       lgr,
		status:    models.LiveStatus{Message: "Waiting for first cycle"},
		now:       time.Now,
	}
}

// Restore seeds the ledger from the persisted trade log: open positions are
// replayed and cash is the initial capital plus the net trade cash flow,
// floored at zero.
func (c *TradeCycle) Restore(ctx context.Context, store domrepo.Persistence, initialCapital float64) error {
	positions, err := store.GetOpenPositions(ctx)
	if err != nil {
		return fmt.Errorf("restore positions: %w", err)
	}
	flow, err := store.GetCashFlow(ctx)
	if err != nil {
		return fmt.Errorf("restore cash: %w", err)
	}
	cash := initialCapital + flow
	if cash < 0 {
		cash = 0
	}
	c.mu.Lock()
	c.exec.Ledger().Restore(cash, positions)
	c.mu.Unlock()
	c.lgr.Info("ledger restored", applogger.Int("positions", len(positions)), applogger.Float64("cash", cash))
	return nil
}

// Run executes one cycle. A lock held by another instance skips the run.
func (c *TradeCycle) Run(ctx context.Context, trigger models.Trigger) *models.CycleReport {
	started := c.now().UTC()
	report := &models.CycleReport{Trigger: trigger, StartedAt: started}

	if c.lock != nil {
		ok, err := c.lock.TryLock(ctx, CycleLockKey, c.opts.LockTTL)
		switch {
		case err != nil:
			c.metrics.RecordError("cycle_lock")
			c.lgr.Warn("cycle lock unavailable, running unlocked", applogger.Error(err))
		case !ok:
			report.Skipped = true
			report.EndedAt = c.now().UTC()
			report.Message = "Skipped: cycle running elsewhere"
			c.metrics.RecordCycle(string(trigger), 0, true)
			c.setStatus(report.EndedAt, report.Message)
			return report
		default:
			defer func() {
				if err := c.lock.Unlock(context.WithoutCancel(ctx), CycleLockKey); err != nil {
					c.lgr.Warn("cycle unlock failed", applogger.Error(err))
				}
			}()
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	prices := make(map[string]float64, len(c.opts.Symbols))
	trades := 0
	for _, sym := range c.opts.Symbols {
		out := c.runSymbol(ctx, sym, prices)
		if out.Execution != nil && out.Execution.Trade != nil {
			trades++
		}
		report.Symbols = append(report.Symbols, out)
	}

	value := c.exec.Ledger().TotalValue()
	c.metrics.RecordPortfolioValue(value)
	report.EndedAt = c.now().UTC()
	report.Message = fmt.Sprintf("Cycle complete: %d symbols, %d trades, portfolio %.2f", len(c.opts.Symbols), trades, value)
	c.metrics.RecordCycle(string(trigger), report.EndedAt.Sub(started).Seconds(), false)
	c.setStatus(report.EndedAt, report.Message)
	c.lgr.Info("cycle finished",
		applogger.String("trigger", string(trigger)),
		applogger.Int("trades", trades),
		applogger.Float64("portfolio_value", value),
	)
	return report
}

func (c *TradeCycle) runSymbol(ctx context.Context, sym string, prices map[string]float64) models.SymbolOutcome {
	out := models.SymbolOutcome{Symbol: sym}
	var headlines []string
	if c.headlines != nil {
		headlines = c.headlines.Drain(sym)
	}
	mc, err := c.market.Context(ctx, sym, headlines)
	if err != nil {
		c.metrics.RecordError("market_data")
		c.lgr.Warn("market context failed", applogger.String("symbol", sym), applogger.Error(err))
		out.Error = err.Error()
		return out
	}
	if mc.Price > 0 {
		prices[sym] = mc.Price
		c.metrics.RecordLastPrice(sym, mc.Price)
	}

	d := c.engine.Evaluate(ctx, mc)
	res := c.exec.Execute(ctx, d, mc.Price, models.Sizing{PositionSizePct: c.opts.PositionSizePct, Prices: prices})
	out.Decision = d
	out.Execution = &res
	return out
}

// Evaluate returns a decision from live context without executing it.
func (c *TradeCycle) Evaluate(ctx context.Context, symbol string) (*models.AggregatedDecision, error) {
	mc, err := c.market.Context(ctx, symbol, nil)
	if err != nil {
		return nil, err
	}
	return c.engine.Evaluate(ctx, mc), nil
}

// Portfolio marks positions at the given prices and returns a snapshot.
func (c *TradeCycle) Portfolio(prices map[string]float64) models.PortfolioView {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.exec.Ledger().MarkPrices(prices)
	return c.exec.Ledger().View()
}

func (c *TradeCycle) Symbols() []string { return c.opts.Symbols }

func (c *TradeCycle) setStatus(t time.Time, msg string) {
	c.statusMu.Lock()
	c.status.Time = &t
	c.status.Message = msg
	c.statusMu.Unlock()
}

// SetNextRun records when the scheduler fires next.
func (c *TradeCycle) SetNextRun(t time.Time) {
	c.statusMu.Lock()
	c.status.NextRun = &t
	c.statusMu.Unlock()
}

func (c *TradeCycle) LastStatus() models.LiveStatus {
	c.statusMu.RLock()
	defer c.statusMu.RUnlock()
	return c.status
}

// Scheduler runs the cycle on a fixed interval. It does not run at startup.
type Scheduler struct {
	cycle    *TradeCycle
	interval time.Duration
	lgr      *applogger.Logger
}

func NewScheduler(cycle *TradeCycle, interval time.Duration, lgr *applogger.Logger) *Scheduler {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if lgr == nil {
		lgr = applogger.Nop()
	}
	return &Scheduler{cycle: cycle, interval: interval, lgr: lgr}
}

// Run blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	t := time.NewTicker(s.interval)
	defer t.Stop()
	s.cycle.SetNextRun(time.Now().Add(s.interval).UTC())
	s.lgr.Info("scheduler started", applogger.Duration("interval", s.interval))
	for {
		select {
		case <-ctx.Done():
			s.lgr.Info("scheduler stopped")
			return
		case <-t.C:
			s.cycle.Run(ctx, models.TriggerScheduled)
			s.cycle.SetNextRun(time.Now().Add(s.interval).UTC())
		}
	}
}
