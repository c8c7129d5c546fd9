package usecase

import (
	"context"
	"fmt"

	"TradeDesk/internal/domain/models"
	domrepo "TradeDesk/internal/domain/repository"
	"TradeDesk/internal/services/ledger"
	applogger "TradeDesk/pkg/logger"
	pkgmetrics "TradeDesk/pkg/metrics"
)

// orNop substitutes the discarding recorder for a nil Metrics.
func orNop(m domrepo.Metrics) domrepo.Metrics {
	if m == nil {
		return pkgmetrics.Nop{}
	}
	return m
}

// Executor applies gated decisions to a ledger and records the outcome.
// Recording is best effort: a failed write never undoes a ledger mutation.
type Executor struct {
	ledger   *ledger.Ledger
	store    domrepo.Persistence
	notifier domrepo.Notifier
	metrics  domrepo.Metrics
	lgr      *applogger.Logger
}

func NewExecutor(l *ledger.Ledger, store domrepo.Persistence, notifier domrepo.Notifier, metrics domrepo.Metrics, lgr *applogger.Logger) *Executor {
	if lgr == nil {
		lgr = applogger.Nop()
	}
	return &Executor{ledger: l, store: store, notifier: notifier, metrics: orNop(metrics), lgr: lgr}
}

func (x *Executor) Ledger() *ledger.Ledger { return x.ledger }

// Execute sizes and applies d at price. BUY spends PositionSizePct of the
// portfolio value; SELL liquidates the whole position.
func (x *Executor) Execute(ctx context.Context, d *models.AggregatedDecision, price float64, sizing models.Sizing) models.ExecutionResult {
	prices := make(map[string]float64, len(sizing.Prices)+1)
	for k, v := range sizing.Prices {
		prices[k] = v
	}
	if price > 0 {
		prices[d.Symbol] = price
	}
	x.ledger.MarkPrices(prices)

	var res models.ExecutionResult
	switch d.Signal {
	case models.SignalBuy:
		if price <= 0 {
			res = models.ExecutionResult{Action: models.ActionBuy, Symbol: d.Symbol, Reason: fmt.Sprintf("no price for %s", d.Symbol)}
			break
		}
		amount := sizing.PositionSizePct * x.ledger.TotalValue() / price
		res = x.ledger.Buy(d.Symbol, price, amount, d.Timestamp)
	case models.SignalSell:
		pos, ok := x.ledger.Position(d.Symbol)
		if !ok {
			res = models.ExecutionResult{Action: models.ActionSell, Symbol: d.Symbol, Reason: fmt.Sprintf("no position in %s", d.Symbol)}
			break
		}
		res = x.ledger.Sell(d.Symbol, price, pos.Amount, d.Timestamp)
	default:
		res = x.ledger.Hold(d.Symbol, d.Reason)
	}

	x.record(ctx, d, &res)
	return res
}

func (x *Executor) record(ctx context.Context, d *models.AggregatedDecision, res *models.ExecutionResult) {
	id, err := x.store.RecordDecision(ctx, d)
	if err != nil {
		x.metrics.RecordError("persist_decision")
		x.lgr.Error("record decision failed", applogger.String("symbol", d.Symbol), applogger.Error(err))
	} else {
		d.ID = id
	}
	if err := x.notifier.OnDecision(ctx, d); err != nil {
		x.metrics.RecordError("notify_decision")
		x.lgr.Warn("decision notification failed", applogger.String("symbol", d.Symbol), applogger.Error(err))
	}

	if res.Action != models.ActionHold {
		x.metrics.RecordTrade(d.Symbol, res.Action, res.Success)
	}
	if !res.Success || res.Trade == nil {
		return
	}
	res.Trade.DecisionID = d.ID
	if err := x.store.RecordTrade(ctx, res.Trade, d.ID); err != nil {
		x.metrics.RecordError("persist_trade")
		x.lgr.Error("record trade failed", applogger.String("symbol", d.Symbol), applogger.Error(err))
	}
	if err := x.notifier.OnTrade(ctx, res.Trade); err != nil {
		x.metrics.RecordError("notify_trade")
		x.lgr.Warn("trade notification failed", applogger.String("symbol", d.Symbol), applogger.Error(err))
	}
	x.lgr.Info("trade executed",
		applogger.String("symbol", d.Symbol),
		applogger.String("action", string(res.Action)),
		applogger.Float64("price", res.Trade.Price),
		applogger.Float64("amount", res.Trade.Amount),
		applogger.Float64("fee", res.Trade.Fee),
	)
}
