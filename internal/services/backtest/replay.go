package backtest

import (
	"context"
	"fmt"
	"sort"
	"time"

	"TradeDesk/internal/domain/models"
	"TradeDesk/internal/services/ledger"
	"TradeDesk/pkg/config"
	applogger "TradeDesk/pkg/logger"
)

// Evaluator turns a market context into a gated decision.
type Evaluator interface {
	Evaluate(ctx context.Context, mc models.MarketContext) *models.AggregatedDecision
}

// Settings controls one replay.
type Settings struct {
	Warmup          int
	Window          int
	MinConfidence   float64
	PositionSizePct float64
}

func (s Settings) validate() error {
	if s.Warmup < 0 {
		return config.NewConfigError("backtest.warmup", "must be >= 0, got %d", s.Warmup)
	}
	if s.Window <= 0 {
		return config.NewConfigError("backtest.window", "must be > 0, got %d", s.Window)
	}
	if s.Warmup > s.Window {
		return config.NewConfigError("backtest.warmup", "must not exceed window (%d > %d)", s.Warmup, s.Window)
	}
	if s.PositionSizePct <= 0 || s.PositionSizePct > 1 {
		return config.NewConfigError("backtest.position_size_pct", "must be in (0,1], got %v", s.PositionSizePct)
	}
	return nil
}

// Stats counts what the replay did.
type Stats struct {
	Steps       int
	Evaluations int
	Errors      int
}

// Driver replays candle series through an evaluator into a ledger.
// It runs on the caller's goroutine and reads no clock.
type Driver struct {
	settings Settings
	eval     Evaluator
	ledger   *ledger.Ledger
	lgr      *applogger.Logger
}

func NewDriver(s Settings, eval Evaluator, l *ledger.Ledger, lgr *applogger.Logger) (*Driver, error) {
	if err := s.validate(); err != nil {
		return nil, err
	}
	if lgr == nil {
		lgr = applogger.Nop()
	}
	return &Driver{settings: s, eval: eval, ledger: l, lgr: lgr}, nil
}

// Timeline returns the sorted union of all candle timestamps.
func Timeline(series map[string][]models.Candle) []time.Time {
	seen := make(map[int64]time.Time)
	for _, cs := range series {
		for _, c := range cs {
			seen[c.Timestamp.UnixNano()] = c.Timestamp
		}
	}
	out := make([]time.Time, 0, len(seen))
	for _, t := range seen {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// Run walks the timeline once. At each timestamp it values the ledger, then
// evaluates every symbol in order that has a candle there and enough history.
// Fills on the final timestamp get one closing valuation after the loop.
func (d *Driver) Run(ctx context.Context, symbols []string, series map[string][]models.Candle) Stats {
	series = normalizeSeries(series)
	var (
		st     Stats
		last   time.Time
		valued int
		cursor = make(map[string]int, len(series))
		prices = make(map[string]float64, len(series))
	)

	for _, ts := range Timeline(series) {
		current := make(map[string]int)
		for sym, cs := range series {
			i := cursor[sym]
			if i < len(cs) && cs[i].Timestamp.Equal(ts) {
				prices[sym] = cs[i].Close
				current[sym] = i
				cursor[sym] = i + 1
			}
		}
		d.ledger.Snapshot(ts, prices)
		valued = d.ledger.TradeCount()
		last = ts
		st.Steps++

		for _, sym := range symbols {
			idx, ok := current[sym]
			if !ok || idx < d.settings.Warmup {
				continue
			}
			st.Evaluations++
			if err := d.step(ctx, sym, series[sym], idx, prices); err != nil {
				st.Errors++
				d.lgr.Warn("backtest step failed",
					applogger.String("symbol", sym),
					applogger.String("timestamp", ts.Format(time.RFC3339)),
					applogger.Error(err),
				)
			}
		}
	}
	if !last.IsZero() && d.ledger.TradeCount() > valued {
		d.ledger.Snapshot(last, prices)
	}
	return st
}

func (d *Driver) step(ctx context.Context, symbol string, cs []models.Candle, idx int, prices map[string]float64) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
	}()
	start := idx - d.settings.Window + 1
	if start < 0 {
		start = 0
	}
	mc := models.ContextFromCandles(symbol, cs[start:idx+1], nil)
	dec := d.eval.Evaluate(ctx, mc)
	if dec == nil {
		return fmt.Errorf("no decision")
	}

	price := cs[idx].Close
	switch {
	case dec.Signal == models.SignalBuy && dec.Confidence > d.settings.MinConfidence:
		amount := d.settings.PositionSizePct * d.ledger.TotalValue() / price
		d.ledger.Buy(symbol, price, amount, mc.Timestamp)
	case dec.Signal == models.SignalSell:
		if p, ok := d.ledger.Position(symbol); ok {
			d.ledger.Sell(symbol, price, p.Amount, mc.Timestamp)
		}
	}
	return nil
}

// normalizeSeries sorts each series and drops repeated timestamps.
func normalizeSeries(in map[string][]models.Candle) map[string][]models.Candle {
	out := make(map[string][]models.Candle, len(in))
	for sym, cs := range in {
		cp := append([]models.Candle(nil), cs...)
		sort.SliceStable(cp, func(i, j int) bool { return cp[i].Timestamp.Before(cp[j].Timestamp) })
		uniq := cp[:0]
		for i, c := range cp {
			if i > 0 && c.Timestamp.Equal(uniq[len(uniq)-1].Timestamp) {
				continue
			}
			uniq = append(uniq, c)
		}
		out[sym] = uniq
	}
	return out
}
