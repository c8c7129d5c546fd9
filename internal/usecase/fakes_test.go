package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"TradeDesk/internal/domain/models"
	domrepo "TradeDesk/internal/domain/repository"
	"TradeDesk/internal/services/strategy"
	"TradeDesk/pkg/config"
	"TradeDesk/pkg/metrics"
)

type fixedStrategy struct {
	name string
	op   models.Opinion
	err  error
	boom bool
}

func (s *fixedStrategy) Name() string { return s.name }

func (s *fixedStrategy) Evaluate(context.Context, models.MarketContext) (models.Opinion, error) {
	if s.boom {
		panic("indicator exploded")
	}
	return s.op, s.err
}

func opinion(sig models.Signal, conf float64) models.Opinion {
	return models.Opinion{Signal: sig, Confidence: conf, Reason: string(sig) + " reason"}
}

func newEngine(method string, minConf float64, strategies ...*fixedStrategy) *DecisionEngine {
	e, err := NewDecisionEngine(method, minConf, nil, strategy.NewRegistry(), strategy.Deps{}, metrics.Nop{}, nil)
	if err != nil {
		panic(err)
	}
	for _, s := range strategies {
		if err := e.AddStrategy(s, 1.0, true); err != nil {
			panic(err)
		}
	}
	return e
}

var errStoreDown = errors.New("store down")

// failingStore fails every write.
type failingStore struct{ *memStore }

func (f failingStore) RecordDecision(context.Context, *models.AggregatedDecision) (string, error) {
	return "", errStoreDown
}

func (f failingStore) RecordTrade(context.Context, *models.Trade, string) error { return errStoreDown }

type memStore struct {
	mu        sync.Mutex
	decisions []models.AggregatedDecision
	trades    []models.Trade
	positions []models.Position
}

func (m *memStore) Init(context.Context) error { return nil }
func (m *memStore) RecordDecision(_ context.Context, d *models.AggregatedDecision) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.decisions = append(m.decisions, *d)
	return "dec-" + d.Symbol, nil
}
func (m *memStore) RecordTrade(_ context.Context, t *models.Trade, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *t
	cp.DecisionID = id
	m.trades = append(m.trades, cp)
	return nil
}
func (m *memStore) GetOpenPositions(context.Context) ([]models.Position, error) {
	return m.positions, nil
}
func (m *memStore) GetCashFlow(context.Context) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var flow float64
	for _, t := range m.trades {
		if t.Action == models.ActionBuy {
			flow -= t.NetValue
		} else {
			flow += t.NetValue
		}
	}
	return flow, nil
}
func (m *memStore) LatestDecision(context.Context, string) (*models.AggregatedDecision, error) {
	return nil, domrepo.ErrNotFound
}
func (m *memStore) ListTrades(context.Context, string, int) ([]models.Trade, error) {
	return m.trades, nil
}
func (m *memStore) Health(context.Context) error { return nil }
func (m *memStore) Close() error                 { return nil }

type recordingNotifier struct {
	mu        sync.Mutex
	trades    []models.Trade
	decisions int
}

func (n *recordingNotifier) OnTrade(_ context.Context, t *models.Trade) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.trades = append(n.trades, *t)
	return nil
}
func (n *recordingNotifier) OnDecision(context.Context, *models.AggregatedDecision) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.decisions++
	return nil
}
func (n *recordingNotifier) Close() error { return nil }

type fakeHistory struct {
	candles map[string][]models.Candle
	err     map[string]error
	calls   []time.Time
}

func (f *fakeHistory) GetHistory(_ context.Context, symbol string, _ domrepo.Interval, since time.Time) ([]models.Candle, error) {
	f.calls = append(f.calls, since)
	if err := f.err[symbol]; err != nil {
		return nil, err
	}
	var out []models.Candle
	for _, c := range f.candles[symbol] {
		if c.Timestamp.After(since) {
			out = append(out, c)
		}
	}
	return out, nil
}

type fakeLock struct {
	held     bool
	unlocked int
	err      error
}

func (l *fakeLock) TryLock(context.Context, string, time.Duration) (bool, error) {
	if l.err != nil {
		return false, l.err
	}
	if l.held {
		return false, nil
	}
	l.held = true
	return true, nil
}

func (l *fakeLock) Unlock(context.Context, string) error {
	l.held = false
	l.unlocked++
	return nil
}

type staticContext struct {
	prices map[string]float64
	seen   map[string][]string
}

func (s *staticContext) Context(_ context.Context, symbol string, headlines []string) (models.MarketContext, error) {
	p, ok := s.prices[symbol]
	if !ok {
		return models.MarketContext{}, errors.New("no data")
	}
	if s.seen == nil {
		s.seen = map[string][]string{}
	}
	s.seen[symbol] = headlines
	return models.MarketContext{Symbol: symbol, Price: p, Timestamp: time.Unix(100, 0).UTC(), Headlines: headlines}, nil
}

func defaultStrategies() []config.StrategyConfig { return config.DefaultStrategies() }
