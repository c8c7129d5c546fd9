package middleware

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"TradeDesk/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopMetrics struct {
	mu     sync.Mutex
	errors []string
}

func (m *nopMetrics) RecordDecision(string, string, models.Signal, float64, bool) {}
func (m *nopMetrics) RecordNearMiss(string)                                       {}
func (m *nopMetrics) RecordStrategyError(string)                                  {}
func (m *nopMetrics) RecordTrade(string, models.Action, bool)                     {}
func (m *nopMetrics) RecordCycle(string, float64, bool)                           {}
func (m *nopMetrics) RecordPortfolioValue(float64)                                {}
func (m *nopMetrics) RecordLastPrice(string, float64)                             {}
func (m *nopMetrics) RecordLatency(string, float64)                               {}
func (m *nopMetrics) RecordError(kind string) {
	m.mu.Lock()
	m.errors = append(m.errors, kind)
	m.mu.Unlock()
}

type recordingProc struct {
	mu   sync.Mutex
	got  []*models.Quote
	fail bool
}

func (r *recordingProc) Process(_ context.Context, q *models.Quote) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return errors.New("down")
	}
	r.got = append(r.got, q)
	return nil
}

func TestQuotePipelineThrottlesPerSymbol(t *testing.T) {
	proc := &recordingProc{}
	m := &nopMetrics{}
	p := NewQuotePipeline(proc, m, WithMaxRPS(2))
	now := time.Unix(100, 0)
	p.now = func() time.Time { return now }

	q := func(sym string) *models.Quote {
		return &models.Quote{Symbol: sym, Price: 10, Timestamp: now}
	}
	require.NoError(t, p.Process(context.Background(), q("BTCUSD")))
	require.NoError(t, p.Process(context.Background(), q("BTCUSD")))
	require.NoError(t, p.Process(context.Background(), q("ETHUSD")))
	now = now.Add(600 * time.Millisecond)
	require.NoError(t, p.Process(context.Background(), q("BTCUSD")))

	assert.Len(t, proc.got, 3)
	assert.Equal(t, int64(1), p.Throttled())
	assert.Empty(t, m.errors)
}

func TestQuotePipelineRejectsInvalid(t *testing.T) {
	p := NewQuotePipeline(&recordingProc{}, &nopMetrics{})
	assert.Error(t, p.Process(context.Background(), nil))
	assert.Error(t, p.Process(context.Background(), &models.Quote{Symbol: "BTCUSD", Price: 0, Timestamp: time.Now()}))
	assert.Error(t, p.Process(context.Background(), &models.Quote{Price: 1, Timestamp: time.Now()}))
}

func TestQuotePipelineBuffersOnFailure(t *testing.T) {
	proc := &recordingProc{fail: true}
	p := NewQuotePipeline(proc, &nopMetrics{}, WithBufferSize(1))

	err := p.Process(context.Background(), &models.Quote{Symbol: "BTCUSD", Price: 1, Timestamp: time.Now()})
	require.Error(t, err)
	assert.Equal(t, 1, p.Buffered())

	proc.mu.Lock()
	proc.fail = false
	proc.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)
	defer p.Stop()
	assert.Eventually(t, func() bool {
		proc.mu.Lock()
		defer proc.mu.Unlock()
		return len(proc.got) == 1
	}, time.Second, 10*time.Millisecond)
}

func TestQuotePipelineRestartsAfterStop(t *testing.T) {
	proc := &recordingProc{fail: true}
	p := NewQuotePipeline(proc, nil, WithBufferSize(1))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)
	p.Stop()

	require.Error(t, p.Process(ctx, &models.Quote{Symbol: "BTCUSD", Price: 1, Timestamp: time.Now()}))
	proc.mu.Lock()
	proc.fail = false
	proc.mu.Unlock()

	p.Start(ctx)
	defer p.Stop()
	assert.Eventually(t, func() bool {
		proc.mu.Lock()
		defer proc.mu.Unlock()
		return len(proc.got) == 1
	}, time.Second, 10*time.Millisecond)
}
