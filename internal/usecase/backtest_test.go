package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"TradeDesk/internal/domain/models"
	domrepo "TradeDesk/internal/domain/repository"
	svcmetrics "TradeDesk/internal/service/metrics"
	"TradeDesk/internal/services/backtest"
	"TradeDesk/pkg/cache"
	"TradeDesk/pkg/config"
	applogger "TradeDesk/pkg/logger"
	"TradeDesk/pkg/queue"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBacktestService(t *testing.T, hist *fakeHistory, q queue.Service, results cache.Service) *BacktestService {
	t.Helper()
	engines := func() (*DecisionEngine, error) {
		return newEngine(config.MethodHighestConfidence, 0.5, &fixedStrategy{name: "bull", op: opinion(models.SignalBuy, 0.9)}), nil
	}
	opts := BacktestOptions{
		Settings:        backtest.Settings{Warmup: 50, Window: 100, MinConfidence: 0.2},
		FeeRate:         0.0026,
		InitialCapital:  10000,
		PositionSizePct: 0.03,
	}
	s := NewBacktestService(hist, engines, opts, svcmetrics.NewBacktestMetrics(prometheus.NewRegistry()), q, results, nil)
	s.now = func() time.Time { return t0.Add(70 * time.Hour) }
	return s
}

func TestRunBacktest(t *testing.T) {
	hist := &fakeHistory{
		candles: map[string][]models.Candle{"BTCUSD": hourly("BTCUSD", 60, 100)},
		err:     map[string]error{"ETHUSD": errors.New("upstream 500")},
	}
	s := newBacktestService(t, hist, nil, nil)

	res, err := s.RunBacktest(context.Background(), models.BacktestRequest{Symbols: []string{"btcusd", "ETHUSD"}, DaysBack: 30})
	require.NoError(t, err)
	assert.Equal(t, 60, res.Steps)
	assert.Equal(t, 0, res.Errors)
	assert.Len(t, res.Trades, 10)
	assert.Len(t, res.ValuationLog, 60)
	assert.Equal(t, "upstream 500", res.SkippedSymbols["ETHUSD"])
	assert.Equal(t, []string{"BTCUSD", "ETHUSD"}, res.Request.Symbols)
	assert.Equal(t, "1h", res.Request.Interval)
	assert.Equal(t, 10000.0, res.Request.InitialCapital)
	assert.Equal(t, 10, res.Metrics.TotalTrades)
	assert.NotEmpty(t, res.Report)
	for _, tr := range res.Trades {
		assert.Equal(t, models.ActionBuy, tr.Action)
	}
}

func TestRunBacktestErrors(t *testing.T) {
	s := newBacktestService(t, &fakeHistory{}, nil, nil)
	_, err := s.RunBacktest(context.Background(), models.BacktestRequest{Symbols: []string{"BTCUSD"}})
	assert.ErrorIs(t, err, ErrNoHistory)

	_, err = s.RunBacktest(context.Background(), models.BacktestRequest{})
	assert.True(t, config.IsConfigError(err))

	_, err = s.RunBacktest(context.Background(), models.BacktestRequest{Symbols: []string{"BTCUSD"}, Interval: "2h"})
	assert.True(t, config.IsConfigError(err))
}

func TestSubmitInlineWithoutQueue(t *testing.T) {
	hist := &fakeHistory{candles: map[string][]models.Candle{"BTCUSD": hourly("BTCUSD", 60, 100)}}
	s := newBacktestService(t, hist, nil, nil)
	assert.False(t, s.Async())

	job, err := s.Submit(context.Background(), models.BacktestRequest{Symbols: []string{"BTCUSD"}})
	require.NoError(t, err)
	assert.Equal(t, models.JobDone, job.Status)
	require.NotNil(t, job.Result)

	_, err = s.Job(context.Background(), job.ID)
	assert.ErrorIs(t, err, domrepo.ErrNotFound)
}

func TestSubmitAsync(t *testing.T) {
	hist := &fakeHistory{candles: map[string][]models.Candle{"BTCUSD": hourly("BTCUSD", 60, 100)}}
	q := queue.NewMemoryQueue(applogger.Nop(), &queue.QueueConfig{Workers: 1})
	results := cache.NewMemoryCache()
	t.Cleanup(func() { _ = results.Close() })
	s := newBacktestService(t, hist, q, results)
	require.NoError(t, q.Start())
	t.Cleanup(func() { _ = q.Stop(context.Background()) })
	require.True(t, s.Async())

	ctx := context.Background()
	job, err := s.Submit(ctx, models.BacktestRequest{Symbols: []string{"BTCUSD"}})
	require.NoError(t, err)
	assert.Equal(t, models.JobQueued, job.Status)

	var got *models.BacktestJob
	require.Eventually(t, func() bool {
		got, err = s.Job(ctx, job.ID)
		return err == nil && got.Status == models.JobDone
	}, 2*time.Second, 10*time.Millisecond)
	require.NotNil(t, got.Result)
	assert.Len(t, got.Result.Trades, 10)

	failed, err := s.Submit(ctx, models.BacktestRequest{Symbols: []string{"ETHUSD"}})
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		got, err = s.Job(ctx, failed.ID)
		return err == nil && got.Status == models.JobFailed
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, ErrNoHistory.Error(), got.Error)

	_, err = s.Job(ctx, "00000000-0000-0000-0000-000000000000")
	assert.ErrorIs(t, err, domrepo.ErrNotFound)

	_, err = s.Submit(ctx, models.BacktestRequest{})
	assert.True(t, config.IsConfigError(err))
}
