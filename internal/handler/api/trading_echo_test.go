package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"TradeDesk/internal/domain/models"
	domrepo "TradeDesk/internal/domain/repository"
	"TradeDesk/internal/repository"
	"TradeDesk/internal/service/ratelimit"
	"TradeDesk/internal/usecase"
	"TradeDesk/pkg/config"
	xhttp "TradeDesk/pkg/http"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCycle struct {
	runs   int
	prices map[string]float64
}

func (f *fakeCycle) Run(_ context.Context, trigger models.Trigger) *models.CycleReport {
	f.runs++
	return &models.CycleReport{Trigger: trigger, Message: "Cycle complete"}
}

func (f *fakeCycle) Evaluate(_ context.Context, symbol string) (*models.AggregatedDecision, error) {
	if symbol != "BTCUSD" {
		return nil, errors.New("no candles")
	}
	return &models.AggregatedDecision{Symbol: symbol, Signal: models.SignalBuy, Confidence: 0.7}, nil
}

func (f *fakeCycle) Portfolio(prices map[string]float64) models.PortfolioView {
	f.prices = prices
	return models.PortfolioView{Cash: 1000, TotalValue: 1000}
}

func (f *fakeCycle) Symbols() []string { return []string{"BTCUSD", "ETHUSD"} }

func (f *fakeCycle) LastStatus() models.LiveStatus {
	return models.LiveStatus{Message: "Waiting for first cycle"}
}

type fakeStrategies struct {
	enabled map[string]bool
	weights map[string]float64
}

func (f *fakeStrategies) Summary() usecase.EngineSummary {
	return usecase.EngineSummary{Method: config.MethodWeightedVote, MinConfidence: 0.5}
}

func (f *fakeStrategies) set(name string, on bool) error {
	if _, ok := f.enabled[name]; !ok {
		return fmt.Errorf("strategy %s: %w", name, domrepo.ErrNotFound)
	}
	f.enabled[name] = on
	return nil
}

func (f *fakeStrategies) EnableStrategy(name string) error  { return f.set(name, true) }
func (f *fakeStrategies) DisableStrategy(name string) error { return f.set(name, false) }
func (f *fakeStrategies) SetWeight(name string, w float64) error {
	if _, ok := f.enabled[name]; !ok {
		return fmt.Errorf("strategy %s: %w", name, domrepo.ErrNotFound)
	}
	f.weights[name] = w
	return nil
}

type fakeBacktests struct {
	async bool
	jobs  map[string]*models.BacktestJob
}

func (f *fakeBacktests) Async() bool { return f.async }

func (f *fakeBacktests) RunBacktest(_ context.Context, req models.BacktestRequest) (*models.BacktestResult, error) {
	if req.Symbols[0] == "XYZUSD" {
		return nil, usecase.ErrNoHistory
	}
	return &models.BacktestResult{Request: req, Steps: 10}, nil
}

func (f *fakeBacktests) Submit(_ context.Context, req models.BacktestRequest) (*models.BacktestJob, error) {
	job := &models.BacktestJob{ID: "7d444840-9dc0-11d1-b245-5ffdce74fad2", Status: models.JobQueued, Request: req}
	f.jobs[job.ID] = job
	return job, nil
}

func (f *fakeBacktests) Job(_ context.Context, id string) (*models.BacktestJob, error) {
	if j, ok := f.jobs[id]; ok {
		return j, nil
	}
	return nil, domrepo.ErrNotFound
}

type fakePrices map[string]float64

func (f fakePrices) CurrentPrice(_ context.Context, symbol string) (float64, error) {
	if p, ok := f[symbol]; ok {
		return p, nil
	}
	return 0, errors.New("no quote")
}

type envelope struct {
	Status int             `json:"status"`
	Data   json.RawMessage `json:"data"`
}

type harness struct {
	e      *echo.Echo
	cycle  *fakeCycle
	strats *fakeStrategies
	bt     *fakeBacktests
	store  *repository.MemoryStore
}

func newHarness(t *testing.T, rl *ratelimit.Limiter) *harness {
	t.Helper()
	h := &harness{
		e:      echo.New(),
		cycle:  &fakeCycle{},
		strats: &fakeStrategies{enabled: map[string]bool{"rsi": true}, weights: map[string]float64{}},
		bt:     &fakeBacktests{jobs: map[string]*models.BacktestJob{}},
		store:  repository.NewMemoryStore(),
	}
	NewTradingEchoHandler(nil, h.cycle, h.strats, h.bt, fakePrices{"BTCUSD": 100}, h.store, rl).RegisterRoutes(h.e)
	return h
}

func (h *harness) do(t *testing.T, method, target, body string) (int, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	h.e.ServeHTTP(rec, req)
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec.Code, env
}

func TestHealthAndStatus(t *testing.T) {
	h := newHarness(t, nil)
	code, _ := h.do(t, http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusOK, code)

	code, env := h.do(t, http.MethodGet, "/api/status", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), "Waiting for first cycle")
}

func TestEvaluate(t *testing.T) {
	h := newHarness(t, nil)
	code, env := h.do(t, http.MethodPost, "/api/evaluate", `{"symbol":"btc/usd"}`)
	require.Equal(t, http.StatusOK, code)
	var d models.AggregatedDecision
	require.NoError(t, json.Unmarshal(env.Data, &d))
	assert.Equal(t, "BTCUSD", d.Symbol)
	assert.Equal(t, models.SignalBuy, d.Signal)

	code, _ = h.do(t, http.MethodPost, "/api/evaluate", `{}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = h.do(t, http.MethodPost, "/api/evaluate", `{"symbol":"ETHUSD"}`)
	assert.Equal(t, http.StatusServiceUnavailable, code)
}

func TestRunCycleIsRateLimited(t *testing.T) {
	h := newHarness(t, ratelimit.New(0.001, 1))
	code, env := h.do(t, http.MethodPost, "/api/cycle/run", "")
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), `"trigger":"manual"`)

	code, _ = h.do(t, http.MethodPost, "/api/cycle/run", "")
	assert.Equal(t, http.StatusTooManyRequests, code)
	assert.Equal(t, 1, h.cycle.runs)
}

func TestPortfolioUsesAvailablePrices(t *testing.T) {
	h := newHarness(t, nil)
	code, _ := h.do(t, http.MethodGet, "/api/portfolio", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, map[string]float64{"BTCUSD": 100}, h.cycle.prices)
}

func TestTradesAndLatestDecision(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	id, err := h.store.RecordDecision(ctx, &models.AggregatedDecision{Symbol: "BTCUSD", Signal: models.SignalBuy, Timestamp: time.Now()})
	require.NoError(t, err)
	require.NoError(t, h.store.RecordTrade(ctx, &models.Trade{Symbol: "BTCUSD", Action: models.ActionBuy, Price: 100, Amount: 1}, id))

	code, env := h.do(t, http.MethodGet, "/api/trades?symbol=BTCUSD&limit=10", "")
	require.Equal(t, http.StatusOK, code)
	var list struct {
		Rows  []models.Trade `json:"rows"`
		Total int64          `json:"total"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &list))
	require.Len(t, list.Rows, 1)
	assert.Equal(t, id, list.Rows[0].DecisionID)

	code, _ = h.do(t, http.MethodGet, "/api/trades?limit=99999", "")
	assert.Equal(t, http.StatusBadRequest, code)

	code, env = h.do(t, http.MethodGet, "/api/decisions/latest?symbol=BTCUSD", "")
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), id)

	code, _ = h.do(t, http.MethodGet, "/api/decisions/latest?symbol=ETHUSD", "")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestPatchStrategy(t *testing.T) {
	h := newHarness(t, nil)
	code, _ := h.do(t, http.MethodPatch, "/api/strategies/rsi", `{"enabled":false,"weight":2.5}`)
	require.Equal(t, http.StatusOK, code)
	assert.False(t, h.strats.enabled["rsi"])
	assert.Equal(t, 2.5, h.strats.weights["rsi"])

	code, _ = h.do(t, http.MethodPatch, "/api/strategies/macd", `{"enabled":true}`)
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = h.do(t, http.MethodPatch, "/api/strategies/rsi", `{}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = h.do(t, http.MethodPatch, "/api/strategies/rsi", `{"weight":-1}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, env := h.do(t, http.MethodGet, "/api/strategies", "")
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), config.MethodWeightedVote)
}

func TestBacktestEndpoints(t *testing.T) {
	h := newHarness(t, nil)
	code, env := h.do(t, http.MethodPost, "/api/backtests", `{"symbols":["BTCUSD"]}`)
	require.Equal(t, http.StatusOK, code)
	var res models.BacktestResult
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.Equal(t, 30, res.Request.DaysBack)
	assert.Equal(t, "1h", res.Request.Interval)
	assert.Equal(t, 10000.0, res.Request.InitialCapital)

	code, env = h.do(t, http.MethodPost, "/api/backtests", `{"symbols":["XYZUSD"]}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, string(env.Data), xhttp.CodeBadRequest)

	code, env = h.do(t, http.MethodPost, "/api/backtests", `{"symbols":["NONE"]}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, string(env.Data), "ERR_SYMBOL")

	code, _ = h.do(t, http.MethodPost, "/api/backtests", `{"symbols":["BTCUSD"],"interval":"2h"}`)
	assert.Equal(t, http.StatusBadRequest, code)

	h.bt.async = true
	code, env = h.do(t, http.MethodPost, "/api/backtests", `{"symbols":["BTCUSD"],"async":true}`)
	require.Equal(t, http.StatusAccepted, code)
	var job models.BacktestJob
	require.NoError(t, json.Unmarshal(env.Data, &job))
	assert.Equal(t, models.JobQueued, job.Status)

	code, _ = h.do(t, http.MethodGet, "/api/backtests/"+job.ID, "")
	assert.Equal(t, http.StatusOK, code)

	code, _ = h.do(t, http.MethodGet, "/api/backtests/1c0a8f1e-0000-4000-8000-000000000000", "")
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = h.do(t, http.MethodGet, "/api/backtests/not-a-uuid", "")
	assert.Equal(t, http.StatusBadRequest, code)
}
