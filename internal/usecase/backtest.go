package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"TradeDesk/internal/domain/models"
	domrepo "TradeDesk/internal/domain/repository"
	svcmetrics "TradeDesk/internal/service/metrics"
	"TradeDesk/internal/services/backtest"
	"TradeDesk/internal/services/ledger"
	"TradeDesk/internal/services/performance"
	"TradeDesk/pkg/cache"
	"TradeDesk/pkg/config"
	applogger "TradeDesk/pkg/logger"
	"TradeDesk/pkg/queue"
	"TradeDesk/pkg/util"

	"github.com/google/uuid"
)

// BacktestJobType names the queued backtest job.
const BacktestJobType = "backtest"

// ErrNoHistory is returned when no requested symbol produced candles.
var ErrNoHistory = errors.New("no historical data fetched")

// EngineFactory builds a fresh decision engine for one run.
type EngineFactory func() (*DecisionEngine, error)

// BacktestOptions carries the replay defaults from config.
type BacktestOptions struct {
	Settings        backtest.Settings
	FeeRate         float64
	InitialCapital  float64
	PositionSizePct float64
	ResultTTL       time.Duration
}

// BacktestService runs replays synchronously or through a job queue.
type BacktestService struct {
	history HistoryProvider
	engines EngineFactory
	opts    BacktestOptions
	metrics *svcmetrics.BacktestMetrics
	queue   queue.Service
	results cache.Service
	lgr     *applogger.Logger
	now     func() time.Time
}

func NewBacktestService(
	history HistoryProvider,
	engines EngineFactory,
	opts BacktestOptions,
	metrics *svcmetrics.BacktestMetrics,
	q queue.Service,
	results cache.Service,
	lgr *applogger.Logger,
) *BacktestService {
	if lgr == nil {
		lgr = applogger.Nop()
	}
	if opts.ResultTTL <= 0 {
		opts.ResultTTL = 24 * time.Hour
	}
	s := &BacktestService{
		history: history,
		engines: engines,
		opts:    opts,
		metrics: metrics,
		queue:   q,
		results: results,
		lgr:     lgr,
		now:     time.Now,
	}
	if q != nil {
		q.RegisterJob(&backtestJob{svc: s})
	}
	return s
}

// Async reports whether Submit queues work instead of running it inline.
func (s *BacktestService) Async() bool { return s.queue != nil && s.results != nil }

func (s *BacktestService) normalize(req models.BacktestRequest) (models.BacktestRequest, error) {
	syms, err := util.NormalizeSymbols(req.Symbols)
	if err != nil {
		return req, config.NewConfigError("symbols", "%v", err)
	}
	if len(syms) == 0 {
		return req, config.NewConfigError("symbols", "at least one symbol is required")
	}
	req.Symbols = syms
	if req.DaysBack <= 0 {
		req.DaysBack = 30
	}
	iv := domrepo.Interval(req.Interval)
	if req.Interval == "" {
		iv = domrepo.DefaultInterval()
	}
	if !domrepo.IsValidInterval(iv) {
		return req, config.NewConfigError("interval", "unsupported interval %q", req.Interval)
	}
	req.Interval = string(iv)
	if req.InitialCapital <= 0 {
		req.InitialCapital = s.opts.InitialCapital
	}
	if req.PositionSizePct <= 0 {
		req.PositionSizePct = s.opts.PositionSizePct
	}
	return req, nil
}

// RunBacktest replays req with a fresh ledger and a fresh engine.
func (s *BacktestService) RunBacktest(ctx context.Context, req models.BacktestRequest) (*models.BacktestResult, error) {
	return s.run(ctx, "sync", req)
}

func (s *BacktestService) run(ctx context.Context, mode string, req models.BacktestRequest) (res *models.BacktestResult, err error) {
	start := time.Now()
	defer func() {
		steps := 0
		if res != nil {
			steps = res.Steps
		}
		s.metrics.Observe(mode, time.Since(start), steps, err)
	}()

	req, err = s.normalize(req)
	if err != nil {
		return nil, err
	}
	iv := domrepo.Interval(req.Interval)
	since := util.DaysAgo(s.now(), req.DaysBack)

	series := make(map[string][]models.Candle, len(req.Symbols))
	skipped := make(map[string]string)
	for _, sym := range req.Symbols {
		cs, ferr := s.history.GetHistory(ctx, sym, iv, since)
		if ferr != nil {
			s.lgr.Warn("backtest history fetch failed", applogger.String("symbol", sym), applogger.Error(ferr))
			skipped[sym] = ferr.Error()
			continue
		}
		if len(cs) == 0 {
			skipped[sym] = "no candles"
			continue
		}
		series[sym] = cs
	}
	if len(series) == 0 {
		return nil, ErrNoHistory
	}

	l, err := ledger.New(req.InitialCapital, s.opts.FeeRate)
	if err != nil {
		return nil, err
	}
	engine, err := s.engines()
	if err != nil {
		return nil, fmt.Errorf("build engine: %w", err)
	}
	settings := s.opts.Settings
	settings.PositionSizePct = req.PositionSizePct
	driver, err := backtest.NewDriver(settings, engine, l, s.lgr)
	if err != nil {
		return nil, err
	}

	s.lgr.Info("backtest started",
		applogger.Strings("symbols", req.Symbols),
		applogger.String("interval", req.Interval),
		applogger.Int("days", req.DaysBack),
	)
	st := driver.Run(ctx, req.Symbols, series)

	trades := l.Trades()
	valuations := l.Valuations()
	m := performance.Analyze(valuations, trades, req.InitialCapital)
	res = &models.BacktestResult{
		Request:      req,
		Trades:       trades,
		ValuationLog: valuations,
		Metrics:      m,
		Report:       performance.Report(req, m),
		Steps:        st.Steps,
		Errors:       st.Errors,
	}
	if len(skipped) > 0 {
		res.SkippedSymbols = skipped
	}
	s.lgr.Info("backtest finished",
		applogger.Int("steps", st.Steps),
		applogger.Int("trades", len(trades)),
		applogger.Float64("total_return_pct", m.TotalReturnPct),
		applogger.Duration("took", time.Since(start)),
	)
	return res, nil
}

func jobKey(id string) string {
	return cache.Key("backtest", id)
}

// Submit queues req when a queue and result cache are wired, else runs it inline.
func (s *BacktestService) Submit(ctx context.Context, req models.BacktestRequest) (*models.BacktestJob, error) {
	now := s.now().UTC()
	job := &models.BacktestJob{ID: uuid.NewString(), Status: models.JobQueued, Request: req, CreatedAt: now, UpdatedAt: now}
	if !s.Async() {
		res, err := s.RunBacktest(ctx, req)
		if err != nil {
			return nil, err
		}
		job.Status, job.Result = models.JobDone, res
		return job, nil
	}
	if _, err := s.normalize(req); err != nil {
		return nil, err
	}
	if err := s.results.Set(ctx, jobKey(job.ID), job, s.opts.ResultTTL); err != nil {
		return nil, fmt.Errorf("store job: %w", err)
	}
	if err := s.queue.Enqueue(ctx, BacktestJobType, job); err != nil {
		return nil, fmt.Errorf("enqueue backtest: %w", err)
	}
	return job, nil
}

// Job returns a queued backtest by id.
func (s *BacktestService) Job(ctx context.Context, id string) (*models.BacktestJob, error) {
	if s.results == nil {
		return nil, domrepo.ErrNotFound
	}
	var job models.BacktestJob
	if err := s.results.Get(ctx, jobKey(id), &job); err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return nil, domrepo.ErrNotFound
		}
		return nil, err
	}
	return &job, nil
}

func (s *BacktestService) saveJob(ctx context.Context, job *models.BacktestJob) {
	job.UpdatedAt = s.now().UTC()
	if err := s.results.Set(ctx, jobKey(job.ID), job, s.opts.ResultTTL); err != nil {
		s.lgr.Error("backtest job save failed", applogger.String("job_id", job.ID), applogger.Error(err))
	}
}

type backtestJob struct {
	svc *BacktestService
}

var _ queue.Job = (*backtestJob)(nil)

func (j *backtestJob) Name() string { return "backtest runner" }
func (j *backtestJob) Type() string { return BacktestJobType }

// Handle runs a queued job. Failed runs are recorded on the job and not retried.
func (j *backtestJob) Handle(ctx context.Context, payload json.RawMessage) error {
	job, err := queue.Decode[models.BacktestJob](payload)
	if err != nil {
		return err
	}
	job.Status = models.JobRunning
	j.svc.saveJob(ctx, job)

	res, err := j.svc.run(ctx, "async", job.Request)
	if err != nil {
		job.Status, job.Error = models.JobFailed, err.Error()
	} else {
		job.Status, job.Result = models.JobDone, res
	}
	j.svc.saveJob(ctx, job)
	return nil
}
