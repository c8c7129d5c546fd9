package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"TradeDesk/internal/domain/models"
	domrepo "TradeDesk/internal/domain/repository"
	"TradeDesk/internal/service/ratelimit"
	"TradeDesk/internal/usecase"
	"TradeDesk/pkg/config"
	xhttp "TradeDesk/pkg/http"
	applogger "TradeDesk/pkg/logger"
	"TradeDesk/pkg/util"

	"github.com/labstack/echo/v4"
)

// Cycle is the live trading surface used by the handler.
type Cycle interface {
	Run(ctx context.Context, trigger models.Trigger) *models.CycleReport
	Evaluate(ctx context.Context, symbol string) (*models.AggregatedDecision, error)
	Portfolio(prices map[string]float64) models.PortfolioView
	Symbols() []string
	LastStatus() models.LiveStatus
}

// Strategies manages the engine's registered strategies.
type Strategies interface {
	Summary() usecase.EngineSummary
	EnableStrategy(name string) error
	DisableStrategy(name string) error
	SetWeight(name string, weight float64) error
}

// Backtests runs and tracks replays.
type Backtests interface {
	Async() bool
	RunBacktest(ctx context.Context, req models.BacktestRequest) (*models.BacktestResult, error)
	Submit(ctx context.Context, req models.BacktestRequest) (*models.BacktestJob, error)
	Job(ctx context.Context, id string) (*models.BacktestJob, error)
}

// PriceSource gives the current price of a symbol.
type PriceSource interface {
	CurrentPrice(ctx context.Context, symbol string) (float64, error)
}

// TradingEchoHandler exposes the decision engine, live cycle and backtests over echo.
type TradingEchoHandler struct {
	logger     *applogger.Logger
	cycle      Cycle
	strategies Strategies
	backtests  Backtests
	prices     PriceSource
	store      domrepo.Persistence
	rl         *ratelimit.Limiter
}

func NewTradingEchoHandler(
	logger *applogger.Logger,
	cycle Cycle,
	strategies Strategies,
	backtests Backtests,
	prices PriceSource,
	store domrepo.Persistence,
	rl *ratelimit.Limiter,
) *TradingEchoHandler {
	if logger == nil {
		logger = applogger.Nop()
	}
	if rl == nil {
		rl = ratelimit.New(0, 1)
	}
	return &TradingEchoHandler{
		logger:     logger,
		cycle:      cycle,
		strategies: strategies,
		backtests:  backtests,
		prices:     prices,
		store:      store,
		rl:         rl,
	}
}

func (h *TradingEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/health", h.Health)
	g.POST("/evaluate", h.Evaluate)
	g.POST("/cycle/run", h.RunCycle)
	g.GET("/status", h.Status)
	g.GET("/portfolio", h.Portfolio)
	g.GET("/trades", h.Trades)
	g.GET("/strategies", h.Strategies)
	g.PATCH("/strategies/:name", h.PatchStrategy)
	g.POST("/backtests", h.Backtest)
	g.GET("/backtests/:id", h.BacktestJob)
	g.GET("/decisions/latest", h.LatestDecision)
}

func (h *TradingEchoHandler) Health(c echo.Context) error {
	status := map[string]string{"status": "ok", "persistence": "ok"}
	if err := h.store.Health(c.Request().Context()); err != nil {
		h.logger.Warn("persistence health check failed", applogger.Error(err))
		status["status"], status["persistence"] = "degraded", err.Error()
		return xhttp.DataResponse(c, http.StatusServiceUnavailable, status)
	}
	return xhttp.SuccessResponse(c, status)
}

func (h *TradingEchoHandler) Evaluate(c echo.Context) error {
	req := &models.EvaluateRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	sym, err := util.NormalizeSymbol(req.Symbol)
	if err != nil {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError(err.Error()))
	}
	d, err := h.cycle.Evaluate(c.Request().Context(), sym)
	if err != nil {
		h.logger.Error("evaluate failed", applogger.String("symbol", sym), applogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.UnavailableErrorf("market data for %s: %v", sym, err))
	}
	return xhttp.SuccessResponse(c, d)
}

func (h *TradingEchoHandler) RunCycle(c echo.Context) error {
	if !h.rl.Allow("cycle:" + c.RealIP()) {
		h.logger.Warn("manual cycle rate limited", applogger.String("remote", c.RealIP()))
		return xhttp.AppErrorResponse(c, xhttp.RateLimitedError("manual cycle rate limited"))
	}
	report := h.cycle.Run(c.Request().Context(), models.TriggerManual)
	return xhttp.SuccessResponse(c, report)
}

func (h *TradingEchoHandler) Status(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.cycle.LastStatus())
}

func (h *TradingEchoHandler) Portfolio(c echo.Context) error {
	ctx := c.Request().Context()
	prices := make(map[string]float64)
	for _, sym := range h.cycle.Symbols() {
		p, err := h.prices.CurrentPrice(ctx, sym)
		if err != nil {
			h.logger.Debug("portfolio price unavailable", applogger.String("symbol", sym), applogger.Error(err))
			continue
		}
		prices[sym] = p
	}
	return xhttp.SuccessResponse(c, h.cycle.Portfolio(prices))
}

func (h *TradingEchoHandler) Trades(c echo.Context) error {
	req := &models.TradesRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	sym := ""
	if strings.TrimSpace(req.Symbol) != "" {
		s, err := util.NormalizeSymbol(req.Symbol)
		if err != nil {
			return xhttp.AppErrorResponse(c, xhttp.BadRequestError(err.Error()))
		}
		sym = s
	}
	trades, err := h.store.ListTrades(c.Request().Context(), sym, req.Limit)
	if err != nil {
		h.logger.Error("list trades failed", applogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("list trades failed").WithError(err))
	}
	return xhttp.ListResponse(c, trades, int64(len(trades)))
}

func (h *TradingEchoHandler) Strategies(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.strategies.Summary())
}

func (h *TradingEchoHandler) PatchStrategy(c echo.Context) error {
	req := &models.StrategyPatchRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if req.Enabled == nil && req.Weight == nil {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError("nothing to update: set enabled or weight"))
	}
	if req.Enabled != nil {
		toggle := h.strategies.DisableStrategy
		if *req.Enabled {
			toggle = h.strategies.EnableStrategy
		}
		if err := toggle(req.Name); err != nil {
			return h.strategyError(c, req.Name, err)
		}
	}
	if req.Weight != nil {
		if err := h.strategies.SetWeight(req.Name, *req.Weight); err != nil {
			return h.strategyError(c, req.Name, err)
		}
	}
	h.logger.Info("strategy updated", applogger.String("strategy", req.Name))
	return xhttp.SuccessResponse(c, h.strategies.Summary())
}

func (h *TradingEchoHandler) strategyError(c echo.Context, name string, err error) error {
	switch {
	case errors.Is(err, domrepo.ErrNotFound):
		return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("strategy %q not found", name))
	case config.IsConfigError(err):
		return xhttp.AppErrorResponse(c, xhttp.InvalidInputError(err))
	default:
		h.logger.Error("strategy update failed", applogger.String("strategy", name), applogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("strategy update failed").WithError(err))
	}
}

func (h *TradingEchoHandler) Backtest(c echo.Context) error {
	req := &models.BacktestHTTPRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	br := models.BacktestRequest{
		Symbols:         req.Symbols,
		DaysBack:        req.DaysBack,
		Interval:        req.Interval,
		InitialCapital:  req.InitialCapital,
		PositionSizePct: req.PositionSizePct,
	}
	ctx := c.Request().Context()
	if req.Async && h.backtests.Async() {
		job, err := h.backtests.Submit(ctx, br)
		if err != nil {
			return h.backtestError(c, err)
		}
		return xhttp.AcceptedResponse(c, job)
	}
	res, err := h.backtests.RunBacktest(ctx, br)
	if err != nil {
		return h.backtestError(c, err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *TradingEchoHandler) backtestError(c echo.Context, err error) error {
	switch {
	case config.IsConfigError(err), errors.Is(err, usecase.ErrNoHistory):
		return xhttp.AppErrorResponse(c, xhttp.InvalidInputError(err))
	default:
		h.logger.Error("backtest failed", applogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("backtest failed").WithError(err))
	}
}

func (h *TradingEchoHandler) BacktestJob(c echo.Context) error {
	req := &models.BacktestJobRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	job, err := h.backtests.Job(c.Request().Context(), req.ID)
	if err != nil {
		if errors.Is(err, domrepo.ErrNotFound) {
			return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("backtest %s not found", req.ID))
		}
		h.logger.Error("backtest job lookup failed", applogger.String("job_id", req.ID), applogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("backtest lookup failed").WithError(err))
	}
	return xhttp.SuccessResponse(c, job)
}

func (h *TradingEchoHandler) LatestDecision(c echo.Context) error {
	req := &models.LatestDecisionRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	sym, err := util.NormalizeSymbol(req.Symbol)
	if err != nil {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError(err.Error()))
	}
	d, err := h.store.LatestDecision(c.Request().Context(), sym)
	if err != nil {
		if errors.Is(err, domrepo.ErrNotFound) {
			return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("no decision for %s", sym))
		}
		h.logger.Error("latest decision failed", applogger.String("symbol", sym), applogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("latest decision failed").WithError(err))
	}
	return xhttp.CachedResponse(c, 15, d)
}
