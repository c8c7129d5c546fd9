package metrics

import (
	"strconv"

	"TradeDesk/internal/domain/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	decisions      *prometheus.CounterVec
	confidence     *prometheus.HistogramVec
	nearMiss       *prometheus.CounterVec
	strategyErrors *prometheus.CounterVec
	trades         *prometheus.CounterVec
	cycleDuration  *prometheus.HistogramVec
	cyclesSkipped  *prometheus.CounterVec
	portfolioValue prometheus.Gauge
	errorsTotal    *prometheus.CounterVec
	lastPrice      *prometheus.GaugeVec
	latency        *prometheus.HistogramVec
}

// New creates a recorder registered on the default Prometheus registry.
func New() *Recorder {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer creates a recorder on reg. Tests pass a fresh registry.
func NewWithRegisterer(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		decisions: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradedesk_decisions_total",
				Help: "Aggregated decisions by final signal and gate outcome",
			},
			[]string{"symbol", "signal", "gated"},
		),
		confidence: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tradedesk_decision_confidence",
				Help:    "Pre-gate aggregated confidence",
				Buckets: prometheus.LinearBuckets(0, 0.1, 11),
			},
			[]string{"method"},
		),
		nearMiss: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradedesk_near_miss_total",
				Help: "Decisions gated to HOLD within the near-miss margin",
			},
			[]string{"symbol"},
		),
		strategyErrors: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradedesk_strategy_errors_total",
				Help: "Strategy evaluations excluded because of an error",
			},
			[]string{"strategy"},
		),
		trades: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradedesk_trades_total",
				Help: "Ledger operations by action and result",
			},
			[]string{"symbol", "action", "result"},
		),
		cycleDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tradedesk_cycle_duration_seconds",
				Help:    "Duration of live decision cycles",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"trigger"},
		),
		cyclesSkipped: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradedesk_cycles_skipped_total",
				Help: "Cycles skipped because another instance held the lock",
			},
			[]string{"trigger"},
		),
		portfolioValue: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "tradedesk_portfolio_value",
				Help: "Live portfolio total value",
			},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradedesk_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		lastPrice: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "tradedesk_last_price",
				Help: "Last recorded price for a symbol",
			},
			[]string{"symbol"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tradedesk_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordDecision records one gated decision.
func (r *Recorder) RecordDecision(symbol, method string, signal models.Signal, confidence float64, executed bool) {
	r.decisions.WithLabelValues(symbol, string(signal), strconv.FormatBool(!executed)).Inc()
	r.confidence.WithLabelValues(method).Observe(confidence)
}

func (r *Recorder) RecordNearMiss(symbol string) {
	r.nearMiss.WithLabelValues(symbol).Inc()
}

func (r *Recorder) RecordStrategyError(strategy string) {
	r.strategyErrors.WithLabelValues(strategy).Inc()
}

// RecordTrade records a ledger operation outcome.
func (r *Recorder) RecordTrade(symbol string, action models.Action, success bool) {
	result := "rejected"
	if success {
		result = "executed"
	}
	r.trades.WithLabelValues(symbol, string(action), result).Inc()
}

func (r *Recorder) RecordCycle(trigger string, seconds float64, skipped bool) {
	if skipped {
		r.cyclesSkipped.WithLabelValues(trigger).Inc()
		return
	}
	r.cycleDuration.WithLabelValues(trigger).Observe(seconds)
}

func (r *Recorder) RecordPortfolioValue(value float64) {
	r.portfolioValue.Set(value)
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLastPrice records the last price for a symbol.
func (r *Recorder) RecordLastPrice(symbol string, price float64) {
	r.lastPrice.WithLabelValues(symbol).Set(price)
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
