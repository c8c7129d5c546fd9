package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// BacktestMetrics tracks replay runs.
type BacktestMetrics struct {
	latency *prometheus.HistogramVec
	runs    *prometheus.CounterVec
	steps   prometheus.Counter
}

func NewBacktestMetrics(reg prometheus.Registerer) *BacktestMetrics {
	f := promauto.With(reg)
	return &BacktestMetrics{
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "tradedesk",
				Subsystem: "backtest",
				Name:      "duration_seconds",
				Help:      "Duration of backtest runs",
				Buckets:   []float64{0.1, 0.5, 1, 5, 15, 60, 300},
			},
			[]string{"mode"},
		),
		runs: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "tradedesk",
				Subsystem: "backtest",
				Name:      "runs_total",
				Help:      "Backtest runs by mode and result",
			},
			[]string{"mode", "result"},
		),
		steps: f.NewCounter(prometheus.CounterOpts{
			Namespace: "tradedesk",
			Subsystem: "backtest",
			Name:      "steps_total",
			Help:      "Replay steps evaluated",
		}),
	}
}

// Observe records one finished run. mode is sync or async.
func (m *BacktestMetrics) Observe(mode string, d time.Duration, steps int, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.latency.WithLabelValues(mode).Observe(d.Seconds())
	m.runs.WithLabelValues(mode, result).Inc()
	m.steps.Add(float64(steps))
}
