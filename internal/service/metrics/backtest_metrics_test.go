package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestBacktestMetricsObserve(t *testing.T) {
	m := NewBacktestMetrics(prometheus.NewRegistry())
	m.Observe("sync", time.Second, 10, nil)
	m.Observe("async", time.Second, 5, errors.New("boom"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("sync", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("async", "error")))
	assert.Equal(t, 15.0, testutil.ToFloat64(m.steps))

	var nilMetrics *BacktestMetrics
	nilMetrics.Observe("sync", 0, 0, nil)
}
