package metrics

import (
	"testing"

	"TradeDesk/internal/domain/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecorder(t *testing.T) {
	r := NewWithRegisterer(prometheus.NewRegistry())

	r.RecordDecision("BTCUSD", "weighted_vote", models.SignalHold, 0.45, false)
	r.RecordDecision("BTCUSD", "weighted_vote", models.SignalBuy, 0.7, true)
	r.RecordNearMiss("BTCUSD")
	r.RecordTrade("BTCUSD", models.ActionBuy, true)
	r.RecordTrade("BTCUSD", models.ActionSell, false)
	r.RecordCycle("manual", 0.1, true)
	r.RecordPortfolioValue(10073.74)

	assert.Equal(t, 1.0, testutil.ToFloat64(r.decisions.WithLabelValues("BTCUSD", "HOLD", "true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.decisions.WithLabelValues("BTCUSD", "BUY", "false")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.nearMiss.WithLabelValues("BTCUSD")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.trades.WithLabelValues("BTCUSD", "SELL", "rejected")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.cyclesSkipped.WithLabelValues("manual")))
	assert.Equal(t, 10073.74, testutil.ToFloat64(r.portfolioValue))
}
