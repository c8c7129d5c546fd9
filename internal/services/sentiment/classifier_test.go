package sentiment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"TradeDesk/internal/domain/models"
	"TradeDesk/pkg/config"
	applogger "TradeDesk/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClassifier(url string, retries int) *Classifier {
	cfg := &config.Config{}
	cfg.Sentiment.ServiceURL = url
	cfg.Sentiment.Timeout = time.Second
	cfg.Sentiment.Retries = retries
	return NewClassifier(applogger.Nop(), cfg)
}

func TestMatchKeywords(t *testing.T) {
	sig, reason, ok := MatchKeywords("Bitcoin SURGES past 100k")
	require.True(t, ok)
	assert.Equal(t, models.SignalBuy, sig)
	assert.Contains(t, reason, "positive")

	sig, _, ok = MatchKeywords("Exchange hack drains wallets")
	require.True(t, ok)
	assert.Equal(t, models.SignalSell, sig)

	_, _, ok = MatchKeywords("Fed holds rates")
	assert.False(t, ok)

	for _, h := range []string{"Bank adds bitcoin custody", "Urban miners expand", "Banner year for ETFs"} {
		_, _, ok = MatchKeywords(h)
		assert.False(t, ok, h)
	}

	sig, _, ok = MatchKeywords("Country banned mining")
	require.True(t, ok)
	assert.Equal(t, models.SignalSell, sig)
}

func TestClassifyIgnoresWordFragments(t *testing.T) {
	sig, reason, err := newClassifier("", 1).Classify(context.Background(),
		[]string{"Bank opens crypto desk", "BTC rally extends"}, "BTCUSD")
	require.NoError(t, err)
	assert.Equal(t, models.SignalBuy, sig)
	assert.Contains(t, reason, "rally")
}

func TestClassifyPrefersSellHits(t *testing.T) {
	c := newClassifier("", 1)
	sig, reason, err := c.Classify(context.Background(), []string{"ETH rally extends", "Regulator ban looms"}, "ETHUSD")
	require.NoError(t, err)
	assert.Equal(t, models.SignalSell, sig)
	assert.Contains(t, reason, "ban")

	sig, _, err = c.Classify(context.Background(), []string{"Quiet day", "New adoption milestone"}, "ETHUSD")
	require.NoError(t, err)
	assert.Equal(t, models.SignalBuy, sig)
}

func TestClassifyWithoutServiceHolds(t *testing.T) {
	sig, reason, err := newClassifier("", 1).Classify(context.Background(), []string{"Fed holds rates"}, "BTCUSD")
	require.NoError(t, err)
	assert.Equal(t, models.SignalHold, sig)
	assert.Contains(t, reason, "No clear sentiment")
}

func TestClassifyUsesService(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/sentiment/classify", r.URL.Path)
		var req classifyRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "BTCUSD", req.Symbol)
		_ = json.NewEncoder(w).Encode(classifyResponse{Signal: "buy", Reason: "ETF inflows"})
	}))
	defer srv.Close()

	sig, reason, err := newClassifier(srv.URL, 1).Classify(context.Background(), []string{"ETF inflows continue"}, "BTCUSD")
	require.NoError(t, err)
	assert.Equal(t, models.SignalBuy, sig)
	assert.Equal(t, "ETF inflows", reason)
}

func TestClassifyServiceErrorDegradesToHold(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	sig, reason, err := newClassifier(srv.URL, 2).Classify(context.Background(), []string{"Fed holds rates"}, "BTCUSD")
	require.NoError(t, err)
	assert.Equal(t, models.SignalHold, sig)
	assert.Contains(t, reason, "Sentiment service error")
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}
