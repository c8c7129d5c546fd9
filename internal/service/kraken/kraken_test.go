package kraken

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	drepo "TradeDesk/internal/domain/repository"
	applogger "TradeDesk/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ohlcRow(ts int64, price float64) string {
	return fmt.Sprintf(`[%d,"%g","%g","%g","%g","%g","%g",10]`, ts, price, price+1, price-1, price, price, 2.5)
}

func TestGetHistoryParsesAndSorts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/0/public/OHLC", r.URL.Path)
		assert.Equal(t, "XBTUSD", r.URL.Query().Get("pair"))
		assert.Equal(t, "60", r.URL.Query().Get("interval"))
		fmt.Fprintf(w, `{"error":[],"result":{"XXBTZUSD":[%s,%s,%s],"last":7200}}`,
			ohlcRow(7200, 102), ohlcRow(3600, 101), ohlcRow(3600, 101))
	}))
	defer srv.Close()

	c := NewRESTClient(srv.URL, time.Second, applogger.Nop())
	candles, err := c.GetHistory(context.Background(), "BTC", drepo.Interval1h, time.Time{})
	require.NoError(t, err)
	require.Len(t, candles, 2)
	assert.Equal(t, int64(3600), candles[0].Timestamp.Unix())
	assert.Equal(t, "BTCUSD", candles[0].Symbol)
	assert.Equal(t, 102.0, candles[1].Close)
	assert.Equal(t, 2.5, candles[1].Volume)
}

func TestGetHistoryPaginates(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		since, _ := strconv.ParseInt(r.URL.Query().Get("since"), 10, 64)
		n := PageSize
		if since > 0 {
			n = 3
		}
		fmt.Fprint(w, `{"error":[],"result":{"XETHZUSD":[`)
		for i := 0; i < n; i++ {
			if i > 0 {
				fmt.Fprint(w, ",")
			}
			fmt.Fprint(w, ohlcRow(since+int64(i+1)*60, 10))
		}
		fmt.Fprintf(w, `],"last":%d}}`, since+int64(n)*60)
	}))
	defer srv.Close()

	c := NewRESTClient(srv.URL, time.Second, applogger.Nop())
	candles, err := c.GetHistory(context.Background(), "ETHUSD", drepo.Interval1m, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
	assert.Len(t, candles, PageSize+3)
}

func TestGetHistoryReportsAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"error":["EQuery:Unknown asset pair"]}`)
	}))
	defer srv.Close()

	c := NewRESTClient(srv.URL, time.Second, applogger.Nop())
	_, err := c.GetHistory(context.Background(), "SOLUSD", drepo.Interval1h, time.Time{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Unknown asset pair")

	_, err = c.GetHistory(context.Background(), "SOLUSD", drepo.Interval("2h"), time.Time{})
	assert.Error(t, err)
}

func TestGetHistoryRetriesOnTooManyRequests(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprintf(w, `{"error":[],"result":{"XXBTZUSD":[%s],"last":60}}`, ohlcRow(60, 5))
	}))
	defer srv.Close()

	c := NewRESTClient(srv.URL, time.Second, applogger.Nop())
	candles, err := c.GetHistory(context.Background(), "BTCUSD", drepo.Interval1m, time.Time{})
	require.NoError(t, err)
	assert.Len(t, candles, 1)
	assert.Equal(t, int32(2), calls.Load())
}

func TestTicker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/0/public/Ticker", r.URL.Path)
		fmt.Fprint(w, `{"error":[],"result":{"XXBTZUSD":{"c":["50000.5","0.1"],"v":["100","250.5"]}}}`)
	}))
	defer srv.Close()

	q, err := NewRESTClient(srv.URL, time.Second, nil).Ticker(context.Background(), "XBTUSD")
	require.NoError(t, err)
	assert.Equal(t, "BTCUSD", q.Symbol)
	assert.Equal(t, 50000.5, q.Price)
	assert.Equal(t, 250.5, q.Volume)
}

func TestDecodeTicker(t *testing.T) {
	now := time.Unix(100, 0)
	qs := decodeTicker([]byte(`{"channel":"ticker","type":"update","data":[{"symbol":"BTC/USD","last":50000,"volume":12.5},{"symbol":"???","last":1}]}`), now)
	require.Len(t, qs, 1)
	assert.Equal(t, "BTCUSD", qs[0].Symbol)
	assert.Equal(t, 50000.0, qs[0].Price)
	assert.Equal(t, 12.5, qs[0].Volume)

	assert.Empty(t, decodeTicker([]byte(`{"channel":"heartbeat"}`), now))
	assert.Empty(t, decodeTicker([]byte(`not json`), now))
}
