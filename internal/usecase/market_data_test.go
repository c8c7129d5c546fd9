package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"TradeDesk/internal/domain/models"
	domrepo "TradeDesk/internal/domain/repository"
	"TradeDesk/internal/service/quotes"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func hourly(symbol string, n int, start float64) []models.Candle {
	out := make([]models.Candle, n)
	for i := range out {
		p := start + float64(i)
		out[i] = models.Candle{Timestamp: t0.Add(time.Duration(i) * time.Hour), Symbol: symbol, Open: p, High: p, Low: p, Close: p, Volume: 10}
	}
	return out
}

type fakeCandleStore struct {
	candles map[string][]models.Candle
	saved   int
	err     error
}

func (s *fakeCandleStore) Load(_ context.Context, symbol string, _ domrepo.Interval, from, to time.Time) ([]models.Candle, error) {
	var out []models.Candle
	for _, c := range s.candles[symbol] {
		if !c.Timestamp.Before(from) && !c.Timestamp.After(to) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *fakeCandleStore) Save(_ context.Context, symbol string, _ domrepo.Interval, cs []models.Candle) error {
	if s.candles == nil {
		s.candles = map[string][]models.Candle{}
	}
	s.saved += len(cs)
	s.candles[symbol] = mergeCandles(s.candles[symbol], cs)
	return nil
}

func (s *fakeCandleStore) Latest(_ context.Context, symbol string, _ domrepo.Interval) (time.Time, error) {
	if s.err != nil {
		return time.Time{}, s.err
	}
	cs := s.candles[symbol]
	if len(cs) == 0 {
		return time.Time{}, nil
	}
	return cs[len(cs)-1].Timestamp, nil
}

func TestCandleCacheFetchesIncrementally(t *testing.T) {
	all := hourly("BTCUSD", 10, 100)
	src := &fakeHistory{candles: map[string][]models.Candle{"BTCUSD": all}}
	store := &fakeCandleStore{candles: map[string][]models.Candle{"BTCUSD": all[:6]}}
	c := NewCandleCache(store, src, nil)
	c.now = func() time.Time { return t0.Add(24 * time.Hour) }

	since := t0.Add(-time.Hour)
	got, err := c.GetHistory(context.Background(), "BTCUSD", domrepo.Interval1h, since)
	require.NoError(t, err)
	assert.Len(t, got, 10)
	require.Len(t, src.calls, 1)
	assert.Equal(t, all[5].Timestamp, src.calls[0])
	assert.Equal(t, 4, store.saved)
}

func TestCandleCacheFallsBackWhenStoreDown(t *testing.T) {
	src := &fakeHistory{candles: map[string][]models.Candle{"BTCUSD": hourly("BTCUSD", 3, 1)}}
	c := NewCandleCache(&fakeCandleStore{err: errors.New("down")}, src, nil)
	got, err := c.GetHistory(context.Background(), "BTCUSD", domrepo.Interval1h, t0.Add(-time.Hour))
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestMergeCandlesPrefersLaterCopy(t *testing.T) {
	a := hourly("X", 3, 1)
	b := hourly("X", 2, 50)
	b[0].Timestamp, b[1].Timestamp = a[2].Timestamp, a[2].Timestamp.Add(time.Hour)
	got := mergeCandles(a, b)
	require.Len(t, got, 4)
	assert.Equal(t, 50.0, got[2].Close)
	assert.Equal(t, 51.0, got[3].Close)
}

type fakeTicker struct {
	q   *models.Quote
	err error
}

func (f *fakeTicker) Ticker(context.Context, string) (*models.Quote, error) { return f.q, f.err }

func TestLiveMarketDataPriceFallback(t *testing.T) {
	ctx := context.Background()
	hist := &fakeHistory{candles: map[string][]models.Candle{"BTCUSD": hourly("BTCUSD", 5, 100)}}
	now := func() time.Time { return t0.Add(5 * time.Hour) }

	m := NewLiveMarketData(quotes.NewBook(0), &fakeTicker{err: errors.New("down")}, hist, domrepo.Interval1h, 24)
	m.now = now
	p, err := m.CurrentPrice(ctx, "BTCUSD")
	require.NoError(t, err)
	assert.Equal(t, 104.0, p)

	m.ticker = &fakeTicker{q: &models.Quote{Symbol: "BTCUSD", Price: 200, Volume: 9, Timestamp: now()}}
	p, err = m.CurrentPrice(ctx, "BTCUSD")
	require.NoError(t, err)
	assert.Equal(t, 200.0, p)
	_, cached := m.book.Get("BTCUSD")
	assert.True(t, cached)

	m.book.Put(models.Quote{Symbol: "BTCUSD", Price: 300, Timestamp: now().Add(time.Minute)})
	mc, err := m.Context(ctx, "BTCUSD", []string{"news"})
	require.NoError(t, err)
	assert.Equal(t, 300.0, mc.Price)
	assert.Len(t, mc.PriceHistory, 5)
	assert.Equal(t, 300.0, mc.PriceHistory[4])
	assert.Equal(t, 10.0, mc.Volume)
	assert.Equal(t, []string{"news"}, mc.Headlines)

	m.ticker = &fakeTicker{err: errors.New("down")}
	_, err = m.CurrentPrice(ctx, "DOGEUSD")
	assert.ErrorIs(t, err, quotes.ErrNoQuote)
}
