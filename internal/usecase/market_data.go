package usecase

import (
	"context"
	"fmt"
	"time"

	"TradeDesk/internal/domain/models"
	domrepo "TradeDesk/internal/domain/repository"
	"TradeDesk/internal/service/quotes"
	applogger "TradeDesk/pkg/logger"
)

// HistoryProvider returns ascending candles newer than since.
type HistoryProvider interface {
	GetHistory(ctx context.Context, symbol string, interval domrepo.Interval, since time.Time) ([]models.Candle, error)
}

// TickerSource fetches a single current quote.
type TickerSource interface {
	Ticker(ctx context.Context, symbol string) (*models.Quote, error)
}

// CandleCache fronts a HistoryProvider with a CandleStore. Only candles newer
// than the latest cached one are fetched.
type CandleCache struct {
	store domrepo.CandleStore
	src   HistoryProvider
	lgr   *applogger.Logger
	now   func() time.Time
}

func NewCandleCache(store domrepo.CandleStore, src HistoryProvider, lgr *applogger.Logger) *CandleCache {
	if lgr == nil {
		lgr = applogger.Nop()
	}
	return &CandleCache{store: store, src: src, lgr: lgr, now: time.Now}
}

func (c *CandleCache) GetHistory(ctx context.Context, symbol string, interval domrepo.Interval, since time.Time) ([]models.Candle, error) {
	latest, err := c.store.Latest(ctx, symbol, interval)
	if err != nil {
		c.lgr.Warn("candle cache unavailable, fetching directly", applogger.String("symbol", symbol), applogger.Error(err))
		return c.src.GetHistory(ctx, symbol, interval, since)
	}
	from := since
	if latest.After(from) {
		from = latest
	}
	fresh, err := c.src.GetHistory(ctx, symbol, interval, from)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", symbol, err)
	}
	if err := c.store.Save(ctx, symbol, interval, fresh); err != nil {
		c.lgr.Warn("candle cache save failed", applogger.String("symbol", symbol), applogger.Error(err))
	}
	cached, err := c.store.Load(ctx, symbol, interval, since.Add(time.Nanosecond), c.now())
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", symbol, err)
	}
	return mergeCandles(cached, fresh), nil
}

// mergeCandles unions two ascending series, keeping the later copy of a timestamp.
func mergeCandles(a, b []models.Candle) []models.Candle {
	out := make([]models.Candle, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) || j < len(b) {
		switch {
		case j >= len(b):
			out = append(out, a[i])
			i++
		case i >= len(a):
			out = append(out, b[j])
			j++
		case a[i].Timestamp.Before(b[j].Timestamp):
			out = append(out, a[i])
			i++
		case b[j].Timestamp.Before(a[i].Timestamp):
			out = append(out, b[j])
			j++
		default:
			out = append(out, b[j])
			i++
			j++
		}
	}
	return out
}

// LiveMarketData serves current prices from the quote book, then the REST
// ticker, then the close of the latest candle.
type LiveMarketData struct {
	book     *quotes.Book
	ticker   TickerSource
	history  HistoryProvider
	interval domrepo.Interval
	lookback int
	now      func() time.Time
}

var _ domrepo.MarketData = (*LiveMarketData)(nil)

func NewLiveMarketData(book *quotes.Book, ticker TickerSource, history HistoryProvider, interval domrepo.Interval, lookback int) *LiveMarketData {
	if lookback <= 0 {
		lookback = 100
	}
	return &LiveMarketData{book: book, ticker: ticker, history: history, interval: interval, lookback: lookback, now: time.Now}
}

func (m *LiveMarketData) GetHistory(ctx context.Context, symbol string, interval domrepo.Interval, since time.Time) ([]models.Candle, error) {
	return m.history.GetHistory(ctx, symbol, interval, since)
}

// Recent returns the last lookback candles of the live interval.
func (m *LiveMarketData) Recent(ctx context.Context, symbol string) ([]models.Candle, error) {
	since := m.now().Add(-time.Duration(m.lookback*m.interval.Minutes()) * time.Minute)
	cs, err := m.history.GetHistory(ctx, symbol, m.interval, since)
	if err != nil {
		return nil, err
	}
	if len(cs) > m.lookback {
		cs = cs[len(cs)-m.lookback:]
	}
	return cs, nil
}

func (m *LiveMarketData) quote(ctx context.Context, symbol string) (models.Quote, error) {
	if m.book != nil {
		if q, ok := m.book.Get(symbol); ok {
			return q, nil
		}
	}
	if m.ticker != nil {
		q, err := m.ticker.Ticker(ctx, symbol)
		if err == nil && q != nil && q.Price > 0 {
			if m.book != nil {
				m.book.Put(*q)
			}
			return *q, nil
		}
	}
	cs, err := m.Recent(ctx, symbol)
	if err != nil {
		return models.Quote{}, fmt.Errorf("quote %s: %w", symbol, err)
	}
	if len(cs) == 0 {
		return models.Quote{}, fmt.Errorf("quote %s: %w", symbol, quotes.ErrNoQuote)
	}
	last := cs[len(cs)-1]
	return models.Quote{Symbol: symbol, Price: last.Close, Volume: last.Volume, Timestamp: last.Timestamp}, nil
}

func (m *LiveMarketData) CurrentPrice(ctx context.Context, symbol string) (float64, error) {
	q, err := m.quote(ctx, symbol)
	return q.Price, err
}

func (m *LiveMarketData) CurrentVolume(ctx context.Context, symbol string) (float64, error) {
	q, err := m.quote(ctx, symbol)
	return q.Volume, err
}

// Context builds a strategy context from recent candles overlaid with the current quote.
func (m *LiveMarketData) Context(ctx context.Context, symbol string, headlines []string) (models.MarketContext, error) {
	cs, err := m.Recent(ctx, symbol)
	if err != nil {
		return models.MarketContext{}, err
	}
	mc := models.ContextFromCandles(symbol, cs, headlines)
	if q, err := m.quote(ctx, symbol); err == nil {
		mc.Price = q.Price
		if n := len(mc.PriceHistory); n > 0 {
			mc.PriceHistory[n-1] = q.Price
		} else {
			// ticker volume is a rolling 24h figure, only used without candles
			mc.Volume = q.Volume
		}
	}
	if mc.Timestamp.IsZero() || m.now().After(mc.Timestamp) {
		mc.Timestamp = m.now().UTC()
	}
	return mc, nil
}
