package kraken

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"TradeDesk/internal/domain/models"
	drepo "TradeDesk/internal/domain/repository"
	"TradeDesk/internal/service/ratelimit"
	xhttp "TradeDesk/pkg/http"
	applogger "TradeDesk/pkg/logger"
	"TradeDesk/pkg/util"
)

// PageSize is the number of candles Kraken returns per OHLC call.
const PageSize = 720

const (
	ohlcPath   = "/0/public/OHLC"
	tickerPath = "/0/public/Ticker"
	limiterKey = "kraken_rest"
)

// RESTClient reads candles and tickers from the Kraken public API.
type RESTClient struct {
	baseURL  string
	client   *xhttp.Client
	limiter  *ratelimit.Limiter
	lgr      *applogger.Logger
	maxPages int
	attempts int
}

// RESTOption configures RESTClient.
type RESTOption func(*RESTClient)

// WithLimiter throttles outgoing calls.
func WithLimiter(l *ratelimit.Limiter) RESTOption {
	return func(c *RESTClient) { c.limiter = l }
}

// WithMaxPages bounds pagination for one GetHistory call.
func WithMaxPages(n int) RESTOption {
	return func(c *RESTClient) {
		if n > 0 {
			c.maxPages = n
		}
	}
}

// NewRESTClient creates a client for baseURL, e.g. https://api.kraken.com.
func NewRESTClient(baseURL string, timeout time.Duration, lgr *applogger.Logger, opts ...RESTOption) *RESTClient {
	if lgr == nil {
		lgr = applogger.Nop()
	}
	c := &RESTClient{
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   xhttp.NewClient(xhttp.WithTimeout(timeout)),
		lgr:      lgr,
		maxPages: 50,
		attempts: 3,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type envelope struct {
	Error  []string        `json:"error"`
	Result json.RawMessage `json:"result"`
}

func (c *RESTClient) get(ctx context.Context, path string, query map[string][]string) (json.RawMessage, error) {
	var lastErr error
	for attempt := 1; attempt <= c.attempts; attempt++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx, limiterKey); err != nil {
				return nil, err
			}
		}
		var env envelope
		err := c.client.SendAndParse(ctx, &xhttp.RequestOptions{
			Method:      xhttp.MethodGet,
			URL:         c.baseURL + path,
			QueryParams: query,
		}, &env)
		if err == nil {
			if len(env.Error) > 0 {
				return nil, fmt.Errorf("kraken %s: %s", path, strings.Join(env.Error, "; "))
			}
			return env.Result, nil
		}
		lastErr = err
		var se *xhttp.StatusError
		if !errors.As(err, &se) || !se.Retryable() || attempt == c.attempts {
			break
		}
		backoff := time.Duration(attempt) * 500 * time.Millisecond
		if se.RetryAfter > backoff {
			backoff = se.RetryAfter
		}
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return nil, fmt.Errorf("kraken %s: %w", path, lastErr)
}

// GetHistory returns ascending candles newer than since, de-duplicated by timestamp.
func (c *RESTClient) GetHistory(ctx context.Context, symbol string, interval drepo.Interval, since time.Time) ([]models.Candle, error) {
	if !drepo.IsValidInterval(interval) {
		return nil, fmt.Errorf("unsupported interval %q", interval)
	}
	canonical, err := util.NormalizeSymbol(symbol)
	if err != nil {
		return nil, err
	}
	pair := util.KrakenPair(canonical)

	cursor := since.Unix()
	if since.IsZero() {
		cursor = 0
	}
	seen := make(map[int64]bool)
	var out []models.Candle
	for page := 0; page < c.maxPages; page++ {
		raw, err := c.get(ctx, ohlcPath, map[string][]string{
			"pair":     {pair},
			"interval": {strconv.Itoa(interval.Minutes())},
			"since":    {strconv.FormatInt(cursor, 10)},
		})
		if err != nil {
			return nil, err
		}
		candles, last, err := parseOHLC(raw, canonical)
		if err != nil {
			return nil, err
		}
		for _, cd := range candles {
			ts := cd.Timestamp.Unix()
			if seen[ts] || (!since.IsZero() && !cd.Timestamp.After(since)) {
				continue
			}
			seen[ts] = true
			out = append(out, cd)
		}
		if len(candles) < PageSize || last <= cursor {
			break
		}
		cursor = last
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	c.lgr.Debug("kraken history fetched",
		applogger.String("symbol", canonical),
		applogger.String("interval", string(interval)),
		applogger.Int("candles", len(out)))
	return out, nil
}

// parseOHLC decodes {"<pair>": [[time, o, h, l, c, vwap, volume, count], ...], "last": n}.
func parseOHLC(raw json.RawMessage, symbol string) ([]models.Candle, int64, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, 0, fmt.Errorf("decode ohlc: %w", err)
	}
	var last int64
	var candles []models.Candle
	for key, val := range fields {
		if key == "last" {
			if err := json.Unmarshal(val, &last); err != nil {
				return nil, 0, fmt.Errorf("decode ohlc last: %w", err)
			}
			continue
		}
		var rows [][]interface{}
		if err := json.Unmarshal(val, &rows); err != nil {
			return nil, 0, fmt.Errorf("decode ohlc rows: %w", err)
		}
		for _, row := range rows {
			if len(row) < 7 {
				continue
			}
			cd := models.Candle{
				Timestamp: time.Unix(int64(num(row[0])), 0).UTC(),
				Symbol:    symbol,
				Open:      num(row[1]),
				High:      num(row[2]),
				Low:       num(row[3]),
				Close:     num(row[4]),
				VWAP:      num(row[5]),
				Volume:    num(row[6]),
			}
			candles = append(candles, cd)
		}
	}
	return candles, last, nil
}

func num(v interface{}) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case string:
		f, _ := strconv.ParseFloat(x, 64)
		return f
	case json.Number:
		f, _ := x.Float64()
		return f
	}
	return 0
}

type tickerInfo struct {
	Last   []string `json:"c"`
	Volume []string `json:"v"`
}

// Ticker returns the last trade price and 24h volume.
func (c *RESTClient) Ticker(ctx context.Context, symbol string) (*models.Quote, error) {
	canonical, err := util.NormalizeSymbol(symbol)
	if err != nil {
		return nil, err
	}
	raw, err := c.get(ctx, tickerPath, map[string][]string{"pair": {util.KrakenPair(canonical)}})
	if err != nil {
		return nil, err
	}
	var byPair map[string]tickerInfo
	if err := json.Unmarshal(raw, &byPair); err != nil {
		return nil, fmt.Errorf("decode ticker: %w", err)
	}
	for _, t := range byPair {
		q := &models.Quote{Symbol: canonical, Timestamp: time.Now().UTC()}
		if len(t.Last) > 0 {
			q.Price = num(t.Last[0])
		}
		if len(t.Volume) > 1 {
			q.Volume = num(t.Volume[1])
		}
		if q.Price <= 0 {
			return nil, fmt.Errorf("ticker %s: no price", canonical)
		}
		return q, nil
	}
	return nil, fmt.Errorf("ticker %s: empty result", canonical)
}
