package repository

import (
	"context"
	"errors"
	"time"

	"TradeDesk/internal/domain/models"
)

// ErrNotFound is returned by lookups that have nothing to return.
var ErrNotFound = errors.New("not found")

// MarketData is the read side of the market.
type MarketData interface {
	GetHistory(ctx context.Context, symbol string, interval Interval, since time.Time) ([]models.Candle, error)
	CurrentPrice(ctx context.Context, symbol string) (float64, error)
	CurrentVolume(ctx context.Context, symbol string) (float64, error)
}

// Persistence records decisions and trades. Returned ids link a trade to its decision.
type Persistence interface {
	Init(ctx context.Context) error
	RecordDecision(ctx context.Context, d *models.AggregatedDecision) (string, error)
	RecordTrade(ctx context.Context, t *models.Trade, decisionID string) error
	GetOpenPositions(ctx context.Context) ([]models.Position, error)
	// GetCashFlow is the net cash moved by every recorded trade: sell
	// proceeds minus buy costs, fees included.
	GetCashFlow(ctx context.Context) (float64, error)
	LatestDecision(ctx context.Context, symbol string) (*models.AggregatedDecision, error)
	ListTrades(ctx context.Context, symbol string, limit int) ([]models.Trade, error)
	Health(ctx context.Context) error
	Close() error
}

// Notifier is told about executed trades.
type Notifier interface {
	OnTrade(ctx context.Context, t *models.Trade) error
	OnDecision(ctx context.Context, d *models.AggregatedDecision) error
	Close() error
}

// CandleStore caches fetched candles between runs.
type CandleStore interface {
	Load(ctx context.Context, symbol string, interval Interval, from, to time.Time) ([]models.Candle, error)
	Save(ctx context.Context, symbol string, interval Interval, candles []models.Candle) error
	Latest(ctx context.Context, symbol string, interval Interval) (time.Time, error)
}

// CycleLock guards a live cycle across processes.
type CycleLock interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key string) error
}

// QuoteSource yields streaming quotes.
type QuoteSource interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context) error
	Read(ctx context.Context) (<-chan *models.Quote, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

type Metrics interface {
	RecordDecision(symbol, method string, signal models.Signal, confidence float64, executed bool)
	RecordNearMiss(symbol string)
	RecordStrategyError(strategy string)
	RecordTrade(symbol string, action models.Action, success bool)
	RecordCycle(trigger string, seconds float64, skipped bool)
	RecordPortfolioValue(value float64)
	RecordLastPrice(symbol string, price float64)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}
