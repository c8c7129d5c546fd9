package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"TradeDesk/internal/domain/models"
	domrepo "TradeDesk/internal/domain/repository"
	pkgch "TradeDesk/pkg/clickhouse"
	applogger "TradeDesk/pkg/logger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Schema creates the tables used by ClickHouseStore.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS decisions (
		id String,
		ts DateTime64(3, 'UTC'),
		symbol LowCardinality(String),
		method LowCardinality(String),
		signal LowCardinality(String),
		confidence Float64,
		price Decimal(18, 8),
		would_execute UInt8,
		near_miss UInt8,
		original_signal LowCardinality(String),
		original_confidence Float64,
		payload String
	) ENGINE = MergeTree ORDER BY (symbol, ts)`,
	`CREATE TABLE IF NOT EXISTS trades (
		id String,
		ts DateTime64(3, 'UTC'),
		symbol LowCardinality(String),
		action LowCardinality(String),
		price Decimal(18, 8),
		amount Decimal(18, 8),
		gross_value Decimal(18, 8),
		fee Decimal(18, 8),
		net_value Decimal(18, 8),
		decision_id String
	) ENGINE = MergeTree ORDER BY (symbol, ts)`,
	`CREATE TABLE IF NOT EXISTS candles (
		symbol LowCardinality(String),
		interval LowCardinality(String),
		ts DateTime('UTC'),
		open Float64,
		high Float64,
		low Float64,
		close Float64,
		vwap Float64,
		volume Float64
	) ENGINE = ReplacingMergeTree ORDER BY (symbol, interval, ts)`,
}

// ClickHouseStore implements Persistence and CandleStore on ClickHouse.
type ClickHouseStore struct {
	ch *pkgch.Client
	db *sql.DB
	l  *applogger.Logger
}

var (
	_ domrepo.Persistence = (*ClickHouseStore)(nil)
	_ domrepo.CandleStore = (*ClickHouseStore)(nil)
)

func NewClickHouseStore(ch *pkgch.Client, l *applogger.Logger) *ClickHouseStore {
	if l == nil {
		l = applogger.Nop()
	}
	return &ClickHouseStore{ch: ch, db: ch.DB(), l: l}
}

func (s *ClickHouseStore) Init(ctx context.Context) error {
	return s.ch.InitSchema(ctx, Schema)
}

func money(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v).Round(8)
}

func boolToUInt8(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}

func (s *ClickHouseStore) RecordDecision(ctx context.Context, d *models.AggregatedDecision) (string, error) {
	id := d.ID
	if id == "" {
		id = uuid.NewString()
	}
	cp := *d
	cp.ID = id
	payload, err := json.Marshal(cp)
	if err != nil {
		return "", fmt.Errorf("marshal decision: %w", err)
	}
	const q = `INSERT INTO decisions (id, ts, symbol, method, signal, confidence, price, would_execute, near_miss, original_signal, original_confidence, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = s.db.ExecContext(ctx, q,
		id,
		d.Timestamp.UTC(),
		d.Symbol,
		d.Method,
		string(d.Signal),
		d.Confidence,
		money(d.Price),
		boolToUInt8(d.Execution.WouldExecute),
		boolToUInt8(d.Execution.NearMiss),
		string(d.Execution.OriginalSignal),
		d.Execution.OriginalConfidence,
		string(payload),
	)
	if err != nil {
		s.l.Error("clickhouse record_decision error", applogger.String("symbol", d.Symbol), applogger.Error(err))
		return "", fmt.Errorf("insert decision: %w", err)
	}
	return id, nil
}

func (s *ClickHouseStore) RecordTrade(ctx context.Context, t *models.Trade, decisionID string) error {
	const q = `INSERT INTO trades (id, ts, symbol, action, price, amount, gross_value, fee, net_value, decision_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, q,
		uuid.NewString(),
		t.Timestamp.UTC(),
		t.Symbol,
		string(t.Action),
		money(t.Price),
		money(t.Amount),
		money(t.GrossValue),
		money(t.Fee),
		money(t.NetValue),
		decisionID,
	)
	if err != nil {
		s.l.Error("clickhouse record_trade error", applogger.String("symbol", t.Symbol), applogger.Error(err))
		return fmt.Errorf("insert trade: %w", err)
	}
	return nil
}

func (s *ClickHouseStore) queryTrades(ctx context.Context, q string, args ...any) ([]models.Trade, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query trades: %w", err)
	}
	defer rows.Close()

	var out []models.Trade
	for rows.Next() {
		var (
			t                          decimalRow
			ts                         time.Time
			symbol, action, decisionID string
		)
		if err := rows.Scan(&ts, &symbol, &action, &t.price, &t.amount, &t.gross, &t.fee, &t.net, &decisionID); err != nil {
			return nil, fmt.Errorf("scan trade: %w", err)
		}
		out = append(out, t.trade(ts, symbol, models.Action(action), decisionID))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

type decimalRow struct {
	price, amount, gross, fee, net decimal.Decimal
}

func (r decimalRow) trade(ts time.Time, symbol string, action models.Action, decisionID string) models.Trade {
	return models.Trade{
		Timestamp:  ts.UTC(),
		Action:     action,
		Symbol:     symbol,
		Price:      r.price.InexactFloat64(),
		Amount:     r.amount.InexactFloat64(),
		GrossValue: r.gross.InexactFloat64(),
		Fee:        r.fee.InexactFloat64(),
		NetValue:   r.net.InexactFloat64(),
		DecisionID: decisionID,
	}
}

const tradeColumns = "ts, symbol, action, price, amount, gross_value, fee, net_value, decision_id"

// GetOpenPositions replays the trade log.
func (s *ClickHouseStore) GetOpenPositions(ctx context.Context) ([]models.Position, error) {
	trades, err := s.queryTrades(ctx, "SELECT "+tradeColumns+" FROM trades ORDER BY ts ASC")
	if err != nil {
		return nil, err
	}
	return replayPositions(trades), nil
}

// GetCashFlow aggregates net trade values in ClickHouse.
func (s *ClickHouseStore) GetCashFlow(ctx context.Context) (float64, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT toString(sumIf(net_value, action = 'SELL') - sumIf(net_value, action = 'BUY')) FROM trades")
	var raw string
	if err := row.Scan(&raw); err != nil {
		return 0, fmt.Errorf("trade cash flow: %w", err)
	}
	flow, err := decimal.NewFromString(raw)
	if err != nil {
		return 0, fmt.Errorf("trade cash flow %q: %w", raw, err)
	}
	return flow.InexactFloat64(), nil
}

func (s *ClickHouseStore) ListTrades(ctx context.Context, symbol string, limit int) ([]models.Trade, error) {
	var (
		where []string
		args  []any
	)
	if symbol != "" {
		where = append(where, "symbol = ?")
		args = append(args, symbol)
	}
	q := "SELECT " + tradeColumns + " FROM trades"
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY ts DESC"
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}
	trades, err := s.queryTrades(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(trades)-1; i < j; i, j = i+1, j-1 {
		trades[i], trades[j] = trades[j], trades[i]
	}
	return trades, nil
}

func (s *ClickHouseStore) LatestDecision(ctx context.Context, symbol string) (*models.AggregatedDecision, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, "SELECT payload FROM decisions WHERE symbol = ? ORDER BY ts DESC LIMIT 1", symbol).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domrepo.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("latest decision: %w", err)
	}
	var d models.AggregatedDecision
	if err := json.Unmarshal([]byte(payload), &d); err != nil {
		return nil, fmt.Errorf("decode decision: %w", err)
	}
	return &d, nil
}

func (s *ClickHouseStore) Load(ctx context.Context, symbol string, interval domrepo.Interval, from, to time.Time) ([]models.Candle, error) {
	const q = `SELECT ts, open, high, low, close, vwap, volume FROM candles FINAL
		WHERE symbol = ? AND interval = ? AND ts >= ? AND ts <= ? ORDER BY ts ASC`
	rows, err := s.db.QueryContext(ctx, q, symbol, string(interval), from.UTC(), to.UTC())
	if err != nil {
		s.l.Error("clickhouse load_candles query error",
			applogger.String("symbol", symbol),
			applogger.String("interval", string(interval)),
			applogger.Error(err),
		)
		return nil, fmt.Errorf("load candles: %w", err)
	}
	defer rows.Close()

	out := make([]models.Candle, 0, 1024)
	for rows.Next() {
		c := models.Candle{Symbol: symbol}
		if err := rows.Scan(&c.Timestamp, &c.Open, &c.High, &c.Low, &c.Close, &c.VWAP, &c.Volume); err != nil {
			return nil, fmt.Errorf("scan candle: %w", err)
		}
		c.Timestamp = c.Timestamp.UTC()
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

func (s *ClickHouseStore) Save(ctx context.Context, symbol string, interval domrepo.Interval, candles []models.Candle) error {
	if len(candles) == 0 {
		return nil
	}
	const chunkSize = 2000
	for start := 0; start < len(candles); start += chunkSize {
		end := start + chunkSize
		if end > len(candles) {
			end = len(candles)
		}
		values := make([]string, 0, end-start)
		args := make([]any, 0, (end-start)*9)
		for _, c := range candles[start:end] {
			values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?, ?)")
			args = append(args, symbol, string(interval), c.Timestamp.UTC(), c.Open, c.High, c.Low, c.Close, c.VWAP, c.Volume)
		}
		q := "INSERT INTO candles (symbol, interval, ts, open, high, low, close, vwap, volume) VALUES " + strings.Join(values, ",")
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("save candles: %w", err)
		}
	}
	return nil
}

// Latest returns the newest cached candle time, or the zero time when none is cached.
func (s *ClickHouseStore) Latest(ctx context.Context, symbol string, interval domrepo.Interval) (time.Time, error) {
	var (
		ts    time.Time
		count uint64
	)
	err := s.db.QueryRowContext(ctx, "SELECT max(ts), count() FROM candles WHERE symbol = ? AND interval = ?", symbol, string(interval)).Scan(&ts, &count)
	if err != nil {
		return time.Time{}, fmt.Errorf("latest candle: %w", err)
	}
	if count == 0 {
		return time.Time{}, nil
	}
	return ts.UTC(), nil
}

func (s *ClickHouseStore) Health(ctx context.Context) error {
	return s.ch.Health(ctx)
}

// Close is a no-op; the client is owned by the caller.
func (s *ClickHouseStore) Close() error {
	return nil
}
