package clickhouse

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
)

// Client owns the database/sql pool used by the trade and candle stores.
type Client struct {
	db   *sql.DB
	addr string
}

// NewClient opens the pool and pings the server once.
func NewClient(opts ...ClientOption) (*Client, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.Host == "" {
		return nil, fmt.Errorf("clickhouse: host is required")
	}

	options := buildOptions(cfg)
	db := clickhouse.OpenDB(options)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("clickhouse ping %s: %w", options.Addr[0], err)
	}
	return &Client{db: db, addr: options.Addr[0]}, nil
}

func buildOptions(cfg *ClientConfig) *clickhouse.Options {
	protocol, port := clickhouse.Native, cfg.Port
	if cfg.UseHTTP {
		protocol = clickhouse.HTTP
	}
	if port == 0 {
		port = 9000
		if cfg.UseHTTP {
			port = 8123
		}
	}

	settings := clickhouse.Settings{}
	if cfg.MaxExecTime > 0 {
		settings["max_execution_time"] = int(cfg.MaxExecTime.Seconds())
	}
	if cfg.AsyncInsert {
		settings["async_insert"] = 1
		if cfg.WaitForAsync {
			settings["wait_for_async_insert"] = 1
		}
	}

	return &clickhouse.Options{
		Addr:     []string{net.JoinHostPort(cfg.Host, strconv.Itoa(port))},
		Protocol: protocol,
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.User,
			Password: cfg.Password,
		},
		Settings:        settings,
		DialTimeout:     cfg.DialTimeout,
		ReadTimeout:     cfg.ReadTimeout,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		Compression:     &clickhouse.Compression{Method: clickhouse.CompressionLZ4},
	}
}

// DB returns the pool for stores that issue their own queries.
func (c *Client) DB() *sql.DB { return c.db }

func (c *Client) Health(ctx context.Context) error {
	if err := c.db.PingContext(ctx); err != nil {
		return fmt.Errorf("clickhouse %s: %w", c.addr, err)
	}
	return nil
}

func (c *Client) Close() error {
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}

// InitSchema runs idempotent DDL statements in order, each with its own
// timeout so one slow ALTER does not eat the whole startup budget.
func (c *Client) InitSchema(ctx context.Context, stmts []string) error {
	for i, stmt := range stmts {
		sctx, cancel := context.WithTimeout(ctx, 30*time.Second)
		_, err := c.db.ExecContext(sctx, stmt)
		cancel()
		if err != nil {
			return fmt.Errorf("init schema statement %d: %w", i+1, err)
		}
	}
	return nil
}
