package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"TradeDesk/pkg/util"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Aggregation methods understood by the decision engine.
const (
	MethodWeightedVote      = "weighted_vote"
	MethodHighestConfidence = "highest_confidence"
	MethodUnanimous         = "unanimous"
)

// Persistence backends.
const (
	BackendClickHouse = "clickhouse"
	BackendMemory     = "memory"
)

// ConfigError is returned for invalid configuration. It is raised at
// construction time, before any evaluation happens.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NewConfigError builds a ConfigError.
func NewConfigError(field, format string, args ...any) *ConfigError {
	return &ConfigError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// IsConfigError reports whether err wraps a ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// ValidMethod reports whether m names a known aggregation method.
func ValidMethod(m string) bool {
	switch m {
	case MethodWeightedVote, MethodHighestConfidence, MethodUnanimous:
		return true
	}
	return false
}

// StrategyConfig configures one strategy module.
type StrategyConfig struct {
	Name    string         `yaml:"name"`
	Enabled bool           `yaml:"enabled"`
	Weight  float64        `yaml:"weight"`
	Params  map[string]any `yaml:"params"`
}

// DefaultStrategies is the strategy set used when none is configured.
func DefaultStrategies() []StrategyConfig {
	return []StrategyConfig{
		{Name: "technical", Enabled: true, Weight: 1.0},
		{Name: "volume", Enabled: true, Weight: 0.8},
		{Name: "sentiment", Enabled: true, Weight: 1.0},
	}
}

type Config struct {
	Environment string `yaml:"environment"`
	Server      struct {
		Host            string        `yaml:"host"`
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
		ManualRPS       float64       `yaml:"manual_rps"`
		ManualBurst     int           `yaml:"manual_burst"`
		CORSOrigins     []string      `yaml:"cors_origins"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
	Logging struct {
		Level     string `yaml:"level"`
		Format    string `yaml:"format"`
		Collector bool   `yaml:"collector"`
	} `yaml:"logging"`
	Trading struct {
		Symbols         []string      `yaml:"symbols"`
		Interval        string        `yaml:"interval"`
		CycleInterval   time.Duration `yaml:"cycle_interval"`
		InitialCapital  float64       `yaml:"initial_capital"`
		FeeRate         float64       `yaml:"fee_rate"`
		PositionSizePct float64       `yaml:"position_size_pct"`
		HistoryCandles  int           `yaml:"history_candles"`
	} `yaml:"trading"`
	Strategies struct {
		AggregationMethod string           `yaml:"aggregation_method"`
		MinConfidence     float64          `yaml:"min_confidence"`
		List              []StrategyConfig `yaml:"list"`
	} `yaml:"strategies"`
	Backtest struct {
		Warmup          int           `yaml:"warmup"`
		Window          int           `yaml:"window"`
		MinConfidence   float64       `yaml:"min_confidence"`
		InitialCapital  float64       `yaml:"initial_capital"`
		PositionSizePct float64       `yaml:"position_size_pct"`
		ResultTTL       time.Duration `yaml:"result_ttl"`
	} `yaml:"backtest"`
	Persistence struct {
		Backend string `yaml:"backend"`
	} `yaml:"persistence"`
	Kafka struct {
		Enabled      bool     `yaml:"enabled"`
		Brokers      []string `yaml:"brokers"`
		RequiredAcks int      `yaml:"required_acks"`
		Compression  string   `yaml:"compression"`
		Topics       struct {
			Trades    string `yaml:"trades"`
			Decisions string `yaml:"decisions"`
			Headlines string `yaml:"headlines"`
			Logs      string `yaml:"logs"`
		} `yaml:"topics"`
		Producer struct {
			MaxAttempts  int           `yaml:"max_attempts"`
			Linger       time.Duration `yaml:"linger"`
			BatchBytes   int           `yaml:"batch_bytes"`
			BatchSize    int           `yaml:"batch_size"`
			WriteTimeout time.Duration `yaml:"write_timeout"`
			ReadTimeout  time.Duration `yaml:"read_timeout"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID    string        `yaml:"group_id"`
			Workers    int           `yaml:"workers"`
			BufferSize int           `yaml:"buffer_size"`
			RetryMax   int           `yaml:"retry_max"`
			BackoffMin time.Duration `yaml:"backoff_min"`
			BackoffMax time.Duration `yaml:"backoff_max"`
			DLQTopic   string        `yaml:"dlq_topic"`
			MinBytes   int           `yaml:"min_bytes"`
			MaxBytes   int           `yaml:"max_bytes"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port"`
		Database         string        `yaml:"database"`
		User             string        `yaml:"user"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		MaxConnections   int           `yaml:"max_connections"`
		DialTimeout      time.Duration `yaml:"dial_timeout"`
		ReadTimeout      time.Duration `yaml:"read_timeout"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time"`
	} `yaml:"clickhouse"`
	Redis struct {
		Enabled  bool          `yaml:"enabled"`
		Addr     string        `yaml:"addr"`
		Password string        `yaml:"password"`
		DB       int           `yaml:"db"`
		PoolSize int           `yaml:"pool_size"`
		Prefix   string        `yaml:"prefix"`
		LockTTL  time.Duration `yaml:"lock_ttl"`
		CacheTTL time.Duration `yaml:"cache_ttl"`
	} `yaml:"redis"`
	Market struct {
		Kraken struct {
			RestURL        string        `yaml:"rest_url"`
			WebSocketURL   string        `yaml:"ws_url"`
			Timeout        time.Duration `yaml:"timeout"`
			ReconnectDelay time.Duration `yaml:"reconnect_delay"`
			PingInterval   time.Duration `yaml:"ping_interval"`
			Stream         bool          `yaml:"stream"`
		} `yaml:"kraken"`
		QuoteTTL    time.Duration `yaml:"quote_ttl"`
		MaxQuoteRPS int           `yaml:"max_quote_rps"`
		QuoteBuffer int           `yaml:"quote_buffer"`
	} `yaml:"market"`
	Sentiment struct {
		ServiceURL string        `yaml:"service_url"`
		Timeout    time.Duration `yaml:"timeout"`
		Retries    int           `yaml:"retries"`
	} `yaml:"sentiment"`
	Queue struct {
		Workers    int           `yaml:"workers"`
		QueueSize  int           `yaml:"queue_size"`
		RetryLimit int           `yaml:"retry_limit"`
		RetryDelay time.Duration `yaml:"retry_delay"`
	} `yaml:"queue"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	c, err := parse(path)
	if err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func parse(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	c.ApplyDefaults()
	return &c, nil
}

// DotEnvFile is read by LoadWithEnv from the working directory.
const DotEnvFile = ".env"

// loadDotEnv exports the variables in path. A missing file is not an error.
func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return NewConfigError("env_file", "%s: %v", path, err)
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
// A .env file in the working directory is honoured when present.
func LoadWithEnv(path string) (*Config, error) {
	if err := loadDotEnv(DotEnvFile); err != nil {
		return nil, err
	}

	c, err := parse(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("TRADING_SYMBOLS"); v != "" {
		c.Trading.Symbols = splitList(v)
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = splitList(v)
	}
	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_DB"); v != "" {
		c.Redis.DB = util.ParseIntDefault(v, c.Redis.DB)
	}
	if v := os.Getenv("SENTIMENT_SERVICE_URL"); v != "" {
		c.Sentiment.ServiceURL = v
	}
	if v := os.Getenv("PERSISTENCE_BACKEND"); v != "" {
		c.Persistence.Backend = v
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ApplyDefaults fills zero values with the engine defaults.
func (c *Config) ApplyDefaults() {
	if c.Environment == "" {
		c.Environment = "development"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
	if c.Server.ManualRPS == 0 {
		c.Server.ManualRPS = 0.2
	}
	if c.Server.ManualBurst == 0 {
		c.Server.ManualBurst = 1
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Trading.Interval == "" {
		c.Trading.Interval = "1h"
	}
	if c.Trading.CycleInterval == 0 {
		c.Trading.CycleInterval = 5 * time.Minute
	}
	if c.Trading.InitialCapital == 0 {
		c.Trading.InitialCapital = 10000
	}
	if c.Trading.FeeRate == 0 {
		c.Trading.FeeRate = 0.0026
	}
	if c.Trading.PositionSizePct == 0 {
		c.Trading.PositionSizePct = 0.03
	}
	if c.Trading.HistoryCandles == 0 {
		c.Trading.HistoryCandles = 100
	}
	if c.Strategies.AggregationMethod == "" {
		c.Strategies.AggregationMethod = MethodWeightedVote
	}
	if len(c.Strategies.List) == 0 {
		c.Strategies.List = DefaultStrategies()
	}
	if c.Backtest.Warmup == 0 {
		c.Backtest.Warmup = 50
	}
	if c.Backtest.Window == 0 {
		c.Backtest.Window = 100
	}
	if c.Backtest.MinConfidence == 0 {
		c.Backtest.MinConfidence = 0.2
	}
	if c.Backtest.InitialCapital == 0 {
		c.Backtest.InitialCapital = c.Trading.InitialCapital
	}
	if c.Backtest.PositionSizePct == 0 {
		c.Backtest.PositionSizePct = c.Trading.PositionSizePct
	}
	if c.Backtest.ResultTTL == 0 {
		c.Backtest.ResultTTL = 24 * time.Hour
	}
	if c.Persistence.Backend == "" {
		c.Persistence.Backend = BackendMemory
	}
	if c.Redis.LockTTL == 0 {
		c.Redis.LockTTL = 2 * time.Minute
	}
	if c.Redis.CacheTTL == 0 {
		c.Redis.CacheTTL = time.Hour
	}
	if c.Market.Kraken.RestURL == "" {
		c.Market.Kraken.RestURL = "https://api.kraken.com"
	}
	if c.Market.Kraken.WebSocketURL == "" {
		c.Market.Kraken.WebSocketURL = "wss://ws.kraken.com/v2"
	}
	if c.Market.Kraken.Timeout == 0 {
		c.Market.Kraken.Timeout = 15 * time.Second
	}
	if c.Market.QuoteTTL == 0 {
		c.Market.QuoteTTL = 2 * time.Minute
	}
	if c.Sentiment.Timeout == 0 {
		c.Sentiment.Timeout = 3 * time.Second
	}
	if c.Queue.Workers == 0 {
		c.Queue.Workers = 1
	}
	if c.Queue.QueueSize == 0 {
		c.Queue.QueueSize = 16
	}
}

// Validate checks if the configuration is valid. Trading symbols are
// rewritten to their canonical BASEUSD form.
func (c *Config) Validate() error {
	if len(c.Trading.Symbols) == 0 {
		return NewConfigError("trading.symbols", "cannot be empty")
	}
	symbols, err := util.NormalizeSymbols(c.Trading.Symbols)
	if err != nil {
		return NewConfigError("trading.symbols", "%v", err)
	}
	c.Trading.Symbols = symbols
	if c.Trading.FeeRate < 0 || c.Trading.FeeRate >= 1 {
		return NewConfigError("trading.fee_rate", "must be in [0,1), got %v", c.Trading.FeeRate)
	}
	if c.Trading.PositionSizePct <= 0 || c.Trading.PositionSizePct > 1 {
		return NewConfigError("trading.position_size_pct", "must be in (0,1], got %v", c.Trading.PositionSizePct)
	}
	if !ValidMethod(c.Strategies.AggregationMethod) {
		return NewConfigError("strategies.aggregation_method", "unknown method %q", c.Strategies.AggregationMethod)
	}
	if c.Strategies.MinConfidence < 0 || c.Strategies.MinConfidence > 1 {
		return NewConfigError("strategies.min_confidence", "must be in [0,1], got %v", c.Strategies.MinConfidence)
	}
	seen := make(map[string]bool, len(c.Strategies.List))
	for _, s := range c.Strategies.List {
		if s.Name == "" {
			return NewConfigError("strategies.list.name", "is required")
		}
		if seen[s.Name] {
			return NewConfigError("strategies.list."+s.Name, "duplicate strategy")
		}
		seen[s.Name] = true
		if s.Weight < 0 {
			return NewConfigError("strategies.list."+s.Name+".weight", "must be >= 0, got %v", s.Weight)
		}
	}
	if c.Backtest.Warmup > c.Backtest.Window {
		return NewConfigError("backtest.warmup", "must not exceed backtest.window (%d > %d)", c.Backtest.Warmup, c.Backtest.Window)
	}
	if c.Backtest.MinConfidence < 0 || c.Backtest.MinConfidence > 1 {
		return NewConfigError("backtest.min_confidence", "must be in [0,1], got %v", c.Backtest.MinConfidence)
	}
	if c.Backtest.PositionSizePct <= 0 || c.Backtest.PositionSizePct > 1 {
		return NewConfigError("backtest.position_size_pct", "must be in (0,1], got %v", c.Backtest.PositionSizePct)
	}
	switch c.Persistence.Backend {
	case BackendClickHouse, BackendMemory:
	default:
		return NewConfigError("persistence.backend", "must be 'clickhouse' or 'memory', got '%s'", c.Persistence.Backend)
	}
	return nil
}
