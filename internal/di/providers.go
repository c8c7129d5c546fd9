package di

import (
	"fmt"

	domrepo "TradeDesk/internal/domain/repository"
	"TradeDesk/internal/handler/api"
	mid "TradeDesk/internal/middleware"
	internalrepo "TradeDesk/internal/repository"
	"TradeDesk/internal/service/kraken"
	svcmetrics "TradeDesk/internal/service/metrics"
	"TradeDesk/internal/service/quotes"
	"TradeDesk/internal/service/ratelimit"
	"TradeDesk/internal/services/backtest"
	"TradeDesk/internal/services/ledger"
	"TradeDesk/internal/services/sentiment"
	"TradeDesk/internal/services/strategy"
	"TradeDesk/internal/usecase"
	"TradeDesk/pkg/cache"
	pkgch "TradeDesk/pkg/clickhouse"
	"TradeDesk/pkg/config"
	xhttp "TradeDesk/pkg/http"
	pkgkafka "TradeDesk/pkg/kafka"
	applogger "TradeDesk/pkg/logger"
	"TradeDesk/pkg/metrics"
	"TradeDesk/pkg/queue"
	"TradeDesk/pkg/server"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// krakenPublicRPS stays under Kraken's public REST budget.
const krakenPublicRPS = 1

// ProvideRegistry creates the Prometheus registry shared by every collector and /metrics.
func ProvideRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return reg
}

// ProvideMetrics creates the decision and trading metrics recorder.
func ProvideMetrics(reg *prometheus.Registry) domrepo.Metrics {
	return metrics.NewWithRegisterer(reg)
}

func ProvideBacktestMetrics(reg *prometheus.Registry) *svcmetrics.BacktestMetrics {
	return svcmetrics.NewBacktestMetrics(reg)
}

// ProvideKafkaProducer creates a Kafka producer, or nil when Kafka is disabled.
func ProvideKafkaProducer(cfg *config.Config, reg *prometheus.Registry) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
		pkgkafka.WithProducerRegisterer(reg),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideLogger creates the application logger. With logging.collector set and
// Kafka enabled, error logs are aggregated to the logs topic.
func ProvideLogger(cfg *config.Config, producer *pkgkafka.Producer) (*applogger.Logger, error) {
	lgr, err := applogger.New(&applogger.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format, Output: "stdout"})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	if cfg.Logging.Collector && producer != nil && cfg.Kafka.Topics.Logs != "" {
		lgr.AddCollector(&applogger.CollectionConfig{
			Service:     "tradedesk",
			Topic:       cfg.Kafka.Topics.Logs,
			Publisher:   producer,
			IncludeWarn: cfg.Logging.Level == "debug",
		})
	}
	return lgr, nil
}

// ProvideClickHouseClient creates a ClickHouse client when it backs persistence.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if cfg.Persistence.Backend != config.BackendClickHouse {
		return nil, nil
	}
	maxConns := cfg.ClickHouse.MaxConnections
	if maxConns <= 0 {
		maxConns = 10
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(maxConns, maxConns/2),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, nil
}

// ProvideRedisCache connects to Redis, or returns nil when Redis is disabled.
func ProvideRedisCache(cfg *config.Config) (*cache.RedisCache, error) {
	if !cfg.Redis.Enabled {
		return nil, nil
	}
	opts := []cache.RedisOption{
		cache.WithRedisAddr(cfg.Redis.Addr),
		cache.WithRedisPassword(cfg.Redis.Password),
		cache.WithRedisDB(cfg.Redis.DB),
	}
	if cfg.Redis.PoolSize > 0 {
		opts = append(opts, cache.WithRedisPool(cfg.Redis.PoolSize, cfg.Redis.PoolSize/4, 0))
	}
	if cfg.Redis.Prefix != "" {
		opts = append(opts, cache.WithRedisPrefix(cfg.Redis.Prefix))
	}
	rc, err := cache.NewRedisCache(opts...)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return rc, nil
}

// ProvidePersistence selects the decision and trade store. Redis, when
// present, fronts latest-decision reads.
func ProvidePersistence(cfg *config.Config, ch *pkgch.Client, rc *cache.RedisCache, lgr *applogger.Logger) domrepo.Persistence {
	var store domrepo.Persistence
	if ch != nil {
		store = internalrepo.NewClickHouseStore(ch, lgr)
	} else {
		store = internalrepo.NewMemoryStore()
	}
	if rc != nil {
		store = internalrepo.NewCachedStore(store, rc, cfg.Redis.CacheTTL, lgr)
	}
	return store
}

// ProvideNotifier publishes trade and decision events to Kafka when enabled.
func ProvideNotifier(cfg *config.Config, producer *pkgkafka.Producer) domrepo.Notifier {
	if producer == nil {
		return internalrepo.NopNotifier{}
	}
	return internalrepo.NewKafkaNotifier(producer, cfg.Kafka.Topics.Trades, cfg.Kafka.Topics.Decisions)
}

func ProvideKrakenClient(cfg *config.Config, lgr *applogger.Logger) *kraken.RESTClient {
	return kraken.NewRESTClient(cfg.Market.Kraken.RestURL, cfg.Market.Kraken.Timeout, lgr,
		kraken.WithLimiter(ratelimit.New(krakenPublicRPS, 2)),
	)
}

// ProvideHistory caches Kraken candles in ClickHouse when it is available.
func ProvideHistory(ch *pkgch.Client, rest *kraken.RESTClient, lgr *applogger.Logger) usecase.HistoryProvider {
	if ch == nil {
		return rest
	}
	return usecase.NewCandleCache(internalrepo.NewClickHouseStore(ch, lgr), rest, lgr)
}

func ProvideQuoteBook(cfg *config.Config) *quotes.Book {
	return quotes.NewBook(cfg.Market.QuoteTTL)
}

func ProvideLiveMarketData(cfg *config.Config, book *quotes.Book, rest *kraken.RESTClient, history usecase.HistoryProvider) *usecase.LiveMarketData {
	return usecase.NewLiveMarketData(book, rest, history, domrepo.NormalizeInterval(cfg.Trading.Interval), cfg.Trading.HistoryCandles)
}

// ProvideStrategyDeps wires the headline classifier into the sentiment strategy.
func ProvideStrategyDeps(cfg *config.Config, lgr *applogger.Logger) strategy.Deps {
	return strategy.Deps{Classifier: sentiment.NewClassifier(lgr, cfg)}
}

// ProvideEngineFactory builds fresh engines for backtests. They do not feed
// live metrics.
func ProvideEngineFactory(cfg *config.Config, reg *strategy.Registry, deps strategy.Deps, lgr *applogger.Logger) usecase.EngineFactory {
	return func() (*usecase.DecisionEngine, error) {
		return usecase.NewDecisionEngine(cfg.Strategies.AggregationMethod, cfg.Strategies.MinConfidence,
			cfg.Strategies.List, reg, deps, metrics.Nop{}, lgr)
	}
}

// ProvideDecisionEngine builds the live engine.
func ProvideDecisionEngine(cfg *config.Config, reg *strategy.Registry, deps strategy.Deps, m domrepo.Metrics, lgr *applogger.Logger) (*usecase.DecisionEngine, error) {
	return usecase.NewDecisionEngine(cfg.Strategies.AggregationMethod, cfg.Strategies.MinConfidence,
		cfg.Strategies.List, reg, deps, m, lgr)
}

func ProvideLedger(cfg *config.Config) (*ledger.Ledger, error) {
	return ledger.New(cfg.Trading.InitialCapital, cfg.Trading.FeeRate)
}

func ProvideExecutor(l *ledger.Ledger, store domrepo.Persistence, notifier domrepo.Notifier, m domrepo.Metrics, lgr *applogger.Logger) *usecase.Executor {
	return usecase.NewExecutor(l, store, notifier, m, lgr)
}

func ProvideHeadlineBuffer() *usecase.HeadlineBuffer {
	return usecase.NewHeadlineBuffer(usecase.MaxHeadlinesPerSymbol)
}

// ProvideTradeCycle builds the live cycle. Redis, when present, provides the cross-instance lock.
func ProvideTradeCycle(
	cfg *config.Config,
	engine *usecase.DecisionEngine,
	exec *usecase.Executor,
	market *usecase.LiveMarketData,
	buf *usecase.HeadlineBuffer,
	rc *cache.RedisCache,
	m domrepo.Metrics,
	lgr *applogger.Logger,
) *usecase.TradeCycle {
	var lock domrepo.CycleLock
	if rc != nil {
		lock = rc
	}
	return usecase.NewTradeCycle(engine, exec, market, buf, lock, usecase.CycleOptions{
		Symbols:         cfg.Trading.Symbols,
		PositionSizePct: cfg.Trading.PositionSizePct,
		LockTTL:         cfg.Redis.LockTTL,
	}, m, lgr)
}

func ProvideScheduler(cfg *config.Config, cycle *usecase.TradeCycle, lgr *applogger.Logger) *usecase.Scheduler {
	return usecase.NewScheduler(cycle, cfg.Trading.CycleInterval, lgr)
}

// ProvideQueue creates the Redis job queue for async backtests, or nil without Redis.
func ProvideQueue(cfg *config.Config, rc *cache.RedisCache, lgr *applogger.Logger) queue.Service {
	if rc == nil {
		return nil
	}
	qc := &queue.QueueConfig{
		Workers:    cfg.Queue.Workers,
		QueueSize:  cfg.Queue.QueueSize,
		RetryLimit: cfg.Queue.RetryLimit,
		RetryDelay: cfg.Queue.RetryDelay,
	}
	return queue.NewRedisQueue(lgr, qc, rc.Client(), queue.WithKeyPrefix(rc.Prefix()+":queue"))
}

func ProvideBacktestService(
	cfg *config.Config,
	history usecase.HistoryProvider,
	engines usecase.EngineFactory,
	bm *svcmetrics.BacktestMetrics,
	q queue.Service,
	rc *cache.RedisCache,
	lgr *applogger.Logger,
) *usecase.BacktestService {
	var results cache.Service
	if rc != nil {
		results = rc
	}
	return usecase.NewBacktestService(history, engines, usecase.BacktestOptions{
		Settings: backtest.Settings{
			Warmup:        cfg.Backtest.Warmup,
			Window:        cfg.Backtest.Window,
			MinConfidence: cfg.Backtest.MinConfidence,
		},
		FeeRate:         cfg.Trading.FeeRate,
		InitialCapital:  cfg.Backtest.InitialCapital,
		PositionSizePct: cfg.Backtest.PositionSizePct,
		ResultTTL:       cfg.Backtest.ResultTTL,
	}, bm, q, results, lgr)
}

// ProvideQuoteCollector streams Kraken tickers into the quote book, or returns nil when streaming is off.
func ProvideQuoteCollector(cfg *config.Config, book *quotes.Book, m domrepo.Metrics, lgr *applogger.Logger) *usecase.QuoteCollector {
	if !cfg.Market.Kraken.Stream {
		return nil
	}
	stream := kraken.NewStream(
		cfg.Market.Kraken.WebSocketURL,
		cfg.Trading.Symbols,
		cfg.Market.Kraken.ReconnectDelay,
		cfg.Market.Kraken.PingInterval,
		lgr,
	)
	pipe := mid.NewQuotePipeline(book, m,
		mid.WithMaxRPS(cfg.Market.MaxQuoteRPS),
		mid.WithBufferSize(cfg.Market.QuoteBuffer),
	)
	return usecase.NewQuoteCollector(stream, pipe, m, lgr)
}

// ProvideKafkaConsumer creates the headline consumer, or nil when Kafka or the topic is off.
func ProvideKafkaConsumer(cfg *config.Config, reg *prometheus.Registry, lgr *applogger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled || cfg.Kafka.Topics.Headlines == "" {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
		pkgkafka.WithConsumerLogger(lgr),
		pkgkafka.WithConsumerRegisterer(reg),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.WithConsumerHook(usecase.HeadlineHooks(lgr))
	return consumer, nil
}

func ProvideHeadlineHandler(cfg *config.Config, buf *usecase.HeadlineBuffer, m domrepo.Metrics, lgr *applogger.Logger) *usecase.HeadlineHandler {
	return usecase.NewHeadlineHandler(cfg.Kafka.Topics.Headlines, buf, m, lgr)
}

// ProvideManualLimiter limits manual cycle triggers per client.
func ProvideManualLimiter(cfg *config.Config) *ratelimit.Limiter {
	return ratelimit.New(cfg.Server.ManualRPS, cfg.Server.ManualBurst)
}

func ProvideHTTPHandler(
	lgr *applogger.Logger,
	cycle *usecase.TradeCycle,
	engine *usecase.DecisionEngine,
	backtests *usecase.BacktestService,
	market *usecase.LiveMarketData,
	store domrepo.Persistence,
	rl *ratelimit.Limiter,
) *api.TradingEchoHandler {
	return api.NewTradingEchoHandler(lgr, cycle, engine, backtests, market, store, rl)
}

func ProvideHTTPServer(cfg *config.Config, h *api.TradingEchoHandler, reg *prometheus.Registry, lgr *applogger.Logger) *xhttp.Server {
	opts := []xhttp.ServerOption{
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithRegistry(reg),
		xhttp.WithCORSOrigins(cfg.Server.CORSOrigins...),
	}
	if cfg.Server.Host != "" {
		opts = append(opts, xhttp.WithHost(cfg.Server.Host))
	}
	return xhttp.NewServer(h, lgr, opts...)
}

// ProvideApp assembles the application and attaches the optional components.
func ProvideApp(
	cfg *config.Config,
	lgr *applogger.Logger,
	store domrepo.Persistence,
	cycle *usecase.TradeCycle,
	scheduler *usecase.Scheduler,
	srv *xhttp.Server,
	collector *usecase.QuoteCollector,
	consumer *pkgkafka.Consumer,
	headlines *usecase.HeadlineHandler,
	q queue.Service,
	notifier domrepo.Notifier,
	ch *pkgch.Client,
	rc *cache.RedisCache,
) *server.App {
	app := server.New(cfg, lgr, store, cycle, scheduler, srv)
	if collector != nil {
		app.SetQuoteCollector(collector)
	}
	if consumer != nil {
		app.SetHeadlineConsumer(consumer, headlines)
	}
	if q != nil {
		app.SetQueue(q)
	}
	if ch != nil {
		app.OnClose("clickhouse", ch)
	}
	if rc != nil {
		app.OnClose("redis", rc)
	}
	// closes the Kafka producer
	app.OnClose("notifier", notifier)
	return app
}
