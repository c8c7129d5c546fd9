//go:build wireinject
// +build wireinject

package di

import (
	"TradeDesk/internal/services/strategy"
	"TradeDesk/pkg/config"
	"TradeDesk/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Metrics
		ProvideRegistry,
		ProvideMetrics,
		ProvideBacktestMetrics,

		// Infrastructure clients
		ProvideKafkaProducer,
		ProvideLogger,
		ProvideClickHouseClient,
		ProvideRedisCache,

		// Repositories and market data
		ProvidePersistence,
		ProvideNotifier,
		ProvideKrakenClient,
		ProvideHistory,
		ProvideQuoteBook,
		ProvideLiveMarketData,

		// Decision engine
		strategy.NewRegistry,
		ProvideStrategyDeps,
		ProvideEngineFactory,
		ProvideDecisionEngine,

		// Use cases
		ProvideLedger,
		ProvideExecutor,
		ProvideHeadlineBuffer,
		ProvideTradeCycle,
		ProvideScheduler,
		ProvideQueue,
		ProvideBacktestService,
		ProvideQuoteCollector,
		ProvideKafkaConsumer,
		ProvideHeadlineHandler,

		// HTTP
		ProvideManualLimiter,
		ProvideHTTPHandler,
		ProvideHTTPServer,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
