package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"TradeDesk/internal/di"
	"TradeDesk/internal/domain/models"
	svcmetrics "TradeDesk/internal/service/metrics"
	"TradeDesk/internal/services/strategy"
	"TradeDesk/internal/usecase"
	"TradeDesk/pkg/config"
	applogger "TradeDesk/pkg/logger"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

// History sources selectable with --source.
const (
	SourceKraken     = "kraken"
	SourceClickHouse = "clickhouse"
)

type backtestOptions struct {
	configPath   string
	symbols      []string
	days         int
	interval     string
	capital      float64
	positionSize float64
	source       string
	asJSON       bool

	// history overrides the configured source, used by tests
	history usecase.HistoryProvider
}

// NewBacktestCmd creates the backtest root command.
func NewBacktestCmd() *cobra.Command {
	opts := &backtestOptions{}
	cmd := &cobra.Command{
		Use:   "backtest",
		Short: "Replay historical candles through the decision engine",
		Long: `backtest fetches historical candles for the given symbols, replays them
through the configured strategies and prints a performance report.
Example: backtest --symbols BTCUSD,ETHUSD --days 60 --interval 4h`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runBacktest(ctx, opts, cmd.OutOrStdout())
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.configPath, "config", "config/config.yaml", "Configuration file path")
	f.StringSliceVar(&opts.symbols, "symbols", nil, "Symbols to replay (defaults to trading.symbols)")
	f.IntVar(&opts.days, "days", 30, "Days of history to replay")
	f.StringVar(&opts.interval, "interval", "", "Candle interval (defaults to trading.interval)")
	f.Float64Var(&opts.capital, "capital", 0, "Initial capital (defaults to backtest.initial_capital)")
	f.Float64Var(&opts.positionSize, "position-size", 0, "Fraction of portfolio value per BUY (defaults to backtest.position_size_pct)")
	f.StringVar(&opts.source, "source", SourceKraken, "History source: kraken or clickhouse")
	f.BoolVar(&opts.asJSON, "json", false, "Print the full result as JSON")

	return cmd
}

func runBacktest(ctx context.Context, opts *backtestOptions, out io.Writer) error {
	cfg, err := config.LoadWithEnv(opts.configPath)
	if err != nil {
		return err
	}
	lgr, err := applogger.New(&applogger.Config{Level: cfg.Logging.Level, Format: "console", Output: "stderr"})
	if err != nil {
		return err
	}

	history, cleanup, err := historySource(cfg, opts, lgr)
	if err != nil {
		return err
	}
	defer cleanup()

	reg := strategy.NewRegistry()
	deps := di.ProvideStrategyDeps(cfg, lgr)
	engines := di.ProvideEngineFactory(cfg, reg, deps, lgr)
	if _, err := engines(); err != nil {
		return fmt.Errorf("strategies: %w", err)
	}
	bm := svcmetrics.NewBacktestMetrics(prometheus.NewRegistry())
	svc := di.ProvideBacktestService(cfg, history, engines, bm, nil, nil, lgr)

	req := models.BacktestRequest{
		Symbols:         opts.symbols,
		DaysBack:        opts.days,
		Interval:        opts.interval,
		InitialCapital:  opts.capital,
		PositionSizePct: opts.positionSize,
	}
	if len(req.Symbols) == 0 {
		req.Symbols = cfg.Trading.Symbols
	}
	if req.Interval == "" {
		req.Interval = cfg.Trading.Interval
	}

	res, err := svc.RunBacktest(ctx, req)
	if err != nil {
		return err
	}
	if opts.asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	_, err = fmt.Fprintln(out, res.Report)
	for sym, reason := range res.SkippedSymbols {
		fmt.Fprintf(out, "skipped %s: %s\n", sym, reason)
	}
	return err
}

func historySource(cfg *config.Config, opts *backtestOptions, lgr *applogger.Logger) (usecase.HistoryProvider, func(), error) {
	if opts.history != nil {
		return opts.history, func() {}, nil
	}
	rest := di.ProvideKrakenClient(cfg, lgr)
	switch strings.ToLower(opts.source) {
	case SourceKraken:
		return rest, func() {}, nil
	case SourceClickHouse:
		cfg.Persistence.Backend = config.BackendClickHouse
		ch, err := di.ProvideClickHouseClient(cfg)
		if err != nil {
			return nil, nil, err
		}
		return di.ProvideHistory(ch, rest, lgr), func() { _ = ch.Close() }, nil
	default:
		return nil, nil, config.NewConfigError("source", "unknown history source %q", opts.source)
	}
}
