package server

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	domrepo "TradeDesk/internal/domain/repository"
	"TradeDesk/internal/usecase"
	"TradeDesk/pkg/config"
	xhttp "TradeDesk/pkg/http"
	pkgkafka "TradeDesk/pkg/kafka"
	applogger "TradeDesk/pkg/logger"
	"TradeDesk/pkg/queue"
)

type namedCloser struct {
	name string
	c    io.Closer
}

// App encapsulates the live service lifecycle.
type App struct {
	cfg        *config.Config
	lgr        *applogger.Logger
	store      domrepo.Persistence
	cycle      *usecase.TradeCycle
	scheduler  *usecase.Scheduler
	httpServer *xhttp.Server

	// optional
	collector *usecase.QuoteCollector
	consumer  *pkgkafka.Consumer
	headlines pkgkafka.MessageHandler
	queue     queue.Service
	closers   []namedCloser
}

// New creates a new App instance with its required dependencies.
func New(
	cfg *config.Config,
	lgr *applogger.Logger,
	store domrepo.Persistence,
	cycle *usecase.TradeCycle,
	scheduler *usecase.Scheduler,
	httpServer *xhttp.Server,
) *App {
	if lgr == nil {
		lgr = applogger.Nop()
	}
	return &App{
		cfg:        cfg,
		lgr:        lgr,
		store:      store,
		cycle:      cycle,
		scheduler:  scheduler,
		httpServer: httpServer,
	}
}

// SetQuoteCollector attaches the websocket quote feed.
func (a *App) SetQuoteCollector(c *usecase.QuoteCollector) { a.collector = c }

// SetHeadlineConsumer attaches the Kafka headline consumer and its handler.
func (a *App) SetHeadlineConsumer(c *pkgkafka.Consumer, h pkgkafka.MessageHandler) {
	a.consumer, a.headlines = c, h
}

// SetQueue attaches the backtest job queue.
func (a *App) SetQueue(q queue.Service) { a.queue = q }

// OnClose registers a resource closed after everything else has stopped.
func (a *App) OnClose(name string, c io.Closer) {
	a.closers = append(a.closers, namedCloser{name: name, c: c})
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	initCtx, initCancel := context.WithTimeout(ctx, 30*time.Second)
	if err := a.store.Init(initCtx); err != nil {
		initCancel()
		a.lgr.Error("persistence init failed", applogger.Error(err))
		return err
	}
	if err := a.cycle.Restore(initCtx, a.store, a.cfg.Trading.InitialCapital); err != nil {
		a.lgr.Warn("ledger restore failed, starting flat", applogger.Error(err))
	}
	initCancel()

	if a.queue != nil {
		if err := a.queue.Start(); err != nil {
			a.lgr.Error("job queue start failed", applogger.Error(err))
			return err
		}
	}

	if a.collector != nil {
		go func() {
			if err := a.collector.Start(ctx); err != nil {
				a.lgr.Error("quote collector error", applogger.Error(err))
			}
		}()
		a.lgr.Info("quote collector started", applogger.Strings("symbols", a.cfg.Trading.Symbols))
	}

	if a.consumer != nil && a.headlines != nil {
		a.consumer.RegisterHandler(a.headlines)
		go func() {
			if err := a.consumer.Start(); err != nil {
				a.lgr.Error("kafka consumer error", applogger.Error(err))
			}
		}()
		a.lgr.Info("kafka consumer started", applogger.String("topic", a.headlines.Topic()))
	}

	go a.scheduler.Run(ctx)

	if err := a.httpServer.Start(); err != nil {
		a.lgr.Error("http server start error", applogger.Error(err))
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.lgr.Info("shutdown signal received")
	cancel()
	return a.shutdown()
}

// shutdown stops intake first, then workers, then infrastructure clients.
func (a *App) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := a.httpServer.Stop(ctx); err != nil {
		a.lgr.Error("http shutdown error", applogger.Error(err))
	}

	if a.collector != nil {
		if err := a.collector.Shutdown(ctx); err != nil {
			a.lgr.Warn("quote collector stop error", applogger.Error(err))
		}
	}

	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			a.lgr.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	if a.queue != nil {
		if err := a.queue.Stop(ctx); err != nil {
			a.lgr.Warn("job queue stop error", applogger.Error(err))
		}
	}

	// flush collected error logs while the producer is still open
	a.lgr.RemoveCollector()

	if err := a.store.Close(); err != nil {
		a.lgr.Warn("persistence close error", applogger.Error(err))
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].c.Close(); err != nil {
			a.lgr.Warn("close error", applogger.String("resource", a.closers[i].name), applogger.Error(err))
		}
	}

	a.lgr.Info("shutdown complete")
	return nil
}
