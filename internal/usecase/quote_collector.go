package usecase

import (
	"context"

	"TradeDesk/internal/domain/models"
	drepo "TradeDesk/internal/domain/repository"
	mid "TradeDesk/internal/middleware"
	applogger "TradeDesk/pkg/logger"
)

// QuoteCollector pumps streamed quotes through the pipeline into the quote book.
type QuoteCollector struct {
	stream  drepo.QuoteSource
	pipe    *mid.QuotePipeline
	metrics drepo.Metrics
	lgr     *applogger.Logger
}

func NewQuoteCollector(stream drepo.QuoteSource, pipe *mid.QuotePipeline, metrics drepo.Metrics, lgr *applogger.Logger) *QuoteCollector {
	if lgr == nil {
		lgr = applogger.Nop()
	}
	return &QuoteCollector{stream: stream, pipe: pipe, metrics: orNop(metrics), lgr: lgr}
}

// IsConnected returns true if the quote stream is connected.
func (c *QuoteCollector) IsConnected() bool {
	return c.stream.IsConnected()
}

func (c *QuoteCollector) Start(ctx context.Context) error {
	if err := c.stream.Connect(ctx); err != nil {
		return err
	}
	if err := c.stream.Subscribe(ctx); err != nil {
		return err
	}
	c.pipe.Start(ctx)
	go c.consume(ctx)
	return nil
}

func (c *QuoteCollector) consume(ctx context.Context) {
	qCh, errCh := c.stream.Read(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-errCh:
			if ok && err != nil {
				c.metrics.RecordError("stream")
				c.lgr.Warn("quote stream error, reconnecting", applogger.Error(err))
			}
			if rerr := c.stream.Reconnect(ctx); rerr != nil {
				if ctx.Err() != nil {
					return
				}
				c.lgr.Error("quote stream reconnect failed", applogger.Error(rerr))
				continue
			}
			qCh, errCh = c.stream.Read(ctx)
		case q, ok := <-qCh:
			if !ok {
				qCh = nil
				continue
			}
			c.forward(ctx, q)
		}
	}
}

func (c *QuoteCollector) forward(ctx context.Context, q *models.Quote) {
	if err := c.pipe.Process(ctx, q); err != nil {
		c.lgr.Debug("quote dropped", applogger.String("symbol", q.Symbol), applogger.Error(err))
	}
}

// Shutdown stops the pipeline and closes the stream.
func (c *QuoteCollector) Shutdown(context.Context) error {
	c.pipe.Stop()
	return c.stream.Close()
}
