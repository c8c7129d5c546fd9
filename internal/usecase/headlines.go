package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"TradeDesk/internal/domain/models"
	domrepo "TradeDesk/internal/domain/repository"
	pkgkafka "TradeDesk/pkg/kafka"
	applogger "TradeDesk/pkg/logger"
	"TradeDesk/pkg/util"

	kafkago "github.com/segmentio/kafka-go"
)

// MaxHeadlinesPerSymbol bounds the unseen headlines kept per symbol.
const MaxHeadlinesPerSymbol = 50

// HeadlineBuffer keeps unseen headlines per symbol. Drain marks them seen.
type HeadlineBuffer struct {
	mu    sync.Mutex
	cap   int
	items map[string][]models.Headline
}

func NewHeadlineBuffer(capacity int) *HeadlineBuffer {
	if capacity <= 0 {
		capacity = MaxHeadlinesPerSymbol
	}
	return &HeadlineBuffer{cap: capacity, items: make(map[string][]models.Headline)}
}

// Add appends h, dropping the oldest entry when the symbol is full.
func (b *HeadlineBuffer) Add(h models.Headline) {
	b.mu.Lock()
	defer b.mu.Unlock()
	xs := append(b.items[h.Symbol], h)
	if len(xs) > b.cap {
		xs = xs[len(xs)-b.cap:]
	}
	b.items[h.Symbol] = xs
}

// Drain returns and forgets the unseen headline texts for symbol.
func (b *HeadlineBuffer) Drain(symbol string) []string {
	b.mu.Lock()
	xs := b.items[symbol]
	delete(b.items, symbol)
	b.mu.Unlock()
	out := make([]string, len(xs))
	for i, h := range xs {
		out[i] = h.Text
	}
	return out
}

// Pending counts unseen headlines for symbol.
func (b *HeadlineBuffer) Pending(symbol string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items[symbol])
}

// HeadlineHandler consumes the headlines topic into a HeadlineBuffer.
type HeadlineHandler struct {
	topic   string
	buf     *HeadlineBuffer
	metrics domrepo.Metrics
	lgr     *applogger.Logger
}

var _ pkgkafka.MessageHandler = (*HeadlineHandler)(nil)

func NewHeadlineHandler(topic string, buf *HeadlineBuffer, metrics domrepo.Metrics, lgr *applogger.Logger) *HeadlineHandler {
	if lgr == nil {
		lgr = applogger.Nop()
	}
	return &HeadlineHandler{topic: topic, buf: buf, metrics: orNop(metrics), lgr: lgr}
}

func (h *HeadlineHandler) Topic() string { return h.topic }

// incoming message schema: {symbol, headline, published_at}
func (h *HeadlineHandler) Handle(ctx context.Context, b []byte) error {
	var m struct {
		Symbol      string          `json:"symbol"`
		Headline    string          `json:"headline"`
		PublishedAt json.RawMessage `json:"published_at"`
	}
	if err := json.Unmarshal(b, &m); err != nil {
		h.metrics.RecordError("headline_unmarshal")
		return fmt.Errorf("decode headline: %w", err)
	}
	sym, err := util.NormalizeSymbol(m.Symbol)
	if err != nil {
		h.metrics.RecordError("headline_symbol")
		return fmt.Errorf("headline symbol: %w", err)
	}
	text := strings.TrimSpace(m.Headline)
	if text == "" {
		return fmt.Errorf("headline empty")
	}
	published := util.ParseTimeDefault(strings.Trim(string(m.PublishedAt), `"`), time.Now().UTC())

	h.buf.Add(models.Headline{Symbol: sym, Text: util.Truncate(text, 512), PublishedAt: published})
	meta, _ := pkgkafka.MetaFrom(ctx)
	if !meta.Received.IsZero() {
		h.metrics.RecordLatency("headline_ingest", time.Since(meta.Received).Seconds())
	}
	h.lgr.Debug("headline buffered",
		applogger.String("symbol", sym),
		applogger.String("trace_id", meta.TraceID),
		applogger.Int("partition", meta.Partition),
		applogger.Int64("offset", meta.Offset),
	)
	return nil
}

// HeadlineHooks attaches message metadata and logs rejected headlines.
func HeadlineHooks(lgr *applogger.Logger) pkgkafka.ConsumerHook {
	return pkgkafka.NewHookChain(pkgkafka.MetaHook(), pkgkafka.HookFuncs{
		Err: func(ctx context.Context, topic string, km kafkago.Message, data []byte, err error) {
			meta, _ := pkgkafka.MetaFrom(ctx)
			lgr.Warn("headline rejected",
				applogger.String("topic", topic),
				applogger.String("trace_id", meta.TraceID),
				applogger.Int64("offset", km.Offset),
				applogger.Error(err),
			)
		},
	})
}
