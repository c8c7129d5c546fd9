package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu      sync.Mutex
	topics  []string
	batches []LogBatch
}

func (p *recordingPublisher) PublishMessage(_ context.Context, topic string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	p.batches = append(p.batches, payload.(LogBatch))
	return nil
}

func (p *recordingPublisher) snapshot() []LogBatch {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]LogBatch(nil), p.batches...)
}

func TestCollectorDeduplicatesAndFlushesOnClose(t *testing.T) {
	pub := &recordingPublisher{}
	l := Nop()
	l.AddCollector(&CollectionConfig{Service: "tradedesk", FlushInterval: time.Hour, Topic: "tradedesk.logs", Publisher: pub})

	for i := 0; i < 3; i++ {
		l.Error("persist trade failed", String("symbol", "BTCUSD"), Float64("price", float64(100+i)), Error(errors.New("timeout")))
	}
	l.Error("persist trade failed", String("symbol", "ETHUSD"), Error(errors.New("timeout")))
	l.Warn("not collected")
	l.Info("not collected either")

	// Close publishes synchronously.
	l.RemoveCollector()

	batches := pub.snapshot()
	require.Len(t, batches, 1)
	assert.Equal(t, "tradedesk.logs", pub.topics[0])
	assert.Equal(t, "tradedesk", batches[0].Service)

	entries := batches[0].Entries
	require.Len(t, entries, 2)
	assert.Equal(t, 3, entries[0].Count)
	assert.Equal(t, "error", entries[0].Level)
	assert.Equal(t, "BTCUSD", entries[0].Fields["symbol"])
	assert.Equal(t, 102.0, entries[0].Fields["price"])
	assert.Equal(t, "timeout", entries[0].Fields["error"])
	assert.Contains(t, entries[0].Caller, "logger/collector_test.go:")
	assert.Equal(t, 1, entries[1].Count)
}

func TestCollectorFlushesWhenFull(t *testing.T) {
	pub := &recordingPublisher{}
	l := Nop()
	l.AddCollector(&CollectionConfig{FlushInterval: time.Hour, MaxEntries: 1, Publisher: pub, IncludeWarn: true})
	defer l.RemoveCollector()

	l.Warn("near miss", Float64("gap", 0.05))

	require.Eventually(t, func() bool { return len(pub.snapshot()) == 1 }, time.Second, 10*time.Millisecond)
	e := pub.snapshot()[0].Entries[0]
	assert.Equal(t, "warn", e.Level)
	assert.Equal(t, 0.05, e.Fields["gap"])
}

func TestChildLoggerSharesCollector(t *testing.T) {
	pub := &recordingPublisher{}
	l := Nop()
	l.AddCollector(&CollectionConfig{FlushInterval: time.Hour, Publisher: pub})
	l.With(String("component", "cycle")).Error("cycle failed")
	l.RemoveCollector()

	require.Len(t, pub.snapshot(), 1)
	assert.Equal(t, "cycle failed", pub.snapshot()[0].Entries[0].Message)
}

func TestFieldEncoding(t *testing.T) {
	var buf bytes.Buffer
	l := &Logger{zl: zerolog.New(&buf)}
	l.Info("filled",
		String("symbol", "BTCUSD"),
		Int("steps", 3),
		Float64("price", 50000.5),
		Bool("dry_run", true),
		Duration("took", 1500*time.Millisecond),
		Strings("symbols", []string{"BTCUSD", "ETHUSD"}),
		Error(errors.New("boom")),
	)

	var out map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	assert.Equal(t, "BTCUSD", out["symbol"])
	assert.Equal(t, 3.0, out["steps"])
	assert.Equal(t, 50000.5, out["price"])
	assert.Equal(t, true, out["dry_run"])
	assert.Equal(t, 1500.0, out["took"])
	assert.Equal(t, "BTCUSD, ETHUSD", out["symbols"])
	assert.Equal(t, "boom", out["error"])
	assert.Equal(t, "info", out["level"])
}

func TestNewRejectsBadLevel(t *testing.T) {
	_, err := New(&Config{Level: "loud"})
	assert.Error(t, err)
}
