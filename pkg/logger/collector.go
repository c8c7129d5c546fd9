package logger

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Publisher ships a collected batch, typically to a Kafka topic.
type Publisher interface {
	PublishMessage(ctx context.Context, topic string, payload any) error
}

type CollectionConfig struct {
	Service        string        // stamped on every batch
	FlushInterval  time.Duration // default 30s
	MaxEntries     int           // distinct entries that trigger an early flush, default 100
	PublishTimeout time.Duration // default 10s
	Topic          string
	Publisher      Publisher
	IncludeWarn    bool
}

// AggregatedLogEntry counts repeats of one log line. Repeats are matched on
// level, caller, message and the string fields; numeric fields are kept from
// the latest occurrence.
type AggregatedLogEntry struct {
	Level     string         `json:"level"`
	Message   string         `json:"message"`
	Fields    map[string]any `json:"fields,omitempty"`
	Caller    string         `json:"caller"`
	Count     int            `json:"count"`
	FirstSeen time.Time      `json:"first_seen"`
	LastSeen  time.Time      `json:"last_seen"`

	seq uint64
}

// LogBatch is the published payload.
type LogBatch struct {
	Service   string               `json:"service"`
	FlushedAt time.Time            `json:"flushed_at"`
	Entries   []AggregatedLogEntry `json:"entries"`
}

// LogCollector aggregates error logs and publishes them in batches from a
// single goroutine.
type LogCollector struct {
	config  CollectionConfig
	mu      sync.Mutex
	entries map[string]*AggregatedLogEntry
	seq     uint64
	flushCh chan struct{}
	cancel  context.CancelFunc
	done    chan struct{}
}

func NewLogCollector(config *CollectionConfig) *LogCollector {
	cfg := *config
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 30 * time.Second
	}
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = 100
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = 10 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &LogCollector{
		config:  cfg,
		entries: make(map[string]*AggregatedLogEntry),
		flushCh: make(chan struct{}, 1),
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go c.loop(ctx)
	return c
}

func (c *LogCollector) accepts(level zerolog.Level) bool {
	return level >= zerolog.ErrorLevel || (c.config.IncludeWarn && level == zerolog.WarnLevel)
}

func (c *LogCollector) AddLog(level, message string, fields map[string]any, caller string) {
	now := time.Now()
	key := entryKey(level, message, fields, caller)

	c.mu.Lock()
	if e, ok := c.entries[key]; ok {
		e.Count++
		e.LastSeen = now
		e.Fields = fields
	} else {
		c.seq++
		c.entries[key] = &AggregatedLogEntry{
			Level: level, Message: message, Fields: fields, Caller: caller,
			Count: 1, FirstSeen: now, LastSeen: now, seq: c.seq,
		}
	}
	full := len(c.entries) >= c.config.MaxEntries
	c.mu.Unlock()

	if full {
		select {
		case c.flushCh <- struct{}{}:
		default:
		}
	}
}

func entryKey(level, message string, fields map[string]any, caller string) string {
	var b strings.Builder
	b.WriteString(level)
	b.WriteByte('|')
	b.WriteString(caller)
	b.WriteByte('|')
	b.WriteString(message)

	keys := make([]string, 0, len(fields))
	for k, v := range fields {
		if _, ok := v.(string); ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "|%s=%s", k, fields[k])
	}
	return b.String()
}

func (c *LogCollector) loop(ctx context.Context) {
	defer close(c.done)
	ticker := time.NewTicker(c.config.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.flush()
		case <-c.flushCh:
			c.flush()
		case <-ctx.Done():
			c.flush()
			return
		}
	}
}

func (c *LogCollector) flush() {
	c.mu.Lock()
	if len(c.entries) == 0 {
		c.mu.Unlock()
		return
	}
	batch := LogBatch{Service: c.config.Service, FlushedAt: time.Now().UTC(), Entries: make([]AggregatedLogEntry, 0, len(c.entries))}
	for _, e := range c.entries {
		batch.Entries = append(batch.Entries, *e)
	}
	c.entries = make(map[string]*AggregatedLogEntry)
	c.mu.Unlock()

	sort.Slice(batch.Entries, func(i, j int) bool { return batch.Entries[i].seq < batch.Entries[j].seq })

	if c.config.Publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), c.config.PublishTimeout)
	defer cancel()
	if err := c.config.Publisher.PublishMessage(ctx, c.config.Topic, batch); err != nil {
		// the logger itself feeds this collector
		fmt.Fprintf(os.Stderr, "log collector: publish %d entries: %v\n", len(batch.Entries), err)
	}
}

// Close publishes what is pending and stops the flush loop.
func (c *LogCollector) Close() {
	c.cancel()
	<-c.done
}
