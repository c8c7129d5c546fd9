package quotes

import (
	"context"
	"fmt"
	"sync"
	"time"

	"TradeDesk/internal/domain/models"
)

// ErrNoQuote is returned when a symbol has no fresh quote.
var ErrNoQuote = fmt.Errorf("no fresh quote")

type entry struct {
	q   models.Quote
	exp time.Time
}

// Book keeps the last quote per symbol. A zero ttl never expires.
type Book struct {
	mu  sync.RWMutex
	m   map[string]entry
	ttl time.Duration
	now func() time.Time
}

func NewBook(ttl time.Duration) *Book {
	return &Book{m: make(map[string]entry), ttl: ttl, now: time.Now}
}

// Get returns the quote for symbol if it has not expired.
func (b *Book) Get(symbol string) (models.Quote, bool) {
	b.mu.RLock()
	e, ok := b.m[symbol]
	b.mu.RUnlock()
	if !ok {
		return models.Quote{}, false
	}
	if !e.exp.IsZero() && b.now().After(e.exp) {
		b.mu.Lock()
		delete(b.m, symbol)
		b.mu.Unlock()
		return models.Quote{}, false
	}
	return e.q, true
}

// Put stores q unless a newer quote for the same symbol is already held.
func (b *Book) Put(q models.Quote) {
	var exp time.Time
	if b.ttl > 0 {
		exp = b.now().Add(b.ttl)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if cur, ok := b.m[q.Symbol]; ok && cur.q.Timestamp.After(q.Timestamp) {
		return
	}
	b.m[q.Symbol] = entry{q: q, exp: exp}
}

// Process lets the book sit at the end of a quote pipeline.
func (b *Book) Process(_ context.Context, q *models.Quote) error {
	if q == nil {
		return fmt.Errorf("quote nil")
	}
	b.Put(*q)
	return nil
}

// Snapshot returns all fresh quotes keyed by symbol.
func (b *Book) Snapshot() map[string]models.Quote {
	now := b.now()
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make(map[string]models.Quote, len(b.m))
	for sym, e := range b.m {
		if !e.exp.IsZero() && now.After(e.exp) {
			continue
		}
		out[sym] = e.q
	}
	return out
}
