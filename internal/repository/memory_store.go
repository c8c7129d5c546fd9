package repository

import (
	"context"
	"sync"

	"TradeDesk/internal/domain/models"
	domrepo "TradeDesk/internal/domain/repository"

	"github.com/google/uuid"
)

// MemoryStore keeps decisions and trades in process memory.
type MemoryStore struct {
	mu        sync.RWMutex
	decisions map[string]models.AggregatedDecision
	latest    map[string]string
	trades    []models.Trade
}

var _ domrepo.Persistence = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		decisions: make(map[string]models.AggregatedDecision),
		latest:    make(map[string]string),
	}
}

func (s *MemoryStore) Init(context.Context) error { return nil }

func (s *MemoryStore) RecordDecision(_ context.Context, d *models.AggregatedDecision) (string, error) {
	id := d.ID
	if id == "" {
		id = uuid.NewString()
	}
	cp := *d
	cp.ID = id
	s.mu.Lock()
	s.decisions[id] = cp
	s.latest[d.Symbol] = id
	s.mu.Unlock()
	return id, nil
}

func (s *MemoryStore) RecordTrade(_ context.Context, t *models.Trade, decisionID string) error {
	cp := *t
	cp.DecisionID = decisionID
	s.mu.Lock()
	s.trades = append(s.trades, cp)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) GetOpenPositions(context.Context) ([]models.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return replayPositions(s.trades), nil
}

func (s *MemoryStore) GetCashFlow(context.Context) (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cashFlow(s.trades), nil
}

func (s *MemoryStore) LatestDecision(_ context.Context, symbol string) (*models.AggregatedDecision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.latest[symbol]
	if !ok {
		return nil, domrepo.ErrNotFound
	}
	d := s.decisions[id]
	return &d, nil
}

// ListTrades returns the newest limit trades in chronological order.
// An empty symbol matches every symbol.
func (s *MemoryStore) ListTrades(_ context.Context, symbol string, limit int) ([]models.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Trade, 0)
	for i := len(s.trades) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		if symbol == "" || s.trades[i].Symbol == symbol {
			out = append(out, s.trades[i])
		}
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func (s *MemoryStore) Health(context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }
