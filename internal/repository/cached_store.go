package repository

import (
	"context"
	"errors"
	"time"

	"TradeDesk/internal/domain/models"
	domrepo "TradeDesk/internal/domain/repository"
	"TradeDesk/pkg/cache"
	applogger "TradeDesk/pkg/logger"
)

// CachedStore writes through to a Persistence and keeps the latest
// decision per symbol in a cache.
type CachedStore struct {
	domrepo.Persistence
	cache cache.Service
	ttl   time.Duration
	l     *applogger.Logger
}

func NewCachedStore(inner domrepo.Persistence, c cache.Service, ttl time.Duration, l *applogger.Logger) *CachedStore {
	if l == nil {
		l = applogger.Nop()
	}
	return &CachedStore{Persistence: inner, cache: c, ttl: ttl, l: l}
}

func decisionKey(symbol string) string {
	return cache.Key("decision", symbol)
}

func (s *CachedStore) RecordDecision(ctx context.Context, d *models.AggregatedDecision) (string, error) {
	id, err := s.Persistence.RecordDecision(ctx, d)
	if err != nil {
		return "", err
	}
	cp := *d
	cp.ID = id
	if err := s.cache.Set(ctx, decisionKey(d.Symbol), cp, s.ttl); err != nil {
		s.l.Warn("decision cache set failed", applogger.String("symbol", d.Symbol), applogger.Error(err))
	}
	return id, nil
}

func (s *CachedStore) LatestDecision(ctx context.Context, symbol string) (*models.AggregatedDecision, error) {
	var d models.AggregatedDecision
	err := s.cache.Get(ctx, decisionKey(symbol), &d)
	if err == nil {
		return &d, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		s.l.Warn("decision cache get failed", applogger.String("symbol", symbol), applogger.Error(err))
	}
	return s.Persistence.LatestDecision(ctx, symbol)
}
