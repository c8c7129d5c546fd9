package service

import (
	"context"

	"TradeDesk/internal/domain/models"
)

// Strategy turns a market context into an opinion.
// Implementations must not mutate the context and must be safe for concurrent use.
type Strategy interface {
	Name() string
	Evaluate(ctx context.Context, mc models.MarketContext) (models.Opinion, error)
}

// SentimentClassifier labels a batch of headlines for a symbol with one signal and a reason.
type SentimentClassifier interface {
	Classify(ctx context.Context, headlines []string, symbol string) (models.Signal, string, error)
}
