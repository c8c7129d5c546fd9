package strategy

import (
	"context"
	"fmt"

	"TradeDesk/internal/domain/models"
	domsvc "TradeDesk/internal/domain/service"
	"TradeDesk/internal/services/sentiment"
)

var (
	strongPositive = sentiment.NewKeywordSet("surge", "soar", "record high", "bullish", "rally")
	strongNegative = sentiment.NewKeywordSet("plunge", "collapse", "crash", "bearish", "ban")
)

// Sentiment maps classified headlines to an opinion.
type Sentiment struct {
	classifier domsvc.SentimentClassifier
}

func NewSentiment(c domsvc.SentimentClassifier) (*Sentiment, error) {
	if c == nil {
		return nil, fmt.Errorf("sentiment classifier is required")
	}
	return &Sentiment{classifier: c}, nil
}

func (s *Sentiment) Name() string { return "sentiment" }

func (s *Sentiment) Evaluate(ctx context.Context, mc models.MarketContext) (models.Opinion, error) {
	if len(mc.Headlines) == 0 {
		return models.Hold(0, "No news headlines available"), nil
	}
	sig, reason, err := s.classifier.Classify(ctx, mc.Headlines, mc.Symbol)
	if err != nil {
		return models.Opinion{}, fmt.Errorf("classify headlines: %w", err)
	}
	return models.Opinion{
		Signal:     sig,
		Confidence: sentimentConfidence(sig, reason),
		Reason:     "Sentiment: " + reason,
	}, nil
}

func sentimentConfidence(sig models.Signal, reason string) float64 {
	switch sig {
	case models.SignalBuy:
		if strongPositive.Match(reason) {
			return 0.8
		}
		return 0.6
	case models.SignalSell:
		if strongNegative.Match(reason) {
			return 0.8
		}
		return 0.6
	default:
		return 0.3
	}
}

var _ domsvc.Strategy = (*Sentiment)(nil)
