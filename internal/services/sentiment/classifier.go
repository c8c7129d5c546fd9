package sentiment

import (
	"context"
	"fmt"

	"TradeDesk/internal/domain/models"
	domsvc "TradeDesk/internal/domain/service"
	"TradeDesk/pkg/config"
	applogger "TradeDesk/pkg/logger"
)

type classifyRequest struct {
	Symbol    string   `json:"symbol"`
	Headlines []string `json:"headlines"`
}

type classifyResponse struct {
	Signal string `json:"signal"`
	Reason string `json:"reason"`
}

// Classifier tries keyword matching first and then the remote service.
// Service failures degrade to HOLD; only context errors are returned.
type Classifier struct {
	lgr      *applogger.Logger
	base     *HTTPServiceBase
	attempts int
}

func NewClassifier(lgr *applogger.Logger, cfg *config.Config) *Classifier {
	attempts := cfg.Sentiment.Retries
	if attempts <= 0 {
		attempts = 1
	}
	return &Classifier{lgr: lgr, base: NewHTTPServiceBase(cfg), attempts: attempts}
}

func (c *Classifier) Classify(ctx context.Context, headlines []string, symbol string) (models.Signal, string, error) {
	if len(headlines) == 0 {
		return models.SignalHold, "No headlines provided", nil
	}
	if sig, reason, ok := matchBatch(headlines); ok {
		return sig, reason, nil
	}
	if !c.base.Configured() {
		return models.SignalHold, fmt.Sprintf("No clear sentiment in %d headlines", len(headlines)), nil
	}

	var resp classifyResponse
	err := c.base.PostJSONWithRetry(ctx, "/sentiment/classify", classifyRequest{Symbol: symbol, Headlines: headlines}, &resp, c.attempts)
	if err != nil {
		if ctx.Err() != nil {
			return models.SignalHold, "", ctx.Err()
		}
		c.lgr.Warn("Sentiment service failed", applogger.String("symbol", symbol), applogger.Error(err))
		return models.SignalHold, fmt.Sprintf("Sentiment service error: %v", err), nil
	}
	sig, err := models.ParseSignal(resp.Signal)
	if err != nil {
		sig = models.SignalHold
	}
	reason := resp.Reason
	if reason == "" {
		reason = "No reason provided"
	}
	return sig, reason, nil
}

var _ domsvc.SentimentClassifier = (*Classifier)(nil)
