package repository

import (
	"context"
	"fmt"
	"time"

	"TradeDesk/internal/domain/models"
	domrepo "TradeDesk/internal/domain/repository"
)

// Publisher is the part of pkg/kafka.Producer the notifier needs.
type Publisher interface {
	Publish(ctx context.Context, topic string, key []byte, value interface{}) error
	Close() error
}

// KafkaNotifier publishes trade and decision events.
type KafkaNotifier struct {
	pub            Publisher
	tradesTopic    string
	decisionsTopic string
}

var _ domrepo.Notifier = (*KafkaNotifier)(nil)

func NewKafkaNotifier(pub Publisher, tradesTopic, decisionsTopic string) *KafkaNotifier {
	return &KafkaNotifier{pub: pub, tradesTopic: tradesTopic, decisionsTopic: decisionsTopic}
}

// TradeEvent is the trades topic payload.
type TradeEvent struct {
	Type       string    `json:"type"`
	Symbol     string    `json:"symbol"`
	Action     string    `json:"action"`
	Price      float64   `json:"price"`
	Amount     float64   `json:"amount"`
	Fee        float64   `json:"fee"`
	NetValue   float64   `json:"net_value"`
	DecisionID string    `json:"decision_id,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

func (n *KafkaNotifier) OnTrade(ctx context.Context, t *models.Trade) error {
	ev := TradeEvent{
		Type:       "trade",
		Symbol:     t.Symbol,
		Action:     string(t.Action),
		Price:      t.Price,
		Amount:     t.Amount,
		Fee:        t.Fee,
		NetValue:   t.NetValue,
		DecisionID: t.DecisionID,
		Timestamp:  t.Timestamp,
	}
	if err := n.pub.Publish(ctx, n.tradesTopic, []byte(t.Symbol), ev); err != nil {
		return fmt.Errorf("publish trade: %w", err)
	}
	return nil
}

func (n *KafkaNotifier) OnDecision(ctx context.Context, d *models.AggregatedDecision) error {
	if n.decisionsTopic == "" {
		return nil
	}
	if err := n.pub.Publish(ctx, n.decisionsTopic, []byte(d.Symbol), d); err != nil {
		return fmt.Errorf("publish decision: %w", err)
	}
	return nil
}

func (n *KafkaNotifier) Close() error {
	if n.pub != nil {
		return n.pub.Close()
	}
	return nil
}

// NopNotifier drops every event.
type NopNotifier struct{}

func (NopNotifier) OnTrade(context.Context, *models.Trade) error                 { return nil }
func (NopNotifier) OnDecision(context.Context, *models.AggregatedDecision) error { return nil }
func (NopNotifier) Close() error                                                 { return nil }
