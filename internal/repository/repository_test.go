package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"TradeDesk/internal/domain/models"
	domrepo "TradeDesk/internal/domain/repository"
	"TradeDesk/pkg/cache"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func trade(action models.Action, sym string, price, amount float64, sec int64) models.Trade {
	return models.Trade{Timestamp: time.Unix(sec, 0), Action: action, Symbol: sym, Price: price, Amount: amount}
}

func TestReplayPositions(t *testing.T) {
	trades := []models.Trade{
		trade(models.ActionBuy, "BTCUSD", 100, 1, 1),
		trade(models.ActionBuy, "BTCUSD", 200, 1, 2),
		trade(models.ActionSell, "BTCUSD", 250, 0.5, 3),
		trade(models.ActionBuy, "ETHUSD", 10, 2, 4),
		trade(models.ActionSell, "ETHUSD", 12, 1.99995, 5),
		trade(models.ActionSell, "SOLUSD", 1, 1, 6),
	}
	pos := replayPositions(trades)
	require.Len(t, pos, 1)
	assert.Equal(t, "BTCUSD", pos[0].Symbol)
	assert.InDelta(t, 1.5, pos[0].Amount, 1e-12)
	assert.InDelta(t, 150.0, pos[0].AvgCost, 1e-12)
	assert.Equal(t, 250.0, pos[0].LastPrice)
}

func TestCashFlow(t *testing.T) {
	trades := []models.Trade{
		{Action: models.ActionBuy, Symbol: "BTCUSD", NetValue: 5013},
		{Action: models.ActionSell, Symbol: "BTCUSD", NetValue: 5086.74},
		{Action: models.ActionBuy, Symbol: "ETHUSD", NetValue: 5049.90},
	}
	assert.InDelta(t, -4976.16, cashFlow(trades), 1e-9)
	assert.Equal(t, 0.0, cashFlow(nil))

	s := NewMemoryStore()
	for i := range trades {
		require.NoError(t, s.RecordTrade(context.Background(), &trades[i], ""))
	}
	flow, err := s.GetCashFlow(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, -4976.16, flow, 1e-9)
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_, err := s.LatestDecision(ctx, "BTCUSD")
	assert.ErrorIs(t, err, domrepo.ErrNotFound)

	id, err := s.RecordDecision(ctx, &models.AggregatedDecision{Symbol: "BTCUSD", Signal: models.SignalBuy})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	d, err := s.LatestDecision(ctx, "BTCUSD")
	require.NoError(t, err)
	assert.Equal(t, id, d.ID)

	for i, sym := range []string{"BTCUSD", "ETHUSD", "BTCUSD"} {
		tr := trade(models.ActionBuy, sym, 10, 1, int64(i))
		require.NoError(t, s.RecordTrade(ctx, &tr, id))
	}
	all, err := s.ListTrades(ctx, "", 2)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "ETHUSD", all[0].Symbol)
	assert.Equal(t, id, all[1].DecisionID)

	btc, err := s.ListTrades(ctx, "BTCUSD", 0)
	require.NoError(t, err)
	assert.Len(t, btc, 2)

	pos, err := s.GetOpenPositions(ctx)
	require.NoError(t, err)
	assert.Len(t, pos, 2)
}

type fakePublisher struct {
	topics []string
	keys   []string
	values []interface{}
	err    error
	closed bool
}

func (f *fakePublisher) Publish(_ context.Context, topic string, key []byte, value interface{}) error {
	if f.err != nil {
		return f.err
	}
	f.topics = append(f.topics, topic)
	f.keys = append(f.keys, string(key))
	f.values = append(f.values, value)
	return nil
}

func (f *fakePublisher) Close() error {
	f.closed = true
	return nil
}

func TestKafkaNotifier(t *testing.T) {
	ctx := context.Background()
	pub := &fakePublisher{}
	n := NewKafkaNotifier(pub, "trades", "decisions")

	tr := trade(models.ActionSell, "ETHUSD", 12, 1, 9)
	require.NoError(t, n.OnTrade(ctx, &tr))
	require.NoError(t, n.OnDecision(ctx, &models.AggregatedDecision{Symbol: "ETHUSD"}))
	assert.Equal(t, []string{"trades", "decisions"}, pub.topics)
	assert.Equal(t, []string{"ETHUSD", "ETHUSD"}, pub.keys)
	ev := pub.values[0].(TradeEvent)
	assert.Equal(t, "SELL", ev.Action)

	require.NoError(t, n.Close())
	assert.True(t, pub.closed)

	pub.err = errors.New("broker down")
	assert.Error(t, n.OnTrade(ctx, &tr))

	silent := NewKafkaNotifier(&fakePublisher{}, "trades", "")
	assert.NoError(t, silent.OnDecision(ctx, &models.AggregatedDecision{}))
}

func TestCachedStoreServesLatestFromCache(t *testing.T) {
	ctx := context.Background()
	mem := cache.NewMemoryCache()
	defer mem.Close()
	inner := NewMemoryStore()
	s := NewCachedStore(inner, mem, time.Minute, nil)

	id, err := s.RecordDecision(ctx, &models.AggregatedDecision{Symbol: "BTCUSD", Signal: models.SignalSell, Confidence: 0.7})
	require.NoError(t, err)

	var cached models.AggregatedDecision
	require.NoError(t, mem.Get(ctx, "decision:BTCUSD", &cached))
	assert.Equal(t, id, cached.ID)

	d, err := s.LatestDecision(ctx, "BTCUSD")
	require.NoError(t, err)
	assert.Equal(t, models.SignalSell, d.Signal)

	_, err = inner.RecordDecision(ctx, &models.AggregatedDecision{Symbol: "ETHUSD"})
	require.NoError(t, err)
	d, err = s.LatestDecision(ctx, "ETHUSD")
	require.NoError(t, err)
	assert.Equal(t, "ETHUSD", d.Symbol)
}
