package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHookChainOrder(t *testing.T) {
	var order []string
	mk := func(name string) HookFuncs {
		return HookFuncs{
			Before: func(ctx context.Context, _ string, km kafka.Message, data []byte) (context.Context, kafka.Message, []byte, error) {
				order = append(order, "before:"+name)
				return ctx, km, append(data, name...), nil
			},
			After: func(context.Context, string, kafka.Message, []byte, error) {
				order = append(order, "after:"+name)
			},
		}
	}
	chain := NewHookChain(mk("a"), nil, mk("b"))

	ctx, km, data, err := chain.BeforeHandle(context.Background(), "t", kafka.Message{}, []byte(">"))
	require.NoError(t, err)
	assert.Equal(t, ">ab", string(data))
	chain.AfterHandle(ctx, "t", km, data, nil)
	assert.Equal(t, []string{"before:a", "before:b", "after:b", "after:a"}, order)
}

func TestHookChainPanicBecomesError(t *testing.T) {
	var notified error
	chain := NewHookChain(
		HookFuncs{Before: func(context.Context, string, kafka.Message, []byte) (context.Context, kafka.Message, []byte, error) {
			panic("bad hook")
		}},
		HookFuncs{Err: func(_ context.Context, _ string, _ kafka.Message, _ []byte, err error) { notified = err }},
	)
	_, _, _, err := chain.BeforeHandle(context.Background(), "t", kafka.Message{}, nil)
	var he *HookError
	require.True(t, errors.As(err, &he))
	assert.Equal(t, "ERR_PANIC", he.Code)
	assert.Equal(t, err, notified)
}

func TestMetaHook(t *testing.T) {
	km := kafka.Message{
		Partition: 3,
		Offset:    42,
		Key:       []byte("BTCUSD"),
		Headers:   []kafka.Header{{Key: "trace_id", Value: []byte("xyz")}},
	}
	ctx, _, _, err := MetaHook().BeforeHandle(context.Background(), "headlines", km, nil)
	require.NoError(t, err)

	m, ok := MetaFrom(ctx)
	require.True(t, ok)
	assert.Equal(t, "headlines", m.Topic)
	assert.Equal(t, 3, m.Partition)
	assert.Equal(t, int64(42), m.Offset)
	assert.Equal(t, "BTCUSD", m.Key)
	assert.Equal(t, "xyz", m.TraceID)
	assert.False(t, m.Received.IsZero())

	_, ok = MetaFrom(context.Background())
	assert.False(t, ok)
}

func TestBackoffWithJitterBounds(t *testing.T) {
	for attempt := 1; attempt <= 8; attempt++ {
		d := backoffWithJitter(50*time.Millisecond, time.Second, attempt)
		assert.LessOrEqual(t, d, time.Second)
		assert.Greater(t, d, time.Duration(0))
	}
}

func TestNewProducerRequiresBrokers(t *testing.T) {
	_, err := NewProducer()
	assert.Error(t, err)
	_, err = NewConsumer()
	assert.Error(t, err)
}
