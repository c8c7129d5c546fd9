package queue

import (
	"context"
	"testing"
	"time"

	"TradeDesk/pkg/logger"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func unreachableRedis(t *testing.T) *redis.Client {
	t.Helper()
	c := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 200 * time.Millisecond, MaxRetries: -1})
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestRedisQueueKeys(t *testing.T) {
	q := NewRedisQueue(logger.Nop(), nil, unreachableRedis(t), WithKeyPrefix("td:queue"), WithConsumerID("node-a"))
	assert.Equal(t, "td:queue:pending", q.pendingKey())
	assert.Equal(t, "td:queue:processing:node-a", q.processingKey())
	assert.Equal(t, "td:queue:retry", q.retryKey())
	assert.Equal(t, "td:queue:dead", q.deadKey())

	q = NewRedisQueue(logger.Nop(), nil, unreachableRedis(t))
	assert.NotEmpty(t, q.consumer)
	assert.Equal(t, 1, q.config.Workers)
}

func TestRedisQueueRequiresStart(t *testing.T) {
	q := NewRedisQueue(logger.Nop(), &QueueConfig{Workers: 2}, unreachableRedis(t))
	q.RegisterJob(&funcJob{})

	err := q.Enqueue(context.Background(), "test.run", map[string]int{"n": 1})
	assert.ErrorIs(t, err, ErrNotRunning)

	require.Error(t, q.Start())
	assert.NoError(t, q.Stop(context.Background()))
}
