package queue

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"TradeDesk/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type runPayload struct {
	ID string `json:"id"`
}

type funcJob struct {
	calls atomic.Int32
	fn    func(n int32, p *runPayload) error
	seen  chan string
}

func (j *funcJob) Name() string { return "test" }
func (j *funcJob) Type() string { return "test.run" }
func (j *funcJob) Handle(_ context.Context, payload json.RawMessage) error {
	p, err := Decode[runPayload](payload)
	if err != nil {
		return err
	}
	n := j.calls.Add(1)
	if err := j.fn(n, p); err != nil {
		return err
	}
	j.seen <- p.ID
	return nil
}

func TestMemoryQueueDelivers(t *testing.T) {
	q := NewMemoryQueue(logger.Nop(), &QueueConfig{Workers: 2})
	job := &funcJob{fn: func(int32, *runPayload) error { return nil }, seen: make(chan string, 1)}
	q.RegisterJob(job)
	require.NoError(t, q.Start())
	defer q.Stop(context.Background())

	require.NoError(t, q.Enqueue(context.Background(), "test.run", runPayload{ID: "a"}))
	select {
	case id := <-job.seen:
		assert.Equal(t, "a", id)
	case <-time.After(2 * time.Second):
		t.Fatal("job not delivered")
	}
}

func TestMemoryQueueRetriesThenDeadLetters(t *testing.T) {
	q := NewMemoryQueue(logger.Nop(), &QueueConfig{RetryLimit: 1, RetryDelay: 10 * time.Millisecond})
	job := &funcJob{fn: func(int32, *runPayload) error { return errors.New("boom") }, seen: make(chan string, 1)}
	q.RegisterJob(job)
	require.NoError(t, q.Start())
	defer q.Stop(context.Background())

	require.NoError(t, q.Enqueue(context.Background(), "test.run", runPayload{ID: "b"}))
	require.Eventually(t, func() bool { return len(q.DeadLetters()) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, int32(2), job.calls.Load())
	assert.Equal(t, 1, q.DeadLetters()[0].Attempts)
}

func TestMemoryQueueRejects(t *testing.T) {
	q := NewMemoryQueue(logger.Nop(), nil)
	assert.ErrorIs(t, q.Enqueue(context.Background(), "test.run", nil), ErrNotRunning)

	require.NoError(t, q.Start())
	defer q.Stop(context.Background())
	assert.ErrorIs(t, q.Enqueue(context.Background(), "unknown", nil), ErrNoJob)
}
