package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"TradeDesk/pkg/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	pollTimeout  = time.Second
	retryBatch   = 100
	retryEvery   = time.Second
	errorBackoff = time.Second
)

// promoteScript moves retries whose due time (score, unix ms) has passed
// back onto the pending list.
var promoteScript = redis.NewScript(`
local due = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, ARGV[2])
for _, m in ipairs(due) do
  redis.call('ZREM', KEYS[1], m)
  redis.call('LPUSH', KEYS[2], m)
end
return #due
`)

// RedisQueue is a reliable list queue. Workers BLMOVE each message from the
// pending list into a processing list owned by this consumer and remove it
// once handled, so a message interrupted by shutdown is re-run on the next
// Start. Failed messages wait in a sorted set until their retry is due and
// land in a dead list once RetryLimit is exhausted.
type RedisQueue struct {
	logger   *logger.Logger
	config   *QueueConfig
	client   *redis.Client
	prefix   string
	consumer string

	mu      sync.RWMutex
	jobs    map[string]Job
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

type RedisQueueOption func(*RedisQueue)

// WithKeyPrefix sets the key namespace, default "tradedesk:queue".
func WithKeyPrefix(prefix string) RedisQueueOption {
	return func(r *RedisQueue) { r.prefix = prefix }
}

// WithConsumerID names this process's processing list. It must be stable
// across restarts and unique among processes sharing the prefix. Defaults to
// the hostname.
func WithConsumerID(id string) RedisQueueOption {
	return func(r *RedisQueue) { r.consumer = id }
}

func NewRedisQueue(lgr *logger.Logger, config *QueueConfig, client *redis.Client, opts ...RedisQueueOption) *RedisQueue {
	r := &RedisQueue{
		logger: lgr,
		config: config.withDefaults(),
		client: client,
		prefix: "tradedesk:queue",
		jobs:   make(map[string]Job),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.consumer == "" {
		r.consumer, _ = os.Hostname()
		if r.consumer == "" {
			r.consumer = "default"
		}
	}
	return r
}

func (r *RedisQueue) pendingKey() string    { return r.prefix + ":pending" }
func (r *RedisQueue) processingKey() string { return r.prefix + ":processing:" + r.consumer }
func (r *RedisQueue) retryKey() string      { return r.prefix + ":retry" }
func (r *RedisQueue) deadKey() string       { return r.prefix + ":dead" }

func (r *RedisQueue) RegisterJob(job Job) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.jobs[job.Type()]; exists {
		r.logger.Warn("job already registered", logger.String("job", job.Name()))
		return
	}
	r.jobs[job.Type()] = job
	r.logger.Info("job registered", logger.String("job", job.Name()), logger.String("type", job.Type()))
}

// Start pings Redis, requeues messages this consumer left in flight and
// launches the workers and the retry poller.
func (r *RedisQueue) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return fmt.Errorf("queue already running")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	recovered, err := r.recoverInFlight(ctx)
	if err != nil {
		return fmt.Errorf("recover in-flight messages: %w", err)
	}

	runCtx, runCancel := context.WithCancel(context.Background())
	r.cancel = runCancel
	r.running = true
	for i := 0; i < r.config.Workers; i++ {
		r.wg.Add(1)
		go r.worker(runCtx, i)
	}
	r.wg.Add(1)
	go r.retryPoller(runCtx)

	r.logger.Info("redis queue started",
		logger.Int("workers", r.config.Workers),
		logger.Int("recovered", recovered),
		logger.String("consumer", r.consumer),
		logger.String("addr", r.client.Options().Addr))
	return nil
}

func (r *RedisQueue) recoverInFlight(ctx context.Context) (int, error) {
	n := 0
	for {
		err := r.client.LMove(ctx, r.processingKey(), r.pendingKey(), "RIGHT", "RIGHT").Err()
		if errors.Is(err, redis.Nil) {
			return n, nil
		}
		if err != nil {
			return n, err
		}
		n++
	}
}

// Stop cancels running jobs and waits for the workers. Interrupted messages
// stay in the processing list.
func (r *RedisQueue) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	r.running = false
	r.cancel()
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		r.logger.Info("redis queue stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("timeout waiting for queue workers: %w", ctx.Err())
	}
}

func (r *RedisQueue) Enqueue(ctx context.Context, msgType string, payload interface{}) error {
	r.mu.RLock()
	running := r.running
	_, known := r.jobs[msgType]
	r.mu.RUnlock()
	if !running {
		return ErrNotRunning
	}
	if !known {
		return fmt.Errorf("%w: %s", ErrNoJob, msgType)
	}

	msg, err := newMessage(uuid.NewString(), msgType, payload)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if err := r.client.LPush(ctx, r.pendingKey(), raw).Err(); err != nil {
		return fmt.Errorf("lpush: %w", err)
	}
	return nil
}

func (r *RedisQueue) worker(ctx context.Context, id int) {
	defer r.wg.Done()
	for ctx.Err() == nil {
		raw, err := r.client.BLMove(ctx, r.pendingKey(), r.processingKey(), "RIGHT", "LEFT", pollTimeout).Result()
		switch {
		case errors.Is(err, redis.Nil):
			continue
		case err != nil:
			if ctx.Err() != nil {
				return
			}
			r.logger.Error("queue receive failed", logger.Int("worker_id", id), logger.Error(err))
			sleep(ctx, errorBackoff)
			continue
		}
		r.handle(ctx, raw)
	}
}

func (r *RedisQueue) handle(ctx context.Context, raw string) {
	var msg Message
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		r.logger.Error("drop malformed message", logger.Error(err))
		r.settle(raw, r.toDead(raw))
		return
	}

	r.mu.RLock()
	job, ok := r.jobs[msg.Type]
	r.mu.RUnlock()
	if !ok {
		r.logger.Error("no job for message", logger.String("type", msg.Type), logger.String("id", msg.ID))
		r.settle(raw, r.toDead(raw))
		return
	}

	start := time.Now()
	err := job.Handle(ctx, msg.Payload)
	if err == nil {
		r.settle(raw, nil)
		return
	}
	if ctx.Err() != nil {
		// shutting down; left in processing for recoverInFlight
		r.logger.Warn("job interrupted", logger.String("id", msg.ID), logger.String("job", job.Name()),
			logger.Duration("elapsed", time.Since(start)))
		return
	}

	r.logger.Error("job failed",
		logger.String("id", msg.ID),
		logger.String("job", job.Name()),
		logger.Int("attempt", msg.Attempts+1),
		logger.Error(err))

	if msg.Attempts >= r.config.RetryLimit {
		r.settle(raw, r.toDead(raw))
		return
	}
	msg.Attempts++
	next, mErr := json.Marshal(msg)
	if mErr != nil {
		r.logger.Error("marshal retry", logger.Error(mErr))
		return
	}
	due := time.Now().Add(r.config.RetryDelay)
	r.settle(raw, func(ctx context.Context, p redis.Pipeliner) {
		p.ZAdd(ctx, r.retryKey(), redis.Z{Score: float64(due.UnixMilli()), Member: next})
	})
}

func (r *RedisQueue) toDead(raw string) func(context.Context, redis.Pipeliner) {
	return func(ctx context.Context, p redis.Pipeliner) { p.LPush(ctx, r.deadKey(), raw) }
}

// settle removes raw from the processing list and applies then, atomically.
func (r *RedisQueue) settle(raw string, then func(context.Context, redis.Pipeliner)) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.LRem(ctx, r.processingKey(), 1, raw)
		if then != nil {
			then(ctx, p)
		}
		return nil
	})
	if err != nil {
		r.logger.Error("queue settle failed", logger.Error(err))
	}
}

func (r *RedisQueue) retryPoller(ctx context.Context) {
	defer r.wg.Done()
	ticker := time.NewTicker(retryEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := promoteScript.Run(ctx, r.client, []string{r.retryKey(), r.pendingKey()},
				time.Now().UnixMilli(), retryBatch).Int()
			if err != nil && ctx.Err() == nil {
				r.logger.Error("promote retries", logger.Error(err))
			} else if n > 0 {
				r.logger.Debug("retries promoted", logger.Int("count", n))
			}
		}
	}
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
