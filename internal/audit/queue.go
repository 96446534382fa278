package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// Queue is the durable substrate the pipeline drains (spec.md §4.5: the
// queue MUST survive process restarts). Satisfied by *RedisQueue in
// production and memQueue in tests / when no durable store is configured.
type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	// Dequeue blocks up to timeout waiting for a job; returns (nil, nil)
	// on timeout with no job available.
	Dequeue(ctx context.Context, timeout time.Duration) (*Job, error)
	Len(ctx context.Context) (int64, error)
}

// RedisQueue backs the audit queue with the same Redis instance C1 uses
// for the hot store, per spec.md §4.5's recommendation, using a list as
// a durable FIFO: LPUSH on enqueue, BRPOP on dequeue.
type RedisQueue struct {
	client *redis.Client
	key    string
}

// NewRedisQueue builds a RedisQueue keyed under keyPrefix.
func NewRedisQueue(client *redis.Client, keyPrefix string) *RedisQueue {
	return &RedisQueue{client: client, key: keyPrefix + "audit:queue"}
}

func (q *RedisQueue) Enqueue(ctx context.Context, job Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("audit: encoding job: %w", err)
	}
	return q.client.LPush(ctx, q.key, data).Err()
}

func (q *RedisQueue) Dequeue(ctx context.Context, timeout time.Duration) (*Job, error) {
	res, err := q.client.BRPop(ctx, timeout, q.key).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var job Job
	if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
		return nil, fmt.Errorf("audit: decoding job: %w", err)
	}
	return &job, nil
}

func (q *RedisQueue) Len(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.key).Result()
}

// memQueue is an in-process Queue used in tests and as the fallback when
// no durable backing store is configured; it does not survive a process
// restart.
type memQueue struct {
	mu     sync.Mutex
	items  []Job
	notify chan struct{}
}

func newMemQueue() *memQueue {
	return &memQueue{notify: make(chan struct{}, 1)}
}

func (q *memQueue) Enqueue(_ context.Context, job Job) error {
	q.mu.Lock()
	q.items = append(q.items, job)
	q.mu.Unlock()
	select {
	case q.notify <- struct{}{}:
	default:
	}
	return nil
}

func (q *memQueue) Dequeue(ctx context.Context, timeout time.Duration) (*Job, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			job := q.items[0]
			q.items = q.items[1:]
			q.mu.Unlock()
			return &job, nil
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
			return nil, nil
		case <-q.notify:
		}
	}
}

func (q *memQueue) Len(_ context.Context) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return int64(len(q.items)), nil
}
