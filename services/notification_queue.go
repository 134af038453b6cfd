package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// ErrQueueClosed is returned by Dequeue once the queue will deliver nothing more.
var ErrQueueClosed = errors.New("notification queue closed")

// EmailJob is one rendered email waiting to be sent.
type EmailJob struct {
	ID        string   `json:"id"`
	TenantID  string   `json:"tenantId"`
	EventType string   `json:"eventType"`
	To        []string `json:"to"`
	Cc        []string `json:"cc,omitempty"`
	Subject   string   `json:"subject"`
	Body      string   `json:"body"`
	Created   int64    `json:"created"`
}

type JobQueue interface {
	Enqueue(ctx context.Context, job EmailJob) error
	// Dequeue blocks until a job is available, the context ends or the queue is closed.
	Dequeue(ctx context.Context) (*EmailJob, error)
}

// RedisQueue is a list queue: LPUSH on enqueue, BRPOP on dequeue.
type RedisQueue struct {
	client  *redis.Client
	key     string
	timeout time.Duration
}

func NewRedisQueue(client *redis.Client, prefix string) *RedisQueue {
	return &RedisQueue{
		client:  client,
		key:     prefix + ":queue:email",
		timeout: 2 * time.Second,
	}
}

func (q *RedisQueue) Enqueue(ctx context.Context, job EmailJob) error {
	if job.Created == 0 {
		job.Created = time.Now().Unix()
	}
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to encode email job: %w", err)
	}
	if err := q.client.LPush(ctx, q.key, data).Err(); err != nil {
		return fmt.Errorf("failed to enqueue email job: %w", err)
	}
	return nil
}

func (q *RedisQueue) Dequeue(ctx context.Context) (*EmailJob, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		// short BRPOP timeouts so cancellation is noticed
		result, err := q.client.BRPop(ctx, q.timeout, q.key).Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, err
		}

		var job EmailJob
		if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
			return nil, fmt.Errorf("failed to decode email job: %w", err)
		}
		return &job, nil
	}
}

func (q *RedisQueue) Len(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.key).Result()
}

// MemoryQueue is a buffered channel queue for single-instance deployments without Redis.
type MemoryQueue struct {
	jobs chan EmailJob
}

func NewMemoryQueue(size int) *MemoryQueue {
	return &MemoryQueue{jobs: make(chan EmailJob, size)}
}

// Enqueue never blocks; a full buffer drops the job with an error.
func (q *MemoryQueue) Enqueue(_ context.Context, job EmailJob) error {
	if job.Created == 0 {
		job.Created = time.Now().Unix()
	}
	select {
	case q.jobs <- job:
		return nil
	default:
		return errors.New("notification queue is full")
	}
}

func (q *MemoryQueue) Dequeue(ctx context.Context) (*EmailJob, error) {
	select {
	case job, ok := <-q.jobs:
		if !ok {
			return nil, ErrQueueClosed
		}
		return &job, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (q *MemoryQueue) Close() {
	close(q.jobs)
}
