// Package redis provides the Redis-list-backed job queue. BLPOP gives
// blocking dequeue across worker processes; the list survives worker
// restarts, which is what makes the queue durable.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
	"github.com/voxflow/voxflow/pkg/models"
	"github.com/voxflow/voxflow/pkg/queue"
)

const defaultQueueKey = "voxflow:jobs:calls"

type Queue struct {
	client redis.UniversalClient
	key    string
}

// NewQueue connects to Redis using a redis:// URL.
func NewQueue(ctx context.Context, redisURL string) (*Queue, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Queue{client: client, key: defaultQueueKey}, nil
}

// NewQueueWithClient wraps an existing client, sharing the connection the
// persistence layer already holds.
func NewQueueWithClient(client redis.UniversalClient) *Queue {
	return &Queue{client: client, key: defaultQueueKey}
}

func (q *Queue) Enqueue(ctx context.Context, job *models.CallJob) (string, error) {
	if job.ID == "" {
		job.ID = "job-" + uuid.New().String()[:8]
	}

	if job.EnqueuedAt.IsZero() {
		job.EnqueuedAt = time.Now().UTC()
	}

	raw, err := json.Marshal(job)
	if err != nil {
		return "", err
	}

	if err := q.client.RPush(ctx, q.key, raw).Err(); err != nil {
		return "", fmt.Errorf("failed to push job to queue: %w", err)
	}

	return job.ID, nil
}

func (q *Queue) Dequeue(ctx context.Context) (*models.CallJob, error) {
	for {
		result, err := q.client.BLPop(ctx, 1*time.Second, q.key).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}

		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}

			return nil, fmt.Errorf("failed to pop job from queue: %w", err)
		}

		if len(result) < 2 {
			continue
		}

		job := &models.CallJob{}
		if err := json.Unmarshal([]byte(result[1]), job); err != nil {
			return nil, fmt.Errorf("malformed job payload: %w", err)
		}

		job.Attempts++

		return job, nil
	}
}

func (q *Queue) Close() error {
	return q.client.Close()
}

var _ queue.Queue = (*Queue)(nil)
