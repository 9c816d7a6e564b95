package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/voxflow/voxflow/pkg/queue"
	memoryqueue "github.com/voxflow/voxflow/pkg/queue/memory"
	redisqueue "github.com/voxflow/voxflow/pkg/queue/redis"
)

const memoryQueueBuffer = 1024

// NewQueue builds the call-job queue from the queue URL scheme. Redis gives
// the durable at-least-once queue; the in-memory queue is for local
// development only and loses jobs on restart.
func NewQueue(ctx context.Context, logger *slog.Logger, queueURL string) queue.Queue {
	if strings.HasPrefix(queueURL, "redis://") || strings.HasPrefix(queueURL, "rediss://") {
		q, err := redisqueue.NewQueue(ctx, queueURL)
		if err != nil {
			panic(fmt.Errorf("failed to connect to redis queue: %w", err))
		}

		return q
	}

	logger.WarnContext(ctx, "No durable queue configured, using in-memory queue")

	return memoryqueue.NewQueue(memoryQueueBuffer)
}
