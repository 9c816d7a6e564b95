// Package memory provides a channel-backed queue for tests and local
// development.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/voxflow/voxflow/pkg/models"
	"github.com/voxflow/voxflow/pkg/queue"
)

type Queue struct {
	jobs   chan *models.CallJob
	mu     sync.Mutex
	closed bool
}

func NewQueue(buffer int) *Queue {
	if buffer <= 0 {
		buffer = 256
	}

	return &Queue{jobs: make(chan *models.CallJob, buffer)}
}

func (q *Queue) Enqueue(ctx context.Context, job *models.CallJob) (string, error) {
	q.mu.Lock()

	if q.closed {
		q.mu.Unlock()

		return "", queue.ErrQueueClosed
	}

	q.mu.Unlock()

	if job.ID == "" {
		job.ID = "job-" + uuid.New().String()[:8]
	}

	if job.EnqueuedAt.IsZero() {
		job.EnqueuedAt = time.Now().UTC()
	}

	select {
	case q.jobs <- job:
		return job.ID, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (q *Queue) Dequeue(ctx context.Context) (*models.CallJob, error) {
	select {
	case job, ok := <-q.jobs:
		if !ok {
			return nil, queue.ErrQueueClosed
		}

		job.Attempts++

		return job, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (q *Queue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.closed {
		q.closed = true
		close(q.jobs)
	}

	return nil
}

var _ queue.Queue = (*Queue)(nil)
