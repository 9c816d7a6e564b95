// Package queue provides the durable call-job queue consumed by the dialer
// workers. Delivery is at-least-once: a job that fails processing is
// redelivered, so consumers must be idempotent.
package queue

import (
	"context"
	"errors"

	"github.com/voxflow/voxflow/pkg/models"
)

// ErrQueueClosed is returned by Dequeue after Close.
var ErrQueueClosed = errors.New("queue closed")

// MaxAttempts bounds redeliveries of one job before it is dead-lettered by
// the worker.
const MaxAttempts = 3

type Queue interface {
	// Enqueue submits a job and returns its id, assigning one when empty.
	// The accept/reject decision is synchronous; execution is not.
	Enqueue(ctx context.Context, job *models.CallJob) (string, error)

	// Dequeue blocks until a job is available or ctx is done. Each call
	// counts as one delivery attempt of the returned job.
	Dequeue(ctx context.Context) (*models.CallJob, error)

	Close() error
}
