// Package scheduler polls scheduled callbacks once a minute and promotes the
// due ones into call jobs. Delivery is at-least-once: a callback is deleted
// only after its job submission is confirmed, so a crash between enqueue and
// delete re-submits on the next tick and the dialer's idempotency guard
// absorbs the duplicate.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/voxflow/voxflow/pkg/models"
	"github.com/voxflow/voxflow/pkg/persistence"
	"github.com/voxflow/voxflow/pkg/queue"
)

// Billing answers whether an organization may place outbound calls. A nil
// Billing on the scheduler means every organization is allowed.
type Billing interface {
	CanPlaceCall(ctx context.Context, organizationID string) (bool, error)
}

type Scheduler struct {
	callbacks persistence.CallbackRepository
	jobs      queue.Queue
	billing   Billing
	cron      *cron.Cron
	logger    *slog.Logger
}

func NewScheduler(
	callbacks persistence.CallbackRepository,
	jobs queue.Queue,
	billing Billing,
	logger *slog.Logger,
) *Scheduler {
	return &Scheduler{
		callbacks: callbacks,
		jobs:      jobs,
		billing:   billing,
		cron:      cron.New(),
		logger:    logger.With("module", "callback_scheduler"),
	}
}

// Start registers the minute poll and launches the cron loop.
func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc("* * * * *", func() {
		s.ProcessTick(ctx, time.Now().UTC())
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info("Callback scheduler started", "interval", "1m")

	return nil
}

// Stop halts the cron loop and waits for a running tick to finish.
func (s *Scheduler) Stop() {
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
	s.logger.Info("Callback scheduler stopped")
}

// ProcessTick runs one polling pass. Items are processed independently: one
// bad callback never blocks the rest of the batch. Only an unreachable store
// skips the whole tick, leaving every callback for the next one.
func (s *Scheduler) ProcessTick(ctx context.Context, now time.Time) {
	due, err := s.callbacks.Due(ctx, now)
	if err != nil {
		if persistence.IsStoreUnavailable(err) {
			s.logger.Warn("Callback store unreachable, skipping tick", "error", err)

			return
		}

		s.logger.Error("Failed to list due callbacks", "error", err)

		return
	}

	if len(due) == 0 {
		return
	}

	s.logger.Info("Processing due callbacks", "count", len(due))

	for _, callback := range due {
		s.processOne(ctx, callback, now)
	}
}

func (s *Scheduler) processOne(ctx context.Context, callback *models.ScheduledCallback, now time.Time) {
	logger := s.logger.With("callback_id", callback.ID, "organization_id", callback.OrganizationID)

	if err := callback.Validate(); err != nil {
		// Malformed entries would fail on every tick; drop them.
		logger.Warn("Dropping invalid callback", "error", err)
		s.delete(ctx, callback, logger)

		return
	}

	if s.billing != nil {
		allowed, err := s.billing.CanPlaceCall(ctx, callback.OrganizationID)
		if err != nil {
			// Billing is down, not wrong: keep the callback for the next tick.
			logger.Error("Billing check failed, deferring callback", "error", err)

			return
		}

		if !allowed {
			logger.Warn("Organization not allowed to place calls, dropping callback")
			s.delete(ctx, callback, logger)

			return
		}
	}

	jobID, err := s.jobs.Enqueue(ctx, callback.Job("", now))
	if err != nil {
		// Submission unconfirmed; the callback stays and the next tick
		// retries it.
		logger.Error("Failed to submit callback job, deferring", "error", err)

		return
	}

	logger.Info("Callback promoted to call job", "job_id", jobID, "due_at", callback.DueAt)
	s.delete(ctx, callback, logger)
}

// delete is best-effort: a leftover callback resurfaces next tick and the
// resulting duplicate job is absorbed downstream.
func (s *Scheduler) delete(ctx context.Context, callback *models.ScheduledCallback, logger *slog.Logger) {
	if err := s.callbacks.Delete(ctx, callback.ID); err != nil && !persistence.IsCallbackNotFound(err) {
		logger.Error("Failed to delete processed callback", "error", err)
	}
}
