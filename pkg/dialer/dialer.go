// Package dialer runs the bounded worker pool that turns queued call jobs
// into provider calls. Each job is processed exactly-once-effectively: the
// queue redelivers on failure and an idempotency guard on the call record
// keeps a redelivered job from invoking the provider twice.
package dialer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/voxflow/voxflow/pkg/eventbus"
	"github.com/voxflow/voxflow/pkg/events"
	"github.com/voxflow/voxflow/pkg/models"
	"github.com/voxflow/voxflow/pkg/otelhelper"
	"github.com/voxflow/voxflow/pkg/persistence"
	"github.com/voxflow/voxflow/pkg/queue"
	"github.com/voxflow/voxflow/pkg/telephony"
	"github.com/voxflow/voxflow/pkg/watchdog"
)

// DefaultConcurrency bounds the worker pool to respect provider rate limits.
const DefaultConcurrency = 5

type Dialer struct {
	workerID    string
	jobs        queue.Queue
	calls       persistence.CallRepository
	provider    telephony.Provider
	watchdog    *watchdog.Watchdog
	eventBus    eventbus.EventPublisher
	validator   *validator.Validate
	logger      *slog.Logger
	tracer      trace.Tracer
	callbackURL string
	concurrency int

	wg sync.WaitGroup
}

type Config struct {
	WorkerID    string
	CallbackURL string
	Concurrency int
}

func NewDialer(
	cfg Config,
	jobs queue.Queue,
	calls persistence.CallRepository,
	provider telephony.Provider,
	wd *watchdog.Watchdog,
	eventBus eventbus.EventPublisher,
	logger *slog.Logger,
	tracer trace.Tracer,
) *Dialer {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("dialer")
	}

	return &Dialer{
		workerID:    cfg.WorkerID,
		jobs:        jobs,
		calls:       calls,
		provider:    provider,
		watchdog:    wd,
		eventBus:    eventBus,
		validator:   validator.New(),
		logger:      logger.With("module", "dialer", "worker_id", cfg.WorkerID),
		tracer:      tracer,
		callbackURL: cfg.CallbackURL,
		concurrency: concurrency,
	}
}

// Start launches the worker pool. Workers stop when ctx is cancelled; Wait
// blocks until they have drained.
func (d *Dialer) Start(ctx context.Context) {
	d.logger.Info("Starting dialer workers", "concurrency", d.concurrency)

	for i := range d.concurrency {
		d.wg.Add(1)

		go d.runWorker(ctx, i)
	}
}

func (d *Dialer) Wait() {
	d.wg.Wait()
}

func (d *Dialer) runWorker(ctx context.Context, n int) {
	defer d.wg.Done()

	logger := d.logger.With("worker", n)

	for {
		job, err := d.jobs.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, queue.ErrQueueClosed) {
				logger.Info("Worker stopping")

				return
			}

			logger.Error("Failed to dequeue job", "error", err)
			time.Sleep(1 * time.Second)

			continue
		}

		if err := d.Process(ctx, job); err != nil {
			logger.Error("Job processing failed, redelivering", "job_id", job.ID, "attempts", job.Attempts, "error", err)
			d.redeliver(ctx, job, logger)
		}
	}
}

// redeliver puts the job back on the queue so queue-native retry applies.
func (d *Dialer) redeliver(ctx context.Context, job *models.CallJob, logger *slog.Logger) {
	if _, err := d.jobs.Enqueue(ctx, job); err != nil {
		logger.Error("Failed to redeliver job", "job_id", job.ID, "error", err)
	}
}

// Process executes one delivery of a call job. A returned error means the
// delivery should be retried; definitive rejections (validation, provider)
// are absorbed after marking the record.
func (d *Dialer) Process(ctx context.Context, job *models.CallJob) error {
	ctx, span := otelhelper.StartSpan(ctx, d.tracer, "dialer.process",
		attribute.String(otelhelper.JobIDKey, job.ID),
		attribute.String(otelhelper.OrganizationIDKey, job.OrganizationID),
		attribute.String(otelhelper.WorkerIDKey, d.workerID),
	)
	defer span.End()

	logger := d.logger.With("job_id", job.ID, "to_number", job.ToNumber)

	if err := d.validator.Struct(job); err != nil {
		// Malformed jobs are rejected, never retried.
		logger.Warn("Rejecting malformed call job", "error", err)
		otelhelper.SetError(span, err)

		return nil
	}

	record, err := d.ensureRecord(ctx, job)
	if err != nil {
		otelhelper.SetError(span, err)

		return err
	}

	// Idempotency guard: a redelivered job whose record already moved past
	// PENDING must not invoke the provider again.
	if record.Status != models.CallStatusPending {
		logger.Info("Call already progressed, skipping provider invoke", "status", record.Status)

		return nil
	}

	if job.Attempts > queue.MaxAttempts {
		logger.Warn("Job exceeded max delivery attempts, dead-lettering", "attempts", job.Attempts)

		return d.failCall(ctx, job, models.FailureReasonMaxAttempts)
	}

	resp, err := d.provider.StartCall(ctx, telephony.StartCallRequest{
		CallID:            job.ID,
		AssistantID:       job.AssistantID,
		ToNumber:          job.ToNumber,
		OrganizationID:    job.OrganizationID,
		Tags:              job.Tags,
		StatusCallbackURL: d.callbackURL,
	})
	if err != nil {
		providerErr := &telephony.ProviderError{}
		if errors.As(err, &providerErr) {
			// Definitive provider rejection: mark failed, no retry here.
			logger.Error("Provider rejected call", "error", err)
			otelhelper.SetError(span, err, otelhelper.CallAttributes(record.ID, record.ProviderCallID)...)

			return d.failCall(ctx, job, models.FailureReasonProviderError)
		}

		otelhelper.SetError(span, err)

		return fmt.Errorf("provider invoke failed: %w", err)
	}

	_, err = d.calls.UpdateStatus(
		ctx,
		job.ID,
		[]models.CallStatus{models.CallStatusPending},
		models.CallStatusInitiated,
		func(r *models.CallRecord) {
			r.ProviderCallID = resp.ProviderCallID
		},
	)
	if err != nil {
		if persistence.IsStatusConflict(err) {
			// A concurrent delivery won the race; its watchdog is armed.
			logger.Info("Record already initiated by a concurrent delivery")

			return nil
		}

		return fmt.Errorf("failed to mark call initiated: %w", err)
	}

	d.watchdog.Schedule(job.ID)

	span.SetAttributes(attribute.String(otelhelper.ProviderCallIDKey, resp.ProviderCallID))
	logger.Info("Call initiated", "provider_call_id", resp.ProviderCallID)

	d.publish(ctx, job.ID, events.CallInitiated{
		BaseEvent: events.BaseEvent{
			Type:      events.CallInitiatedEvent,
			Timestamp: time.Now().UTC(),
			WorkerID:  d.workerID,
		},
		CallID:         job.ID,
		ProviderCallID: resp.ProviderCallID,
		OrganizationID: job.OrganizationID,
	})

	return nil
}

// ensureRecord creates the PENDING record on first delivery and returns the
// current record on redeliveries.
func (d *Dialer) ensureRecord(ctx context.Context, job *models.CallJob) (*models.CallRecord, error) {
	now := time.Now().UTC()

	record := &models.CallRecord{
		ID:             job.ID,
		OrganizationID: job.OrganizationID,
		AssistantID:    job.AssistantID,
		ToNumber:       job.ToNumber,
		Status:         models.CallStatusPending,
		Tags:           job.Tags,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err := d.calls.Create(ctx, record)
	if err == nil {
		return record, nil
	}

	if errors.Is(err, persistence.ErrCallAlreadyExists) {
		return d.calls.ByID(ctx, job.ID)
	}

	return nil, fmt.Errorf("failed to persist call record: %w", err)
}

func (d *Dialer) failCall(ctx context.Context, job *models.CallJob, reason string) error {
	now := time.Now().UTC()

	_, err := d.calls.UpdateStatus(
		ctx,
		job.ID,
		[]models.CallStatus{models.CallStatusPending},
		models.CallStatusFailed,
		func(r *models.CallRecord) {
			r.FailureReason = reason
			r.EndedAt = &now
		},
	)
	if err != nil {
		if persistence.IsStatusConflict(err) {
			return nil
		}

		return fmt.Errorf("failed to mark call failed: %w", err)
	}

	d.publish(ctx, job.ID, events.CallFailed{
		BaseEvent: events.BaseEvent{
			Type:      events.CallFailedEvent,
			Timestamp: now,
			WorkerID:  d.workerID,
		},
		CallID:         job.ID,
		OrganizationID: job.OrganizationID,
		AssistantID:    job.AssistantID,
		ToNumber:       job.ToNumber,
		Reason:         reason,
	})

	return nil
}

func (d *Dialer) publish(ctx context.Context, key string, event eventbus.Event) {
	if d.eventBus == nil {
		return
	}

	if err := d.eventBus.Publish(ctx, key, event); err != nil {
		d.logger.Error("Failed to publish event", "event_type", event.GetType(), "error", err)
	}
}
