package calls

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/voxflow/voxflow/pkg/eventbus"
	"github.com/voxflow/voxflow/pkg/events"
	"github.com/voxflow/voxflow/pkg/models"
	"github.com/voxflow/voxflow/pkg/persistence"
	"github.com/voxflow/voxflow/pkg/pricing"
	"github.com/voxflow/voxflow/pkg/watchdog"
)

// Reducer applies asynchronous lifecycle webhooks to call records. Every
// event is appended to the audit log before its status validity is checked:
// auditability outranks strict ordering, so an out-of-order event is kept on
// the record even when it changes nothing.
type Reducer struct {
	calls     persistence.CallRepository
	callbacks persistence.CallbackRepository
	watchdog  *watchdog.Watchdog
	effects   *TerminalEffects
	eventBus  eventbus.EventPublisher
	logger    *slog.Logger
}

func NewReducer(
	calls persistence.CallRepository,
	callbacks persistence.CallbackRepository,
	wd *watchdog.Watchdog,
	effects *TerminalEffects,
	eventBus eventbus.EventPublisher,
	logger *slog.Logger,
) *Reducer {
	return &Reducer{
		calls:     calls,
		callbacks: callbacks,
		watchdog:  wd,
		effects:   effects,
		eventBus:  eventBus,
		logger:    logger.With("module", "webhook_reducer"),
	}
}

// Apply processes one webhook event. A nil return means durable receipt:
// the transport answers 200 and the sender will not redeliver. Errors are
// returned only when redelivery could succeed later (record not yet
// created, store unreachable).
func (r *Reducer) Apply(ctx context.Context, event models.WebhookEvent) error {
	if !models.KnownWebhookEventType(event.Type) {
		return fmt.Errorf("%w: %s", ErrUnknownEventType, event.Type)
	}

	if event.ID == "" {
		event.ID = "evt-" + uuid.New().String()[:8]
	}

	if event.ReceivedAt.IsZero() {
		event.ReceivedAt = time.Now().UTC()
	}

	record, err := r.resolve(ctx, event.CallID)
	if err != nil {
		// The webhook may have raced the worker; sender retry covers it.
		return err
	}

	logger := r.logger.With("call_id", record.ID, "provider_call_id", event.CallID, "event_type", event.Type)

	// Audit first, validation second.
	if err := r.calls.AppendEvent(ctx, record.ID, event); err != nil {
		return fmt.Errorf("failed to append audit event: %w", err)
	}

	switch event.Type {
	case models.WebhookEventConnected:
		return r.applyConnected(ctx, record, event, logger)
	case models.WebhookEventTranscriptComplete:
		return r.applyTranscriptComplete(ctx, record, event, logger)
	case models.WebhookEventEnded:
		return r.applyEnded(ctx, record, event, logger)
	case models.WebhookEventSummary:
		return r.applySummary(ctx, record, event, logger)
	}

	return nil
}

// resolve matches the webhook's correlation id to a record, trying the
// provider id index first and the record id second.
func (r *Reducer) resolve(ctx context.Context, callID string) (*models.CallRecord, error) {
	record, err := r.calls.ByProviderCallID(ctx, callID)
	if err == nil {
		return record, nil
	}

	if !persistence.IsCallNotFound(err) {
		return nil, err
	}

	return r.calls.ByID(ctx, callID)
}

func (r *Reducer) applyConnected(ctx context.Context, record *models.CallRecord, event models.WebhookEvent, logger *slog.Logger) error {
	fields := models.ConnectedFields{}
	if err := event.DecodePayload(&fields); err != nil {
		logger.Warn("Malformed CONNECTED payload, event audited only", "error", err)

		return nil
	}

	startedAt := fields.CallStartTime
	if startedAt.IsZero() {
		startedAt = event.ReceivedAt
	}

	_, err := r.calls.UpdateStatus(
		ctx,
		record.ID,
		[]models.CallStatus{models.CallStatusInitiated},
		models.CallStatusInProgress,
		func(rec *models.CallRecord) {
			rec.StartedAt = &startedAt
		},
	)
	if err != nil {
		if persistence.IsStatusConflict(err) {
			// Duplicate delivery or out-of-order event: first application
			// already moved the record, nothing more to do.
			logger.Debug("CONNECTED not applicable in current status", "status", record.Status)

			return nil
		}

		return err
	}

	r.watchdog.Cancel(record.ID)
	logger.Info("Call connected", "started_at", startedAt)

	r.publish(ctx, record.ID, events.CallConnected{
		BaseEvent: events.BaseEvent{Type: events.CallConnectedEvent, Timestamp: time.Now().UTC()},
		CallID:    record.ID,
		StartedAt: startedAt,
	})

	return nil
}

func (r *Reducer) applyTranscriptComplete(ctx context.Context, record *models.CallRecord, event models.WebhookEvent, logger *slog.Logger) error {
	// Valid from IN_PROGRESS or any terminal state; transcripts may arrive
	// late and still overwrite (permissive by design decision).
	if record.Status != models.CallStatusInProgress && !record.Status.IsTerminal() {
		logger.Warn("TRANSCRIPT_COMPLETE before call progressed, event audited only", "status", record.Status)

		return nil
	}

	fields := models.TranscriptCompleteFields{}
	if err := event.DecodePayload(&fields); err != nil {
		logger.Warn("Malformed TRANSCRIPT_COMPLETE payload, event audited only", "error", err)

		return nil
	}

	updated, err := r.calls.Mutate(ctx, record.ID, func(rec *models.CallRecord) {
		rec.Transcript = fields.FullTranscript
		if len(fields.RecordingURLs) > 0 {
			rec.RecordingURLs = fields.RecordingURLs
		}

		rec.Tags = mergeTags(rec.Tags, fields.UserTagsFound)
		rec.Tags = mergeTags(rec.Tags, fields.SystemTagsFound)
	})
	if err != nil {
		return fmt.Errorf("failed to store transcript: %w", err)
	}

	logger.Info("Transcript stored", "length", len(fields.FullTranscript))

	if fields.CallbackRequested && fields.CallbackTime != nil {
		if err := r.scheduleCallback(ctx, updated, *fields.CallbackTime); err != nil {
			// The transcript is already durable; a failed callback insert
			// must not fail the webhook.
			logger.Error("Failed to schedule requested callback", "error", err)
		}
	}

	return nil
}

func (r *Reducer) scheduleCallback(ctx context.Context, record *models.CallRecord, dueAt time.Time) error {
	callback := &models.ScheduledCallback{
		ID:             "cb-" + uuid.New().String()[:8],
		OrganizationID: record.OrganizationID,
		AssistantID:    record.AssistantID,
		ToNumber:       record.ToNumber,
		Tags:           record.Tags,
		DueAt:          dueAt.UTC(),
		SourceCallID:   record.ID,
		CreatedAt:      time.Now().UTC(),
	}

	if err := r.callbacks.Save(ctx, callback); err != nil {
		return err
	}

	r.logger.Info("Callback scheduled from transcript", "callback_id", callback.ID, "due_at", callback.DueAt)

	return nil
}

func (r *Reducer) applyEnded(ctx context.Context, record *models.CallRecord, event models.WebhookEvent, logger *slog.Logger) error {
	fields := models.EndedFields{}
	if err := event.DecodePayload(&fields); err != nil {
		logger.Warn("Malformed ENDED payload, event audited only", "error", err)

		return nil
	}

	target := models.CallStatusCompleted
	reason := ""

	if fields.Failed() {
		target = models.CallStatusFailed

		reason = models.FailureReasonProviderReported
		if fields.IsRejected {
			reason = models.FailureReasonCallRejected
		}
	}

	endedAt := event.ReceivedAt
	cost := pricing.Calculate(pricing.FromEndedFields(fields))

	updated, err := r.calls.UpdateStatus(
		ctx,
		record.ID,
		[]models.CallStatus{models.CallStatusPending, models.CallStatusInitiated, models.CallStatusInProgress},
		target,
		func(rec *models.CallRecord) {
			rec.DurationSeconds = fields.DurationSeconds
			rec.EndedAt = &endedAt
			rec.Outcome = fields.CallOutcome
			rec.IsVoicemail = fields.IsVoicemail
			rec.IsRejected = fields.IsRejected
			rec.FailureReason = reason
			rec.Cost = cost
			rec.Tags = mergeTags(rec.Tags, fields.Tags)

			if fields.RecordingURL != "" {
				rec.RecordingURLs = appendUnique(rec.RecordingURLs, fields.RecordingURL)
			}
		},
	)
	if err != nil {
		if persistence.IsStatusConflict(err) {
			// Already terminal; duplicate ENDED deliveries are no-ops.
			logger.Debug("ENDED not applicable, record already terminal", "status", record.Status)

			return nil
		}

		return err
	}

	r.watchdog.Cancel(record.ID)
	logger.Info("Call ended",
		"status", updated.Status,
		"duration_seconds", fields.DurationSeconds,
		"total_cost", cost.TotalCost,
	)

	// Side effects after the persisted transition; the effects layer logs
	// its own failures, publishes the terminal lifecycle event, and never
	// rolls the state back.
	r.effects.Fire(ctx, updated)

	return nil
}

func (r *Reducer) applySummary(ctx context.Context, record *models.CallRecord, event models.WebhookEvent, logger *slog.Logger) error {
	// Valid only after ENDED.
	if !record.Status.IsTerminal() {
		logger.Warn("SUMMARY before call ended, event audited only", "status", record.Status)

		return nil
	}

	fields := models.SummaryFields{}
	if err := event.DecodePayload(&fields); err != nil {
		logger.Warn("Malformed SUMMARY payload, event audited only", "error", err)

		return nil
	}

	// Idempotent, last write wins.
	if _, err := r.calls.Mutate(ctx, record.ID, func(rec *models.CallRecord) {
		rec.Summary = fields.Summary
		rec.Sentiment = fields.Sentiment
		rec.Score = fields.Score
	}); err != nil {
		return fmt.Errorf("failed to store summary: %w", err)
	}

	logger.Info("Summary attached", "sentiment", fields.Sentiment)

	return nil
}

func (r *Reducer) publish(ctx context.Context, key string, event eventbus.Event) {
	if r.eventBus == nil {
		return
	}

	if err := r.eventBus.Publish(ctx, key, event); err != nil {
		r.logger.Error("Failed to publish event", "event_type", event.GetType(), "error", err)
	}
}

func mergeTags(existing, incoming []string) []string {
	for _, tag := range incoming {
		existing = appendUnique(existing, tag)
	}

	return existing
}

func appendUnique(list []string, value string) []string {
	for _, v := range list {
		if v == value {
			return list
		}
	}

	return append(list, value)
}
