package calls

import (
	"context"
	"log/slog"
	"time"

	"github.com/voxflow/voxflow/pkg/eventbus"
	"github.com/voxflow/voxflow/pkg/events"
	"github.com/voxflow/voxflow/pkg/models"
)

// Workflow trigger types fired on terminal call transitions. They match the
// lifecycle event types on the wire, so trigger nodes subscribe to the same
// names the bus carries.
const (
	TriggerCallCompleted = string(events.CallCompletedEvent)
	TriggerCallFailed    = string(events.CallFailedEvent)
)

// Notifier is the notification-feed collaborator boundary.
type Notifier interface {
	NotifyCallEnded(ctx context.Context, record *models.CallRecord)
}

// TerminalEffects fans a terminal transition out: the notification feed is
// told directly, and the matching lifecycle event goes onto the bus, where
// the workflow engine picks it up regardless of which process moved the
// record. Both sides are fire-and-forget relative to the already-persisted
// state change: a failing side effect is logged, never rolled back into the
// record.
type TerminalEffects struct {
	notifier Notifier
	eventBus eventbus.EventPublisher
	logger   *slog.Logger
}

func NewTerminalEffects(notifier Notifier, eventBus eventbus.EventPublisher, logger *slog.Logger) *TerminalEffects {
	return &TerminalEffects{
		notifier: notifier,
		eventBus: eventBus,
		logger:   logger.With("module", "terminal_effects"),
	}
}

func (e *TerminalEffects) Fire(ctx context.Context, record *models.CallRecord) {
	if !record.Status.IsTerminal() {
		return
	}

	if e.notifier != nil {
		e.notifier.NotifyCallEnded(ctx, record)
	}

	e.publish(ctx, record)
}

func (e *TerminalEffects) publish(ctx context.Context, record *models.CallRecord) {
	if e.eventBus == nil {
		return
	}

	var event eventbus.Event

	if record.Status == models.CallStatusFailed {
		event = events.CallFailed{
			BaseEvent:      events.BaseEvent{Type: events.CallFailedEvent, Timestamp: time.Now().UTC()},
			CallID:         record.ID,
			OrganizationID: record.OrganizationID,
			AssistantID:    record.AssistantID,
			ToNumber:       record.ToNumber,
			Reason:         record.FailureReason,
		}
	} else {
		event = events.CallCompleted{
			BaseEvent:       events.BaseEvent{Type: events.CallCompletedEvent, Timestamp: time.Now().UTC()},
			CallID:          record.ID,
			OrganizationID:  record.OrganizationID,
			AssistantID:     record.AssistantID,
			ToNumber:        record.ToNumber,
			DurationSeconds: record.DurationSeconds,
			Outcome:         record.Outcome,
			Transcript:      record.Transcript,
			Cost:            record.Cost,
			Tags:            record.Tags,
		}
	}

	if err := e.eventBus.Publish(ctx, record.ID, event); err != nil {
		e.logger.Error("Failed to publish terminal call event",
			"call_id", record.ID,
			"event_type", event.GetType(),
			"error", err,
		)
	}
}
