// Package notifier publishes the user-facing notification feed for terminal
// call events.
package notifier

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/voxflow/voxflow/pkg/eventbus"
	"github.com/voxflow/voxflow/pkg/events"
	"github.com/voxflow/voxflow/pkg/models"
)

// Notifier turns terminal call records into feed entries on the
// notification topic. Publishing is best effort: a failed entry is logged
// and dropped, never retried against the already-settled call.
type Notifier struct {
	eventBus eventbus.EventPublisher
	logger   *slog.Logger
}

func New(eventBus eventbus.EventPublisher, logger *slog.Logger) *Notifier {
	return &Notifier{
		eventBus: eventBus,
		logger:   logger.With("module", "notifier"),
	}
}

func (n *Notifier) NotifyCallEnded(ctx context.Context, record *models.CallRecord) {
	if n.eventBus == nil {
		return
	}

	notification := build(record)

	if err := n.eventBus.Publish(ctx, record.ID, notification); err != nil {
		n.logger.Error("Failed to publish notification",
			"call_id", record.ID,
			"kind", notification.Kind,
			"error", err,
		)

		return
	}

	n.logger.Info("Notification published", "call_id", record.ID, "kind", notification.Kind)
}

func build(record *models.CallRecord) events.Notification {
	notification := events.Notification{
		BaseEvent: events.BaseEvent{
			Type:      events.NotificationEvent,
			Timestamp: time.Now().UTC(),
		},
		OrganizationID: record.OrganizationID,
		CallID:         record.ID,
		Data: map[string]any{
			"to_number":        record.ToNumber,
			"duration_seconds": record.DurationSeconds,
		},
	}

	switch record.Status {
	case models.CallStatusCompleted:
		notification.Kind = "call_completed"
		notification.Title = fmt.Sprintf("Call to %s completed", record.ToNumber)

		if record.Outcome != "" {
			notification.Body = fmt.Sprintf("Outcome: %s", record.Outcome)
			notification.Data["outcome"] = record.Outcome
		}
	default:
		notification.Kind = "call_failed"
		notification.Title = fmt.Sprintf("Call to %s failed", record.ToNumber)

		if record.FailureReason != "" {
			notification.Body = fmt.Sprintf("Reason: %s", record.FailureReason)
			notification.Data["failure_reason"] = record.FailureReason
		}
	}

	if record.Cost != nil {
		notification.Data["total_cost"] = record.Cost.TotalCost
	}

	return notification
}
