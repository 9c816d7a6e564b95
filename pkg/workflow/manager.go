package workflow

import (
	"context"
	"log/slog"
	"time"

	"github.com/voxflow/voxflow/pkg/calls"
	"github.com/voxflow/voxflow/pkg/eventbus"
	"github.com/voxflow/voxflow/pkg/events"
	"github.com/voxflow/voxflow/pkg/models"
	"github.com/voxflow/voxflow/pkg/persistence"
)

// Manager matches call lifecycle events against published workflows and
// runs the matching ones. Terminal transitions arrive over the lifecycle
// bus, so a call failed by a dialer worker or its watchdog still fires
// call.failed workflows here.
type Manager struct {
	workflows persistence.WorkflowRepository
	executor  *Executor
	eventBus  eventbus.EventPublisher
	logger    *slog.Logger
}

func NewManager(
	workflows persistence.WorkflowRepository,
	executor *Executor,
	eventBus eventbus.EventPublisher,
	logger *slog.Logger,
) *Manager {
	return &Manager{
		workflows: workflows,
		executor:  executor,
		eventBus:  eventBus,
		logger:    logger.With("module", "workflow_manager"),
	}
}

// Start registers the manager on the lifecycle bus and begins consuming
// terminal call events.
func (m *Manager) Start(ctx context.Context, bus eventbus.EventSubscriber) error {
	if err := bus.Handle(events.CallCompletedEvent, m.handleCallEvent); err != nil {
		return err
	}

	if err := bus.Handle(events.CallFailedEvent, m.handleCallEvent); err != nil {
		return err
	}

	m.logger.Info("Subscribed to terminal call events")

	return bus.Subscribe(ctx)
}

func (m *Manager) handleCallEvent(ctx context.Context, event any) error {
	switch e := event.(type) {
	case *events.CallCompleted:
		m.OnCallEvent(ctx, calls.TriggerCallCompleted, completedSession(e))
	case *events.CallFailed:
		m.OnCallEvent(ctx, calls.TriggerCallFailed, failedSession(e))
	default:
		m.logger.Warn("Unexpected event on terminal call subscription")
	}

	return nil
}

// completedSession flattens the event into the map workflow placeholders
// ({{trigger.outcome}} and friends) resolve against.
func completedSession(e *events.CallCompleted) map[string]any {
	session := map[string]any{
		"call_id":          e.CallID,
		"organization_id":  e.OrganizationID,
		"assistant_id":     e.AssistantID,
		"to_number":        e.ToNumber,
		"status":           string(models.CallStatusCompleted),
		"duration_seconds": e.DurationSeconds,
		"outcome":          e.Outcome,
		"transcript":       e.Transcript,
		"tags":             e.Tags,
	}

	if e.Cost != nil {
		session["total_cost"] = e.Cost.TotalCost
	}

	return session
}

func failedSession(e *events.CallFailed) map[string]any {
	return map[string]any{
		"call_id":         e.CallID,
		"organization_id": e.OrganizationID,
		"assistant_id":    e.AssistantID,
		"to_number":       e.ToNumber,
		"status":          string(models.CallStatusFailed),
		"failure_reason":  e.Reason,
	}
}

// OnCallEvent fans one trigger event out to every published workflow with a
// matching enabled trigger node. Workflows run independently; one failing
// run never blocks the others.
func (m *Manager) OnCallEvent(ctx context.Context, triggerType string, session map[string]any) {
	published, err := m.workflows.Published(ctx)
	if err != nil {
		m.logger.Error("Failed to list published workflows", "trigger_type", triggerType, "error", err)

		return
	}

	for _, wf := range published {
		triggerNode, ok := wf.TriggerNode(triggerType)
		if !ok {
			continue
		}

		m.runOne(ctx, wf, triggerNode, triggerType, session)
	}
}

func (m *Manager) runOne(
	ctx context.Context,
	wf *models.Workflow,
	triggerNode *models.WorkflowNode,
	triggerType string,
	session map[string]any,
) {
	logger := m.logger.With("workflow_id", wf.ID, "trigger_type", triggerType)

	m.publish(ctx, wf.ID, events.WorkflowTriggered{
		BaseEvent: events.BaseEvent{
			Type:      events.WorkflowTriggeredEvent,
			Timestamp: time.Now().UTC(),
		},
		WorkflowID:  wf.ID,
		TriggerType: triggerType,
		TriggerData: session,
	})

	execution, err := m.executor.Execute(ctx, wf, triggerNode, triggerType, session)
	if err != nil {
		logger.Error("Workflow execution failed", "error", err)

		if execution != nil {
			m.publish(ctx, wf.ID, events.WorkflowExecutionFailed{
				BaseEvent: events.BaseEvent{
					Type:      events.WorkflowExecutionFailedEvent,
					Timestamp: time.Now().UTC(),
				},
				WorkflowID:  wf.ID,
				ExecutionID: execution.ID,
				Error:       err.Error(),
			})
		}

		return
	}

	duration := time.Duration(0)
	if execution.FinishedAt != nil {
		duration = execution.FinishedAt.Sub(execution.StartedAt)
	}

	m.publish(ctx, wf.ID, events.WorkflowExecutionCompleted{
		BaseEvent: events.BaseEvent{
			Type:      events.WorkflowExecutionCompletedEvent,
			Timestamp: time.Now().UTC(),
		},
		WorkflowID:  wf.ID,
		ExecutionID: execution.ID,
		Duration:    duration,
	})
}

func (m *Manager) publish(ctx context.Context, key string, event eventbus.Event) {
	if m.eventBus == nil {
		return
	}

	if err := m.eventBus.Publish(ctx, key, event); err != nil {
		m.logger.Error("Failed to publish workflow event", "event_type", event.GetType(), "error", err)
	}
}
