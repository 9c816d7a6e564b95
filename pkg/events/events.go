// Package events defines event types and structures for call lifecycle and
// workflow notifications.
package events

import (
	"time"

	"github.com/voxflow/voxflow/pkg/models"
)

type EventType string

// Kafka topics.
const Topic = "voxflow.events"                        // Call lifecycle and workflow events
const NotificationTopic = "voxflow.notifications"     // Terminal-event notification feed

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// Call lifecycle events.
	CallQueuedEvent    EventType = "call.queued"
	CallInitiatedEvent EventType = "call.initiated"
	CallConnectedEvent EventType = "call.connected"
	CallCompletedEvent EventType = "call.completed"
	CallFailedEvent    EventType = "call.failed"

	// Workflow execution events.
	WorkflowTriggeredEvent          EventType = "workflow.triggered"
	WorkflowExecutionCompletedEvent EventType = "workflow.execution.completed"
	WorkflowExecutionFailedEvent    EventType = "workflow.execution.failed"

	// Notification feed.
	NotificationEvent EventType = "notification"
)

type BaseEvent struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	WorkerID  string         `json:"worker_id,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

type CallQueued struct {
	BaseEvent

	JobID          string `json:"job_id"`
	OrganizationID string `json:"organization_id"`
}

func (e CallQueued) GetType() EventType { return CallQueuedEvent }

type CallInitiated struct {
	BaseEvent

	CallID         string `json:"call_id"`
	ProviderCallID string `json:"provider_call_id"`
	OrganizationID string `json:"organization_id"`
}

func (e CallInitiated) GetType() EventType { return CallInitiatedEvent }

type CallConnected struct {
	BaseEvent

	CallID    string    `json:"call_id"`
	StartedAt time.Time `json:"started_at"`
}

func (e CallConnected) GetType() EventType { return CallConnectedEvent }

// CallCompleted carries the fields workflow trigger placeholders read, so
// subscribers can build trigger data without a record lookup.
type CallCompleted struct {
	BaseEvent

	CallID          string                `json:"call_id"`
	OrganizationID  string                `json:"organization_id"`
	AssistantID     string                `json:"assistant_id,omitempty"`
	ToNumber        string                `json:"to_number,omitempty"`
	DurationSeconds int                   `json:"duration_seconds"`
	Outcome         string                `json:"outcome,omitempty"`
	Transcript      string                `json:"transcript,omitempty"`
	Cost            *models.CostBreakdown `json:"cost,omitempty"`
	Tags            []string              `json:"tags,omitempty"`
}

func (e CallCompleted) GetType() EventType { return CallCompletedEvent }

type CallFailed struct {
	BaseEvent

	CallID         string `json:"call_id"`
	OrganizationID string `json:"organization_id"`
	AssistantID    string `json:"assistant_id,omitempty"`
	ToNumber       string `json:"to_number,omitempty"`
	Reason         string `json:"reason"`
}

func (e CallFailed) GetType() EventType { return CallFailedEvent }

type WorkflowTriggered struct {
	BaseEvent

	WorkflowID  string         `json:"workflow_id"`
	TriggerType string         `json:"trigger_type"`
	TriggerData map[string]any `json:"trigger_data,omitempty"`
}

func (e WorkflowTriggered) GetType() EventType { return WorkflowTriggeredEvent }

type WorkflowExecutionCompleted struct {
	BaseEvent

	WorkflowID  string        `json:"workflow_id"`
	ExecutionID string        `json:"execution_id"`
	Duration    time.Duration `json:"duration"`
}

func (e WorkflowExecutionCompleted) GetType() EventType {
	return WorkflowExecutionCompletedEvent
}

type WorkflowExecutionFailed struct {
	BaseEvent

	WorkflowID  string `json:"workflow_id"`
	ExecutionID string `json:"execution_id"`
	Error       string `json:"error"`
}

func (e WorkflowExecutionFailed) GetType() EventType {
	return WorkflowExecutionFailedEvent
}

// Notification is the fan-out entry published to the notification feed on
// terminal call events.
type Notification struct {
	BaseEvent

	OrganizationID string         `json:"organization_id"`
	CallID         string         `json:"call_id"`
	Kind           string         `json:"kind"` // "call_completed" or "call_failed"
	Title          string         `json:"title"`
	Body           string         `json:"body,omitempty"`
	Data           map[string]any `json:"data,omitempty"`
}

func (e Notification) GetType() EventType { return NotificationEvent }
