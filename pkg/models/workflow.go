// Package models defines core node-based workflow models for graph execution.
package models

import "time"

// Node types built into the registry. Unknown types fail at
// graph-construction time, not at run time.
const (
	NodeTypeTrigger     = "trigger"
	NodeTypeAIAgent     = "ai_agent"
	NodeTypeCondition   = "condition"
	NodeTypeEmailTool   = "email_tool"
	NodeTypeWebhookTool = "webhook_tool"
	NodeTypeCRMTool     = "crm_tool"
)

// Exit handles a node may return to select its outgoing edge.
const (
	ExitHandleDefault = "default"
	ExitHandleSuccess = "success"
	ExitHandleFailure = "failure"
	ExitHandleTrue    = "true"
	ExitHandleFalse   = "false"
)

// WorkflowStatus represents the lifecycle state of a workflow definition.
type WorkflowStatus string

const (
	WorkflowStatusDraft     WorkflowStatus = "draft"     // Editable, not executable
	WorkflowStatusPublished WorkflowStatus = "published" // Executable
	WorkflowStatusArchived  WorkflowStatus = "archived"  // Historical, not executable
)

// WorkflowNode represents a node instance in a workflow graph.
type WorkflowNode struct {
	ID      string         `json:"id"   validate:"required"`
	Type    string         `json:"type" validate:"required"`
	Name    string         `json:"name" validate:"required,min=1"`
	Config  map[string]any `json:"config"`
	Enabled bool           `json:"enabled"`

	// EventType is set on trigger nodes only and names the call event the
	// trigger fires on (e.g. "call.ended").
	EventType string `json:"event_type,omitempty"`
}

// IsTrigger reports whether the node starts executions.
func (n *WorkflowNode) IsTrigger() bool {
	return n.Type == NodeTypeTrigger
}

// Edge connects a source node to a target node. SourceHandle optionally
// names the exit handle this edge is attached to; an empty handle is the
// unlabeled default edge.
type Edge struct {
	ID           string `json:"id"`
	Source       string `json:"source" validate:"required"`
	Target       string `json:"target" validate:"required"`
	SourceHandle string `json:"source_handle,omitempty"`
}

// Workflow represents a user-authored automation graph.
type Workflow struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"   validate:"required,min=3"`
	OrganizationID string          `json:"organization_id"`
	Status         WorkflowStatus  `json:"status" validate:"required"`
	Nodes          []*WorkflowNode `json:"nodes"`
	Edges          []*Edge         `json:"edges"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// NodeByID returns the node with the given id.
func (w *Workflow) NodeByID(id string) (*WorkflowNode, bool) {
	for _, n := range w.Nodes {
		if n.ID == id {
			return n, true
		}
	}

	return nil, false
}

// TriggerNode returns the enabled trigger node matching the firing event
// type, if any.
func (w *Workflow) TriggerNode(eventType string) (*WorkflowNode, bool) {
	for _, n := range w.Nodes {
		if n.IsTrigger() && n.Enabled && n.EventType == eventType {
			return n, true
		}
	}

	return nil, false
}

// EdgeFrom selects the outgoing edge of nodeID whose handle matches
// exitHandle, falling back to an unlabeled or "default" edge if present.
func (w *Workflow) EdgeFrom(nodeID, exitHandle string) (*Edge, bool) {
	var fallback *Edge

	for _, e := range w.Edges {
		if e.Source != nodeID {
			continue
		}

		if e.SourceHandle == exitHandle {
			return e, true
		}

		if e.SourceHandle == "" || e.SourceHandle == ExitHandleDefault {
			fallback = e
		}
	}

	if fallback != nil {
		return fallback, true
	}

	return nil, false
}
