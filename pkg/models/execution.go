package models

import "time"

// ExecutionStatus defines the possible states of a workflow run.
type ExecutionStatus string

const (
	ExecutionStatusRunning   ExecutionStatus = "running"
	ExecutionStatusCompleted ExecutionStatus = "completed" // Reached a sink node
	ExecutionStatusFailed    ExecutionStatus = "failed"    // Node error, message captured
	ExecutionStatusCancelled ExecutionStatus = "cancelled" // External abort
)

// WorkflowExecution is one run of a workflow for one trigger event.
// NodeOutputs accumulate per node and persist through failure for diagnosis;
// resuming a failed run is not supported, re-triggering starts from scratch.
type WorkflowExecution struct {
	ID            string          `json:"id"`
	WorkflowID    string          `json:"workflow_id"`
	TriggerNodeID string          `json:"trigger_node_id"`
	TriggerType   string          `json:"trigger_type"`
	Status        ExecutionStatus `json:"status"`
	Error         string          `json:"error,omitempty"`

	NodeOutputs  map[string]map[string]any `json:"node_outputs"`
	VisitedNodes []string                  `json:"visited_nodes"`

	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// RecordOutput stores a node's output and marks the node visited. A node's
// slot is only ever written by that node.
func (e *WorkflowExecution) RecordOutput(nodeID string, data map[string]any) {
	if e.NodeOutputs == nil {
		e.NodeOutputs = make(map[string]map[string]any)
	}

	e.NodeOutputs[nodeID] = data
	e.VisitedNodes = append(e.VisitedNodes, nodeID)
}

// ExecutionContext carries the data nodes read during one run: the trigger
// payload, prior node outputs, and any attached AI-analysis result.
type ExecutionContext struct {
	ExecutionID string                    `json:"execution_id"`
	WorkflowID  string                    `json:"workflow_id"`
	Trigger     map[string]any            `json:"trigger,omitempty"`
	NodeOutputs map[string]map[string]any `json:"node_outputs,omitempty"`
	AIAnalysis  map[string]any            `json:"ai_analysis,omitempty"`
}

// NodeResult is the (exitHandle, data) pair every node action returns.
type NodeResult struct {
	ExitHandle string         `json:"exit_handle"`
	Data       map[string]any `json:"data,omitempty"`
}
