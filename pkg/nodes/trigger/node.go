// Package trigger provides the entry node that starts workflow executions
// from call lifecycle events.
package trigger

import (
	"context"

	"github.com/voxflow/voxflow/pkg/models"
)

// TriggerNode is the graph entry point. It performs no action of its own;
// executing it exposes the firing event's session context as the node's
// output so downstream placeholders can read it by node id as well as
// through {{trigger.*}}.
type TriggerNode struct {
	id        string
	eventType string
}

func NewTriggerNode(id string, config map[string]any) (*TriggerNode, error) {
	node := &TriggerNode{id: id}

	if eventType, ok := config["event_type"].(string); ok {
		node.eventType = eventType
	}

	return node, nil
}

func (n *TriggerNode) ID() string {
	return n.id
}

func (n *TriggerNode) Type() string {
	return models.NodeTypeTrigger
}

func (n *TriggerNode) Execute(_ context.Context, execCtx *models.ExecutionContext) (*models.NodeResult, error) {
	return &models.NodeResult{
		ExitHandle: models.ExitHandleDefault,
		Data:       execCtx.Trigger,
	}, nil
}
