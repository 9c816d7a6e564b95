package condition

import (
	"context"

	"github.com/voxflow/voxflow/pkg/models"
	"github.com/voxflow/voxflow/pkg/protocol"
)

// ConditionNodeFactory creates ConditionNode instances.
type ConditionNodeFactory struct{}

func (f *ConditionNodeFactory) Create(ctx context.Context, id string, config map[string]any) (protocol.Node, error) {
	return NewConditionNode(id, config)
}

func (f *ConditionNodeFactory) ID() string {
	return models.NodeTypeCondition
}

func (f *ConditionNodeFactory) Name() string {
	return "Condition"
}

func (f *ConditionNodeFactory) Description() string {
	return "Evaluates an expression and routes execution to the true or false branch."
}

func (f *ConditionNodeFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"condition": map[string]any{
				"type":        "string",
				"description": "Expression to evaluate after placeholder resolution.",
				"examples": []string{
					`{{trigger.outcome}} == "interested"`,
					`{{trigger.duration_seconds}} > 30`,
					`{{aiAnalysis.sentiment}} != "negative"`,
				},
			},
		},
		"required": []string{"condition"},
	}
}

func NewConditionNodeFactory() protocol.NodeFactory {
	return &ConditionNodeFactory{}
}
