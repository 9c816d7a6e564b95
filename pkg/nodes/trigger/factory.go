package trigger

import (
	"context"

	"github.com/voxflow/voxflow/pkg/models"
	"github.com/voxflow/voxflow/pkg/protocol"
)

// TriggerNodeFactory creates TriggerNode instances.
type TriggerNodeFactory struct{}

func (f *TriggerNodeFactory) Create(ctx context.Context, id string, config map[string]any) (protocol.Node, error) {
	return NewTriggerNode(id, config)
}

func (f *TriggerNodeFactory) ID() string {
	return models.NodeTypeTrigger
}

func (f *TriggerNodeFactory) Name() string {
	return "Call Event Trigger"
}

func (f *TriggerNodeFactory) Description() string {
	return "Starts the workflow when a matching call lifecycle event fires."
}

func (f *TriggerNodeFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"event_type": map[string]any{
				"type":        "string",
				"description": "Call event this trigger fires on.",
				"examples":    []string{"call.completed", "call.failed"},
			},
		},
	}
}

func NewTriggerNodeFactory() protocol.NodeFactory {
	return &TriggerNodeFactory{}
}
