package aiagent

import (
	"context"

	"github.com/voxflow/voxflow/pkg/models"
	"github.com/voxflow/voxflow/pkg/protocol"
)

// AIAgentNodeFactory creates AIAgentNode instances bound to one analyzer.
type AIAgentNodeFactory struct {
	analyzer Analyzer
}

func (f *AIAgentNodeFactory) Create(ctx context.Context, id string, config map[string]any) (protocol.Node, error) {
	return NewAIAgentNode(id, config, f.analyzer)
}

func (f *AIAgentNodeFactory) ID() string {
	return models.NodeTypeAIAgent
}

func (f *AIAgentNodeFactory) Name() string {
	return "AI Agent"
}

func (f *AIAgentNodeFactory) Description() string {
	return "Runs a prompt against the configured language model and exposes the structured analysis to later nodes."
}

func (f *AIAgentNodeFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"prompt": map[string]any{
				"type":        "string",
				"description": "Instruction given to the model.",
			},
			"input": map[string]any{
				"type":        "string",
				"description": "Text to analyze. Defaults to the triggering call's transcript.",
			},
		},
		"required": []string{"prompt"},
	}
}

func NewAIAgentNodeFactory(analyzer Analyzer) protocol.NodeFactory {
	return &AIAgentNodeFactory{analyzer: analyzer}
}
