// Package aiagent provides the node that runs an LLM analysis step inside a
// workflow.
package aiagent

import (
	"context"
	"errors"
	"fmt"

	"github.com/voxflow/voxflow/pkg/models"
)

// Analyzer is the LLM collaborator boundary. Implementations call whatever
// model backs the organization's assistant.
type Analyzer interface {
	Analyze(ctx context.Context, prompt, input string) (map[string]any, error)
}

// AIAgentNode runs a prompt against an analyzer and exposes the structured
// result. The executor also mirrors the output into the run's aiAnalysis
// placeholder source.
type AIAgentNode struct {
	id       string
	prompt   string
	input    string
	analyzer Analyzer
}

func NewAIAgentNode(id string, config map[string]any, analyzer Analyzer) (*AIAgentNode, error) {
	if analyzer == nil {
		return nil, errors.New("aiagent: no analyzer configured")
	}

	prompt, ok := config["prompt"].(string)
	if !ok || prompt == "" {
		return nil, errors.New("missing required field 'prompt'")
	}

	node := &AIAgentNode{
		id:       id,
		prompt:   prompt,
		analyzer: analyzer,
	}

	if input, ok := config["input"].(string); ok {
		node.input = input
	}

	return node, nil
}

func (n *AIAgentNode) ID() string {
	return n.id
}

func (n *AIAgentNode) Type() string {
	return models.NodeTypeAIAgent
}

func (n *AIAgentNode) Execute(ctx context.Context, execCtx *models.ExecutionContext) (*models.NodeResult, error) {
	input := n.input
	if input == "" {
		// Default to the call transcript carried by the trigger.
		if transcript, ok := execCtx.Trigger["transcript"].(string); ok {
			input = transcript
		}
	}

	analysis, err := n.analyzer.Analyze(ctx, n.prompt, input)
	if err != nil {
		return nil, fmt.Errorf("analysis failed: %w", err)
	}

	return &models.NodeResult{
		ExitHandle: models.ExitHandleSuccess,
		Data:       analysis,
	}, nil
}
