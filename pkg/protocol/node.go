// Package protocol defines the contracts pluggable workflow nodes implement.
package protocol

import (
	"context"

	"github.com/voxflow/voxflow/pkg/models"
)

// Node is one executable step of a workflow graph. Execute returns the exit
// handle to follow and the data recorded under the node's id for downstream
// placeholders.
type Node interface {
	// ID returns the node's id within its workflow.
	ID() string

	// Type returns the node type identifier.
	Type() string

	// Execute performs the node's action against the execution context.
	Execute(ctx context.Context, execCtx *models.ExecutionContext) (*models.NodeResult, error)
}

// NodeFactory creates node instances and provides metadata about the node type.
type NodeFactory interface {
	// Create creates a new node instance with the given configuration
	Create(ctx context.Context, id string, config map[string]any) (Node, error)

	// ID returns the unique identifier for this node type
	ID() string

	// Name returns the human-readable name for this node type
	Name() string

	// Description returns a description of what this node does
	Description() string

	// Schema returns the JSON schema for configuring this node
	Schema() map[string]any
}
