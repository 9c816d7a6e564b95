// Package registry maps node type identifiers to their factories and
// validates node configuration against each factory's schema. An unknown
// node type fails here, at graph construction, never mid-run.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/voxflow/voxflow/pkg/models"
	"github.com/voxflow/voxflow/pkg/protocol"
)

type Registry struct {
	logger        *slog.Logger
	nodeFactories map[string]protocol.NodeFactory
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		logger:        logger,
		nodeFactories: make(map[string]protocol.NodeFactory),
	}
}

func (r *Registry) RegisterNode(nodeFactory protocol.NodeFactory) {
	r.nodeFactories[nodeFactory.ID()] = nodeFactory
}

// CreateNode validates the configuration against the factory schema and
// instantiates the node.
func (r *Registry) CreateNode(ctx context.Context, nodeType, id string, config map[string]any) (protocol.Node, error) {
	factory, ok := r.nodeFactories[nodeType]
	if !ok {
		return nil, fmt.Errorf("node type '%s' not registered", nodeType)
	}

	if err := r.validateSchema(config, factory.Schema()); err != nil {
		return nil, fmt.Errorf("invalid configuration for node '%s' (%s): %w", id, nodeType, err)
	}

	return factory.Create(ctx, id, config)
}

// ValidateWorkflow checks every node of a graph against the registered
// factories before any execution is attempted.
func (r *Registry) ValidateWorkflow(workflow *models.Workflow) error {
	for _, node := range workflow.Nodes {
		factory, ok := r.nodeFactories[node.Type]
		if !ok {
			return fmt.Errorf("workflow '%s': node '%s' has unregistered type '%s'", workflow.ID, node.ID, node.Type)
		}

		if err := r.validateSchema(node.Config, factory.Schema()); err != nil {
			return fmt.Errorf("workflow '%s': node '%s' configuration invalid: %w", workflow.ID, node.ID, err)
		}
	}

	return nil
}

// NodeTypes returns the registered type identifiers, sorted.
func (r *Registry) NodeTypes() []string {
	types := make([]string, 0, len(r.nodeFactories))
	for nodeType := range r.nodeFactories {
		types = append(types, nodeType)
	}

	sort.Strings(types)

	return types
}

func (r *Registry) validateSchema(config map[string]any, schema map[string]any) error {
	if schema == nil {
		return nil
	}

	if config == nil {
		config = map[string]any{}
	}

	schemaLoader := gojsonschema.NewGoLoader(schema)
	dataLoader := gojsonschema.NewGoLoader(config)

	result, err := gojsonschema.Validate(schemaLoader, dataLoader)
	if err != nil {
		return err
	}

	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			details = append(details, desc.String())
		}

		return fmt.Errorf("validation errors: %s", strings.Join(details, "; "))
	}

	return nil
}
