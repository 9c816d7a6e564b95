// Package workflow runs published automation graphs in response to call
// lifecycle events.
package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/voxflow/voxflow/pkg/models"
	"github.com/voxflow/voxflow/pkg/otelhelper"
	"github.com/voxflow/voxflow/pkg/persistence"
	"github.com/voxflow/voxflow/pkg/registry"
	"github.com/voxflow/voxflow/pkg/template"
)

// maxSteps bounds one run so a cyclic graph cannot spin forever.
const maxSteps = 256

type Executor struct {
	executions persistence.ExecutionRepository
	registry   *registry.Registry
	logger     *slog.Logger
	tracer     trace.Tracer
}

func NewExecutor(
	executions persistence.ExecutionRepository,
	reg *registry.Registry,
	logger *slog.Logger,
	tracer trace.Tracer,
) *Executor {
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("workflow")
	}

	return &Executor{
		executions: executions,
		registry:   reg,
		logger:     logger.With("module", "workflow_executor"),
		tracer:     tracer,
	}
}

// Execute runs one workflow from its trigger node. The execution record is
// persisted before the first node and after every status change; node
// outputs accumulated before a failure stay on the record for diagnosis.
func (e *Executor) Execute(
	ctx context.Context,
	workflow *models.Workflow,
	triggerNode *models.WorkflowNode,
	triggerType string,
	triggerData map[string]any,
) (*models.WorkflowExecution, error) {
	execution := &models.WorkflowExecution{
		ID:            "exec-" + uuid.New().String()[:8],
		WorkflowID:    workflow.ID,
		TriggerNodeID: triggerNode.ID,
		TriggerType:   triggerType,
		Status:        models.ExecutionStatusRunning,
		NodeOutputs:   make(map[string]map[string]any),
		StartedAt:     time.Now().UTC(),
	}

	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "workflow.execute",
		attribute.String(otelhelper.WorkflowIDKey, workflow.ID),
		attribute.String(otelhelper.ExecutionIDKey, execution.ID),
	)
	defer span.End()

	logger := e.logger.With("workflow_id", workflow.ID, "execution_id", execution.ID, "trigger_type", triggerType)
	logger.Info("Starting workflow execution")

	if err := e.executions.Save(ctx, execution); err != nil {
		otelhelper.SetError(span, err)

		return nil, fmt.Errorf("failed to persist execution: %w", err)
	}

	execCtx := &models.ExecutionContext{
		ExecutionID: execution.ID,
		WorkflowID:  workflow.ID,
		Trigger:     triggerData,
		NodeOutputs: execution.NodeOutputs,
	}

	err := e.run(ctx, workflow, triggerNode, execution, execCtx, logger)

	now := time.Now().UTC()
	execution.FinishedAt = &now

	switch {
	case err == nil:
		execution.Status = models.ExecutionStatusCompleted
	case ctx.Err() != nil:
		execution.Status = models.ExecutionStatusCancelled
		execution.Error = ctx.Err().Error()
	default:
		execution.Status = models.ExecutionStatusFailed
		execution.Error = err.Error()
		otelhelper.SetError(span, err)
	}

	if saveErr := e.executions.Save(ctx, execution); saveErr != nil {
		logger.Error("Failed to persist finished execution", "error", saveErr)
	}

	logger.Info("Workflow execution finished",
		"status", execution.Status,
		"visited_nodes", len(execution.VisitedNodes),
	)

	return execution, err
}

// run walks the graph sequentially from the trigger node, following the
// edge selected by each node's exit handle until no edge matches.
func (e *Executor) run(
	ctx context.Context,
	workflow *models.Workflow,
	start *models.WorkflowNode,
	execution *models.WorkflowExecution,
	execCtx *models.ExecutionContext,
	logger *slog.Logger,
) error {
	current := start

	for steps := 0; ; steps++ {
		if steps >= maxSteps {
			return fmt.Errorf("workflow exceeded %d steps, aborting", maxSteps)
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}

		exitHandle, err := e.executeNode(ctx, current, execution, execCtx, logger)
		if err != nil {
			return fmt.Errorf("node '%s' failed: %w", current.ID, err)
		}

		edge, ok := workflow.EdgeFrom(current.ID, exitHandle)
		if !ok {
			// Sink node: the run completed.
			return nil
		}

		next, ok := workflow.NodeByID(edge.Target)
		if !ok {
			return fmt.Errorf("edge '%s' targets unknown node '%s'", edge.ID, edge.Target)
		}

		current = next
	}
}

func (e *Executor) executeNode(
	ctx context.Context,
	node *models.WorkflowNode,
	execution *models.WorkflowExecution,
	execCtx *models.ExecutionContext,
	logger *slog.Logger,
) (string, error) {
	nodeLogger := logger.With("node_id", node.ID, "node_type", node.Type)

	if !node.Enabled && !node.IsTrigger() {
		nodeLogger.Info("Node disabled, passing through")

		return models.ExitHandleDefault, nil
	}

	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "workflow.node",
		attribute.String(otelhelper.NodeIDKey, node.ID),
		attribute.String(otelhelper.NodeTypeKey, node.Type),
	)
	defer span.End()

	// Placeholders resolve against the state accumulated so far; an
	// unresolved reference becomes the empty string, never an error.
	resolvedConfig := template.RenderConfig(node.Config, execCtx)

	instance, err := e.registry.CreateNode(ctx, node.Type, node.ID, resolvedConfig)
	if err != nil {
		otelhelper.SetError(span, err)

		return "", err
	}

	result, err := instance.Execute(ctx, execCtx)
	if err != nil {
		otelhelper.SetError(span, err)

		return "", err
	}

	execution.RecordOutput(node.ID, result.Data)
	execCtx.NodeOutputs[node.ID] = result.Data

	if node.Type == models.NodeTypeAIAgent {
		execCtx.AIAnalysis = result.Data
	}

	nodeLogger.Info("Node executed", "exit_handle", result.ExitHandle)

	return result.ExitHandle, nil
}
