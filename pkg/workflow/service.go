package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/voxflow/voxflow/pkg/models"
	"github.com/voxflow/voxflow/pkg/persistence"
	"github.com/voxflow/voxflow/pkg/registry"
)

// Service owns workflow definitions: drafts are saved freely, publishing
// validates the whole graph against the registered node types first.
type Service struct {
	workflows  persistence.WorkflowRepository
	executions persistence.ExecutionRepository
	registry   *registry.Registry
	validator  *validator.Validate
	logger     *slog.Logger
}

func NewService(
	workflows persistence.WorkflowRepository,
	executions persistence.ExecutionRepository,
	reg *registry.Registry,
	logger *slog.Logger,
) *Service {
	return &Service{
		workflows:  workflows,
		executions: executions,
		registry:   reg,
		validator:  validator.New(),
		logger:     logger.With("module", "workflow_service"),
	}
}

// Save stores a workflow as a draft, assigning an id when missing.
func (s *Service) Save(ctx context.Context, wf *models.Workflow) (*models.Workflow, error) {
	if wf.ID == "" {
		wf.ID = "wf-" + uuid.New().String()[:8]
		wf.CreatedAt = time.Now().UTC()
	}

	if wf.Status == "" {
		wf.Status = models.WorkflowStatusDraft
	}

	wf.UpdatedAt = time.Now().UTC()

	if err := s.validator.Struct(wf); err != nil {
		return nil, fmt.Errorf("invalid workflow: %w", err)
	}

	if err := s.workflows.Save(ctx, wf); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "Workflow saved", "workflow_id", wf.ID, "status", wf.Status)

	return wf, nil
}

// Publish validates every node against the registry and marks the workflow
// executable. Unknown node types and invalid configurations fail here, not
// during a run.
func (s *Service) Publish(ctx context.Context, id string) (*models.Workflow, error) {
	wf, err := s.workflows.ByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.registry.ValidateWorkflow(wf); err != nil {
		return nil, err
	}

	if !hasTrigger(wf) {
		return nil, fmt.Errorf("workflow '%s' has no enabled trigger node", wf.ID)
	}

	wf.Status = models.WorkflowStatusPublished
	wf.UpdatedAt = time.Now().UTC()

	if err := s.workflows.Save(ctx, wf); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "Workflow published", "workflow_id", wf.ID)

	return wf, nil
}

func (s *Service) ByID(ctx context.Context, id string) (*models.Workflow, error) {
	return s.workflows.ByID(ctx, id)
}

func (s *Service) Delete(ctx context.Context, id string) error {
	return s.workflows.Delete(ctx, id)
}

// Executions lists the runs of one workflow.
func (s *Service) Executions(ctx context.Context, workflowID string) ([]*models.WorkflowExecution, error) {
	return s.executions.ByWorkflow(ctx, workflowID)
}

func hasTrigger(wf *models.Workflow) bool {
	for _, node := range wf.Nodes {
		if node.IsTrigger() && node.Enabled {
			return true
		}
	}

	return false
}
