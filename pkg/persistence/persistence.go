// Package persistence provides the data storage abstraction for call
// records, scheduled callbacks, workflows, and workflow executions.
package persistence

import (
	"context"
	"time"

	"github.com/voxflow/voxflow/pkg/models"
)

type Persistence interface {
	Calls() CallRepository
	Callbacks() CallbackRepository
	Workflows() WorkflowRepository
	Executions() ExecutionRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// CallRepository persists call lifecycle records. Status moves go through
// UpdateStatus so a redelivered job and a late webhook cannot both apply
// conflicting terminal transitions.
type CallRepository interface {
	Create(ctx context.Context, record *models.CallRecord) error
	ByID(ctx context.Context, id string) (*models.CallRecord, error)
	ByProviderCallID(ctx context.Context, providerCallID string) (*models.CallRecord, error)

	// AppendEvent appends to the record's audit log. Entries are immutable
	// once appended.
	AppendEvent(ctx context.Context, id string, event models.WebhookEvent) error

	// Mutate applies fn to the latest stored copy of the record under the
	// store's concurrency control and returns the result. The status and the
	// audit log are owned by UpdateStatus and AppendEvent; they survive any
	// Mutate untouched, so a late transcript or summary can never erase a
	// concurrently appended event or a terminal transition's fields.
	Mutate(ctx context.Context, id string, fn func(*models.CallRecord)) (*models.CallRecord, error)

	// UpdateStatus atomically moves the record from one of the given states
	// to the target state, applying mutate to the record inside the same
	// conditional update. It returns ErrStatusConflict when the current
	// status is not in from.
	UpdateStatus(
		ctx context.Context,
		id string,
		from []models.CallStatus,
		to models.CallStatus,
		mutate func(*models.CallRecord),
	) (*models.CallRecord, error)
}

// CallbackRepository persists future call requests. Delete happens only
// after the triggered job is confirmed submitted.
type CallbackRepository interface {
	Save(ctx context.Context, callback *models.ScheduledCallback) error
	ByID(ctx context.Context, id string) (*models.ScheduledCallback, error)
	Due(ctx context.Context, now time.Time) ([]*models.ScheduledCallback, error)
	Delete(ctx context.Context, id string) error
}

type WorkflowRepository interface {
	Save(ctx context.Context, workflow *models.Workflow) error
	ByID(ctx context.Context, id string) (*models.Workflow, error)
	Published(ctx context.Context) ([]*models.Workflow, error)
	Delete(ctx context.Context, id string) error
}

type ExecutionRepository interface {
	Save(ctx context.Context, execution *models.WorkflowExecution) error
	ByID(ctx context.Context, id string) (*models.WorkflowExecution, error)
	ByWorkflow(ctx context.Context, workflowID string) ([]*models.WorkflowExecution, error)
}
