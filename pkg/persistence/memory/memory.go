// Package memory provides an in-memory persistence implementation for tests
// and local development. All repositories share one mutex, which makes the
// conditional status update genuinely atomic.
package memory

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/voxflow/voxflow/pkg/models"
	"github.com/voxflow/voxflow/pkg/persistence"
)

type Persistence struct {
	mu         sync.Mutex
	calls      map[string]*models.CallRecord
	byProvider map[string]string // provider call id -> record id
	callbacks  map[string]*models.ScheduledCallback
	workflows  map[string]*models.Workflow
	executions map[string]*models.WorkflowExecution
}

func NewPersistence() *Persistence {
	return &Persistence{
		calls:      make(map[string]*models.CallRecord),
		byProvider: make(map[string]string),
		callbacks:  make(map[string]*models.ScheduledCallback),
		workflows:  make(map[string]*models.Workflow),
		executions: make(map[string]*models.WorkflowExecution),
	}
}

func (p *Persistence) Calls() persistence.CallRepository           { return &callRepository{p} }
func (p *Persistence) Callbacks() persistence.CallbackRepository   { return &callbackRepository{p} }
func (p *Persistence) Workflows() persistence.WorkflowRepository   { return &workflowRepository{p} }
func (p *Persistence) Executions() persistence.ExecutionRepository { return &executionRepository{p} }

func (p *Persistence) HealthCheck(_ context.Context) error { return nil }
func (p *Persistence) Close(_ context.Context) error       { return nil }

// clone round-trips through JSON so callers never share memory with the
// stored copy.
func clone[T any](in *T) *T {
	raw, err := json.Marshal(in)
	if err != nil {
		panic(err)
	}

	out := new(T)
	if err := json.Unmarshal(raw, out); err != nil {
		panic(err)
	}

	return out
}

type callRepository struct {
	p *Persistence
}

func (r *callRepository) Create(_ context.Context, record *models.CallRecord) error {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	if _, exists := r.p.calls[record.ID]; exists {
		return persistence.NewCallError("Create", record.ID, persistence.ErrCallAlreadyExists)
	}

	r.p.calls[record.ID] = clone(record)
	if record.ProviderCallID != "" {
		r.p.byProvider[record.ProviderCallID] = record.ID
	}

	return nil
}

func (r *callRepository) ByID(_ context.Context, id string) (*models.CallRecord, error) {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	record, ok := r.p.calls[id]
	if !ok {
		return nil, persistence.NewCallError("ByID", id, persistence.ErrCallNotFound)
	}

	return clone(record), nil
}

func (r *callRepository) ByProviderCallID(_ context.Context, providerCallID string) (*models.CallRecord, error) {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	id, ok := r.p.byProvider[providerCallID]
	if !ok {
		return nil, persistence.NewCallError("ByProviderCallID", providerCallID, persistence.ErrCallNotFound)
	}

	return clone(r.p.calls[id]), nil
}

func (r *callRepository) AppendEvent(_ context.Context, id string, event models.WebhookEvent) error {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	record, ok := r.p.calls[id]
	if !ok {
		return persistence.NewCallError("AppendEvent", id, persistence.ErrCallNotFound)
	}

	record.Events = append(record.Events, event)
	record.UpdatedAt = time.Now().UTC()

	return nil
}

func (r *callRepository) Mutate(_ context.Context, id string, fn func(*models.CallRecord)) (*models.CallRecord, error) {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	stored, ok := r.p.calls[id]
	if !ok {
		return nil, persistence.NewCallError("Mutate", id, persistence.ErrCallNotFound)
	}

	updated := clone(stored)
	fn(updated)

	// Status moves go through UpdateStatus and the audit log through
	// AppendEvent; both are restored from the stored copy.
	updated.Status = stored.Status
	updated.Events = stored.Events
	updated.UpdatedAt = time.Now().UTC()
	r.p.calls[id] = updated

	if updated.ProviderCallID != "" {
		r.p.byProvider[updated.ProviderCallID] = id
	}

	return clone(updated), nil
}

func (r *callRepository) UpdateStatus(
	_ context.Context,
	id string,
	from []models.CallStatus,
	to models.CallStatus,
	mutate func(*models.CallRecord),
) (*models.CallRecord, error) {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	stored, ok := r.p.calls[id]
	if !ok {
		return nil, persistence.NewCallError("UpdateStatus", id, persistence.ErrCallNotFound)
	}

	allowed := false

	for _, s := range from {
		if stored.Status == s {
			allowed = true

			break
		}
	}

	if !allowed {
		return nil, persistence.NewCallError("UpdateStatus", id, persistence.ErrStatusConflict)
	}

	updated := clone(stored)
	updated.Status = to

	if mutate != nil {
		mutate(updated)
	}

	updated.UpdatedAt = time.Now().UTC()
	r.p.calls[id] = updated

	if updated.ProviderCallID != "" {
		r.p.byProvider[updated.ProviderCallID] = id
	}

	return clone(updated), nil
}

type callbackRepository struct {
	p *Persistence
}

func (r *callbackRepository) Save(_ context.Context, callback *models.ScheduledCallback) error {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	r.p.callbacks[callback.ID] = clone(callback)

	return nil
}

func (r *callbackRepository) ByID(_ context.Context, id string) (*models.ScheduledCallback, error) {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	callback, ok := r.p.callbacks[id]
	if !ok {
		return nil, &persistence.CallbackError{Op: "ByID", CallbackID: id, Err: persistence.ErrCallbackNotFound}
	}

	return clone(callback), nil
}

func (r *callbackRepository) Due(_ context.Context, now time.Time) ([]*models.ScheduledCallback, error) {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	due := make([]*models.ScheduledCallback, 0)

	for _, callback := range r.p.callbacks {
		if callback.IsDue(now) {
			due = append(due, clone(callback))
		}
	}

	sort.Slice(due, func(i, j int) bool { return due[i].DueAt.Before(due[j].DueAt) })

	return due, nil
}

func (r *callbackRepository) Delete(_ context.Context, id string) error {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	if _, ok := r.p.callbacks[id]; !ok {
		return &persistence.CallbackError{Op: "Delete", CallbackID: id, Err: persistence.ErrCallbackNotFound}
	}

	delete(r.p.callbacks, id)

	return nil
}

type workflowRepository struct {
	p *Persistence
}

func (r *workflowRepository) Save(_ context.Context, workflow *models.Workflow) error {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	r.p.workflows[workflow.ID] = clone(workflow)

	return nil
}

func (r *workflowRepository) ByID(_ context.Context, id string) (*models.Workflow, error) {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	workflow, ok := r.p.workflows[id]
	if !ok {
		return nil, persistence.ErrWorkflowNotFound
	}

	return clone(workflow), nil
}

func (r *workflowRepository) Published(_ context.Context) ([]*models.Workflow, error) {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	published := make([]*models.Workflow, 0)

	for _, workflow := range r.p.workflows {
		if workflow.Status == models.WorkflowStatusPublished {
			published = append(published, clone(workflow))
		}
	}

	sort.Slice(published, func(i, j int) bool { return published[i].ID < published[j].ID })

	return published, nil
}

func (r *workflowRepository) Delete(_ context.Context, id string) error {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	if _, ok := r.p.workflows[id]; !ok {
		return persistence.ErrWorkflowNotFound
	}

	delete(r.p.workflows, id)

	return nil
}

type executionRepository struct {
	p *Persistence
}

func (r *executionRepository) Save(_ context.Context, execution *models.WorkflowExecution) error {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	r.p.executions[execution.ID] = clone(execution)

	return nil
}

func (r *executionRepository) ByID(_ context.Context, id string) (*models.WorkflowExecution, error) {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	execution, ok := r.p.executions[id]
	if !ok {
		return nil, persistence.ErrExecutionNotFound
	}

	return clone(execution), nil
}

func (r *executionRepository) ByWorkflow(_ context.Context, workflowID string) ([]*models.WorkflowExecution, error) {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	executions := make([]*models.WorkflowExecution, 0)

	for _, execution := range r.p.executions {
		if execution.WorkflowID == workflowID {
			executions = append(executions, clone(execution))
		}
	}

	sort.Slice(executions, func(i, j int) bool {
		return executions[i].StartedAt.Before(executions[j].StartedAt)
	})

	return executions, nil
}
