package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxflow/voxflow/pkg/models"
	"github.com/voxflow/voxflow/pkg/persistence"
	"github.com/voxflow/voxflow/pkg/persistence/memory"
)

func newRecord(id string) *models.CallRecord {
	return &models.CallRecord{
		ID:             id,
		OrganizationID: "org-1",
		AssistantID:    "asst-1",
		ToNumber:       "+15550001111",
		Status:         models.CallStatusPending,
		CreatedAt:      time.Now().UTC(),
	}
}

func TestCalls_CreateIsIdempotentGuard(t *testing.T) {
	repo := memory.NewPersistence().Calls()
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newRecord("call-1")))

	err := repo.Create(ctx, newRecord("call-1"))
	require.Error(t, err)
	assert.ErrorIs(t, err, persistence.ErrCallAlreadyExists)
}

func TestCalls_ByIDReturnsCopy(t *testing.T) {
	repo := memory.NewPersistence().Calls()
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newRecord("call-1")))

	first, err := repo.ByID(ctx, "call-1")
	require.NoError(t, err)

	first.ToNumber = "mutated"

	second, err := repo.ByID(ctx, "call-1")
	require.NoError(t, err)
	assert.Equal(t, "+15550001111", second.ToNumber)
}

func TestCalls_UpdateStatusCAS(t *testing.T) {
	repo := memory.NewPersistence().Calls()
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newRecord("call-1")))

	updated, err := repo.UpdateStatus(ctx, "call-1",
		[]models.CallStatus{models.CallStatusPending},
		models.CallStatusInitiated,
		func(r *models.CallRecord) { r.ProviderCallID = "prov-1" },
	)
	require.NoError(t, err)
	assert.Equal(t, models.CallStatusInitiated, updated.Status)
	assert.Equal(t, "prov-1", updated.ProviderCallID)

	// A second transition from the consumed state conflicts.
	_, err = repo.UpdateStatus(ctx, "call-1",
		[]models.CallStatus{models.CallStatusPending},
		models.CallStatusInitiated,
		nil,
	)
	require.Error(t, err)
	assert.True(t, persistence.IsStatusConflict(err))

	// Conflicts leave the record untouched.
	stored, err := repo.ByID(ctx, "call-1")
	require.NoError(t, err)
	assert.Equal(t, models.CallStatusInitiated, stored.Status)
}

func TestCalls_ByProviderCallID(t *testing.T) {
	repo := memory.NewPersistence().Calls()
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newRecord("call-1")))

	_, err := repo.ByProviderCallID(ctx, "prov-1")
	assert.True(t, persistence.IsCallNotFound(err))

	_, err = repo.UpdateStatus(ctx, "call-1",
		[]models.CallStatus{models.CallStatusPending},
		models.CallStatusInitiated,
		func(r *models.CallRecord) { r.ProviderCallID = "prov-1" },
	)
	require.NoError(t, err)

	record, err := repo.ByProviderCallID(ctx, "prov-1")
	require.NoError(t, err)
	assert.Equal(t, "call-1", record.ID)
}

func TestCalls_AppendEventPreservesOrder(t *testing.T) {
	repo := memory.NewPersistence().Calls()
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newRecord("call-1")))

	for _, eventType := range []models.WebhookEventType{
		models.WebhookEventConnected,
		models.WebhookEventEnded,
		models.WebhookEventSummary,
	} {
		require.NoError(t, repo.AppendEvent(ctx, "call-1", models.WebhookEvent{Type: eventType, CallID: "prov-1"}))
	}

	record, err := repo.ByID(ctx, "call-1")
	require.NoError(t, err)
	require.Len(t, record.Events, 3)
	assert.Equal(t, models.WebhookEventConnected, record.Events[0].Type)
	assert.Equal(t, models.WebhookEventEnded, record.Events[1].Type)
	assert.Equal(t, models.WebhookEventSummary, record.Events[2].Type)
}

func TestCalls_MutateLeavesStatusAndAuditAlone(t *testing.T) {
	repo := memory.NewPersistence().Calls()
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newRecord("call-1")))
	require.NoError(t, repo.AppendEvent(ctx, "call-1", models.WebhookEvent{
		Type:   models.WebhookEventConnected,
		CallID: "prov-1",
	}))

	updated, err := repo.Mutate(ctx, "call-1", func(r *models.CallRecord) {
		r.Transcript = "hello"
		// A misbehaving mutation cannot reach the guarded fields.
		r.Status = models.CallStatusCompleted
		r.Events = nil
	})
	require.NoError(t, err)
	assert.Equal(t, "hello", updated.Transcript)

	stored, err := repo.ByID(ctx, "call-1")
	require.NoError(t, err)
	assert.Equal(t, "hello", stored.Transcript)
	assert.Equal(t, models.CallStatusPending, stored.Status)
	require.Len(t, stored.Events, 1)
	assert.Equal(t, models.WebhookEventConnected, stored.Events[0].Type)
}

func TestCalls_MutateUnknownCall(t *testing.T) {
	repo := memory.NewPersistence().Calls()

	_, err := repo.Mutate(context.Background(), "call-missing", func(r *models.CallRecord) {})
	assert.True(t, persistence.IsCallNotFound(err))
}

func TestCallbacks_DueWindowAndOrdering(t *testing.T) {
	repo := memory.NewPersistence().Callbacks()
	ctx := context.Background()
	now := time.Now().UTC()

	save := func(id string, dueAt time.Time) {
		require.NoError(t, repo.Save(ctx, &models.ScheduledCallback{
			ID:             id,
			OrganizationID: "org-1",
			AssistantID:    "asst-1",
			ToNumber:       "+15550001111",
			DueAt:          dueAt,
		}))
	}

	save("cb-later", now.Add(-time.Minute))
	save("cb-earlier", now.Add(-time.Hour))
	save("cb-future", now.Add(time.Hour))

	due, err := repo.Due(ctx, now)
	require.NoError(t, err)
	require.Len(t, due, 2)
	assert.Equal(t, "cb-earlier", due[0].ID)
	assert.Equal(t, "cb-later", due[1].ID)

	require.NoError(t, repo.Delete(ctx, "cb-earlier"))

	err = repo.Delete(ctx, "cb-earlier")
	assert.True(t, persistence.IsCallbackNotFound(err))
}

func TestWorkflows_PublishedFilter(t *testing.T) {
	repo := memory.NewPersistence().Workflows()
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, &models.Workflow{ID: "wf-1", Name: "draft one", Status: models.WorkflowStatusDraft}))
	require.NoError(t, repo.Save(ctx, &models.Workflow{ID: "wf-2", Name: "live one", Status: models.WorkflowStatusPublished}))

	published, err := repo.Published(ctx)
	require.NoError(t, err)
	require.Len(t, published, 1)
	assert.Equal(t, "wf-2", published[0].ID)

	_, err = repo.ByID(ctx, "wf-missing")
	assert.True(t, persistence.IsWorkflowNotFound(err))
}

func TestExecutions_ByWorkflow(t *testing.T) {
	repo := memory.NewPersistence().Executions()
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, repo.Save(ctx, &models.WorkflowExecution{ID: "exec-2", WorkflowID: "wf-1", StartedAt: now}))
	require.NoError(t, repo.Save(ctx, &models.WorkflowExecution{ID: "exec-1", WorkflowID: "wf-1", StartedAt: now.Add(-time.Minute)}))
	require.NoError(t, repo.Save(ctx, &models.WorkflowExecution{ID: "exec-3", WorkflowID: "wf-other", StartedAt: now}))

	executions, err := repo.ByWorkflow(ctx, "wf-1")
	require.NoError(t, err)
	require.Len(t, executions, 2)
	assert.Equal(t, "exec-1", executions[0].ID)
	assert.Equal(t, "exec-2", executions[1].ID)
}
