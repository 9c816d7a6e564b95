package workflow_test

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxflow/voxflow/pkg/models"
	"github.com/voxflow/voxflow/pkg/nodes/email"
	"github.com/voxflow/voxflow/pkg/persistence/memory"
	"github.com/voxflow/voxflow/pkg/registry"
	"github.com/voxflow/voxflow/pkg/workflow"
)

type sentMail struct {
	from    string
	to      []string
	message []byte
}

type fakeMailer struct {
	sent []sentMail
}

func (m *fakeMailer) Send(_ context.Context, from string, to []string, message []byte) error {
	m.sent = append(m.sent, sentMail{from: from, to: to, message: message})

	return nil
}

type executorFixture struct {
	store    *memory.Persistence
	executor *workflow.Executor
	mailer   *fakeMailer
}

func newExecutorFixture(t *testing.T) *executorFixture {
	t.Helper()

	logger := slog.Default()
	store := memory.NewPersistence()
	mailer := &fakeMailer{}

	reg := registry.NewRegistry(logger)
	reg.RegisterDefaultNodes(registry.Collaborators{})
	reg.RegisterNode(email.NewEmailNodeFactoryWithMailer("noreply@voxflow.dev", mailer))

	return &executorFixture{
		store:    store,
		executor: workflow.NewExecutor(store.Executions(), reg, logger, nil),
		mailer:   mailer,
	}
}

// branchingWorkflow routes completed calls with an "interested" outcome to an
// email node; everything else falls to the false branch, which is a sink.
func branchingWorkflow() *models.Workflow {
	return &models.Workflow{
		ID:     "wf-1",
		Name:   "notify on interest",
		Status: models.WorkflowStatusPublished,
		Nodes: []*models.WorkflowNode{
			{
				ID:        "node-trigger",
				Type:      models.NodeTypeTrigger,
				Name:      "call completed",
				Enabled:   true,
				EventType: "call.completed",
			},
			{
				ID:      "node-check",
				Type:    models.NodeTypeCondition,
				Name:    "interested?",
				Enabled: true,
				Config:  map[string]any{"condition": "{{trigger.outcome}} == 'interested'"},
			},
			{
				ID:      "node-email",
				Type:    models.NodeTypeEmailTool,
				Name:    "notify sales",
				Enabled: true,
				Config: map[string]any{
					"to":      "sales@example.com",
					"subject": "Lead {{trigger.to_number}} is interested",
					"body":    "Call {{trigger.call_id}} finished with outcome {{trigger.outcome}}.",
				},
			},
		},
		Edges: []*models.Edge{
			{ID: "e1", Source: "node-trigger", Target: "node-check"},
			{ID: "e2", Source: "node-check", Target: "node-email", SourceHandle: models.ExitHandleTrue},
		},
	}
}

func triggerData(outcome string) map[string]any {
	return map[string]any{
		"call_id":   "call-1",
		"to_number": "+15550001111",
		"outcome":   outcome,
	}
}

func TestExecute_TrueBranchSendsEmail(t *testing.T) {
	f := newExecutorFixture(t)
	wf := branchingWorkflow()
	trigger, ok := wf.TriggerNode("call.completed")
	require.True(t, ok)

	execution, err := f.executor.Execute(context.Background(), wf, trigger, "call.completed", triggerData("interested"))
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusCompleted, execution.Status)
	assert.Equal(t, []string{"node-trigger", "node-check", "node-email"}, execution.VisitedNodes)
	assert.NotNil(t, execution.FinishedAt)

	require.Len(t, f.mailer.sent, 1)
	assert.Equal(t, []string{"sales@example.com"}, f.mailer.sent[0].to)
	assert.Contains(t, string(f.mailer.sent[0].message), "Lead +15550001111 is interested")
	assert.Contains(t, string(f.mailer.sent[0].message), "Call call-1 finished with outcome interested.")
}

func TestExecute_FalseBranchIsSink(t *testing.T) {
	f := newExecutorFixture(t)
	wf := branchingWorkflow()
	trigger, _ := wf.TriggerNode("call.completed")

	execution, err := f.executor.Execute(context.Background(), wf, trigger, "call.completed", triggerData("not_interested"))
	require.NoError(t, err)

	// No edge matches the false handle, so the run completes at the condition.
	assert.Equal(t, models.ExecutionStatusCompleted, execution.Status)
	assert.Equal(t, []string{"node-trigger", "node-check"}, execution.VisitedNodes)
	assert.Empty(t, f.mailer.sent)

	assert.Equal(t, false, execution.NodeOutputs["node-check"]["condition_result"])
}

func TestExecute_DisabledNodePassesThrough(t *testing.T) {
	f := newExecutorFixture(t)
	wf := branchingWorkflow()

	check, _ := wf.NodeByID("node-check")
	check.Enabled = false

	// The disabled condition exits on the default handle, which has no edge.
	trigger, _ := wf.TriggerNode("call.completed")
	execution, err := f.executor.Execute(context.Background(), wf, trigger, "call.completed", triggerData("interested"))
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusCompleted, execution.Status)
	assert.Empty(t, f.mailer.sent)
}

func TestExecute_UnknownNodeTypeFailsRun(t *testing.T) {
	f := newExecutorFixture(t)
	wf := branchingWorkflow()
	wf.Nodes[1].Type = "crm_tool" // not registered without a CRM client

	trigger, _ := wf.TriggerNode("call.completed")
	execution, err := f.executor.Execute(context.Background(), wf, trigger, "call.completed", triggerData("interested"))
	require.Error(t, err)

	assert.Equal(t, models.ExecutionStatusFailed, execution.Status)
	assert.Contains(t, execution.Error, "not registered")

	// Outputs gathered before the failure survive on the stored record.
	stored, lookupErr := f.store.Executions().ByID(context.Background(), execution.ID)
	require.NoError(t, lookupErr)
	assert.Contains(t, stored.NodeOutputs, "node-trigger")
}

func TestExecute_CyclicGraphAborts(t *testing.T) {
	f := newExecutorFixture(t)

	wf := &models.Workflow{
		ID:     "wf-loop",
		Name:   "loop forever",
		Status: models.WorkflowStatusPublished,
		Nodes: []*models.WorkflowNode{
			{ID: "node-a", Type: models.NodeTypeTrigger, Name: "start", Enabled: true, EventType: "call.completed"},
			{ID: "node-b", Type: models.NodeTypeCondition, Name: "always", Enabled: true, Config: map[string]any{"condition": "1 == 1"}},
		},
		Edges: []*models.Edge{
			{ID: "e1", Source: "node-a", Target: "node-b"},
			{ID: "e2", Source: "node-b", Target: "node-b", SourceHandle: models.ExitHandleTrue},
		},
	}

	trigger, _ := wf.TriggerNode("call.completed")
	execution, err := f.executor.Execute(context.Background(), wf, trigger, "call.completed", triggerData("interested"))
	require.Error(t, err)

	assert.Equal(t, models.ExecutionStatusFailed, execution.Status)
	assert.Contains(t, execution.Error, "exceeded")
}

func TestExecute_CancelledContext(t *testing.T) {
	f := newExecutorFixture(t)
	wf := branchingWorkflow()
	trigger, _ := wf.TriggerNode("call.completed")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	execution, err := f.executor.Execute(ctx, wf, trigger, "call.completed", triggerData("interested"))
	require.Error(t, err)
	assert.Equal(t, models.ExecutionStatusCancelled, execution.Status)
}
