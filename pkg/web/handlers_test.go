package web_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxflow/voxflow/pkg/calls"
	"github.com/voxflow/voxflow/pkg/models"
	"github.com/voxflow/voxflow/pkg/persistence/memory"
	memoryqueue "github.com/voxflow/voxflow/pkg/queue/memory"
	"github.com/voxflow/voxflow/pkg/registry"
	"github.com/voxflow/voxflow/pkg/watchdog"
	"github.com/voxflow/voxflow/pkg/web"
	"github.com/voxflow/voxflow/pkg/workflow"
)

type webFixture struct {
	app   *fiber.App
	store *memory.Persistence
	jobs  *memoryqueue.Queue
}

func newWebFixture(t *testing.T) *webFixture {
	t.Helper()

	logger := slog.Default()
	store := memory.NewPersistence()
	jobs := memoryqueue.NewQueue(16)
	t.Cleanup(func() { _ = jobs.Close() })

	reg := registry.NewRegistry(logger)
	reg.RegisterDefaultNodes(registry.Collaborators{})

	wd := watchdog.New(store.Calls(), time.Minute, logger, nil)
	t.Cleanup(wd.Stop)

	effects := calls.NewTerminalEffects(nil, nil, logger)
	reducer := calls.NewReducer(store.Calls(), store.Callbacks(), wd, effects, nil, logger)
	callService := calls.NewService(jobs, store.Calls(), nil, logger)
	workflowService := workflow.NewService(store.Workflows(), store.Executions(), reg, logger)

	app := fiber.New()
	web.NewAPIHandlers(callService, reducer, workflowService, store).Register(app)

	return &webFixture{app: app, store: store, jobs: jobs}
}

func (f *webFixture) request(t *testing.T, method, target string, payload any) *http.Response {
	t.Helper()

	var body io.Reader

	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)

		body = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, target, body)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := f.app.Test(req)
	require.NoError(t, err)

	return resp
}

func decode(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()

	defer resp.Body.Close()

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))

	return out
}

func TestEnqueueCall(t *testing.T) {
	f := newWebFixture(t)

	resp := f.request(t, http.MethodPost, "/v1/calls", map[string]any{
		"assistant_id":    "asst-1",
		"to_number":       "+15550001111",
		"organization_id": "org-1",
	})

	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	body := decode(t, resp)
	assert.NotEmpty(t, body["job_id"])
	assert.Equal(t, "pending", body["status"])

	job, err := f.jobs.Dequeue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, body["job_id"], job.ID)
}

func TestEnqueueCall_InvalidNumber(t *testing.T) {
	f := newWebFixture(t)

	resp := f.request(t, http.MethodPost, "/v1/calls", map[string]any{
		"assistant_id":    "asst-1",
		"to_number":       "not-a-number",
		"organization_id": "org-1",
	})

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetCall_NotFound(t *testing.T) {
	f := newWebFixture(t)

	resp := f.request(t, http.MethodGet, "/v1/calls/call-missing", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestVoiceWebhook_UnknownCallAsksForRedelivery(t *testing.T) {
	f := newWebFixture(t)

	// The webhook raced the worker: the record does not exist yet, so the
	// provider is asked to redeliver rather than being rejected.
	resp := f.request(t, http.MethodPost, "/v1/webhooks/voice", map[string]any{
		"type":    models.WebhookEventConnected,
		"call_id": "prov-ghost",
	})

	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestVoiceWebhook_UnknownTypeRejected(t *testing.T) {
	f := newWebFixture(t)
	seedInitiatedCall(t, f, "call-1", "prov-1")

	resp := f.request(t, http.MethodPost, "/v1/webhooks/voice", map[string]any{
		"type":    "RINGING",
		"call_id": "prov-1",
	})

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestVoiceWebhook_Received(t *testing.T) {
	f := newWebFixture(t)
	seedInitiatedCall(t, f, "call-1", "prov-1")

	resp := f.request(t, http.MethodPost, "/v1/webhooks/voice", map[string]any{
		"type":    models.WebhookEventConnected,
		"call_id": "prov-1",
		"payload": map[string]any{"call_start_time": time.Now().UTC().Format(time.RFC3339)},
	})

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, decode(t, resp)["received"])

	record, err := f.store.Calls().ByID(context.Background(), "call-1")
	require.NoError(t, err)
	assert.Equal(t, models.CallStatusInProgress, record.Status)
}

func TestVoiceWebhook_MissingCallID(t *testing.T) {
	f := newWebFixture(t)

	resp := f.request(t, http.MethodPost, "/v1/webhooks/voice", map[string]any{
		"type": models.WebhookEventConnected,
	})

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestWorkflowLifecycle(t *testing.T) {
	f := newWebFixture(t)

	resp := f.request(t, http.MethodPost, "/v1/workflows", map[string]any{
		"name": "notify on interest",
		"nodes": []map[string]any{
			{"id": "n1", "type": "trigger", "name": "start", "enabled": true, "event_type": "call.completed"},
			{"id": "n2", "type": "condition", "name": "check", "enabled": true, "config": map[string]any{"condition": "true"}},
		},
		"edges": []map[string]any{
			{"id": "e1", "source": "n1", "target": "n2"},
		},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	created := decode(t, resp)
	workflowID, _ := created["id"].(string)
	require.NotEmpty(t, workflowID)
	assert.Equal(t, "draft", created["status"])

	resp = f.request(t, http.MethodPost, "/v1/workflows/"+workflowID+"/publish", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "published", decode(t, resp)["status"])

	resp = f.request(t, http.MethodGet, "/v1/workflows/"+workflowID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = f.request(t, http.MethodGet, "/v1/workflows/"+workflowID+"/executions", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, decode(t, resp)["executions"])

	resp = f.request(t, http.MethodDelete, "/v1/workflows/"+workflowID, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = f.request(t, http.MethodGet, "/v1/workflows/"+workflowID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestPublishWorkflow_UnknownNodeType(t *testing.T) {
	f := newWebFixture(t)

	resp := f.request(t, http.MethodPost, "/v1/workflows", map[string]any{
		"name": "uses missing tool",
		"nodes": []map[string]any{
			{"id": "n1", "type": "trigger", "name": "start", "enabled": true, "event_type": "call.completed"},
			{"id": "n2", "type": "crm_tool", "name": "sync", "enabled": true},
		},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	workflowID, _ := decode(t, resp)["id"].(string)

	// No CRM client is configured, so the node type is unregistered and
	// publish rejects the graph.
	resp = f.request(t, http.MethodPost, "/v1/workflows/"+workflowID+"/publish", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHealthCheck(t *testing.T) {
	f := newWebFixture(t)

	resp := f.request(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "healthy", decode(t, resp)["status"])
}

func seedInitiatedCall(t *testing.T, f *webFixture, id, providerCallID string) {
	t.Helper()

	ctx := context.Background()

	require.NoError(t, f.store.Calls().Create(ctx, &models.CallRecord{
		ID:        id,
		ToNumber:  "+15550001111",
		Status:    models.CallStatusPending,
		CreatedAt: time.Now().UTC(),
	}))

	_, err := f.store.Calls().UpdateStatus(ctx, id,
		[]models.CallStatus{models.CallStatusPending},
		models.CallStatusInitiated,
		func(r *models.CallRecord) { r.ProviderCallID = providerCallID },
	)
	require.NoError(t, err)
}
