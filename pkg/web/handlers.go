// Package web provides the HTTP surface: call submission, the voice webhook
// receiver, and workflow management endpoints.
package web

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/voxflow/voxflow/pkg/calls"
	"github.com/voxflow/voxflow/pkg/models"
	"github.com/voxflow/voxflow/pkg/persistence"
	"github.com/voxflow/voxflow/pkg/workflow"
)

type APIHandlers struct {
	callService     *calls.Service
	reducer         *calls.Reducer
	workflowService *workflow.Service
	store           persistence.Persistence
}

func NewAPIHandlers(
	callService *calls.Service,
	reducer *calls.Reducer,
	workflowService *workflow.Service,
	store persistence.Persistence,
) *APIHandlers {
	return &APIHandlers{
		callService:     callService,
		reducer:         reducer,
		workflowService: workflowService,
		store:           store,
	}
}

// Register wires all routes onto the app.
func (h *APIHandlers) Register(app *fiber.App) {
	app.Get("/health", h.HealthCheck)

	v1 := app.Group("/v1")
	v1.Post("/calls", h.EnqueueCall)
	v1.Get("/calls/:id", h.GetCall)
	v1.Post("/webhooks/voice", h.VoiceWebhook)

	v1.Post("/workflows", h.SaveWorkflow)
	v1.Get("/workflows/:id", h.GetWorkflow)
	v1.Delete("/workflows/:id", h.DeleteWorkflow)
	v1.Post("/workflows/:id/publish", h.PublishWorkflow)
	v1.Get("/workflows/:id/executions", h.GetExecutions)
}

// EnqueueCall accepts a call request. The 202 response is the definitive
// accept; completion is observed through GET /v1/calls/:id or webhooks.
func (h *APIHandlers) EnqueueCall(c fiber.Ctx) error {
	var req calls.EnqueueRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	jobID, err := h.callService.EnqueueCall(c.Context(), req)
	if err != nil {
		if calls.IsValidationError(err) {
			return badRequest(c, err.Error())
		}

		return internalError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"job_id": jobID,
		"status": string(models.CallStatusPending),
	})
}

func (h *APIHandlers) GetCall(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Call ID is required")
	}

	record, err := h.callService.CallByID(c.Context(), id)
	if err != nil {
		if persistence.IsCallNotFound(err) {
			return notFound(c, "Call not found")
		}

		return internalError(c, err)
	}

	return c.JSON(record)
}

// VoiceWebhook receives provider lifecycle events. A 200 response means
// durable receipt; 4xx means the payload is definitively rejected; 5xx asks
// the sender to redeliver.
func (h *APIHandlers) VoiceWebhook(c fiber.Ctx) error {
	var event models.WebhookEvent
	if err := c.Bind().JSON(&event); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if event.CallID == "" {
		return badRequest(c, "call_id is required")
	}

	if err := h.reducer.Apply(c.Context(), event); err != nil {
		return handleWebhookError(c, err)
	}

	return c.JSON(fiber.Map{"received": true})
}

func (h *APIHandlers) SaveWorkflow(c fiber.Ctx) error {
	var wf models.Workflow
	if err := c.Bind().JSON(&wf); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	saved, err := h.workflowService.Save(c.Context(), &wf)
	if err != nil {
		return badRequest(c, err.Error())
	}

	return c.Status(fiber.StatusCreated).JSON(saved)
}

func (h *APIHandlers) GetWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	wf, err := h.workflowService.ByID(c.Context(), id)
	if err != nil {
		if persistence.IsWorkflowNotFound(err) {
			return notFound(c, "Workflow not found")
		}

		return internalError(c, err)
	}

	return c.JSON(wf)
}

func (h *APIHandlers) DeleteWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	if err := h.workflowService.Delete(c.Context(), id); err != nil {
		if persistence.IsWorkflowNotFound(err) {
			return notFound(c, "Workflow not found")
		}

		return internalError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// PublishWorkflow validates the graph against the registered node types and
// marks it executable. Unknown node types fail here with 400.
func (h *APIHandlers) PublishWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	published, err := h.workflowService.Publish(c.Context(), id)
	if err != nil {
		if persistence.IsWorkflowNotFound(err) {
			return notFound(c, "Workflow not found")
		}

		return badRequest(c, err.Error())
	}

	return c.JSON(published)
}

func (h *APIHandlers) GetExecutions(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	executions, err := h.workflowService.Executions(c.Context(), id)
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(fiber.Map{"executions": executions})
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	status := "healthy"
	httpStatus := http.StatusOK

	if err := h.store.HealthCheck(c.Context()); err != nil {
		status = "unhealthy"
		httpStatus = http.StatusInternalServerError
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":    status,
		"timestamp": time.Now().UTC(),
	})
}
