package web

import (
	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"

	"github.com/voxflow/voxflow/pkg/calls"
	"github.com/voxflow/voxflow/pkg/persistence"
)

func badRequest(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(400).
		WithInstance(c.Path()).
		WithType("validation_error").
		WithDetail(detail)

	return c.Status(fiber.StatusBadRequest).JSON(problem)
}

func notFound(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(404).
		WithInstance(c.Path()).
		WithType("not_found").
		WithDetail(detail)

	return c.Status(fiber.StatusNotFound).JSON(problem)
}

func internalError(c fiber.Ctx, err error) error {
	problem := problems.NewStatusProblem(500).
		WithInstance(c.Path()).
		WithType("internal_error").
		WithError(err)

	return c.Status(fiber.StatusInternalServerError).JSON(problem)
}

// retryLater answers 503 so the sender redelivers; used when the failure is
// transient on our side.
func retryLater(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(503).
		WithInstance(c.Path()).
		WithType("temporarily_unavailable").
		WithDetail(detail)

	return c.Status(fiber.StatusServiceUnavailable).JSON(problem)
}

// handleWebhookError separates definitive rejections (4xx, sender must not
// retry) from transient failures (5xx, sender should redeliver).
func handleWebhookError(c fiber.Ctx, err error) error {
	switch {
	case calls.IsValidationError(err):
		return badRequest(c, err.Error())
	case persistence.IsCallNotFound(err):
		// The webhook may have raced the worker creating the record.
		return retryLater(c, "call record not available yet")
	case persistence.IsStoreUnavailable(err):
		return retryLater(c, "store unavailable")
	default:
		return internalError(c, err)
	}
}
