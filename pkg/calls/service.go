package calls

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/voxflow/voxflow/pkg/eventbus"
	"github.com/voxflow/voxflow/pkg/events"
	"github.com/voxflow/voxflow/pkg/models"
	"github.com/voxflow/voxflow/pkg/persistence"
	"github.com/voxflow/voxflow/pkg/queue"
)

// EnqueueRequest is the synchronous call-submission payload. The response is
// a definitive accept/reject; completion is observed asynchronously.
type EnqueueRequest struct {
	AssistantID    string   `json:"assistant_id"    validate:"required"`
	ToNumber       string   `json:"to_number"       validate:"required,e164"`
	OrganizationID string   `json:"organization_id" validate:"required"`
	Tags           []string `json:"tags,omitempty"`
}

// Service handles call submission and lookups for the API layer.
type Service struct {
	jobs      queue.Queue
	calls     persistence.CallRepository
	eventBus  eventbus.EventPublisher
	validator *validator.Validate
	logger    *slog.Logger
}

func NewService(
	jobs queue.Queue,
	calls persistence.CallRepository,
	eventBus eventbus.EventPublisher,
	logger *slog.Logger,
) *Service {
	return &Service{
		jobs:      jobs,
		calls:     calls,
		eventBus:  eventBus,
		validator: validator.New(),
		logger:    logger.With("module", "call_service"),
	}
}

// EnqueueCall validates the request and submits a job. The returned job id
// doubles as the call record id the worker will create.
func (s *Service) EnqueueCall(ctx context.Context, req EnqueueRequest) (string, error) {
	if err := s.validator.Struct(req); err != nil {
		return "", NewValidationError(err)
	}

	jobID, err := s.jobs.Enqueue(ctx, &models.CallJob{
		AssistantID:    req.AssistantID,
		ToNumber:       req.ToNumber,
		OrganizationID: req.OrganizationID,
		Tags:           req.Tags,
	})
	if err != nil {
		return "", err
	}

	s.logger.InfoContext(ctx, "Call job enqueued", "job_id", jobID, "organization_id", req.OrganizationID)

	if s.eventBus != nil {
		event := events.CallQueued{
			BaseEvent: events.BaseEvent{
				Type:      events.CallQueuedEvent,
				Timestamp: time.Now().UTC(),
			},
			JobID:          jobID,
			OrganizationID: req.OrganizationID,
		}
		if err := s.eventBus.Publish(ctx, jobID, event); err != nil {
			s.logger.ErrorContext(ctx, "Failed to publish call queued event", "error", err)
		}
	}

	return jobID, nil
}

// CallByID returns the lifecycle record for asynchronous observation.
func (s *Service) CallByID(ctx context.Context, id string) (*models.CallRecord, error) {
	return s.calls.ByID(ctx, id)
}
