package models

import (
	"errors"
	"time"
)

// ErrInvalidCallback is returned when callback validation fails.
var ErrInvalidCallback = errors.New("invalid scheduled callback")

// ScheduledCallback is a future call request picked up by the callback
// scheduler. It is deleted only after its triggered job is confirmed
// submitted; until then every tick will see it again.
type ScheduledCallback struct {
	ID             string    `json:"id"              validate:"required"`
	OrganizationID string    `json:"organization_id" validate:"required"`
	AssistantID    string    `json:"assistant_id"    validate:"required"`
	ToNumber       string    `json:"to_number"       validate:"required,e164"`
	Tags           []string  `json:"tags,omitempty"`
	DueAt          time.Time `json:"due_at"          validate:"required"`

	// SourceCallID links back to the call whose transcript requested the
	// callback, when there is one.
	SourceCallID string    `json:"source_call_id,omitempty"`
	Note         string    `json:"note,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Validate checks the fields the scheduler needs before submitting a job.
func (c *ScheduledCallback) Validate() error {
	if c.ID == "" || c.OrganizationID == "" || c.AssistantID == "" || c.ToNumber == "" {
		return ErrInvalidCallback
	}

	if c.DueAt.IsZero() {
		return ErrInvalidCallback
	}

	return nil
}

// IsDue reports whether the callback falls inside the elapsed minute window
// ending at now.
func (c *ScheduledCallback) IsDue(now time.Time) bool {
	return !c.DueAt.After(now)
}

// Job builds the CallJob the scheduler submits for this callback.
func (c *ScheduledCallback) Job(jobID string, now time.Time) *CallJob {
	return &CallJob{
		ID:             jobID,
		AssistantID:    c.AssistantID,
		ToNumber:       c.ToNumber,
		OrganizationID: c.OrganizationID,
		Tags:           c.Tags,
		EnqueuedAt:     now,
	}
}
