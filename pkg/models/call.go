// Package models defines the core domain models for call-lifecycle orchestration.
package models

import (
	"encoding/json"
	"time"
)

// CallStatus represents the lifecycle state of an outbound call.
type CallStatus string

const (
	CallStatusPending    CallStatus = "pending"     // Record created, provider not yet invoked
	CallStatusInitiated  CallStatus = "initiated"   // Provider accepted the call, not yet connected
	CallStatusInProgress CallStatus = "in_progress" // Callee picked up
	CallStatusCompleted  CallStatus = "completed"   // Terminal
	CallStatusFailed     CallStatus = "failed"      // Terminal
)

// IsTerminal reports whether no further status transitions are valid.
func (s CallStatus) IsTerminal() bool {
	return s == CallStatusCompleted || s == CallStatusFailed
}

// CanTransitionTo enforces the monotonic call state machine. The only
// permitted moves are forward moves; any non-terminal state may still fail.
func (s CallStatus) CanTransitionTo(next CallStatus) bool {
	if s.IsTerminal() {
		return false
	}

	switch next {
	case CallStatusInitiated:
		return s == CallStatusPending
	case CallStatusInProgress:
		return s == CallStatusInitiated
	case CallStatusCompleted:
		return s == CallStatusInProgress || s == CallStatusInitiated
	case CallStatusFailed:
		return true
	case CallStatusPending:
		return false
	}

	return false
}

// Well-known failure reasons recorded on CallRecord.FailureReason.
const (
	FailureReasonNoAnswerTimeout  = "no_answer_timeout"
	FailureReasonProviderError    = "provider_error"
	FailureReasonMaxAttempts      = "max_attempts_exceeded"
	FailureReasonCallRejected     = "call_rejected"
	FailureReasonProviderReported = "provider_reported_failure"
)

// CallJob is the queued payload consumed once by a dialer worker.
type CallJob struct {
	ID             string    `json:"id"`
	AssistantID    string    `json:"assistant_id"    validate:"required"`
	ToNumber       string    `json:"to_number"       validate:"required,e164"`
	OrganizationID string    `json:"organization_id" validate:"required"`
	Tags           []string  `json:"tags,omitempty"`
	EnqueuedAt     time.Time `json:"enqueued_at"`

	// Attempts counts deliveries of this job, incremented on each dequeue.
	Attempts int `json:"attempts"`
}

// CostBreakdown is the four-component cost attached on ENDED, each component
// and the total rounded to four decimals.
type CostBreakdown struct {
	CallingProviderCost float64 `json:"calling_provider_cost"`
	TTSCost             float64 `json:"tts_cost"`
	STTCost             float64 `json:"stt_cost"`
	LLMCost             float64 `json:"llm_cost"`
	TotalCost           float64 `json:"total_cost"`
	Currency            string  `json:"currency"`
}

// CallRecord is the persistent lifecycle record per call. It is created in
// PENDING by the dialer worker and mutated only by the webhook reducer and
// the timeout watchdog; this subsystem never deletes it.
type CallRecord struct {
	ID             string     `json:"id"`
	ProviderCallID string     `json:"provider_call_id,omitempty"` // Correlation id shared with the telephony provider
	OrganizationID string     `json:"organization_id"`
	AssistantID    string     `json:"assistant_id"`
	ToNumber       string     `json:"to_number"`
	Status         CallStatus `json:"status"`
	FailureReason  string     `json:"failure_reason,omitempty"`

	Tags          []string `json:"tags,omitempty"`
	Transcript    string   `json:"transcript,omitempty"`
	RecordingURLs []string `json:"recording_urls,omitempty"`
	IsVoicemail   bool     `json:"is_voicemail,omitempty"`
	IsRejected    bool     `json:"is_rejected,omitempty"`
	Outcome       string   `json:"outcome,omitempty"`

	Summary   string   `json:"summary,omitempty"`
	Sentiment string   `json:"sentiment,omitempty"`
	Score     *float64 `json:"score,omitempty"`

	Cost            *CostBreakdown `json:"cost,omitempty"`
	DurationSeconds int            `json:"duration_seconds,omitempty"`

	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	StartedAt *time.Time `json:"started_at,omitempty"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`

	// Events is the append-only audit log of received webhook events.
	// Entries are never mutated after insertion.
	Events []WebhookEvent `json:"events,omitempty"`
}

// WebhookEventType enumerates the lifecycle events accepted by the reducer.
type WebhookEventType string

const (
	WebhookEventConnected          WebhookEventType = "CONNECTED"
	WebhookEventTranscriptComplete WebhookEventType = "TRANSCRIPT_COMPLETE"
	WebhookEventEnded              WebhookEventType = "ENDED"
	WebhookEventSummary            WebhookEventType = "SUMMARY"
)

// KnownWebhookEventType reports whether t is one of the accepted event kinds.
func KnownWebhookEventType(t WebhookEventType) bool {
	switch t {
	case WebhookEventConnected, WebhookEventTranscriptComplete, WebhookEventEnded, WebhookEventSummary:
		return true
	}

	return false
}

// WebhookEvent is an immutable audit-log entry appended to a CallRecord.
type WebhookEvent struct {
	ID         string           `json:"id"`
	Type       WebhookEventType `json:"type"       validate:"required"`
	CallID     string           `json:"call_id"    validate:"required"` // Provider correlation id
	ReceivedAt time.Time        `json:"received_at"`
	Payload    map[string]any   `json:"payload,omitempty"`
}

// ConnectedFields is the typed view of a CONNECTED payload.
type ConnectedFields struct {
	CallStartTime time.Time `json:"call_start_time"`
}

// TranscriptCompleteFields is the typed view of a TRANSCRIPT_COMPLETE payload.
type TranscriptCompleteFields struct {
	FullTranscript    string     `json:"full_transcript"`
	RecordingURLs     []string   `json:"recording_urls"`
	UserTagsFound     []string   `json:"user_tags_found"`
	SystemTagsFound   []string   `json:"system_tags_found"`
	CallbackRequested bool       `json:"callback_requested"`
	CallbackTime      *time.Time `json:"callback_time"`
}

// EndedFields is the typed view of an ENDED payload. The usage counters and
// provider/model names feed the cost breakdown.
type EndedFields struct {
	DurationSeconds int      `json:"duration_seconds"`
	EndReason       string   `json:"end_reason"`
	CallOutcome     string   `json:"call_outcome"`
	IsVoicemail     bool     `json:"is_voicemail"`
	IsRejected      bool     `json:"is_rejected"`
	RecordingURL    string   `json:"recording_url"`
	Tags            []string `json:"tags"`

	CallingProvider string `json:"calling_provider"`
	TTSProvider     string `json:"tts_provider"`
	TTSModel        string `json:"tts_model"`
	TTSCharacters   int    `json:"tts_characters"`
	STTProvider     string `json:"stt_provider"`
	STTModel        string `json:"stt_model"`
	LLMModel        string `json:"llm_model"`
	LLMInputTokens  int    `json:"llm_input_tokens"`
	LLMOutputTokens int    `json:"llm_output_tokens"`
}

// Failed reports whether the end reason maps the call into FAILED rather
// than COMPLETED.
func (f EndedFields) Failed() bool {
	switch f.EndReason {
	case "error", "failed", "busy", "no_answer", "rejected", "canceled":
		return true
	}

	return f.IsRejected
}

// SummaryFields is the typed view of a SUMMARY payload.
type SummaryFields struct {
	Summary   string   `json:"summary"`
	Sentiment string   `json:"sentiment"`
	Score     *float64 `json:"score"`
}

// DecodePayload unmarshals the loosely typed webhook payload into the typed
// view for the event kind. Unknown fields are ignored for forward
// compatibility.
func (e *WebhookEvent) DecodePayload(out any) error {
	raw, err := json.Marshal(e.Payload)
	if err != nil {
		return err
	}

	return json.Unmarshal(raw, out)
}
