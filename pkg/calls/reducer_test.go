package calls_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxflow/voxflow/pkg/calls"
	"github.com/voxflow/voxflow/pkg/eventbus"
	"github.com/voxflow/voxflow/pkg/events"
	"github.com/voxflow/voxflow/pkg/models"
	"github.com/voxflow/voxflow/pkg/persistence"
	"github.com/voxflow/voxflow/pkg/persistence/memory"
	"github.com/voxflow/voxflow/pkg/watchdog"
)

type fakeNotifier struct {
	notified []*models.CallRecord
}

func (f *fakeNotifier) NotifyCallEnded(_ context.Context, record *models.CallRecord) {
	f.notified = append(f.notified, record)
}

type fakeLifecycleBus struct {
	published []eventbus.Event
}

func (f *fakeLifecycleBus) Publish(_ context.Context, _ string, event eventbus.Event) error {
	f.published = append(f.published, event)

	return nil
}

func (f *fakeLifecycleBus) ofType(eventType events.EventType) []eventbus.Event {
	matched := make([]eventbus.Event, 0)

	for _, event := range f.published {
		if event.GetType() == eventType {
			matched = append(matched, event)
		}
	}

	return matched
}

type reducerFixture struct {
	store    *memory.Persistence
	reducer  *calls.Reducer
	notifier *fakeNotifier
	bus      *fakeLifecycleBus
}

func newReducerFixture(t *testing.T) *reducerFixture {
	t.Helper()

	store := memory.NewPersistence()
	logger := slog.Default()
	notifier := &fakeNotifier{}
	bus := &fakeLifecycleBus{}
	effects := calls.NewTerminalEffects(notifier, bus, logger)
	wd := watchdog.New(store.Calls(), time.Minute, logger, nil)
	t.Cleanup(wd.Stop)

	return &reducerFixture{
		store:    store,
		reducer:  calls.NewReducer(store.Calls(), store.Callbacks(), wd, effects, bus, logger),
		notifier: notifier,
		bus:      bus,
	}
}

// seedCall creates a record the way a dialer worker would: PENDING first,
// then INITIATED with the provider correlation id.
func (f *reducerFixture) seedCall(t *testing.T, id, providerCallID string) {
	t.Helper()

	ctx := context.Background()

	require.NoError(t, f.store.Calls().Create(ctx, &models.CallRecord{
		ID:             id,
		OrganizationID: "org-1",
		AssistantID:    "asst-1",
		ToNumber:       "+15550001111",
		Status:         models.CallStatusPending,
		CreatedAt:      time.Now().UTC(),
	}))

	_, err := f.store.Calls().UpdateStatus(
		ctx,
		id,
		[]models.CallStatus{models.CallStatusPending},
		models.CallStatusInitiated,
		func(r *models.CallRecord) {
			r.ProviderCallID = providerCallID
		},
	)
	require.NoError(t, err)
}

func (f *reducerFixture) apply(t *testing.T, event models.WebhookEvent) {
	t.Helper()
	require.NoError(t, f.reducer.Apply(context.Background(), event))
}

func connectedEvent(providerCallID string) models.WebhookEvent {
	return models.WebhookEvent{
		Type:    models.WebhookEventConnected,
		CallID:  providerCallID,
		Payload: map[string]any{"call_start_time": time.Now().UTC().Format(time.RFC3339)},
	}
}

func endedEvent(providerCallID, endReason string) models.WebhookEvent {
	return models.WebhookEvent{
		Type:   models.WebhookEventEnded,
		CallID: providerCallID,
		Payload: map[string]any{
			"duration_seconds": float64(120),
			"end_reason":       endReason,
			"call_outcome":     "interested",
			"calling_provider": "twilio",
			"tts_provider":     "smallest_ai",
			"tts_characters":   float64(500),
			"stt_provider":     "deepgram",
			"stt_model":        "nova-2",
		},
	}
}

func transcriptEvent(providerCallID string) models.WebhookEvent {
	return models.WebhookEvent{
		Type:   models.WebhookEventTranscriptComplete,
		CallID: providerCallID,
		Payload: map[string]any{
			"full_transcript": "Hello, yes I'm interested.",
			"recording_urls":  []any{"https://recordings.example.com/call-1.mp3"},
			"user_tags_found": []any{"interested"},
		},
	}
}

func TestReducer_Connected(t *testing.T) {
	f := newReducerFixture(t)
	f.seedCall(t, "call-1", "prov-1")

	f.apply(t, connectedEvent("prov-1"))

	record, err := f.store.Calls().ByID(context.Background(), "call-1")
	require.NoError(t, err)
	assert.Equal(t, models.CallStatusInProgress, record.Status)
	assert.NotNil(t, record.StartedAt)
	assert.Len(t, record.Events, 1)

	assert.Len(t, f.bus.ofType(events.CallConnectedEvent), 1)
}

func TestReducer_DuplicateConnectedIsIdempotent(t *testing.T) {
	f := newReducerFixture(t)
	f.seedCall(t, "call-1", "prov-1")

	f.apply(t, connectedEvent("prov-1"))
	f.apply(t, connectedEvent("prov-1"))

	record, err := f.store.Calls().ByID(context.Background(), "call-1")
	require.NoError(t, err)
	assert.Equal(t, models.CallStatusInProgress, record.Status)

	// Both deliveries are audited even though only one changed status.
	assert.Len(t, record.Events, 2)
}

func TestReducer_EndedCompletesCallWithCost(t *testing.T) {
	f := newReducerFixture(t)
	f.seedCall(t, "call-1", "prov-1")
	f.apply(t, connectedEvent("prov-1"))

	f.apply(t, endedEvent("prov-1", "completed"))

	record, err := f.store.Calls().ByID(context.Background(), "call-1")
	require.NoError(t, err)
	assert.Equal(t, models.CallStatusCompleted, record.Status)
	assert.Equal(t, 120, record.DurationSeconds)
	assert.Equal(t, "interested", record.Outcome)
	assert.NotNil(t, record.EndedAt)

	require.NotNil(t, record.Cost)
	assert.InDelta(t, 0.1250, record.Cost.TotalCost, 1e-9)

	require.Len(t, f.notifier.notified, 1)

	completed := f.bus.ofType(events.CallCompletedEvent)
	require.Len(t, completed, 1)

	event, ok := completed[0].(events.CallCompleted)
	require.True(t, ok)
	assert.Equal(t, "call-1", event.CallID)
	assert.Equal(t, "+15550001111", event.ToNumber)
	assert.Equal(t, "interested", event.Outcome)
	require.NotNil(t, event.Cost)
	assert.InDelta(t, 0.1250, event.Cost.TotalCost, 1e-9)
}

func TestReducer_EndedWithFailureReason(t *testing.T) {
	f := newReducerFixture(t)
	f.seedCall(t, "call-1", "prov-1")

	// ENDED can arrive while still INITIATED when the callee never picked up.
	f.apply(t, endedEvent("prov-1", "no_answer"))

	record, err := f.store.Calls().ByID(context.Background(), "call-1")
	require.NoError(t, err)
	assert.Equal(t, models.CallStatusFailed, record.Status)
	assert.Equal(t, models.FailureReasonProviderReported, record.FailureReason)

	failed := f.bus.ofType(events.CallFailedEvent)
	require.Len(t, failed, 1)

	event, ok := failed[0].(events.CallFailed)
	require.True(t, ok)
	assert.Equal(t, models.FailureReasonProviderReported, event.Reason)
	assert.Empty(t, f.bus.ofType(events.CallCompletedEvent))
}

func TestReducer_DuplicateEndedFiresEffectsOnce(t *testing.T) {
	f := newReducerFixture(t)
	f.seedCall(t, "call-1", "prov-1")
	f.apply(t, connectedEvent("prov-1"))

	f.apply(t, endedEvent("prov-1", "completed"))
	f.apply(t, endedEvent("prov-1", "completed"))

	assert.Len(t, f.notifier.notified, 1)
	assert.Len(t, f.bus.ofType(events.CallCompletedEvent), 1)

	record, err := f.store.Calls().ByID(context.Background(), "call-1")
	require.NoError(t, err)
	assert.Len(t, record.Events, 3)
}

func TestReducer_TranscriptComplete(t *testing.T) {
	f := newReducerFixture(t)
	f.seedCall(t, "call-1", "prov-1")
	f.apply(t, connectedEvent("prov-1"))

	callbackTime := time.Now().UTC().Add(24 * time.Hour).Format(time.RFC3339)
	f.apply(t, models.WebhookEvent{
		Type:   models.WebhookEventTranscriptComplete,
		CallID: "prov-1",
		Payload: map[string]any{
			"full_transcript":    "Hello, yes I'm interested.",
			"recording_urls":     []any{"https://recordings.example.com/call-1.mp3"},
			"user_tags_found":    []any{"interested"},
			"system_tags_found":  []any{"callback_requested"},
			"callback_requested": true,
			"callback_time":      callbackTime,
		},
	})

	record, err := f.store.Calls().ByID(context.Background(), "call-1")
	require.NoError(t, err)
	assert.Equal(t, "Hello, yes I'm interested.", record.Transcript)
	assert.Equal(t, []string{"https://recordings.example.com/call-1.mp3"}, record.RecordingURLs)
	assert.ElementsMatch(t, []string{"interested", "callback_requested"}, record.Tags)

	// Status is untouched by transcript events, and both deliveries stay on
	// the audit log.
	assert.Equal(t, models.CallStatusInProgress, record.Status)
	assert.Len(t, record.Events, 2)

	due, err := f.store.Callbacks().Due(context.Background(), time.Now().UTC().Add(48*time.Hour))
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "call-1", due[0].SourceCallID)
	assert.Equal(t, "+15550001111", due[0].ToNumber)
}

func TestReducer_LateTranscriptKeepsTerminalFields(t *testing.T) {
	f := newReducerFixture(t)
	f.seedCall(t, "call-1", "prov-1")
	f.apply(t, connectedEvent("prov-1"))
	f.apply(t, endedEvent("prov-1", "completed"))

	f.apply(t, transcriptEvent("prov-1"))

	record, err := f.store.Calls().ByID(context.Background(), "call-1")
	require.NoError(t, err)
	assert.Equal(t, "Hello, yes I'm interested.", record.Transcript)

	// The late transcript touches only its own fields: the terminal
	// transition and every audited delivery survive it.
	assert.Equal(t, models.CallStatusCompleted, record.Status)
	assert.Equal(t, 120, record.DurationSeconds)
	require.NotNil(t, record.Cost)
	assert.Len(t, record.Events, 3)
}

func TestReducer_SummaryBeforeTerminalIsAuditedOnly(t *testing.T) {
	f := newReducerFixture(t)
	f.seedCall(t, "call-1", "prov-1")
	f.apply(t, connectedEvent("prov-1"))

	f.apply(t, models.WebhookEvent{
		Type:    models.WebhookEventSummary,
		CallID:  "prov-1",
		Payload: map[string]any{"summary": "too early", "sentiment": "positive"},
	})

	record, err := f.store.Calls().ByID(context.Background(), "call-1")
	require.NoError(t, err)
	assert.Empty(t, record.Summary)
	assert.Len(t, record.Events, 2)
}

func TestReducer_SummaryAfterEndedLastWriteWins(t *testing.T) {
	f := newReducerFixture(t)
	f.seedCall(t, "call-1", "prov-1")
	f.apply(t, connectedEvent("prov-1"))
	f.apply(t, endedEvent("prov-1", "completed"))

	f.apply(t, models.WebhookEvent{
		Type:    models.WebhookEventSummary,
		CallID:  "prov-1",
		Payload: map[string]any{"summary": "first", "sentiment": "neutral"},
	})
	f.apply(t, models.WebhookEvent{
		Type:    models.WebhookEventSummary,
		CallID:  "prov-1",
		Payload: map[string]any{"summary": "second", "sentiment": "positive"},
	})

	record, err := f.store.Calls().ByID(context.Background(), "call-1")
	require.NoError(t, err)
	assert.Equal(t, "second", record.Summary)
	assert.Equal(t, "positive", record.Sentiment)

	// Every delivery stays audited: CONNECTED, ENDED, and both summaries.
	assert.Len(t, record.Events, 4)
}

func TestReducer_UnknownEventTypeRejected(t *testing.T) {
	f := newReducerFixture(t)
	f.seedCall(t, "call-1", "prov-1")

	err := f.reducer.Apply(context.Background(), models.WebhookEvent{
		Type:   "RINGING",
		CallID: "prov-1",
	})

	require.Error(t, err)
	assert.True(t, calls.IsValidationError(err))
}

func TestReducer_UnknownCallReturnsError(t *testing.T) {
	f := newReducerFixture(t)

	err := f.reducer.Apply(context.Background(), connectedEvent("prov-ghost"))

	require.Error(t, err)
	assert.True(t, persistence.IsCallNotFound(err))
}

func TestReducer_ResolvesByRecordIDFallback(t *testing.T) {
	f := newReducerFixture(t)
	f.seedCall(t, "call-1", "prov-1")

	// Some providers echo our own id instead of theirs.
	f.apply(t, connectedEvent("call-1"))

	record, err := f.store.Calls().ByID(context.Background(), "call-1")
	require.NoError(t, err)
	assert.Equal(t, models.CallStatusInProgress, record.Status)
}
