package dialer_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxflow/voxflow/pkg/dialer"
	"github.com/voxflow/voxflow/pkg/models"
	"github.com/voxflow/voxflow/pkg/persistence/memory"
	"github.com/voxflow/voxflow/pkg/queue"
	"github.com/voxflow/voxflow/pkg/telephony"
	"github.com/voxflow/voxflow/pkg/watchdog"
)

type fakeProvider struct {
	calls []telephony.StartCallRequest
	err   error
}

func (f *fakeProvider) StartCall(_ context.Context, req telephony.StartCallRequest) (*telephony.StartCallResponse, error) {
	f.calls = append(f.calls, req)
	if f.err != nil {
		return nil, f.err
	}

	return &telephony.StartCallResponse{ProviderCallID: "prov-" + req.CallID}, nil
}

type dialerFixture struct {
	store    *memory.Persistence
	provider *fakeProvider
	dialer   *dialer.Dialer
}

func newDialerFixture(t *testing.T) *dialerFixture {
	t.Helper()

	store := memory.NewPersistence()
	provider := &fakeProvider{}
	logger := slog.Default()
	wd := watchdog.New(store.Calls(), time.Minute, logger, nil)
	t.Cleanup(wd.Stop)

	d := dialer.NewDialer(
		dialer.Config{WorkerID: "worker-test", CallbackURL: "https://api.example.com/v1/webhooks/voice"},
		nil,
		store.Calls(),
		provider,
		wd,
		nil,
		logger,
		nil,
	)

	return &dialerFixture{store: store, provider: provider, dialer: d}
}

func testJob(id string) *models.CallJob {
	return &models.CallJob{
		ID:             id,
		AssistantID:    "asst-1",
		ToNumber:       "+15550001111",
		OrganizationID: "org-1",
		Tags:           []string{"campaign-a"},
		EnqueuedAt:     time.Now().UTC(),
		Attempts:       1,
	}
}

func TestDialer_ProcessInitiatesCall(t *testing.T) {
	f := newDialerFixture(t)

	require.NoError(t, f.dialer.Process(context.Background(), testJob("job-1")))

	record, err := f.store.Calls().ByID(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, models.CallStatusInitiated, record.Status)
	assert.Equal(t, "prov-job-1", record.ProviderCallID)
	assert.Equal(t, []string{"campaign-a"}, record.Tags)

	require.Len(t, f.provider.calls, 1)
	assert.Equal(t, "+15550001111", f.provider.calls[0].ToNumber)
	assert.Equal(t, "https://api.example.com/v1/webhooks/voice", f.provider.calls[0].StatusCallbackURL)
}

func TestDialer_RedeliverySkipsProvider(t *testing.T) {
	f := newDialerFixture(t)

	require.NoError(t, f.dialer.Process(context.Background(), testJob("job-1")))

	redelivered := testJob("job-1")
	redelivered.Attempts = 2
	require.NoError(t, f.dialer.Process(context.Background(), redelivered))

	// The second delivery saw the record past PENDING and stopped.
	assert.Len(t, f.provider.calls, 1)
}

func TestDialer_ProviderRejectionFailsCall(t *testing.T) {
	f := newDialerFixture(t)
	f.provider.err = &telephony.ProviderError{Provider: "livekit", StatusCode: 422, Message: "invalid number"}

	// Definitive rejections are absorbed so the queue does not retry.
	require.NoError(t, f.dialer.Process(context.Background(), testJob("job-1")))

	record, err := f.store.Calls().ByID(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, models.CallStatusFailed, record.Status)
	assert.Equal(t, models.FailureReasonProviderError, record.FailureReason)
	assert.NotNil(t, record.EndedAt)
}

func TestDialer_TransientProviderErrorIsRetried(t *testing.T) {
	f := newDialerFixture(t)
	f.provider.err = errors.New("connection refused")

	err := f.dialer.Process(context.Background(), testJob("job-1"))
	require.Error(t, err)

	// The record stays PENDING so a redelivery can try again.
	record, lookupErr := f.store.Calls().ByID(context.Background(), "job-1")
	require.NoError(t, lookupErr)
	assert.Equal(t, models.CallStatusPending, record.Status)
}

func TestDialer_MaxAttemptsDeadLetters(t *testing.T) {
	f := newDialerFixture(t)

	job := testJob("job-1")
	job.Attempts = queue.MaxAttempts + 1

	require.NoError(t, f.dialer.Process(context.Background(), job))

	record, err := f.store.Calls().ByID(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, models.CallStatusFailed, record.Status)
	assert.Equal(t, models.FailureReasonMaxAttempts, record.FailureReason)

	// The provider was never invoked for a dead-lettered job.
	assert.Empty(t, f.provider.calls)
}

func TestDialer_MalformedJobRejectedWithoutRetry(t *testing.T) {
	f := newDialerFixture(t)

	job := testJob("job-1")
	job.ToNumber = "not-a-number"

	require.NoError(t, f.dialer.Process(context.Background(), job))

	assert.Empty(t, f.provider.calls)

	_, err := f.store.Calls().ByID(context.Background(), "job-1")
	require.Error(t, err)
}
