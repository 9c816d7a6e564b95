// Package watchdog bounds how long a call may remain INITIATED. One delayed
// check is scheduled per call; cancellation on CONNECTED is best-effort
// because the check re-reads the record before acting, so a missed
// cancellation is harmless.
package watchdog

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/voxflow/voxflow/pkg/models"
	"github.com/voxflow/voxflow/pkg/persistence"
)

// DefaultGracePeriod is how long a call may stay INITIATED before it is
// failed with no_answer_timeout.
const DefaultGracePeriod = 2 * time.Minute

// OnTimeout is invoked after the watchdog fails a call, carrying the updated
// record for terminal side effects (notification, workflow trigger).
type OnTimeout func(ctx context.Context, record *models.CallRecord)

type Watchdog struct {
	calls     persistence.CallRepository
	grace     time.Duration
	logger    *slog.Logger
	onTimeout OnTimeout

	mu     sync.Mutex
	timers map[string]*time.Timer
}

func New(calls persistence.CallRepository, grace time.Duration, logger *slog.Logger, onTimeout OnTimeout) *Watchdog {
	if grace <= 0 {
		grace = DefaultGracePeriod
	}

	return &Watchdog{
		calls:     calls,
		grace:     grace,
		logger:    logger.With("module", "watchdog"),
		onTimeout: onTimeout,
		timers:    make(map[string]*time.Timer),
	}
}

// Schedule arms one uniquely keyed delayed check for the call. Re-arming an
// already scheduled call resets its timer, which keeps a redelivered job
// from stacking checks.
func (w *Watchdog) Schedule(callID string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if timer, ok := w.timers[callID]; ok {
		timer.Stop()
	}

	w.timers[callID] = time.AfterFunc(w.grace, func() {
		w.fire(callID)
	})

	w.logger.Debug("Scheduled no-answer check", "call_id", callID, "grace", w.grace)
}

// Cancel stops the pending check. Best-effort: the timer may already have
// fired, in which case the re-read inside fire makes it a no-op.
func (w *Watchdog) Cancel(callID string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if timer, ok := w.timers[callID]; ok {
		timer.Stop()
		delete(w.timers, callID)
	}
}

// Stop cancels every pending check.
func (w *Watchdog) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	for id, timer := range w.timers {
		timer.Stop()
		delete(w.timers, id)
	}
}

func (w *Watchdog) fire(callID string) {
	w.mu.Lock()
	delete(w.timers, callID)
	w.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	logger := w.logger.With("call_id", callID)

	now := time.Now().UTC()

	record, err := w.calls.UpdateStatus(
		ctx,
		callID,
		[]models.CallStatus{models.CallStatusInitiated},
		models.CallStatusFailed,
		func(r *models.CallRecord) {
			r.FailureReason = models.FailureReasonNoAnswerTimeout
			r.EndedAt = &now
		},
	)
	if err != nil {
		if persistence.IsStatusConflict(err) {
			// The call connected or ended before the check fired.
			logger.Debug("Call progressed before watchdog fired, nothing to do")

			return
		}

		logger.Error("Failed to apply no-answer timeout", "error", err)

		return
	}

	logger.Info("Call never connected, marked failed", "reason", models.FailureReasonNoAnswerTimeout)

	if w.onTimeout != nil {
		w.onTimeout(ctx, record)
	}
}
