package jobs

import (
	"fmt"
	"log/slog"
	"time"

	"furrow/internal/logging"
	"furrow/internal/services/farmapi"
)

// runLoop polls one scope on a fixed cadence until the job ends, the error
// ceiling or watchdog fires, or a newer handle supersedes gen.
func (t *Tracker) runLoop(scope farmapi.Scope, gen uint64) {
	defer t.wg.Done()
	defer t.endLoop(scope, gen)

	logger := t.logger.With(logging.String(logging.FieldScope, scope.String()))

	ticker := time.NewTicker(t.pollInterval)
	defer ticker.Stop()
	watchdog := time.NewTimer(t.watchdog)
	defer watchdog.Stop()

	for {
		select {
		case <-t.baseCtx.Done():
			return

		case <-watchdog.C:
			if !t.owns(scope, gen) {
				return
			}
			t.setState(scope, func(ts *tracking) {
				ts.state.Phase = PhaseFailed
				ts.state.Cause = CauseWatchdog
				ts.state.Message = fmt.Sprintf("gave up after %s; the job may still be running server-side", t.watchdog)
			})
			logger.Warn("watchdog expired; stopped tracking sync job",
				logging.String(logging.FieldEventType, "sync_watchdog_expired"),
				logging.String(logging.FieldErrorHint, "check the job with 'furrow sync status' later"),
			)
			t.notifyMonitoringStopped(scope, "the job ran longer than the tracking window")
			return

		case <-ticker.C:
			if !t.owns(scope, gen) {
				return
			}
			if done := t.pollOnce(scope, gen, logger); done {
				return
			}
		}
	}
}

// pollOnce performs one status query and applies the result. It reports
// whether the loop should stop.
func (t *Tracker) pollOnce(scope farmapi.Scope, gen uint64, logger *slog.Logger) bool {
	snapshot, err := t.client.JobStatus(t.baseCtx, scope)

	// A cancel or re-attach may have landed while the request was in
	// flight; a stale loop must not clobber the newer state.
	if !t.owns(scope, gen) {
		return true
	}

	if err != nil {
		state := t.setState(scope, func(ts *tracking) {
			ts.state.ConsecutiveErrors++
			if ts.state.ConsecutiveErrors >= t.errorCeiling {
				ts.state.Phase = PhaseFailed
				ts.state.Cause = CauseErrorCeiling
				ts.state.Message = fmt.Sprintf("status endpoint unreachable %d times in a row: %v", ts.state.ConsecutiveErrors, err)
			}
		})
		if state.Phase == PhaseFailed {
			logger.Warn("stopped polling after repeated status failures",
				logging.Error(err),
				logging.Int("consecutive_errors", state.ConsecutiveErrors),
				logging.String(logging.FieldEventType, "sync_error_ceiling"),
			)
			t.notifyMonitoringStopped(scope, "the status endpoint stopped responding")
			return true
		}
		logger.Warn("sync status poll failed; will retry",
			logging.Error(err),
			logging.Int("consecutive_errors", state.ConsecutiveErrors),
		)
		return false
	}

	switch snapshot.Phase {
	case farmapi.JobPhaseRunning:
		t.setState(scope, func(ts *tracking) {
			ts.state.ConsecutiveErrors = 0
			if snapshot.Current > ts.state.Progress.Current {
				ts.state.Progress.Current = snapshot.Current
			}
			if snapshot.Total > 0 {
				ts.state.Progress.Total = snapshot.Total
			}
			ts.state.Message = snapshot.Message
		})
		return false

	case farmapi.JobPhaseCompleted:
		t.setState(scope, func(ts *tracking) {
			ts.state.ConsecutiveErrors = 0
			ts.state.Phase = PhaseCompleted
			if snapshot.Total > 0 {
				ts.state.Progress = Progress{Current: snapshot.Total, Total: snapshot.Total}
			}
			ts.state.Message = snapshot.Message
		})
		logger.Info("sync job completed",
			logging.String(logging.FieldEventType, "sync_completed"),
		)
		if notifyErr := t.notifier.NotifySyncCompleted(t.baseCtx, scope.String()); notifyErr != nil {
			logger.Warn("completion notification failed", logging.Error(notifyErr))
		}
		return true

	case farmapi.JobPhaseCancelled:
		t.setState(scope, func(ts *tracking) {
			ts.state.Phase = PhaseCancelled
			ts.state.Cause = CauseServer
			ts.state.Message = snapshot.Message
		})
		logger.Info("sync job cancelled server-side",
			logging.String(logging.FieldEventType, "sync_cancelled"),
		)
		if notifyErr := t.notifier.NotifySyncCancelled(t.baseCtx, scope.String()); notifyErr != nil {
			logger.Warn("cancel notification failed", logging.Error(notifyErr))
		}
		return true

	default:
		// failed, or the server no longer reports the job at all.
		message := snapshot.Message
		if snapshot.Phase == farmapi.JobPhaseNone && message == "" {
			message = "job no longer reported by the server"
		}
		t.setState(scope, func(ts *tracking) {
			ts.state.Phase = PhaseFailed
			ts.state.Cause = CauseServer
			ts.state.Message = message
		})
		logger.Warn("sync job failed",
			logging.String(logging.FieldEventType, "sync_failed"),
			logging.String("reason", message),
		)
		if notifyErr := t.notifier.NotifySyncFailed(t.baseCtx, scope.String(), message); notifyErr != nil {
			logger.Warn("failure notification failed", logging.Error(notifyErr))
		}
		return true
	}
}

func (t *Tracker) notifyMonitoringStopped(scope farmapi.Scope, reason string) {
	if err := t.notifier.NotifyMonitoringStopped(t.baseCtx, scope.String(), reason); err != nil {
		t.logger.Warn("monitoring-stopped notification failed", logging.Error(err))
	}
}
