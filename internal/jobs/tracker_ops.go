package jobs

import (
	"context"
	"fmt"

	"furrow/internal/logging"
	"furrow/internal/services/farmapi"
)

// Attach starts (or resumes) tracking a scope. It always asks the server
// before trusting local state: if a job is already running server-side the
// tracker adopts it and announces a resume, and if this tracker already has
// a live loop for the scope Attach reuses it instead of spawning a second
// one. Calling Attach twice in a row is therefore safe.
func (t *Tracker) Attach(ctx context.Context, scope farmapi.Scope) (State, error) {
	if !t.claim(scope) {
		return t.setState(scope, func(ts *tracking) {
			ts.state.Detached = false
		}), nil
	}
	defer t.unclaim(scope)

	t.setState(scope, func(ts *tracking) {
		ts.state.Phase = PhaseChecking
		ts.state.Detached = false
		ts.state.Cause = CauseNone
		ts.state.Message = ""
	})

	snapshot, err := t.client.JobStatus(ctx, scope)
	if err != nil {
		state := t.setState(scope, func(ts *tracking) {
			ts.state.Phase = PhaseIdle
			ts.state.Message = err.Error()
		})
		return state, fmt.Errorf("check sync status %s: %w", scope, err)
	}

	if snapshot.Phase != farmapi.JobPhaseRunning {
		return t.setState(scope, func(ts *tracking) {
			ts.state.Phase = PhaseIdle
		}), nil
	}

	state := t.adopt(scope, snapshot, true)
	t.logger.Info("resumed tracking of running sync job",
		logging.String(logging.FieldScope, scope.String()),
		logging.String(logging.FieldEventType, "sync_resumed"),
	)
	if notifyErr := t.notifier.NotifySyncResumed(ctx, scope.String()); notifyErr != nil {
		t.logger.Warn("resume notification failed", logging.Error(notifyErr))
	}
	return state, nil
}

// Trigger asks the server to start a sync job for the scope. Like Attach it
// checks server status first, so triggering a scope whose job is already
// running adopts the running job instead of issuing a duplicate trigger.
func (t *Tracker) Trigger(ctx context.Context, scope farmapi.Scope) (State, error) {
	if !t.claim(scope) {
		state, _ := t.Snapshot(scope)
		return state, nil
	}
	defer t.unclaim(scope)

	t.setState(scope, func(ts *tracking) {
		ts.state.Phase = PhaseChecking
		ts.state.Detached = false
		ts.state.Cause = CauseNone
		ts.state.Message = ""
	})

	snapshot, err := t.client.JobStatus(ctx, scope)
	if err != nil {
		state := t.setState(scope, func(ts *tracking) {
			ts.state.Phase = PhaseIdle
			ts.state.Message = err.Error()
		})
		return state, fmt.Errorf("check sync status %s: %w", scope, err)
	}
	if snapshot.Phase == farmapi.JobPhaseRunning {
		state := t.adopt(scope, snapshot, true)
		if notifyErr := t.notifier.NotifySyncResumed(ctx, scope.String()); notifyErr != nil {
			t.logger.Warn("resume notification failed", logging.Error(notifyErr))
		}
		return state, nil
	}

	if err := t.client.TriggerSync(ctx, scope); err != nil {
		state := t.setState(scope, func(ts *tracking) {
			ts.state.Phase = PhaseIdle
			ts.state.Message = err.Error()
		})
		return state, fmt.Errorf("trigger sync %s: %w", scope, err)
	}

	state := t.adopt(scope, farmapi.JobSnapshot{Phase: farmapi.JobPhaseRunning}, false)
	t.logger.Info("sync job started",
		logging.String(logging.FieldScope, scope.String()),
		logging.String(logging.FieldEventType, "sync_started"),
	)
	if notifyErr := t.notifier.NotifySyncStarted(ctx, scope.String()); notifyErr != nil {
		t.logger.Warn("start notification failed", logging.Error(notifyErr))
	}
	return state, nil
}

// adopt records an in-progress job and claims a poll loop for it.
func (t *Tracker) adopt(scope farmapi.Scope, snapshot farmapi.JobSnapshot, resumed bool) State {
	state := t.setState(scope, func(ts *tracking) {
		ts.state.Phase = PhaseInProgress
		ts.state.Progress = Progress{Current: snapshot.Current, Total: snapshot.Total}
		ts.state.Message = snapshot.Message
		ts.state.Resumed = resumed
		ts.state.ConsecutiveErrors = 0
		ts.state.Cause = CauseNone
	})
	t.startLoop(scope)
	return state
}

// Cancel asks the server to stop the scope's job. The tracker only declares
// cancelled once the server acknowledges; if the cancel call fails the job
// is presumed still running and polling continues.
func (t *Tracker) Cancel(ctx context.Context, scope farmapi.Scope) (State, error) {
	state, ok := t.Snapshot(scope)
	if !ok || state.Phase.Terminal() || state.Phase == PhaseIdle {
		return state, fmt.Errorf("no active sync job for %s", scope)
	}

	if err := t.client.CancelSync(ctx, scope); err != nil {
		t.logger.Warn("cancel request failed; job may still be running",
			logging.String(logging.FieldScope, scope.String()),
			logging.Error(err),
		)
		return state, fmt.Errorf("cancel sync %s: %w", scope, err)
	}

	state = t.setState(scope, func(ts *tracking) {
		ts.generation++ // retire the poll loop
		ts.loopActive = false
		ts.state.Phase = PhaseCancelled
		ts.state.Cause = CauseServer
	})
	t.logger.Info("sync job cancelled",
		logging.String(logging.FieldScope, scope.String()),
		logging.String(logging.FieldEventType, "sync_cancelled"),
	)
	if notifyErr := t.notifier.NotifySyncCancelled(ctx, scope.String()); notifyErr != nil {
		t.logger.Warn("cancel notification failed", logging.Error(notifyErr))
	}
	return state, nil
}

// Detach marks that the user navigated away from the scope. The poll loop
// keeps running in the background; the user just gets a notice when the job
// was still in progress.
func (t *Tracker) Detach(scope farmapi.Scope) {
	state, ok := t.Snapshot(scope)
	if !ok {
		return
	}
	t.setState(scope, func(ts *tracking) {
		ts.state.Detached = true
	})
	if state.Phase != PhaseInProgress {
		return
	}
	t.logger.Info("detached from running sync job; tracking continues",
		logging.String(logging.FieldScope, scope.String()),
	)
	if err := t.notifier.NotifySyncDetached(t.baseCtx, scope.String()); err != nil {
		t.logger.Warn("detach notification failed", logging.Error(err))
	}
}
