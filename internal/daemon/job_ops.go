package daemon

import (
	"context"

	"furrow/internal/jobs"
	"furrow/internal/services/farmapi"
)

// JobAttach starts or resumes tracking the scope's sync job.
func (d *Daemon) JobAttach(ctx context.Context, scope farmapi.Scope) (jobs.State, error) {
	return d.tracker.Attach(ctx, scope)
}

// JobTrigger asks the server to start a sync job for the scope.
func (d *Daemon) JobTrigger(ctx context.Context, scope farmapi.Scope) (jobs.State, error) {
	return d.tracker.Trigger(ctx, scope)
}

// JobCancel cancels the scope's sync job once the server acknowledges.
func (d *Daemon) JobCancel(ctx context.Context, scope farmapi.Scope) (jobs.State, error) {
	return d.tracker.Cancel(ctx, scope)
}

// JobDetach stops displaying the scope without stopping its poll loop.
func (d *Daemon) JobDetach(scope farmapi.Scope) {
	d.tracker.Detach(scope)
}

// JobStates returns snapshots for every tracked scope.
func (d *Daemon) JobStates() []jobs.State {
	return d.tracker.States()
}
