// Package jobs tracks long-running server-side sync jobs, one poll loop per
// organization/year scope.
//
// The Tracker is deliberately paranoid about duplicate loops: every Attach
// and Trigger asks the server for the job's status before trusting local
// state, so remounting a scope adopts the running job instead of spawning a
// second loop or a duplicate trigger. Poll loops hold a per-scope generation
// handle; cancelling or re-attaching bumps the generation and the stale loop
// exits on its next tick without touching state.
//
// Two independent safety stops bound each loop: a consecutive-error ceiling
// for when the status endpoint becomes unreachable, and a wall-clock watchdog
// for a job that legitimately never finishes. Both leave the server-side job
// alone and tell the user tracking stopped.
package jobs
