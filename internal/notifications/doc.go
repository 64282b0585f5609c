// Package notifications pushes user-facing notices through ntfy.
//
// The drainer and the sync tracker report through the Service interface;
// when no ntfy topic is configured a noop implementation is used so
// callers never need nil checks. Transient failures stay quiet by policy —
// only actionable events (rejected uploads, monitoring stops) and
// completion summaries are pushed.
package notifications
