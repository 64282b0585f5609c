// Package farmapi is the HTTP client for the remote farm operations API.
//
// It covers the two collaborator contracts the resilience core needs:
// multipart recording uploads and the bulk-sync job endpoints (status,
// trigger, cancel). Failures are classified as retryable (transport
// errors, timeouts, 5xx) or rejected (auth, validation) so the drainer
// and the sync tracker can decide between backoff and surfacing.
package farmapi
