// Package api defines the transport-friendly views of queue items, sync job
// state, and daemon status shared by the IPC layer and the CLI. Conversions
// here strip recording payloads and normalize timestamps so wire payloads
// stay small and stable.
package api
