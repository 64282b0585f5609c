// Package services holds utilities shared across the daemon's external
// integrations.
//
// The context helpers stamp queue item IDs and per-request correlation
// identifiers so a log line written deep inside an upload or poll can be
// traced back to the IPC call that caused it. The farmapi subpackage is the
// client for the remote farm operations API.
package services
