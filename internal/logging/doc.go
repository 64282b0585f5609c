// Package logging wraps log/slog construction and shared attribute helpers.
//
// All components receive a *slog.Logger from this package so log output
// stays uniform across the daemon, the drainer, and the sync tracker. The
// Field* constants define the well-known structured keys used throughout
// the codebase.
package logging
