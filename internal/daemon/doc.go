// Package daemon assembles the long-running furrow process: the durable
// queue store, the connectivity monitor, the submission drainer, and the
// sync job tracker, guarded by a single-instance file lock. The IPC layer
// drives it; the CLI never touches these components directly.
package daemon
