// Package logs provides file tailing with offset bookkeeping for the
// `furrow logs` command.
//
// The daemon serves tail requests over IPC so the CLI never needs read
// access to the log directory. A negative offset means "last N lines";
// follow mode blocks up to a caller-supplied wait so the CLI can poll
// without busy-looping.
package logs
