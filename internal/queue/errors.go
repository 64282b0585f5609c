package queue

import "errors"

// ErrStorageFull indicates the durable store refused a write because free
// disk space fell below the configured floor. Callers surface this so the
// user knows the capture itself may have been lost.
var ErrStorageFull = errors.New("queue storage full")

// ErrSchemaMismatch indicates the database schema version doesn't match the expected version.
var ErrSchemaMismatch = errors.New("schema version mismatch")
