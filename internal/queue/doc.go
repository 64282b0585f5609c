// Package queue persists captured recordings awaiting upload.
//
// The store is backed by SQLite so a successful Put survives process
// restarts; that durability is what makes offline capture meaningful.
// Items carry a client-generated ID and an idempotency key, and move
// through pending -> uploading -> removed on success, or are parked in
// failed for manual intervention.
package queue
