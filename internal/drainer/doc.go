// Package drainer turns queued recordings into successful uploads.
//
// A drain cycle walks the durable queue oldest first and stops on the
// first definitive rejection so one bad item cannot silently burn through
// unrelated work. Transient failures bump the item's attempt count and the
// cycle keeps going after a capped, attempt-proportional delay. At most
// one cycle runs at a time, guarded by a generation token that a
// superseded cycle can observe to stop itself.
package drainer
