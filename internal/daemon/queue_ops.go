package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"furrow/internal/logging"
	"furrow/internal/queue"
	"furrow/internal/services"
)

// recordingExtensions are the capture formats the field app produces.
var recordingExtensions = map[string]struct{}{
	".ogg":  {},
	".opus": {},
	".m4a":  {},
	".wav":  {},
	".mp3":  {},
}

// AddRecording reads a captured file from disk and enqueues it durably. The
// payload is persisted before this returns; the drainer is then nudged so an
// online daemon uploads it right away.
func (d *Daemon) AddRecording(ctx context.Context, sourcePath, metadataJSON string) (*queue.Item, error) {
	trimmed := strings.TrimSpace(sourcePath)
	if trimmed == "" {
		return nil, errors.New("source path is required")
	}
	absPath, err := filepath.Abs(trimmed)
	if err != nil {
		return nil, fmt.Errorf("resolve source path: %w", err)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("stat source file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("source path %q is a directory", absPath)
	}
	ext := strings.ToLower(filepath.Ext(info.Name()))
	if _, ok := recordingExtensions[ext]; !ok {
		return nil, fmt.Errorf("unsupported recording extension %q", ext)
	}
	if metadataJSON != "" && !json.Valid([]byte(metadataJSON)) {
		return nil, errors.New("metadata is not valid JSON")
	}

	payload, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("read recording: %w", err)
	}

	item := queue.NewItem(filepath.Base(absPath), payload, metadataJSON)
	if err := d.store.Put(ctx, item); err != nil {
		return nil, fmt.Errorf("enqueue recording: %w", err)
	}
	attrs := []logging.Attr{
		logging.String(logging.FieldItemID, item.ID),
		logging.String("source", absPath),
		logging.Int("size_bytes", len(payload)),
	}
	if rid, ok := services.RequestIDFromContext(ctx); ok {
		attrs = append(attrs, logging.String(logging.FieldRequestID, rid))
	}
	d.logger.Info("recording queued", logging.Args(attrs...)...)
	d.drainer.RequestDrain(false)
	return item, nil
}

// ListQueue returns queue items filtered by optional statuses.
func (d *Daemon) ListQueue(ctx context.Context, statuses []queue.Status) ([]*queue.Item, error) {
	if len(statuses) == 0 {
		return d.store.List(ctx)
	}
	return d.store.List(ctx, statuses...)
}

// GetQueueItem returns one item by ID, or nil when absent.
func (d *Daemon) GetQueueItem(ctx context.Context, id string) (*queue.Item, error) {
	return d.store.GetByID(ctx, id)
}

// RemoveQueueItem deletes one item regardless of status.
func (d *Daemon) RemoveQueueItem(ctx context.Context, id string) error {
	if err := d.store.Remove(ctx, id); err != nil {
		return err
	}
	attrs := []logging.Attr{logging.String(logging.FieldItemID, id)}
	if rid, ok := services.RequestIDFromContext(ctx); ok {
		attrs = append(attrs, logging.String(logging.FieldRequestID, rid))
	}
	d.logger.Info("queue item removed", logging.Args(attrs...)...)
	return nil
}

// ClearFailed removes items parked in failed.
func (d *Daemon) ClearFailed(ctx context.Context) (int64, error) {
	return d.store.ClearFailed(ctx)
}

// RetryQueue requeues failed items and schedules an immediate drain cycle.
func (d *Daemon) RetryQueue() {
	d.drainer.RequestDrain(true)
}

// QueueHealth returns aggregate queue diagnostics.
func (d *Daemon) QueueHealth(ctx context.Context) (queue.HealthSummary, error) {
	return d.store.Health(ctx)
}
