package drainer

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"furrow/internal/config"
	"furrow/internal/connectivity"
	"furrow/internal/logging"
	"furrow/internal/notifications"
	"furrow/internal/queue"
	"furrow/internal/services/farmapi"
)

// Uploader performs the authenticated multipart upload for one recording.
type Uploader interface {
	Upload(ctx context.Context, req farmapi.UploadRequest) error
}

// Network exposes the connectivity state the drainer keys off.
type Network interface {
	Online() bool
	Subscribe() (<-chan connectivity.Change, func())
}

// Report summarizes one drain cycle.
type Report struct {
	Uploaded  int
	Retried   int
	Abandoned int
	Halted    bool
}

type drainRequest struct {
	includeFailed bool
}

// Drainer consumes the durable queue and uploads items when online.
type Drainer struct {
	store    *queue.Store
	uploader Uploader
	network  Network
	notifier notifications.Service
	logger   *slog.Logger

	maxAttempts int
	retryDelay  time.Duration
	delayCap    time.Duration

	requests chan drainRequest

	mu         sync.Mutex
	draining   bool
	generation uint64
}

// New constructs a drainer from application config.
func New(cfg *config.Config, store *queue.Store, uploader Uploader, network Network, notifier notifications.Service, logger *slog.Logger) *Drainer {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Drainer{
		store:       store,
		uploader:    uploader,
		network:     network,
		notifier:    notifier,
		logger:      logging.WithComponent(logger, "drainer"),
		maxAttempts: cfg.Queue.MaxAttempts,
		retryDelay:  time.Duration(cfg.Queue.RetryDelay) * time.Second,
		delayCap:    time.Duration(cfg.Queue.RetryDelayCap) * time.Second,
		requests:    make(chan drainRequest, 1),
	}
}

// Run drains on start, then on every offline-to-online edge and on every
// explicit request, until the context ends.
func (d *Drainer) Run(ctx context.Context) {
	changes, cancel := d.network.Subscribe()
	defer cancel()

	d.Drain(ctx, false)

	for {
		select {
		case <-ctx.Done():
			return
		case change, ok := <-changes:
			if !ok {
				return
			}
			if change.Online {
				d.Drain(ctx, false)
			}
		case req := <-d.requests:
			d.Drain(ctx, req.includeFailed)
		}
	}
}

// RequestDrain schedules a drain cycle without blocking. When includeFailed
// is set, items parked in failed are requeued first ("retry queue now").
func (d *Drainer) RequestDrain(includeFailed bool) {
	select {
	case d.requests <- drainRequest{includeFailed: includeFailed}:
	default:
		// A request is already pending; the coming cycle covers this one.
	}
}

// Interrupt invalidates the running cycle, if any. The cycle notices the
// bumped generation at its next item boundary and stops.
func (d *Drainer) Interrupt() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.generation++
	d.draining = false
}

// Drain runs one synchronous drain cycle. It no-ops while offline or while
// another cycle holds the generation token.
func (d *Drainer) Drain(ctx context.Context, includeFailed bool) Report {
	if !d.network.Online() {
		d.logger.Debug("skipping drain while offline")
		return Report{}
	}

	gen, ok := d.acquire()
	if !ok {
		d.logger.Debug("drain cycle already running")
		return Report{}
	}
	defer d.release(gen)

	if includeFailed {
		requeued, err := d.store.RetryFailed(ctx)
		if err != nil {
			d.logger.Error("failed to requeue failed items", logging.Error(err))
		} else if requeued > 0 {
			d.logger.Info("requeued failed items", logging.Int64("count", requeued))
		}
	}

	items, err := d.store.List(ctx, queue.StatusPending)
	if err != nil {
		d.logger.Error("failed to list queue",
			logging.Error(err),
			logging.String(logging.FieldEventType, "queue_list_failed"),
			logging.String(logging.FieldErrorHint, "check queue database access"),
		)
		return Report{}
	}

	var report Report
	for _, item := range items {
		if ctx.Err() != nil || !d.owns(gen) {
			return report
		}
		halt := d.uploadOne(ctx, item, &report)
		if halt {
			report.Halted = true
			break
		}
	}

	if report.Uploaded > 0 {
		if err := d.notifier.NotifyQueueDrained(ctx, report.Uploaded); err != nil {
			d.logger.Warn("queue drained notification failed", logging.Error(err))
		}
	}
	return report
}

// Stats reports queue counts for the presentation layer.
func (d *Drainer) Stats(ctx context.Context) (queue.HealthSummary, error) {
	return d.store.Health(ctx)
}

// uploadOne attempts a single item and reports whether the cycle must halt.
func (d *Drainer) uploadOne(ctx context.Context, item *queue.Item, report *Report) bool {
	itemLogger := d.logger.With(
		logging.String(logging.FieldItemID, item.ID),
		logging.Int(logging.FieldAttempts, item.Attempts),
	)

	item.Status = queue.StatusUploading
	if err := d.store.Update(ctx, item); err != nil {
		itemLogger.Error("failed to mark item uploading", logging.Error(err))
		return true
	}

	err := d.uploader.Upload(ctx, farmapi.UploadRequest{
		ID:             item.ID,
		Filename:       item.Filename,
		Payload:        item.Payload,
		MetadataJSON:   item.MetadataJSON,
		IdempotencyKey: item.IdempotencyKey,
	})

	switch {
	case err == nil:
		if removeErr := d.store.Remove(ctx, item.ID); removeErr != nil {
			itemLogger.Error("failed to remove uploaded item", logging.Error(removeErr))
			return true
		}
		report.Uploaded++
		itemLogger.Info("recording uploaded",
			logging.String(logging.FieldEventType, "upload_succeeded"),
		)
		return false

	case farmapi.TransportFailure(err):
		// The request never reached the server, so connectivity dropped
		// mid-cycle. The item keeps its attempt count: burning attempts on
		// an offline link would eventually park the whole queue as failed.
		item.Status = queue.StatusPending
		item.ErrorMessage = err.Error()
		if updateErr := d.store.Update(ctx, item); updateErr != nil {
			itemLogger.Error("failed to requeue item", logging.Error(updateErr))
			return true
		}
		itemLogger.Warn("connection lost mid-cycle; ending drain",
			logging.Error(err),
			logging.String(logging.FieldEventType, "drain_interrupted"),
		)
		return true

	case farmapi.Retryable(err):
		item.Attempts++
		item.ErrorMessage = err.Error()
		if item.Attempts >= d.maxAttempts {
			item.SetFailed(err.Error())
			if updateErr := d.store.Update(ctx, item); updateErr != nil {
				itemLogger.Error("failed to park exhausted item", logging.Error(updateErr))
				return true
			}
			report.Abandoned++
			itemLogger.Warn("giving up on item after repeated transient failures",
				logging.Error(err),
				logging.Int(logging.FieldAttempts, item.Attempts),
				logging.String(logging.FieldEventType, "upload_abandoned"),
			)
			if notifyErr := d.notifier.NotifyUploadAbandoned(ctx, item.Filename, item.Attempts); notifyErr != nil {
				itemLogger.Warn("abandon notification failed", logging.Error(notifyErr))
			}
			return false
		}

		item.Status = queue.StatusPending
		if updateErr := d.store.Update(ctx, item); updateErr != nil {
			itemLogger.Error("failed to requeue item", logging.Error(updateErr))
			return true
		}
		report.Retried++
		itemLogger.Info("upload failed transiently; will retry",
			logging.Error(err),
			logging.String(logging.FieldEventType, "upload_retry"),
		)
		d.backoff(ctx, item.Attempts)
		return false

	default:
		item.SetFailed(err.Error())
		if updateErr := d.store.Update(ctx, item); updateErr != nil {
			itemLogger.Error("failed to park rejected item", logging.Error(updateErr))
			return true
		}
		itemLogger.Error("upload rejected; halting drain cycle",
			logging.Error(err),
			logging.String(logging.FieldEventType, "upload_rejected"),
			logging.String(logging.FieldErrorHint, "inspect the item with 'furrow queue list' and retry or clear it"),
		)
		if notifyErr := d.notifier.NotifyUploadRejected(ctx, item.Filename, err.Error()); notifyErr != nil {
			itemLogger.Warn("rejection notification failed", logging.Error(notifyErr))
		}
		return true
	}
}

// backoff delays the next item attempt in proportion to the attempt count.
func (d *Drainer) backoff(ctx context.Context, attempts int) {
	delay := time.Duration(attempts) * d.retryDelay
	if delay > d.delayCap {
		delay = d.delayCap
	}
	if delay <= 0 {
		return
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

func (d *Drainer) acquire() (uint64, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.draining {
		return 0, false
	}
	d.draining = true
	d.generation++
	return d.generation, true
}

func (d *Drainer) release(gen uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.generation == gen {
		d.draining = false
	}
}

func (d *Drainer) owns(gen uint64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.generation == gen
}
