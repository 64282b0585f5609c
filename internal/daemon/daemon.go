package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"furrow/internal/config"
	"furrow/internal/connectivity"
	"furrow/internal/drainer"
	"furrow/internal/jobs"
	"furrow/internal/logging"
	"furrow/internal/notifications"
	"furrow/internal/queue"
	"furrow/internal/services/farmapi"
)

// Daemon wires the queue store, connectivity monitor, drainer, and job
// tracker together and enforces single-instance execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *queue.Store
	monitor  *connectivity.Monitor
	drainer  *drainer.Drainer
	tracker  *jobs.Tracker
	notifier notifications.Service

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// Options overrides the daemon's external collaborators. Tests use it to
// substitute fakes for the farm API and the connectivity probe.
type Options struct {
	Uploader     drainer.Uploader
	StatusClient jobs.StatusClient
	Notifier     notifications.Service
	Probe        connectivity.Probe
}

// New constructs a daemon talking to the real farm API.
func New(cfg *config.Config, store *queue.Store, logger *slog.Logger) (*Daemon, error) {
	return NewWithOptions(cfg, store, logger, Options{})
}

// NewWithOptions constructs a daemon with selectively overridden
// collaborators.
func NewWithOptions(cfg *config.Config, store *queue.Store, logger *slog.Logger, opts Options) (*Daemon, error) {
	if cfg == nil || store == nil {
		return nil, errors.New("daemon requires config and store")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	notifier := opts.Notifier
	if notifier == nil {
		notifier = notifications.NewService(cfg)
	}

	var client *farmapi.Client
	uploader := opts.Uploader
	statusClient := opts.StatusClient
	if uploader == nil || statusClient == nil {
		client = farmapi.New(cfg)
		if uploader == nil {
			uploader = client
		}
		if statusClient == nil {
			statusClient = client
		}
	}

	probe := opts.Probe
	if probe == nil && cfg.Connectivity.ProbeURL != "" {
		probe = connectivity.NewHTTPProbe(
			cfg.Connectivity.ProbeURL,
			time.Duration(cfg.Connectivity.ProbeTimeout)*time.Second,
		)
	}
	monitor := connectivity.NewMonitor(
		probe,
		time.Duration(cfg.Connectivity.ProbeInterval)*time.Second,
		logger,
	)

	lockPath := cfg.LockPath()
	return &Daemon{
		cfg:      cfg,
		logger:   logging.WithComponent(logger, "daemon"),
		store:    store,
		monitor:  monitor,
		drainer:  drainer.New(cfg, store, uploader, monitor, notifier, logger),
		tracker:  jobs.New(cfg, statusClient, notifier, logger),
		notifier: notifier,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Start acquires the single-instance lock, recovers interrupted uploads,
// and launches the background loops.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another furrow daemon instance is already running")
	}

	// Items stuck in uploading are leftovers from a crash mid-upload; the
	// idempotency key makes re-sending them safe.
	reset, err := d.store.ResetUploading(ctx)
	if err != nil {
		_ = d.lock.Unlock()
		return fmt.Errorf("recover interrupted uploads: %w", err)
	}
	if reset > 0 {
		d.logger.Info("requeued uploads interrupted by previous shutdown",
			logging.Int64("count", reset),
		)
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.done = make(chan struct{})

	d.monitor.Start(runCtx)
	go func() {
		defer close(d.done)
		d.drainer.Run(runCtx)
	}()

	d.running.Store(true)
	d.logger.Info("furrow daemon started", logging.String("lock", d.lockPath))
	return nil
}

// Stop halts background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	<-d.done
	d.tracker.Stop()
	d.monitor.Stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("furrow daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	Online       bool
	QueueDBPath  string
	LockFilePath string
	Queue        queue.HealthSummary
	Jobs         []jobs.State
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	health, err := d.store.Health(ctx)
	if err != nil {
		d.logger.Warn("queue health check failed", logging.Error(err))
	}
	return Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		Online:       d.monitor.Online(),
		QueueDBPath:  d.cfg.QueueDBPath(),
		LockFilePath: d.lockPath,
		Queue:        health,
		Jobs:         d.tracker.States(),
	}
}

// Online reports the connectivity monitor's current belief.
func (d *Daemon) Online() bool {
	return d.monitor.Online()
}

// LogPath returns the daemon log file served by the IPC log tail.
func (d *Daemon) LogPath() string {
	return logging.FilePath(d.cfg.Paths.LogDir)
}

// TestNotification sends a test message using the current configuration.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if d.cfg.Notifications.NtfyTopic == "" {
		return false, "ntfy topic not configured", nil
	}
	if err := d.notifier.TestNotification(ctx); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}
