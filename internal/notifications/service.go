package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"furrow/internal/config"
)

const userAgent = "Furrow-Go/0.1.0"

// Service defines the notification surface exposed to the drainer and the
// sync tracker. Scope parameters are pre-formatted strings so this package
// stays free of domain imports.
type Service interface {
	NotifyQueueDrained(ctx context.Context, uploaded int) error
	NotifyUploadRejected(ctx context.Context, filename, reason string) error
	NotifyUploadAbandoned(ctx context.Context, filename string, attempts int) error
	NotifySyncStarted(ctx context.Context, scope string) error
	NotifySyncResumed(ctx context.Context, scope string) error
	NotifySyncCompleted(ctx context.Context, scope string) error
	NotifySyncFailed(ctx context.Context, scope, reason string) error
	NotifySyncCancelled(ctx context.Context, scope string) error
	NotifyMonitoringStopped(ctx context.Context, scope, reason string) error
	NotifySyncDetached(ctx context.Context, scope string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint:    topic,
		client:      &http.Client{Timeout: timeout},
		queueEvents: cfg.Notifications.Queue,
		syncEvents:  cfg.Notifications.Sync,
		errorEvents: cfg.Notifications.Errors,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint    string
	client      *http.Client
	queueEvents bool
	syncEvents  bool
	errorEvents bool
}

func (n *ntfyService) NotifyQueueDrained(ctx context.Context, uploaded int) error {
	if !n.queueEvents {
		return nil
	}
	data := payload{
		title:   "Furrow - Queue Drained",
		message: fmt.Sprintf("Uploaded %d queued recording(s)", uploaded),
		tags:    []string{"furrow", "queue", "drained"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyUploadRejected(ctx context.Context, filename, reason string) error {
	if !n.errorEvents {
		return nil
	}
	filename = strings.TrimSpace(filename)
	data := payload{
		title:    "Furrow - Upload Rejected",
		message:  fmt.Sprintf("Server rejected %s: %s\nThe queue is paused on this item; review it manually.", filename, strings.TrimSpace(reason)),
		tags:     []string{"furrow", "queue", "rejected"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyUploadAbandoned(ctx context.Context, filename string, attempts int) error {
	if !n.errorEvents {
		return nil
	}
	data := payload{
		title:    "Furrow - Upload Gave Up",
		message:  fmt.Sprintf("Gave up on %s after %d attempts; it remains stored locally.", strings.TrimSpace(filename), attempts),
		tags:     []string{"furrow", "queue", "abandoned"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifySyncStarted(ctx context.Context, scope string) error {
	if !n.syncEvents {
		return nil
	}
	data := payload{
		title:   "Furrow - Sync Started",
		message: fmt.Sprintf("Bulk sync started for %s", scope),
		tags:    []string{"furrow", "sync", "started"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifySyncResumed(ctx context.Context, scope string) error {
	if !n.syncEvents {
		return nil
	}
	data := payload{
		title:   "Furrow - Sync Resumed",
		message: fmt.Sprintf("A sync for %s was already running; progress tracking resumed.", scope),
		tags:    []string{"furrow", "sync", "resumed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifySyncCompleted(ctx context.Context, scope string) error {
	if !n.syncEvents {
		return nil
	}
	data := payload{
		title:    "Furrow - Sync Complete",
		message:  fmt.Sprintf("Bulk sync finished for %s", scope),
		tags:     []string{"furrow", "sync", "completed"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifySyncFailed(ctx context.Context, scope, reason string) error {
	if !n.errorEvents {
		return nil
	}
	data := payload{
		title:    "Furrow - Sync Failed",
		message:  fmt.Sprintf("Bulk sync failed for %s: %s", scope, strings.TrimSpace(reason)),
		tags:     []string{"furrow", "sync", "failed"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifySyncCancelled(ctx context.Context, scope string) error {
	if !n.syncEvents {
		return nil
	}
	data := payload{
		title:   "Furrow - Sync Cancelled",
		message: fmt.Sprintf("Bulk sync cancelled for %s", scope),
		tags:    []string{"furrow", "sync", "cancelled"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyMonitoringStopped(ctx context.Context, scope, reason string) error {
	if !n.errorEvents {
		return nil
	}
	data := payload{
		title:    "Furrow - Monitoring Stopped",
		message:  fmt.Sprintf("Stopped tracking the sync for %s: %s\nThe job may still be running server-side.", scope, strings.TrimSpace(reason)),
		tags:     []string{"furrow", "sync", "monitoring"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifySyncDetached(ctx context.Context, scope string) error {
	if !n.syncEvents {
		return nil
	}
	data := payload{
		title:   "Furrow - Sync In Background",
		message: fmt.Sprintf("The sync for %s keeps running in the background.", scope),
		tags:    []string{"furrow", "sync", "background"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Furrow - Test",
		message:  "Notification system test",
		tags:     []string{"furrow", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyQueueDrained(context.Context, int) error                 { return nil }
func (noopService) NotifyUploadRejected(context.Context, string, string) error    { return nil }
func (noopService) NotifyUploadAbandoned(context.Context, string, int) error      { return nil }
func (noopService) NotifySyncStarted(context.Context, string) error               { return nil }
func (noopService) NotifySyncResumed(context.Context, string) error               { return nil }
func (noopService) NotifySyncCompleted(context.Context, string) error             { return nil }
func (noopService) NotifySyncFailed(context.Context, string, string) error        { return nil }
func (noopService) NotifySyncCancelled(context.Context, string) error             { return nil }
func (noopService) NotifyMonitoringStopped(context.Context, string, string) error { return nil }
func (noopService) NotifySyncDetached(context.Context, string) error              { return nil }
func (noopService) TestNotification(context.Context) error                        { return nil }
