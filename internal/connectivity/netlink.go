package connectivity

import (
	"context"
	"log/slog"
	"sync"

	"github.com/pilebones/go-udev/netlink"

	"furrow/internal/logging"
)

// linkWatcher listens for udev events on the net subsystem and invokes
// onEvent whenever an interface appears, disappears, or changes state.
type linkWatcher struct {
	logger  *slog.Logger
	onEvent func()

	mu      sync.Mutex
	conn    *netlink.UEventConn
	quit    chan struct{}
	running bool
}

func newLinkWatcher(logger *slog.Logger, onEvent func()) *linkWatcher {
	return &linkWatcher{logger: logger, onEvent: onEvent}
}

// Start begins listening for udev netlink events.
func (w *linkWatcher) Start(ctx context.Context) {
	if w == nil {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return
	}

	conn := new(netlink.UEventConn)
	if err := conn.Connect(netlink.UdevEvent); err != nil {
		w.logger.Warn("failed to connect to netlink socket; connectivity relies on periodic probes only",
			logging.Error(err),
			logging.String(logging.FieldEventType, "netlink_connect_failed"),
			logging.String(logging.FieldErrorHint, "ensure the daemon has permission to access netlink sockets"),
		)
		return // Non-fatal: the probe ticker still runs.
	}

	w.conn = conn
	w.quit = make(chan struct{})
	w.running = true

	quit := w.quit
	go w.watchLoop(ctx, quit)
}

// Stop shuts down the link watcher.
func (w *linkWatcher) Stop() {
	if w == nil {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return
	}

	if w.quit != nil {
		close(w.quit)
		w.quit = nil
	}
	if w.conn != nil {
		_ = w.conn.Close()
		w.conn = nil
	}
	w.running = false
}

func (w *linkWatcher) watchLoop(ctx context.Context, quit <-chan struct{}) {
	events := make(chan netlink.UEvent)
	errs := make(chan error)

	w.mu.Lock()
	conn := w.conn
	w.mu.Unlock()
	if conn == nil {
		return
	}

	monitorQuit := conn.Monitor(events, errs, buildNetMatcher())

	for {
		select {
		case <-ctx.Done():
			close(monitorQuit)
			return
		case <-quit:
			close(monitorQuit)
			return
		case <-events:
			w.onEvent()
		case err := <-errs:
			w.logger.Warn("netlink watch error",
				logging.Error(err),
				logging.String(logging.FieldEventType, "netlink_watch_error"),
			)
		}
	}
}

// buildNetMatcher matches interface lifecycle events: SUBSYSTEM=net, ACTION=add|remove|change.
func buildNetMatcher() netlink.Matcher {
	action := "add|remove|change"
	rules := &netlink.RuleDefinitions{}
	rules.AddRule(netlink.RuleDefinition{
		Action: &action,
		Env: map[string]string{
			"SUBSYSTEM": "net",
		},
	})
	return rules
}
