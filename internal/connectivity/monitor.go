package connectivity

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"furrow/internal/logging"
)

// Change describes one online/offline edge.
type Change struct {
	Online bool
	At     time.Time
}

// Probe answers whether the network path is currently usable.
type Probe interface {
	Check(ctx context.Context) bool
}

// ProbeFunc adapts a function to the Probe interface.
type ProbeFunc func(ctx context.Context) bool

func (f ProbeFunc) Check(ctx context.Context) bool { return f(ctx) }

// NewHTTPProbe probes reachability with a HEAD request. Any response,
// including an error status, proves the network path works; only transport
// failures count as offline.
func NewHTTPProbe(url string, timeout time.Duration) Probe {
	client := &http.Client{Timeout: timeout}
	return ProbeFunc(func(ctx context.Context) bool {
		req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
		if err != nil {
			return true
		}
		resp, err := client.Do(req)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return true
	})
}

// Monitor tracks connectivity state and fans out edge notifications.
type Monitor struct {
	probe    Probe
	interval time.Duration
	logger   *slog.Logger
	links    *linkWatcher

	mu      sync.Mutex
	online  bool
	running bool
	quit    chan struct{}
	kick    chan struct{}
	subs    map[int]chan Change
	nextSub int
	wg      sync.WaitGroup
}

// NewMonitor constructs a monitor around the given probe. A nil probe
// yields a monitor that is permanently online (optimistic default).
func NewMonitor(probe Probe, interval time.Duration, logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Monitor{
		probe:    probe,
		interval: interval,
		logger:   logging.WithComponent(logger, "connectivity"),
		online:   true,
		subs:     make(map[int]chan Change),
	}
}

// Start begins probing until Stop is called or the context ends.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	if m.running || m.probe == nil {
		m.mu.Unlock()
		return
	}
	m.running = true
	m.quit = make(chan struct{})
	m.kick = make(chan struct{}, 1)
	quit, kick := m.quit, m.kick
	m.links = newLinkWatcher(m.logger, func() {
		select {
		case kick <- struct{}{}:
		default:
		}
	})
	links := m.links
	// Add under the lock so a concurrent Stop cannot Wait before the loop
	// is accounted for.
	m.wg.Add(1)
	m.mu.Unlock()

	links.Start(ctx)

	m.setOnline(m.probe.Check(ctx))

	go m.loop(ctx, quit, kick)
}

// Stop shuts the monitor down and closes subscriber channels.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	close(m.quit)
	m.quit = nil
	links := m.links
	m.links = nil
	m.mu.Unlock()

	if links != nil {
		links.Stop()
	}
	m.wg.Wait()

	m.mu.Lock()
	for id, ch := range m.subs {
		close(ch)
		delete(m.subs, id)
	}
	m.mu.Unlock()
}

// Online reports the current connectivity state.
func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// Subscribe registers for edge notifications. The returned cancel func must
// be called when the subscriber is done.
func (m *Monitor) Subscribe() (<-chan Change, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextSub
	m.nextSub++
	ch := make(chan Change, 4)
	m.subs[id] = ch

	cancel := func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if existing, ok := m.subs[id]; ok {
			close(existing)
			delete(m.subs, id)
		}
	}
	return ch, cancel
}

func (m *Monitor) loop(ctx context.Context, quit <-chan struct{}, kick <-chan struct{}) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-quit:
			return
		case <-ticker.C:
		case <-kick:
			// Interface change: re-probe immediately instead of waiting
			// out the remainder of the tick.
		}
		m.setOnline(m.probe.Check(ctx))
	}
}

func (m *Monitor) setOnline(online bool) {
	m.mu.Lock()
	if m.online == online {
		m.mu.Unlock()
		return
	}
	m.online = online
	change := Change{Online: online, At: time.Now()}
	subs := make([]chan Change, 0, len(m.subs))
	for _, ch := range m.subs {
		subs = append(subs, ch)
	}
	m.mu.Unlock()

	m.logger.Info("connectivity changed",
		logging.Bool(logging.FieldOnline, online),
		logging.String(logging.FieldEventType, "connectivity_edge"),
	)
	for _, ch := range subs {
		select {
		case ch <- change:
		default:
			// Slow subscriber: drop rather than block the monitor.
		}
	}
}
