package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"furrow/internal/config"
	"furrow/internal/logging"
	"furrow/internal/notifications"
	"furrow/internal/services/farmapi"
)

// StatusClient is the slice of the farm API the tracker needs.
type StatusClient interface {
	JobStatus(ctx context.Context, scope farmapi.Scope) (farmapi.JobSnapshot, error)
	TriggerSync(ctx context.Context, scope farmapi.Scope) error
	CancelSync(ctx context.Context, scope farmapi.Scope) error
}

// Tracker follows long-running sync jobs, one poll loop per scope. Loops run
// on the tracker's own context so they outlive the request that started them:
// a caller detaching from a scope leaves its loop running in the background.
type Tracker struct {
	client   StatusClient
	notifier notifications.Service
	logger   *slog.Logger

	pollInterval time.Duration
	watchdog     time.Duration
	errorCeiling int

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	mu      sync.Mutex
	tracked map[farmapi.Scope]*tracking
	subs    map[int]chan State
	nextSub int
}

// tracking is the mutable per-scope record. generation is the owning handle
// for the scope's poll loop: any operation that replaces or stops the loop
// bumps it, and a loop holding a stale generation exits without touching
// state.
type tracking struct {
	state      State
	generation uint64
	loopActive bool
	claimed    bool
}

// New constructs a tracker from application config.
func New(cfg *config.Config, client StatusClient, notifier notifications.Service, logger *slog.Logger) *Tracker {
	return NewWithTimings(
		client,
		notifier,
		logger,
		time.Duration(cfg.Sync.PollInterval)*time.Second,
		time.Duration(cfg.Sync.WatchdogMinutes)*time.Minute,
		cfg.Sync.ErrorCeiling,
	)
}

// NewWithTimings constructs a tracker with explicit timing policy. Tests use
// this to poll on millisecond cadence.
func NewWithTimings(client StatusClient, notifier notifications.Service, logger *slog.Logger, pollInterval, watchdog time.Duration, errorCeiling int) *Tracker {
	if logger == nil {
		logger = logging.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Tracker{
		client:       client,
		notifier:     notifier,
		logger:       logging.WithComponent(logger, "jobs"),
		pollInterval: pollInterval,
		watchdog:     watchdog,
		errorCeiling: errorCeiling,
		baseCtx:      ctx,
		cancel:       cancel,
		tracked:      make(map[farmapi.Scope]*tracking),
		subs:         make(map[int]chan State),
	}
}

// Stop ends every poll loop and waits for them to exit.
func (t *Tracker) Stop() {
	t.cancel()
	t.wg.Wait()

	t.mu.Lock()
	defer t.mu.Unlock()
	for _, ch := range t.subs {
		close(ch)
	}
	t.subs = make(map[int]chan State)
}

// Snapshot returns the current state for a scope, if the scope is tracked.
func (t *Tracker) Snapshot(scope farmapi.Scope) (State, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	ts, ok := t.tracked[scope]
	if !ok {
		return State{}, false
	}
	return ts.state, true
}

// States returns snapshots for every tracked scope, active or terminal.
func (t *Tracker) States() []State {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]State, 0, len(t.tracked))
	for _, ts := range t.tracked {
		out = append(out, ts.state)
	}
	return out
}

// Subscribe returns a channel of state snapshots and a cancel func. Slow
// subscribers lose updates rather than stalling the tracker.
func (t *Tracker) Subscribe() (<-chan State, func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	id := t.nextSub
	t.nextSub++
	ch := make(chan State, 16)
	t.subs[id] = ch
	return ch, func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		if sub, ok := t.subs[id]; ok {
			delete(t.subs, id)
			close(sub)
		}
	}
}

// setState applies fn to the scope's record under the lock and publishes the
// resulting snapshot. It creates the record if the scope is new.
func (t *Tracker) setState(scope farmapi.Scope, fn func(*tracking)) State {
	t.mu.Lock()
	ts, ok := t.tracked[scope]
	if !ok {
		ts = &tracking{state: State{Scope: scope, Phase: PhaseIdle, StartedAt: time.Now().UTC()}}
		t.tracked[scope] = ts
	}
	fn(ts)
	ts.state.UpdatedAt = time.Now().UTC()
	snapshot := ts.state
	subs := make([]chan State, 0, len(t.subs))
	for _, ch := range t.subs {
		subs = append(subs, ch)
	}
	t.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- snapshot:
		default:
		}
	}
	return snapshot
}

// owns reports whether gen is still the scope's live poll handle.
func (t *Tracker) owns(scope farmapi.Scope, gen uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	ts, ok := t.tracked[scope]
	return ok && ts.loopActive && ts.generation == gen
}

// startLoop claims a fresh poll handle for the scope and spawns its loop.
// The previous loop, if any, sees the bumped generation and exits.
func (t *Tracker) startLoop(scope farmapi.Scope) {
	t.mu.Lock()
	ts := t.tracked[scope]
	ts.generation++
	ts.loopActive = true
	gen := ts.generation
	t.mu.Unlock()

	t.wg.Add(1)
	go t.runLoop(scope, gen)
}

// endLoop releases the scope's poll handle if gen still owns it.
func (t *Tracker) endLoop(scope farmapi.Scope, gen uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	ts, ok := t.tracked[scope]
	if ok && ts.generation == gen {
		ts.loopActive = false
	}
}

// claim reserves the scope for one Attach or Trigger at a time. net/rpc
// serves each connection on its own goroutine, so two simultaneous triggers
// would otherwise both see no live loop and both hit the server. Fails when
// a loop is live or another caller holds the claim; release with unclaim.
func (t *Tracker) claim(scope farmapi.Scope) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	ts, ok := t.tracked[scope]
	if !ok {
		ts = &tracking{state: State{Scope: scope, Phase: PhaseIdle, StartedAt: time.Now().UTC()}}
		t.tracked[scope] = ts
	}
	if ts.loopActive || ts.claimed {
		return false
	}
	ts.claimed = true
	return true
}

func (t *Tracker) unclaim(scope farmapi.Scope) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if ts, ok := t.tracked[scope]; ok {
		ts.claimed = false
	}
}
