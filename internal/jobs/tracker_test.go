package jobs_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"furrow/internal/jobs"
	"furrow/internal/notifications"
	"furrow/internal/services/farmapi"
	"furrow/internal/testsupport"
)

var testScope = farmapi.Scope{OrgID: 7, Year: 2025}

type statusStep struct {
	snap farmapi.JobSnapshot
	err  error
}

// fakeClient scripts JobStatus responses in order and repeats the last one
// once the script runs out.
type fakeClient struct {
	mu           sync.Mutex
	steps        []statusStep
	last         statusStep
	statusGate   chan struct{}
	statusCalls  int
	triggerCalls int
	cancelCalls  int
	triggerErr   error
	cancelErr    error
}

func newFakeClient(steps ...statusStep) *fakeClient {
	return &fakeClient{
		steps: steps,
		last:  statusStep{snap: farmapi.JobSnapshot{Phase: farmapi.JobPhaseNone}},
	}
}

func running(current, total int) statusStep {
	return statusStep{snap: farmapi.JobSnapshot{Phase: farmapi.JobPhaseRunning, Current: current, Total: total}}
}

func completed(total int) statusStep {
	return statusStep{snap: farmapi.JobSnapshot{Phase: farmapi.JobPhaseCompleted, Current: total, Total: total}}
}

func statusError() statusStep {
	return statusStep{err: errors.New("connection refused")}
}

// holdStatus makes JobStatus block until gate closes, letting tests pile up
// several callers inside the status check.
func (c *fakeClient) holdStatus(gate chan struct{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.statusGate = gate
}

func (c *fakeClient) JobStatus(_ context.Context, _ farmapi.Scope) (farmapi.JobSnapshot, error) {
	c.mu.Lock()
	gate := c.statusGate
	c.mu.Unlock()
	if gate != nil {
		<-gate
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.statusCalls++
	if len(c.steps) > 0 {
		c.last = c.steps[0]
		c.steps = c.steps[1:]
	}
	return c.last.snap, c.last.err
}

func (c *fakeClient) TriggerSync(context.Context, farmapi.Scope) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.triggerCalls++
	return c.triggerErr
}

func (c *fakeClient) CancelSync(context.Context, farmapi.Scope) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelCalls++
	return c.cancelErr
}

func (c *fakeClient) counts() (status, trigger, cancel int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statusCalls, c.triggerCalls, c.cancelCalls
}

type recordingNotifier struct {
	notifications.Service
	mu       sync.Mutex
	started  int
	resumed  int
	done     int
	failed   int
	canceled int
	stopped  []string
	detached int
}

func newRecordingNotifier(t *testing.T) *recordingNotifier {
	cfg := testsupport.NewConfig(t)
	return &recordingNotifier{Service: notifications.NewService(cfg)}
}

func (r *recordingNotifier) NotifySyncStarted(context.Context, string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started++
	return nil
}

func (r *recordingNotifier) NotifySyncResumed(context.Context, string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resumed++
	return nil
}

func (r *recordingNotifier) NotifySyncCompleted(context.Context, string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.done++
	return nil
}

func (r *recordingNotifier) NotifySyncFailed(context.Context, string, string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed++
	return nil
}

func (r *recordingNotifier) NotifySyncCancelled(context.Context, string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.canceled++
	return nil
}

func (r *recordingNotifier) NotifyMonitoringStopped(_ context.Context, _, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopped = append(r.stopped, reason)
	return nil
}

func (r *recordingNotifier) NotifySyncDetached(context.Context, string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.detached++
	return nil
}

func newTracker(t *testing.T, client jobs.StatusClient, notifier notifications.Service) *jobs.Tracker {
	t.Helper()
	tracker := jobs.NewWithTimings(client, notifier, nil, 5*time.Millisecond, time.Hour, 5)
	t.Cleanup(tracker.Stop)
	return tracker
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestAttachAdoptsRunningJob(t *testing.T) {
	client := newFakeClient(running(3, 40))
	notifier := newRecordingNotifier(t)
	tracker := newTracker(t, client, notifier)

	state, err := tracker.Attach(context.Background(), testScope)
	if err != nil {
		t.Fatalf("Attach failed: %v", err)
	}
	if state.Phase != jobs.PhaseInProgress || !state.Resumed {
		t.Fatalf("expected resumed in-progress state, got %#v", state)
	}
	if state.Progress.Current != 3 || state.Progress.Total != 40 {
		t.Fatalf("unexpected progress: %#v", state.Progress)
	}

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	if notifier.resumed != 1 || notifier.started != 0 {
		t.Fatalf("expected one resume notification, got resumed=%d started=%d", notifier.resumed, notifier.started)
	}
}

func TestAttachWithNoServerJobStaysIdle(t *testing.T) {
	client := newFakeClient(statusStep{snap: farmapi.JobSnapshot{Phase: farmapi.JobPhaseNone}})
	tracker := newTracker(t, client, newRecordingNotifier(t))

	state, err := tracker.Attach(context.Background(), testScope)
	if err != nil {
		t.Fatalf("Attach failed: %v", err)
	}
	if state.Phase != jobs.PhaseIdle {
		t.Fatalf("expected idle, got %s", state.Phase)
	}

	// No loop should be polling for an idle scope.
	time.Sleep(30 * time.Millisecond)
	if status, _, _ := client.counts(); status != 1 {
		t.Fatalf("expected a single status check, got %d", status)
	}
}

func TestAttachTwiceStartsOneLoop(t *testing.T) {
	// A huge poll interval isolates the Attach-time status checks from
	// loop ticks: only the first Attach should reach the server.
	client := newFakeClient(running(0, 10))
	notifier := newRecordingNotifier(t)
	tracker := jobs.NewWithTimings(client, notifier, nil, time.Hour, time.Hour, 5)
	defer tracker.Stop()

	ctx := context.Background()
	if _, err := tracker.Attach(ctx, testScope); err != nil {
		t.Fatalf("first Attach failed: %v", err)
	}
	if _, err := tracker.Attach(ctx, testScope); err != nil {
		t.Fatalf("second Attach failed: %v", err)
	}

	status, _, _ := client.counts()
	if status != 1 {
		t.Fatalf("expected one status check across both attaches, got %d", status)
	}
	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	if notifier.resumed != 1 {
		t.Fatalf("expected one resume notification, got %d", notifier.resumed)
	}
}

func TestTriggerRunsJobToCompletion(t *testing.T) {
	client := newFakeClient(
		statusStep{snap: farmapi.JobSnapshot{Phase: farmapi.JobPhaseNone}}, // pre-trigger check
		running(0, 40),
		running(20, 40),
		completed(40),
	)
	notifier := newRecordingNotifier(t)
	tracker := newTracker(t, client, notifier)

	state, err := tracker.Trigger(context.Background(), testScope)
	if err != nil {
		t.Fatalf("Trigger failed: %v", err)
	}
	if state.Phase != jobs.PhaseInProgress || state.Resumed {
		t.Fatalf("expected fresh in-progress state, got %#v", state)
	}

	waitFor(t, "job completion", func() bool {
		s, ok := tracker.Snapshot(testScope)
		return ok && s.Phase == jobs.PhaseCompleted
	})

	final, _ := tracker.Snapshot(testScope)
	if final.Progress.Current != 40 || final.Progress.Total != 40 {
		t.Fatalf("unexpected final progress: %#v", final.Progress)
	}

	// The loop must stop once the job is terminal.
	settled, trigger, _ := client.counts()
	time.Sleep(30 * time.Millisecond)
	after, _, _ := client.counts()
	if after != settled {
		t.Fatalf("loop kept polling after completion: %d -> %d", settled, after)
	}
	if trigger != 1 {
		t.Fatalf("expected exactly one trigger call, got %d", trigger)
	}

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	if notifier.started != 1 || notifier.done != 1 {
		t.Fatalf("expected start and completion notifications, got started=%d done=%d", notifier.started, notifier.done)
	}
}

func TestSimultaneousTriggersStartOneJob(t *testing.T) {
	client := newFakeClient(
		statusStep{snap: farmapi.JobSnapshot{Phase: farmapi.JobPhaseNone}}, // pre-trigger check
		completed(4),
	)
	gate := make(chan struct{})
	client.holdStatus(gate)
	notifier := newRecordingNotifier(t)
	tracker := newTracker(t, client, notifier)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := tracker.Trigger(context.Background(), testScope); err != nil {
				t.Errorf("Trigger failed: %v", err)
			}
		}()
	}

	// Give every caller time to reach the scope claim, then let the winner's
	// status check proceed.
	time.Sleep(10 * time.Millisecond)
	close(gate)
	wg.Wait()

	waitFor(t, "job completion", func() bool {
		s, ok := tracker.Snapshot(testScope)
		return ok && s.Phase == jobs.PhaseCompleted
	})

	if _, trigger, _ := client.counts(); trigger != 1 {
		t.Fatalf("expected exactly one trigger call, got %d", trigger)
	}
	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	if notifier.started != 1 {
		t.Fatalf("expected a single start notification, got %d", notifier.started)
	}
}

func TestTriggerAdoptsAlreadyRunningJob(t *testing.T) {
	client := newFakeClient(running(12, 40))
	notifier := newRecordingNotifier(t)
	tracker := newTracker(t, client, notifier)

	state, err := tracker.Trigger(context.Background(), testScope)
	if err != nil {
		t.Fatalf("Trigger failed: %v", err)
	}
	if state.Phase != jobs.PhaseInProgress || !state.Resumed {
		t.Fatalf("expected adoption of the running job, got %#v", state)
	}
	if _, trigger, _ := client.counts(); trigger != 0 {
		t.Fatalf("expected no duplicate trigger call, got %d", trigger)
	}
}

func TestErrorCeilingStopsPolling(t *testing.T) {
	client := newFakeClient(
		running(0, 10),
		statusError(), statusError(), statusError(), statusError(), statusError(),
	)
	notifier := newRecordingNotifier(t)
	tracker := newTracker(t, client, notifier)

	if _, err := tracker.Attach(context.Background(), testScope); err != nil {
		t.Fatalf("Attach failed: %v", err)
	}

	waitFor(t, "error ceiling", func() bool {
		s, _ := tracker.Snapshot(testScope)
		return s.Phase == jobs.PhaseFailed
	})

	state, _ := tracker.Snapshot(testScope)
	if state.Cause != jobs.CauseErrorCeiling {
		t.Fatalf("expected error-ceiling cause, got %q", state.Cause)
	}
	if state.ConsecutiveErrors != 5 {
		t.Fatalf("expected 5 consecutive errors, got %d", state.ConsecutiveErrors)
	}

	settled, _, _ := client.counts()
	time.Sleep(30 * time.Millisecond)
	after, _, _ := client.counts()
	if after != settled {
		t.Fatalf("loop kept polling after hitting the ceiling: %d -> %d", settled, after)
	}

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	if len(notifier.stopped) != 1 {
		t.Fatalf("expected a monitoring-stopped notification, got %v", notifier.stopped)
	}
}

func TestSuccessfulPollResetsErrorCount(t *testing.T) {
	client := newFakeClient(
		running(0, 10),
		statusError(), statusError(), statusError(),
		running(5, 10),
	)
	tracker := newTracker(t, client, newRecordingNotifier(t))

	if _, err := tracker.Attach(context.Background(), testScope); err != nil {
		t.Fatalf("Attach failed: %v", err)
	}

	waitFor(t, "progress after recovery", func() bool {
		s, _ := tracker.Snapshot(testScope)
		return s.Progress.Current == 5
	})

	state, _ := tracker.Snapshot(testScope)
	if state.ConsecutiveErrors != 0 {
		t.Fatalf("expected error count reset after successful poll, got %d", state.ConsecutiveErrors)
	}
	if state.Phase != jobs.PhaseInProgress {
		t.Fatalf("expected job still in progress, got %s", state.Phase)
	}
}

func TestCancelRequiresServerAcknowledgement(t *testing.T) {
	client := newFakeClient(running(1, 10))
	notifier := newRecordingNotifier(t)
	tracker := newTracker(t, client, notifier)

	ctx := context.Background()
	if _, err := tracker.Attach(ctx, testScope); err != nil {
		t.Fatalf("Attach failed: %v", err)
	}

	client.mu.Lock()
	client.cancelErr = errors.New("gateway timeout")
	client.mu.Unlock()

	state, err := tracker.Cancel(ctx, testScope)
	if err == nil {
		t.Fatal("expected cancel to surface the server error")
	}
	if state.Phase != jobs.PhaseInProgress {
		t.Fatalf("cancel without ack must not change phase, got %s", state.Phase)
	}

	client.mu.Lock()
	client.cancelErr = nil
	client.mu.Unlock()

	state, err = tracker.Cancel(ctx, testScope)
	if err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	if state.Phase != jobs.PhaseCancelled {
		t.Fatalf("expected cancelled after ack, got %s", state.Phase)
	}

	// The retired loop must stop polling. A poll already in flight when the
	// cancel landed may still finish, so let it settle first.
	time.Sleep(15 * time.Millisecond)
	settled, _, cancel := client.counts()
	time.Sleep(30 * time.Millisecond)
	after, _, _ := client.counts()
	if after != settled {
		t.Fatalf("loop kept polling after cancel: %d -> %d", settled, after)
	}
	if cancel != 2 {
		t.Fatalf("expected two cancel calls, got %d", cancel)
	}

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	if notifier.canceled != 1 {
		t.Fatalf("expected one cancel notification, got %d", notifier.canceled)
	}
}

func TestDetachKeepsLoopRunning(t *testing.T) {
	client := newFakeClient(running(1, 10), running(2, 10))
	notifier := newRecordingNotifier(t)
	tracker := newTracker(t, client, notifier)

	if _, err := tracker.Attach(context.Background(), testScope); err != nil {
		t.Fatalf("Attach failed: %v", err)
	}
	tracker.Detach(testScope)

	state, _ := tracker.Snapshot(testScope)
	if !state.Detached {
		t.Fatal("expected detached flag set")
	}

	before, _, _ := client.counts()
	waitFor(t, "polling to continue after detach", func() bool {
		status, _, _ := client.counts()
		return status > before
	})

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	if notifier.detached != 1 {
		t.Fatalf("expected one detach notification, got %d", notifier.detached)
	}
}

func TestWatchdogAbandonsTracking(t *testing.T) {
	client := newFakeClient(running(1, 10))
	notifier := newRecordingNotifier(t)
	tracker := jobs.NewWithTimings(client, notifier, nil, time.Hour, 20*time.Millisecond, 5)
	defer tracker.Stop()

	if _, err := tracker.Attach(context.Background(), testScope); err != nil {
		t.Fatalf("Attach failed: %v", err)
	}

	waitFor(t, "watchdog expiry", func() bool {
		s, _ := tracker.Snapshot(testScope)
		return s.Phase == jobs.PhaseFailed
	})

	state, _ := tracker.Snapshot(testScope)
	if state.Cause != jobs.CauseWatchdog {
		t.Fatalf("expected watchdog cause, got %q", state.Cause)
	}

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	if len(notifier.stopped) != 1 {
		t.Fatalf("expected a monitoring-stopped notification, got %v", notifier.stopped)
	}
}

func TestScopesAreIndependent(t *testing.T) {
	other := farmapi.Scope{OrgID: 9, Year: 2024}
	client := newFakeClient(running(1, 10), statusStep{snap: farmapi.JobSnapshot{Phase: farmapi.JobPhaseNone}})
	tracker := newTracker(t, client, newRecordingNotifier(t))

	ctx := context.Background()
	if _, err := tracker.Attach(ctx, testScope); err != nil {
		t.Fatalf("Attach(testScope) failed: %v", err)
	}
	if _, err := tracker.Attach(ctx, other); err != nil {
		t.Fatalf("Attach(other) failed: %v", err)
	}

	first, _ := tracker.Snapshot(testScope)
	second, _ := tracker.Snapshot(other)
	if first.Phase != jobs.PhaseInProgress || second.Phase != jobs.PhaseIdle {
		t.Fatalf("expected independent scope states, got %s and %s", first.Phase, second.Phase)
	}
	if len(tracker.States()) != 2 {
		t.Fatalf("expected two tracked scopes, got %d", len(tracker.States()))
	}
}
