package drainer_test

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"furrow/internal/connectivity"
	"furrow/internal/drainer"
	"furrow/internal/notifications"
	"furrow/internal/queue"
	"furrow/internal/services/farmapi"
	"furrow/internal/testsupport"
)

type fakeNetwork struct {
	mu     sync.Mutex
	online bool
	subs   []chan connectivity.Change
}

func newFakeNetwork(online bool) *fakeNetwork {
	return &fakeNetwork{online: online}
}

func (n *fakeNetwork) Online() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.online
}

func (n *fakeNetwork) Subscribe() (<-chan connectivity.Change, func()) {
	n.mu.Lock()
	defer n.mu.Unlock()
	ch := make(chan connectivity.Change, 4)
	n.subs = append(n.subs, ch)
	return ch, func() {}
}

func (n *fakeNetwork) set(online bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.online == online {
		return
	}
	n.online = online
	for _, ch := range n.subs {
		ch <- connectivity.Change{Online: online, At: time.Now()}
	}
}

// fakeUploader scripts per-item outcomes and records call order plus the
// maximum number of in-flight uploads.
type fakeUploader struct {
	mu          sync.Mutex
	results     map[string][]error
	calls       []string
	inFlight    int
	maxInFlight int
}

func newFakeUploader() *fakeUploader {
	return &fakeUploader{results: make(map[string][]error)}
}

func (u *fakeUploader) script(id string, errs ...error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.results[id] = append(u.results[id], errs...)
}

func (u *fakeUploader) Upload(ctx context.Context, req farmapi.UploadRequest) error {
	u.mu.Lock()
	u.calls = append(u.calls, req.ID)
	u.inFlight++
	if u.inFlight > u.maxInFlight {
		u.maxInFlight = u.inFlight
	}
	var err error
	if queued := u.results[req.ID]; len(queued) > 0 {
		err = queued[0]
		u.results[req.ID] = queued[1:]
	}
	u.mu.Unlock()

	u.mu.Lock()
	u.inFlight--
	u.mu.Unlock()
	return err
}

func (u *fakeUploader) callIDs() []string {
	u.mu.Lock()
	defer u.mu.Unlock()
	cp := make([]string, len(u.calls))
	copy(cp, u.calls)
	return cp
}

type recordingNotifier struct {
	notifications.Service
	mu        sync.Mutex
	rejected  []string
	abandoned []string
	drained   []int
}

func newRecordingNotifier(t *testing.T) *recordingNotifier {
	cfg := testsupport.NewConfig(t)
	cfg.Notifications.NtfyTopic = ""
	return &recordingNotifier{Service: notifications.NewService(cfg)}
}

func (r *recordingNotifier) NotifyUploadRejected(_ context.Context, filename, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rejected = append(r.rejected, filename)
	return nil
}

func (r *recordingNotifier) NotifyUploadAbandoned(_ context.Context, filename string, _ int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.abandoned = append(r.abandoned, filename)
	return nil
}

func (r *recordingNotifier) NotifyQueueDrained(_ context.Context, uploaded int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.drained = append(r.drained, uploaded)
	return nil
}

func rejectedErr() error {
	return &farmapi.APIError{StatusCode: http.StatusUnprocessableEntity, Message: "bad metadata"}
}

func serverErr() error {
	return &farmapi.APIError{StatusCode: http.StatusBadGateway, Message: "upstream down"}
}

func newDrainer(t *testing.T, store *queue.Store, uploader drainer.Uploader, network drainer.Network, notifier notifications.Service) *drainer.Drainer {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	cfg.Queue.RetryDelay = 0 // keep cycles fast in tests
	cfg.Queue.MaxAttempts = 3
	return drainer.New(cfg, store, uploader, network, notifier, nil)
}

func TestDrainUploadsOldestFirstAndEmptiesQueue(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	uploader := newFakeUploader()
	notifier := newRecordingNotifier(t)
	d := newDrainer(t, store, uploader, newFakeNetwork(true), notifier)

	ctx := context.Background()
	var want []string
	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		item := queue.NewItem("note.ogg", []byte{byte(i)}, "")
		item.EnqueuedAt = base.Add(time.Duration(i) * time.Minute)
		if err := store.Put(ctx, item); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
		want = append(want, item.ID)
	}

	report := d.Drain(ctx, false)
	if report.Uploaded != 3 || report.Halted {
		t.Fatalf("unexpected report: %#v", report)
	}

	calls := uploader.callIDs()
	if len(calls) != 3 {
		t.Fatalf("expected 3 uploads, got %d", len(calls))
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Errorf("position %d: expected %s, got %s", i, want[i], calls[i])
		}
	}

	items, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("expected empty queue, got %d items", len(items))
	}
	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	if len(notifier.drained) != 1 || notifier.drained[0] != 3 {
		t.Fatalf("expected one drained notification for 3 items, got %v", notifier.drained)
	}
}

func TestDrainNoopWhileOffline(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	uploader := newFakeUploader()
	d := newDrainer(t, store, uploader, newFakeNetwork(false), newRecordingNotifier(t))

	testsupport.Enqueue(t, store, "note.ogg", []byte("a"))
	report := d.Drain(context.Background(), false)
	if report.Uploaded != 0 || len(uploader.callIDs()) != 0 {
		t.Fatalf("expected no uploads while offline, got %#v", report)
	}
}

func TestTransientFailureKeepsItemAndBumpsAttempts(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	uploader := newFakeUploader()
	d := newDrainer(t, store, uploader, newFakeNetwork(true), newRecordingNotifier(t))

	ctx := context.Background()
	item := testsupport.Enqueue(t, store, "note.ogg", []byte("a"))
	uploader.script(item.ID, serverErr())

	report := d.Drain(ctx, false)
	if report.Retried != 1 || report.Uploaded != 0 {
		t.Fatalf("unexpected report: %#v", report)
	}

	fetched, err := store.GetByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if fetched.Status != queue.StatusPending || fetched.Attempts != 1 {
		t.Fatalf("expected pending item with 1 attempt, got %#v", fetched)
	}

	// Next cycle retries the same item; the scripted errors ran out so it
	// succeeds and leaves the store empty.
	report = d.Drain(ctx, false)
	if report.Uploaded != 1 {
		t.Fatalf("expected retry to succeed, got %#v", report)
	}
}

func TestConnectionLossEndsCycleWithoutBurningAttempts(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	uploader := newFakeUploader()
	d := newDrainer(t, store, uploader, newFakeNetwork(true), newRecordingNotifier(t))

	ctx := context.Background()
	base := time.Now().UTC().Add(-time.Hour)
	first := queue.NewItem("first.ogg", []byte("a"), "")
	first.EnqueuedAt = base
	if err := store.Put(ctx, first); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	second := queue.NewItem("second.ogg", []byte("b"), "")
	second.EnqueuedAt = base.Add(time.Minute)
	if err := store.Put(ctx, second); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	uploader.script(first.ID, errors.New("dial tcp 10.0.0.2:443: network is unreachable"))

	report := d.Drain(ctx, false)
	if !report.Halted || report.Retried != 0 || report.Abandoned != 0 {
		t.Fatalf("expected halted cycle with nothing retried, got %#v", report)
	}
	if calls := uploader.callIDs(); len(calls) != 1 || calls[0] != first.ID {
		t.Fatalf("expected only the first item attempted, got %v", calls)
	}

	for _, id := range []string{first.ID, second.ID} {
		fetched, err := store.GetByID(ctx, id)
		if err != nil {
			t.Fatalf("GetByID failed: %v", err)
		}
		if fetched.Status != queue.StatusPending || fetched.Attempts != 0 {
			t.Fatalf("expected untouched pending item, got %#v", fetched)
		}
	}

	// Once the connection is back a fresh cycle drains both items.
	report = d.Drain(ctx, false)
	if report.Uploaded != 2 || report.Halted {
		t.Fatalf("expected clean drain after reconnect, got %#v", report)
	}
}

func TestRejectionHaltsCycleAndParksItem(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	uploader := newFakeUploader()
	notifier := newRecordingNotifier(t)
	d := newDrainer(t, store, uploader, newFakeNetwork(true), notifier)

	ctx := context.Background()
	base := time.Now().UTC().Add(-time.Hour)
	bad := queue.NewItem("bad.ogg", []byte("x"), "")
	bad.EnqueuedAt = base
	if err := store.Put(ctx, bad); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	later := queue.NewItem("later.ogg", []byte("y"), "")
	later.EnqueuedAt = base.Add(time.Minute)
	if err := store.Put(ctx, later); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	uploader.script(bad.ID, rejectedErr())

	report := d.Drain(ctx, false)
	if !report.Halted {
		t.Fatalf("expected halted cycle, got %#v", report)
	}
	if calls := uploader.callIDs(); len(calls) != 1 || calls[0] != bad.ID {
		t.Fatalf("expected only the rejected item attempted, got %v", calls)
	}

	fetched, err := store.GetByID(ctx, bad.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if fetched.Status != queue.StatusFailed || fetched.ErrorMessage == "" {
		t.Fatalf("expected failed item with message, got %#v", fetched)
	}

	remaining, err := store.GetByID(ctx, later.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if remaining.Status != queue.StatusPending {
		t.Fatalf("expected later item untouched, got %#v", remaining)
	}

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	if len(notifier.rejected) != 1 || notifier.rejected[0] != "bad.ogg" {
		t.Fatalf("expected rejection notification, got %v", notifier.rejected)
	}
}

func TestGivesUpAfterMaxAttempts(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	uploader := newFakeUploader()
	notifier := newRecordingNotifier(t)
	d := newDrainer(t, store, uploader, newFakeNetwork(true), notifier)

	ctx := context.Background()
	item := testsupport.Enqueue(t, store, "stuck.ogg", []byte("a"))
	uploader.script(item.ID, serverErr(), serverErr(), serverErr(), serverErr())

	for i := 0; i < 3; i++ {
		d.Drain(ctx, false)
	}

	fetched, err := store.GetByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if fetched.Status != queue.StatusFailed {
		t.Fatalf("expected item parked after max attempts, got %#v", fetched)
	}
	if fetched.Attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", fetched.Attempts)
	}

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	if len(notifier.abandoned) != 1 {
		t.Fatalf("expected abandon notification, got %v", notifier.abandoned)
	}
}

func TestSingleDrainCycleAtATime(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	uploader := newFakeUploader()
	d := newDrainer(t, store, uploader, newFakeNetwork(true), newRecordingNotifier(t))

	ctx := context.Background()
	for i := 0; i < 10; i++ {
		testsupport.Enqueue(t, store, "note.ogg", []byte{byte(i)})
	}

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.Drain(ctx, false)
		}()
	}
	wg.Wait()

	uploader.mu.Lock()
	defer uploader.mu.Unlock()
	if uploader.maxInFlight > 1 {
		t.Fatalf("expected at most one in-flight upload, got %d", uploader.maxInFlight)
	}
	if len(uploader.calls) != 10 {
		t.Fatalf("expected each item uploaded exactly once, got %d calls", len(uploader.calls))
	}
}

func TestRunDrainsOnReconnect(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	uploader := newFakeUploader()
	network := newFakeNetwork(false)
	d := newDrainer(t, store, uploader, network, newRecordingNotifier(t))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Enqueue while offline, as the capture path does.
	item := testsupport.Enqueue(t, store, "offline.ogg", []byte("a"))

	done := make(chan struct{})
	go func() {
		defer close(done)
		d.Run(ctx)
	}()

	network.set(true)

	deadline := time.After(2 * time.Second)
	for {
		items, err := store.List(context.Background())
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(items) == 0 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("queue not drained after reconnect; item %s still present", item.ID)
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	<-done
}

func TestRequestDrainIncludesFailed(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	uploader := newFakeUploader()
	d := newDrainer(t, store, uploader, newFakeNetwork(true), newRecordingNotifier(t))

	ctx := context.Background()
	item := testsupport.Enqueue(t, store, "parked.ogg", []byte("a"))
	item.SetFailed("previously rejected")
	if err := store.Update(ctx, item); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	report := d.Drain(ctx, true)
	if report.Uploaded != 1 {
		t.Fatalf("expected requeued item uploaded, got %#v", report)
	}
}

func TestInterruptStopsRunningCycle(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	notifier := newRecordingNotifier(t)

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		testsupport.Enqueue(t, store, "note.ogg", []byte{byte(i)})
	}

	var d *drainer.Drainer
	blocker := uploaderFunc(func(context.Context, farmapi.UploadRequest) error {
		// Supersede the running cycle from inside the first upload.
		d.Interrupt()
		return nil
	})
	d = newDrainer(t, store, blocker, newFakeNetwork(true), notifier)

	report := d.Drain(ctx, false)
	if report.Uploaded != 1 {
		t.Fatalf("expected cycle to stop after being superseded, got %#v", report)
	}
}

type uploaderFunc func(ctx context.Context, req farmapi.UploadRequest) error

func (f uploaderFunc) Upload(ctx context.Context, req farmapi.UploadRequest) error {
	return f(ctx, req)
}
