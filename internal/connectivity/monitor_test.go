package connectivity_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"furrow/internal/connectivity"
)

func waitChange(t *testing.T, ch <-chan connectivity.Change) connectivity.Change {
	t.Helper()
	select {
	case change, ok := <-ch:
		if !ok {
			t.Fatal("subscription closed unexpectedly")
		}
		return change
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for connectivity change")
	}
	return connectivity.Change{}
}

func TestMonitorEmitsEdgesOnly(t *testing.T) {
	var online atomic.Bool
	online.Store(true)
	probe := connectivity.ProbeFunc(func(context.Context) bool { return online.Load() })

	monitor := connectivity.NewMonitor(probe, 5*time.Millisecond, nil)
	ch, cancel := monitor.Subscribe()
	defer cancel()

	ctx, cancelCtx := context.WithCancel(context.Background())
	defer cancelCtx()
	monitor.Start(ctx)
	defer monitor.Stop()

	if !monitor.Online() {
		t.Fatal("expected monitor to start online")
	}

	online.Store(false)
	change := waitChange(t, ch)
	if change.Online {
		t.Fatal("expected offline edge")
	}

	online.Store(true)
	change = waitChange(t, ch)
	if !change.Online {
		t.Fatal("expected online edge")
	}

	// Steady state must not produce further events.
	select {
	case extra := <-ch:
		t.Fatalf("unexpected change while steady: %#v", extra)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMonitorDefaultsOnlineWithoutProbe(t *testing.T) {
	monitor := connectivity.NewMonitor(nil, time.Second, nil)
	monitor.Start(context.Background())
	defer monitor.Stop()

	if !monitor.Online() {
		t.Fatal("expected optimistic online default")
	}
}

func TestSubscribeCancelStopsDelivery(t *testing.T) {
	var online atomic.Bool
	online.Store(true)
	probe := connectivity.ProbeFunc(func(context.Context) bool { return online.Load() })

	monitor := connectivity.NewMonitor(probe, 5*time.Millisecond, nil)
	ch, cancel := monitor.Subscribe()

	monitor.Start(context.Background())
	defer monitor.Stop()

	cancel()
	if _, ok := <-ch; ok {
		t.Fatal("expected channel closed after cancel")
	}
}

func TestConcurrentStartStopIsSafe(t *testing.T) {
	probe := connectivity.ProbeFunc(func(context.Context) bool { return true })

	for i := 0; i < 20; i++ {
		monitor := connectivity.NewMonitor(probe, time.Millisecond, nil)
		ctx, cancelCtx := context.WithCancel(context.Background())

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			monitor.Start(ctx)
		}()
		go func() {
			defer wg.Done()
			monitor.Stop()
		}()
		wg.Wait()

		monitor.Stop()
		cancelCtx()
	}
}
