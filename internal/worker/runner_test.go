package worker

import (
	"sync"
	"testing"
	"time"
)

func waitStopped(t *testing.T, r *LocalRunner, sessionID string) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if !r.IsRunning(sessionID) {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("worker for %s still running", sessionID)
}

func TestStopTerminatesWorker(t *testing.T) {
	exited := make(chan error, 1)
	r := NewLocalRunner("sleep 30", func(sessionID string, err error) { exited <- err }, nil, nil)

	if err := r.Start("s1", nil); err != nil {
		t.Fatalf("start: %v", err)
	}
	if !r.IsRunning("s1") {
		t.Fatalf("worker should be running after start")
	}
	if err := r.Stop("s1"); err != nil {
		t.Fatalf("stop: %v", err)
	}
	waitStopped(t, r, "s1")

	select {
	case <-exited:
	case <-time.After(3 * time.Second):
		t.Fatalf("exit callback never fired")
	}
}

func TestConcurrentStopsReapOnce(t *testing.T) {
	r := NewLocalRunner("sleep 30", nil, nil, nil)
	if err := r.Start("s1", nil); err != nil {
		t.Fatalf("start: %v", err)
	}

	// Every stopper blocks on the watcher; only the watcher reaps.
	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = r.Stop("s1")
		}()
	}
	wg.Wait()
	waitStopped(t, r, "s1")
}

func TestStopUnknownSession(t *testing.T) {
	r := NewLocalRunner("sleep 30", nil, nil, nil)
	if err := r.Stop("nope"); err == nil {
		t.Fatalf("expected error stopping a session with no worker")
	}
}

func TestDuplicateStartRejected(t *testing.T) {
	r := NewLocalRunner("sleep 30", nil, nil, nil)
	if err := r.Start("s1", nil); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := r.Start("s1", nil); err == nil {
		t.Fatalf("expected duplicate start to be rejected")
	}
	if err := r.Stop("s1"); err != nil {
		t.Fatalf("stop: %v", err)
	}
	waitStopped(t, r, "s1")
}
