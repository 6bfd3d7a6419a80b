package supervisor

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func stopWithin(t *testing.T, s *Supervisor, d time.Duration) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	err := s.Stop(ctx)
	if errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("supervisor did not stop within %s", d)
	}
	return err
}

func TestGoCancelOnError(t *testing.T) {
	s := New(context.Background(), WithCancelOnError(true))
	s.Go("failing", func(context.Context) error { return errors.New("boom") })
	s.Go("waiter", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	select {
	case <-s.Context().Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("context was not cancelled")
	}
	err := stopWithin(t, s, 2*time.Second)
	if err == nil || !strings.Contains(err.Error(), "failing: boom") {
		t.Fatalf("Err = %v", err)
	}
}

func TestGoRecoversPanic(t *testing.T) {
	s := New(context.Background())
	s.Go0("panicky", func(context.Context) { panic("kaboom") })
	err := stopWithin(t, s, 2*time.Second)
	if err == nil || !strings.Contains(err.Error(), "kaboom") {
		t.Fatalf("Err = %v", err)
	}
	snap := s.Snapshot()
	if len(snap.Tasks) != 1 || snap.Tasks[0].Panics != 1 {
		t.Fatalf("snapshot = %+v", snap)
	}
}

func TestGoRestartUntilSuccess(t *testing.T) {
	s := New(context.Background())
	var runs atomic.Int32
	done := make(chan struct{})
	s.GoRestart("flaky", func(context.Context) error {
		if runs.Add(1) < 3 {
			return errors.New("transient")
		}
		close(done)
		return nil
	}, WithRestartBackoff(time.Millisecond, 5*time.Millisecond))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("restart loop did not reach success (runs=%d)", runs.Load())
	}
	if err := stopWithin(t, s, 2*time.Second); err != nil {
		t.Fatalf("unexpected Err without WithPublishFirstError: %v", err)
	}
	for _, ts := range s.Snapshot().Tasks {
		if ts.Name == "flaky" && ts.Restarts != 2 {
			t.Fatalf("restarts = %d, want 2", ts.Restarts)
		}
	}
}

func TestGoRestartGivesUp(t *testing.T) {
	s := New(context.Background())
	var runs atomic.Int32
	s.GoRestart("broken", func(context.Context) error {
		runs.Add(1)
		return errors.New("always")
	}, WithRestartBackoff(time.Millisecond, time.Millisecond), WithMaxRestarts(2))

	err := stopAfterQuiet(t, s)
	if runs.Load() != 3 {
		t.Fatalf("runs = %d, want 3", runs.Load())
	}
	if err == nil || !strings.Contains(err.Error(), "broken: always") {
		t.Fatalf("Err = %v", err)
	}
}

// stopAfterQuiet waits for all goroutines to exit on their own.
func stopAfterQuiet(t *testing.T, s *Supervisor) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := s.Wait(ctx)
	if errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("goroutines still running")
	}
	return err
}

func TestRegistrySnapshots(t *testing.T) {
	reg := NewRegistry()
	sup := New(context.Background())
	defer sup.Cancel()
	sup.Go0("idle", func(ctx context.Context) { <-ctx.Done() })

	reg.Set("live", func() *Supervisor { return sup })
	reg.Set("gone", func() *Supervisor { return nil })

	got := reg.Snapshots()
	if _, ok := got["gone"]; ok || len(got) != 1 {
		t.Fatalf("snapshots = %v", got)
	}
	if got["live"].Active != 1 {
		t.Fatalf("live supervisor should be active: %+v", got["live"])
	}
	reg.Set("live", nil)
	if len(reg.Snapshots()) != 0 {
		t.Fatalf("entry not removed")
	}
}
