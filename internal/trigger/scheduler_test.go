package trigger

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestScheduler_RunsTask(t *testing.T) {
	t.Parallel()

	s := NewScheduler()
	defer s.Close()

	done := make(chan struct{})
	if _, err := s.Schedule(5*time.Millisecond, func() { close(done) }); err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("task did not run")
	}
	if n := s.Pending(); n != 0 {
		t.Errorf("Pending after run = %d, want 0", n)
	}
}

func TestScheduler_CancelPreventsRun(t *testing.T) {
	t.Parallel()

	s := NewScheduler()
	defer s.Close()

	var ran atomic.Bool
	cancel, err := s.Schedule(20*time.Millisecond, func() { ran.Store(true) })
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	if !cancel() {
		t.Fatal("cancel() = false for a pending task")
	}
	if cancel() {
		t.Error("second cancel() = true, want false")
	}
	time.Sleep(50 * time.Millisecond)
	if ran.Load() {
		t.Error("cancelled task ran")
	}
}

func TestScheduler_Close(t *testing.T) {
	t.Parallel()

	s := NewScheduler()
	var ran atomic.Int32
	for range 3 {
		if _, err := s.Schedule(20*time.Millisecond, func() { ran.Add(1) }); err != nil {
			t.Fatalf("Schedule: %v", err)
		}
	}
	if n := s.Pending(); n != 3 {
		t.Fatalf("Pending = %d, want 3", n)
	}

	s.Close()
	if n := s.Pending(); n != 0 {
		t.Errorf("Pending after Close = %d, want 0", n)
	}
	if _, err := s.Schedule(time.Millisecond, func() {}); !errors.Is(err, ErrClosed) {
		t.Errorf("Schedule after Close = %v, want ErrClosed", err)
	}
	time.Sleep(50 * time.Millisecond)
	if n := ran.Load(); n != 0 {
		t.Errorf("%d tasks ran after Close", n)
	}
}
