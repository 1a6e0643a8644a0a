package resilience

import (
	"errors"
	"sync"
	"testing"
	"time"
)

var errTest = errors.New("test error")

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock { return &fakeClock{now: time.Unix(1_700_000_000, 0)} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func fail() error    { return errTest }
func succeed() error { return nil }

func TestNewCircuitBreaker_Defaults(t *testing.T) {
	t.Parallel()
	cb := NewCircuitBreaker(Config{Name: "test"})
	if cb.cfg.MaxFailures != 5 {
		t.Errorf("MaxFailures = %d, want 5", cb.cfg.MaxFailures)
	}
	if cb.cfg.ResetTimeout != 30*time.Second {
		t.Errorf("ResetTimeout = %v, want 30s", cb.cfg.ResetTimeout)
	}
	if cb.cfg.HalfOpenMax != 1 {
		t.Errorf("HalfOpenMax = %d, want 1", cb.cfg.HalfOpenMax)
	}
	if cb.State() != StateClosed {
		t.Errorf("initial state = %v, want closed", cb.State())
	}
	if cb.Name() != "test" {
		t.Errorf("Name() = %q", cb.Name())
	}
}

func TestCircuitBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	t.Parallel()
	clock := newFakeClock()
	cb := NewCircuitBreaker(Config{Name: "dial", MaxFailures: 3, ResetTimeout: time.Minute, Now: clock.Now})

	for range 3 {
		if err := cb.Execute(fail); !errors.Is(err, errTest) {
			t.Fatalf("Execute = %v, want errTest", err)
		}
	}
	if cb.State() != StateOpen {
		t.Fatalf("state = %v, want open", cb.State())
	}

	called := false
	err := cb.Execute(func() error { called = true; return nil })
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("Execute while open = %v, want ErrCircuitOpen", err)
	}
	if called {
		t.Error("fn ran while the breaker was open")
	}
	if got := cb.RetryAfter(); got != time.Minute {
		t.Errorf("RetryAfter = %v, want 1m", got)
	}
	clock.Advance(20 * time.Second)
	if got := cb.RetryAfter(); got != 40*time.Second {
		t.Errorf("RetryAfter = %v, want 40s", got)
	}
}

func TestCircuitBreaker_SuccessResetsFailureCount(t *testing.T) {
	t.Parallel()
	cb := NewCircuitBreaker(Config{Name: "test", MaxFailures: 3})

	_ = cb.Execute(fail)
	_ = cb.Execute(fail)
	_ = cb.Execute(succeed)
	_ = cb.Execute(fail)
	_ = cb.Execute(fail)

	if cb.State() != StateClosed {
		t.Errorf("state = %v, want closed: failures were not consecutive", cb.State())
	}
}

func TestCircuitBreaker_HalfOpenTransitions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		probe  func() error
		want   State
		reopen bool
	}{
		{name: "successful probe closes", probe: succeed, want: StateClosed},
		{name: "failed probe re-opens", probe: fail, want: StateOpen, reopen: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			clock := newFakeClock()
			cb := NewCircuitBreaker(Config{Name: "test", MaxFailures: 1, ResetTimeout: time.Second, Now: clock.Now})

			_ = cb.Execute(fail)
			clock.Advance(time.Second)
			if cb.State() != StateHalfOpen {
				t.Fatalf("state after timeout = %v, want half-open", cb.State())
			}

			_ = cb.Execute(tt.probe)
			if cb.State() != tt.want {
				t.Errorf("state after probe = %v, want %v", cb.State(), tt.want)
			}
			if tt.reopen && cb.RetryAfter() != time.Second {
				t.Errorf("re-opened breaker should restart its timeout, RetryAfter = %v", cb.RetryAfter())
			}
		})
	}
}

func TestCircuitBreaker_HalfOpenLimitsProbes(t *testing.T) {
	t.Parallel()
	clock := newFakeClock()
	cb := NewCircuitBreaker(Config{Name: "test", MaxFailures: 1, ResetTimeout: time.Second, Now: clock.Now})
	_ = cb.Execute(fail)
	clock.Advance(time.Second)

	release := make(chan struct{})
	started := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- cb.Execute(func() error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	if err := cb.Execute(succeed); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("second probe = %v, want ErrCircuitOpen", err)
	}
	close(release)
	if err := <-done; err != nil {
		t.Fatalf("probe: %v", err)
	}
	if cb.State() != StateClosed {
		t.Errorf("state = %v, want closed", cb.State())
	}
}

func TestCircuitBreaker_OnStateChange(t *testing.T) {
	t.Parallel()
	clock := newFakeClock()
	var mu sync.Mutex
	var seen []string
	cb := NewCircuitBreaker(Config{
		Name:         "gw",
		MaxFailures:  1,
		ResetTimeout: time.Second,
		Now:          clock.Now,
		OnStateChange: func(name string, from, to State) {
			mu.Lock()
			seen = append(seen, name+":"+from.String()+"->"+to.String())
			mu.Unlock()
		},
	})

	_ = cb.Execute(fail)
	clock.Advance(time.Second)
	_ = cb.Execute(succeed)
	_ = cb.Execute(fail)
	cb.Reset()

	want := []string{
		"gw:closed->open",
		"gw:open->half-open",
		"gw:half-open->closed",
		"gw:closed->open",
		"gw:open->closed",
	}
	mu.Lock()
	defer mu.Unlock()
	if len(seen) != len(want) {
		t.Fatalf("transitions = %v, want %v", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Errorf("transition %d = %q, want %q", i, seen[i], want[i])
		}
	}
}

func TestCircuitBreaker_Reset(t *testing.T) {
	t.Parallel()
	cb := NewCircuitBreaker(Config{Name: "test", MaxFailures: 1, ResetTimeout: time.Hour})
	_ = cb.Execute(fail)
	if cb.State() != StateOpen {
		t.Fatalf("state = %v, want open", cb.State())
	}
	cb.Reset()
	if cb.State() != StateClosed {
		t.Errorf("state after Reset = %v, want closed", cb.State())
	}
	if cb.RetryAfter() != 0 {
		t.Errorf("RetryAfter after Reset = %v, want 0", cb.RetryAfter())
	}
}

func TestState_String(t *testing.T) {
	t.Parallel()
	tests := []struct {
		state State
		want  string
	}{
		{StateClosed, "closed"},
		{StateOpen, "open"},
		{StateHalfOpen, "half-open"},
		{State(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}
