package trigger

import (
	"sync"
	"time"
)

// Scheduler runs one-shot deferred tasks on [time.AfterFunc] goroutines and
// can cancel them individually or all at once. The zero value is not usable;
// call [NewScheduler].
type Scheduler struct {
	mu     sync.Mutex
	nextID uint64
	tasks  map[uint64]*time.Timer
	closed bool
}

// NewScheduler returns an empty, open scheduler.
func NewScheduler() *Scheduler {
	return &Scheduler{tasks: make(map[uint64]*time.Timer)}
}

// Schedule runs fn once after d. The returned cancel function reports whether
// it prevented fn from running; once cancel returns true fn is guaranteed not
// to run. Schedule returns [ErrClosed] after [Scheduler.Close].
func (s *Scheduler) Schedule(d time.Duration, fn func()) (cancel func() bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}

	s.nextID++
	id := s.nextID
	s.tasks[id] = time.AfterFunc(d, func() {
		if !s.claim(id) {
			return
		}
		fn()
	})
	return func() bool { return s.cancel(id) }, nil
}

// claim removes task id and reports whether it was still pending.
func (s *Scheduler) claim(id uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[id]; !ok {
		return false
	}
	delete(s.tasks, id)
	return true
}

func (s *Scheduler) cancel(id uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return false
	}
	t.Stop()
	delete(s.tasks, id)
	return true
}

// Pending returns the number of scheduled tasks that have neither run nor
// been cancelled.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// Close cancels every pending task and rejects further scheduling. Tasks
// already running are not interrupted.
func (s *Scheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for id, t := range s.tasks {
		t.Stop()
		delete(s.tasks, id)
	}
}
