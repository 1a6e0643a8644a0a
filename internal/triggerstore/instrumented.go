package triggerstore

import (
	"context"
	"time"

	"github.com/MrWong99/chattrigger/internal/observe"
)

// Instrumented wraps a [Store] and records every call in
// [observe.Metrics.StoreOperations] labelled with backend.
type Instrumented struct {
	next    Store
	backend string
	metrics *observe.Metrics
}

var _ Store = (*Instrumented)(nil)

// Instrument wraps next. A nil m uses [observe.DefaultMetrics].
func Instrument(next Store, backend string, m *observe.Metrics) *Instrumented {
	if m == nil {
		m = observe.DefaultMetrics()
	}
	return &Instrumented{next: next, backend: backend, metrics: m}
}

// Unwrap returns the wrapped store.
func (s *Instrumented) Unwrap() Store { return s.next }

func (s *Instrumented) record(ctx context.Context, op string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	s.metrics.RecordStoreOp(ctx, s.backend, op, status)
	observe.Logger(ctx, nil).Debug("trigger store call",
		"backend", s.backend, "op", op, "status", status, "duration", time.Since(start))
}

// List implements [Store].
func (s *Instrumented) List(ctx context.Context, session string) ([]Record, error) {
	start := time.Now()
	recs, err := s.next.List(ctx, session)
	s.record(ctx, "list", start, err)
	return recs, err
}

// Get implements [Store].
func (s *Instrumented) Get(ctx context.Context, session, name string) (Record, error) {
	start := time.Now()
	rec, err := s.next.Get(ctx, session, name)
	s.record(ctx, "get", start, err)
	return rec, err
}

// Put implements [Store].
func (s *Instrumented) Put(ctx context.Context, session string, rec Record) error {
	start := time.Now()
	err := s.next.Put(ctx, session, rec)
	s.record(ctx, "put", start, err)
	return err
}
