package triggerstore

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
)

// MemStore is an in-memory [Store] used by tests and dry runs.
type MemStore struct {
	mu       sync.RWMutex
	sessions map[string]map[string]Record
}

var _ Store = (*MemStore)(nil)

// NewMemStore returns an empty store.
func NewMemStore() *MemStore {
	return &MemStore{sessions: make(map[string]map[string]Record)}
}

// List implements [Store].
func (s *MemStore) List(_ context.Context, session string) ([]Record, error) {
	if err := ValidateName(session); err != nil {
		return nil, fmt.Errorf("triggerstore: list: %w", err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	recs := make([]Record, 0, len(s.sessions[session]))
	for _, rec := range s.sessions[session] {
		recs = append(recs, cloneRecord(rec))
	}
	slices.SortFunc(recs, func(a, b Record) int { return strings.Compare(a.Name, b.Name) })
	return recs, nil
}

// Get implements [Store].
func (s *MemStore) Get(_ context.Context, session, name string) (Record, error) {
	if err := validateKey(session, name); err != nil {
		return Record{}, fmt.Errorf("triggerstore: get: %w", err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.sessions[session][name]
	if !ok {
		return Record{}, fmt.Errorf("triggerstore: %s/%s: %w", session, name, ErrNotFound)
	}
	return cloneRecord(rec), nil
}

// Put implements [Store].
func (s *MemStore) Put(_ context.Context, session string, rec Record) error {
	if err := validateKey(session, rec.Name); err != nil {
		return fmt.Errorf("triggerstore: put: %w", err)
	}
	rec = cloneRecord(rec)
	rec.Options = optionsOrEmpty(rec.Options)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sessions[session] == nil {
		s.sessions[session] = make(map[string]Record)
	}
	s.sessions[session][rec.Name] = rec
	return nil
}

func cloneRecord(rec Record) Record {
	rec.Options = slices.Clone(rec.Options)
	return rec
}
