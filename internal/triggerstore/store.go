// Package triggerstore persists trigger records: the type tag and the option
// document of every trigger configured for a chat session.
//
// Four backends implement [Store]: [FileStore] (one JSON document per
// trigger on disk), [PostgresStore], [SQLiteStore] and [MemStore]. All of
// them key records by (session, name); Put overwrites unconditionally.
package triggerstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned by [Store.Get] when no record with the requested
// name exists in the session.
var ErrNotFound = errors.New("triggerstore: record not found")

// ErrInvalidName is returned when a session or trigger name cannot be used as
// a storage key.
var ErrInvalidName = errors.New("triggerstore: invalid name")

// Record is one persisted trigger.
type Record struct {
	// Name is the unique trigger name within the session.
	Name string `json:"-"`

	// Type is the tag used to look up the trigger factory.
	Type string `json:"type"`

	// Options is the raw JSON option document. It is decoded by the trigger
	// package, never by the store.
	Options json.RawMessage `json:"options"`
}

// Store lists, reads and writes trigger records for a session.
//
// Implementations must be safe for concurrent use.
type Store interface {
	// List returns every record in the session ordered by name. A session
	// with no records yields an empty slice and a nil error.
	List(ctx context.Context, session string) ([]Record, error)

	// Get returns the named record or an error wrapping [ErrNotFound].
	Get(ctx context.Context, session, name string) (Record, error)

	// Put creates or replaces the record keyed by rec.Name, creating the
	// session's storage area if it does not exist yet.
	Put(ctx context.Context, session string, rec Record) error
}

// ValidateName reports whether s can be used as a session or trigger name.
// Names are non-empty, contain no path separators and are not "." or "..".
func ValidateName(s string) error {
	switch {
	case s == "":
		return fmt.Errorf("%w: empty", ErrInvalidName)
	case s == "." || s == "..":
		return fmt.Errorf("%w: %q", ErrInvalidName, s)
	case strings.ContainsAny(s, `/\`+"\x00"):
		return fmt.Errorf("%w: %q contains a path separator", ErrInvalidName, s)
	}
	return nil
}

func validateKey(session, name string) error {
	if err := ValidateName(session); err != nil {
		return fmt.Errorf("session: %w", err)
	}
	if err := ValidateName(name); err != nil {
		return fmt.Errorf("trigger: %w", err)
	}
	return nil
}

// optionsOrEmpty returns "{}" for a nil option document so every backend
// stores valid JSON.
func optionsOrEmpty(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return json.RawMessage("{}")
	}
	return raw
}
