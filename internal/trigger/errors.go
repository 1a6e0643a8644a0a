package trigger

import "errors"

var (
	// ErrUnknownType is returned when a record names a type with no
	// registered factory.
	ErrUnknownType = errors.New("trigger: unknown type")

	// ErrInvalidOptions is returned when an option document cannot be
	// decoded or violates a range constraint.
	ErrInvalidOptions = errors.New("trigger: invalid options")

	// ErrPersistence wraps every failure to write a trigger back to its
	// store.
	ErrPersistence = errors.New("trigger: persistence failure")

	// ErrUnsupported is returned by strategies when the chat client lacks a
	// capability they need, for example moderation.
	ErrUnsupported = errors.New("trigger: capability not supported by client")

	// ErrNoSuchTrigger is returned by [Controller] when no loaded trigger
	// has the requested name.
	ErrNoSuchTrigger = errors.New("trigger: no such trigger")

	// ErrClosed is returned by [DelayedSender.Send] after [Scheduler.Close].
	ErrClosed = errors.New("trigger: scheduler closed")
)
