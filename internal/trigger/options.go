package trigger

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"slices"
	"time"
)

// Options is the persisted configuration of one trigger. Pointer fields are
// optional; nil means "not configured".
type Options struct {
	// Delay is the number of milliseconds to wait before sending a reply.
	Delay *int64 `json:"delay,omitempty"`

	// Probability gates whether a reply is attempted at all. Must be in
	// [0, 1].
	Probability *float64 `json:"probability,omitempty"`

	// Timeout is the cooldown in milliseconds after a successful reply.
	Timeout *int64 `json:"timeout,omitempty"`

	// Ignore lists participant and room IDs that are never replied to.
	Ignore []string `json:"ignore,omitempty"`

	// Users restricts the trigger to these participant IDs. Empty allows
	// everyone.
	Users []string `json:"users,omitempty"`

	// Rooms restricts the trigger to these room IDs. Empty allows every
	// room.
	Rooms []string `json:"rooms,omitempty"`

	// Command is the prefix for command-style triggers, e.g. "!unban".
	Command string `json:"command,omitempty"`

	// Matches are the ordered patterns matched against message text.
	Matches []string `json:"matches,omitempty"`

	// Responses are the ordered reply templates.
	Responses []string `json:"responses,omitempty"`

	// APIKey is an opaque secret for strategies that call external
	// services.
	APIKey string `json:"apiKey,omitempty"`
}

// DecodeOptions parses a stored option document. Unknown keys are rejected
// so that typos surface at load time. An empty document yields zero Options.
// The result is validated.
func DecodeOptions(raw []byte) (Options, error) {
	var o Options
	if len(bytes.TrimSpace(raw)) == 0 {
		return o, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&o); err != nil {
		return Options{}, fmt.Errorf("%w: %w", ErrInvalidOptions, err)
	}
	if err := o.Validate(); err != nil {
		return Options{}, err
	}
	return o, nil
}

// Encode returns the indented JSON document persisted for o. Empty lists and
// strings are omitted.
func (o Options) Encode() (json.RawMessage, error) {
	data, err := json.MarshalIndent(o.Normalized(), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("trigger: encode options: %w", err)
	}
	return data, nil
}

// Validate checks the range constraints and returns every violation joined
// into one error wrapping [ErrInvalidOptions].
func (o Options) Validate() error {
	var errs []error
	if o.Probability != nil {
		if p := *o.Probability; math.IsNaN(p) || p < 0 || p > 1 {
			errs = append(errs, fmt.Errorf("probability %v outside [0,1]", p))
		}
	}
	if o.Delay != nil && *o.Delay < 0 {
		errs = append(errs, fmt.Errorf("delay %d is negative", *o.Delay))
	}
	if o.Timeout != nil && *o.Timeout < 0 {
		errs = append(errs, fmt.Errorf("timeout %d is negative", *o.Timeout))
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidOptions, errors.Join(errs...))
}

// DelayDuration converts Delay from milliseconds. Zero means "send now".
func (o Options) DelayDuration() time.Duration {
	if o.Delay == nil {
		return 0
	}
	return time.Duration(*o.Delay) * time.Millisecond
}

// TimeoutDuration converts Timeout from milliseconds. Zero disables the
// cooldown.
func (o Options) TimeoutDuration() time.Duration {
	if o.Timeout == nil {
		return 0
	}
	return time.Duration(*o.Timeout) * time.Millisecond
}

// Clone returns a deep copy of o.
func (o Options) Clone() Options {
	c := o
	c.Delay = clonePtr(o.Delay)
	c.Probability = clonePtr(o.Probability)
	c.Timeout = clonePtr(o.Timeout)
	c.Ignore = slices.Clone(o.Ignore)
	c.Users = slices.Clone(o.Users)
	c.Rooms = slices.Clone(o.Rooms)
	c.Matches = slices.Clone(o.Matches)
	c.Responses = slices.Clone(o.Responses)
	return c
}

// Normalized returns a deep copy with empty lists set to nil, so that a
// save and reload compares equal with [reflect.DeepEqual].
func (o Options) Normalized() Options {
	c := o.Clone()
	for _, l := range []*[]string{&c.Ignore, &c.Users, &c.Rooms, &c.Matches, &c.Responses} {
		if len(*l) == 0 {
			*l = nil
		}
	}
	return c
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// Int64 returns a pointer to v. Handy for building [Options] literals.
func Int64(v int64) *int64 { return &v }

// Float64 returns a pointer to v.
func Float64(v float64) *float64 { return &v }
