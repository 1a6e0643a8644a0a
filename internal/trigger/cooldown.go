package trigger

import (
	"sync"
	"time"
)

// Cooldown is the reply cooldown of one trigger. It starts enabled. A
// successful reply calls [Cooldown.Engage], which disables the trigger for
// the configured timeout; expiry re-enables it. Engaging while already
// disabled does not extend the window.
type Cooldown struct {
	timeout  time.Duration
	sched    *Scheduler
	onChange func(coolingDown bool)

	mu      sync.Mutex
	enabled bool
	gen     uint64
	cancel  func() bool
}

// NewCooldown returns an enabled cooldown. A timeout of zero makes Engage a
// no-op. onChange, if non-nil, is called outside the lock whenever the
// trigger enters or leaves the cooldown window.
func NewCooldown(timeout time.Duration, sched *Scheduler, onChange func(coolingDown bool)) *Cooldown {
	if onChange == nil {
		onChange = func(bool) {}
	}
	return &Cooldown{
		timeout:  timeout,
		sched:    sched,
		onChange: onChange,
		enabled:  true,
	}
}

// Enabled reports whether the trigger currently accepts events.
func (c *Cooldown) Enabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enabled
}

// Engage starts the cooldown window and reports whether it did. It is a
// no-op when the timeout is zero, when the window is already running, or
// when the scheduler has been closed.
func (c *Cooldown) Engage() bool {
	c.mu.Lock()
	if c.timeout <= 0 || !c.enabled {
		c.mu.Unlock()
		return false
	}
	c.gen++
	gen := c.gen
	cancel, err := c.sched.Schedule(c.timeout, func() { c.expire(gen) })
	if err != nil {
		c.mu.Unlock()
		return false
	}
	c.enabled = false
	c.cancel = cancel
	c.mu.Unlock()

	c.onChange(true)
	return true
}

func (c *Cooldown) expire(gen uint64) {
	c.mu.Lock()
	if c.gen != gen || c.enabled {
		c.mu.Unlock()
		return
	}
	c.enabled = true
	c.cancel = nil
	c.mu.Unlock()

	c.onChange(false)
}

// Reset cancels a running window and re-enables the trigger immediately.
func (c *Cooldown) Reset() {
	c.mu.Lock()
	wasDisabled := !c.enabled
	c.stopLocked()
	c.enabled = true
	c.mu.Unlock()

	if wasDisabled {
		c.onChange(false)
	}
}

// Stop cancels a pending expiry without re-enabling. Used at shutdown.
func (c *Cooldown) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
}

func (c *Cooldown) stopLocked() {
	c.gen++
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}
