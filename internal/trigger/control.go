package trigger

import (
	"context"
	"fmt"
)

// Status is the operator-facing view of one loaded trigger. Options are left
// out because they may carry credentials.
type Status struct {
	Name    string `json:"name"`
	Type    Type   `json:"type"`
	Enabled bool   `json:"enabled"`
}

// Controller exposes the operator actions shared by the admin API and the
// chat command surfaces.
type Controller struct {
	engine   *Engine
	registry *Registry
}

// NewController returns a Controller acting on the triggers held by e and
// persisting through r.
func NewController(e *Engine, r *Registry) *Controller {
	return &Controller{engine: e, registry: r}
}

// Session returns the session the controlled engine serves.
func (c *Controller) Session() string { return c.engine.Session() }

// List returns the status of every loaded trigger in dispatch order.
func (c *Controller) List() []Status {
	ts := c.engine.Triggers()
	out := make([]Status, 0, len(ts))
	for _, t := range ts {
		out = append(out, Status{Name: t.Name(), Type: t.Type(), Enabled: t.Enabled()})
	}
	return out
}

// Save writes the named trigger back to the store.
func (c *Controller) Save(ctx context.Context, name string) error {
	t, ok := c.engine.Lookup(name)
	if !ok {
		return fmt.Errorf("%w: %q", ErrNoSuchTrigger, name)
	}
	return c.registry.Save(ctx, t)
}

// Reset cancels a running cooldown on the named trigger.
func (c *Controller) Reset(name string) error {
	t, ok := c.engine.Lookup(name)
	if !ok {
		return fmt.Errorf("%w: %q", ErrNoSuchTrigger, name)
	}
	t.ResetCooldown()
	return nil
}
