package trigger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"slices"
	"sync"

	"github.com/MrWong99/chattrigger/internal/observe"
	"github.com/MrWong99/chattrigger/internal/triggerstore"
)

// Registry maps type tags to factories and turns stored records into
// [Trigger] instances. Register all factories before the first LoadAll.
type Registry struct {
	mu        sync.RWMutex
	factories map[Type]Factory

	store   triggerstore.Store
	client  Client
	sched   *Scheduler
	roll    func() float64
	logger  *slog.Logger
	metrics *observe.Metrics

	saveMu sync.Mutex
}

// RegistryOption configures a [Registry].
type RegistryOption func(*Registry)

// WithLogger sets the base logger. Default: [slog.Default].
func WithLogger(l *slog.Logger) RegistryOption {
	return func(r *Registry) { r.logger = l }
}

// WithMetrics sets the metrics sink. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) RegistryOption {
	return func(r *Registry) { r.metrics = m }
}

// WithScheduler sets the scheduler shared by every cooldown and delayed
// sender. Default: a new [Scheduler].
func WithScheduler(s *Scheduler) RegistryOption {
	return func(r *Registry) { r.sched = s }
}

// WithRoll replaces the probability source. fn must return values in
// [0, 1). Default: [rand.Float64].
func WithRoll(fn func() float64) RegistryOption {
	return func(r *Registry) { r.roll = fn }
}

// NewRegistry returns a registry reading from and writing to store. client
// is handed to every strategy for outbound messages.
func NewRegistry(store triggerstore.Store, client Client, opts ...RegistryOption) *Registry {
	r := &Registry{
		factories: make(map[Type]Factory),
		store:     store,
		client:    client,
	}
	for _, o := range opts {
		o(r)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	if r.metrics == nil {
		r.metrics = observe.DefaultMetrics()
	}
	if r.sched == nil {
		r.sched = NewScheduler()
	}
	if r.roll == nil {
		r.roll = rand.Float64
	}
	return r
}

// Register adds a factory for tag. Registering the same tag again replaces
// the previous factory.
func (r *Registry) Register(tag Type, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[tag] = f
}

// Types returns the registered tags in sorted order.
func (r *Registry) Types() []Type {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Type, 0, len(r.factories))
	for tag := range r.factories {
		out = append(out, tag)
	}
	slices.Sort(out)
	return out
}

// Scheduler returns the scheduler owned by the registry.
func (r *Registry) Scheduler() *Scheduler { return r.sched }

// New builds a trigger from its parts and runs the strategy's OnLoad hook.
func (r *Registry) New(ctx context.Context, session, name string, tag Type, opts Options) (*Trigger, error) {
	if err := triggerstore.ValidateName(name); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidOptions, err)
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	factory, ok := r.factories[tag]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, tag)
	}

	opts = opts.Normalized()
	logger := r.logger.With("session", session, "trigger", name, "type", string(tag))
	sender := NewDelayedSender(r.client, opts.DelayDuration(), r.sched, name, logger, r.metrics)

	strategy, err := factory(Env{
		Session: session,
		Name:    name,
		Type:    tag,
		Options: opts.Clone(),
		Client:  r.client,
		Sender:  sender,
		Logger:  logger,
	})
	if err != nil {
		return nil, fmt.Errorf("trigger: build %q: %w", name, err)
	}

	t := &Trigger{
		typ:      tag,
		name:     name,
		session:  session,
		opts:     opts,
		strategy: strategy,
		sender:   sender,
		roll:     r.roll,
		logger:   logger,
		metrics:  r.metrics,
	}
	t.cooldown = NewCooldown(opts.TimeoutDuration(), r.sched, func(coolingDown bool) {
		delta := int64(-1)
		if coolingDown {
			delta = 1
		}
		r.metrics.CoolingDown.Add(context.Background(), delta)
	})

	loaded, err := r.onLoad(ctx, t)
	if err != nil {
		return nil, fmt.Errorf("trigger: load %q: %w", name, err)
	}
	if !loaded {
		return nil, fmt.Errorf("trigger: load %q: strategy declined", name)
	}
	r.metrics.LoadedTriggers.Add(ctx, 1)
	return t, nil
}

func (r *Registry) onLoad(ctx context.Context, t *Trigger) (ok bool, err error) {
	defer func() {
		if p := recover(); p != nil {
			ok, err = false, fmt.Errorf("panic in OnLoad: %v", p)
		}
	}()
	return t.strategy.OnLoad(ctx)
}

// FromRecord decodes rec and builds its trigger.
func (r *Registry) FromRecord(ctx context.Context, session string, rec triggerstore.Record) (*Trigger, error) {
	if rec.Type == "" {
		return nil, fmt.Errorf("%w: record %q has no type", ErrUnknownType, rec.Name)
	}
	opts, err := DecodeOptions(rec.Options)
	if err != nil {
		return nil, err
	}
	return r.New(ctx, session, rec.Name, Type(rec.Type), opts)
}

// LoadAll builds a trigger for every record stored for session, in store
// order. Records that cannot be built are logged and skipped; only a failure
// to list the store is returned.
func (r *Registry) LoadAll(ctx context.Context, session string) ([]*Trigger, error) {
	recs, err := r.store.List(ctx, session)
	if err != nil {
		return nil, fmt.Errorf("trigger: list %q: %w", session, err)
	}

	triggers := make([]*Trigger, 0, len(recs))
	for _, rec := range recs {
		t, err := r.FromRecord(ctx, session, rec)
		if err != nil {
			r.logger.Warn("skipping trigger",
				"session", session, "trigger", rec.Name, "type", rec.Type, "err", err)
			continue
		}
		triggers = append(triggers, t)
	}
	r.logger.Info("triggers loaded", "session", session, "loaded", len(triggers), "stored", len(recs))
	return triggers, nil
}

// Save writes t back to the store. Concurrent saves are serialised. Errors
// wrap [ErrPersistence].
func (r *Registry) Save(ctx context.Context, t *Trigger) error {
	r.saveMu.Lock()
	defer r.saveMu.Unlock()

	rec, err := t.Record()
	if err != nil {
		return errors.Join(ErrPersistence, err)
	}
	if err := r.store.Put(ctx, t.session, rec); err != nil {
		t.logger.Error("saving trigger failed", "err", err)
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	t.logger.Info("trigger saved")
	return nil
}
