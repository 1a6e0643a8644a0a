// Package app wires the chattrigger subsystems into a running daemon.
//
// The App struct owns the full lifecycle: New opens the trigger store, loads
// the session's triggers and builds the transport; Run connects the transport
// and serves the admin API; Shutdown tears everything down in order.
//
// For testing, inject doubles via functional options (WithStore,
// WithTransport). When an option is not provided, New creates the real
// implementation from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/chattrigger/internal/admin"
	"github.com/MrWong99/chattrigger/internal/config"
	"github.com/MrWong99/chattrigger/internal/discord"
	"github.com/MrWong99/chattrigger/internal/discord/commands"
	"github.com/MrWong99/chattrigger/internal/gateway"
	"github.com/MrWong99/chattrigger/internal/health"
	"github.com/MrWong99/chattrigger/internal/observe"
	"github.com/MrWong99/chattrigger/internal/trigger"
	"github.com/MrWong99/chattrigger/internal/trigger/builtin"
	"github.com/MrWong99/chattrigger/internal/triggerstore"
)

// Transport connects the engine to a chat network. It is the outbound
// [trigger.Client] of every strategy and delivers inbound events to the
// attached dispatcher while Run is active.
type Transport interface {
	trigger.Client
	Attach(d trigger.Dispatcher)
	Run(ctx context.Context) error
	Connected() bool
}

// App owns all subsystem lifetimes.
type App struct {
	cfg       *config.Config
	logger    *slog.Logger
	telemetry *observe.Provider
	metrics   *observe.Metrics
	deps      builtin.Deps

	store     triggerstore.Store
	pinger    health.Pinger
	transport Transport
	bot       *discord.Bot

	registry   *trigger.Registry
	engine     *trigger.Engine
	controller *trigger.Controller
	admin      *admin.Server

	// closers are called in order during Shutdown.
	closers  []func() error
	stopOnce sync.Once
}

// Option is a functional option for New.
type Option func(*App)

// WithStore injects a trigger store instead of opening the configured one.
func WithStore(s triggerstore.Store) Option {
	return func(a *App) { a.store = s }
}

// WithTransport injects a transport instead of building one from config.
func WithTransport(t Transport) Option {
	return func(a *App) { a.transport = t }
}

// WithTelemetry sets the OTel provider. Its metrics feed every instrument and
// its registry is served on /metrics.
func WithTelemetry(p *observe.Provider) Option {
	return func(a *App) { a.telemetry = p }
}

// WithBuiltinDeps overrides the dependencies handed to the built-in
// strategies.
func WithBuiltinDeps(d builtin.Deps) Option {
	return func(a *App) { a.deps = d }
}

// WithLogger sets the logger. Default: [slog.Default].
func WithLogger(l *slog.Logger) Option {
	return func(a *App) { a.logger = l }
}

// New creates an App. It opens the store and loads the session's triggers
// synchronously; nothing connects to the chat network until [App.Run].
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	a := &App{cfg: cfg}
	for _, o := range opts {
		o(a)
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	a.metrics = observe.DefaultMetrics()
	if a.telemetry != nil {
		a.metrics = a.telemetry.Metrics
	}

	if err := a.initStore(ctx); err != nil {
		a.runClosers()
		return nil, fmt.Errorf("app: init store: %w", err)
	}
	if err := a.initTransport(); err != nil {
		a.runClosers()
		return nil, fmt.Errorf("app: init transport: %w", err)
	}
	if err := a.initEngine(ctx); err != nil {
		a.runClosers()
		return nil, fmt.Errorf("app: init engine: %w", err)
	}
	a.initAdmin()
	return a, nil
}

// initStore opens the configured backend or wraps an injected store.
func (a *App) initStore(ctx context.Context) error {
	backend := string(a.cfg.Store.Backend)
	if a.store != nil {
		backend = "injected"
	} else {
		switch a.cfg.Store.Backend {
		case config.StorePostgres:
			pool, err := pgxpool.New(ctx, a.cfg.Store.PostgresDSN)
			if err != nil {
				return fmt.Errorf("connect postgres: %w", err)
			}
			a.closers = append(a.closers, func() error { pool.Close(); return nil })
			pg := triggerstore.NewPostgresStore(pool)
			if err := pg.Migrate(ctx); err != nil {
				return err
			}
			a.store, a.pinger = pg, pool
		case config.StoreSQLite:
			lite, err := triggerstore.OpenSQLite(ctx, a.cfg.Store.SQLitePath)
			if err != nil {
				return err
			}
			a.closers = append(a.closers, lite.Close)
			a.store, a.pinger = lite, lite
		case config.StoreMemory:
			a.store = triggerstore.NewMemStore()
		default:
			a.store = triggerstore.NewFileStore(a.cfg.Store.Dir)
		}
	}
	a.store = triggerstore.Instrument(a.store, backend, a.metrics)
	a.logger.Info("trigger store ready", "backend", backend)
	return nil
}

// initTransport builds the configured transport unless one was injected.
func (a *App) initTransport() error {
	if a.transport != nil {
		return nil
	}
	switch {
	case a.cfg.Discord.Token != "":
		bot, err := discord.New(discord.Config{
			Token:       a.cfg.Discord.Token,
			GuildID:     a.cfg.Discord.GuildID,
			AdminRoleID: a.cfg.Discord.AdminRoleID,
		}, discord.WithLogger(a.logger.With("transport", "discord")))
		if err != nil {
			return err
		}
		a.bot = bot
		a.transport = bot
	case a.cfg.Gateway.URL != "":
		a.transport = gateway.New(gateway.Config{
			URL:   a.cfg.Gateway.URL,
			Token: a.cfg.Gateway.Token,
		}, gateway.WithLogger(a.logger.With("transport", "gateway")))
	default:
		a.transport = newDryRun(a.logger.With("transport", "dry-run"))
	}
	return nil
}

// initEngine loads the session's triggers and attaches the engine to the
// transport.
func (a *App) initEngine(ctx context.Context) error {
	a.registry = trigger.NewRegistry(a.store, a.transport,
		trigger.WithLogger(a.logger),
		trigger.WithMetrics(a.metrics),
	)
	builtin.Register(a.registry, a.deps)

	triggers, err := a.registry.LoadAll(ctx, a.cfg.Session.ID)
	if err != nil {
		return err
	}
	a.engine = trigger.NewEngine(a.cfg.Session.ID, triggers,
		trigger.WithEngineLogger(a.logger),
		trigger.WithEngineMetrics(a.metrics),
		trigger.WithEngineScheduler(a.registry.Scheduler()),
	)
	a.controller = trigger.NewController(a.engine, a.registry)
	a.transport.Attach(a.engine)

	if a.bot != nil {
		commands.NewTriggerCommands(a.bot.Router(), a.controller, a.bot.Permissions())
	}
	return nil
}

func (a *App) initAdmin() {
	opts := []admin.Option{
		admin.WithLogger(a.logger),
		admin.WithMetrics(a.metrics),
		admin.WithCheckers(
			health.PingCheck("store", a.pinger),
			health.ConnectedCheck("transport", a.transport.Connected),
		),
	}
	if a.telemetry != nil {
		opts = append(opts, admin.WithRegistry(a.telemetry.Registry))
	}
	a.admin = admin.New(a.controller, opts...)
}

// Engine returns the trigger engine.
func (a *App) Engine() *trigger.Engine { return a.engine }

// Controller returns the operator controller shared by the admin surfaces.
func (a *App) Controller() *trigger.Controller { return a.controller }

// Admin returns the admin HTTP server.
func (a *App) Admin() *admin.Server { return a.admin }

// Run connects the transport and, when server.listen_addr is set, serves the
// admin API. It blocks until ctx is cancelled or either fails.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := a.transport.Run(ctx); err != nil {
			return fmt.Errorf("app: transport: %w", err)
		}
		return nil
	})
	if addr := a.cfg.Server.ListenAddr; addr != "" {
		g.Go(func() error {
			return a.admin.ListenAndServe(ctx, addr)
		})
	}
	a.logger.Info("app running", "session", a.cfg.Session.ID, "triggers", len(a.engine.Triggers()))
	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Shutdown stops every cooldown and pending delayed send, then closes the
// store. If ctx expires first, the remaining closers are skipped and the
// context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		a.logger.Info("shutting down", "closers", len(a.closers))
		if err := a.engine.Close(); err != nil {
			a.logger.Warn("engine close error", "err", err)
		}
		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				a.logger.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				a.logger.Warn("closer error", "index", i, "err", err)
			}
		}
		a.logger.Info("shutdown complete")
	})
	return shutdownErr
}

// runClosers releases what a failed New already opened.
func (a *App) runClosers() {
	for _, c := range a.closers {
		_ = c()
	}
	a.closers = nil
}
