// Package admin serves the operator HTTP API: health probes, Prometheus
// metrics and trigger management.
//
// Routes:
//
//	GET  /healthz                 liveness
//	GET  /readyz                  store and transport readiness
//	GET  /metrics                 Prometheus exposition
//	GET  /triggers                loaded triggers with their cooldown state
//	POST /triggers/{name}/save    write a trigger back to its store
//	POST /triggers/{name}/reset   cancel a running cooldown
//
// Every route is wrapped by [observe.Middleware].
package admin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MrWong99/chattrigger/internal/health"
	"github.com/MrWong99/chattrigger/internal/observe"
	"github.com/MrWong99/chattrigger/internal/trigger"
)

// saveTimeout bounds a single store write triggered over HTTP.
const saveTimeout = 10 * time.Second

// Server is the admin HTTP API.
type Server struct {
	ctl      *trigger.Controller
	checkers []health.Checker
	registry *prometheus.Registry
	metrics  *observe.Metrics
	logger   *slog.Logger
}

// Option configures a [Server].
type Option func(*Server)

// WithCheckers adds readiness checks to /readyz.
func WithCheckers(cs ...health.Checker) Option {
	return func(s *Server) { s.checkers = append(s.checkers, cs...) }
}

// WithRegistry exposes reg on /metrics. Without it /metrics is not routed.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(s *Server) { s.registry = reg }
}

// WithMetrics sets the instruments used by the request middleware.
// Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithLogger sets the server's logger. Default: [slog.Default].
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// New returns a Server acting on ctl.
func New(ctl *trigger.Controller, opts ...Option) *Server {
	s := &Server{ctl: ctl}
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Handler returns the routed and instrumented handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	health.New(s.checkers...).Register(mux)
	if s.registry != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{
			Registry: s.registry,
		}))
	}
	mux.HandleFunc("GET /triggers", s.listTriggers)
	mux.HandleFunc("POST /triggers/{name}/save", s.saveTrigger)
	mux.HandleFunc("POST /triggers/{name}/reset", s.resetTrigger)
	return observe.Middleware(s.metrics, observe.WithRequestLogger(s.logger))(mux)
}

// Serve accepts connections on ln until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	s.logger.Info("admin server listening", "addr", ln.Addr().String())

	select {
	case err := <-errCh:
		return fmt.Errorf("admin: serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("admin: shutdown: %w", err)
	}
	return nil
}

// ListenAndServe listens on addr and calls [Server.Serve].
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("admin: listen %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

type triggerList struct {
	Session  string           `json:"session"`
	Triggers []trigger.Status `json:"triggers"`
}

type actionResult struct {
	Name   string `json:"name"`
	Status string `json:"status"`
}

type errorBody struct {
	Error string `json:"error"`
}

func (s *Server) listTriggers(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, triggerList{Session: s.ctl.Session(), Triggers: s.ctl.List()})
}

func (s *Server) saveTrigger(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	ctx, cancel := context.WithTimeout(r.Context(), saveTimeout)
	defer cancel()
	if err := s.ctl.Save(ctx, name); err != nil {
		s.fail(w, r, "save", name, err)
		return
	}
	writeJSON(w, http.StatusOK, actionResult{Name: name, Status: "saved"})
}

func (s *Server) resetTrigger(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if err := s.ctl.Reset(name); err != nil {
		s.fail(w, r, "reset", name, err)
		return
	}
	writeJSON(w, http.StatusOK, actionResult{Name: name, Status: "reset"})
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, op, name string, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, trigger.ErrNoSuchTrigger) {
		status = http.StatusNotFound
	} else {
		observe.Logger(r.Context(), s.logger).Error("admin: trigger action failed", "op", op, "trigger", name, "err", err)
	}
	writeJSON(w, status, errorBody{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
