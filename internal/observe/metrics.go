// Package observe provides application-wide observability primitives for
// chattrigger: OpenTelemetry metrics, distributed tracing, structured logging,
// and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can be
// scraped via the admin /metrics endpoint. A package-level default [Metrics]
// instance ([DefaultMetrics]) is provided for convenience; tests should use
// [NewMetrics] with a custom [metric.MeterProvider] to avoid cross-test
// pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all chattrigger metrics.
const meterName = "github.com/MrWong99/chattrigger"

// Event outcomes recorded by [Metrics.RecordEvent].
const (
	OutcomeHandled  = "handled"
	OutcomeIgnored  = "ignored"
	OutcomeRejected = "rejected"
	OutcomeFault    = "fault"
)

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use; the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// DispatchDuration tracks how long one inbound event takes to pass through
	// every registered trigger. Use with attribute.String("event", ...).
	DispatchDuration metric.Float64Histogram

	// TriggerEvents counts per-trigger dispatch results. Use with attributes:
	//   attribute.String("trigger", ...), attribute.String("event", ...),
	//   attribute.String("outcome", ...)
	TriggerEvents metric.Int64Counter

	// GuardRejections counts events stopped by the admission pipeline. Use
	// with attributes: attribute.String("trigger", ...), attribute.String("guard", ...)
	GuardRejections metric.Int64Counter

	// HookFaults counts errors and recovered panics raised by guards or
	// strategy hooks.
	HookFaults metric.Int64Counter

	// MessagesSent counts outbound messages. Use with attributes:
	//   attribute.String("trigger", ...), attribute.String("target", ...),
	//   attribute.String("mode", ...), attribute.String("status", ...)
	MessagesSent metric.Int64Counter

	// StoreOperations counts trigger store calls by backend, op, and status.
	StoreOperations metric.Int64Counter

	// CoolingDown tracks the number of triggers currently suppressed by
	// their reply cooldown.
	CoolingDown metric.Int64UpDownCounter

	// LoadedTriggers tracks the number of trigger instances constructed by
	// the registry.
	LoadedTriggers metric.Int64UpDownCounter

	// HTTPRequestDuration tracks admin HTTP request processing time. Use with
	// attributes: attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds). Dispatch
// is expected to stay well below a second; the upper buckets catch strategies
// that block on external calls.
var latencyBuckets = []float64{
	0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.DispatchDuration, err = m.Float64Histogram("chattrigger.dispatch.duration",
		metric.WithDescription("Time to deliver one event to every registered trigger."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	if met.TriggerEvents, err = m.Int64Counter("chattrigger.trigger.events",
		metric.WithDescription("Per-trigger dispatch results by event kind and outcome."),
	); err != nil {
		return nil, err
	}
	if met.GuardRejections, err = m.Int64Counter("chattrigger.guard.rejections",
		metric.WithDescription("Events rejected by an admission guard."),
	); err != nil {
		return nil, err
	}
	if met.HookFaults, err = m.Int64Counter("chattrigger.hook.faults",
		metric.WithDescription("Errors and panics caught at the dispatcher boundary."),
	); err != nil {
		return nil, err
	}
	if met.MessagesSent, err = m.Int64Counter("chattrigger.messages.sent",
		metric.WithDescription("Outbound messages by target, mode, and status."),
	); err != nil {
		return nil, err
	}
	if met.StoreOperations, err = m.Int64Counter("chattrigger.store.operations",
		metric.WithDescription("Trigger store operations by backend, op, and status."),
	); err != nil {
		return nil, err
	}

	if met.CoolingDown, err = m.Int64UpDownCounter("chattrigger.triggers.cooling_down",
		metric.WithDescription("Number of triggers currently inside their cooldown window."),
	); err != nil {
		return nil, err
	}
	if met.LoadedTriggers, err = m.Int64UpDownCounter("chattrigger.triggers.loaded",
		metric.WithDescription("Number of trigger instances constructed from the store."),
	); err != nil {
		return nil, err
	}

	if met.HTTPRequestDuration, err = m.Float64Histogram("chattrigger.http.request.duration",
		metric.WithDescription("Admin HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordEvent records one per-trigger dispatch result.
func (m *Metrics) RecordEvent(ctx context.Context, trigger, event, outcome string) {
	m.TriggerEvents.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("trigger", trigger),
			attribute.String("event", event),
			attribute.String("outcome", outcome),
		),
	)
}

// RecordRejection records an admission guard rejection.
func (m *Metrics) RecordRejection(ctx context.Context, trigger, guard string) {
	m.GuardRejections.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("trigger", trigger),
			attribute.String("guard", guard),
		),
	)
}

// RecordHookFault records an error or recovered panic. kind is "error" or
// "panic".
func (m *Metrics) RecordHookFault(ctx context.Context, trigger, event, kind string) {
	m.HookFaults.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("trigger", trigger),
			attribute.String("event", event),
			attribute.String("kind", kind),
		),
	)
}

// RecordSend records an outbound message attempt.
func (m *Metrics) RecordSend(ctx context.Context, trigger, target, mode, status string) {
	m.MessagesSent.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("trigger", trigger),
			attribute.String("target", target),
			attribute.String("mode", mode),
			attribute.String("status", status),
		),
	)
}

// RecordStoreOp records a trigger store call.
func (m *Metrics) RecordStoreOp(ctx context.Context, backend, op, status string) {
	m.StoreOperations.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("backend", backend),
			attribute.String("op", op),
			attribute.String("status", status),
		),
	)
}
