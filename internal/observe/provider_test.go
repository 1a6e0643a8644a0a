package observe

import (
	"context"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
)

func TestInitProvider_ExposesMetricsOnRegistry(t *testing.T) {
	origMP := otel.GetMeterProvider()
	origTP := otel.GetTracerProvider()
	t.Cleanup(func() {
		otel.SetMeterProvider(origMP)
		otel.SetTracerProvider(origTP)
	})

	ctx := context.Background()
	p, err := InitProvider(ctx, ProviderConfig{ServiceName: "chattrigger-test"})
	if err != nil {
		t.Fatalf("InitProvider: %v", err)
	}
	t.Cleanup(func() { _ = p.Shutdown(context.Background()) })

	p.Metrics.RecordEvent(ctx, "unban", "chat_message", OutcomeHandled)

	families, err := p.Registry.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	var sawGo, sawEvents bool
	for _, f := range families {
		name := f.GetName()
		if strings.HasPrefix(name, "go_") {
			sawGo = true
		}
		if strings.HasPrefix(name, "chattrigger_trigger_events") {
			sawEvents = true
		}
	}
	if !sawGo {
		t.Error("registry has no Go runtime collector metrics")
	}
	if !sawEvents {
		t.Error("registry has no chattrigger_trigger_events family")
	}
}
