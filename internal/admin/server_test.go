package admin

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/MrWong99/chattrigger/internal/health"
	"github.com/MrWong99/chattrigger/internal/observe"
	"github.com/MrWong99/chattrigger/internal/trigger"
	"github.com/MrWong99/chattrigger/internal/triggerstore"
)

type nopClient struct{}

func (nopClient) SendDirectMessage(context.Context, string, string) error { return nil }
func (nopClient) SendRoomMessage(context.Context, string, string) error   { return nil }

// replier acts on every chat message so its cooldown engages.
type replier struct{ trigger.Nop }

func (replier) RespondToChatMessage(context.Context, string, string, string) (bool, error) {
	return true, nil
}

// brokenStore accepts reads but fails every write.
type brokenStore struct{ *triggerstore.MemStore }

func (brokenStore) Put(context.Context, string, triggerstore.Record) error {
	return errors.New("disk full")
}

type fixture struct {
	engine  *trigger.Engine
	store   *triggerstore.MemStore
	handler http.Handler
}

func newFixture(t *testing.T, store triggerstore.Store, opts ...Option) *fixture {
	t.Helper()
	reg := trigger.NewRegistry(store, nopClient{})
	t.Cleanup(reg.Scheduler().Close)
	reg.Register("replier", func(trigger.Env) (trigger.Strategy, error) { return replier{}, nil })

	var ts []*trigger.Trigger
	for _, name := range []string{"greeter", "guard"} {
		tr, err := reg.New(context.Background(), "bot1", name, "replier", trigger.Options{Timeout: trigger.Int64(60000)})
		if err != nil {
			t.Fatalf("New(%s): %v", name, err)
		}
		ts = append(ts, tr)
	}
	e := trigger.NewEngine("bot1", ts)
	t.Cleanup(func() { _ = e.Close() })

	m, err := observe.NewMetrics(sdkmetric.NewMeterProvider(sdkmetric.WithReader(sdkmetric.NewManualReader())))
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	opts = append([]Option{WithMetrics(m)}, opts...)
	srv := New(trigger.NewController(e, reg), opts...)

	f := &fixture{engine: e, handler: srv.Handler()}
	if ms, ok := store.(*triggerstore.MemStore); ok {
		f.store = ms
	}
	return f
}

func (f *fixture) do(t *testing.T, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestListTriggers(t *testing.T) {
	t.Parallel()

	f := newFixture(t, triggerstore.NewMemStore())
	f.engine.ChatMessage(context.Background(), "r1", "u1", "hi")

	rec := f.do(t, "GET", "/triggers")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	var body triggerList
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Session != "bot1" {
		t.Errorf("session = %q", body.Session)
	}
	if len(body.Triggers) != 2 {
		t.Fatalf("triggers = %+v, want 2", body.Triggers)
	}
	for i, want := range []string{"greeter", "guard"} {
		if got := body.Triggers[i]; got.Name != want || got.Enabled {
			t.Errorf("triggers[%d] = %+v, want %s cooling down", i, got, want)
		}
	}
	if body.Triggers[0].Type != "replier" {
		t.Errorf("type = %q", body.Triggers[0].Type)
	}
}

func TestSaveTrigger(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		store      func() triggerstore.Store
		path       string
		wantStatus int
		wantBody   string
	}{
		{
			name:       "saved",
			store:      func() triggerstore.Store { return triggerstore.NewMemStore() },
			path:       "/triggers/greeter/save",
			wantStatus: http.StatusOK,
			wantBody:   `"status":"saved"`,
		},
		{
			name:       "unknown trigger",
			store:      func() triggerstore.Store { return triggerstore.NewMemStore() },
			path:       "/triggers/ghost/save",
			wantStatus: http.StatusNotFound,
			wantBody:   "no such trigger",
		},
		{
			name:       "store failure",
			store:      func() triggerstore.Store { return brokenStore{triggerstore.NewMemStore()} },
			path:       "/triggers/greeter/save",
			wantStatus: http.StatusInternalServerError,
			wantBody:   "disk full",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t, tt.store())
			rec := f.do(t, "POST", tt.path)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if !strings.Contains(rec.Body.String(), tt.wantBody) {
				t.Errorf("body = %s, want it to contain %s", rec.Body, tt.wantBody)
			}
		})
	}
}

func TestSaveTrigger_WritesRecord(t *testing.T) {
	t.Parallel()

	f := newFixture(t, triggerstore.NewMemStore())
	if rec := f.do(t, "POST", "/triggers/guard/save"); rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	got, err := f.store.Get(context.Background(), "bot1", "guard")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Type != "replier" {
		t.Errorf("stored type = %q", got.Type)
	}
}

func TestResetTrigger(t *testing.T) {
	t.Parallel()

	f := newFixture(t, triggerstore.NewMemStore())
	f.engine.ChatMessage(context.Background(), "r1", "u1", "hi")
	if tr, _ := f.engine.Lookup("greeter"); tr.Enabled() {
		t.Fatal("greeter should be cooling down")
	}

	if rec := f.do(t, "POST", "/triggers/greeter/reset"); rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	if tr, _ := f.engine.Lookup("greeter"); !tr.Enabled() {
		t.Error("greeter still cooling down after reset")
	}
	if tr, _ := f.engine.Lookup("guard"); tr.Enabled() {
		t.Error("reset of greeter also reset guard")
	}
	if rec := f.do(t, "POST", "/triggers/ghost/reset"); rec.Code != http.StatusNotFound {
		t.Errorf("reset ghost = %d, want 404", rec.Code)
	}
}

func TestRoutes(t *testing.T) {
	t.Parallel()

	down := health.ConnectedCheck("gateway", func() bool { return false })
	f := newFixture(t, triggerstore.NewMemStore(), WithCheckers(down), WithRegistry(prometheus.NewRegistry()))

	tests := []struct {
		method string
		path   string
		want   int
	}{
		{"GET", "/healthz", http.StatusOK},
		{"GET", "/readyz", http.StatusServiceUnavailable},
		{"GET", "/metrics", http.StatusOK},
		{"GET", "/triggers/greeter/save", http.StatusMethodNotAllowed},
		{"DELETE", "/triggers", http.StatusMethodNotAllowed},
		{"GET", "/nope", http.StatusNotFound},
	}
	for _, tt := range tests {
		if rec := f.do(t, tt.method, tt.path); rec.Code != tt.want {
			t.Errorf("%s %s = %d, want %d", tt.method, tt.path, rec.Code, tt.want)
		}
	}
}

func TestMetricsNotRoutedWithoutRegistry(t *testing.T) {
	t.Parallel()

	f := newFixture(t, triggerstore.NewMemStore())
	if rec := f.do(t, "GET", "/metrics"); rec.Code != http.StatusNotFound {
		t.Errorf("GET /metrics = %d, want 404", rec.Code)
	}
}

func TestServe_ShutsDownOnCancel(t *testing.T) {
	t.Parallel()

	reg := trigger.NewRegistry(triggerstore.NewMemStore(), nopClient{})
	t.Cleanup(reg.Scheduler().Close)
	e := trigger.NewEngine("bot1", nil)
	t.Cleanup(func() { _ = e.Close() })
	srv := New(trigger.NewController(e, reg))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}
