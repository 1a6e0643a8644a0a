package trigger

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/MrWong99/chattrigger/internal/observe"
	"github.com/MrWong99/chattrigger/internal/triggerstore"
)

// sent is one message captured by fakeClient.
type sent struct {
	target Target
	id     string
	text   string
}

// fakeClient records outbound messages. Set err to make every send fail.
type fakeClient struct {
	mu   sync.Mutex
	msgs []sent
	err  error
	ch   chan sent
}

func newFakeClient() *fakeClient {
	return &fakeClient{ch: make(chan sent, 64)}
}

func (c *fakeClient) SendDirectMessage(_ context.Context, userID, text string) error {
	return c.record(sent{TargetDirect, userID, text})
}

func (c *fakeClient) SendRoomMessage(_ context.Context, roomID, text string) error {
	return c.record(sent{TargetRoom, roomID, text})
}

func (c *fakeClient) record(s sent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.msgs = append(c.msgs, s)
	select {
	case c.ch <- s:
	default:
	}
	return nil
}

func (c *fakeClient) messages() []sent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]sent(nil), c.msgs...)
}

// hookStrategy answers every respond hook with result and counts calls per
// hook name. onLoad overrides the load result when set.
type hookStrategy struct {
	Nop
	mu     sync.Mutex
	calls  map[string]int
	result bool
	err    error
	panicV any
	onLoad *bool
}

func newHookStrategy(result bool) *hookStrategy {
	return &hookStrategy{calls: make(map[string]int), result: result}
}

func (s *hookStrategy) hit(name string) (bool, error) {
	s.mu.Lock()
	s.calls[name]++
	s.mu.Unlock()
	if s.panicV != nil {
		panic(s.panicV)
	}
	return s.result, s.err
}

func (s *hookStrategy) count(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[name]
}

func (s *hookStrategy) OnLoad(context.Context) (bool, error) {
	if s.onLoad != nil {
		return *s.onLoad, nil
	}
	return true, nil
}
func (s *hookStrategy) OnLoggedOn(context.Context) (bool, error)  { return s.hit("loggedOn") }
func (s *hookStrategy) OnLoggedOff(context.Context) (bool, error) { return s.hit("loggedOff") }
func (s *hookStrategy) RespondToChatInvite(context.Context, string, string, string) (bool, error) {
	return s.hit("chatInvite")
}
func (s *hookStrategy) RespondToFriendRequest(context.Context, string) (bool, error) {
	return s.hit("friendRequest")
}
func (s *hookStrategy) RespondToFriendMessage(context.Context, string, string) (bool, error) {
	return s.hit("friendMessage")
}
func (s *hookStrategy) RespondToSentMessage(context.Context, string, string) (bool, error) {
	return s.hit("sentMessage")
}
func (s *hookStrategy) RespondToChatMessage(context.Context, string, string, string) (bool, error) {
	return s.hit("chatMessage")
}
func (s *hookStrategy) RespondToEnteredChat(context.Context, string, string) (bool, error) {
	return s.hit("enteredChat")
}
func (s *hookStrategy) RespondToKick(context.Context, string, string, string) (bool, error) {
	return s.hit("kick")
}
func (s *hookStrategy) RespondToBan(context.Context, string, string, string) (bool, error) {
	return s.hit("ban")
}
func (s *hookStrategy) RespondToDisconnect(context.Context, string, string) (bool, error) {
	return s.hit("disconnect")
}
func (s *hookStrategy) RespondToLeftChat(context.Context, string, string) (bool, error) {
	return s.hit("leftChat")
}
func (s *hookStrategy) RespondToTradeOffer(context.Context, int) (bool, error) {
	return s.hit("tradeOffer")
}
func (s *hookStrategy) RespondToTradeProposal(context.Context, string, string) (bool, error) {
	return s.hit("tradeProposal")
}
func (s *hookStrategy) RespondToTradeSession(context.Context, string) (bool, error) {
	return s.hit("tradeSession")
}
func (s *hookStrategy) RespondToAnnouncement(context.Context, string, string) (bool, error) {
	return s.hit("announcement")
}

// testMetrics returns metrics backed by a private ManualReader so tests do
// not share instruments.
func testMetrics(t *testing.T) (*observe.Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

// syncBuffer is a bytes.Buffer safe for loggers used from timer goroutines.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// testLogger returns a debug-level logger writing into buf.
func testLogger(buf *syncBuffer) *slog.Logger {
	return slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

type testEnv struct {
	reg    *Registry
	store  *triggerstore.MemStore
	client *fakeClient
	logs   *syncBuffer
}

func newTestEnv(t *testing.T, opts ...RegistryOption) *testEnv {
	t.Helper()
	m, _ := testMetrics(t)
	env := &testEnv{
		store:  triggerstore.NewMemStore(),
		client: newFakeClient(),
		logs:   &syncBuffer{},
	}
	base := []RegistryOption{WithMetrics(m), WithLogger(testLogger(env.logs))}
	env.reg = NewRegistry(env.store, env.client, append(base, opts...)...)
	t.Cleanup(env.reg.Scheduler().Close)
	return env
}

// build registers s under a unique type and builds a trigger around it.
func (e *testEnv) build(t *testing.T, s Strategy, opts Options) *Trigger {
	t.Helper()
	tag := Type("test-" + t.Name())
	e.reg.Register(tag, func(Env) (Strategy, error) { return s, nil })
	tr, err := e.reg.New(context.Background(), "bot1", "t1", tag, opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return tr
}

var errBoom = errors.New("boom")
