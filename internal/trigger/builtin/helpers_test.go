package builtin

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/MrWong99/chattrigger/internal/trigger"
	"github.com/MrWong99/chattrigger/internal/triggerstore"
)

// fakeClient implements trigger.Client and every optional capability,
// recording each call as a string such as "unban r1 42".
type fakeClient struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (c *fakeClient) log(format string, args ...any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.calls = append(c.calls, fmt.Sprintf(format, args...))
	return nil
}

func (c *fakeClient) Calls() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.calls...)
}

func (c *fakeClient) SendDirectMessage(_ context.Context, userID, text string) error {
	return c.log("dm %s %s", userID, text)
}
func (c *fakeClient) SendRoomMessage(_ context.Context, roomID, text string) error {
	return c.log("say %s %s", roomID, text)
}
func (c *fakeClient) Kick(_ context.Context, roomID, userID string) error {
	return c.log("kick %s %s", roomID, userID)
}
func (c *fakeClient) Ban(_ context.Context, roomID, userID string) error {
	return c.log("ban %s %s", roomID, userID)
}
func (c *fakeClient) Unban(_ context.Context, roomID, userID string) error {
	return c.log("unban %s %s", roomID, userID)
}
func (c *fakeClient) JoinRoom(_ context.Context, roomID string) error {
	return c.log("join %s", roomID)
}
func (c *fakeClient) LeaveRoom(_ context.Context, roomID string) error {
	return c.log("leave %s", roomID)
}
func (c *fakeClient) AcceptFriend(_ context.Context, userID string) error {
	return c.log("friend %s", userID)
}
func (c *fakeClient) AcceptInvite(_ context.Context, roomID string) error {
	return c.log("invite %s", roomID)
}
func (c *fakeClient) LockRoom(_ context.Context, roomID string, locked bool) error {
	if locked {
		return c.log("lock %s", roomID)
	}
	return c.log("unlock %s", roomID)
}
func (c *fakeClient) ModerateRoom(_ context.Context, roomID string, moderated bool) error {
	if moderated {
		return c.log("moderate %s", roomID)
	}
	return c.log("unmoderate %s", roomID)
}
func (c *fakeClient) SetPlaying(_ context.Context, activity string) error {
	return c.log("play %s", activity)
}

// plainClient only sends messages.
type plainClient struct{ fakeClient }

func (p *plainClient) asClient() trigger.Client {
	return struct {
		trigger.Client
	}{&p.fakeClient}
}

var errBoom = errors.New("boom")

// newTrigger builds one built-in trigger against client.
func newTrigger(t *testing.T, client trigger.Client, deps Deps, typ trigger.Type, opts trigger.Options) (*trigger.Trigger, error) {
	t.Helper()
	reg := trigger.NewRegistry(triggerstore.NewMemStore(), client,
		trigger.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	t.Cleanup(reg.Scheduler().Close)
	Register(reg, deps)
	return reg.New(context.Background(), "bot1", string(typ), typ, opts)
}

func mustTrigger(t *testing.T, client trigger.Client, deps Deps, typ trigger.Type, opts trigger.Options) *trigger.Trigger {
	t.Helper()
	tr, err := newTrigger(t, client, deps, typ, opts)
	if err != nil {
		t.Fatalf("build %s: %v", typ, err)
	}
	return tr
}

func equalCalls(t *testing.T, got, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("calls = %q, want %q", got, want)
	}
	for i := range got {
		if got[i] != want[i] {
			t.Fatalf("calls = %q, want %q", got, want)
		}
	}
}
