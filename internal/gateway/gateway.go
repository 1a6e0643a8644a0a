// Package gateway connects chattrigger to a chat network through a websocket
// gateway. Inbound JSON event frames are dispatched to the trigger engine;
// client calls made by strategies are sent back as JSON action frames.
//
// The connection is re-established with exponential backoff until the run
// context is cancelled. Dial attempts go through a circuit breaker so that a
// gateway that keeps refusing connections is probed at a fixed, slower pace.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/MrWong99/chattrigger/internal/resilience"
	"github.com/MrWong99/chattrigger/internal/trigger"
)

// ErrNotConnected is returned by client calls while no gateway connection is
// up.
var ErrNotConnected = errors.New("gateway: not connected")

// ErrNotAttached is returned by [Client.Run] when no dispatcher was attached.
var ErrNotAttached = errors.New("gateway: no dispatcher attached")

// Config holds gateway connection settings.
type Config struct {
	// URL is the ws:// or wss:// endpoint.
	URL string

	// Token, when set, is sent as a bearer token on the upgrade request.
	Token string
}

// Client is a reconnecting gateway connection. It implements
// [trigger.Client] and every optional capability interface.
type Client struct {
	cfg        Config
	logger     *slog.Logger
	breaker    *resilience.CircuitBreaker
	minBackoff time.Duration
	maxBackoff time.Duration
	writeWait  time.Duration

	mu       sync.RWMutex
	conn     *websocket.Conn
	dispatch trigger.Dispatcher
}

var (
	_ trigger.Client         = (*Client)(nil)
	_ trigger.Moderator      = (*Client)(nil)
	_ trigger.RoomManager    = (*Client)(nil)
	_ trigger.RoomController = (*Client)(nil)
	_ trigger.FriendManager  = (*Client)(nil)
	_ trigger.InviteAccepter = (*Client)(nil)
	_ trigger.PresenceSetter = (*Client)(nil)
)

// Option configures a [Client].
type Option func(*Client)

// WithLogger sets the client's logger. Default: [slog.Default].
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithBackoff sets the reconnect delay range. Defaults: 500ms to 30s.
func WithBackoff(minDelay, maxDelay time.Duration) Option {
	return func(c *Client) {
		if minDelay > 0 {
			c.minBackoff = minDelay
		}
		if maxDelay >= c.minBackoff {
			c.maxBackoff = maxDelay
		}
	}
}

// WithBreaker replaces the dial circuit breaker.
func WithBreaker(cb *resilience.CircuitBreaker) Option {
	return func(c *Client) {
		if cb != nil {
			c.breaker = cb
		}
	}
}

// New returns a Client for cfg. Call [Client.Attach] and then [Client.Run].
func New(cfg Config, opts ...Option) *Client {
	c := &Client{
		cfg:        cfg,
		logger:     slog.Default(),
		minBackoff: 500 * time.Millisecond,
		maxBackoff: 30 * time.Second,
		writeWait:  10 * time.Second,
	}
	for _, o := range opts {
		o(c)
	}
	if c.breaker == nil {
		c.breaker = resilience.NewCircuitBreaker(resilience.Config{
			Name:         "gateway-dial",
			MaxFailures:  5,
			ResetTimeout: time.Minute,
			Logger:       c.logger,
		})
	}
	return c
}

// Attach sets the dispatcher that receives inbound events.
func (c *Client) Attach(d trigger.Dispatcher) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dispatch = d
}

// Connected reports whether a gateway connection is currently up.
func (c *Client) Connected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn != nil
}

// Run keeps a gateway connection open until ctx is cancelled. Each successful
// connection is reported as a logon and each loss as a logoff.
func (c *Client) Run(ctx context.Context) error {
	c.mu.RLock()
	d := c.dispatch
	c.mu.RUnlock()
	if d == nil {
		return ErrNotAttached
	}

	backoff := c.minBackoff
	for {
		var conn *websocket.Conn
		err := c.breaker.Execute(func() error {
			var dialErr error
			conn, dialErr = c.dial(ctx)
			return dialErr
		})
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			wait := backoff
			if errors.Is(err, resilience.ErrCircuitOpen) {
				wait = max(wait, c.breaker.RetryAfter())
			} else {
				backoff = min(backoff*2, c.maxBackoff)
			}
			c.logger.Warn("gateway: connect failed", "url", c.cfg.URL, "err", err, "retry_in", wait)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(wait):
			}
			continue
		}

		backoff = c.minBackoff
		c.setConn(conn)
		c.logger.Info("gateway: connected", "url", c.cfg.URL)
		d.LoggedOn(ctx)

		err = c.readLoop(ctx, conn, d)

		c.setConn(nil)
		conn.Close(websocket.StatusNormalClosure, "bye")
		d.LoggedOff(ctx)
		if ctx.Err() != nil {
			return nil
		}
		c.logger.Warn("gateway: connection lost", "err", err, "retry_in", c.minBackoff)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(c.minBackoff):
		}
	}
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	headers := http.Header{}
	if c.cfg.Token != "" {
		headers.Set("Authorization", "Bearer "+c.cfg.Token)
	}
	conn, _, err := websocket.Dial(ctx, c.cfg.URL, &websocket.DialOptions{HTTPHeader: headers})
	if err != nil {
		return nil, fmt.Errorf("gateway: dial: %w", err)
	}
	return conn, nil
}

func (c *Client) setConn(conn *websocket.Conn) {
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
}

// readLoop dispatches inbound frames until the connection fails.
func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn, d trigger.Dispatcher) error {
	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}
		if typ != websocket.MessageText {
			continue
		}
		f, err := decodeFrame(data)
		if err != nil {
			c.logger.Warn("gateway: dropping frame", "err", err)
			continue
		}
		if f.Kind != KindEvent {
			continue
		}
		if !deliver(ctx, d, f) {
			c.logger.Debug("gateway: unknown event", "event", f.Event)
		}
	}
}

// send writes one action frame on the current connection.
func (c *Client) send(ctx context.Context, f Frame) error {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()
	if conn == nil {
		return ErrNotConnected
	}

	f.Kind = KindAction
	data, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("gateway: encode %s: %w", f.Action, err)
	}
	ctx, cancel := context.WithTimeout(ctx, c.writeWait)
	defer cancel()
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		return fmt.Errorf("gateway: send %s: %w", f.Action, err)
	}
	return nil
}

// SendDirectMessage implements [trigger.Client].
func (c *Client) SendDirectMessage(ctx context.Context, userID, text string) error {
	return c.send(ctx, Frame{Action: ActionSendDirect, User: userID, Text: text})
}

// SendRoomMessage implements [trigger.Client].
func (c *Client) SendRoomMessage(ctx context.Context, roomID, text string) error {
	return c.send(ctx, Frame{Action: ActionSendRoom, Room: roomID, Text: text})
}

// Kick implements [trigger.Moderator].
func (c *Client) Kick(ctx context.Context, roomID, userID string) error {
	return c.send(ctx, Frame{Action: ActionKick, Room: roomID, User: userID})
}

// Ban implements [trigger.Moderator].
func (c *Client) Ban(ctx context.Context, roomID, userID string) error {
	return c.send(ctx, Frame{Action: ActionBan, Room: roomID, User: userID})
}

// Unban implements [trigger.Moderator].
func (c *Client) Unban(ctx context.Context, roomID, userID string) error {
	return c.send(ctx, Frame{Action: ActionUnban, Room: roomID, User: userID})
}

// JoinRoom implements [trigger.RoomManager].
func (c *Client) JoinRoom(ctx context.Context, roomID string) error {
	return c.send(ctx, Frame{Action: ActionJoin, Room: roomID})
}

// LeaveRoom implements [trigger.RoomManager].
func (c *Client) LeaveRoom(ctx context.Context, roomID string) error {
	return c.send(ctx, Frame{Action: ActionLeave, Room: roomID})
}

// LockRoom implements [trigger.RoomController].
func (c *Client) LockRoom(ctx context.Context, roomID string, locked bool) error {
	action := ActionUnlock
	if locked {
		action = ActionLock
	}
	return c.send(ctx, Frame{Action: action, Room: roomID})
}

// ModerateRoom implements [trigger.RoomController].
func (c *Client) ModerateRoom(ctx context.Context, roomID string, moderated bool) error {
	action := ActionUnmoderate
	if moderated {
		action = ActionModerate
	}
	return c.send(ctx, Frame{Action: action, Room: roomID})
}

// AcceptFriend implements [trigger.FriendManager].
func (c *Client) AcceptFriend(ctx context.Context, userID string) error {
	return c.send(ctx, Frame{Action: ActionAcceptFriend, User: userID})
}

// AcceptInvite implements [trigger.InviteAccepter].
func (c *Client) AcceptInvite(ctx context.Context, roomID string) error {
	return c.send(ctx, Frame{Action: ActionAcceptInvite, Room: roomID})
}

// SetPlaying implements [trigger.PresenceSetter].
func (c *Client) SetPlaying(ctx context.Context, activity string) error {
	return c.send(ctx, Frame{Action: ActionSetPlaying, Text: activity})
}
