package trigger

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/MrWong99/chattrigger/internal/observe"
)

// Engine fans inbound events out to every loaded trigger of one session.
// Delivery is synchronous: triggers see an event one at a time in load
// order. Each method reports whether any trigger acted.
type Engine struct {
	session string
	sched   *Scheduler
	logger  *slog.Logger
	metrics *observe.Metrics

	mu       sync.RWMutex
	triggers []*Trigger
	byName   map[string]*Trigger
}

// EngineOption configures an [Engine].
type EngineOption func(*Engine)

// WithEngineLogger sets the logger. Default: [slog.Default].
func WithEngineLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) { e.logger = l }
}

// WithEngineMetrics sets the metrics sink. Default: [observe.DefaultMetrics].
func WithEngineMetrics(m *observe.Metrics) EngineOption {
	return func(e *Engine) { e.metrics = m }
}

// WithEngineScheduler hands ownership of s to the engine; [Engine.Close]
// closes it.
func WithEngineScheduler(s *Scheduler) EngineOption {
	return func(e *Engine) { e.sched = s }
}

// NewEngine returns an engine dispatching to triggers in the given order.
// A trigger whose name repeats an earlier one replaces it in place.
func NewEngine(session string, triggers []*Trigger, opts ...EngineOption) *Engine {
	e := &Engine{session: session, byName: make(map[string]*Trigger)}
	for _, o := range opts {
		o(e)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	if e.metrics == nil {
		e.metrics = observe.DefaultMetrics()
	}
	for _, t := range triggers {
		e.put(t)
	}
	return e
}

// Session returns the session ID the engine serves.
func (e *Engine) Session() string { return e.session }

// Put adds t, or replaces the trigger with the same name.
func (e *Engine) Put(t *Trigger) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.put(t)
}

func (e *Engine) put(t *Trigger) {
	if old, ok := e.byName[t.name]; ok {
		old.stop()
		for i, cur := range e.triggers {
			if cur == old {
				e.triggers[i] = t
			}
		}
	} else {
		e.triggers = append(e.triggers, t)
	}
	e.byName[t.name] = t
}

// Lookup returns the named trigger.
func (e *Engine) Lookup(name string) (*Trigger, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	t, ok := e.byName[name]
	return t, ok
}

// Triggers returns a snapshot of the loaded triggers in dispatch order.
func (e *Engine) Triggers() []*Trigger {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]*Trigger, len(e.triggers))
	copy(out, e.triggers)
	return out
}

// Close stops every cooldown and, if the engine owns a scheduler, cancels
// all pending deferred work.
func (e *Engine) Close() error {
	for _, t := range e.Triggers() {
		t.stop()
	}
	if e.sched != nil {
		e.sched.Close()
	}
	return nil
}

// fanout offers the event to each trigger in load order. Every trigger sees
// the event whether or not an earlier one acted.
func (e *Engine) fanout(ctx context.Context, ev Event, call func(context.Context, *Trigger) bool) bool {
	start := time.Now()
	ctx, span := observe.StartEventSpan(ctx, e.session, string(ev))
	defer span.End()

	handled := false
	for _, t := range e.Triggers() {
		if call(ctx, t) {
			handled = true
		}
	}

	span.SetAttributes(attribute.Bool("chattrigger.handled", handled))
	e.metrics.DispatchDuration.Record(ctx, time.Since(start).Seconds(),
		metric.WithAttributes(attribute.String("event", string(ev))))
	return handled
}

// LoggedOn notifies every trigger that the session has logged on.
func (e *Engine) LoggedOn(ctx context.Context) bool {
	e.logger.Info("session logged on", "session", e.session, "triggers", len(e.Triggers()))
	return e.fanout(ctx, EventLoggedOn, func(ctx context.Context, t *Trigger) bool {
		return t.OnLoggedOn(ctx)
	})
}

// LoggedOff notifies every trigger that the session has logged off.
func (e *Engine) LoggedOff(ctx context.Context) bool {
	e.logger.Info("session logged off", "session", e.session)
	return e.fanout(ctx, EventLoggedOff, func(ctx context.Context, t *Trigger) bool {
		return t.OnLoggedOff(ctx)
	})
}

// ChatInvite dispatches an invitation to roomID.
func (e *Engine) ChatInvite(ctx context.Context, roomID, roomName, inviterID string) bool {
	return e.fanout(ctx, EventChatInvite, func(ctx context.Context, t *Trigger) bool {
		return t.OnChatInvite(ctx, roomID, roomName, inviterID)
	})
}

// FriendRequest dispatches a friend request.
func (e *Engine) FriendRequest(ctx context.Context, userID string) bool {
	return e.fanout(ctx, EventFriendRequest, func(ctx context.Context, t *Trigger) bool {
		return t.OnFriendRequest(ctx, userID)
	})
}

// FriendMessage dispatches a direct message.
func (e *Engine) FriendMessage(ctx context.Context, userID, message string) bool {
	return e.fanout(ctx, EventFriendMessage, func(ctx context.Context, t *Trigger) bool {
		return t.OnFriendMessage(ctx, userID, message)
	})
}

// SentMessage dispatches a message the session sent itself.
func (e *Engine) SentMessage(ctx context.Context, toID, message string) bool {
	return e.fanout(ctx, EventSentMessage, func(ctx context.Context, t *Trigger) bool {
		return t.OnSentMessage(ctx, toID, message)
	})
}

// ChatMessage dispatches a room message.
func (e *Engine) ChatMessage(ctx context.Context, roomID, chatterID, message string) bool {
	return e.fanout(ctx, EventChatMessage, func(ctx context.Context, t *Trigger) bool {
		return t.OnChatMessage(ctx, roomID, chatterID, message)
	})
}

// EnteredChat dispatches a room join.
func (e *Engine) EnteredChat(ctx context.Context, roomID, userID string) bool {
	return e.fanout(ctx, EventEnteredChat, func(ctx context.Context, t *Trigger) bool {
		return t.OnEnteredChat(ctx, roomID, userID)
	})
}

// Kicked dispatches a kick.
func (e *Engine) Kicked(ctx context.Context, roomID, kickedID, kickerID string) bool {
	return e.fanout(ctx, EventKicked, func(ctx context.Context, t *Trigger) bool {
		return t.OnKicked(ctx, roomID, kickedID, kickerID)
	})
}

// Banned dispatches a ban.
func (e *Engine) Banned(ctx context.Context, roomID, bannedID, bannerID string) bool {
	return e.fanout(ctx, EventBanned, func(ctx context.Context, t *Trigger) bool {
		return t.OnBanned(ctx, roomID, bannedID, bannerID)
	})
}

// Disconnected dispatches a participant disconnect.
func (e *Engine) Disconnected(ctx context.Context, roomID, userID string) bool {
	return e.fanout(ctx, EventDisconnected, func(ctx context.Context, t *Trigger) bool {
		return t.OnDisconnected(ctx, roomID, userID)
	})
}

// LeftChat dispatches a participant leaving a room.
func (e *Engine) LeftChat(ctx context.Context, roomID, userID string) bool {
	return e.fanout(ctx, EventLeftChat, func(ctx context.Context, t *Trigger) bool {
		return t.OnLeftChat(ctx, roomID, userID)
	})
}

// TradeOffer dispatches a trade offer count change.
func (e *Engine) TradeOffer(ctx context.Context, count int) bool {
	return e.fanout(ctx, EventTradeOffer, func(ctx context.Context, t *Trigger) bool {
		return t.OnTradeOffer(ctx, count)
	})
}

// TradeProposed dispatches a trade proposal.
func (e *Engine) TradeProposed(ctx context.Context, tradeID, userID string) bool {
	return e.fanout(ctx, EventTradeProposed, func(ctx context.Context, t *Trigger) bool {
		return t.OnTradeProposed(ctx, tradeID, userID)
	})
}

// TradeSession dispatches the start of a trade session.
func (e *Engine) TradeSession(ctx context.Context, userID string) bool {
	return e.fanout(ctx, EventTradeSession, func(ctx context.Context, t *Trigger) bool {
		return t.OnTradeSession(ctx, userID)
	})
}

// Announcement dispatches a group announcement.
func (e *Engine) Announcement(ctx context.Context, groupID, headline string) bool {
	return e.fanout(ctx, EventAnnouncement, func(ctx context.Context, t *Trigger) bool {
		return t.OnAnnouncement(ctx, groupID, headline)
	})
}

// String implements [fmt.Stringer] for log output.
func (e *Engine) String() string {
	return fmt.Sprintf("Engine(session=%s, triggers=%d)", e.session, len(e.Triggers()))
}

// Dispatcher is the inbound event surface of an [Engine]. Transports depend
// on it rather than on the concrete engine.
type Dispatcher interface {
	LoggedOn(ctx context.Context) bool
	LoggedOff(ctx context.Context) bool
	ChatInvite(ctx context.Context, roomID, roomName, inviterID string) bool
	FriendRequest(ctx context.Context, userID string) bool
	FriendMessage(ctx context.Context, userID, message string) bool
	SentMessage(ctx context.Context, toID, message string) bool
	ChatMessage(ctx context.Context, roomID, chatterID, message string) bool
	EnteredChat(ctx context.Context, roomID, userID string) bool
	Kicked(ctx context.Context, roomID, kickedID, kickerID string) bool
	Banned(ctx context.Context, roomID, bannedID, bannerID string) bool
	Disconnected(ctx context.Context, roomID, userID string) bool
	LeftChat(ctx context.Context, roomID, userID string) bool
	TradeOffer(ctx context.Context, count int) bool
	TradeProposed(ctx context.Context, tradeID, userID string) bool
	TradeSession(ctx context.Context, userID string) bool
	Announcement(ctx context.Context, groupID, headline string) bool
}

var _ Dispatcher = (*Engine)(nil)
