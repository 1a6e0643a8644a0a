package trigger

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/MrWong99/chattrigger/internal/observe"
	"github.com/MrWong99/chattrigger/internal/triggerstore"
)

// Type is the tag that selects a trigger's [Factory], e.g. "unban".
type Type string

// Event names the inbound event kinds in logs, metrics and spans.
type Event string

const (
	EventLoggedOn      Event = "logged_on"
	EventLoggedOff     Event = "logged_off"
	EventChatInvite    Event = "chat_invite"
	EventFriendRequest Event = "friend_request"
	EventFriendMessage Event = "friend_message"
	EventSentMessage   Event = "sent_message"
	EventChatMessage   Event = "chat_message"
	EventEnteredChat   Event = "entered_chat"
	EventKicked        Event = "kicked_chat"
	EventBanned        Event = "banned_chat"
	EventDisconnected  Event = "disconnected"
	EventLeftChat      Event = "left_chat"
	EventTradeOffer    Event = "trade_offer"
	EventTradeProposed Event = "trade_proposed"
	EventTradeSession  Event = "trade_session"
	EventAnnouncement  Event = "announcement"
)

// Trigger is one loaded trigger instance: its options, its strategy and its
// cooldown. The On* methods run the admission pipeline for their event kind
// and report whether the strategy acted. They never return errors; faults
// are logged and reported as false.
type Trigger struct {
	typ      Type
	name     string
	session  string
	opts     Options
	strategy Strategy
	cooldown *Cooldown
	sender   *DelayedSender
	roll     func() float64
	logger   *slog.Logger
	metrics  *observe.Metrics
}

// Name returns the trigger's unique name within its session.
func (t *Trigger) Name() string { return t.name }

// Type returns the trigger's type tag.
func (t *Trigger) Type() Type { return t.typ }

// Session returns the session the trigger was loaded for.
func (t *Trigger) Session() string { return t.session }

// Options returns a copy of the trigger's options.
func (t *Trigger) Options() Options { return t.opts.Clone() }

// Strategy returns the strategy the trigger dispatches to.
func (t *Trigger) Strategy() Strategy { return t.strategy }

// Enabled reports whether the trigger is outside its cooldown window.
func (t *Trigger) Enabled() bool { return t.cooldown.Enabled() }

// ResetCooldown ends a running cooldown window immediately.
func (t *Trigger) ResetCooldown() {
	t.cooldown.Reset()
	t.logger.Info("cooldown reset")
}

// Record returns the persisted form of the trigger.
func (t *Trigger) Record() (triggerstore.Record, error) {
	raw, err := t.opts.Encode()
	if err != nil {
		return triggerstore.Record{}, err
	}
	return triggerstore.Record{Name: t.name, Type: string(t.typ), Options: raw}, nil
}

func (t *Trigger) stop() { t.cooldown.Stop() }

// guardSet selects the admission checks applied to one event kind. Checks
// always run in the order of the constants below.
type guardSet uint8

const (
	checkEnabled guardSet = 1 << iota
	checkProbability
	checkUser
	checkRoom
	checkIgnore

	allGuards = checkEnabled | checkProbability | checkUser | checkRoom | checkIgnore
)

// admission carries the IDs the guards look at.
type admission struct {
	user   string
	room   string
	ignore []string
}

func (t *Trigger) admit(g guardSet, a admission) (rejectedBy string) {
	if g&checkEnabled != 0 && !t.cooldown.Enabled() {
		return "enabled"
	}
	if g&checkProbability != 0 && t.opts.Probability != nil && t.roll() > *t.opts.Probability {
		return "probability"
	}
	if g&checkUser != 0 && len(t.opts.Users) > 0 && !slices.Contains(t.opts.Users, a.user) {
		return "user"
	}
	if g&checkRoom != 0 && len(t.opts.Rooms) > 0 && !slices.Contains(t.opts.Rooms, a.room) {
		return "room"
	}
	if g&checkIgnore != 0 {
		for _, id := range a.ignore {
			if slices.Contains(t.opts.Ignore, id) {
				return "ignore"
			}
		}
	}
	return ""
}

// dispatch runs the guards in g, then hook. engage starts the cooldown after
// a successful hook.
func (t *Trigger) dispatch(ctx context.Context, ev Event, g guardSet, a admission, engage bool, hook func(context.Context) (bool, error)) (handled bool) {
	phase := "guard"
	defer func() {
		if r := recover(); r != nil {
			t.fault(ctx, ev, phase, "panic", fmt.Errorf("panic: %v", r))
			handled = false
		}
	}()

	if reason := t.admit(g, a); reason != "" {
		observe.Logger(ctx, t.logger).Debug("event rejected", "event", ev, "guard", reason)
		t.metrics.RecordRejection(ctx, t.name, reason)
		t.metrics.RecordEvent(ctx, t.name, string(ev), observe.OutcomeRejected)
		return false
	}

	phase = "hook"
	ok, err := hook(ctx)
	if err != nil {
		t.fault(ctx, ev, phase, "error", err)
		return false
	}
	if !ok {
		t.metrics.RecordEvent(ctx, t.name, string(ev), observe.OutcomeIgnored)
		return false
	}
	if engage && t.cooldown.Engage() {
		observe.Logger(ctx, t.logger).Debug("cooldown engaged", "timeout", t.opts.TimeoutDuration())
	}
	t.metrics.RecordEvent(ctx, t.name, string(ev), observe.OutcomeHandled)
	return true
}

func (t *Trigger) fault(ctx context.Context, ev Event, phase, kind string, err error) {
	observe.Logger(ctx, t.logger).Error("trigger fault",
		"event", ev, "phase", phase, "kind", kind, "err", err)
	t.metrics.RecordHookFault(ctx, t.name, string(ev), kind)
	t.metrics.RecordEvent(ctx, t.name, string(ev), observe.OutcomeFault)
}

// OnLoggedOn runs the logged-on lifecycle hook.
func (t *Trigger) OnLoggedOn(ctx context.Context) bool {
	return t.dispatch(ctx, EventLoggedOn, 0, admission{}, false, t.strategy.OnLoggedOn)
}

// OnLoggedOff runs the logged-off lifecycle hook.
func (t *Trigger) OnLoggedOff(ctx context.Context) bool {
	return t.dispatch(ctx, EventLoggedOff, 0, admission{}, false, t.strategy.OnLoggedOff)
}

// OnChatInvite handles an invitation to roomID from inviterID. The inviter
// must pass the user whitelist and the room the room whitelist; neither may
// be ignored.
func (t *Trigger) OnChatInvite(ctx context.Context, roomID, roomName, inviterID string) bool {
	a := admission{user: inviterID, room: roomID, ignore: []string{inviterID, roomID}}
	return t.dispatch(ctx, EventChatInvite, checkUser|checkRoom|checkIgnore, a, false,
		func(ctx context.Context) (bool, error) {
			return t.strategy.RespondToChatInvite(ctx, roomID, roomName, inviterID)
		})
}

// OnFriendRequest handles a friend request from userID.
func (t *Trigger) OnFriendRequest(ctx context.Context, userID string) bool {
	a := admission{user: userID, ignore: []string{userID}}
	return t.dispatch(ctx, EventFriendRequest, checkUser|checkIgnore, a, false,
		func(ctx context.Context) (bool, error) {
			return t.strategy.RespondToFriendRequest(ctx, userID)
		})
}

// OnFriendMessage handles a direct message from userID.
func (t *Trigger) OnFriendMessage(ctx context.Context, userID, message string) bool {
	a := admission{user: userID, ignore: []string{userID}}
	return t.dispatch(ctx, EventFriendMessage, checkEnabled|checkProbability|checkUser|checkIgnore, a, true,
		func(ctx context.Context) (bool, error) {
			return t.strategy.RespondToFriendMessage(ctx, userID, message)
		})
}

// OnSentMessage handles a message the session itself sent to toID. No
// guards apply.
func (t *Trigger) OnSentMessage(ctx context.Context, toID, message string) bool {
	return t.dispatch(ctx, EventSentMessage, 0, admission{}, false,
		func(ctx context.Context) (bool, error) {
			return t.strategy.RespondToSentMessage(ctx, toID, message)
		})
}

// OnChatMessage handles a message by chatterID in roomID.
func (t *Trigger) OnChatMessage(ctx context.Context, roomID, chatterID, message string) bool {
	a := admission{user: chatterID, room: roomID, ignore: []string{chatterID, roomID}}
	return t.dispatch(ctx, EventChatMessage, allGuards, a, true,
		func(ctx context.Context) (bool, error) {
			return t.strategy.RespondToChatMessage(ctx, roomID, chatterID, message)
		})
}

// OnEnteredChat handles userID joining roomID.
func (t *Trigger) OnEnteredChat(ctx context.Context, roomID, userID string) bool {
	a := admission{user: userID, room: roomID, ignore: []string{userID, roomID}}
	return t.dispatch(ctx, EventEnteredChat, allGuards, a, true,
		func(ctx context.Context) (bool, error) {
			return t.strategy.RespondToEnteredChat(ctx, roomID, userID)
		})
}

// OnKicked handles kickerID kicking kickedID from roomID. Only the room
// whitelist and the ignore list (kicker and room) are consulted.
func (t *Trigger) OnKicked(ctx context.Context, roomID, kickedID, kickerID string) bool {
	a := admission{room: roomID, ignore: []string{kickerID, roomID}}
	return t.dispatch(ctx, EventKicked, checkEnabled|checkProbability|checkRoom|checkIgnore, a, true,
		func(ctx context.Context) (bool, error) {
			return t.strategy.RespondToKick(ctx, roomID, kickedID, kickerID)
		})
}

// OnBanned handles bannerID banning bannedID from roomID.
func (t *Trigger) OnBanned(ctx context.Context, roomID, bannedID, bannerID string) bool {
	a := admission{room: roomID, ignore: []string{bannerID, roomID}}
	return t.dispatch(ctx, EventBanned, checkEnabled|checkProbability|checkRoom|checkIgnore, a, true,
		func(ctx context.Context) (bool, error) {
			return t.strategy.RespondToBan(ctx, roomID, bannedID, bannerID)
		})
}

// OnDisconnected handles userID dropping out of roomID.
func (t *Trigger) OnDisconnected(ctx context.Context, roomID, userID string) bool {
	a := admission{user: userID, room: roomID, ignore: []string{userID, roomID}}
	return t.dispatch(ctx, EventDisconnected, allGuards, a, true,
		func(ctx context.Context) (bool, error) {
			return t.strategy.RespondToDisconnect(ctx, roomID, userID)
		})
}

// OnLeftChat handles userID leaving roomID. It runs every guard but does
// not engage the cooldown.
func (t *Trigger) OnLeftChat(ctx context.Context, roomID, userID string) bool {
	a := admission{user: userID, room: roomID, ignore: []string{userID, roomID}}
	return t.dispatch(ctx, EventLeftChat, allGuards, a, false,
		func(ctx context.Context) (bool, error) {
			return t.strategy.RespondToLeftChat(ctx, roomID, userID)
		})
}

// OnTradeOffer handles a change in the number of pending trade offers.
func (t *Trigger) OnTradeOffer(ctx context.Context, count int) bool {
	return t.dispatch(ctx, EventTradeOffer, 0, admission{}, false,
		func(ctx context.Context) (bool, error) {
			return t.strategy.RespondToTradeOffer(ctx, count)
		})
}

// OnTradeProposed handles a trade proposal from userID.
func (t *Trigger) OnTradeProposed(ctx context.Context, tradeID, userID string) bool {
	a := admission{user: userID, ignore: []string{userID}}
	return t.dispatch(ctx, EventTradeProposed, checkUser|checkIgnore, a, false,
		func(ctx context.Context) (bool, error) {
			return t.strategy.RespondToTradeProposal(ctx, tradeID, userID)
		})
}

// OnTradeSession handles the start of a trade session with userID.
func (t *Trigger) OnTradeSession(ctx context.Context, userID string) bool {
	a := admission{user: userID, ignore: []string{userID}}
	return t.dispatch(ctx, EventTradeSession, checkUser|checkIgnore, a, false,
		func(ctx context.Context) (bool, error) {
			return t.strategy.RespondToTradeSession(ctx, userID)
		})
}

// OnAnnouncement handles a group announcement. Only the ignore list applies,
// checked against the group ID.
func (t *Trigger) OnAnnouncement(ctx context.Context, groupID, headline string) bool {
	a := admission{ignore: []string{groupID}}
	return t.dispatch(ctx, EventAnnouncement, checkIgnore, a, false,
		func(ctx context.Context) (bool, error) {
			return t.strategy.RespondToAnnouncement(ctx, groupID, headline)
		})
}
