package gateway

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/MrWong99/chattrigger/internal/trigger"
)

// Frame kinds.
const (
	KindEvent  = "event"
	KindAction = "action"
	KindAck    = "ack"
)

// Action names sent to the gateway.
const (
	ActionSendDirect   = "send_direct"
	ActionSendRoom     = "send_room"
	ActionKick         = "kick"
	ActionBan          = "ban"
	ActionUnban        = "unban"
	ActionJoin         = "join"
	ActionLeave        = "leave"
	ActionAcceptFriend = "accept_friend"
	ActionAcceptInvite = "accept_invite"
	ActionSetPlaying   = "set_playing"
	ActionLock         = "lock"
	ActionUnlock       = "unlock"
	ActionModerate     = "moderate"
	ActionUnmoderate   = "unmoderate"
)

// Frame is one JSON text message on the gateway socket. Inbound frames carry
// Kind "event" and an Event name; outbound frames carry Kind "action". The
// remaining fields are populated per event or action.
type Frame struct {
	Kind   string `json:"kind"`
	Event  string `json:"event,omitempty"`
	Action string `json:"action,omitempty"`

	Room  string `json:"room,omitempty"`
	User  string `json:"user,omitempty"`
	Actor string `json:"actor,omitempty"`
	Name  string `json:"name,omitempty"`
	ID    string `json:"id,omitempty"`
	Text  string `json:"text,omitempty"`
	Count int    `json:"count,omitempty"`
}

// decodeFrame parses one inbound message.
func decodeFrame(data []byte) (Frame, error) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return Frame{}, fmt.Errorf("gateway: decode frame: %w", err)
	}
	return f, nil
}

// deliver hands an inbound event frame to d. It reports false for frames that
// name no known event.
func deliver(ctx context.Context, d trigger.Dispatcher, f Frame) bool {
	switch trigger.Event(f.Event) {
	case trigger.EventLoggedOn:
		d.LoggedOn(ctx)
	case trigger.EventLoggedOff:
		d.LoggedOff(ctx)
	case trigger.EventChatInvite:
		d.ChatInvite(ctx, f.Room, f.Name, f.Actor)
	case trigger.EventFriendRequest:
		d.FriendRequest(ctx, f.User)
	case trigger.EventFriendMessage:
		d.FriendMessage(ctx, f.User, f.Text)
	case trigger.EventSentMessage:
		d.SentMessage(ctx, f.User, f.Text)
	case trigger.EventChatMessage:
		d.ChatMessage(ctx, f.Room, f.User, f.Text)
	case trigger.EventEnteredChat:
		d.EnteredChat(ctx, f.Room, f.User)
	case trigger.EventKicked:
		d.Kicked(ctx, f.Room, f.User, f.Actor)
	case trigger.EventBanned:
		d.Banned(ctx, f.Room, f.User, f.Actor)
	case trigger.EventDisconnected:
		d.Disconnected(ctx, f.Room, f.User)
	case trigger.EventLeftChat:
		d.LeftChat(ctx, f.Room, f.User)
	case trigger.EventTradeOffer:
		d.TradeOffer(ctx, f.Count)
	case trigger.EventTradeProposed:
		d.TradeProposed(ctx, f.ID, f.User)
	case trigger.EventTradeSession:
		d.TradeSession(ctx, f.User)
	case trigger.EventAnnouncement:
		d.Announcement(ctx, f.ID, f.Text)
	default:
		return false
	}
	return true
}
