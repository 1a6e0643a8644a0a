package builtin

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrWong99/chattrigger/internal/trigger"
)

// AcceptChatInvite joins every room the session is invited to (subject to
// the trigger's whitelists) and optionally greets it.
type AcceptChatInvite struct {
	trigger.Nop
	env trigger.Env
}

// RespondToChatInvite accepts the invite.
func (a *AcceptChatInvite) RespondToChatInvite(ctx context.Context, roomID, roomName, inviterID string) (bool, error) {
	acc, ok := a.env.Client.(trigger.InviteAccepter)
	if !ok {
		return false, fmt.Errorf("%s: %w", a.env.Type, trigger.ErrUnsupported)
	}
	if err := acc.AcceptInvite(ctx, roomID); err != nil {
		return false, fmt.Errorf("accept invite to %s: %w", roomID, err)
	}
	a.env.Logger.Info("chat invite accepted", "room", roomID, "room_name", roomName, "inviter", inviterID)
	if len(a.env.Options.Responses) > 0 {
		if err := a.env.Sender.SendRoom(ctx, roomID, fill(a.env.Options.Responses[0], inviterID, roomID)); err != nil {
			a.env.Logger.Warn("invite greeting not sent", "room", roomID, "err", err)
		}
	}
	return true, nil
}

// AcceptFriendRequest accepts friend requests and optionally sends the
// first response to the new friend.
type AcceptFriendRequest struct {
	trigger.Nop
	env trigger.Env
}

// RespondToFriendRequest accepts the request.
func (a *AcceptFriendRequest) RespondToFriendRequest(ctx context.Context, userID string) (bool, error) {
	fm, ok := a.env.Client.(trigger.FriendManager)
	if !ok {
		return false, fmt.Errorf("%s: %w", a.env.Type, trigger.ErrUnsupported)
	}
	if err := fm.AcceptFriend(ctx, userID); err != nil {
		return false, fmt.Errorf("accept friend %s: %w", userID, err)
	}
	if len(a.env.Options.Responses) > 0 {
		if err := a.env.Sender.SendDirect(ctx, userID, fill(a.env.Options.Responses[0], userID, "")); err != nil {
			a.env.Logger.Warn("friend greeting not sent", "user", userID, "err", err)
		}
	}
	return true, nil
}

// AutojoinChat joins every room in its room list when the session logs on.
//
// The list is the trigger's rooms option, which is also its room whitelist:
// any other hook this trigger handled would only fire in those rooms. Give
// room-scoped replies their own trigger.
type AutojoinChat struct {
	trigger.Nop
	env trigger.Env
}

// OnLoad rejects a trigger without rooms.
func (a *AutojoinChat) OnLoad(context.Context) (bool, error) {
	if len(a.env.Options.Rooms) == 0 {
		return false, errMissing(a.env, "rooms")
	}
	return true, nil
}

// OnLoggedOn joins the rooms. Every room is attempted; failures are joined.
func (a *AutojoinChat) OnLoggedOn(ctx context.Context) (bool, error) {
	rm, ok := a.env.Client.(trigger.RoomManager)
	if !ok {
		return false, fmt.Errorf("%s: %w", a.env.Type, trigger.ErrUnsupported)
	}
	var errs []error
	for _, room := range a.env.Options.Rooms {
		if err := rm.JoinRoom(ctx, room); err != nil {
			errs = append(errs, fmt.Errorf("join %s: %w", room, err))
			continue
		}
		a.env.Logger.Info("joined room", "room", room)
	}
	if err := errors.Join(errs...); err != nil {
		return false, err
	}
	return true, nil
}

// LeaveChat leaves the room its command is issued in, after sending the
// first response as a farewell when one is configured.
type LeaveChat struct {
	trigger.Nop
	env trigger.Env
}

// OnLoad rejects a trigger without a command.
func (l *LeaveChat) OnLoad(context.Context) (bool, error) { return requireCommand(l.env) }

// RespondToChatMessage leaves roomID on command.
func (l *LeaveChat) RespondToChatMessage(ctx context.Context, roomID, _, message string) (bool, error) {
	if trigger.StripCommand(message, l.env.Options.Command) == nil {
		return false, nil
	}
	rm, ok := l.env.Client.(trigger.RoomManager)
	if !ok {
		return false, fmt.Errorf("%s: %w", l.env.Type, trigger.ErrUnsupported)
	}
	if len(l.env.Options.Responses) > 0 {
		// The farewell must reach the room before we leave it, so it
		// bypasses the configured delay.
		if err := l.env.Client.SendRoomMessage(ctx, roomID, l.env.Options.Responses[0]); err != nil {
			l.env.Logger.Warn("farewell not sent", "room", roomID, "err", err)
		}
	}
	if err := rm.LeaveRoom(ctx, roomID); err != nil {
		return false, fmt.Errorf("leave %s: %w", roomID, err)
	}
	return true, nil
}

// PlayGame sets the session's presence to the first response when it logs
// on.
type PlayGame struct {
	trigger.Nop
	env trigger.Env
}

// OnLoad rejects a trigger without a game name.
func (p *PlayGame) OnLoad(context.Context) (bool, error) {
	if len(p.env.Options.Responses) == 0 {
		return false, errMissing(p.env, "responses")
	}
	return true, nil
}

// OnLoggedOn sets the presence.
func (p *PlayGame) OnLoggedOn(ctx context.Context) (bool, error) {
	ps, ok := p.env.Client.(trigger.PresenceSetter)
	if !ok {
		return false, fmt.Errorf("%s: %w", p.env.Type, trigger.ErrUnsupported)
	}
	if err := ps.SetPlaying(ctx, p.env.Options.Responses[0]); err != nil {
		return false, fmt.Errorf("set presence: %w", err)
	}
	return true, nil
}
