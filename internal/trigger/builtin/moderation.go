package builtin

import (
	"context"
	"fmt"
	"slices"
	"strconv"

	"github.com/MrWong99/chattrigger/internal/trigger"
)

type moderateFunc func(ctx context.Context, m trigger.Moderator, roomID, userID string) error

func moderateUnban(ctx context.Context, m trigger.Moderator, roomID, userID string) error {
	return m.Unban(ctx, roomID, userID)
}

func moderateBan(ctx context.Context, m trigger.Moderator, roomID, userID string) error {
	return m.Ban(ctx, roomID, userID)
}

func moderateKick(ctx context.Context, m trigger.Moderator, roomID, userID string) error {
	return m.Kick(ctx, roomID, userID)
}

// Moderation handles "<command> <userID>" room messages by applying one
// moderation action to the named participant in the room the command was
// issued in. Unban, ban and kick triggers are all Moderation strategies.
//
// The participant ID must be numeric. When responses are configured the
// first one is sent to the room afterwards, with {user} replaced by the
// target ID.
type Moderation struct {
	trigger.Nop
	env    trigger.Env
	action moderateFunc
}

func newModeration(action moderateFunc) trigger.Factory {
	return func(env trigger.Env) (trigger.Strategy, error) {
		return &Moderation{env: env, action: action}, nil
	}
}

// OnLoad rejects a trigger without a command.
func (m *Moderation) OnLoad(context.Context) (bool, error) {
	return requireCommand(m.env)
}

// RespondToChatMessage applies the action when message is a well-formed
// command.
func (m *Moderation) RespondToChatMessage(ctx context.Context, roomID, _, message string) (bool, error) {
	query := trigger.StripCommand(message, m.env.Options.Command)
	if len(query) < 2 {
		return false, nil
	}
	target := query[1]
	if _, err := strconv.ParseUint(target, 10, 64); err != nil {
		m.env.Logger.Debug("ignoring non-numeric moderation target", "target", target)
		return false, nil
	}

	mod, ok := m.env.Client.(trigger.Moderator)
	if !ok {
		return false, fmt.Errorf("%s: %w", m.env.Type, trigger.ErrUnsupported)
	}
	if err := m.action(ctx, mod, roomID, target); err != nil {
		return false, fmt.Errorf("%s %s in %s: %w", m.env.Type, target, roomID, err)
	}
	m.env.Logger.Info("moderation applied", "room", roomID, "target", target)

	if len(m.env.Options.Responses) > 0 {
		if err := m.env.Sender.SendRoom(ctx, roomID, fill(m.env.Options.Responses[0], target, roomID)); err != nil {
			m.env.Logger.Warn("moderation confirmation not sent", "room", roomID, "err", err)
		}
	}
	return true, nil
}

// RoomControl locks, unlocks, moderates or unmoderates the room its command
// is issued in. The first response, if any, is sent to the room afterwards.
type RoomControl struct {
	trigger.Nop
	env   trigger.Env
	apply func(ctx context.Context, rc trigger.RoomController, roomID string) error
}

func newRoomControl(apply func(ctx context.Context, rc trigger.RoomController, roomID string) error) trigger.Factory {
	return func(env trigger.Env) (trigger.Strategy, error) {
		return &RoomControl{env: env, apply: apply}, nil
	}
}

// OnLoad rejects a trigger without a command.
func (r *RoomControl) OnLoad(context.Context) (bool, error) { return requireCommand(r.env) }

// RespondToChatMessage applies the room change on command.
func (r *RoomControl) RespondToChatMessage(ctx context.Context, roomID, _, message string) (bool, error) {
	if trigger.StripCommand(message, r.env.Options.Command) == nil {
		return false, nil
	}
	rc, ok := r.env.Client.(trigger.RoomController)
	if !ok {
		return false, fmt.Errorf("%s: %w", r.env.Type, trigger.ErrUnsupported)
	}
	if err := r.apply(ctx, rc, roomID); err != nil {
		return false, fmt.Errorf("%s in %s: %w", r.env.Type, roomID, err)
	}
	r.env.Logger.Info("room updated", "room", roomID, "change", r.env.Type)
	if len(r.env.Options.Responses) > 0 {
		if err := r.env.Sender.SendRoom(ctx, roomID, fill(r.env.Options.Responses[0], "", roomID)); err != nil {
			r.env.Logger.Warn("room update confirmation not sent", "room", roomID, "err", err)
		}
	}
	return true, nil
}

// BanCheck bans participants on the blocklist in matches as soon as they
// enter a room. The first response, if any, announces the ban with {user}
// replaced by the banned ID.
type BanCheck struct {
	trigger.Nop
	env trigger.Env
}

// OnLoad rejects a trigger with an empty blocklist.
func (b *BanCheck) OnLoad(context.Context) (bool, error) {
	if len(b.env.Options.Matches) == 0 {
		return false, errMissing(b.env, "matches")
	}
	return true, nil
}

// RespondToEnteredChat bans userID if it is blocklisted.
func (b *BanCheck) RespondToEnteredChat(ctx context.Context, roomID, userID string) (bool, error) {
	if !slices.Contains(b.env.Options.Matches, userID) {
		return false, nil
	}
	mod, ok := b.env.Client.(trigger.Moderator)
	if !ok {
		return false, fmt.Errorf("%s: %w", b.env.Type, trigger.ErrUnsupported)
	}
	if err := mod.Ban(ctx, roomID, userID); err != nil {
		return false, fmt.Errorf("%s %s in %s: %w", b.env.Type, userID, roomID, err)
	}
	b.env.Logger.Info("blocklisted participant banned", "room", roomID, "user", userID)
	if len(b.env.Options.Responses) > 0 {
		if err := b.env.Sender.SendRoom(ctx, roomID, fill(b.env.Options.Responses[0], userID, roomID)); err != nil {
			b.env.Logger.Warn("ban notice not sent", "room", roomID, "err", err)
		}
	}
	return true, nil
}
