package discord

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/MrWong99/chattrigger/internal/trigger"
)

var (
	_ trigger.Client         = (*Bot)(nil)
	_ trigger.Moderator      = (*Bot)(nil)
	_ trigger.RoomManager    = (*Bot)(nil)
	_ trigger.RoomController = (*Bot)(nil)
	_ trigger.PresenceSetter = (*Bot)(nil)
)

// SendDirectMessage opens (or reuses) the DM channel with userID and posts text.
func (b *Bot) SendDirectMessage(_ context.Context, userID, text string) error {
	ch, err := b.api.UserChannelCreate(userID)
	if err != nil {
		return fmt.Errorf("discord: open dm with %s: %w", userID, err)
	}
	if _, err := b.api.ChannelMessageSend(ch.ID, text); err != nil {
		return fmt.Errorf("discord: send dm to %s: %w", userID, err)
	}
	return nil
}

// SendRoomMessage posts text to the channel roomID.
func (b *Bot) SendRoomMessage(_ context.Context, roomID, text string) error {
	if _, err := b.api.ChannelMessageSend(roomID, text); err != nil {
		return fmt.Errorf("discord: send to channel %s: %w", roomID, err)
	}
	return nil
}

// Kick removes userID from the guild that owns roomID.
func (b *Bot) Kick(_ context.Context, roomID, userID string) error {
	guildID, err := b.guildOf(roomID)
	if err != nil {
		return err
	}
	if err := b.api.GuildMemberDelete(guildID, userID); err != nil {
		return fmt.Errorf("discord: kick %s: %w", userID, err)
	}
	return nil
}

// Ban bans userID from the guild that owns roomID without deleting messages.
func (b *Bot) Ban(_ context.Context, roomID, userID string) error {
	guildID, err := b.guildOf(roomID)
	if err != nil {
		return err
	}
	if err := b.api.GuildBanCreate(guildID, userID, 0); err != nil {
		return fmt.Errorf("discord: ban %s: %w", userID, err)
	}
	return nil
}

// Unban lifts a ban on userID in the guild that owns roomID.
func (b *Bot) Unban(_ context.Context, roomID, userID string) error {
	guildID, err := b.guildOf(roomID)
	if err != nil {
		return err
	}
	if err := b.api.GuildBanDelete(guildID, userID); err != nil {
		return fmt.Errorf("discord: unban %s: %w", userID, err)
	}
	return nil
}

// JoinRoom verifies the bot can see roomID. Bots cannot join guilds on their
// own; a reachable channel is already joined.
func (b *Bot) JoinRoom(_ context.Context, roomID string) error {
	_, err := b.guildOf(roomID)
	return err
}

// LeaveRoom leaves the guild that owns roomID.
func (b *Bot) LeaveRoom(_ context.Context, roomID string) error {
	guildID, err := b.guildOf(roomID)
	if err != nil {
		return err
	}
	if err := b.api.GuildLeave(guildID); err != nil {
		return fmt.Errorf("discord: leave guild %s: %w", guildID, err)
	}
	return nil
}

// LockRoom stops (or restores) invite creation for @everyone in roomID.
func (b *Bot) LockRoom(_ context.Context, roomID string, locked bool) error {
	return b.restrictEveryone(roomID, discordgo.PermissionCreateInstantInvite, locked)
}

// ModerateRoom revokes (or restores) the right of @everyone to post in
// roomID. Roles with their own overwrite keep speaking.
func (b *Bot) ModerateRoom(_ context.Context, roomID string, moderated bool) error {
	return b.restrictEveryone(roomID, discordgo.PermissionSendMessages, moderated)
}

// restrictEveryone toggles perm in the deny set of roomID's @everyone
// overwrite, leaving its other bits untouched. The @everyone role shares the
// guild's ID.
func (b *Bot) restrictEveryone(roomID string, perm int64, deny bool) error {
	ch, err := b.api.Channel(roomID)
	if err != nil {
		return fmt.Errorf("discord: resolve channel %s: %w", roomID, err)
	}
	if ch.GuildID == "" {
		return fmt.Errorf("discord: channel %s is not a guild channel: %w", roomID, trigger.ErrUnsupported)
	}
	b.rememberRoom(roomID, ch.GuildID)

	var allow, denied int64
	for _, ow := range ch.PermissionOverwrites {
		if ow.ID == ch.GuildID && ow.Type == discordgo.PermissionOverwriteTypeRole {
			allow, denied = ow.Allow, ow.Deny
			break
		}
	}
	if deny {
		allow &^= perm
		denied |= perm
	} else {
		denied &^= perm
	}
	err = b.api.ChannelPermissionSet(roomID, ch.GuildID, discordgo.PermissionOverwriteTypeRole, allow, denied)
	if err != nil {
		return fmt.Errorf("discord: update permissions in %s: %w", roomID, err)
	}
	return nil
}

// SetPlaying sets the bot's "Playing ..." status.
func (b *Bot) SetPlaying(_ context.Context, activity string) error {
	if err := b.api.UpdateGameStatus(0, activity); err != nil {
		return fmt.Errorf("discord: update status: %w", err)
	}
	return nil
}

// guildOf resolves the guild owning channel roomID, consulting the cache
// filled by gateway events before asking the REST API.
func (b *Bot) guildOf(roomID string) (string, error) {
	b.mu.RLock()
	guildID, ok := b.roomGuild[roomID]
	b.mu.RUnlock()
	if ok {
		return guildID, nil
	}

	ch, err := b.api.Channel(roomID)
	if err != nil {
		return "", fmt.Errorf("discord: resolve channel %s: %w", roomID, err)
	}
	if ch.GuildID == "" {
		return "", fmt.Errorf("discord: channel %s is not a guild channel: %w", roomID, trigger.ErrUnsupported)
	}
	b.rememberRoom(roomID, ch.GuildID)
	return ch.GuildID, nil
}

func (b *Bot) rememberRoom(roomID, guildID string) {
	if roomID == "" || guildID == "" {
		return
	}
	b.mu.Lock()
	b.roomGuild[roomID] = guildID
	b.mu.Unlock()
}

// roomOfGuild returns the channel guild-scoped events are reported against:
// the system channel when the guild has one, else the guild ID itself.
func (b *Bot) roomOfGuild(guildID string) string {
	b.mu.RLock()
	room, ok := b.guildRoom[guildID]
	b.mu.RUnlock()
	if ok {
		return room
	}

	g, err := b.api.Guild(guildID)
	if err != nil || g.SystemChannelID == "" {
		if err != nil {
			b.logger.Debug("discord: guild lookup failed", "guild", guildID, "err", err)
		}
		return guildID
	}
	b.rememberGuild(g)
	return g.SystemChannelID
}

func (b *Bot) rememberGuild(g *discordgo.Guild) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.knownGuild[g.ID] = true
	if g.SystemChannelID != "" {
		b.guildRoom[g.ID] = g.SystemChannelID
		b.roomGuild[g.SystemChannelID] = g.ID
	}
	for _, ch := range g.Channels {
		b.roomGuild[ch.ID] = g.ID
	}
}
