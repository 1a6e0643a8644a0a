package discord

import (
	"github.com/bwmarrin/discordgo"
)

// onReady reports the logon and records the guilds the bot already belongs
// to, so their GUILD_CREATE replay is not mistaken for an invite.
func (b *Bot) onReady(_ *discordgo.Session, r *discordgo.Ready) {
	b.mu.Lock()
	b.connected = true
	if r.User != nil {
		b.selfID = r.User.ID
	}
	for _, g := range r.Guilds {
		b.knownGuild[g.ID] = true
	}
	self := b.selfID
	b.mu.Unlock()

	ctx, d := b.target()
	if d == nil {
		return
	}
	b.logger.Info("discord logged on", "user", self, "guilds", len(r.Guilds))
	d.LoggedOn(ctx)
}

func (b *Bot) onDisconnect(_ *discordgo.Session, _ *discordgo.Disconnect) {
	b.mu.Lock()
	b.connected = false
	b.mu.Unlock()

	ctx, d := b.target()
	if d == nil {
		return
	}
	b.logger.Warn("discord disconnected")
	d.LoggedOff(ctx)
}

// onGuildCreate treats a guild the bot did not know at logon as an accepted
// invite into that guild's system channel.
func (b *Bot) onGuildCreate(_ *discordgo.Session, g *discordgo.GuildCreate) {
	if g.Guild == nil || g.Unavailable {
		return
	}
	b.mu.RLock()
	known := b.knownGuild[g.ID]
	b.mu.RUnlock()
	b.rememberGuild(g.Guild)
	if known {
		return
	}

	ctx, d := b.target()
	if d == nil {
		return
	}
	room := g.SystemChannelID
	if room == "" {
		room = g.ID
	}
	d.ChatInvite(ctx, room, g.Name, g.OwnerID)
}

// onMessageCreate routes a message by origin: the bot's own messages become
// sent-message events, DMs become friend messages, and guild messages become
// chat messages. Messages from other bots are dropped.
func (b *Bot) onMessageCreate(_ *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Message == nil || m.Author == nil {
		return
	}
	ctx, d := b.target()
	if d == nil {
		return
	}
	b.rememberRoom(m.ChannelID, m.GuildID)

	b.mu.RLock()
	self := b.selfID
	b.mu.RUnlock()

	switch {
	case m.Author.ID == self:
		d.SentMessage(ctx, m.ChannelID, m.Content)
	case m.Author.Bot:
		return
	case m.GuildID == "":
		d.FriendMessage(ctx, m.Author.ID, m.Content)
	default:
		d.ChatMessage(ctx, m.ChannelID, m.Author.ID, m.Content)
	}
}

func (b *Bot) onGuildMemberAdd(_ *discordgo.Session, m *discordgo.GuildMemberAdd) {
	if m.Member == nil || m.User == nil {
		return
	}
	ctx, d := b.target()
	if d == nil {
		return
	}
	d.EnteredChat(ctx, b.roomOfGuild(m.GuildID), m.User.ID)
}

func (b *Bot) onGuildMemberRemove(_ *discordgo.Session, m *discordgo.GuildMemberRemove) {
	if m.Member == nil || m.User == nil {
		return
	}
	ctx, d := b.target()
	if d == nil {
		return
	}
	d.LeftChat(ctx, b.roomOfGuild(m.GuildID), m.User.ID)
}

// onGuildBanAdd reports a ban. The gateway does not name the moderator.
func (b *Bot) onGuildBanAdd(_ *discordgo.Session, ev *discordgo.GuildBanAdd) {
	if ev.User == nil {
		return
	}
	ctx, d := b.target()
	if d == nil {
		return
	}
	d.Banned(ctx, b.roomOfGuild(ev.GuildID), ev.User.ID, "")
}
