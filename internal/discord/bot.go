// Package discord provides the Discord transport for chattrigger. It owns the
// discordgo.Session lifecycle, translates gateway events into trigger engine
// calls, implements the outbound client capabilities, and routes slash
// command interactions to registered handlers.
package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bwmarrin/discordgo"

	"github.com/MrWong99/chattrigger/internal/trigger"
)

// Config holds Discord bot configuration.
type Config struct {
	// Token is the Discord bot token without the "Bot " prefix.
	Token string `yaml:"token"`

	// GuildID scopes slash command registration. Empty registers globally.
	GuildID string `yaml:"guild_id"`

	// AdminRoleID is the Discord role ID allowed to run /trigger commands.
	AdminRoleID string `yaml:"admin_role_id"`
}

// API is the subset of [discordgo.Session] the bot calls. *discordgo.Session
// satisfies it; tests substitute a fake.
type API interface {
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	UserChannelCreate(recipientID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	Channel(channelID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	Guild(guildID string, options ...discordgo.RequestOption) (*discordgo.Guild, error)
	GuildMemberDelete(guildID, userID string, options ...discordgo.RequestOption) error
	GuildBanCreate(guildID, userID string, days int, options ...discordgo.RequestOption) error
	GuildBanDelete(guildID, userID string, options ...discordgo.RequestOption) error
	GuildLeave(guildID string, options ...discordgo.RequestOption) error
	ChannelPermissionSet(channelID, targetID string, targetType discordgo.PermissionOverwriteType, allow, deny int64, options ...discordgo.RequestOption) error
	UpdateGameStatus(idle int, name string) error
}

// ErrNotAttached is returned by [Bot.Run] when no dispatcher was attached.
var ErrNotAttached = errors.New("discord: no dispatcher attached")

// Bot owns the Discord gateway connection. Rooms are text channel IDs;
// guild-scoped events are reported against the guild's system channel.
type Bot struct {
	api     API
	session *discordgo.Session // nil in tests
	router  *CommandRouter
	perms   *PermissionChecker
	guildID string
	logger  *slog.Logger

	mu         sync.RWMutex
	ctx        context.Context
	dispatch   trigger.Dispatcher
	selfID     string
	connected  bool
	knownGuild map[string]bool
	roomGuild  map[string]string // channel ID → guild ID
	guildRoom  map[string]string // guild ID → system channel ID
	commands   []*discordgo.ApplicationCommand

	closeOnce sync.Once
}

// Option configures a [Bot].
type Option func(*Bot)

// WithLogger sets the bot's logger. Default: [slog.Default].
func WithLogger(l *slog.Logger) Option {
	return func(b *Bot) {
		if l != nil {
			b.logger = l
		}
	}
}

// New creates a Bot and registers its gateway handlers. The connection is
// opened by [Bot.Run].
func New(cfg Config, opts ...Option) (*Bot, error) {
	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("discord: create session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsGuildBans |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentsMessageContent

	b := newBot(session, cfg, opts...)
	b.session = session

	session.AddHandler(b.onReady)
	session.AddHandler(b.onDisconnect)
	session.AddHandler(b.onGuildCreate)
	session.AddHandler(b.onMessageCreate)
	session.AddHandler(b.onGuildMemberAdd)
	session.AddHandler(b.onGuildMemberRemove)
	session.AddHandler(b.onGuildBanAdd)
	session.AddHandler(func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		b.router.Handle(s, i)
	})
	return b, nil
}

func newBot(api API, cfg Config, opts ...Option) *Bot {
	b := &Bot{
		api:        api,
		router:     NewCommandRouter(),
		perms:      NewPermissionChecker(cfg.AdminRoleID),
		guildID:    cfg.GuildID,
		logger:     slog.Default(),
		ctx:        context.Background(),
		knownGuild: make(map[string]bool),
		roomGuild:  make(map[string]string),
		guildRoom:  make(map[string]string),
	}
	for _, o := range opts {
		o(b)
	}
	b.router.logger = b.logger
	return b
}

// Attach sets the dispatcher that receives inbound events. It must be called
// before [Bot.Run].
func (b *Bot) Attach(d trigger.Dispatcher) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.dispatch = d
}

// Connected reports whether the gateway session is logged on.
func (b *Bot) Connected() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.connected
}

// Router returns the command router for registering handlers.
func (b *Bot) Router() *CommandRouter {
	return b.router
}

// Permissions returns the permission checker.
func (b *Bot) Permissions() *PermissionChecker {
	return b.perms
}

// Run opens the gateway, registers slash commands, and blocks until ctx is
// cancelled. The connection is closed before Run returns.
func (b *Bot) Run(ctx context.Context) error {
	b.mu.Lock()
	if b.dispatch == nil {
		b.mu.Unlock()
		return ErrNotAttached
	}
	b.ctx = ctx
	b.mu.Unlock()

	if err := b.session.Open(); err != nil {
		return fmt.Errorf("discord: open session: %w", err)
	}
	defer b.Close()

	cmds := b.router.ApplicationCommands()
	if len(cmds) > 0 {
		appID := b.session.State.User.ID
		registered, err := b.session.ApplicationCommandBulkOverwrite(appID, b.guildID, cmds)
		if err != nil {
			return fmt.Errorf("discord: register commands: %w", err)
		}
		b.mu.Lock()
		b.commands = registered
		b.mu.Unlock()
		b.logger.Info("discord commands registered", "count", len(registered))
	}

	<-ctx.Done()
	return nil
}

// Close unregisters slash commands and disconnects from Discord.
func (b *Bot) Close() error {
	var closeErr error
	b.closeOnce.Do(func() {
		if b.session == nil {
			return
		}
		b.mu.Lock()
		cmds := b.commands
		b.commands = nil
		b.mu.Unlock()

		if len(cmds) > 0 && b.session.State.User != nil {
			appID := b.session.State.User.ID
			for _, cmd := range cmds {
				if err := b.session.ApplicationCommandDelete(appID, b.guildID, cmd.ID); err != nil {
					b.logger.Warn("discord: failed to delete command", "name", cmd.Name, "err", err)
				}
			}
		}
		if err := b.session.Close(); err != nil {
			closeErr = fmt.Errorf("discord: close session: %w", err)
		}
		b.logger.Info("discord bot closed")
	})
	return closeErr
}

// target returns the dispatch context and dispatcher, or a nil dispatcher
// before [Bot.Attach].
func (b *Bot) target() (context.Context, trigger.Dispatcher) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.ctx, b.dispatch
}
