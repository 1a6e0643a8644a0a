package discord

import (
	"log/slog"
	"sync"

	"github.com/bwmarrin/discordgo"
)

// Responder answers interactions. *discordgo.Session satisfies it; tests use
// [mock.InteractionResponder].
type Responder interface {
	InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error
}

// HandlerFunc is the signature for slash command, autocomplete, and
// component handlers.
type HandlerFunc func(s Responder, i *discordgo.InteractionCreate)

// commandEntry stores a command definition along with its handler.
type commandEntry struct {
	command *discordgo.ApplicationCommand
	handler HandlerFunc
}

// CommandRouter dispatches Discord interactions to registered handlers.
type CommandRouter struct {
	logger *slog.Logger

	mu           sync.RWMutex
	commands     map[string]commandEntry // "command" or "command/subcommand" → entry
	autocomplete map[string]HandlerFunc  // same keys as commands
	components   map[string]HandlerFunc  // custom_id → handler
}

// NewCommandRouter creates an empty router.
func NewCommandRouter() *CommandRouter {
	return &CommandRouter{
		logger:       slog.Default(),
		commands:     make(map[string]commandEntry),
		autocomplete: make(map[string]HandlerFunc),
		components:   make(map[string]HandlerFunc),
	}
}

// RegisterCommand registers a handler for a slash command. The key format is
// "command" or "command/subcommand" (e.g., "trigger/save"). Only top-level
// definitions are sent to Discord; subcommands are nested inside them.
func (r *CommandRouter) RegisterCommand(key string, cmd *discordgo.ApplicationCommand, handler HandlerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands[key] = commandEntry{command: cmd, handler: handler}
}

// RegisterHandler registers a handler for a key whose parent command is
// already registered.
func (r *CommandRouter) RegisterHandler(key string, handler HandlerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands[key] = commandEntry{handler: handler}
}

// RegisterAutocomplete registers an autocomplete handler.
func (r *CommandRouter) RegisterAutocomplete(key string, handler HandlerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.autocomplete[key] = handler
}

// RegisterComponent registers a handler for a message component (button).
func (r *CommandRouter) RegisterComponent(customID string, handler HandlerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.components[customID] = handler
}

// ApplicationCommands returns the deduplicated list of top-level command
// definitions for registration with the Discord API.
func (r *CommandRouter) ApplicationCommands() []*discordgo.ApplicationCommand {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]bool)
	var cmds []*discordgo.ApplicationCommand
	for _, entry := range r.commands {
		if entry.command != nil && !seen[entry.command.Name] {
			seen[entry.command.Name] = true
			cmds = append(cmds, entry.command)
		}
	}
	return cmds
}

// Handle dispatches an interaction to the appropriate handler.
func (r *CommandRouter) Handle(s Responder, i *discordgo.InteractionCreate) {
	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		r.handleApplicationCommand(s, i)
	case discordgo.InteractionApplicationCommandAutocomplete:
		r.handleAutocomplete(s, i)
	case discordgo.InteractionMessageComponent:
		r.handleComponent(s, i)
	default:
		r.logger.Warn("discord: unhandled interaction type", "type", i.Type)
	}
}

// interactionKey builds a router key from an ApplicationCommand interaction.
func interactionKey(data discordgo.ApplicationCommandInteractionData) string {
	key := data.Name
	if len(data.Options) > 0 && data.Options[0].Type == discordgo.ApplicationCommandOptionSubCommand {
		key += "/" + data.Options[0].Name
	}
	return key
}

func (r *CommandRouter) handleApplicationCommand(s Responder, i *discordgo.InteractionCreate) {
	key := interactionKey(i.ApplicationCommandData())

	r.mu.RLock()
	entry, ok := r.commands[key]
	r.mu.RUnlock()

	if !ok {
		r.logger.Warn("discord: unknown command", "key", key)
		RespondEphemeral(s, i, "Unknown command.")
		return
	}
	entry.handler(s, i)
}

func (r *CommandRouter) handleAutocomplete(s Responder, i *discordgo.InteractionCreate) {
	key := interactionKey(i.ApplicationCommandData())

	r.mu.RLock()
	handler, ok := r.autocomplete[key]
	r.mu.RUnlock()

	if !ok {
		r.logger.Debug("discord: no autocomplete handler", "key", key)
		RespondChoices(s, i, nil)
		return
	}
	handler(s, i)
}

func (r *CommandRouter) handleComponent(s Responder, i *discordgo.InteractionCreate) {
	customID := i.MessageComponentData().CustomID

	r.mu.RLock()
	handler, ok := r.components[customID]
	r.mu.RUnlock()

	if !ok {
		r.logger.Warn("discord: unknown component", "custom_id", customID)
		RespondEphemeral(s, i, "Unknown component.")
		return
	}
	handler(s, i)
}
