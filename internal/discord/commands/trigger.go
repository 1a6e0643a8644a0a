// Package commands implements Discord slash command handlers for chattrigger.
package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/MrWong99/chattrigger/internal/discord"
	"github.com/MrWong99/chattrigger/internal/trigger"
)

// saveTimeout bounds a store write issued from a slash command.
const saveTimeout = 10 * time.Second

// TriggerCommands holds the dependencies for /trigger slash commands.
type TriggerCommands struct {
	ctl   *trigger.Controller
	perms *discord.PermissionChecker
}

// NewTriggerCommands creates a TriggerCommands and registers its handlers
// with router.
func NewTriggerCommands(router *discord.CommandRouter, ctl *trigger.Controller, perms *discord.PermissionChecker) *TriggerCommands {
	tc := &TriggerCommands{ctl: ctl, perms: perms}
	tc.Register(router)
	return tc
}

// Register registers the /trigger command group with the router.
func (tc *TriggerCommands) Register(router *discord.CommandRouter) {
	router.RegisterCommand("trigger", tc.Definition(), func(s discord.Responder, i *discordgo.InteractionCreate) {
		discord.RespondEphemeral(s, i, "Please use a subcommand: `/trigger list`, `/trigger save`, or `/trigger reset`.")
	})
	router.RegisterHandler("trigger/list", tc.handleList)
	router.RegisterHandler("trigger/save", tc.handleSave)
	router.RegisterHandler("trigger/reset", tc.handleReset)
	router.RegisterAutocomplete("trigger/save", tc.handleAutocomplete)
	router.RegisterAutocomplete("trigger/reset", tc.handleAutocomplete)
}

// Definition returns the ApplicationCommand definition for Discord.
func (tc *TriggerCommands) Definition() *discordgo.ApplicationCommand {
	nameOption := func(desc string) []*discordgo.ApplicationCommandOption {
		return []*discordgo.ApplicationCommandOption{{
			Type:         discordgo.ApplicationCommandOptionString,
			Name:         "name",
			Description:  desc,
			Required:     true,
			Autocomplete: true,
		}}
	}
	return &discordgo.ApplicationCommand{
		Name:        "trigger",
		Description: "Inspect and manage chat triggers",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "list",
				Description: "List loaded triggers and their cooldown state",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "save",
				Description: "Write a trigger's current options back to the store",
				Options:     nameOption("Trigger to save"),
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "reset",
				Description: "End a trigger's cooldown now",
				Options:     nameOption("Trigger to reset"),
			},
		},
	}
}

func (tc *TriggerCommands) handleList(s discord.Responder, i *discordgo.InteractionCreate) {
	if !tc.perms.IsAdmin(i) {
		discord.RespondEphemeral(s, i, "You need the admin role to manage triggers.")
		return
	}

	list := tc.ctl.List()
	if len(list) == 0 {
		discord.RespondEphemeral(s, i, "No triggers loaded.")
		return
	}

	lines := make([]string, 0, len(list))
	for _, st := range list {
		state := "ready"
		if !st.Enabled {
			state = "cooling down"
		}
		lines = append(lines, fmt.Sprintf("**%s** `%s` %s", st.Name, st.Type, state))
	}
	discord.RespondEmbed(s, i, &discordgo.MessageEmbed{
		Title:       fmt.Sprintf("Triggers for %s", tc.ctl.Session()),
		Description: strings.Join(lines, "\n"),
		Color:       0x5865F2,
	})
}

func (tc *TriggerCommands) handleSave(s discord.Responder, i *discordgo.InteractionCreate) {
	if !tc.perms.IsAdmin(i) {
		discord.RespondEphemeral(s, i, "You need the admin role to manage triggers.")
		return
	}
	name := subcommandStringOption(i, "name")

	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()
	if err := tc.ctl.Save(ctx, name); err != nil {
		if errors.Is(err, trigger.ErrNoSuchTrigger) {
			discord.RespondEphemeral(s, i, fmt.Sprintf("Trigger %q not found.", name))
			return
		}
		discord.RespondError(s, i, err)
		return
	}
	discord.RespondEphemeral(s, i, fmt.Sprintf("Saved trigger `%s`.", name))
}

func (tc *TriggerCommands) handleReset(s discord.Responder, i *discordgo.InteractionCreate) {
	if !tc.perms.IsAdmin(i) {
		discord.RespondEphemeral(s, i, "You need the admin role to manage triggers.")
		return
	}
	name := subcommandStringOption(i, "name")
	if err := tc.ctl.Reset(name); err != nil {
		discord.RespondEphemeral(s, i, fmt.Sprintf("Trigger %q not found.", name))
		return
	}
	discord.RespondEphemeral(s, i, fmt.Sprintf("Cooldown of `%s` reset.", name))
}

// handleAutocomplete offers loaded trigger names matching the typed prefix.
func (tc *TriggerCommands) handleAutocomplete(s discord.Responder, i *discordgo.InteractionCreate) {
	partial := ""
	data := i.ApplicationCommandData()
	if len(data.Options) > 0 && data.Options[0].Type == discordgo.ApplicationCommandOptionSubCommand {
		for _, opt := range data.Options[0].Options {
			if opt.Focused {
				partial = strings.ToLower(opt.StringValue())
				break
			}
		}
	}

	var choices []*discordgo.ApplicationCommandOptionChoice
	for _, st := range tc.ctl.List() {
		if partial == "" || strings.HasPrefix(strings.ToLower(st.Name), partial) {
			choices = append(choices, &discordgo.ApplicationCommandOptionChoice{Name: st.Name, Value: st.Name})
		}
	}
	discord.RespondChoices(s, i, choices)
}

// subcommandStringOption extracts a string option value from a subcommand interaction.
func subcommandStringOption(i *discordgo.InteractionCreate, name string) string {
	data := i.ApplicationCommandData()
	if len(data.Options) > 0 && data.Options[0].Type == discordgo.ApplicationCommandOptionSubCommand {
		for _, opt := range data.Options[0].Options {
			if opt.Name == name {
				return opt.StringValue()
			}
		}
	}
	return ""
}
