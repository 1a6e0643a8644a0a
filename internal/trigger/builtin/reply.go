package builtin

import (
	"context"
	"strings"

	"github.com/antzucaro/matchr"

	"github.com/MrWong99/chattrigger/internal/trigger"
)

// fuzzyThreshold is the minimum Jaro-Winkler similarity for a message to
// count as a near match of a pattern.
const fuzzyThreshold = 0.92

// ChatReply answers messages that match one of its patterns with a random
// response. A message matches when it equals a pattern ignoring case and
// surrounding space, or when its Jaro-Winkler similarity to a pattern is at
// least fuzzyThreshold.
type ChatReply struct {
	trigger.Nop
	env  trigger.Env
	pick func(int) int
}

// OnLoad rejects a trigger with no patterns or no responses.
func (c *ChatReply) OnLoad(context.Context) (bool, error) {
	if len(c.env.Options.Matches) == 0 || len(c.env.Options.Responses) == 0 {
		return false, errMissing(c.env, "matches and responses")
	}
	return true, nil
}

// RespondToChatMessage replies in the room.
func (c *ChatReply) RespondToChatMessage(ctx context.Context, roomID, chatterID, message string) (bool, error) {
	return c.respond(ctx, roomID, chatterID, message)
}

// RespondToFriendMessage replies directly.
func (c *ChatReply) RespondToFriendMessage(ctx context.Context, userID, message string) (bool, error) {
	return c.respond(ctx, "", userID, message)
}

func (c *ChatReply) respond(ctx context.Context, roomID, userID, message string) (bool, error) {
	if !Matches(message, c.env.Options.Matches) {
		return false, nil
	}
	resp := c.env.Options.Responses[c.pick(len(c.env.Options.Responses))]
	if err := replyTo(ctx, c.env.Sender, roomID, userID, fill(resp, userID, roomID)); err != nil {
		return false, err
	}
	return true, nil
}

// Matches reports whether message matches any pattern exactly (ignoring case)
// or fuzzily.
func Matches(message string, patterns []string) bool {
	msg := strings.ToLower(strings.TrimSpace(message))
	if msg == "" {
		return false
	}
	for _, p := range patterns {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		if msg == p || matchr.JaroWinkler(msg, p, false) >= fuzzyThreshold {
			return true
		}
	}
	return false
}

// Doormat greets participants entering a room with a random response.
type Doormat struct {
	trigger.Nop
	env  trigger.Env
	pick func(int) int
}

// OnLoad rejects a trigger with no responses.
func (d *Doormat) OnLoad(context.Context) (bool, error) {
	if len(d.env.Options.Responses) == 0 {
		return false, errMissing(d.env, "responses")
	}
	return true, nil
}

// RespondToEnteredChat sends the greeting to the room.
func (d *Doormat) RespondToEnteredChat(ctx context.Context, roomID, userID string) (bool, error) {
	resp := d.env.Options.Responses[d.pick(len(d.env.Options.Responses))]
	if err := d.env.Sender.SendRoom(ctx, roomID, fill(resp, userID, roomID)); err != nil {
		return false, err
	}
	return true, nil
}

// IsUp answers its command with the first response, or "Yes." when none is
// configured. Used to check that the bot is alive.
type IsUp struct {
	trigger.Nop
	env trigger.Env
}

// OnLoad rejects a trigger without a command.
func (u *IsUp) OnLoad(context.Context) (bool, error) { return requireCommand(u.env) }

// RespondToChatMessage answers in the room.
func (u *IsUp) RespondToChatMessage(ctx context.Context, roomID, chatterID, message string) (bool, error) {
	return u.respond(ctx, roomID, chatterID, message)
}

// RespondToFriendMessage answers directly.
func (u *IsUp) RespondToFriendMessage(ctx context.Context, userID, message string) (bool, error) {
	return u.respond(ctx, "", userID, message)
}

func (u *IsUp) respond(ctx context.Context, roomID, userID, message string) (bool, error) {
	if trigger.StripCommand(message, u.env.Options.Command) == nil {
		return false, nil
	}
	if err := replyTo(ctx, u.env.Sender, roomID, userID, first(u.env.Options.Responses, "Yes.")); err != nil {
		return false, err
	}
	return true, nil
}
