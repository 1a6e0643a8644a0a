package trigger

import (
	"context"
	"log/slog"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Strategy is the behaviour of one trigger type. Every hook reports whether
// the trigger acted; for the respond hooks a true result engages the
// cooldown (for the events that use one). Errors and panics are caught by
// the dispatcher and treated as false.
//
// Embed [Nop] to implement only the hooks a strategy cares about.
type Strategy interface {
	// OnLoad runs once after construction. Returning false or an error
	// drops the trigger.
	OnLoad(ctx context.Context) (bool, error)
	OnLoggedOn(ctx context.Context) (bool, error)
	OnLoggedOff(ctx context.Context) (bool, error)

	RespondToChatInvite(ctx context.Context, roomID, roomName, inviterID string) (bool, error)
	RespondToFriendRequest(ctx context.Context, userID string) (bool, error)
	RespondToFriendMessage(ctx context.Context, userID, message string) (bool, error)
	RespondToSentMessage(ctx context.Context, toID, message string) (bool, error)
	RespondToChatMessage(ctx context.Context, roomID, chatterID, message string) (bool, error)
	RespondToEnteredChat(ctx context.Context, roomID, userID string) (bool, error)
	RespondToKick(ctx context.Context, roomID, kickedID, kickerID string) (bool, error)
	RespondToBan(ctx context.Context, roomID, bannedID, bannerID string) (bool, error)
	RespondToDisconnect(ctx context.Context, roomID, userID string) (bool, error)
	RespondToLeftChat(ctx context.Context, roomID, userID string) (bool, error)
	RespondToTradeOffer(ctx context.Context, count int) (bool, error)
	RespondToTradeProposal(ctx context.Context, tradeID, userID string) (bool, error)
	RespondToTradeSession(ctx context.Context, userID string) (bool, error)
	RespondToAnnouncement(ctx context.Context, groupID, headline string) (bool, error)
}

// Nop implements every [Strategy] hook. Lifecycle hooks succeed; respond
// hooks decline.
type Nop struct{}

var _ Strategy = Nop{}

func (Nop) OnLoad(context.Context) (bool, error)      { return true, nil }
func (Nop) OnLoggedOn(context.Context) (bool, error)  { return true, nil }
func (Nop) OnLoggedOff(context.Context) (bool, error) { return true, nil }

func (Nop) RespondToChatInvite(context.Context, string, string, string) (bool, error) {
	return false, nil
}
func (Nop) RespondToFriendRequest(context.Context, string) (bool, error) { return false, nil }
func (Nop) RespondToFriendMessage(context.Context, string, string) (bool, error) {
	return false, nil
}
func (Nop) RespondToSentMessage(context.Context, string, string) (bool, error) { return false, nil }
func (Nop) RespondToChatMessage(context.Context, string, string, string) (bool, error) {
	return false, nil
}
func (Nop) RespondToEnteredChat(context.Context, string, string) (bool, error) { return false, nil }
func (Nop) RespondToKick(context.Context, string, string, string) (bool, error) {
	return false, nil
}
func (Nop) RespondToBan(context.Context, string, string, string) (bool, error) { return false, nil }
func (Nop) RespondToDisconnect(context.Context, string, string) (bool, error) { return false, nil }
func (Nop) RespondToLeftChat(context.Context, string, string) (bool, error)   { return false, nil }
func (Nop) RespondToTradeOffer(context.Context, int) (bool, error)            { return false, nil }
func (Nop) RespondToTradeProposal(context.Context, string, string) (bool, error) {
	return false, nil
}
func (Nop) RespondToTradeSession(context.Context, string) (bool, error) { return false, nil }
func (Nop) RespondToAnnouncement(context.Context, string, string) (bool, error) {
	return false, nil
}

// Env is everything a [Factory] receives to build a strategy.
type Env struct {
	Session string
	Name    string
	Type    Type
	Options Options
	Client  Client
	Sender  *DelayedSender
	Logger  *slog.Logger
}

// Factory builds the strategy for one trigger instance.
type Factory func(env Env) (Strategy, error)

// StripCommand matches message against the command prefix,
// case-insensitively, and returns the whitespace-separated tokens of the
// whole message (the command itself is token zero). It returns nil when the
// message does not start with command or command is empty.
func StripCommand(message, command string) []string {
	if command == "" {
		return nil
	}
	message = strings.TrimSpace(message)
	if len(message) < len(command) || !strings.EqualFold(message[:len(command)], command) {
		return nil
	}
	// "!unbanned" must not match "!unban".
	if rest := message[len(command):]; rest != "" && !startsWithSpace(rest) {
		return nil
	}
	return strings.Fields(message)
}

func startsWithSpace(s string) bool {
	r, _ := utf8.DecodeRuneInString(s)
	return unicode.IsSpace(r)
}
