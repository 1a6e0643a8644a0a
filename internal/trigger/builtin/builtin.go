// Package builtin contains the stock trigger strategies and registers them
// with a [trigger.Registry].
package builtin

import (
	"context"
	"fmt"
	"math/rand/v2"
	"net/http"
	"strings"
	"time"

	"github.com/MrWong99/chattrigger/internal/resilience"
	"github.com/MrWong99/chattrigger/internal/trigger"
)

// Type tags of the built-in strategies.
const (
	TypeUnban               trigger.Type = "unban"
	TypeBan                 trigger.Type = "ban"
	TypeKick                trigger.Type = "kick"
	TypeChatReply           trigger.Type = "chatReply"
	TypeDoormat             trigger.Type = "doormat"
	TypeIsUp                trigger.Type = "isUp"
	TypeAcceptChatInvite    trigger.Type = "acceptChatInvite"
	TypeAcceptFriendRequest trigger.Type = "acceptFriendRequest"
	TypeAutojoinChat        trigger.Type = "autojoinChat"
	TypeLeaveChat           trigger.Type = "leaveChat"
	TypePlayGame            trigger.Type = "playGame"
	TypeWeather             trigger.Type = "weather"
	TypeAIReply             trigger.Type = "aiReply"
	TypeBanCheck            trigger.Type = "banCheck"
	TypeLinkName            trigger.Type = "linkName"
	TypeLockChat            trigger.Type = "lockChat"
	TypeUnlockChat          trigger.Type = "unlockChat"
	TypeModerateChat        trigger.Type = "moderateChat"
	TypeUnmoderateChat      trigger.Type = "unmoderateChat"
)

// Deps carries the external dependencies some strategies need. The zero
// value uses production endpoints.
type Deps struct {
	// HTTPClient is used for weather lookups and link titles. Default: 10s
	// timeout client.
	HTTPClient *http.Client

	// WeatherBaseURL overrides the OpenWeatherMap API root.
	WeatherBaseURL string

	// WeatherBreaker guards the weather API. It is shared by every weather
	// trigger. Default: 5 failures, 1 minute reset.
	WeatherBreaker *resilience.CircuitBreaker

	// OpenAIBaseURL overrides the OpenAI API root for [TypeAIReply].
	OpenAIBaseURL string

	// Pick chooses an index in [0, n). Default: [rand.IntN].
	Pick func(n int) int
}

func (d Deps) withDefaults() Deps {
	if d.HTTPClient == nil {
		d.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
	if d.WeatherBaseURL == "" {
		d.WeatherBaseURL = defaultWeatherBaseURL
	}
	if d.WeatherBreaker == nil {
		d.WeatherBreaker = resilience.NewCircuitBreaker(resilience.Config{
			Name:         "weather",
			MaxFailures:  5,
			ResetTimeout: time.Minute,
		})
	}
	if d.Pick == nil {
		d.Pick = rand.IntN
	}
	return d
}

// Register adds every built-in strategy to r.
func Register(r *trigger.Registry, deps Deps) {
	deps = deps.withDefaults()

	r.Register(TypeUnban, newModeration(moderateUnban))
	r.Register(TypeBan, newModeration(moderateBan))
	r.Register(TypeKick, newModeration(moderateKick))
	r.Register(TypeChatReply, func(env trigger.Env) (trigger.Strategy, error) {
		return &ChatReply{env: env, pick: deps.Pick}, nil
	})
	r.Register(TypeDoormat, func(env trigger.Env) (trigger.Strategy, error) {
		return &Doormat{env: env, pick: deps.Pick}, nil
	})
	r.Register(TypeIsUp, func(env trigger.Env) (trigger.Strategy, error) {
		return &IsUp{env: env}, nil
	})
	r.Register(TypeAcceptChatInvite, func(env trigger.Env) (trigger.Strategy, error) {
		return &AcceptChatInvite{env: env}, nil
	})
	r.Register(TypeAcceptFriendRequest, func(env trigger.Env) (trigger.Strategy, error) {
		return &AcceptFriendRequest{env: env}, nil
	})
	r.Register(TypeAutojoinChat, func(env trigger.Env) (trigger.Strategy, error) {
		return &AutojoinChat{env: env}, nil
	})
	r.Register(TypeLeaveChat, func(env trigger.Env) (trigger.Strategy, error) {
		return &LeaveChat{env: env}, nil
	})
	r.Register(TypePlayGame, func(env trigger.Env) (trigger.Strategy, error) {
		return &PlayGame{env: env}, nil
	})
	r.Register(TypeWeather, func(env trigger.Env) (trigger.Strategy, error) {
		return &Weather{env: env, http: deps.HTTPClient, baseURL: deps.WeatherBaseURL, breaker: deps.WeatherBreaker}, nil
	})
	r.Register(TypeAIReply, func(env trigger.Env) (trigger.Strategy, error) {
		return newAIReply(env, deps.OpenAIBaseURL)
	})
	r.Register(TypeBanCheck, func(env trigger.Env) (trigger.Strategy, error) {
		return &BanCheck{env: env}, nil
	})
	r.Register(TypeLinkName, func(env trigger.Env) (trigger.Strategy, error) {
		return &LinkName{env: env, http: deps.HTTPClient}, nil
	})
	r.Register(TypeLockChat, newRoomControl(func(ctx context.Context, rc trigger.RoomController, room string) error {
		return rc.LockRoom(ctx, room, true)
	}))
	r.Register(TypeUnlockChat, newRoomControl(func(ctx context.Context, rc trigger.RoomController, room string) error {
		return rc.LockRoom(ctx, room, false)
	}))
	r.Register(TypeModerateChat, newRoomControl(func(ctx context.Context, rc trigger.RoomController, room string) error {
		return rc.ModerateRoom(ctx, room, true)
	}))
	r.Register(TypeUnmoderateChat, newRoomControl(func(ctx context.Context, rc trigger.RoomController, room string) error {
		return rc.ModerateRoom(ctx, room, false)
	}))
}

// requireCommand is the OnLoad check shared by command-style strategies.
func requireCommand(env trigger.Env) (bool, error) {
	if strings.TrimSpace(env.Options.Command) == "" {
		return false, errMissing(env, "command")
	}
	return true, nil
}

// first returns the first element of list or def.
func first(list []string, def string) string {
	if len(list) == 0 {
		return def
	}
	return list[0]
}

// fill substitutes the {user} and {room} placeholders in a response
// template.
func fill(tmpl, userID, roomID string) string {
	return strings.NewReplacer("{user}", userID, "{room}", roomID).Replace(tmpl)
}

// replyTo sends text back where message came from: the room for room
// messages, the sender for direct messages.
func replyTo(ctx context.Context, s *trigger.DelayedSender, roomID, userID, text string) error {
	if roomID != "" {
		return s.SendRoom(ctx, roomID, text)
	}
	return s.SendDirect(ctx, userID, text)
}

func errMissing(env trigger.Env, what string) error {
	return fmt.Errorf("%s: %s must be set: %w", env.Type, what, trigger.ErrInvalidOptions)
}
