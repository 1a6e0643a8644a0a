package builtin

import (
	"context"
	"fmt"
	"strings"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/MrWong99/chattrigger/internal/trigger"
)

const (
	defaultAIModel  = "gpt-4o-mini"
	defaultAIPrompt = "You are a friendly chat room bot. Answer in at most three sentences."
	maxReplyLen     = 1800
)

// AIReply forwards "<command> <question>" to an OpenAI-compatible chat
// completion endpoint and posts the answer. matches[0] selects the model and
// responses[0] replaces the system prompt.
type AIReply struct {
	trigger.Nop
	env    trigger.Env
	client oai.Client
	model  string
	prompt string
}

func newAIReply(env trigger.Env, baseURL string) (*AIReply, error) {
	opts := []option.RequestOption{option.WithAPIKey(env.Options.APIKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &AIReply{
		env:    env,
		client: oai.NewClient(opts...),
		model:  first(env.Options.Matches, defaultAIModel),
		prompt: first(env.Options.Responses, defaultAIPrompt),
	}, nil
}

// OnLoad rejects a trigger without a command or API key.
func (a *AIReply) OnLoad(context.Context) (bool, error) {
	if a.env.Options.APIKey == "" {
		return false, errMissing(a.env, "apiKey")
	}
	return requireCommand(a.env)
}

// RespondToChatMessage answers in the room.
func (a *AIReply) RespondToChatMessage(ctx context.Context, roomID, chatterID, message string) (bool, error) {
	return a.respond(ctx, roomID, chatterID, message)
}

// RespondToFriendMessage answers directly.
func (a *AIReply) RespondToFriendMessage(ctx context.Context, userID, message string) (bool, error) {
	return a.respond(ctx, "", userID, message)
}

func (a *AIReply) respond(ctx context.Context, roomID, userID, message string) (bool, error) {
	query := trigger.StripCommand(message, a.env.Options.Command)
	if len(query) < 2 {
		return false, nil
	}
	question := strings.Join(query[1:], " ")

	resp, err := a.client.Chat.Completions.New(ctx, oai.ChatCompletionNewParams{
		Model: shared.ChatModel(a.model),
		Messages: []oai.ChatCompletionMessageParamUnion{
			oai.SystemMessage(a.prompt),
			oai.UserMessage(question),
		},
	})
	if err != nil {
		return false, fmt.Errorf("aiReply: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return false, fmt.Errorf("aiReply: empty choices in response")
	}
	answer := strings.TrimSpace(resp.Choices[0].Message.Content)
	if answer == "" {
		return false, nil
	}
	if len(answer) > maxReplyLen {
		answer = strings.ToValidUTF8(answer[:maxReplyLen], "") + "…"
	}
	if err := replyTo(ctx, a.env.Sender, roomID, userID, answer); err != nil {
		return false, err
	}
	return true, nil
}
