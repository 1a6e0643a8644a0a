package builtin

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/MrWong99/chattrigger/internal/trigger"
)

// fakeOpenAI serves /chat/completions and records the last request body.
func fakeOpenAI(t *testing.T, answer string) (*httptest.Server, func() map[string]any) {
	t.Helper()
	var (
		mu   sync.Mutex
		last map[string]any
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" || r.Header.Get("Authorization") != "Bearer sk-test" {
			http.Error(w, `{"error":{"message":"unauthorized"}}`, http.StatusUnauthorized)
			return
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		mu.Lock()
		last = body
		mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 1700000000,
			"model":   body["model"],
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": answer},
			}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv, func() map[string]any {
		mu.Lock()
		defer mu.Unlock()
		return last
	}
}

func TestAIReply(t *testing.T) {
	t.Parallel()

	srv, lastRequest := fakeOpenAI(t, "  Paris is the capital of France. ")
	c := &fakeClient{}
	tr := mustTrigger(t, c, Deps{OpenAIBaseURL: srv.URL}, TypeAIReply, trigger.Options{
		Command: "!ask", APIKey: "sk-test", Matches: []string{"gpt-test"}, Responses: []string{"Be brief."},
	})

	if !tr.OnChatMessage(context.Background(), "R", "u1", "!ask what is the capital of France?") {
		t.Fatal("question not answered")
	}
	equalCalls(t, c.Calls(), []string{"say R Paris is the capital of France."})

	req := lastRequest()
	if req["model"] != "gpt-test" {
		t.Errorf("model = %v, want gpt-test", req["model"])
	}
	msgs, _ := req["messages"].([]any)
	if len(msgs) != 2 {
		t.Fatalf("messages = %v, want system and user", msgs)
	}
	if user, _ := msgs[1].(map[string]any); user["content"] != "what is the capital of France?" {
		t.Errorf("user message = %v", user["content"])
	}
}

func TestAIReply_IgnoresOtherMessages(t *testing.T) {
	t.Parallel()

	srv, lastRequest := fakeOpenAI(t, "unused")
	c := &fakeClient{}
	tr := mustTrigger(t, c, Deps{OpenAIBaseURL: srv.URL}, TypeAIReply, trigger.Options{Command: "!ask", APIKey: "sk-test"})

	if tr.OnChatMessage(context.Background(), "R", "u1", "hello there") {
		t.Error("non-command answered")
	}
	if lastRequest() != nil {
		t.Error("API called for a non-command")
	}
}

func TestAIReply_APIErrorNotHandled(t *testing.T) {
	t.Parallel()

	srv, _ := fakeOpenAI(t, "unused")
	c := &fakeClient{}
	tr := mustTrigger(t, c, Deps{OpenAIBaseURL: srv.URL}, TypeAIReply, trigger.Options{Command: "!ask", APIKey: "wrong"})
	if tr.OnChatMessage(context.Background(), "R", "u1", "!ask anything") {
		t.Error("API failure reported handled")
	}
	if len(c.Calls()) != 0 {
		t.Errorf("calls = %q, want none", c.Calls())
	}
}
