package builtin

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/MrWong99/chattrigger/internal/trigger"
)

func TestLinkName(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/page":
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = w.Write([]byte("<html><head><title>\n  Go  Release\tNotes </title></head><body><title>no</title></body></html>"))
		case "/image":
			w.Header().Set("Content-Type", "image/png")
			_, _ = w.Write([]byte("\x89PNG"))
		case "/untitled":
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte("<p>nothing here</p>"))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)

	deps := Deps{HTTPClient: srv.Client()}
	ctx := context.Background()

	tests := []struct {
		name    string
		message string
		want    []string
	}{
		{"titled page", "look at (" + srv.URL + "/page).", []string{"say R Link: Go Release Notes"}},
		{"not html", srv.URL + "/image", nil},
		{"no title", srv.URL + "/untitled", nil},
		{"not found", srv.URL + "/missing", nil},
		{"no link", "just chatting", nil},
		{"other scheme", "ftp://example.com/file", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := &fakeClient{}
			tr := mustTrigger(t, c, deps, TypeLinkName, trigger.Options{})
			handled := tr.OnChatMessage(ctx, "R", "u1", tt.message)
			if handled != (tt.want != nil) {
				t.Errorf("handled = %v", handled)
			}
			equalCalls(t, c.Calls(), tt.want)
		})
	}
}

func TestLinkName_TemplateAndDirectMessage(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<title>Docs</title>"))
	}))
	t.Cleanup(srv.Close)

	c := &fakeClient{}
	tr := mustTrigger(t, c, Deps{HTTPClient: srv.Client()}, TypeLinkName,
		trigger.Options{Responses: []string{"{user} shared {title}"}})
	if !tr.OnFriendMessage(context.Background(), "u7", srv.URL) {
		t.Fatal("link in direct message not answered")
	}
	equalCalls(t, c.Calls(), []string{"dm u7 u7 shared Docs"})
}

func TestPageTitle(t *testing.T) {
	t.Parallel()

	tests := []struct {
		doc  string
		want string
	}{
		{"<title>A &amp; B</title>", "A & B"},
		{"<TITLE>Upper</TITLE>", "Upper"},
		{"<title>unterminated", "unterminated"},
		{"<body>none</body>", ""},
	}
	for _, tt := range tests {
		if got := pageTitle(strings.NewReader(tt.doc)); got != tt.want {
			t.Errorf("pageTitle(%q) = %q, want %q", tt.doc, got, tt.want)
		}
	}
}
