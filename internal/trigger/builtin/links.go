package builtin

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/net/html"

	"github.com/MrWong99/chattrigger/internal/trigger"
)

const (
	defaultLinkTemplate = "Link: {title}"

	// maxTitleScan bounds how much of a page is read looking for <title>.
	maxTitleScan = 256 << 10
)

// LinkName answers a message containing an http(s) link with the linked
// page's title. The first response is the reply template; {title} is
// replaced by the title and {user} by the poster.
type LinkName struct {
	trigger.Nop
	env  trigger.Env
	http *http.Client
}

// RespondToChatMessage names the first link in message.
func (l *LinkName) RespondToChatMessage(ctx context.Context, roomID, chatterID, message string) (bool, error) {
	return l.respond(ctx, roomID, chatterID, message)
}

// RespondToFriendMessage names the first link in message.
func (l *LinkName) RespondToFriendMessage(ctx context.Context, userID, message string) (bool, error) {
	return l.respond(ctx, "", userID, message)
}

func (l *LinkName) respond(ctx context.Context, roomID, userID, message string) (bool, error) {
	link := firstLink(message)
	if link == "" {
		return false, nil
	}
	title, err := l.title(ctx, link)
	if err != nil {
		return false, err
	}
	if title == "" {
		return false, nil
	}
	text := strings.ReplaceAll(first(l.env.Options.Responses, defaultLinkTemplate), "{title}", title)
	if err := replyTo(ctx, l.env.Sender, roomID, userID, fill(text, userID, roomID)); err != nil {
		return false, err
	}
	return true, nil
}

// firstLink returns the first whitespace-separated http or https URL in s.
func firstLink(s string) string {
	for _, word := range strings.Fields(s) {
		word = strings.Trim(word, "<>()[]\"'.,")
		u, err := url.Parse(word)
		if err != nil || u.Host == "" {
			continue
		}
		if u.Scheme == "http" || u.Scheme == "https" {
			return u.String()
		}
	}
	return ""
}

func (l *LinkName) title(ctx context.Context, link string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return "", fmt.Errorf("linkName: build request: %w", err)
	}
	req.Header.Set("Accept", "text/html")
	resp, err := l.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("linkName: fetch %s: %w", link, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("linkName: fetch %s: status %d", link, resp.StatusCode)
	}
	if mt, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type")); mt != "" && mt != "text/html" {
		return "", nil
	}
	return pageTitle(io.LimitReader(resp.Body, maxTitleScan)), nil
}

// pageTitle returns the collapsed text of the first <title> element in r,
// or "" when there is none.
func pageTitle(r io.Reader) string {
	z := html.NewTokenizer(r)
	inTitle := false
	var b strings.Builder
	for {
		switch z.Next() {
		case html.ErrorToken:
			return strings.Join(strings.Fields(b.String()), " ")
		case html.StartTagToken:
			if name, _ := z.TagName(); string(name) == "title" {
				inTitle = true
			}
		case html.TextToken:
			if inTitle {
				b.Write(z.Text())
			}
		case html.EndTagToken:
			if name, _ := z.TagName(); inTitle && string(name) == "title" {
				return strings.Join(strings.Fields(b.String()), " ")
			}
		}
	}
}
