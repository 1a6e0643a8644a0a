package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/MrWong99/chattrigger/internal/resilience"
	"github.com/MrWong99/chattrigger/internal/trigger"
)

const defaultWeatherBaseURL = "https://api.openweathermap.org/data/2.5"

// Weather answers "<command> <place>" with the current conditions from
// OpenWeatherMap. The API key comes from the trigger's apiKey option.
type Weather struct {
	trigger.Nop
	env     trigger.Env
	http    *http.Client
	baseURL string
	breaker *resilience.CircuitBreaker
}

// OnLoad rejects a trigger without a command or API key.
func (w *Weather) OnLoad(context.Context) (bool, error) {
	if w.env.Options.APIKey == "" {
		return false, errMissing(w.env, "apiKey")
	}
	return requireCommand(w.env)
}

// RespondToChatMessage answers in the room.
func (w *Weather) RespondToChatMessage(ctx context.Context, roomID, chatterID, message string) (bool, error) {
	return w.respond(ctx, roomID, chatterID, message)
}

// RespondToFriendMessage answers directly.
func (w *Weather) RespondToFriendMessage(ctx context.Context, userID, message string) (bool, error) {
	return w.respond(ctx, "", userID, message)
}

func (w *Weather) respond(ctx context.Context, roomID, userID, message string) (bool, error) {
	query := trigger.StripCommand(message, w.env.Options.Command)
	if len(query) < 2 {
		return false, nil
	}
	place := strings.Join(query[1:], " ")

	report, err := w.lookup(ctx, place)
	if err != nil {
		return false, err
	}
	if err := replyTo(ctx, w.env.Sender, roomID, userID, report.String()); err != nil {
		return false, err
	}
	return true, nil
}

// weatherReport is the subset of the OpenWeatherMap current weather response
// the trigger uses.
type weatherReport struct {
	Name    string `json:"name"`
	Weather []struct {
		Description string `json:"description"`
	} `json:"weather"`
	Main struct {
		Temp     float64 `json:"temp"`
		Humidity int     `json:"humidity"`
	} `json:"main"`
	Wind struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
}

func (r weatherReport) String() string {
	desc := "unknown conditions"
	if len(r.Weather) > 0 {
		desc = r.Weather[0].Description
	}
	return fmt.Sprintf("Weather in %s: %s, %.1f°C, humidity %d%%, wind %.1f m/s",
		r.Name, desc, r.Main.Temp, r.Main.Humidity, r.Wind.Speed)
}

func (w *Weather) lookup(ctx context.Context, place string) (weatherReport, error) {
	q := url.Values{}
	q.Set("q", place)
	q.Set("appid", w.env.Options.APIKey)
	q.Set("units", "metric")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.baseURL+"/weather?"+q.Encode(), nil)
	if err != nil {
		return weatherReport{}, fmt.Errorf("weather: build request: %w", err)
	}

	// Only transport errors and 5xx count against the breaker; an unknown
	// place is the caller's problem.
	var (
		report    weatherReport
		lookupErr error
	)
	err = w.breaker.Execute(func() error {
		resp, err := w.http.Do(req)
		if err != nil {
			return fmt.Errorf("weather: request %q: %w", place, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			statusErr := fmt.Errorf("weather: %q: status %d: %s", place, resp.StatusCode, strings.TrimSpace(string(body)))
			if resp.StatusCode >= http.StatusInternalServerError {
				return statusErr
			}
			lookupErr = statusErr
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
			lookupErr = fmt.Errorf("weather: decode: %w", err)
		}
		return nil
	})
	if err != nil {
		return weatherReport{}, err
	}
	if lookupErr != nil {
		return weatherReport{}, lookupErr
	}
	if report.Name == "" {
		report.Name = place
	}
	return report, nil
}
