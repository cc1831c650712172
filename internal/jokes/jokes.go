// Package jokes fetches jokes from public joke APIs and falls back to a
// built-in list, so Joke always returns something.
package jokes

import (
	"context"
	"encoding/json"
	"fmt"
	log "log/slog"
	"net/http"
	"time"

	"jarvis/internal/lines"
)

const (
	OfficialURL = "https://official-joke-api.appspot.com/random_joke"
	JokeAPIURL  = "https://v2.jokeapi.dev/joke/Any?blacklistFlags=nsfw,religious,political,racist,sexist,explicit&type=single"
)

var Fallback = []string{
	"Why don't scientists trust atoms? Because they make up everything!",
	"I told my wife she was drawing her eyebrows too high. She looked surprised.",
	"Why don't skeletons fight each other? They don't have the guts.",
	"What do you call a fake noodle? An impasta!",
	"Why did the scarecrow win an award? He was outstanding in his field!",
	"What do you call a bear with no teeth? A gummy bear!",
	"Why don't eggs tell jokes? They'd crack each other up!",
	"What do you call a sleeping bull? A bulldozer!",
	"Why did the math book look so sad? Because it had too many problems!",
	"What's the best thing about Switzerland? I don't know, but the flag is a big plus!",
}

type Source struct {
	OfficialURL string
	JokeAPIURL  string
	HTTP        *http.Client
	Picker      lines.Picker
	Logger      *log.Logger
}

func New(httpClient *http.Client, picker lines.Picker, logger *log.Logger) *Source {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Second}
	}
	if picker == nil {
		picker = lines.NewPicker()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Source{
		OfficialURL: OfficialURL,
		JokeAPIURL:  JokeAPIURL,
		HTTP:        httpClient,
		Picker:      picker,
		Logger:      logger,
	}
}

func (s *Source) Joke(ctx context.Context) string {
	var official struct {
		Setup     string `json:"setup"`
		Punchline string `json:"punchline"`
	}
	if err := s.get(ctx, s.OfficialURL, &official); err != nil {
		s.Logger.Debug("Official joke API failed, trying backup", "err", err)
	} else if official.Setup != "" && official.Punchline != "" {
		return official.Setup + " " + official.Punchline
	}

	var single struct {
		Joke string `json:"joke"`
	}
	if err := s.get(ctx, s.JokeAPIURL, &single); err != nil {
		s.Logger.Debug("JokeAPI failed, using built-in jokes", "err", err)
	} else if single.Joke != "" {
		return single.Joke
	}

	return lines.Pick(s.Picker, Fallback)
}

func (s *Source) get(ctx context.Context, url string, out any) error {
	if url == "" {
		return fmt.Errorf("no url")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := s.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
