// Package tts turns response text into speech.
package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const (
	DefaultBaseURL = "https://api.elevenlabs.io"
	DefaultVoice   = "9BWtsMINqrJLrRacOk9x"
	DefaultModel   = "eleven_turbo_v2_5"
)

// MP3Player plays an encoded clip and blocks until it ends or ctx is done.
type MP3Player interface {
	PlayMP3(ctx context.Context, data []byte) error
}

type ElevenLabs struct {
	BaseURL string
	APIKey  string
	Voice   string
	Model   string
	HTTP    *http.Client
	Player  MP3Player
}

func NewElevenLabs(apiKey string, player MP3Player, httpClient *http.Client) *ElevenLabs {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &ElevenLabs{
		BaseURL: DefaultBaseURL,
		APIKey:  strings.TrimSpace(apiKey),
		Voice:   DefaultVoice,
		Model:   DefaultModel,
		HTTP:    httpClient,
		Player:  player,
	}
}

type synthRequest struct {
	Text    string `json:"text"`
	ModelID string `json:"model_id"`
}

// Synthesize returns the mp3 rendering of text.
func (e *ElevenLabs) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if e.APIKey == "" {
		return nil, errors.New("elevenlabs api key is required")
	}

	payload, err := json.Marshal(synthRequest{Text: text, ModelID: e.Model})
	if err != nil {
		return nil, err
	}
	endpoint := fmt.Sprintf("%s/v1/text-to-speech/%s?output_format=mp3_44100_128", strings.TrimRight(e.BaseURL, "/"), e.Voice)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("xi-api-key", e.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")

	resp, err := e.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("elevenlabs error: status=%d body=%s", resp.StatusCode, string(body))
	}
	return io.ReadAll(resp.Body)
}

func (e *ElevenLabs) Speak(ctx context.Context, text string) error {
	if e.Player == nil {
		return errors.New("no audio player")
	}
	audio, err := e.Synthesize(ctx, text)
	if err != nil {
		return err
	}
	if len(audio) == 0 {
		return errors.New("elevenlabs returned no audio")
	}
	return e.Player.PlayMP3(ctx, audio)
}
