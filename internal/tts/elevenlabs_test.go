package tts

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPlayer struct {
	played [][]byte
	err    error
}

func (p *recordingPlayer) PlayMP3(_ context.Context, data []byte) error {
	p.played = append(p.played, data)
	return p.err
}

func TestSpeak(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/text-to-speech/"+DefaultVoice, r.URL.Path)
		assert.Equal(t, "mp3_44100_128", r.URL.Query().Get("output_format"))
		assert.Equal(t, "key", r.Header.Get("xi-api-key"))

		var req synthRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "Good day, sir.", req.Text)
		assert.Equal(t, DefaultModel, req.ModelID)

		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = io.WriteString(w, "ID3-mp3-bytes")
	}))
	defer srv.Close()

	player := &recordingPlayer{}
	e := NewElevenLabs(" key ", player, srv.Client())
	e.BaseURL = srv.URL

	require.NoError(t, e.Speak(context.Background(), "Good day, sir."))
	require.Len(t, player.played, 1)
	assert.Equal(t, "ID3-mp3-bytes", string(player.played[0]))
}

func TestSpeak_RequiresKey(t *testing.T) {
	player := &recordingPlayer{}
	err := NewElevenLabs("", player, nil).Speak(context.Background(), "hi")
	assert.ErrorContains(t, err, "api key")
	assert.Empty(t, player.played)
}

func TestSpeak_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"detail":"invalid key"}`)
	}))
	defer srv.Close()

	player := &recordingPlayer{}
	e := NewElevenLabs("bad", player, srv.Client())
	e.BaseURL = srv.URL

	err := e.Speak(context.Background(), "hi")
	assert.ErrorContains(t, err, "status=401")
	assert.Empty(t, player.played)
}
