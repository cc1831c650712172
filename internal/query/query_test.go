package query

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTransport struct {
	status int
	body   string
	calls  int
	req    []byte
}

func (f *fakeTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	f.calls++
	f.req, _ = io.ReadAll(req.Body)
	_ = req.Body.Close()
	resp := &http.Response{
		StatusCode: f.status,
		Body:       io.NopCloser(bytes.NewReader([]byte(f.body))),
		Header:     make(http.Header),
		Request:    req,
	}
	resp.Header.Set("Content-Type", "application/json")
	return resp, nil
}

const completion = `{
	"id": "chatcmpl-1",
	"object": "chat.completion",
	"created": 1,
	"model": "gpt-5-nano",
	"choices": [{"index": 0, "finish_reason": "stop", "message": {"role": "assistant", "content": "At your service, sir."}}]
}`

func TestOpenAI_Ask(t *testing.T) {
	ft := &fakeTransport{status: 200, body: completion}
	q := NewOpenAI("test-key", "", &http.Client{Transport: ft})

	got, err := q.Ask(context.Background(), "User message: hello")
	require.NoError(t, err)
	assert.Equal(t, "At your service, sir.", got)

	var body struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(ft.req, &body))
	assert.Equal(t, "gpt-5-nano", body.Model)
	require.Len(t, body.Messages, 1)
	assert.Equal(t, "user", body.Messages[0].Role)
	assert.Equal(t, "User message: hello", body.Messages[0].Content)
}

func TestOpenAI_FailsOnceWithoutRetry(t *testing.T) {
	ft := &fakeTransport{status: 500, body: `{"error": {"message": "boom"}}`}
	q := NewOpenAI("test-key", "gpt-5-nano", &http.Client{Transport: ft})

	_, err := q.Ask(context.Background(), "x")
	require.Error(t, err)
	assert.Equal(t, 1, ft.calls)
}

func TestOpenAI_NoChoices(t *testing.T) {
	ft := &fakeTransport{status: 200, body: `{"id": "x", "object": "chat.completion", "choices": []}`}
	q := NewOpenAI("test-key", "", &http.Client{Transport: ft})

	_, err := q.Ask(context.Background(), "x")
	assert.EqualError(t, err, "no choices in response")
}

func TestOllama_Ask(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		var req ollamaChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "llama3", req.Model)
		assert.False(t, req.Stream)
		require.Len(t, req.Messages, 1)
		assert.Equal(t, "hi", req.Messages[0].Content)

		_ = json.NewEncoder(w).Encode(ollamaChatResponse{Message: ollamaMessage{Role: "assistant", Content: "hello"}, Done: true})
	}))
	defer srv.Close()

	got, err := NewOllama(srv.URL+"/", "llama3", nil).Ask(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "hello", got)
}

func TestOllama_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewOllama(srv.URL, "llama3", nil).Ask(context.Background(), "hi")
	assert.ErrorContains(t, err, "503")
}

func TestGemini_Ask(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "gemini-test:generateContent")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"candidates": [{"content": {"role": "model", "parts": [{"text": "Certainly, sir."}]}}]}`)
	}))
	defer srv.Close()

	g, err := NewGemini(context.Background(), "test-key", "gemini-test", srv.Client(), srv.URL)
	require.NoError(t, err)

	got, err := g.Ask(context.Background(), "User message: hi")
	require.NoError(t, err)
	assert.Equal(t, "Certainly, sir.", got)

	cfg, ok := body["generationConfig"].(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, 200, cfg["maxOutputTokens"])
	assert.EqualValues(t, 40, cfg["topK"])
}

func TestOpen(t *testing.T) {
	_, err := Open(context.Background(), Settings{Backend: "openai"})
	assert.Error(t, err)

	_, err = Open(context.Background(), Settings{Backend: "carrier-pigeon"})
	assert.ErrorContains(t, err, "unknown query backend")

	q, err := Open(context.Background(), Settings{Backend: "ollama", Model: "llama3"})
	require.NoError(t, err)
	assert.IsType(t, &Ollama{}, q)
}
