// Package query holds the backends that answer open-ended prompts.
package query

import (
	"context"
	"fmt"
	"net/http"

	"jarvis/internal/service"
)

type Settings struct {
	Backend string
	Model   string
	APIKey  string
	BaseURL string
	HTTP    *http.Client
}

// Open returns the backend named by s.Backend.
func Open(ctx context.Context, s Settings) (service.Querier, error) {
	switch s.Backend {
	case "openai":
		if s.APIKey == "" {
			return nil, fmt.Errorf("openai: missing API key")
		}
		return NewOpenAI(s.APIKey, s.Model, s.HTTP), nil
	case "gemini", "":
		if s.APIKey == "" {
			return nil, fmt.Errorf("gemini: missing API key")
		}
		return NewGemini(ctx, s.APIKey, s.Model, s.HTTP, s.BaseURL)
	case "ollama":
		return NewOllama(s.BaseURL, s.Model, s.HTTP), nil
	default:
		return nil, fmt.Errorf("unknown query backend %q", s.Backend)
	}
}
