// Package vision classifies images through the Hugging Face inference API.
package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"jarvis/internal/service"
)

const (
	DefaultModel   = "google/vit-base-patch16-224"
	DefaultBaseURL = "https://api-inference.huggingface.co/models"
)

type HuggingFace struct {
	BaseURL string
	Model   string
	Token   string
	HTTP    *http.Client
}

func NewHuggingFace(token, model string, httpClient *http.Client) *HuggingFace {
	if model == "" {
		model = DefaultModel
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &HuggingFace{BaseURL: DefaultBaseURL, Model: model, Token: token, HTTP: httpClient}
}

func (h *HuggingFace) Classify(ctx context.Context, image []byte) ([]service.Prediction, error) {
	url := strings.TrimRight(h.BaseURL, "/") + "/" + h.Model
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(image))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", http.DetectContentType(image))
	if h.Token != "" {
		req.Header.Set("Authorization", "Bearer "+h.Token)
	}

	resp, err := h.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("classify image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("classify image: status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var preds []service.Prediction
	if err := json.NewDecoder(resp.Body).Decode(&preds); err != nil {
		return nil, fmt.Errorf("decode predictions: %w", err)
	}
	return preds, nil
}
