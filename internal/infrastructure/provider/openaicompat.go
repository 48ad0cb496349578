package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"newsintel/internal/domain"
	"newsintel/internal/ports"
)

// OpenAICompatProvider speaks the OpenAI chat-completions dialect used by
// Groq and similar services. It serves as the fallback provider.
type OpenAICompatProvider struct {
	name       string
	endpoint   string
	httpClient *http.Client
}

var _ ports.ModelProvider = (*OpenAICompatProvider)(nil)

// NewOpenAICompatProvider builds a client for the given API root
// (e.g. https://api.groq.com/openai).
func NewOpenAICompatProvider(name, endpoint string, client *http.Client) *OpenAICompatProvider {
	if name == "" {
		name = "openai-compat"
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &OpenAICompatProvider{
		name:       name,
		endpoint:   strings.TrimSuffix(endpoint, "/"),
		httpClient: client,
	}
}

// Name identifies the provider in logs and error taxonomy.
func (o *OpenAICompatProvider) Name() string {
	return o.name
}

// ListModels returns the catalog. This dialect exposes no capability or tier
// flags, so every entry is reported as an eligible generation model.
func (o *OpenAICompatProvider) ListModels(ctx context.Context, apiKey string) ([]domain.ModelInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.endpoint+"/v1/models", nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list models: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, o.mapError(resp)
	}

	var payload struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode model list: %w", err)
	}

	models := make([]domain.ModelInfo, 0, len(payload.Data))
	for _, m := range payload.Data {
		models = append(models, domain.ModelInfo{ID: m.ID, SupportsGeneration: true})
	}

	return models, nil
}

// Generate issues one chat-completion call with a single user message.
func (o *OpenAICompatProvider) Generate(ctx context.Context, genReq domain.GenerateRequest) (string, error) {
	body, err := json.Marshal(map[string]any{
		"model": genReq.Model,
		"messages": []map[string]string{
			{"role": "user", "content": genReq.Prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal chat payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.endpoint+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+genReq.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", o.mapError(resp)
	}

	var payload struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", &domain.ProviderError{
			Provider: o.name,
			Kind:     domain.KindTransient,
			Message:  fmt.Sprintf("malformed response: %v", err),
		}
	}

	if len(payload.Choices) == 0 {
		return "", &domain.ProviderError{
			Provider: o.name,
			Kind:     domain.KindTransient,
			Message:  "response carried no choices",
		}
	}

	return payload.Choices[0].Message.Content, nil
}

func (o *OpenAICompatProvider) mapError(resp *http.Response) error {
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))

	kind := domain.KindTransient
	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		kind = domain.KindAuthorization
	case http.StatusTooManyRequests:
		kind = domain.KindRateLimited
	}

	return &domain.ProviderError{
		Provider: o.name,
		Kind:     kind,
		Status:   resp.StatusCode,
		Message:  strings.TrimSpace(string(snippet)),
	}
}
