package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"newsintel/internal/domain"
	"newsintel/internal/ports"
)

// GeminiProvider talks to the Google Generative Language REST API.
type GeminiProvider struct {
	endpoint   string
	httpClient *http.Client
}

var _ ports.ModelProvider = (*GeminiProvider)(nil)

// NewGeminiProvider builds a client for the given API root
// (e.g. https://generativelanguage.googleapis.com).
func NewGeminiProvider(endpoint string, client *http.Client) *GeminiProvider {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &GeminiProvider{
		endpoint:   strings.TrimSuffix(endpoint, "/"),
		httpClient: client,
	}
}

// Name identifies the provider in logs and error taxonomy.
func (g *GeminiProvider) Name() string {
	return "gemini"
}

type geminiModelList struct {
	Models []struct {
		Name                       string   `json:"name"`
		SupportedGenerationMethods []string `json:"supportedGenerationMethods"`
	} `json:"models"`
}

// ListModels fetches the model catalog and normalizes capability and tier.
func (g *GeminiProvider) ListModels(ctx context.Context, apiKey string) ([]domain.ModelInfo, error) {
	listURL := fmt.Sprintf("%s/v1beta/models?key=%s&pageSize=200", g.endpoint, url.QueryEscape(apiKey))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, listURL, nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list models: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, g.mapError(resp)
	}

	var payload geminiModelList
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode model list: %w", err)
	}

	models := make([]domain.ModelInfo, 0, len(payload.Models))
	for _, m := range payload.Models {
		supports := false
		for _, method := range m.SupportedGenerationMethods {
			if method == "generateContent" {
				supports = true
				break
			}
		}
		models = append(models, domain.ModelInfo{
			ID:                 m.Name,
			SupportsGeneration: supports,
			Heavyweight:        strings.Contains(strings.ToLower(m.Name), "pro"),
		})
	}

	return models, nil
}

type geminiGenerateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// Generate issues one generateContent call. Safety filters are fully relaxed:
// news headlines routinely trip them and a blocked summary is useless.
func (g *GeminiProvider) Generate(ctx context.Context, genReq domain.GenerateRequest) (string, error) {
	body, err := json.Marshal(map[string]any{
		"contents": []map[string]any{
			{"parts": []map[string]string{{"text": genReq.Prompt}}},
		},
		"safetySettings": []map[string]string{
			{"category": "HARM_CATEGORY_HARASSMENT", "threshold": "BLOCK_NONE"},
			{"category": "HARM_CATEGORY_HATE_SPEECH", "threshold": "BLOCK_NONE"},
			{"category": "HARM_CATEGORY_SEXUALLY_EXPLICIT", "threshold": "BLOCK_NONE"},
			{"category": "HARM_CATEGORY_DANGEROUS_CONTENT", "threshold": "BLOCK_NONE"},
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal generate payload: %w", err)
	}

	model := genReq.Model
	if !strings.HasPrefix(model, "models/") {
		model = "models/" + model
	}
	genURL := fmt.Sprintf("%s/v1beta/%s:generateContent?key=%s", g.endpoint, model, url.QueryEscape(genReq.APIKey))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, genURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", g.mapError(resp)
	}

	var payload geminiGenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", &domain.ProviderError{
			Provider: g.Name(),
			Kind:     domain.KindTransient,
			Message:  fmt.Sprintf("malformed response: %v", err),
		}
	}

	if len(payload.Candidates) == 0 || len(payload.Candidates[0].Content.Parts) == 0 {
		return "", &domain.ProviderError{
			Provider: g.Name(),
			Kind:     domain.KindTransient,
			Message:  "response carried no candidates",
		}
	}

	return payload.Candidates[0].Content.Parts[0].Text, nil
}

// mapError folds Gemini HTTP statuses into the shared taxonomy. A 400 from
// this API almost always means INVALID_ARGUMENT for a malformed key, so it
// joins 401/403 in the authorization class.
func (g *GeminiProvider) mapError(resp *http.Response) error {
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))

	kind := domain.KindTransient
	switch resp.StatusCode {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden:
		kind = domain.KindAuthorization
	case http.StatusTooManyRequests:
		kind = domain.KindRateLimited
	}

	return &domain.ProviderError{
		Provider: g.Name(),
		Kind:     kind,
		Status:   resp.StatusCode,
		Message:  strings.TrimSpace(string(snippet)),
	}
}
