package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"syscall"
)

const (
	OllamaBaseURL      = "http://127.0.0.1:11434"
	ollamaDefaultModel = "qwen2.5:7b"
)

// OllamaProvider implements Provider against a locally hosted Ollama server.
// A server that is not running, or a model that is not pulled, surfaces
// ErrModelUnavailable rather than a transport error.
type OllamaProvider struct {
	baseURL string
	model   string
	client  *http.Client
}

// NewOllamaProvider creates a local-inference provider.
func NewOllamaProvider(cfg Config) *OllamaProvider {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = OllamaBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = ollamaDefaultModel
	}
	return &OllamaProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		client:  cfg.httpClient(),
	}
}

// Name returns the provider identifier.
func (p *OllamaProvider) Name() string { return OllamaName }

// Complete runs one non-streaming generation and returns the response text.
func (p *OllamaProvider) Complete(ctx context.Context, prompt string) (string, error) {
	reqBody := ollamaGenerateRequest{
		Model:  p.model,
		Prompt: prompt,
		Stream: false,
		Options: ollamaOptions{
			Temperature: 0.1,
		},
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", p.baseURL+"/api/generate", bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		if errors.Is(err, syscall.ECONNREFUSED) {
			return "", fmt.Errorf("%w: local model server not reachable at %s", ErrModelUnavailable, p.baseURL)
		}
		return "", wrapTransportError(OllamaName, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", wrapTransportError(OllamaName, err)
	}

	if resp.StatusCode != http.StatusOK {
		// Ollama reports a missing model as 404 with an error message.
		return "", classifyHTTPStatus(OllamaName, resp.StatusCode, string(respBody), parseRetryAfter(resp.Header.Get("Retry-After")))
	}

	var parsed ollamaGenerateResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("%w: ollama: %v", ErrMalformedResponse, err)
	}
	if parsed.Response == "" {
		return "", fmt.Errorf("%w: ollama returned empty response", ErrMalformedResponse)
	}
	return parsed.Response, nil
}

// HealthCheck verifies the server is up and the model is available locally.
func (p *OllamaProvider) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "GET", p.baseURL+"/api/tags", nil)
	if err != nil {
		return err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: local model server not reachable at %s", ErrModelUnavailable, p.baseURL)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: ollama status %d", ErrModelUnavailable, resp.StatusCode)
	}

	var tags ollamaTagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return fmt.Errorf("%w: ollama: %v", ErrMalformedResponse, err)
	}
	for _, m := range tags.Models {
		if m.Name == p.model || strings.TrimSuffix(m.Name, ":latest") == p.model {
			return nil
		}
	}
	return fmt.Errorf("%w: model %q not pulled", ErrModelUnavailable, p.model)
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
}

type ollamaGenerateRequest struct {
	Model   string        `json:"model"`
	Prompt  string        `json:"prompt"`
	Stream  bool          `json:"stream"`
	Options ollamaOptions `json:"options,omitempty"`
}

type ollamaGenerateResponse struct {
	Model    string `json:"model"`
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

type ollamaTagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// Verify interface
var _ Provider = (*OllamaProvider)(nil)
