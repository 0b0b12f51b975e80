package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"
)

const (
	DeepSeekBaseURL      = "https://api.deepseek.com/v1"
	deepSeekDefaultModel = "deepseek-chat"
)

// DeepSeekProvider implements Provider against the DeepSeek chat completions
// API, which follows the OpenAI wire format.
type DeepSeekProvider struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
}

// NewDeepSeekProvider creates a DeepSeek-backed provider.
func NewDeepSeekProvider(cfg Config) *DeepSeekProvider {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DeepSeekBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = deepSeekDefaultModel
	}
	return &DeepSeekProvider{
		apiKey:  cfg.APIKey,
		baseURL: baseURL,
		model:   model,
		client:  cfg.httpClient(),
	}
}

// Name returns the provider identifier.
func (p *DeepSeekProvider) Name() string { return DeepSeekName }

// Complete sends one chat completion request and returns the raw response text.
func (p *DeepSeekProvider) Complete(ctx context.Context, prompt string) (string, error) {
	reqBody := chatCompletionRequest{
		Model: p.model,
		Messages: []chatMessage{
			{Role: "user", Content: prompt},
		},
		Temperature: 0.1,
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", p.baseURL+"/chat/completions", bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("X-Request-ID", uuid.New().String())

	resp, err := p.client.Do(req)
	if err != nil {
		return "", wrapTransportError(DeepSeekName, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", wrapTransportError(DeepSeekName, err)
	}

	if resp.StatusCode != http.StatusOK {
		retryAfter := parseRetryAfter(resp.Header.Get("Retry-After"))
		return "", classifyHTTPStatus(DeepSeekName, resp.StatusCode, string(respBody), retryAfter)
	}

	var parsed chatCompletionResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("%w: deepseek: %v", ErrMalformedResponse, err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("%w: deepseek returned no choices", ErrMalformedResponse)
	}
	return parsed.Choices[0].Message.Content, nil
}

// OpenAI-compatible wire types shared by HTTP chat providers.

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatCompletionResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// Verify interface
var _ Provider = (*DeepSeekProvider)(nil)
