// Package providers implements the uniform completion interface over the
// supported LLM backends.
//
// Every backend is exposed through the single Provider capability; request
// shaping, authentication and error mapping are internal to each adapter.
// The factory in New selects the adapter from configuration and wraps it
// with the shared rate-limit gate and retry policy.
package providers

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// Provider IDs accepted in configuration.
const (
	OpenAIName    = "openai"
	DeepSeekName  = "deepseek"
	AnthropicName = "anthropic"
	OllamaName    = "ollama"

	// RulesName selects the offline rule-based extractor instead of an
	// LLM backend. It is handled by the orchestrator, not by New.
	RulesName = "rules"
)

const (
	defaultTimeout    = 120 * time.Second
	defaultMaxRetries = 3
	defaultRetryDelay = time.Second

	// DefaultContextBudget is the default chunk size in runes of
	// normalized document text per prompt.
	DefaultContextBudget = 12000

	// DefaultMaxConcurrency bounds concurrent in-flight chunk requests
	// against one provider.
	DefaultMaxConcurrency = 4
)

// Provider is the uniform completion capability over interchangeable LLM
// backends. Complete sends one prompt and returns the raw textual response.
type Provider interface {
	Complete(ctx context.Context, prompt string) (string, error)
	Name() string
}

// Config selects and configures one provider backend. It is supplied by the
// caller per request; the package keeps no process-wide provider state.
type Config struct {
	// ProviderID selects the adapter: openai, deepseek, anthropic,
	// ollama, or rules.
	ProviderID string `mapstructure:"provider_id"`

	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
	BaseURL string `mapstructure:"base_url"`

	// Timeout bounds one completion round-trip.
	Timeout time.Duration `mapstructure:"timeout"`

	// Retry policy for rate-limit and timeout errors.
	MaxRetries int           `mapstructure:"max_retries"`
	RetryDelay time.Duration `mapstructure:"retry_delay"`

	// RequestsPerMinute enables the token-bucket gate when > 0.
	RequestsPerMinute int `mapstructure:"requests_per_minute"`

	// MaxConcurrency bounds concurrent chunk requests (orchestrator).
	MaxConcurrency int `mapstructure:"max_concurrency"`

	// ContextBudget is the chunk size in runes of document text.
	ContextBudget int `mapstructure:"context_budget"`

	// HTTPClient overrides the transport (tests).
	HTTPClient *http.Client `mapstructure:"-"`
}

func (c Config) timeout() time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return defaultTimeout
}

func (c Config) maxRetries() uint {
	if c.MaxRetries > 0 {
		return uint(c.MaxRetries)
	}
	return defaultMaxRetries
}

func (c Config) retryDelay() time.Duration {
	if c.RetryDelay > 0 {
		return c.RetryDelay
	}
	return defaultRetryDelay
}

func (c Config) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: c.timeout()}
}

// New builds the provider selected by cfg.ProviderID, wrapped with the
// rate-limit gate (when configured) and the retry policy.
func New(cfg Config) (Provider, error) {
	var p Provider
	switch cfg.ProviderID {
	case OpenAIName:
		p = NewOpenAIProvider(cfg)
	case DeepSeekName:
		p = NewDeepSeekProvider(cfg)
	case AnthropicName:
		p = NewAnthropicProvider(cfg)
	case OllamaName, "local":
		p = NewOllamaProvider(cfg)
	case RulesName:
		return nil, fmt.Errorf("rules extraction has no completion backend")
	case "":
		return nil, fmt.Errorf("provider_id is required")
	default:
		return nil, fmt.Errorf("unknown provider: %q", cfg.ProviderID)
	}

	if cfg.RequestsPerMinute > 0 {
		p = withRateLimit(p, cfg.RequestsPerMinute)
	}
	return WithRetry(p, cfg), nil
}
