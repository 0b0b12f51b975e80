package config

// Config holds docpin configuration.
// Stored at: {config dir}/config.yaml
type Config struct {
	Server    ServerCfg              `mapstructure:"server" yaml:"server"`
	Providers map[string]ProviderCfg `mapstructure:"providers" yaml:"providers"`
	Defaults  DefaultsCfg            `mapstructure:"defaults" yaml:"defaults"`
	Ollama    OllamaCfg              `mapstructure:"ollama" yaml:"ollama"`

	// QueryTypesFile overrides the built-in query type registry.
	QueryTypesFile string `mapstructure:"query_types_file" yaml:"query_types_file"`
}

// ServerCfg configures the HTTP server.
type ServerCfg struct {
	Host        string `mapstructure:"host" yaml:"host"`
	Port        string `mapstructure:"port" yaml:"port"`
	MaxUploadMB int    `mapstructure:"max_upload_mb" yaml:"max_upload_mb"`
}

// ProviderCfg configures one model backend. The map key in Config.Providers
// is the provider identifier (openai, deepseek, anthropic, ollama, rules).
type ProviderCfg struct {
	APIKey            string `mapstructure:"api_key" yaml:"api_key"` // supports ${ENV_VAR} syntax
	Model             string `mapstructure:"model" yaml:"model"`
	BaseURL           string `mapstructure:"base_url" yaml:"base_url"`
	RequestsPerMinute int    `mapstructure:"requests_per_minute" yaml:"requests_per_minute"`
	MaxRetries        int    `mapstructure:"max_retries" yaml:"max_retries"`
	TimeoutSeconds    int    `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
	Enabled           bool   `mapstructure:"enabled" yaml:"enabled"`
}

// DefaultsCfg specifies extraction defaults.
type DefaultsCfg struct {
	Provider       string `mapstructure:"provider" yaml:"provider"`               // default backend
	MaxConcurrency int    `mapstructure:"max_concurrency" yaml:"max_concurrency"` // concurrent chunk calls
	ContextBudget  int    `mapstructure:"context_budget" yaml:"context_budget"`   // runes per chunk
	ContextRunes   int    `mapstructure:"context_runes" yaml:"context_runes"`     // snippet window per side
}

// OllamaCfg holds local inference container configuration.
type OllamaCfg struct {
	// Manage starts and stops the container with the server when true.
	Manage        bool   `mapstructure:"manage" yaml:"manage"`
	ContainerName string `mapstructure:"container_name" yaml:"container_name"`
	Image         string `mapstructure:"image" yaml:"image"`
	Port          string `mapstructure:"port" yaml:"port"`
	ModelsPath    string `mapstructure:"models_path" yaml:"models_path"`
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerCfg{
			Host:        "127.0.0.1",
			Port:        "8080",
			MaxUploadMB: 50,
		},
		Providers: map[string]ProviderCfg{
			"openai": {
				Model:   "gpt-4o-mini",
				APIKey:  "${OPENAI_API_KEY}",
				Enabled: true,
			},
			"deepseek": {
				Model:   "deepseek-chat",
				APIKey:  "${DEEPSEEK_API_KEY}",
				Enabled: true,
			},
			"anthropic": {
				Model:   "claude-3-5-sonnet-latest",
				APIKey:  "${ANTHROPIC_API_KEY}",
				Enabled: true,
			},
			"ollama": {
				Model:   "qwen2.5:7b",
				Enabled: true,
			},
			"rules": {
				Enabled: true,
			},
		},
		Defaults: DefaultsCfg{
			Provider:       "openai",
			MaxConcurrency: 4,
		},
		Ollama: OllamaCfg{
			ContainerName: "docpin-ollama",
			Image:         "ollama/ollama:latest",
			Port:          "11434",
		},
	}
}

// GetProvider returns a provider config by identifier.
func (c *Config) GetProvider(name string) (ProviderCfg, bool) {
	cfg, ok := c.Providers[name]
	return cfg, ok
}

// EnabledProviders returns all enabled provider identifiers.
func (c *Config) EnabledProviders() []string {
	var out []string
	for name, cfg := range c.Providers {
		if cfg.Enabled {
			out = append(out, name)
		}
	}
	return out
}
