package agent

import (
	"fmt"
)

// Provider identifies a text-generation backend.
type Provider string

const (
	ProviderAnthropic Provider = "anthropic"
	ProviderOpenAI    Provider = "openai"
	ProviderGoogle    Provider = "google"
	ProviderOllama    Provider = "ollama"
)

// ProviderConfig holds the settings needed to construct a backend client.
type ProviderConfig struct {
	Provider Provider
	Model    string
	APIKey   string
	Host     string // Ollama only
}

// NewClient constructs the raw backend client for a provider config.
func NewClient(cfg ProviderConfig) (LLMClient, error) {
	switch cfg.Provider {
	case ProviderAnthropic:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("anthropic provider requires an API key")
		}
		model := cfg.Model
		if model == "" {
			model = DefaultClaudeModel
		}
		return NewClaudeClientWithModel(cfg.APIKey, model), nil
	case ProviderOpenAI:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("openai provider requires an API key")
		}
		model := cfg.Model
		if model == "" {
			model = DefaultOpenAIModel
		}
		return NewOpenAIClientWithModel(cfg.APIKey, model), nil
	case ProviderGoogle:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("google provider requires an API key")
		}
		model := cfg.Model
		if model == "" {
			model = DefaultGeminiModel
		}
		return NewGeminiClientWithModel(cfg.APIKey, model), nil
	case ProviderOllama:
		host := cfg.Host
		if host == "" {
			host = DefaultOllamaHost
		}
		if cfg.Model == "" {
			return nil, fmt.Errorf("ollama provider requires a model name")
		}
		return NewOllamaClientWithModel(host, cfg.Model), nil
	default:
		return nil, fmt.Errorf("unknown provider: %q", cfg.Provider)
	}
}

// NewHandleFromConfig builds the retry-wrapped handle the engine and stages
// consume: backend client, retry middleware, health-tracked handle.
func NewHandleFromConfig(cfg ProviderConfig) (*Handle, error) {
	client, err := NewClient(cfg)
	if err != nil {
		return nil, err
	}
	retryable := NewRetryableClient(client, DefaultRetryConfig)
	model := cfg.Model
	if named, ok := client.(interface{ GetModelName() string }); ok {
		model = named.GetModelName()
	}
	return NewHandle(retryable, model), nil
}
