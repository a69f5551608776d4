// Package config provides configuration loading, validation, and defaults
// for the documentation engine. It handles JSON config files with
// environment variable substitution.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"time"
)

// Environment variable names recognized at startup.
const (
	EnvAnthropicAPIKey = "ANTHROPIC_API_KEY"
	EnvOpenAIAPIKey    = "OPENAI_API_KEY"
	EnvGoogleAPIKey    = "GOOGLE_API_KEY"
	EnvOllamaHost      = "OLLAMA_HOST"

	EnvDisableDiagramStage      = "DISABLE_DIAGRAM_STAGE"
	EnvDisableRequirementsStage = "DISABLE_REQUIREMENTS_STAGE"
	EnvDisableReview            = "DISABLE_REVIEW"
)

// Defaults applied when the config file leaves a field unset.
const (
	DefaultDataRoot    = "data"
	DefaultStatePath   = "specsmith.db"
	DefaultSessionTTL  = 24 * time.Hour
	DefaultProvider    = "anthropic"
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 4096
)

// ModelCfg defines the settings for a text-generation backend.
type ModelCfg struct {
	Provider    string  `json:"provider"` // anthropic, openai, google, ollama
	Model       string  `json:"model"`
	APIKey      string  `json:"api_key"`
	Host        string  `json:"host,omitempty"` // ollama only
	Temperature float32 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
}

// StageFlags holds the static enablement switches read once at startup.
// They shape the workflow graph for the whole process lifetime.
type StageFlags struct {
	DisableDiagram      bool `json:"disable_diagram_stage"`
	DisableRequirements bool `json:"disable_requirements_stage"`
	DisableReview       bool `json:"disable_review"`
}

// Config is the engine configuration.
type Config struct {
	// DataRoot is the base directory for generated artifacts.
	DataRoot string `json:"data_root"`
	// StatePath is the SQLite state database path.
	StatePath string `json:"state_path"`
	// SessionTTLHours bounds how long idle session state survives.
	SessionTTLHours int `json:"session_ttl_hours"`

	Model  ModelCfg   `json:"model"`
	Stages StageFlags `json:"stages"`

	// InterviewQuestionsPath optionally overrides the embedded question
	// catalog with an external YAML file.
	InterviewQuestionsPath string `json:"interview_questions_path,omitempty"`
}

var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

// LoadConfig loads and validates configuration from a JSON file with
// environment variable substitution for ${VAR} placeholders.
func LoadConfig(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig parses raw JSON config bytes, applying env substitution,
// env overrides, defaults, and validation.
func ParseConfig(data []byte) (*Config, error) {
	dataStr := envVarRegex.ReplaceAllStringFunc(string(data), func(match string) string {
		envVar := match[2 : len(match)-1]
		if value := os.Getenv(envVar); value != "" {
			return value
		}
		return match // Leave placeholder if env var not set
	})

	var config Config
	if err := json.Unmarshal([]byte(dataStr), &config); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	applyEnvOverrides(&config)
	applyDefaults(&config)

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &config, nil
}

// DefaultConfig returns a config built purely from defaults and the
// environment, for running without a config file.
func DefaultConfig() (*Config, error) {
	config := &Config{}
	applyEnvOverrides(config)
	applyDefaults(config)
	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return config, nil
}

func applyEnvOverrides(config *Config) {
	if config.Model.APIKey == "" {
		switch config.Model.Provider {
		case "openai":
			config.Model.APIKey = os.Getenv(EnvOpenAIAPIKey)
		case "google":
			config.Model.APIKey = os.Getenv(EnvGoogleAPIKey)
		default:
			config.Model.APIKey = os.Getenv(EnvAnthropicAPIKey)
		}
	}
	if config.Model.Host == "" {
		config.Model.Host = os.Getenv(EnvOllamaHost)
	}

	if envFlag(EnvDisableDiagramStage) {
		config.Stages.DisableDiagram = true
	}
	if envFlag(EnvDisableRequirementsStage) {
		config.Stages.DisableRequirements = true
	}
	if envFlag(EnvDisableReview) {
		config.Stages.DisableReview = true
	}
}

func envFlag(name string) bool {
	v := os.Getenv(name)
	return v == "1" || v == "true" || v == "True" || v == "TRUE"
}

func applyDefaults(config *Config) {
	if config.DataRoot == "" {
		config.DataRoot = DefaultDataRoot
	}
	if config.StatePath == "" {
		config.StatePath = DefaultStatePath
	}
	if config.SessionTTLHours <= 0 {
		config.SessionTTLHours = int(DefaultSessionTTL / time.Hour)
	}
	if config.Model.Provider == "" {
		config.Model.Provider = DefaultProvider
	}
	if config.Model.Temperature == 0 {
		config.Model.Temperature = DefaultTemperature
	}
	if config.Model.MaxTokens <= 0 {
		config.Model.MaxTokens = DefaultMaxTokens
	}
}

func validateConfig(config *Config) error {
	switch config.Model.Provider {
	case "anthropic", "openai", "google":
		if config.Model.APIKey == "" {
			return fmt.Errorf("provider %s requires an API key", config.Model.Provider)
		}
	case "ollama":
		if config.Model.Model == "" {
			return fmt.Errorf("ollama provider requires a model name")
		}
	default:
		return fmt.Errorf("unknown provider: %q", config.Model.Provider)
	}

	if config.SessionTTLHours < 0 {
		return fmt.Errorf("session_ttl_hours must be non-negative")
	}
	return nil
}

// SessionTTL returns the session TTL as a duration.
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLHours) * time.Hour
}
