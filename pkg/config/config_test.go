package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConfigAppliesDefaults(t *testing.T) {
	cfg, err := ParseConfig([]byte(`{
		"model": {"provider": "anthropic", "api_key": "sk-test"}
	}`))
	require.NoError(t, err)

	assert.Equal(t, DefaultDataRoot, cfg.DataRoot)
	assert.Equal(t, DefaultStatePath, cfg.StatePath)
	assert.Equal(t, 24*time.Hour, cfg.SessionTTL())
	assert.Equal(t, float32(DefaultTemperature), cfg.Model.Temperature)
	assert.Equal(t, DefaultMaxTokens, cfg.Model.MaxTokens)
	assert.False(t, cfg.Stages.DisableDiagram)
}

func TestParseConfigEnvSubstitution(t *testing.T) {
	t.Setenv("TEST_SPECSMITH_KEY", "sk-from-env")

	cfg, err := ParseConfig([]byte(`{
		"model": {"provider": "anthropic", "api_key": "${TEST_SPECSMITH_KEY}"}
	}`))
	require.NoError(t, err)
	assert.Equal(t, "sk-from-env", cfg.Model.APIKey)
}

func TestParseConfigEnvOverridesStageFlags(t *testing.T) {
	t.Setenv(EnvDisableDiagramStage, "1")
	t.Setenv(EnvDisableReview, "true")

	cfg, err := ParseConfig([]byte(`{
		"model": {"provider": "anthropic", "api_key": "sk-test"}
	}`))
	require.NoError(t, err)
	assert.True(t, cfg.Stages.DisableDiagram)
	assert.False(t, cfg.Stages.DisableRequirements)
	assert.True(t, cfg.Stages.DisableReview)
}

func TestParseConfigValidation(t *testing.T) {
	t.Setenv(EnvAnthropicAPIKey, "")
	t.Setenv(EnvOpenAIAPIKey, "")

	_, err := ParseConfig([]byte(`{"model": {"provider": "anthropic"}}`))
	assert.Error(t, err, "missing API key must fail validation")

	_, err = ParseConfig([]byte(`{"model": {"provider": "banana", "api_key": "x"}}`))
	assert.Error(t, err, "unknown provider must fail validation")

	_, err = ParseConfig([]byte(`{"model": {"provider": "ollama"}}`))
	assert.Error(t, err, "ollama without model must fail validation")

	cfg, err := ParseConfig([]byte(`{"model": {"provider": "ollama", "model": "llama3"}}`))
	require.NoError(t, err)
	assert.Equal(t, "llama3", cfg.Model.Model)
}

func TestParseConfigAPIKeyFromProviderEnv(t *testing.T) {
	t.Setenv(EnvOpenAIAPIKey, "sk-openai")

	cfg, err := ParseConfig([]byte(`{"model": {"provider": "openai"}}`))
	require.NoError(t, err)
	assert.Equal(t, "sk-openai", cfg.Model.APIKey)
}
