package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/assistants/internal/config"
)

func TestNew(t *testing.T) {
	cfg := config.DefaultConfig()

	cfg.Model.Provider = config.ProviderScripted
	m, err := New(cfg)
	require.NoError(t, err)
	assert.Equal(t, "scripted", m.Info().Provider)

	cfg.Model.Provider = config.ProviderOpenAI
	_, err = New(cfg)
	assert.ErrorContains(t, err, "missing api key")

	cfg.Model.OpenAIAPIKey = "sk-test"
	m, err = New(cfg)
	require.NoError(t, err)
	assert.Equal(t, "openai", m.Info().Provider)

	cfg.Model.Provider = config.ProviderAnthropic
	_, err = New(cfg)
	assert.ErrorContains(t, err, "missing api key")

	cfg.Model.AnthropicAPIKey = "sk-ant-test"
	cfg.Model.Name = "claude-3-5-haiku-latest"
	m, err = New(cfg)
	require.NoError(t, err)
	assert.Equal(t, "anthropic", m.Info().Provider)
	assert.Equal(t, "claude-3-5-haiku-latest", m.Info().Name)

	cfg.Model.Provider = "gemini"
	_, err = New(cfg)
	assert.ErrorContains(t, err, `unknown model provider "gemini"`)
}
