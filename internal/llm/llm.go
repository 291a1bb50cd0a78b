// Package llm builds the model.Model selected by the configuration.
package llm

import (
	"fmt"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"

	"github.com/hupe1980/assistants/internal/config"
	"github.com/hupe1980/assistants/model"
	"github.com/hupe1980/assistants/model/anthropic"
	"github.com/hupe1980/assistants/model/openai"
)

// New returns the chat model for cfg.Model. The scripted provider echoes the
// user and needs no credentials; it is meant for demos and smoke tests.
func New(cfg *config.Config) (model.Model, error) {
	mc := cfg.Model

	switch mc.Provider {
	case config.ProviderOpenAI:
		if mc.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("openai: missing api key")
		}

		return openai.NewModel(func(o *openai.Options) {
			o.APIKey = mc.OpenAIAPIKey
			o.BaseURL = mc.BaseURL
			o.Temperature = mc.Temperature
			o.MaxCompletionTokens = mc.MaxTokens

			if mc.Name != "" {
				o.Model = mc.Name
			}
		}), nil
	case config.ProviderAnthropic:
		if mc.AnthropicAPIKey == "" {
			return nil, fmt.Errorf("anthropic: missing api key")
		}

		return anthropic.NewModel(func(o *anthropic.Options) {
			o.APIKey = mc.AnthropicAPIKey
			o.BaseURL = mc.BaseURL
			o.Temperature = mc.Temperature
			o.MaxTokens = mc.MaxTokens

			if mc.Name != "" {
				o.Model = anthropicsdk.Model(mc.Name)
			}
		}), nil
	case config.ProviderScripted:
		return model.NewScriptedModel(), nil
	default:
		return nil, fmt.Errorf("unknown model provider %q", mc.Provider)
	}
}
