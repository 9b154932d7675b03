package llm

import (
	"fmt"

	"portfolio-bot/internal/config"
)

// NewProvider creates an LLM provider from config, wrapped with bounded
// retries. When a fallback config is present the result is a provider chain.
func NewProvider(cfg config.LLMConfig, fallback *config.LLMConfig) (Provider, error) {
	primary, err := newSingleProvider(cfg)
	if err != nil {
		return nil, err
	}

	var provider Provider = primary
	if fallback != nil {
		secondary, err := newSingleProvider(*fallback)
		if err != nil {
			return nil, fmt.Errorf("fallback provider: %w", err)
		}
		provider = NewFallbackProvider(primary, secondary)
	}

	return NewRetryProvider(provider, cfg.MaxRetries), nil
}

func newSingleProvider(cfg config.LLMConfig) (Provider, error) {
	switch cfg.Provider {
	case "openai", "openrouter", "local":
		return NewOpenAIProvider(OpenAIConfig{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
		}), nil
	case "anthropic":
		return NewAnthropicProvider(AnthropicConfig{
			APIKey: cfg.APIKey,
			Model:  cfg.Model,
		}), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider: %s", cfg.Provider)
	}
}
