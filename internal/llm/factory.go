package llm

import (
	"context"
	"fmt"
	"time"
)

// Provider names accepted by NewTitleSuggester.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
	ProviderNone   = "none"
)

// FactoryConfig holds the parameters needed to create a TitleSuggester.
// This is defined in the llm package to avoid importing the config package,
// keeping the llm package free of infrastructure dependencies.
type FactoryConfig struct {
	// Provider is the LLM provider name ("openai", "gemini" or "none").
	Provider string
	// Temperature is the LLM temperature setting.
	Temperature float64
	// Timeout is the timeout for LLM API calls.
	Timeout time.Duration
	// MaxRetries is the maximum number of retries for failed calls.
	MaxRetries int
	// MaxTitles caps the titles kept from one response.
	MaxTitles int
	// OpenAI contains OpenAI-specific settings.
	OpenAI OpenAIConfig
	// Gemini contains Gemini-specific settings.
	Gemini GeminiConfig
}

// NewTitleSuggester creates a TitleSuggester based on the configuration.
// It returns a nil suggester and no error for the "none" provider, which
// disables semantic expansion.
func NewTitleSuggester(ctx context.Context, cfg FactoryConfig) (TitleSuggester, error) {
	switch cfg.Provider {
	case ProviderOpenAI:
		return NewOpenAIProvider(cfg.OpenAI, cfg.Temperature, cfg.Timeout, cfg.MaxRetries, cfg.MaxTitles), nil
	case ProviderGemini:
		p, err := NewGeminiProvider(ctx, cfg.Gemini, cfg.Temperature, cfg.Timeout, cfg.MaxRetries, cfg.MaxTitles)
		if err != nil {
			return nil, err
		}
		return p, nil
	case ProviderNone, "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %q", cfg.Provider)
	}
}
