package llm

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTitleSuggester_OpenAI(t *testing.T) {
	t.Parallel()

	cfg := FactoryConfig{
		Provider:    ProviderOpenAI,
		Timeout:     30 * time.Second,
		MaxRetries:  3,
		Temperature: 0.7,
		MaxTitles:   10,
		OpenAI: OpenAIConfig{
			APIKey:  "sk-test-key",
			Model:   "gpt-4o",
			BaseURL: "https://api.openai.com/v1",
		},
	}

	suggester, err := NewTitleSuggester(context.Background(), cfg)

	require.NoError(t, err)
	require.NotNil(t, suggester)
	assert.Equal(t, "openai", suggester.Provider())
	assert.Equal(t, "gpt-4o", suggester.Model())
}

func TestNewTitleSuggester_Gemini(t *testing.T) {
	t.Parallel()

	cfg := FactoryConfig{
		Provider: ProviderGemini,
		Timeout:  30 * time.Second,
		Gemini:   GeminiConfig{APIKey: "gm-test-key", Model: "gemini-2.0-flash"},
	}

	suggester, err := NewTitleSuggester(context.Background(), cfg)

	require.NoError(t, err)
	require.NotNil(t, suggester)
	assert.Equal(t, "gemini", suggester.Provider())
	assert.Equal(t, "gemini-2.0-flash", suggester.Model())
}

func TestNewTitleSuggester_GeminiMissingKey(t *testing.T) {
	t.Parallel()

	_, err := NewTitleSuggester(context.Background(), FactoryConfig{Provider: ProviderGemini})
	require.Error(t, err)
}

func TestNewTitleSuggester_None(t *testing.T) {
	t.Parallel()

	for _, provider := range []string{ProviderNone, ""} {
		suggester, err := NewTitleSuggester(context.Background(), FactoryConfig{Provider: provider})
		require.NoError(t, err)
		assert.Nil(t, suggester)
	}
}

func TestNewTitleSuggester_Unknown(t *testing.T) {
	t.Parallel()

	suggester, err := NewTitleSuggester(context.Background(), FactoryConfig{Provider: "anthropic"})

	require.Error(t, err)
	assert.Nil(t, suggester)
	assert.Contains(t, err.Error(), `unsupported LLM provider: "anthropic"`)
}
