package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"
)

const (
	defaultGeminiModel      = "gemini-2.0-flash"
	defaultGeminiRetryDelay = 2 * time.Second
)

// contentGenerator is the subset of *genai.Models used by GeminiProvider.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiConfig holds the parameters needed to create a Gemini provider.
type GeminiConfig struct {
	// APIKey is the Gemini API key.
	APIKey string
	// Model is the Gemini model name.
	Model string
}

// GeminiProvider implements TitleSuggester using the Gemini API.
type GeminiProvider struct {
	models      contentGenerator
	model       string
	temperature float32
	timeout     time.Duration
	maxTitles   int
	maxRetries  int
	retryDelay  time.Duration
}

// NewGeminiProvider creates a Gemini title suggestion provider.
func NewGeminiProvider(ctx context.Context, cfg GeminiConfig, temperature float64, timeout time.Duration, maxRetries, maxTitles int) (*GeminiProvider, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return newGeminiProvider(client.Models, cfg.Model, temperature, timeout, maxRetries, maxTitles), nil
}

func newGeminiProvider(models contentGenerator, model string, temperature float64, timeout time.Duration, maxRetries, maxTitles int) *GeminiProvider {
	if model = strings.TrimSpace(model); model == "" {
		model = defaultGeminiModel
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &GeminiProvider{
		models:      models,
		model:       model,
		temperature: float32(temperature),
		timeout:     timeout,
		maxTitles:   maxTitles,
		maxRetries:  maxRetries,
		retryDelay:  defaultGeminiRetryDelay,
	}
}

// SuggestTitles asks Gemini for paper titles related to query. The response
// is constrained to a JSON array of strings.
func (p *GeminiProvider) SuggestTitles(ctx context.Context, query string) ([]string, error) {
	config := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr(p.temperature),
		ResponseMIMEType: "application/json",
		ResponseSchema: &genai.Schema{
			Type:  genai.TypeArray,
			Items: &genai.Schema{Type: genai.TypeString},
		},
	}
	contents := genai.Text(BuildTitlePrompt(query))

	var lastErr error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("gemini: context cancelled during retry wait: %w", ctx.Err())
			case <-time.After(p.retryDelay * time.Duration(attempt)):
			}
		}

		text, err := p.generate(ctx, contents, config)
		if err == nil {
			titles, err := ParseTitles(text, p.maxTitles)
			if err != nil {
				return nil, fmt.Errorf("gemini: %w", err)
			}
			return titles, nil
		}
		if !isTransientError(err) || ctx.Err() != nil {
			return nil, err
		}
		lastErr = err
	}

	return nil, fmt.Errorf("gemini: exhausted %d retries: %w", p.maxRetries, lastErr)
}

func (p *GeminiProvider) generate(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (string, error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	resp, err := p.models.GenerateContent(ctx, p.model, contents, config)
	if err != nil {
		if apiErr, ok := asGenAIError(err); ok {
			return "", &APIError{Provider: "gemini", StatusCode: apiErr.Code, Message: apiErr.Message, Type: apiErr.Status}
		}
		if ctx.Err() != nil {
			return "", fmt.Errorf("gemini: generate content: %w", ctx.Err())
		}
		return "", &APIError{Provider: "gemini", Message: err.Error()}
	}

	var builder strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil || strings.TrimSpace(part.Text) == "" {
				continue
			}
			builder.WriteString(part.Text)
		}
		break
	}

	output := strings.TrimSpace(builder.String())
	if output == "" {
		return "", errors.New("gemini: api returned empty response")
	}
	return output, nil
}

// asGenAIError unwraps a genai.APIError returned by value or by pointer.
func asGenAIError(err error) (genai.APIError, bool) {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return *apiErrPtr, true
	}
	return genai.APIError{}, false
}

// Provider returns the name of the LLM provider.
func (p *GeminiProvider) Provider() string {
	return "gemini"
}

// Model returns the model identifier being used.
func (p *GeminiProvider) Model() string {
	return p.model
}
