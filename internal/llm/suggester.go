// Package llm asks a large language model for research paper titles related
// to a free-text query. The titles widen catalog search beyond substring
// matches on the query itself.
//
// Example usage:
//
//	suggester, err := llm.NewTitleSuggester(ctx, llm.FactoryConfig{Provider: "openai", ...})
//	titles, err := suggester.SuggestTitles(ctx, "attention mechanisms for translation")
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// DefaultMaxTitles caps the titles kept from one model response.
const DefaultMaxTitles = 25

// ErrNoTitles is returned when the model response parses but lists no titles.
var ErrNoTitles = errors.New("llm returned no titles")

// TitleSuggester defines the interface for LLM-based title suggestion.
type TitleSuggester interface {
	// SuggestTitles returns titles of papers semantically related to query.
	// The context should be used for cancellation and deadline propagation.
	SuggestTitles(ctx context.Context, query string) ([]string, error)

	// Provider returns the name of the LLM provider (e.g., "openai", "gemini").
	Provider() string

	// Model returns the model identifier being used.
	Model() string
}

// titlesResponse is the JSON object requested from providers that only
// support object-shaped JSON output.
type titlesResponse struct {
	Titles []string `json:"titles"`
}

// BuildTitlePrompt returns the prompt sent to the model for query.
func BuildTitlePrompt(query string) string {
	var sb strings.Builder

	sb.WriteString("You are an expert research assistant tasked with finding relevant research papers based on a user's query.\n")
	sb.WriteString("Given the following query, identify a list of research paper titles that are semantically similar or related to the query.\n")
	sb.WriteString("Return only the titles of the papers. Do not include any additional information or context.\n\n")
	sb.WriteString("Query: ")
	sb.WriteString(query)

	return sb.String()
}

// jsonInstruction is appended for providers that need the output shape spelled out.
const jsonInstruction = "\n\nRespond with valid JSON in exactly this format:\n" + `{"titles": ["title 1", "title 2"]}`

// ParseTitles decodes a model response holding either {"titles": [...]} or a
// bare JSON array. Titles are trimmed, blank and duplicate entries dropped,
// and the result capped at maxTitles (DefaultMaxTitles when not positive).
func ParseTitles(content string, maxTitles int) ([]string, error) {
	content = stripCodeFence(content)

	var raw []string
	var obj titlesResponse
	if err := json.Unmarshal([]byte(content), &obj); err == nil {
		raw = obj.Titles
	} else if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return nil, fmt.Errorf("failed to parse titles response as JSON: %w", err)
	}

	if maxTitles <= 0 {
		maxTitles = DefaultMaxTitles
	}

	seen := make(map[string]struct{}, len(raw))
	titles := make([]string, 0, min(len(raw), maxTitles))
	for _, t := range raw {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		titles = append(titles, t)
		if len(titles) == maxTitles {
			break
		}
	}

	if len(titles) == 0 {
		return nil, ErrNoTitles
	}
	return titles, nil
}

// stripCodeFence removes a surrounding ``` or ```json fence some models add.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
