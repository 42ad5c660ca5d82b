package llm

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildTitlePrompt(t *testing.T) {
	prompt := BuildTitlePrompt("protein folding")

	assert.Contains(t, prompt, "You are an expert research assistant")
	assert.Contains(t, prompt, "semantically similar or related to the query")
	assert.Contains(t, prompt, "Return only the titles of the papers.")
	assert.True(t, strings.HasSuffix(prompt, "Query: protein folding"))
}

func TestParseTitles(t *testing.T) {
	tests := []struct {
		name    string
		content string
		max     int
		want    []string
		wantErr error
	}{
		{
			name:    "object form",
			content: `{"titles": ["A", "B"]}`,
			want:    []string{"A", "B"},
		},
		{
			name:    "bare array",
			content: `["A", "B"]`,
			want:    []string{"A", "B"},
		},
		{
			name:    "code fenced",
			content: "```json\n[\"A\"]\n```",
			want:    []string{"A"},
		},
		{
			name:    "trims and dedups",
			content: `[" A ", "A", "", "  ", "B"]`,
			want:    []string{"A", "B"},
		},
		{
			name:    "caps at max",
			content: `["A", "B", "C"]`,
			max:     2,
			want:    []string{"A", "B"},
		},
		{
			name:    "empty list",
			content: `{"titles": []}`,
			wantErr: ErrNoTitles,
		},
		{
			name:    "object without titles",
			content: `{"papers": ["A"]}`,
			wantErr: ErrNoTitles,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTitles(tt.content, tt.max)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("default cap", func(t *testing.T) {
		content := "["
		for i := 0; i < DefaultMaxTitles+5; i++ {
			if i > 0 {
				content += ","
			}
			content += fmt.Sprintf("%q", fmt.Sprintf("Title %d", i))
		}
		content += "]"

		got, err := ParseTitles(content, 0)
		require.NoError(t, err)
		assert.Len(t, got, DefaultMaxTitles)
	})

	t.Run("invalid json", func(t *testing.T) {
		_, err := ParseTitles("not json", 5)
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrNoTitles)
	})
}
