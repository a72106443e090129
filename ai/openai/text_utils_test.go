package openai

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/poiesic/ragline/ai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnwrapMarkdown(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "envelope", in: "<markdown>\n# Title\nbody\n</markdown>", want: "# Title\nbody"},
		{name: "preamble", in: "Here is the page:\n<markdown>text</markdown>", want: "text"},
		{name: "empty envelope", in: "<markdown></markdown>", want: ""},
		{name: "code fence", in: "```markdown\n| a | b |\n```", want: "| a | b |"},
		{name: "plain", in: "  plain text  ", want: "plain text"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, unwrapMarkdown(tt.in))
		})
	}
}

func TestBuildPageExtractionPrompt(t *testing.T) {
	prompt := buildPageExtractionPrompt()

	assert.True(t, strings.HasPrefix(prompt, "You are a document text extractor."))
	assert.Contains(t, prompt, "1. Extract ALL text from the page")
	assert.Contains(t, prompt, "11. Output ONLY the extracted text")
	assert.Contains(t, prompt, "<figure_type></figure_type>")
	assert.Contains(t, prompt, "Chart, Diagram, Logo, Icon, Natural Image, Screenshot, Other")
}

func TestLimiter(t *testing.T) {
	t.Run("disabled never blocks", func(t *testing.T) {
		l := newLimiter(ai.NewConfig())
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		assert.NoError(t, l.Wait(ctx))
	})

	t.Run("nil limiter", func(t *testing.T) {
		var l *limiter
		assert.NoError(t, l.Wait(context.Background()))
	})

	t.Run("enabled respects context", func(t *testing.T) {
		l := newLimiter(ai.NewConfig(ai.WithRateLimit(0.001, 1)))
		require.NoError(t, l.Wait(context.Background()))

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		assert.Error(t, l.Wait(ctx))
	})
}

func TestNewProvider_InvalidConfig(t *testing.T) {
	_, err := NewProvider(&ai.Config{})
	assert.Error(t, err)
}
