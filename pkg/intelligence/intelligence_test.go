package intelligence_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jarvisproject/recall/pkg/intelligence"
	"github.com/jarvisproject/recall/pkg/llm"
	"github.com/jarvisproject/recall/pkg/logging"
)

// scriptedLLM answers sentiment and tag prompts with fixed responses.
type scriptedLLM struct {
	sentiment string
	tags      string
	fail      bool
}

func (s *scriptedLLM) Generate(ctx context.Context, prompt string, opts ...llm.GenerateOption) (string, error) {
	return s.GenerateWithMessages(ctx, []llm.Message{{Role: "user", Content: prompt}}, opts...)
}

func (s *scriptedLLM) GenerateWithMessages(ctx context.Context, messages []llm.Message, opts ...llm.GenerateOption) (string, error) {
	if s.fail {
		return "", errors.New("llm unavailable")
	}
	system := messages[0].Content
	if strings.Contains(system, "sentiment") {
		return s.sentiment, nil
	}
	return s.tags, nil
}

func (s *scriptedLLM) Close() error { return nil }

func TestShouldRememberPatterns(t *testing.T) {
	policy := intelligence.DefaultHeuristicPolicy()

	tests := []struct {
		name     string
		user     string
		response string
		remember bool
		fragment string
	}{
		{
			name:     "stated preference",
			user:     "By the way, my favorite fruit is mango. What should I cook?",
			response: "Mango pairs well with sticky rice.",
			remember: true,
			fragment: "By the way, my favorite fruit is mango",
		},
		{
			name:     "stated name",
			user:     "My name is Jason",
			response: "Nice to meet you, Jason.",
			remember: true,
			fragment: "My name is Jason",
		},
		{
			name:     "biographical fact",
			user:     "I was born in 1990 in Lisbon",
			response: "Got it.",
			remember: true,
			fragment: "I was born in 1990 in Lisbon",
		},
		{
			name:     "small talk",
			user:     "How warm will it be tomorrow?",
			response: "Around 20 degrees.",
			remember: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			remember, fragment := policy.ShouldRemember(tt.user, tt.response)
			assert.Equal(t, tt.remember, remember)
			if tt.remember {
				assert.Equal(t, tt.fragment, fragment)
			}
		})
	}
}

func TestShouldRememberCorrection(t *testing.T) {
	policy := intelligence.DefaultHeuristicPolicy()

	// Corrections keep the whole message; the correction context matters.
	user := "Actually the trip starts on the 14th, I misspoke earlier"
	remember, fragment := policy.ShouldRemember(user, "Updated, thanks.")
	require.True(t, remember)
	assert.Equal(t, user, fragment)
}

func TestJaccardSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, intelligence.JaccardSimilarity("my favorite fruit is mango", "MY favorite FRUIT is mango"))
	assert.Equal(t, 0.0, intelligence.JaccardSimilarity("completely different words", "nothing shared here"))
	assert.Equal(t, 0.0, intelligence.JaccardSimilarity("", "some words"))

	// {a, b, c} vs {b, c, d}: 2 shared of 4 total.
	assert.InDelta(t, 0.5, intelligence.JaccardSimilarity("a b c", "b c d"), 1e-9)
}

func TestDeduper(t *testing.T) {
	deduper := intelligence.NewDeduper(0.8)
	deduper.Seed([]string{"my favorite fruit is mango"})

	assert.True(t, deduper.IsDuplicate("my favorite fruit is mango"))
	assert.False(t, deduper.IsDuplicate("my favorite color is blue"))

	deduper.Add("my favorite color is blue")
	assert.True(t, deduper.IsDuplicate("my favorite color is blue"))
}

func TestClassifierWithLLM(t *testing.T) {
	classifier := intelligence.NewClassifier(&scriptedLLM{
		sentiment: "Positive",
		tags:      "Fruit, food, preference, fruit",
	}, logging.NopLogger{})

	ctx := context.Background()
	assert.Equal(t, intelligence.SentimentPositive, classifier.ClassifySentiment(ctx, "I love mango"))

	// Tags are lowercased and deduplicated.
	tags := classifier.ExtractTags(ctx, "I love mango")
	assert.Equal(t, []string{"fruit", "food", "preference"}, tags)
}

func TestClassifierFallbacks(t *testing.T) {
	ctx := context.Background()

	// LLM failure falls back to neutral/no tags; enrichment never blocks a write.
	failing := intelligence.NewClassifier(&scriptedLLM{fail: true}, logging.NopLogger{})
	assert.Equal(t, intelligence.SentimentNeutral, failing.ClassifySentiment(ctx, "text"))
	assert.Nil(t, failing.ExtractTags(ctx, "text"))

	// No provider configured at all behaves the same.
	none := intelligence.NewClassifier(nil, logging.NopLogger{})
	assert.Equal(t, intelligence.SentimentNeutral, none.ClassifySentiment(ctx, "text"))
	assert.Nil(t, none.ExtractTags(ctx, "text"))
}

func TestSplitIntoChunks(t *testing.T) {
	assert.Equal(t, []string{"short fragment"}, intelligence.SplitIntoChunks("short fragment"))
	assert.Empty(t, intelligence.SplitIntoChunks("   \n\n  "))

	// Paragraphs become separate chunks.
	chunks := intelligence.SplitIntoChunks("first paragraph\n\nsecond paragraph")
	assert.Equal(t, []string{"first paragraph", "second paragraph"}, chunks)

	// An oversized paragraph is split on sentence boundaries, each piece
	// within the chunk limit.
	long := strings.Repeat("This sentence pads the paragraph well past the limit. ", 40)
	chunks = intelligence.SplitIntoChunks(long)
	assert.Greater(t, len(chunks), 1)
	for _, chunk := range chunks {
		assert.LessOrEqual(t, len(chunk), 800)
	}
}
