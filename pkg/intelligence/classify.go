package intelligence

import (
	"context"
	"strings"

	"github.com/jarvisproject/recall/pkg/llm"
	"github.com/jarvisproject/recall/pkg/logging"
)

// Sentiment labels produced by the classifier.
const (
	SentimentPositive = "positive"
	SentimentNegative = "negative"
	SentimentNeutral  = "neutral"
)

// MaxTags is the maximum number of tags extracted per memory.
const MaxTags = 6

// Classifier enriches new memories with LLM-classified sentiment and tags.
//
// Both calls are fallible by contract: on any LLM failure the classifier
// falls back to neutral sentiment and no tags, logging the error. Ingestion
// must never block indefinitely on enrichment.
type Classifier struct {
	llm    llm.Provider
	logger logging.Logger
}

// NewClassifier creates a Classifier. A nil provider yields a classifier
// that always returns the fallback values.
func NewClassifier(provider llm.Provider, logger logging.Logger) *Classifier {
	if logger == nil {
		logger = logging.NopLogger{}
	}
	return &Classifier{llm: provider, logger: logger}
}

// ClassifySentiment classifies text as positive, negative or neutral.
// Falls back to neutral on any failure.
func (c *Classifier) ClassifySentiment(ctx context.Context, text string) string {
	if c.llm == nil {
		return SentimentNeutral
	}

	messages := []llm.Message{
		{Role: "system", Content: "Classify the sentiment of the following text as positive, negative, or neutral."},
		{Role: "user", Content: text},
	}
	resp, err := c.llm.GenerateWithMessages(ctx, messages, llm.WithTemperature(0))
	if err != nil {
		c.logger.Warn("sentiment classification failed", "error", err)
		return SentimentNeutral
	}

	answer := strings.ToLower(strings.TrimSpace(resp))
	for _, s := range []string{SentimentPositive, SentimentNegative, SentimentNeutral} {
		if strings.Contains(answer, s) {
			return s
		}
	}
	return SentimentNeutral
}

// ExtractTags extracts 3-6 short lowercase tags describing text.
// Falls back to no tags on any failure.
func (c *Classifier) ExtractTags(ctx context.Context, text string) []string {
	if c.llm == nil {
		return nil
	}

	messages := []llm.Message{
		{Role: "system", Content: "Extract 3-6 short, single-word tags best describing this text. Return them as a comma-separated list."},
		{Role: "user", Content: text},
	}
	resp, err := c.llm.GenerateWithMessages(ctx, messages, llm.WithTemperature(0))
	if err != nil {
		c.logger.Warn("tag extraction failed", "error", err)
		return nil
	}

	seen := make(map[string]struct{})
	var tags []string
	for _, raw := range strings.Split(resp, ",") {
		tag := strings.ToLower(strings.TrimSpace(raw))
		if tag == "" {
			continue
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		tags = append(tags, tag)
		if len(tags) == MaxTags {
			break
		}
	}
	return tags
}
