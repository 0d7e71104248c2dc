package core

import (
	"time"

	"github.com/jarvisproject/recall/pkg/index"
)

// SpeakerUnknown is the speaker value meaning "not identified". Retrieval
// treats it the same as an absent speaker: no speaker filter, no speaker
// priority.
const SpeakerUnknown = "unknown"

// SpeakerSystem is the speaker assigned to records the system writes itself,
// such as compaction summaries.
const SpeakerSystem = "system"

// RetrievedMemory is one ranked retrieval result.
//
// Score is the final ranking score: cosine similarity plus the recency
// boost, capped at 1.0. It is comparable only within a single retrieval
// call, since the boost depends on the candidate set's time range.
type RetrievedMemory struct {
	// Content is the memory's plaintext content.
	Content string `json:"content"`

	// Timestamp is the memory's creation time.
	Timestamp time.Time `json:"timestamp"`

	// Tags are the memory's tags.
	Tags []string `json:"tags"`

	// Sentiment is the memory's sentiment label.
	Sentiment string `json:"sentiment"`

	// Speaker is the memory's speaker, or "" when unknown.
	Speaker string `json:"speaker,omitempty"`

	// Score is the final ranking score.
	Score float64 `json:"score"`
}

// MemorySnippet is a minimal retrieval result: content and creation time
// only. Useful for prompt construction where the rest of the metadata is
// noise.
type MemorySnippet struct {
	// Content is the memory's plaintext content.
	Content string `json:"content"`

	// Timestamp is the memory's creation time.
	Timestamp time.Time `json:"timestamp"`
}

// retrievedFromHit converts an index hit into a retrieval result with the
// given final score.
func retrievedFromHit(hit index.Hit, score float64) RetrievedMemory {
	return RetrievedMemory{
		Content:   hit.Content,
		Timestamp: hit.Timestamp,
		Tags:      hit.Tags,
		Sentiment: hit.Sentiment,
		Speaker:   hit.Speaker,
		Score:     score,
	}
}
