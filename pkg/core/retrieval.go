package core

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/jarvisproject/recall/pkg/index"
)

const (
	// retrieveTimeout bounds the synchronous query-embedding call. The
	// caller's conversational turn waits on retrieval, so a slow or dead
	// embedding endpoint must degrade to "no memories found" rather than
	// hang the turn.
	retrieveTimeout = 5 * time.Second

	// overfetchFactor is how many times topK candidates are pulled from the
	// index before boosting and filtering. Filters discard candidates, so
	// fetching exactly topK would under-fill the result.
	overfetchFactor = 3

	// maxRecencyBoost is the boost added to the newest candidate's score.
	// Older candidates get a linearly smaller boost, down to zero for the
	// oldest. Corrections to a fact should outrank the stale original even
	// when both are near-identical to the query.
	maxRecencyBoost = 0.2

	// flatRecencyBoost is applied to every candidate when all candidates
	// share one timestamp and a relative position cannot be computed.
	flatRecencyBoost = 0.1

	// speakerScoreFloor is the minimum similarity for a candidate to
	// participate in speaker-prioritized retrieval.
	speakerScoreFloor = 0.1
)

// RetrieveRelevant returns the memories most relevant to query, ranked by
// semantic similarity plus a recency boost, then filtered.
//
// The pipeline:
//  1. Fetch topK*3 candidates from the index by cosine similarity.
//  2. Boost each candidate by its timestamp position within the candidate
//     set's time range: up to +0.2 for the newest, +0.0 for the oldest
//     (a constant +0.1 when all timestamps are equal). Scores are capped
//     at 1.0. Re-sort.
//  3. Apply filters in order: speaker (exact, skipped when absent or
//     unknown), since, tags (any match), sentiment. Stop at topK survivors.
//
// Retrieval is best-effort: embedding failures and timeouts (5s) yield an
// empty result, never an error. The caller's turn must not fail because the
// memory subsystem is degraded.
//
// Example:
//
//	results := client.RetrieveRelevant(ctx, "when is the trip?",
//	    core.WithTopK(3),
//	    core.WithSpeaker("jason"),
//	)
func (c *Client) RetrieveRelevant(ctx context.Context, query string, opts ...RetrieveOption) []RetrievedMemory {
	options := applyRetrieveOptions(opts)
	if query == "" || options.TopK <= 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, retrieveTimeout)
	defer cancel()

	hits, err := c.index.Query(ctx, query, options.TopK*overfetchFactor)
	if err != nil {
		c.logger.Warn("retrieval degraded to empty result", "error", err)
		return nil
	}

	candidates := applyRecencyBoost(hits)

	speakerFilter := options.Speaker != "" && options.Speaker != SpeakerUnknown
	var results []RetrievedMemory
	for _, cand := range candidates {
		if speakerFilter && cand.Speaker != options.Speaker {
			continue
		}
		if !options.Since.IsZero() && cand.Timestamp.Before(options.Since) {
			continue
		}
		if len(options.Tags) > 0 && !anyTagMatches(cand.Tags, options.Tags) {
			continue
		}
		if options.Sentiment != "" && cand.Sentiment != options.Sentiment {
			continue
		}
		results = append(results, cand)
		if len(results) == options.TopK {
			break
		}
	}
	return results
}

// RetrieveSimple returns the content and timestamp of the memories most
// relevant to query, without filters. Convenient for prompt construction.
func (c *Client) RetrieveSimple(ctx context.Context, query string, topK int) []MemorySnippet {
	results := c.RetrieveRelevant(ctx, query, WithTopK(topK))
	snippets := make([]MemorySnippet, len(results))
	for i, r := range results {
		snippets[i] = MemorySnippet{Content: r.Content, Timestamp: r.Timestamp}
	}
	return snippets
}

// RetrieveForSpeaker retrieves memories for the conversational loop with
// speaker-aware prioritization.
//
// Semantic hits above the similarity floor are partitioned into three
// buckets: the current speaker's own memories, memories tagged with a
// different named speaker, and untagged memories. Combination policy:
//
//   - When the query mentions another known speaker by name, all buckets
//     are merged and ranked purely by score. Asking about someone else is
//     an explicit request for their memories.
//   - Otherwise, when the current speaker is known, the result is filled
//     with the speaker's own hits first and the remaining slots are
//     backfilled from the other buckets by score. One person's query
//     should not surface another person's memories by accident.
//   - When the speaker is absent or unknown, all buckets are merged.
//
// Like RetrieveRelevant, failures degrade to an empty result.
func (c *Client) RetrieveForSpeaker(ctx context.Context, query, speaker string, topK int) []RetrievedMemory {
	if query == "" || topK <= 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, retrieveTimeout)
	defer cancel()

	hits, err := c.index.Query(ctx, query, topK*overfetchFactor)
	if err != nil {
		c.logger.Warn("speaker retrieval degraded to empty result", "error", err)
		return nil
	}

	var candidates []index.Hit
	for _, hit := range hits {
		if hit.Score >= speakerScoreFloor {
			candidates = append(candidates, hit)
		}
	}

	speakerKnown := speaker != "" && speaker != SpeakerUnknown
	if !speakerKnown || c.queryMentionsOtherSpeaker(query, speaker) {
		return takeHits(candidates, topK)
	}

	var own, others []index.Hit
	for _, hit := range candidates {
		if hit.Speaker == speaker {
			own = append(own, hit)
		} else {
			others = append(others, hit)
		}
	}

	results := takeHits(own, topK)
	for _, hit := range others {
		if len(results) == topK {
			break
		}
		results = append(results, retrievedFromHit(hit, hit.Score))
	}
	return results
}

// HasSpeakerMemories reports whether any memory is attributed to speaker.
// The conversational loop uses this to choose between greeting a known
// person and introducing itself.
func (c *Client) HasSpeakerMemories(speaker string) bool {
	return c.index.HasSpeaker(speaker)
}

// queryMentionsOtherSpeaker reports whether query names a known speaker
// other than current. The known-speaker set is derived from the index, so
// it tracks whoever has actually been remembered.
func (c *Client) queryMentionsOtherSpeaker(query, current string) bool {
	lowered := strings.ToLower(query)
	for _, other := range c.index.Speakers() {
		if other == current || other == SpeakerSystem {
			continue
		}
		if strings.Contains(lowered, strings.ToLower(other)) {
			return true
		}
	}
	return false
}

// applyRecencyBoost converts hits into boosted, re-sorted retrieval results.
func applyRecencyBoost(hits []index.Hit) []RetrievedMemory {
	if len(hits) == 0 {
		return nil
	}

	minTS, maxTS := hits[0].Timestamp, hits[0].Timestamp
	for _, hit := range hits[1:] {
		if hit.Timestamp.Before(minTS) {
			minTS = hit.Timestamp
		}
		if hit.Timestamp.After(maxTS) {
			maxTS = hit.Timestamp
		}
	}
	timeRange := maxTS.Sub(minTS)

	results := make([]RetrievedMemory, len(hits))
	for i, hit := range hits {
		boost := flatRecencyBoost
		if timeRange > 0 {
			position := float64(hit.Timestamp.Sub(minTS)) / float64(timeRange)
			boost = position * maxRecencyBoost
		}
		score := hit.Score + boost
		if score > 1.0 {
			score = 1.0
		}
		results[i] = retrievedFromHit(hit, score)
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	return results
}

func takeHits(hits []index.Hit, topK int) []RetrievedMemory {
	if topK > len(hits) {
		topK = len(hits)
	}
	results := make([]RetrievedMemory, topK)
	for i := 0; i < topK; i++ {
		results[i] = retrievedFromHit(hits[i], hits[i].Score)
	}
	return results
}

func anyTagMatches(have, want []string) bool {
	for _, w := range want {
		for _, h := range have {
			if h == w {
				return true
			}
		}
	}
	return false
}
