// Package intelligence provides the local decision logic of the ingestion
// pipeline: deciding whether an utterance is worth remembering, detecting
// near-duplicate fragments, and enriching new memories with LLM-classified
// sentiment and tags.
package intelligence

import "strings"

// HeuristicPolicy decides whether a conversational turn contains durable,
// worth-remembering information.
//
// The check is deliberately cheap and local: keyword matching only, no
// network I/O, so it can run on every turn without delaying the response
// path. The pattern lists are policy, not algorithm; callers can substitute
// their own.
type HeuristicPolicy struct {
	// PatternGroups holds groups of trigger phrases. A turn matches when any
	// phrase of any group appears; the sentence containing the phrase
	// becomes the remembered fragment.
	PatternGroups [][]string

	// CorrectionPatterns holds phrases that signal the user is correcting a
	// previously stated fact. Corrections are always remembered whole.
	CorrectionPatterns []string
}

// DefaultHeuristicPolicy returns the stock pattern set covering stated names,
// preferences, biographical facts, and corrections.
func DefaultHeuristicPolicy() *HeuristicPolicy {
	return &HeuristicPolicy{
		PatternGroups: [][]string{
			{"birthday", "born"},
			{"name is", "my name", "call me"},
			{"favorite", "like", "love", "prefer"},
			{"family", "mother", "father", "brother", "sister"},
			{"work", "job", "study", "school", "college"},
			{"live", "address", "from"},
			{"age", "years old"},
			{"friend", "friends"},
		},
		CorrectionPatterns: []string{"actually", "correction", "wrong", "not", "should be"},
	}
}

// ShouldRemember reports whether the turn contains memorable information and
// returns the extracted fragment.
//
// The user message and assistant response are scanned together; when a
// pattern matches, the first sentence of the user message containing it is
// extracted. Correction phrases cause the whole user message to be kept,
// since the correction context matters.
func (p *HeuristicPolicy) ShouldRemember(userMessage, aiResponse string) (bool, string) {
	combined := strings.ToLower(userMessage + " " + aiResponse)

	for _, group := range p.PatternGroups {
		if !containsAny(combined, group) {
			continue
		}
		for _, sentence := range strings.Split(userMessage, ".") {
			if containsAny(strings.ToLower(sentence), group) {
				return true, strings.TrimSpace(sentence)
			}
		}
	}

	if containsAny(combined, p.CorrectionPatterns) {
		return true, strings.TrimSpace(userMessage)
	}
	return false, ""
}

func containsAny(s string, patterns []string) bool {
	for _, pattern := range patterns {
		if strings.Contains(s, pattern) {
			return true
		}
	}
	return false
}
