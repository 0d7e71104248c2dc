package intelligence

import (
	"strings"
	"sync"
)

// Deduper detects near-duplicate memory fragments by word-set overlap.
//
// It keeps an in-process cache of previously seen fragments and compares new
// candidates against it with Jaccard similarity over lowercase word sets.
// This is an approximate, cheap check: false negatives (a near-duplicate
// slipping through) are acceptable, false positives (dropping genuinely new
// information) are minimized by keeping the threshold high.
type Deduper struct {
	// threshold is the Jaccard similarity above which a fragment counts as
	// already known. Default 0.8.
	threshold float64

	mu        sync.Mutex
	fragments []string
}

// NewDeduper creates a Deduper. threshold <= 0 defaults to 0.8.
func NewDeduper(threshold float64) *Deduper {
	if threshold <= 0 {
		threshold = 0.8
	}
	return &Deduper{threshold: threshold}
}

// Seed replaces the fragment cache, typically with the contents of the
// loaded index at startup.
func (d *Deduper) Seed(fragments []string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fragments = append([]string(nil), fragments...)
}

// IsDuplicate reports whether candidate overlaps an already-known fragment
// beyond the threshold.
func (d *Deduper) IsDuplicate(candidate string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, existing := range d.fragments {
		if JaccardSimilarity(candidate, existing) > d.threshold {
			return true
		}
	}
	return false
}

// Add records a fragment as known.
func (d *Deduper) Add(fragment string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fragments = append(d.fragments, fragment)
}

// JaccardSimilarity computes |A∩B| / |A∪B| over the lowercase word sets of
// the two texts. Returns 0 when either text has no words.
func JaccardSimilarity(a, b string) float64 {
	setA := wordSet(a)
	setB := wordSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}

	intersection := 0
	for word := range setA {
		if _, ok := setB[word]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func wordSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, word := range strings.Fields(strings.ToLower(s)) {
		set[word] = struct{}{}
	}
	return set
}
