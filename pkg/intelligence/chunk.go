package intelligence

import "strings"

// maxChunkLen bounds the size of a single remembered fragment.
const maxChunkLen = 800

// SplitIntoChunks splits long text into fragments suitable for individual
// memory records: one per paragraph, with oversized paragraphs split on
// sentence boundaries at roughly maxChunkLen characters.
func SplitIntoChunks(text string) []string {
	var chunks []string
	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		if len(para) <= maxChunkLen {
			chunks = append(chunks, para)
			continue
		}

		var buf string
		for _, sentence := range strings.Split(para, ". ") {
			sentence = strings.TrimSpace(sentence)
			if sentence == "" {
				continue
			}
			if !strings.HasSuffix(sentence, ".") {
				sentence += "."
			}
			if buf == "" {
				buf = sentence
			} else if len(buf)+len(sentence)+1 <= maxChunkLen {
				buf = buf + " " + sentence
			} else {
				chunks = append(chunks, buf)
				buf = sentence
			}
		}
		if buf != "" {
			chunks = append(chunks, buf)
		}
	}
	return chunks
}
