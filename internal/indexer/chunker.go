package indexer

import (
	"regexp"
	"strings"
)

const (
	// MinChunkLen is the retention threshold: chunks whose trimmed text is not
	// longer than this are dropped at build time as uninformative. The same
	// threshold governs section retention in the extractor.
	MinChunkLen = 50

	// PageChunkTarget is the target chunk size for whole-page text.
	PageChunkTarget = 500

	// SectionChunkTarget is the target chunk size for per-section text.
	SectionChunkTarget = 400
)

var sentencePattern = regexp.MustCompile(`(?m)(?U)([^.!?]+[.!?]+)`)

// SplitSentences splits text at terminal punctuation (. ! ?). A trailing run
// of text with no terminal punctuation is treated as one sentence.
func SplitSentences(text string) []string {
	var sentences []string
	last := 0
	for _, loc := range sentencePattern.FindAllStringIndex(text, -1) {
		if s := strings.TrimSpace(text[loc[0]:loc[1]]); s != "" {
			sentences = append(sentences, s)
		}
		last = loc[1]
	}
	if rest := strings.TrimSpace(text[last:]); rest != "" {
		sentences = append(sentences, rest)
	}
	return sentences
}

// ChunkText greedily accumulates sentences into passages of roughly targetSize
// characters. A sentence never spans two chunks; a single sentence longer than
// targetSize becomes an oversized chunk of its own. Chunks whose trimmed
// length is at or below MinChunkLen are discarded.
//
// Output is fully deterministic for fixed input.
func ChunkText(text string, targetSize int) []string {
	sentences := SplitSentences(text)
	if len(sentences) == 0 {
		return nil
	}

	var chunks []string
	var buf strings.Builder

	flush := func() {
		passage := strings.TrimSpace(buf.String())
		if len(passage) > MinChunkLen {
			chunks = append(chunks, passage)
		}
		buf.Reset()
	}

	for _, sentence := range sentences {
		if buf.Len() > 0 && buf.Len()+1+len(sentence) > targetSize {
			flush()
		}
		if buf.Len() > 0 {
			buf.WriteByte(' ')
		}
		buf.WriteString(sentence)
	}
	flush()

	return chunks
}
