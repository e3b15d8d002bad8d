package rag

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/Terpedia/functional-flavors/internal/indexer"
)

// Scoring weights. Heuristic defaults, tuneable rather than contractual: the
// exact-phrase bonus dominates ranking when a user's phrasing matches source
// prose, heading/title hits count more than body frequency alone, and the
// leading-chunk bonus is small enough to never override a genuine match.
const (
	phraseBonus     = 15.0
	wordWeight      = 1.0
	headingBonus    = 3.0
	titleBonus      = 2.0
	leadChunkBonus  = 0.25
	leadChunkWindow = 2 // chunks with ordinal < this get the lead bonus

	// minTokenLen excludes short noise tokens from per-keyword scoring.
	// They still participate in exact-phrase matching.
	minTokenLen = 3
)

// KeywordScorer is the default, always-available relevance strategy.
// Scores are deterministic and explainable: phrase bonus + keyword counts +
// metadata bonuses + a small position bonus.
type KeywordScorer struct{}

// NewKeywordScorer creates the default keyword scoring strategy.
func NewKeywordScorer() *KeywordScorer {
	return &KeywordScorer{}
}

// Name implements ScoringStrategy.
func (s *KeywordScorer) Name() string { return "keyword" }

// Score ranks chunks by lexical relevance to the query. Chunks scoring 0 are
// excluded. The sort is stable: ties keep original chunk order.
func (s *KeywordScorer) Score(_ context.Context, query string, chunks []indexer.Chunk) ([]ScoredChunk, error) {
	phrase := strings.ToLower(strings.TrimSpace(query))
	tokens := QueryTokens(query)
	if phrase == "" {
		return nil, nil
	}

	matchers := make([]*regexp.Regexp, len(tokens))
	for i, token := range tokens {
		// Word-boundary matching: "cat" must not match "category".
		matchers[i] = regexp.MustCompile(`\b` + regexp.QuoteMeta(token) + `\b`)
	}

	var ranked []ScoredChunk
	for _, chunk := range chunks {
		text := strings.ToLower(chunk.Text)
		heading := strings.ToLower(chunk.SectionHeading)
		title := strings.ToLower(chunk.PageTitle)

		score := 0.0
		if strings.Contains(text, phrase) {
			score += phraseBonus
		}
		for i := range tokens {
			if count := len(matchers[i].FindAllStringIndex(text, -1)); count > 0 {
				score += float64(count) * wordWeight
			}
			if heading != "" && matchers[i].MatchString(heading) {
				score += headingBonus
			}
			if matchers[i].MatchString(title) {
				score += titleBonus
			}
		}
		if score > 0 && chunk.Ordinal < leadChunkWindow {
			score += leadChunkBonus
		}

		if score > 0 {
			ranked = append(ranked, ScoredChunk{Chunk: chunk, Score: score})
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})

	return ranked, nil
}

// QueryTokens lower-cases the query and returns its words longer than two
// characters; shorter tokens are treated as noise for keyword scoring.
func QueryTokens(query string) []string {
	var b strings.Builder
	b.Grow(len(query))
	for _, r := range strings.ToLower(query) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}

	var tokens []string
	for _, field := range strings.Fields(b.String()) {
		if len(field) >= minTokenLen {
			tokens = append(tokens, field)
		}
	}
	return tokens
}
