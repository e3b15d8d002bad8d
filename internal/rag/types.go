package rag

import (
	"context"

	"github.com/Terpedia/functional-flavors/internal/indexer"
)

// ScoredChunk pairs a chunk with its relevance score for a query.
type ScoredChunk struct {
	Chunk indexer.Chunk
	Score float64
}

// ScoringStrategy ranks chunks against a query, descending by score with ties
// broken by original chunk order. Implementations must be deterministic for a
// fixed query and chunk set, and must never mutate the chunks.
type ScoringStrategy interface {
	Name() string
	Score(ctx context.Context, query string, chunks []indexer.Chunk) ([]ScoredChunk, error)
}

// IndexSource is one tier of the index fallback ladder.
type IndexSource interface {
	Name() string
	Load(ctx context.Context) (*indexer.Index, error)
}

// Citation identifies a source page that contributed retrieved context.
type Citation struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// Result is the outcome of one retrieval pass.
type Result struct {
	ContextText string
	Chunks      []ScoredChunk
	Citations   []Citation
	Degraded    bool // true when every index source failed and retrieval ran against an empty index
}
