package rag

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/Terpedia/functional-flavors/internal/contextutil"
	"github.com/Terpedia/functional-flavors/internal/indexer"
	"github.com/Terpedia/functional-flavors/internal/llm"
	"github.com/Terpedia/functional-flavors/internal/storage"
	"github.com/Terpedia/functional-flavors/internal/vectorstore"
)

// FTSStrategy ranks chunks via the SQLite full-text index (bm25). Query terms
// are OR-combined. Any indexing error falls back to the keyword scorer.
type FTSStrategy struct {
	store    storage.IndexStore
	fallback ScoringStrategy
}

// NewFTSStrategy creates a full-text scoring strategy with a keyword fallback.
func NewFTSStrategy(store storage.IndexStore, fallback ScoringStrategy) *FTSStrategy {
	return &FTSStrategy{store: store, fallback: fallback}
}

// Name implements ScoringStrategy.
func (s *FTSStrategy) Name() string { return "fts" }

// Score implements ScoringStrategy.
func (s *FTSStrategy) Score(ctx context.Context, query string, chunks []indexer.Chunk) ([]ScoredChunk, error) {
	logger := contextutil.LoggerFromContext(ctx)

	tokens := QueryTokens(query)
	if len(tokens) == 0 {
		return s.fallback.Score(ctx, query, chunks)
	}

	quoted := make([]string, len(tokens))
	for i, token := range tokens {
		quoted[i] = `"` + strings.ReplaceAll(token, `"`, ``) + `"`
	}
	match := strings.Join(quoted, " OR ")

	matches, err := s.store.SearchText(ctx, match, len(chunks))
	if err != nil {
		logger.WarnContext(ctx, "fts scoring failed, falling back to keyword scorer", "error", err)
		return s.fallback.Score(ctx, query, chunks)
	}

	byID := make(map[string]indexer.Chunk, len(chunks))
	order := make(map[string]int, len(chunks))
	for i, chunk := range chunks {
		byID[chunk.ID] = chunk
		order[chunk.ID] = i
	}

	var ranked []ScoredChunk
	for _, m := range matches {
		chunk, ok := byID[m.ChunkID]
		if !ok {
			continue
		}
		// bm25 values are lower-is-better; negate so higher score wins.
		ranked = append(ranked, ScoredChunk{Chunk: chunk, Score: -m.Rank})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return order[ranked[i].Chunk.ID] < order[ranked[j].Chunk.ID]
	})

	return ranked, nil
}

// SemanticStrategy ranks chunks by cosine similarity between a query embedding
// and chunk embeddings held in the vector store. It is an additive enhancement:
// the system functions fully without it, and the engine falls back to the
// default strategy on any error here.
type SemanticStrategy struct {
	embedder   *llm.EmbeddingsClient
	vectors    vectorstore.VectorStore
	collection string
}

// NewSemanticStrategy creates the optional embedding-based scoring strategy.
func NewSemanticStrategy(embedder *llm.EmbeddingsClient, vectors vectorstore.VectorStore, collection string) *SemanticStrategy {
	return &SemanticStrategy{embedder: embedder, vectors: vectors, collection: collection}
}

// Name implements ScoringStrategy.
func (s *SemanticStrategy) Name() string { return "semantic" }

// Score implements ScoringStrategy.
func (s *SemanticStrategy) Score(ctx context.Context, query string, chunks []indexer.Chunk) ([]ScoredChunk, error) {
	embeddings, err := s.embedder.EmbedTexts(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("no embedding returned for query")
	}

	limit := len(chunks)
	if limit == 0 {
		return nil, nil
	}
	results, err := s.vectors.Search(ctx, s.collection, embeddings[0], limit)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}

	byID := make(map[string]indexer.Chunk, len(chunks))
	order := make(map[string]int, len(chunks))
	for i, chunk := range chunks {
		byID[chunk.ID] = chunk
		order[chunk.ID] = i
	}

	var ranked []ScoredChunk
	for _, result := range results {
		chunk, ok := byID[result.PointID]
		if !ok {
			continue
		}
		ranked = append(ranked, ScoredChunk{Chunk: chunk, Score: float64(result.Score)})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return order[ranked[i].Chunk.ID] < order[ranked[j].Chunk.ID]
	})

	return ranked, nil
}
