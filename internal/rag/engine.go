package rag

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/Terpedia/functional-flavors/internal/contextutil"
	"github.com/Terpedia/functional-flavors/internal/indexer"
)

const (
	// DefaultK is the number of top-scoring chunks assembled into context.
	DefaultK = 5
	// DefaultContextMaxLen bounds the assembled context payload in characters.
	DefaultContextMaxLen = 1800

	contextSeparator = "\n\n---\n\n"
)

// Engine coordinates index loading, scoring and context assembly.
type Engine interface {
	// Retrieve ranks the index against the query and assembles bounded context
	// from the top results. It never fails: when every index source fails the
	// result is empty and marked degraded.
	Retrieve(ctx context.Context, query string) Result
	// Reload discards the cached index so the next query reloads the ladder.
	Reload()
}

// engine implements Engine. The loaded index is read-only shared state; it is
// acquired at most once per process (until Reload) and swapped atomically.
type engine struct {
	sources       []IndexSource
	strategy      ScoringStrategy
	keyword       ScoringStrategy
	topK          int
	contextMaxLen int

	mu       sync.Mutex
	index    *indexer.Index
	degraded bool
	loaded   bool
}

// Option configures the engine.
type Option func(*engine)

// WithStrategy selects the primary scoring strategy. The keyword scorer
// remains the fallback for any strategy error.
func WithStrategy(s ScoringStrategy) Option {
	return func(e *engine) { e.strategy = s }
}

// WithTopK overrides the number of chunks selected for context.
func WithTopK(k int) Option {
	return func(e *engine) {
		if k > 0 {
			e.topK = k
		}
	}
}

// WithContextMaxLen overrides the context length bound.
func WithContextMaxLen(n int) Option {
	return func(e *engine) {
		if n > 0 {
			e.contextMaxLen = n
		}
	}
}

// NewEngine creates a retrieval engine over the given index source ladder.
// Sources are attempted in order until one loads; when all fail the engine
// operates on an empty index rather than erroring.
func NewEngine(sources []IndexSource, opts ...Option) Engine {
	e := &engine{
		sources:       sources,
		keyword:       NewKeywordScorer(),
		topK:          DefaultK,
		contextMaxLen: DefaultContextMaxLen,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.strategy == nil {
		e.strategy = e.keyword
	}
	return e
}

// loadIndex walks the fallback ladder once and caches the outcome.
func (e *engine) loadIndex(ctx context.Context) (*indexer.Index, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.loaded {
		return e.index, e.degraded
	}

	logger := contextutil.LoggerFromContext(ctx)

	for _, source := range e.sources {
		ix, err := source.Load(ctx)
		if err != nil {
			logger.WarnContext(ctx, "index source failed, descending fallback ladder",
				"source", source.Name(), "error", err)
			continue
		}
		logger.InfoContext(ctx, "index loaded",
			"source", source.Name(), "chunks", len(ix.Chunks), "pages", ix.TotalPages)
		e.index = ix
		e.degraded = false
		e.loaded = true
		return e.index, e.degraded
	}

	// Terminal tier: empty index. Retrieval proceeds with zero context.
	logger.WarnContext(ctx, "all index sources failed, operating without knowledge base")
	e.index = &indexer.Index{Version: "empty", BuildTimestamp: time.Now().UTC()}
	e.degraded = true
	e.loaded = true
	return e.index, e.degraded
}

// Reload discards the cached index.
func (e *engine) Reload() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.loaded = false
	e.index = nil
	e.degraded = false
}

// Retrieve implements Engine. Querying never mutates stored chunks.
func (e *engine) Retrieve(ctx context.Context, query string) Result {
	logger := contextutil.LoggerFromContext(ctx)

	ix, degraded := e.loadIndex(ctx)
	if ix.Empty() {
		return Result{Degraded: degraded}
	}

	ranked, err := e.strategy.Score(ctx, query, ix.Chunks)
	if err != nil {
		logger.WarnContext(ctx, "scoring strategy failed, falling back to keyword scorer",
			"strategy", e.strategy.Name(), "error", err)
		ranked, _ = e.keyword.Score(ctx, query, ix.Chunks)
	}

	if len(ranked) > e.topK {
		ranked = ranked[:e.topK]
	}

	contextText, cited := e.assembleContext(ranked)

	logger.InfoContext(ctx, "retrieval completed",
		"query_length", len(query),
		"strategy", e.strategy.Name(),
		"results", len(ranked),
		"context_length", len(contextText),
	)

	return Result{
		ContextText: contextText,
		Chunks:      cited,
		Citations:   citations(cited),
		Degraded:    degraded,
	}
}

// assembleContext concatenates top passages with a separator up to the length
// bound. A chunk whose text is wholly contained in an already-selected chunk
// is skipped: whole-page and section chunk populations overlap by design, and
// this removes the worst double-counting while keeping context diverse.
func (e *engine) assembleContext(ranked []ScoredChunk) (string, []ScoredChunk) {
	var b strings.Builder
	var cited []ScoredChunk

	for _, sc := range ranked {
		if containedIn(sc.Chunk.Text, cited) {
			continue
		}
		addition := len(sc.Chunk.Text)
		if b.Len() > 0 {
			addition += len(contextSeparator)
		}
		if b.Len() > 0 && b.Len()+addition > e.contextMaxLen {
			break
		}
		if b.Len() > 0 {
			b.WriteString(contextSeparator)
		}
		b.WriteString(sc.Chunk.Text)
		cited = append(cited, sc)
	}

	return b.String(), cited
}

func containedIn(text string, selected []ScoredChunk) bool {
	for _, sc := range selected {
		if strings.Contains(sc.Chunk.Text, text) || strings.Contains(text, sc.Chunk.Text) {
			return true
		}
	}
	return false
}

// citations lists contributing pages in rank order, without duplicates.
func citations(cited []ScoredChunk) []Citation {
	seen := make(map[string]bool, len(cited))
	var out []Citation
	for _, sc := range cited {
		if seen[sc.Chunk.PageURL] {
			continue
		}
		seen[sc.Chunk.PageURL] = true
		out = append(out, Citation{Title: sc.Chunk.PageTitle, URL: sc.Chunk.PageURL})
	}
	return out
}

func splitWords(s string) []string {
	return strings.Fields(s)
}
