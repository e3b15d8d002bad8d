package answer

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/Terpedia/functional-flavors/internal/contextutil"
	"github.com/Terpedia/functional-flavors/internal/indexer"
	"github.com/Terpedia/functional-flavors/internal/llm"
	"github.com/Terpedia/functional-flavors/internal/rag"
	"github.com/Terpedia/functional-flavors/internal/storage"
)

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_generator.go -package=mocks github.com/Terpedia/functional-flavors/internal/answer Generator

const (
	// historyCap bounds the conversation turns forwarded as context.
	historyCap = 10

	// excerptMaxLen bounds the chunk excerpt blended into templated answers.
	excerptMaxLen = 320

	// genericMaxSentences bounds the generic contextual answer.
	genericMaxSentences = 3

	noMatchMessage = "I couldn't find information about that in the article. " +
		"Try rephrasing your question, or browse the table of contents for related topics."

	degradedNotice = "Note: the knowledge base is currently unavailable, so I'm operating without article content. "

	browsePointer = "See the full article or the table of contents for more detail."
)

// Generator is the external generation endpoint from the assembler's
// perspective (consumer-first interface).
type Generator interface {
	Generate(ctx context.Context, req llm.GenerateRequest) (string, error)
}

// Request carries a query and its retrieval outcome into answer assembly.
type Request struct {
	Query     string
	Retrieved rag.Result
	History   []storage.Message
	PageURL   string
	PageTitle string
}

// Assembler maps (query, ranked chunks) to a user-facing answer string.
type Assembler struct {
	generator Generator // nil disables delegation
}

// NewAssembler creates an Assembler. generator may be nil, in which case
// answers are always produced locally.
func NewAssembler(generator Generator) *Assembler {
	return &Assembler{generator: generator}
}

// Answer produces the user-facing answer. Every path terminates in a
// non-empty string; no input causes an error or a crash.
//
// When the generation endpoint is configured it is preferred, with retrieved
// context as grounding; any endpoint failure falls back to local templating
// over the same context.
func (a *Assembler) Answer(ctx context.Context, req Request) string {
	logger := contextutil.LoggerFromContext(ctx)

	if a.generator != nil {
		reply, err := a.generator.Generate(ctx, llm.GenerateRequest{
			Message: req.Query,
			Context: llm.GenerateContext{
				ConversationHistory: lastTurns(req.History, historyCap),
				RAGContext:          req.Retrieved.ContextText,
				PageURL:             req.PageURL,
				PageTitle:           req.PageTitle,
			},
		})
		if err == nil && strings.TrimSpace(reply) != "" {
			return reply
		}
		logger.WarnContext(ctx, "generation endpoint failed, answering locally", "error", err)
	}

	if len(req.Retrieved.Chunks) > 0 {
		if in, ok := matchIntent(req.Query); ok {
			return a.templated(in, req.Retrieved)
		}
		return a.generic(req.Query, req.Retrieved)
	}

	if req.Retrieved.Degraded {
		return degradedNotice + noMatchMessage
	}
	return noMatchMessage
}

// templated blends the intent preamble with an excerpt of the best-matching
// chunk and a source citation.
func (a *Assembler) templated(in intent, retrieved rag.Result) string {
	top := retrieved.Chunks[0].Chunk

	var b strings.Builder
	b.WriteString(in.preamble)
	b.WriteString(" ")
	b.WriteString(excerpt(top.Text, excerptMaxLen))
	if top.PageTitle != "" {
		b.WriteString(fmt.Sprintf("\n\nSource: %s", top.PageTitle))
	}
	return b.String()
}

// generic extracts and ranks sentences within the combined context by keyword
// overlap with the query, sentence-granularity analog of chunk scoring.
func (a *Assembler) generic(query string, retrieved rag.Result) string {
	sentences := indexer.SplitSentences(retrieved.ContextText)
	if len(sentences) == 0 {
		return noMatchMessage
	}

	tokens := rag.QueryTokens(query)
	matchers := make([]*regexp.Regexp, len(tokens))
	for i, token := range tokens {
		matchers[i] = regexp.MustCompile(`\b` + regexp.QuoteMeta(token) + `\b`)
	}

	type scored struct {
		idx   int
		score int
	}
	ranked := make([]scored, 0, len(sentences))
	for i, sentence := range sentences {
		lower := strings.ToLower(sentence)
		score := 0
		for _, m := range matchers {
			score += len(m.FindAllStringIndex(lower, -1))
		}
		ranked = append(ranked, scored{idx: i, score: score})
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	n := genericMaxSentences
	if n > len(ranked) {
		n = len(ranked)
	}
	// Keep original order among the selected sentences.
	selected := make([]int, 0, n)
	for i := 0; i < n; i++ {
		selected = append(selected, ranked[i].idx)
	}
	sort.Ints(selected)

	var b strings.Builder
	for _, idx := range selected {
		if b.Len() > 0 {
			b.WriteString(" ")
		}
		b.WriteString(strings.TrimSpace(sentences[idx]))
	}
	b.WriteString("\n\n")
	b.WriteString(browsePointer)
	return b.String()
}

// excerpt truncates text at the last sentence boundary within max characters,
// falling back to a hard cut with an ellipsis.
func excerpt(text string, max int) string {
	if len(text) <= max {
		return text
	}
	cut := text[:max]
	if idx := strings.LastIndexAny(cut, ".!?"); idx > 0 {
		return cut[:idx+1]
	}
	return strings.TrimSpace(cut) + "…"
}

// lastTurns returns the most recent n turns.
func lastTurns(history []storage.Message, n int) []storage.Message {
	if len(history) <= n {
		return history
	}
	return history[len(history)-n:]
}
