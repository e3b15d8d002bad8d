package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/Terpedia/functional-flavors/internal/indexer"
)

type fakeSource struct {
	name  string
	index *indexer.Index
	err   error
	calls int
}

func (s *fakeSource) Name() string { return s.name }

func (s *fakeSource) Load(ctx context.Context) (*indexer.Index, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.index, nil
}

type fakeStrategy struct {
	name   string
	ranked []ScoredChunk
	err    error
}

func (s *fakeStrategy) Name() string { return s.name }

func (s *fakeStrategy) Score(ctx context.Context, query string, chunks []indexer.Chunk) ([]ScoredChunk, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.ranked, nil
}

func testIndex(chunks ...indexer.Chunk) *indexer.Index {
	return &indexer.Index{
		Version:        "test",
		BuildTimestamp: time.Now().UTC(),
		TotalPages:     1,
		TotalChunks:    len(chunks),
		Chunks:         chunks,
	}
}

func TestEngine_FallbackLadder(t *testing.T) {
	chunk := indexer.Chunk{
		ID: "c1", PageTitle: "Pinene", PageURL: "/pinene.html",
		Text: "Pinene is a bicyclic monoterpene found in conifer resin and many herbs.",
	}

	first := &fakeSource{name: "first", err: errors.New("unavailable")}
	second := &fakeSource{name: "second", index: testIndex(chunk)}
	third := &fakeSource{name: "third", index: testIndex()}

	e := NewEngine([]IndexSource{first, second, third})
	result := e.Retrieve(context.Background(), "pinene")

	if result.Degraded {
		t.Error("Degraded = true, want false when a source succeeds")
	}
	if len(result.Chunks) != 1 || result.Chunks[0].Chunk.ID != "c1" {
		t.Fatalf("Chunks = %+v, want the one from the second source", result.Chunks)
	}
	if third.calls != 0 {
		t.Error("ladder descended past a successful source")
	}

	// Cached: a second retrieve must not reload.
	_ = e.Retrieve(context.Background(), "pinene")
	if first.calls != 1 || second.calls != 1 {
		t.Errorf("sources reloaded on cached retrieve: first=%d second=%d", first.calls, second.calls)
	}
}

func TestEngine_AllSourcesFail(t *testing.T) {
	e := NewEngine([]IndexSource{
		&fakeSource{name: "a", err: errors.New("down")},
		&fakeSource{name: "b", err: errors.New("also down")},
	})

	result := e.Retrieve(context.Background(), "anything")
	if !result.Degraded {
		t.Error("Degraded = false, want true when every source fails")
	}
	if len(result.Chunks) != 0 || result.ContextText != "" {
		t.Errorf("expected empty result, got %+v", result)
	}
}

func TestEngine_Reload(t *testing.T) {
	src := &fakeSource{name: "only", index: testIndex()}
	e := NewEngine([]IndexSource{src})

	_ = e.Retrieve(context.Background(), "q")
	e.Reload()
	_ = e.Retrieve(context.Background(), "q")

	if src.calls != 2 {
		t.Errorf("source loaded %d times, want 2 after Reload", src.calls)
	}
}

func TestEngine_StrategyFallback(t *testing.T) {
	chunk := indexer.Chunk{
		ID: "c1", PageTitle: "Myrcene", PageURL: "/myrcene.html",
		Text: "Myrcene is the most common terpene found in modern cannabis flower samples.",
	}
	e := NewEngine(
		[]IndexSource{&fakeSource{name: "s", index: testIndex(chunk)}},
		WithStrategy(&fakeStrategy{name: "broken", err: errors.New("backend down")}),
	)

	result := e.Retrieve(context.Background(), "myrcene")
	if len(result.Chunks) != 1 {
		t.Fatalf("got %d chunks, want 1 via keyword fallback", len(result.Chunks))
	}
}

func TestEngine_TopK(t *testing.T) {
	var chunks []indexer.Chunk
	for i := 0; i < 10; i++ {
		chunks = append(chunks, indexer.Chunk{
			ID:      fmt.Sprintf("c%d", i),
			PageURL: fmt.Sprintf("/p%d.html", i),
			Text:    fmt.Sprintf("Camphene appears in source number %d with entirely distinct surrounding words here.", i),
			Ordinal: 5,
		})
	}

	e := NewEngine(
		[]IndexSource{&fakeSource{name: "s", index: testIndex(chunks...)}},
		WithTopK(3),
		WithContextMaxLen(100000),
	)

	result := e.Retrieve(context.Background(), "camphene")
	if len(result.Chunks) != 3 {
		t.Errorf("got %d chunks, want 3", len(result.Chunks))
	}
}

func TestEngine_ContextLengthBound(t *testing.T) {
	long := strings.Repeat("Geraniol smells of roses and is used widely. ", 20) // ~900 chars
	chunks := []indexer.Chunk{
		{ID: "a", PageURL: "/a", Text: "Geraniol alpha. " + long, Ordinal: 5},
		{ID: "b", PageURL: "/b", Text: "Geraniol beta. " + long, Ordinal: 5},
		{ID: "c", PageURL: "/c", Text: "Geraniol gamma. " + long, Ordinal: 5},
	}

	e := NewEngine(
		[]IndexSource{&fakeSource{name: "s", index: testIndex(chunks...)}},
		WithContextMaxLen(1000),
	)

	result := e.Retrieve(context.Background(), "geraniol")
	if len(result.ContextText) > 1000+len(chunks[0].Text) {
		t.Errorf("context length %d exceeds bound by more than one chunk", len(result.ContextText))
	}
	if len(result.Chunks) != 1 {
		t.Errorf("got %d chunks in context, want 1 under tight bound", len(result.Chunks))
	}
}

func TestEngine_ContextDedupe(t *testing.T) {
	section := "Humulene contributes the earthy hop aroma characteristic of many beer styles."
	page := "Overview paragraph first. " + section + " Closing paragraph afterwards."

	ranked := []ScoredChunk{
		{Chunk: indexer.Chunk{ID: "page", PageURL: "/h", Text: page}, Score: 10},
		{Chunk: indexer.Chunk{ID: "section", PageURL: "/h", Text: section}, Score: 8},
	}
	e := NewEngine(
		[]IndexSource{&fakeSource{name: "s", index: testIndex(ranked[0].Chunk, ranked[1].Chunk)}},
		WithStrategy(&fakeStrategy{name: "fixed", ranked: ranked}),
	)

	result := e.Retrieve(context.Background(), "humulene")
	if len(result.Chunks) != 1 {
		t.Fatalf("got %d chunks, want 1 after containment dedupe", len(result.Chunks))
	}
	if result.Chunks[0].Chunk.ID != "page" {
		t.Errorf("kept chunk %q, want the higher-ranked containing chunk", result.Chunks[0].Chunk.ID)
	}
	if strings.Count(result.ContextText, section) != 1 {
		t.Error("section text duplicated in assembled context")
	}
}

func TestEngine_Citations(t *testing.T) {
	ranked := []ScoredChunk{
		{Chunk: indexer.Chunk{ID: "1", PageTitle: "Limonene", PageURL: "/limonene", Text: "Limonene body one with plenty of words."}, Score: 5},
		{Chunk: indexer.Chunk{ID: "2", PageTitle: "Limonene", PageURL: "/limonene", Text: "A different limonene passage, not overlapping the first."}, Score: 4},
		{Chunk: indexer.Chunk{ID: "3", PageTitle: "Pinene", PageURL: "/pinene", Text: "Pinene passage with its own content entirely."}, Score: 3},
	}
	e := NewEngine(
		[]IndexSource{&fakeSource{name: "s", index: testIndex(ranked[0].Chunk, ranked[1].Chunk, ranked[2].Chunk)}},
		WithStrategy(&fakeStrategy{name: "fixed", ranked: ranked}),
	)

	result := e.Retrieve(context.Background(), "q")
	want := []Citation{
		{Title: "Limonene", URL: "/limonene"},
		{Title: "Pinene", URL: "/pinene"},
	}
	if len(result.Citations) != len(want) {
		t.Fatalf("Citations = %+v, want %+v", result.Citations, want)
	}
	for i := range want {
		if result.Citations[i] != want[i] {
			t.Errorf("Citations[%d] = %+v, want %+v", i, result.Citations[i], want[i])
		}
	}
}
