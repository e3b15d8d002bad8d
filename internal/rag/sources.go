package rag

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/Terpedia/functional-flavors/internal/extractor"
	"github.com/Terpedia/functional-flavors/internal/indexer"
	"github.com/Terpedia/functional-flavors/internal/storage"
)

// artifactFile is the wire shape of the persisted index artifact. The optional
// embeddings structure is keyed by chunk id.
type artifactFile struct {
	indexer.Index
	Embeddings map[string][]float32 `json:"embeddings,omitempty"`
}

// ArtifactSource loads the index from a serialized artifact, fetched by URL or
// read from a local file.
type ArtifactSource struct {
	URL    string
	Path   string
	client *http.Client
}

// NewArtifactSource creates an artifact index source. Either url or path may
// be empty; url takes precedence when both are set.
func NewArtifactSource(url, path string) *ArtifactSource {
	return &ArtifactSource{
		URL:    url,
		Path:   path,
		client: &http.Client{Timeout: 15 * time.Second},
	}
}

// Name implements IndexSource.
func (s *ArtifactSource) Name() string { return "artifact" }

// Load implements IndexSource.
func (s *ArtifactSource) Load(ctx context.Context) (*indexer.Index, error) {
	var raw []byte

	switch {
	case s.URL != "":
		req, err := http.NewRequestWithContext(ctx, "GET", s.URL, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		resp, err := s.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch index artifact: %w", err)
		}
		defer func() {
			_ = resp.Body.Close()
		}()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("bad status %d fetching index artifact", resp.StatusCode)
		}
		raw, err = io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to read index artifact: %w", err)
		}
	case s.Path != "":
		var err error
		raw, err = os.ReadFile(s.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to read index artifact file: %w", err)
		}
	default:
		return nil, errors.New("no artifact location configured")
	}

	var file artifactFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("failed to parse index artifact: %w", err)
	}

	// Artifact entries are only guaranteed page metadata plus text; fill in
	// identifiers and counts when absent.
	for i := range file.Chunks {
		chunk := &file.Chunks[i]
		if chunk.ID == "" {
			chunk.ID = fmt.Sprintf("%s#%d", chunk.PageURL, i)
		}
		if chunk.WordCount == 0 {
			chunk.WordCount = len(splitWords(chunk.Text))
		}
		if vec, ok := file.Embeddings[chunk.ID]; ok {
			chunk.Embedding = vec
		}
	}

	ix := file.Index
	return &ix, nil
}

// StoreSource loads the index from SQLite persistence.
type StoreSource struct {
	store storage.IndexStore
}

// NewStoreSource creates a store-backed index source.
func NewStoreSource(store storage.IndexStore) *StoreSource {
	return &StoreSource{store: store}
}

// Name implements IndexSource.
func (s *StoreSource) Name() string { return "store" }

// Load implements IndexSource.
func (s *StoreSource) Load(ctx context.Context) (*indexer.Index, error) {
	meta, err := s.store.Meta(ctx)
	if err != nil {
		return nil, fmt.Errorf("no persisted index: %w", err)
	}

	records, err := s.store.ListChunks(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load chunks: %w", err)
	}

	chunks := make([]indexer.Chunk, len(records))
	for i, rec := range records {
		chunks[i] = indexer.Chunk{
			ID:             rec.ID,
			PageTitle:      rec.PageTitle,
			PageURL:        rec.PageURL,
			SectionHeading: rec.SectionHeading,
			Text:           rec.Text,
			WordCount:      rec.WordCount,
			Ordinal:        rec.Ordinal,
		}
	}

	return &indexer.Index{
		Version:        meta.Version,
		BuildTimestamp: meta.BuildTimestamp,
		TotalPages:     meta.TotalPages,
		TotalChunks:    meta.TotalChunks,
		EmbeddingModel: meta.EmbeddingModel,
		Chunks:         chunks,
	}, nil
}

// PageSource improvises a single-page index by fetching and extracting the
// currently displayed page. It is the last resort before the empty index.
type PageSource struct {
	pageURL   string
	extractor *extractor.Extractor
	client    *http.Client
}

// NewPageSource creates a live-page index source for the given absolute URL.
func NewPageSource(pageURL string) *PageSource {
	return &PageSource{
		pageURL:   pageURL,
		extractor: extractor.New(),
		client:    &http.Client{Timeout: 10 * time.Second},
	}
}

// Name implements IndexSource.
func (s *PageSource) Name() string { return "live-page" }

// Load implements IndexSource.
func (s *PageSource) Load(ctx context.Context) (*indexer.Index, error) {
	if s.pageURL == "" {
		return nil, errors.New("no page URL configured")
	}

	req, err := http.NewRequestWithContext(ctx, "GET", s.pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch page: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("bad status %d fetching page", resp.StatusCode)
	}

	markup, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read page: %w", err)
	}

	page, err := s.extractor.ExtractPage(string(markup), s.pageURL)
	if err != nil {
		return nil, fmt.Errorf("failed to extract page: %w", err)
	}

	chunks := indexer.BuildPageChunks(page)
	return &indexer.Index{
		Version:        "live",
		BuildTimestamp: time.Now().UTC(),
		TotalPages:     1,
		TotalChunks:    len(chunks),
		Chunks:         chunks,
	}, nil
}
