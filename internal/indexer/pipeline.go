package indexer

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Terpedia/functional-flavors/internal/contextutil"
	"github.com/Terpedia/functional-flavors/internal/extractor"
	"github.com/Terpedia/functional-flavors/internal/llm"
	"github.com/Terpedia/functional-flavors/internal/storage"
	"github.com/Terpedia/functional-flavors/internal/vectorstore"
)

const indexVersion = "1"

// embedBatchSize bounds one embeddings API call.
const embedBatchSize = 16

// Pipeline builds the chunk index from the site's content directory and
// persists it. Embedding and artifact writing are optional stages.
type Pipeline struct {
	extractor    *extractor.Extractor
	store        storage.IndexStore
	embedder     *llm.EmbeddingsClient    // nil disables embedding
	vectors      vectorstore.VectorStore  // nil disables vector upsert
	collection   string
	contentDir   string
	artifactPath string // "" disables artifact writing
}

// NewPipeline creates an index build pipeline. embedder and vectors may be nil;
// the index is fully usable without embeddings.
func NewPipeline(
	contentDir string,
	store storage.IndexStore,
	embedder *llm.EmbeddingsClient,
	vectors vectorstore.VectorStore,
	collection string,
	artifactPath string,
) *Pipeline {
	return &Pipeline{
		extractor:    extractor.New(),
		store:        store,
		embedder:     embedder,
		vectors:      vectors,
		collection:   collection,
		contentDir:   contentDir,
		artifactPath: artifactPath,
	}
}

// BuildAll extracts every page under the content directory, chunks it and
// replaces the persisted index atomically. Individual page failures are
// skipped, never fatal to the build.
func (p *Pipeline) BuildAll(ctx context.Context) (*Stats, error) {
	logger := contextutil.LoggerFromContext(ctx)
	stats := &Stats{Started: time.Now()}

	files, err := extractor.ScanContentDir(ctx, p.contentDir)
	if err != nil {
		return stats, fmt.Errorf("content scan failed: %w", err)
	}

	var pages []storage.PageRecord
	var records []storage.ChunkRecord
	var chunks []Chunk

	for _, file := range files {
		markup, err := os.ReadFile(file.AbsPath)
		if err != nil {
			logger.WarnContext(ctx, "skipping unreadable page", "path", file.RelPath, "error", err)
			stats.PagesSkipped++
			continue
		}

		page, err := p.extractor.ExtractPage(string(markup), file.URL)
		if err != nil {
			logger.WarnContext(ctx, "skipping unparseable page", "path", file.RelPath, "error", err)
			stats.PagesSkipped++
			continue
		}

		pages = append(pages, storage.PageRecord{
			URL:       page.URL,
			Title:     page.Title,
			WordCount: page.WordCount(),
		})
		stats.Pages++

		pageChunks := BuildPageChunks(page)
		chunks = append(chunks, pageChunks...)
		for _, c := range pageChunks {
			records = append(records, storage.ChunkRecord{
				ID:             c.ID,
				PageURL:        c.PageURL,
				PageTitle:      c.PageTitle,
				SectionHeading: c.SectionHeading,
				Text:           c.Text,
				WordCount:      c.WordCount,
				Ordinal:        c.Ordinal,
			})
		}
	}
	stats.Chunks = len(chunks)

	meta := storage.IndexMeta{
		Version:        indexVersion,
		BuildTimestamp: time.Now().UTC(),
		TotalPages:     stats.Pages,
		TotalChunks:    stats.Chunks,
	}
	if p.embedder != nil {
		meta.EmbeddingModel = p.embedder.Model
	}

	if err := p.store.ReplaceAll(ctx, pages, records, meta); err != nil {
		return stats, fmt.Errorf("failed to persist index: %w", err)
	}

	// Optional stages. Their failures degrade, never abort: the keyword index
	// is already committed and queryable.
	if p.embedder != nil && p.vectors != nil {
		if err := p.embedAndUpsert(ctx, chunks); err != nil {
			logger.WarnContext(ctx, "embedding stage failed, semantic scoring unavailable", "error", err)
		} else {
			stats.Embedded = len(chunks)
		}
	}

	if p.artifactPath != "" {
		if err := p.writeArtifact(meta, chunks); err != nil {
			logger.WarnContext(ctx, "artifact write failed", "path", p.artifactPath, "error", err)
		}
	}

	stats.Duration = time.Since(stats.Started)
	return stats, nil
}

// BuildPageChunks produces both chunk populations for one page: whole-page
// chunks (continuity across section boundaries) and section chunks (precise
// heading attribution). Both are retained side by side in the index.
func BuildPageChunks(page *extractor.Page) []Chunk {
	var chunks []Chunk
	ordinal := 0

	add := func(text, heading string) {
		chunks = append(chunks, Chunk{
			ID:             uuid.NewString(),
			PageTitle:      page.Title,
			PageURL:        page.URL,
			SectionHeading: heading,
			Text:           text,
			WordCount:      len(strings.Fields(text)),
			Ordinal:        ordinal,
		})
		ordinal++
	}

	for _, text := range ChunkText(page.FullText, PageChunkTarget) {
		add(text, "")
	}
	for _, section := range page.Sections {
		for _, text := range ChunkText(section.Text, SectionChunkTarget) {
			add(text, section.Heading)
		}
	}

	return chunks
}

// embedAndUpsert generates embeddings in batches and upserts them to the
// vector store keyed by chunk ID.
func (p *Pipeline) embedAndUpsert(ctx context.Context, chunks []Chunk) error {
	for start := 0; start < len(chunks); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Text
		}

		vectors, err := p.embedder.EmbedTexts(ctx, texts)
		if err != nil {
			return fmt.Errorf("failed to embed batch at %d: %w", start, err)
		}

		points := make([]vectorstore.Point, len(batch))
		for i, c := range batch {
			points[i] = vectorstore.Point{
				ID:  c.ID,
				Vec: vectors[i],
				Meta: map[string]any{
					"page_title":      c.PageTitle,
					"page_url":        c.PageURL,
					"section_heading": c.SectionHeading,
				},
			}
		}

		if err := p.vectors.Upsert(ctx, p.collection, points); err != nil {
			return fmt.Errorf("failed to upsert batch at %d: %w", start, err)
		}
	}
	return nil
}

// writeArtifact serializes the index to the JSON artifact shape and renames it
// into place so readers never see a partial file.
func (p *Pipeline) writeArtifact(meta storage.IndexMeta, chunks []Chunk) error {
	artifact := Index{
		Version:        meta.Version,
		BuildTimestamp: meta.BuildTimestamp,
		TotalPages:     meta.TotalPages,
		TotalChunks:    meta.TotalChunks,
		EmbeddingModel: meta.EmbeddingModel,
		Chunks:         chunks,
	}

	raw, err := json.MarshalIndent(artifact, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal artifact: %w", err)
	}

	tmp := p.artifactPath + ".tmp"
	if err := os.MkdirAll(filepath.Dir(p.artifactPath), 0755); err != nil {
		return fmt.Errorf("failed to create artifact directory: %w", err)
	}
	if err := os.WriteFile(tmp, raw, 0644); err != nil {
		return fmt.Errorf("failed to write artifact: %w", err)
	}
	if err := os.Rename(tmp, p.artifactPath); err != nil {
		return fmt.Errorf("failed to move artifact into place: %w", err)
	}
	return nil
}
