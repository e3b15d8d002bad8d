package storage

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_index_store.go -package=mocks github.com/Terpedia/functional-flavors/internal/storage IndexStore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Terpedia/functional-flavors/internal/contextutil"
)

// TextMatch is one hit from the full-text index. Rank is the bm25 value
// (lower is more relevant).
type TextMatch struct {
	ChunkID string
	Rank    float64
}

// IndexStore defines the persistence operations for the chunk index.
type IndexStore interface {
	// ReplaceAll atomically replaces the stored index with a new build.
	// Readers never observe a partial or interleaved version.
	ReplaceAll(ctx context.Context, pages []PageRecord, chunks []ChunkRecord, meta IndexMeta) error
	// ListChunks returns all stored chunks ordered by page and ordinal.
	ListChunks(ctx context.Context) ([]ChunkRecord, error)
	// Meta returns the stored build metadata. Returns ErrNotFound if no index
	// has been persisted yet.
	Meta(ctx context.Context) (*IndexMeta, error)
	// SearchText ranks chunks with the FTS index's native relevance function.
	// The match expression uses FTS5 query syntax. Errors (including a missing
	// FTS table) are surfaced so the caller can fall back to keyword scoring.
	SearchText(ctx context.Context, match string, k int) ([]TextMatch, error)
}

// IndexRepo provides SQLite-backed index persistence.
// It implements the IndexStore interface.
type IndexRepo struct {
	db *sql.DB
}

// NewIndexRepo creates a new IndexRepo.
func NewIndexRepo(db *sql.DB) *IndexRepo {
	return &IndexRepo{db: db}
}

// ReplaceAll atomically replaces pages, chunks and metadata in one transaction.
// The FTS table is rebuilt best-effort afterwards; an FTS failure does not
// invalidate the committed index.
func (r *IndexRepo) ReplaceAll(ctx context.Context, pages []PageRecord, chunks []ChunkRecord, meta IndexMeta) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, "DELETE FROM chunks"); err != nil {
		return fmt.Errorf("failed to clear chunks: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM pages"); err != nil {
		return fmt.Errorf("failed to clear pages: %w", err)
	}

	for _, page := range pages {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO pages (url, title, word_count) VALUES (?, ?, ?)",
			page.URL, page.Title, page.WordCount,
		); err != nil {
			return fmt.Errorf("failed to insert page %s: %w", page.URL, err)
		}
	}

	for _, chunk := range chunks {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO chunks (id, page_url, page_title, section_heading, text, word_count, ordinal)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			chunk.ID, chunk.PageURL, chunk.PageTitle, chunk.SectionHeading, chunk.Text, chunk.WordCount, chunk.Ordinal,
		); err != nil {
			return fmt.Errorf("failed to insert chunk %s: %w", chunk.ID, err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO index_meta (id, version, build_date, total_pages, total_chunks, embedding_model)
		 VALUES (1, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			version = excluded.version,
			build_date = excluded.build_date,
			total_pages = excluded.total_pages,
			total_chunks = excluded.total_chunks,
			embedding_model = excluded.embedding_model`,
		meta.Version, meta.BuildTimestamp, meta.TotalPages, meta.TotalChunks, meta.EmbeddingModel,
	); err != nil {
		return fmt.Errorf("failed to upsert index metadata: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit index replacement: %w", err)
	}

	r.rebuildFTS(ctx, chunks)

	return nil
}

// rebuildFTS repopulates the FTS table. Failure is logged, not returned:
// full-text scoring has a mandated keyword fallback.
func (r *IndexRepo) rebuildFTS(ctx context.Context, chunks []ChunkRecord) {
	logger := contextutil.LoggerFromContext(ctx)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		logger.WarnContext(ctx, "fts rebuild skipped", "error", err)
		return
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, "DELETE FROM chunks_fts"); err != nil {
		logger.WarnContext(ctx, "fts rebuild skipped", "error", err)
		return
	}
	for _, chunk := range chunks {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO chunks_fts (id, text) VALUES (?, ?)",
			chunk.ID, chunk.Text,
		); err != nil {
			logger.WarnContext(ctx, "fts rebuild aborted", "chunk_id", chunk.ID, "error", err)
			return
		}
	}
	if err := tx.Commit(); err != nil {
		logger.WarnContext(ctx, "fts rebuild commit failed", "error", err)
		return
	}
	logger.DebugContext(ctx, "fts index rebuilt", "chunks", len(chunks))
}

// ListChunks returns all stored chunks ordered by page URL and ordinal.
func (r *IndexRepo) ListChunks(ctx context.Context) ([]ChunkRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, page_url, page_title, section_heading, text, word_count, ordinal
		 FROM chunks ORDER BY page_url, ordinal`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var chunks []ChunkRecord
	for rows.Next() {
		var c ChunkRecord
		var heading sql.NullString
		if err := rows.Scan(&c.ID, &c.PageURL, &c.PageTitle, &heading, &c.Text, &c.WordCount, &c.Ordinal); err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		c.SectionHeading = heading.String
		chunks = append(chunks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return chunks, nil
}

// Meta returns the stored build metadata.
func (r *IndexRepo) Meta(ctx context.Context) (*IndexMeta, error) {
	var meta IndexMeta
	var model sql.NullString
	err := r.db.QueryRowContext(ctx,
		"SELECT version, build_date, total_pages, total_chunks, embedding_model FROM index_meta WHERE id = 1",
	).Scan(&meta.Version, &meta.BuildTimestamp, &meta.TotalPages, &meta.TotalChunks, &model)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query index metadata: %w", err)
	}
	meta.EmbeddingModel = model.String

	return &meta, nil
}

// SearchText ranks chunks via bm25 over the FTS table.
func (r *IndexRepo) SearchText(ctx context.Context, match string, k int) ([]TextMatch, error) {
	if k <= 0 {
		return nil, fmt.Errorf("k must be greater than 0")
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, bm25(chunks_fts) FROM chunks_fts WHERE chunks_fts MATCH ? ORDER BY bm25(chunks_fts) LIMIT ?`,
		match, k,
	)
	if err != nil {
		return nil, fmt.Errorf("fts query failed: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var matches []TextMatch
	for rows.Next() {
		var m TextMatch
		if err := rows.Scan(&m.ChunkID, &m.Rank); err != nil {
			return nil, fmt.Errorf("failed to scan fts match: %w", err)
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return matches, nil
}
