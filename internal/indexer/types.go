package indexer

import "time"

// Chunk is the atomic retrievable unit of site content.
// Chunks are immutable once built and are never mutated at query time.
type Chunk struct {
	ID             string    `json:"id"`
	PageTitle      string    `json:"pageTitle"`
	PageURL        string    `json:"pageUrl"`
	SectionHeading string    `json:"sectionHeading,omitempty"` // empty when derived from whole-page text
	Text           string    `json:"text"`
	WordCount      int       `json:"wordCount"`
	Ordinal        int       `json:"ordinal"` // position within the source page, starting at 0
	Embedding      []float32 `json:"-"`       // present only when semantic scoring is enabled
}

// Index is the full persisted chunk collection plus build metadata.
// It is read-only at query time and replaced wholesale on rebuild.
type Index struct {
	Version        string    `json:"version"`
	BuildTimestamp time.Time `json:"buildDate"`
	TotalPages     int       `json:"totalPages"`
	TotalChunks    int       `json:"totalChunks"`
	EmbeddingModel string    `json:"embeddingModel,omitempty"`
	Chunks         []Chunk   `json:"chunks"`
}

// Empty reports whether the index holds no chunks.
func (ix *Index) Empty() bool {
	return ix == nil || len(ix.Chunks) == 0
}
