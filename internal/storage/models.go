package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// PageRecord is the persisted form of a processed page.
type PageRecord struct {
	URL       string
	Title     string
	WordCount int
}

// ChunkRecord is the persisted form of a chunk.
type ChunkRecord struct {
	ID             string
	PageURL        string
	PageTitle      string
	SectionHeading string
	Text           string
	WordCount      int
	Ordinal        int
}

// IndexMeta is the build metadata stored alongside the chunk collection.
type IndexMeta struct {
	Version        string
	BuildTimestamp time.Time
	TotalPages     int
	TotalChunks    int
	EmbeddingModel string
}

// Message is one turn of a query session.
type Message struct {
	Role string `json:"role"` // "user" or "assistant"
	Text string `json:"text"`
}
