package vectorstore

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_vector_store.go -package=mocks github.com/Terpedia/functional-flavors/internal/vectorstore VectorStore

import "context"

// Point represents a chunk embedding with metadata.
type Point struct {
	ID   string
	Vec  []float32
	Meta map[string]any
}

// SearchResult represents one hit of a similarity search.
type SearchResult struct {
	PointID string
	Score   float32
	Meta    map[string]any
}

// VectorStore defines the operations the semantic scoring strategy needs.
type VectorStore interface {
	// EnsureCollection creates the collection if missing and validates the
	// vector size otherwise.
	EnsureCollection(ctx context.Context, collection string, vectorSize int) error

	// Upsert inserts or updates points in the collection.
	Upsert(ctx context.Context, collection string, points []Point) error

	// Search performs a cosine similarity search.
	Search(ctx context.Context, collection string, query []float32, k int) ([]SearchResult, error)
}
