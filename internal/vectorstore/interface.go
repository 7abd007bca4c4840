package vectorstore

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_vector_store.go -package=mocks docqa/internal/vectorstore VectorStore

import (
	"context"
	"errors"
)

// ErrInvalidQuery marks search arguments the store rejects outright; retrying cannot help.
var ErrInvalidQuery = errors.New("invalid vector query")

// Point represents a chunk embedding with its metadata payload.
type Point struct {
	ID   string // chunk_id
	Vec  []float32
	Meta map[string]any
}

// SearchResult represents a search result from vector search.
type SearchResult struct {
	ID    string // chunk_id
	Score float32
	Meta  map[string]any
}

// VectorStore defines the interface for vector storage operations.
type VectorStore interface {
	// Upsert inserts or updates points in the collection. Idempotent on Point.ID.
	Upsert(ctx context.Context, collection string, points []Point) error

	// Search returns at most k results sorted by descending score.
	// filters holds exact-match conditions; an unsupported value type is an error.
	Search(ctx context.Context, collection string, query []float32, k int, filters map[string]any) ([]SearchResult, error)

	// Delete removes points by their chunk ids.
	Delete(ctx context.Context, collection string, ids []string) error

	// CollectionExists reports whether the collection has been created.
	CollectionExists(ctx context.Context, collection string) (bool, error)
}
