// Package vector provides append-only vector indexes with inner-product search.
package vector

import "context"

// VectorIndex stores vectors under string IDs and returns the nearest by inner product.
// Vectors are expected to be L2-normalised so scores equal cosine similarity.
// Entries are never removed; a changed corpus is indexed into a new instance.
type VectorIndex interface {
	Add(ctx context.Context, ids []string, vectors [][]float32) error
	// Search returns at most k results by descending score. Equal scores keep insertion order.
	Search(ctx context.Context, query []float32, k int) ([]*VectorResult, error)
	// Save writes the index under the path prefix; each implementation adds its own extension.
	Save(path string) error
	// Load replaces the contents with the index saved under the path prefix.
	Load(path string) error
	Size() int
	Dimensions() int
	Type() string
	Close() error
}

// VectorResult is a single search hit. ID is the chunk ID.
type VectorResult struct {
	ID    string
	Score float64
}
