// Package storage persists chunk text and source metadata next to a vector index.
package storage

import (
	"context"
	"errors"

	"github.com/hyperjump/pdfqa/internal/models"
)

// ErrNotFound is returned when a requested chunk does not exist.
var ErrNotFound = errors.New("not found")

// SourceStat summarises one indexed source file.
type SourceStat struct {
	models.SourceFile
	Pages  int `json:"pages"`
	Chunks int `json:"chunks"`
}

// Storage defines chunk persistence operations. Chunks are written once at build time
// and read by ID at query time.
type Storage interface {
	// BatchCreateChunks inserts chunks in order. Insertion order is preserved by ListChunks.
	BatchCreateChunks(ctx context.Context, chunks []models.Chunk) error
	GetChunk(ctx context.Context, id string) (*models.Chunk, error)
	// GetChunks returns the chunks found for ids, keyed by ID. Missing IDs are absent from the map.
	GetChunks(ctx context.Context, ids []string) (map[string]*models.Chunk, error)
	ListChunks(ctx context.Context) ([]models.Chunk, error)

	BatchCreateSources(ctx context.Context, files []models.SourceFile) error
	ListSources(ctx context.Context) ([]SourceStat, error)

	CountChunks(ctx context.Context) (int64, error)
	Close() error
}
