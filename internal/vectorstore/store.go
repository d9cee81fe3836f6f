// Package vectorstore builds, persists, and queries the on-disk similarity index
// of document chunks.
//
// An index directory holds the vectors, a SQLite docstore with chunk text and
// source metadata, and a manifest naming the embedding model that produced it.
package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hyperjump/pdfqa/internal/embedding"
	"github.com/hyperjump/pdfqa/internal/models"
	"github.com/hyperjump/pdfqa/internal/storage"
	"github.com/hyperjump/pdfqa/internal/vector"
	"github.com/hyperjump/pdfqa/pkg/utils"
	"go.uber.org/zap"
)

// Files inside an index directory.
const (
	ManifestFile = "manifest.yaml"
	DocstoreFile = "docstore.db"
	vectorsBase  = "index"
)

var (
	// ErrNoValidChunks means every chunk was blank; nothing is written.
	ErrNoValidChunks = errors.New("no valid chunks to index")
	// ErrIndexNotFound means no index exists at the path.
	ErrIndexNotFound = errors.New("vector index not found")
	// ErrCorruptIndex means the index exists but cannot be read.
	ErrCorruptIndex = errors.New("vector index is unreadable")
	// ErrModelMismatch means the index was built by a different embedding model.
	ErrModelMismatch = errors.New("vector index was built with a different embedding model")
)

// Store is a loaded index: vectors in memory, chunk text in the docstore.
type Store struct {
	path     string
	manifest Manifest
	index    vector.VectorIndex
	docs     storage.Storage
	embedder embedding.Embedder
	logger   *zap.Logger
}

// Option configures Build and Load.
type Option func(*Store)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// Exists reports whether a complete index is present at path.
func Exists(path string) bool {
	info, err := os.Stat(filepath.Join(path, ManifestFile))
	return err == nil && info.Mode().IsRegular()
}

// Load opens the index at path for querying with emb. It fails with ErrIndexNotFound
// when nothing is there, ErrModelMismatch when emb is not the model that built it, and
// ErrCorruptIndex when any part cannot be read.
func Load(ctx context.Context, path string, emb embedding.Embedder, opts ...Option) (*Store, error) {
	s := &Store{path: path, embedder: emb}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = utils.OrNop(s.logger)

	m, err := ReadManifest(path)
	if err != nil {
		return nil, err
	}
	if m.EmbeddingModel != emb.ModelID() || m.Dimensions != emb.Dimensions() {
		return nil, fmt.Errorf("%w: index has %s (%d dims), embedder is %s (%d dims)",
			ErrModelMismatch, m.EmbeddingModel, m.Dimensions, emb.ModelID(), emb.Dimensions())
	}
	s.manifest = *m

	idx, err := vector.NewVectorIndex(m.IndexType, m.Dimensions)
	if err != nil {
		return nil, fmt.Errorf("create %s index: %w", m.IndexType, err)
	}
	if err := idx.Load(filepath.Join(path, vectorsBase)); err != nil {
		_ = idx.Close()
		return nil, fmt.Errorf("%w: %v", ErrCorruptIndex, err)
	}

	dbPath := filepath.Join(path, DocstoreFile)
	if _, err := os.Stat(dbPath); err != nil {
		_ = idx.Close()
		return nil, fmt.Errorf("%w: docstore: %v", ErrCorruptIndex, err)
	}
	docs, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		_ = idx.Close()
		return nil, fmt.Errorf("%w: %v", ErrCorruptIndex, err)
	}
	n, err := docs.CountChunks(ctx)
	if err != nil || int(n) != idx.Size() || idx.Size() != m.Chunks {
		_ = idx.Close()
		_ = docs.Close()
		if err == nil {
			err = fmt.Errorf("%d vectors, %d chunks, manifest says %d", idx.Size(), n, m.Chunks)
		}
		return nil, fmt.Errorf("%w: %v", ErrCorruptIndex, err)
	}

	s.index = idx
	s.docs = docs
	s.logger.Info("vector index loaded",
		zap.String("path", path),
		zap.Int("chunks", idx.Size()),
		zap.String("model", m.EmbeddingModel))
	return s, nil
}

// Search embeds query and returns up to k matches, highest similarity first.
func (s *Store) Search(ctx context.Context, query string, k int) ([]*models.Match, error) {
	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return s.SearchVector(ctx, vec, k)
}

// SearchVector returns up to k matches for an already-embedded query.
func (s *Store) SearchVector(ctx context.Context, vec []float32, k int) ([]*models.Match, error) {
	hits, err := s.index.Search(ctx, vec, k)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.ID
	}
	chunks, err := s.docs.GetChunks(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load chunks: %w", err)
	}
	matches := make([]*models.Match, 0, len(hits))
	for _, h := range hits {
		c, ok := chunks[h.ID]
		if !ok {
			s.logger.Warn("chunk missing from docstore", zap.String("id", h.ID))
			continue
		}
		matches = append(matches, &models.Match{Chunk: c, Score: h.Score, Rank: len(matches) + 1})
	}
	return matches, nil
}

// Manifest returns how the index was built.
func (s *Store) Manifest() Manifest {
	return s.manifest
}

// Sources lists the files the index was built from.
func (s *Store) Sources(ctx context.Context) ([]storage.SourceStat, error) {
	return s.docs.ListSources(ctx)
}

// Size returns the number of indexed chunks.
func (s *Store) Size() int {
	return s.index.Size()
}

// Path returns the index directory.
func (s *Store) Path() string {
	return s.path
}

// Close releases the index and docstore. The embedder is owned by the caller.
func (s *Store) Close() error {
	var errs []error
	if s.index != nil {
		errs = append(errs, s.index.Close())
	}
	if s.docs != nil {
		errs = append(errs, s.docs.Close())
	}
	return errors.Join(errs...)
}

// Remove deletes the index directory at path. A missing directory is not an error.
func Remove(path string) error {
	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("remove index %s: %w", path, err)
	}
	return nil
}
