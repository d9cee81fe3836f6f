package vectorstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hyperjump/pdfqa/internal/chunker"
	"github.com/hyperjump/pdfqa/internal/embedding"
	"github.com/hyperjump/pdfqa/internal/fileid"
	"github.com/hyperjump/pdfqa/internal/models"
	"github.com/hyperjump/pdfqa/internal/storage"
	"github.com/hyperjump/pdfqa/internal/vector"
	"github.com/hyperjump/pdfqa/pkg/utils"
	"go.uber.org/zap"
)

// embedBatchSize bounds how many chunks go to the embedder per call.
const embedBatchSize = 64

// BuildOptions describes what the index is built from.
type BuildOptions struct {
	IndexType    string
	ChunkSize    int
	ChunkOverlap int
	// Sources are the files the chunks came from; recorded for listing and staleness checks.
	Sources []models.SourceFile
}

// Build embeds chunks and writes a new index at path, replacing any existing one
// only after the new index is complete. Blank chunks are dropped with a warning;
// if none remain Build returns ErrNoValidChunks and writes nothing.
func Build(ctx context.Context, path string, chunks []models.Chunk, emb embedding.Embedder, opts BuildOptions, options ...Option) (*Store, error) {
	s := &Store{path: path, embedder: emb}
	for _, opt := range options {
		opt(s)
	}
	s.logger = utils.OrNop(s.logger)

	valid := make([]models.Chunk, 0, len(chunks))
	for _, c := range chunks {
		if chunker.IsBlank(c.Text) {
			s.logger.Warn("dropping blank chunk",
				zap.String("source", c.Metadata.Source),
				zap.Int("page", c.Metadata.Page),
				zap.Int("position", c.Metadata.Position))
			continue
		}
		valid = append(valid, c)
	}
	if len(valid) == 0 {
		return nil, ErrNoValidChunks
	}

	start := time.Now()
	idx, err := vector.NewVectorIndex(opts.IndexType, emb.Dimensions())
	if err != nil {
		return nil, fmt.Errorf("create %s index: %w", opts.IndexType, err)
	}
	if err := s.embedInto(ctx, idx, valid); err != nil {
		_ = idx.Close()
		return nil, err
	}

	parent := filepath.Dir(path)
	if err := os.MkdirAll(parent, 0755); err != nil {
		_ = idx.Close()
		return nil, fmt.Errorf("create index parent: %w", err)
	}
	tmp, err := os.MkdirTemp(parent, filepath.Base(path)+".build-")
	if err != nil {
		_ = idx.Close()
		return nil, fmt.Errorf("create staging dir: %w", err)
	}
	defer os.RemoveAll(tmp)

	manifest := Manifest{
		Version:        ManifestVersion,
		EmbeddingModel: emb.ModelID(),
		Dimensions:     emb.Dimensions(),
		IndexType:      idx.Type(),
		ChunkSize:      opts.ChunkSize,
		ChunkOverlap:   opts.ChunkOverlap,
		Chunks:         len(valid),
		Sources:        len(opts.Sources),
		Fingerprint:    fileid.Fingerprint(opts.Sources),
		BuiltAt:        time.Now().UTC(),
	}
	if err := writeIndexDir(ctx, tmp, idx, valid, opts.Sources, &manifest); err != nil {
		_ = idx.Close()
		return nil, err
	}
	if err := swapDir(tmp, path); err != nil {
		_ = idx.Close()
		return nil, err
	}

	docs, err := storage.NewSQLiteStorage(filepath.Join(path, DocstoreFile))
	if err != nil {
		_ = idx.Close()
		return nil, fmt.Errorf("open docstore: %w", err)
	}
	s.index = idx
	s.docs = docs
	s.manifest = manifest
	s.logger.Info("vector index built",
		zap.String("path", path),
		zap.Int("chunks", len(valid)),
		zap.Int("dropped", len(chunks)-len(valid)),
		zap.Duration("elapsed", time.Since(start)))
	return s, nil
}

func (s *Store) embedInto(ctx context.Context, idx vector.VectorIndex, chunks []models.Chunk) error {
	for startIdx := 0; startIdx < len(chunks); startIdx += embedBatchSize {
		end := startIdx + embedBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[startIdx:end]
		texts := make([]string, len(batch))
		ids := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Text
			ids[i] = c.ID
		}
		vecs, err := s.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return fmt.Errorf("embed chunks: %w", err)
		}
		if err := idx.Add(ctx, ids, vecs); err != nil {
			return fmt.Errorf("index vectors: %w", err)
		}
		s.logger.Debug("embedded chunks", zap.Int("done", end), zap.Int("total", len(chunks)))
	}
	return nil
}

// writeIndexDir writes vectors, docstore, and finally the manifest into dir.
func writeIndexDir(ctx context.Context, dir string, idx vector.VectorIndex, chunks []models.Chunk, sources []models.SourceFile, m *Manifest) error {
	if err := idx.Save(filepath.Join(dir, vectorsBase)); err != nil {
		return fmt.Errorf("save vectors: %w", err)
	}
	docs, err := storage.NewSQLiteStorage(filepath.Join(dir, DocstoreFile))
	if err != nil {
		return fmt.Errorf("create docstore: %w", err)
	}
	if err := docs.BatchCreateChunks(ctx, chunks); err != nil {
		docs.Close()
		return fmt.Errorf("store chunks: %w", err)
	}
	if err := docs.BatchCreateSources(ctx, sources); err != nil {
		docs.Close()
		return fmt.Errorf("store sources: %w", err)
	}
	if err := docs.Close(); err != nil {
		return fmt.Errorf("close docstore: %w", err)
	}
	return writeManifest(dir, m)
}

// swapDir moves staged into place at path, replacing any existing directory.
func swapDir(staged, path string) error {
	var old string
	if _, err := os.Stat(path); err == nil {
		old = fmt.Sprintf("%s.old-%d", path, time.Now().UnixNano())
		if err := os.Rename(path, old); err != nil {
			return fmt.Errorf("move previous index aside: %w", err)
		}
	}
	if err := os.Rename(staged, path); err != nil {
		if old != "" {
			_ = os.Rename(old, path)
		}
		return fmt.Errorf("install new index: %w", err)
	}
	if old != "" {
		_ = os.RemoveAll(old)
	}
	return nil
}
