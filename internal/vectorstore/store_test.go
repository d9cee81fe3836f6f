package vectorstore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hyperjump/pdfqa/internal/embedding"
	"github.com/hyperjump/pdfqa/internal/models"
)

func sampleChunks() []models.Chunk {
	texts := []string{
		"The tenant must give sixty days notice before termination.",
		"Rent is due on the first business day of each month.",
		"   ",
		"The landlord is responsible for structural repairs.",
	}
	chunks := make([]models.Chunk, len(texts))
	for i, text := range texts {
		chunks[i] = models.Chunk{
			ID:       "chunk-" + string(rune('a'+i)),
			Text:     text,
			Metadata: models.Metadata{Source: "/data/lease.pdf", Page: i},
		}
	}
	return chunks
}

func sampleSources() []models.SourceFile {
	return []models.SourceFile{{Name: "lease.pdf", Path: "/data/lease.pdf", Size: 1234, ModifiedAt: time.Unix(1700000000, 0)}}
}

func buildSample(t *testing.T, path string, emb embedding.Embedder) *Store {
	t.Helper()
	s, err := Build(context.Background(), path, sampleChunks(), emb, BuildOptions{
		ChunkSize:    500,
		ChunkOverlap: 50,
		Sources:      sampleSources(),
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return s
}

func TestBuildLoadSearch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vectorstore", "db_faiss")
	emb := embedding.NewMockEmbedder(32)
	ctx := context.Background()

	built := buildSample(t, path, emb)
	if built.Size() != 3 {
		t.Errorf("built size = %d, want 3 (blank chunk dropped)", built.Size())
	}
	built.Close()

	if !Exists(path) {
		t.Fatal("Exists should be true after build")
	}
	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("staging directories left behind: %v", entries)
	}

	s, err := Load(ctx, path, emb)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	defer s.Close()

	m := s.Manifest()
	if m.EmbeddingModel != "mock:32" || m.Chunks != 3 || m.ChunkSize != 500 || m.IndexType != "memory" {
		t.Errorf("manifest = %+v", m)
	}

	matches, err := s.Search(ctx, "Rent is due on the first business day of each month.", 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("got %d matches, want 2", len(matches))
	}
	if matches[0].Chunk.ID != "chunk-b" {
		t.Errorf("top match = %s, want chunk-b", matches[0].Chunk.ID)
	}
	if matches[0].Chunk.Metadata.Page != 1 || matches[0].Chunk.Metadata.Source != "/data/lease.pdf" {
		t.Errorf("metadata not restored: %+v", matches[0].Chunk.Metadata)
	}
	if matches[0].Score < matches[1].Score || matches[0].Rank != 1 || matches[1].Rank != 2 {
		t.Errorf("matches not ranked: %+v %+v", matches[0], matches[1])
	}

	sources, err := s.Sources(ctx)
	if err != nil || len(sources) != 1 || sources[0].Chunks != 3 {
		t.Errorf("Sources = %+v, %v", sources, err)
	}
}

func TestBuild_noValidChunks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "idx")
	blank := []models.Chunk{{ID: "x", Text: " \n\t"}, {ID: "y", Text: ""}}
	_, err := Build(context.Background(), path, blank, embedding.NewMockEmbedder(8), BuildOptions{})
	if !errors.Is(err, ErrNoValidChunks) {
		t.Fatalf("want ErrNoValidChunks, got %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("nothing should be written when no chunks are valid")
	}
}

func TestBuild_replacesExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "idx")
	emb := embedding.NewMockEmbedder(16)
	buildSample(t, path, emb).Close()

	replacement := []models.Chunk{{ID: "only", Text: "A single replacement chunk.", Metadata: models.Metadata{Source: "/data/new.pdf"}}}
	s, err := Build(context.Background(), path, replacement, emb, BuildOptions{})
	if err != nil {
		t.Fatal(err)
	}
	s.Close()

	loaded, err := Load(context.Background(), path, emb)
	if err != nil {
		t.Fatal(err)
	}
	defer loaded.Close()
	if loaded.Size() != 1 {
		t.Errorf("size after rebuild = %d, want 1", loaded.Size())
	}
	matches, _ := loaded.Search(context.Background(), "anything", 5)
	if len(matches) != 1 || matches[0].Chunk.ID != "only" {
		t.Errorf("old entries survived rebuild: %+v", matches)
	}
}

func TestLoad_notFound(t *testing.T) {
	_, err := Load(context.Background(), filepath.Join(t.TempDir(), "absent"), embedding.NewMockEmbedder(8))
	if !errors.Is(err, ErrIndexNotFound) {
		t.Errorf("want ErrIndexNotFound, got %v", err)
	}
	if Exists(filepath.Join(t.TempDir(), "absent")) {
		t.Error("Exists should be false")
	}
}

func TestLoad_modelMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "idx")
	buildSample(t, path, embedding.NewMockEmbedder(16)).Close()

	_, err := Load(context.Background(), path, embedding.NewMockEmbedder(32))
	if !errors.Is(err, ErrModelMismatch) {
		t.Errorf("want ErrModelMismatch, got %v", err)
	}
}

func TestLoad_corrupt(t *testing.T) {
	emb := embedding.NewMockEmbedder(16)
	tests := []struct {
		name   string
		damage func(t *testing.T, path string)
	}{
		{"garbage manifest", func(t *testing.T, path string) {
			if err := os.WriteFile(filepath.Join(path, ManifestFile), []byte("version: [oops"), 0644); err != nil {
				t.Fatal(err)
			}
		}},
		{"missing vectors", func(t *testing.T, path string) {
			if err := os.Remove(filepath.Join(path, vectorsBase+".vec")); err != nil {
				t.Fatal(err)
			}
		}},
		{"truncated vectors", func(t *testing.T, path string) {
			if err := os.WriteFile(filepath.Join(path, vectorsBase+".vec"), []byte("PQV1"), 0644); err != nil {
				t.Fatal(err)
			}
		}},
		{"missing docstore", func(t *testing.T, path string) {
			if err := os.Remove(filepath.Join(path, DocstoreFile)); err != nil {
				t.Fatal(err)
			}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "idx")
			buildSample(t, path, emb).Close()
			tt.damage(t, path)
			_, err := Load(context.Background(), path, emb)
			if !errors.Is(err, ErrCorruptIndex) {
				t.Errorf("want ErrCorruptIndex, got %v", err)
			}
		})
	}
}

func TestRemove(t *testing.T) {
	path := filepath.Join(t.TempDir(), "idx")
	buildSample(t, path, embedding.NewMockEmbedder(8)).Close()
	if err := Remove(path); err != nil {
		t.Fatal(err)
	}
	if Exists(path) {
		t.Error("index should be gone")
	}
	if err := Remove(path); err != nil {
		t.Errorf("removing a missing index should succeed: %v", err)
	}
}
