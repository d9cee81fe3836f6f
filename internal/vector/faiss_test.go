//go:build faiss && cgo
// +build faiss,cgo

package vector

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestFAISSIndex_AddSearch(t *testing.T) {
	idx, err := NewFAISSIndex(3)
	if err != nil {
		t.Fatal(err)
	}
	defer idx.Close()
	ctx := context.Background()

	vecs := [][]float32{
		{1, 0, 0},
		{0.9, 0.1, 0},
		{0, 1, 0},
	}
	if err := idx.Add(ctx, []string{"a", "b", "c"}, vecs); err != nil {
		t.Fatal(err)
	}
	results, err := idx.Search(ctx, []float32{1, 0, 0}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 || results[0].ID != "a" {
		t.Fatalf("unexpected results: %+v", results)
	}
}

func TestFAISSIndex_ties(t *testing.T) {
	idx, _ := NewFAISSIndex(2)
	defer idx.Close()
	ctx := context.Background()
	_ = idx.Add(ctx, []string{"first", "second", "third"}, [][]float32{{0, 1}, {0, 1}, {0, 1}})
	results, err := idx.Search(ctx, []float32{0, 1}, 3)
	if err != nil {
		t.Fatal(err)
	}
	for i, want := range []string{"first", "second", "third"} {
		if results[i].ID != want {
			t.Errorf("result %d = %s, want %s", i, results[i].ID, want)
		}
	}
}

func TestFAISSIndex_SaveLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "index")
	ctx := context.Background()

	idx, _ := NewFAISSIndex(2)
	_ = idx.Add(ctx, []string{"x", "y"}, [][]float32{{1, 0}, {0, 1}})
	if err := idx.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	idx.Close()

	loaded, _ := NewFAISSIndex(2)
	defer loaded.Close()
	if err := loaded.Load(path); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Size() != 2 {
		t.Errorf("Size = %d", loaded.Size())
	}
	results, _ := loaded.Search(ctx, []float32{0, 1}, 1)
	if results[0].ID != "y" {
		t.Errorf("top = %s, want y", results[0].ID)
	}

	if err := loaded.Load(filepath.Join(dir, "missing")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing index: want ErrNotExist, got %v", err)
	}
}
