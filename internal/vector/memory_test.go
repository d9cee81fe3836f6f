package vector

import (
	"context"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestMemoryIndex_AddSearch(t *testing.T) {
	idx, err := NewMemoryIndex(3)
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
	if idx.Size() != 3 {
		t.Errorf("Size=%d", idx.Size())
	}

	results, err := idx.Search(ctx, []float32{1, 0, 0}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].ID != "a" || results[1].ID != "b" {
		t.Errorf("order = %s, %s; want a, b", results[0].ID, results[1].ID)
	}
	if results[0].Score < results[1].Score {
		t.Error("scores should be descending")
	}
}

func TestMemoryIndex_tiesKeepInsertionOrder(t *testing.T) {
	idx, _ := NewMemoryIndex(2)
	ctx := context.Background()
	ids := []string{"first", "second", "third", "fourth"}
	vecs := [][]float32{{0, 1}, {0, 1}, {1, 0}, {0, 1}}
	if err := idx.Add(ctx, ids, vecs); err != nil {
		t.Fatal(err)
	}
	for run := 0; run < 5; run++ {
		results, err := idx.Search(ctx, []float32{0, 1}, 3)
		if err != nil {
			t.Fatal(err)
		}
		want := []string{"first", "second", "fourth"}
		for i, w := range want {
			if results[i].ID != w {
				t.Fatalf("run %d: result %d = %s, want %s", run, i, results[i].ID, w)
			}
		}
	}
}

func TestMemoryIndex_kLargerThanSize(t *testing.T) {
	idx, _ := NewMemoryIndex(2)
	ctx := context.Background()
	_ = idx.Add(ctx, []string{"x"}, [][]float32{{1, 0}})
	results, err := idx.Search(ctx, []float32{1, 0}, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Errorf("expected 1 result, got %d", len(results))
	}
	empty, _ := NewMemoryIndex(2)
	if r, _ := empty.Search(ctx, []float32{1, 0}, 3); len(r) != 0 {
		t.Errorf("empty index returned %d results", len(r))
	}
}

func TestMemoryIndex_dimensionErrors(t *testing.T) {
	idx, _ := NewMemoryIndex(3)
	ctx := context.Background()
	if err := idx.Add(ctx, []string{"a", "b"}, [][]float32{{1, 0, 0}, {1, 0}}); err == nil {
		t.Error("expected dimension mismatch on Add")
	}
	if idx.Size() != 0 {
		t.Errorf("failed Add should not partially apply, size=%d", idx.Size())
	}
	if err := idx.Add(ctx, []string{"a"}, nil); err == nil {
		t.Error("expected length mismatch error")
	}
	if _, err := idx.Search(ctx, []float32{1}, 1); err == nil {
		t.Error("expected query dimension mismatch")
	}
}

func TestMemoryIndex_SaveLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "index")
	ctx := context.Background()

	idx, _ := NewMemoryIndex(2)
	_ = idx.Add(ctx, []string{"chunk:a", "chunk:b"}, [][]float32{{0.6, 0.8}, {1, 0}})
	if err := idx.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := os.Stat(path + MemoryFileExt); err != nil {
		t.Fatalf("expected %s to exist: %v", path+MemoryFileExt, err)
	}

	loaded, _ := NewMemoryIndex(2)
	if err := loaded.Load(path); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Size() != 2 {
		t.Fatalf("loaded size = %d", loaded.Size())
	}
	results, _ := loaded.Search(ctx, []float32{1, 0}, 1)
	if results[0].ID != "chunk:b" {
		t.Errorf("top result = %s", results[0].ID)
	}
}

func TestMemoryIndex_LoadErrors(t *testing.T) {
	dir := t.TempDir()
	idx, _ := NewMemoryIndex(2)

	err := idx.Load(filepath.Join(dir, "missing"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing file: want ErrNotExist, got %v", err)
	}

	garbage := filepath.Join(dir, "garbage")
	if err := os.WriteFile(garbage+MemoryFileExt, []byte("not an index"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := idx.Load(garbage); err == nil {
		t.Error("expected error for garbage file")
	}

	// Truncated: valid header claiming one entry, no body.
	src, _ := NewMemoryIndex(2)
	_ = src.Add(context.Background(), []string{"a"}, [][]float32{{1, 0}})
	full := filepath.Join(dir, "full")
	if err := src.Save(full); err != nil {
		t.Fatal(err)
	}
	data, _ := os.ReadFile(full + MemoryFileExt)
	truncated := filepath.Join(dir, "truncated")
	if err := os.WriteFile(truncated+MemoryFileExt, data[:len(data)-3], 0600); err != nil {
		t.Fatal(err)
	}
	if err := idx.Load(truncated); err == nil {
		t.Error("expected error for truncated file")
	}

	// Header claiming far more entries than the file can hold.
	huge := append([]byte(nil), data...)
	binary.LittleEndian.PutUint32(huge[8:12], 1<<31)
	inflated := filepath.Join(dir, "inflated")
	if err := os.WriteFile(inflated+MemoryFileExt, huge, 0600); err != nil {
		t.Fatal(err)
	}
	if err := idx.Load(inflated); err == nil || !strings.Contains(err.Error(), "holds at most 1") {
		t.Errorf("inflated count: err = %v", err)
	}

	wrongDim, _ := NewMemoryIndex(3)
	if err := wrongDim.Load(full); err == nil {
		t.Error("expected dimension mismatch on load")
	}
}
