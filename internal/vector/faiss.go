//go:build faiss && cgo
// +build faiss,cgo

package vector

/*
#cgo CFLAGS: -I/opt/homebrew/include -I/usr/local/include
#cgo LDFLAGS: -L/opt/homebrew/lib -L/usr/local/lib -lfaiss_c

#include <stdlib.h>
#include <faiss/c_api/Index_c.h>
#include <faiss/c_api/IndexFlat_c.h>
#include <faiss/c_api/index_io_c.h>
#include <faiss/c_api/error_c.h>
*/
import "C"

import (
	"context"
	"encoding/gob"
	"fmt"
	"os"
	"sort"
	"sync"
	"unsafe"
)

// File extensions written by FAISSIndex.Save.
const (
	FAISSFileExt = ".faiss"
	IDMapFileExt = ".idmap"
)

// FAISSIndex is a flat inner-product FAISS index. FAISS labels are positions in ids.
type FAISSIndex struct {
	index      *C.FaissIndex
	dimensions int
	ids        []string
	mu         sync.RWMutex
}

// NewFAISSIndex creates a FAISS index with the given dimension using inner product.
func NewFAISSIndex(dimensions int) (*FAISSIndex, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	var index *C.FaissIndexFlatIP
	if ret := C.faiss_IndexFlatIP_new_with(&index, C.idx_t(dimensions)); ret != 0 {
		return nil, fmt.Errorf("failed to create FAISS index: %s", faissLastError())
	}
	return &FAISSIndex{
		index:      (*C.FaissIndex)(index),
		dimensions: dimensions,
	}, nil
}

func faissLastError() string {
	cErr := C.faiss_get_last_error()
	if cErr == nil {
		return "unknown error"
	}
	return C.GoString(cErr)
}

// Type returns the index type identifier.
func (f *FAISSIndex) Type() string {
	return string(IndexTypeFAISS)
}

// Dimensions returns the vector length.
func (f *FAISSIndex) Dimensions() int {
	return f.dimensions
}

// Add appends vectors with the given IDs.
func (f *FAISSIndex) Add(ctx context.Context, ids []string, vectors [][]float32) error {
	if len(ids) != len(vectors) {
		return fmt.Errorf("ids and vectors length mismatch")
	}
	if len(ids) == 0 {
		return nil
	}
	flat := make([]float32, len(vectors)*f.dimensions)
	for i, vec := range vectors {
		if len(vec) != f.dimensions {
			return fmt.Errorf("vector dimension mismatch: got %d, expected %d", len(vec), f.dimensions)
		}
		copy(flat[i*f.dimensions:], vec)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if ret := C.faiss_Index_add(f.index, C.idx_t(len(vectors)), (*C.float)(unsafe.Pointer(&flat[0]))); ret != 0 {
		return fmt.Errorf("failed to add vectors to FAISS index: %s", faissLastError())
	}
	f.ids = append(f.ids, ids...)
	return nil
}

// Search returns the top-k vectors by inner product. Ties are ordered by label,
// which is insertion order.
func (f *FAISSIndex) Search(ctx context.Context, query []float32, k int) ([]*VectorResult, error) {
	if len(query) != f.dimensions {
		return nil, fmt.Errorf("query dimension mismatch: got %d, expected %d", len(query), f.dimensions)
	}
	f.mu.RLock()
	defer f.mu.RUnlock()

	ntotal := int(C.faiss_Index_ntotal(f.index))
	if k <= 0 || ntotal == 0 {
		return nil, nil
	}
	if k > ntotal {
		k = ntotal
	}
	distances := make([]float32, k)
	labels := make([]int64, k)
	ret := C.faiss_Index_search(
		f.index,
		1,
		(*C.float)(unsafe.Pointer(&query[0])),
		C.idx_t(k),
		(*C.float)(unsafe.Pointer(&distances[0])),
		(*C.idx_t)(unsafe.Pointer(&labels[0])),
	)
	if ret != 0 {
		return nil, fmt.Errorf("FAISS search failed: %s", faissLastError())
	}

	type hit struct {
		label int64
		score float64
	}
	hits := make([]hit, 0, k)
	for i := 0; i < k; i++ {
		if labels[i] < 0 || int(labels[i]) >= len(f.ids) {
			continue
		}
		hits = append(hits, hit{label: labels[i], score: float64(distances[i])})
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		return hits[i].label < hits[j].label
	})
	results := make([]*VectorResult, len(hits))
	for i, h := range hits {
		results[i] = &VectorResult{ID: f.ids[h.label], Score: h.score}
	}
	return results, nil
}

// Save writes path+".faiss" and the ID list to path+".idmap".
func (f *FAISSIndex) Save(path string) error {
	f.mu.RLock()
	defer f.mu.RUnlock()

	cPath := C.CString(path + FAISSFileExt)
	defer C.free(unsafe.Pointer(cPath))
	if ret := C.faiss_write_index_fname(f.index, cPath); ret != 0 {
		return fmt.Errorf("failed to save FAISS index: %s", faissLastError())
	}

	mapFile, err := os.Create(path + IDMapFileExt)
	if err != nil {
		return fmt.Errorf("create id map file: %w", err)
	}
	if err := gob.NewEncoder(mapFile).Encode(f.ids); err != nil {
		mapFile.Close()
		return fmt.Errorf("encode id map: %w", err)
	}
	return mapFile.Close()
}

// Load reads path+".faiss" and path+".idmap". A missing file returns an error
// wrapping os.ErrNotExist.
func (f *FAISSIndex) Load(path string) error {
	if _, err := os.Stat(path + FAISSFileExt); err != nil {
		return fmt.Errorf("open index file: %w", err)
	}
	mapFile, err := os.Open(path + IDMapFileExt)
	if err != nil {
		return fmt.Errorf("open id map file: %w", err)
	}
	defer mapFile.Close()
	var ids []string
	if err := gob.NewDecoder(mapFile).Decode(&ids); err != nil {
		return fmt.Errorf("decode id map: %w", err)
	}

	cPath := C.CString(path + FAISSFileExt)
	defer C.free(unsafe.Pointer(cPath))
	var loaded *C.FaissIndex
	if ret := C.faiss_read_index_fname(cPath, 0, &loaded); ret != 0 {
		return fmt.Errorf("failed to load FAISS index: %s", faissLastError())
	}
	dim, total := int(C.faiss_Index_d(loaded)), int(C.faiss_Index_ntotal(loaded))
	if dim != f.dimensions {
		C.faiss_Index_free(loaded)
		return fmt.Errorf("dimension mismatch: file has %d, index expects %d", dim, f.dimensions)
	}
	if total != len(ids) {
		C.faiss_Index_free(loaded)
		return fmt.Errorf("id map has %d entries, index has %d", len(ids), total)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.index != nil {
		C.faiss_Index_free(f.index)
	}
	f.index = loaded
	f.ids = ids
	return nil
}

// Size returns the number of vectors.
func (f *FAISSIndex) Size() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.ids)
}

// Close frees the FAISS index resources.
func (f *FAISSIndex) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.index != nil {
		C.faiss_Index_free(f.index)
		f.index = nil
	}
	return nil
}
