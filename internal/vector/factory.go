package vector

import (
	"fmt"
	"strings"
)

// IndexType names a VectorIndex implementation.
type IndexType string

const (
	// IndexTypeMemory is brute-force search persisted as one binary file.
	IndexTypeMemory IndexType = "memory"
	// IndexTypeFAISS is a FAISS flat inner-product index. Needs -tags=faiss and libfaiss_c.
	IndexTypeFAISS IndexType = "faiss"
)

// ParseIndexType normalises a configured index type. Empty selects memory.
func ParseIndexType(s string) (IndexType, error) {
	switch t := IndexType(strings.ToLower(strings.TrimSpace(s))); t {
	case "":
		return IndexTypeMemory, nil
	case IndexTypeMemory, IndexTypeFAISS:
		return t, nil
	default:
		return "", fmt.Errorf("unknown index type: %s (supported: memory, faiss)", s)
	}
}

// NewVectorIndex creates an empty index of the given type and dimensionality.
func NewVectorIndex(indexType string, dimensions int) (VectorIndex, error) {
	t, err := ParseIndexType(indexType)
	if err != nil {
		return nil, err
	}
	if t == IndexTypeFAISS {
		return NewFAISSIndex(dimensions)
	}
	return NewMemoryIndex(dimensions)
}

// IsFAISSAvailable reports whether this binary was built with FAISS support.
func IsFAISSAvailable() bool {
	idx, err := NewFAISSIndex(1)
	if err != nil {
		return false
	}
	_ = idx.Close()
	return true
}
