// Package fileid provides deterministic identifiers for source files, chunks, and
// the state of a data directory.
package fileid

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/hyperjump/pdfqa/internal/models"
)

const (
	sourcePrefix = "src:"
	chunkPrefix  = "chunk:"
)

// SourceID returns a stable ID for the given file path.
// Same path always yields the same ID.
func SourceID(path string) string {
	normalized := filepath.Clean(path)
	hash := sha256.Sum256([]byte(normalized))
	return sourcePrefix + hex.EncodeToString(hash[:])
}

// ChunkID returns a stable ID for a chunk from its source location and text.
// Identical input yields identical IDs across runs.
func ChunkID(meta models.Metadata, text string) string {
	h := sha256.New()
	h.Write([]byte(filepath.Clean(meta.Source)))
	h.Write([]byte{0})
	h.Write([]byte(strconv.Itoa(meta.Page)))
	h.Write([]byte{0})
	h.Write([]byte(strconv.Itoa(meta.Position)))
	h.Write([]byte{0})
	h.Write([]byte(text))
	return chunkPrefix + hex.EncodeToString(h.Sum(nil))[:32]
}

// Fingerprint summarises a set of files by name, size, and modification time.
// The result does not depend on the order of files.
func Fingerprint(files []models.SourceFile) string {
	sorted := make([]models.SourceFile, len(files))
	copy(sorted, files)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	h := sha256.New()
	var buf [8]byte
	for _, f := range sorted {
		h.Write([]byte(f.Name))
		h.Write([]byte{0})
		binary.LittleEndian.PutUint64(buf[:], uint64(f.Size))
		h.Write(buf[:])
		binary.LittleEndian.PutUint64(buf[:], uint64(f.ModifiedAt.UnixNano()))
		h.Write(buf[:])
	}
	return hex.EncodeToString(h.Sum(nil))
}
