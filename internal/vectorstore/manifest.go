package vectorstore

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// ManifestVersion is the on-disk layout version written by Build.
const ManifestVersion = 1

// Manifest describes how an index directory was built. It is written last, so a
// directory without one is treated as absent.
type Manifest struct {
	Version        int       `yaml:"version" json:"version"`
	EmbeddingModel string    `yaml:"embedding_model" json:"embedding_model"`
	Dimensions     int       `yaml:"dimensions" json:"dimensions"`
	IndexType      string    `yaml:"index_type" json:"index_type"`
	ChunkSize      int       `yaml:"chunk_size" json:"chunk_size"`
	ChunkOverlap   int       `yaml:"chunk_overlap" json:"chunk_overlap"`
	Chunks         int       `yaml:"chunks" json:"chunks"`
	Sources        int       `yaml:"sources" json:"sources"`
	Fingerprint    string    `yaml:"fingerprint" json:"fingerprint"`
	BuiltAt        time.Time `yaml:"built_at" json:"built_at"`
}

// ReadManifest reads the manifest of the index at dir.
func ReadManifest(dir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrIndexNotFound, dir)
		}
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: parse manifest: %v", ErrCorruptIndex, err)
	}
	if m.Version != ManifestVersion {
		return nil, fmt.Errorf("%w: unsupported manifest version %d", ErrCorruptIndex, m.Version)
	}
	return &m, nil
}

func writeManifest(dir string, m *Manifest) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, ManifestFile), data, 0644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}
