package rag

import (
	"time"

	"github.com/hyperjump/pdfqa/internal/storage"
	"github.com/hyperjump/pdfqa/internal/vectorstore"
)

// Status describes the pipeline's configuration and loaded index.
type Status struct {
	Ready          bool      `json:"ready"`
	DataDir        string    `json:"data_dir"`
	IndexPath      string    `json:"index_path"`
	IndexType      string    `json:"index_type"`
	EmbeddingModel string    `json:"embedding_model"`
	Dimensions     int       `json:"dimensions"`
	LLMModel       string    `json:"llm_model"`
	Chunks         int       `json:"chunks"`
	Sources        int       `json:"sources"`
	BuiltAt        time.Time `json:"built_at,omitzero"`
	Stale          bool      `json:"stale"`
	StaleReason    string    `json:"stale_reason,omitempty"`
	IndexBytes     int64     `json:"index_bytes"`
	DataBytes      int64     `json:"data_bytes"`
}

// Status reports what is currently indexed. When no index is loaded but one exists
// on disk, its manifest is used.
func (p *Pipeline) Status() (*Status, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	st := &Status{
		Ready:          p.store != nil,
		DataDir:        p.cfg.Data.Dir,
		IndexPath:      p.cfg.Index.Path,
		IndexType:      p.cfg.Index.Type,
		EmbeddingModel: p.embedder.ModelID(),
		Dimensions:     p.embedder.Dimensions(),
	}
	if p.generator != nil {
		st.LLMModel = p.generator.Model()
	}

	var m *vectorstore.Manifest
	if p.store != nil {
		mm := p.store.Manifest()
		m = &mm
	} else if vectorstore.Exists(p.cfg.Index.Path) {
		if mm, err := vectorstore.ReadManifest(p.cfg.Index.Path); err == nil {
			m = mm
		}
	}
	if m != nil {
		st.IndexType = m.IndexType
		st.EmbeddingModel = m.EmbeddingModel
		st.Dimensions = m.Dimensions
		st.Chunks = m.Chunks
		st.Sources = m.Sources
		st.BuiltAt = m.BuiltAt
		st.Stale, st.StaleReason = p.staleLocked()
	}

	var err error
	if st.IndexBytes, err = storage.DiskUsageBytes(p.cfg.Index.Path); err != nil {
		return nil, err
	}
	if st.DataBytes, err = storage.DiskUsageBytes(p.cfg.Data.Dir); err != nil {
		return nil, err
	}
	return st, nil
}
