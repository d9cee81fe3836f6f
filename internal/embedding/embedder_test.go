package embedding

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hyperjump/pdfqa/internal/config"
)

func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

func TestMockEmbedder(t *testing.T) {
	e := NewMockEmbedder(16)
	ctx := context.Background()
	a, _ := e.Embed(ctx, "termination clause")
	b, _ := e.Embed(ctx, "termination clause")
	c, _ := e.Embed(ctx, "payment schedule")
	if len(a) != 16 {
		t.Fatalf("len = %d", len(a))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatal("same text should embed identically")
		}
	}
	same := true
	for i := range a {
		if a[i] != c[i] {
			same = false
		}
	}
	if same {
		t.Error("different texts should embed differently")
	}
	if n := norm(a); math.Abs(n-1) > 1e-5 {
		t.Errorf("norm = %f, want 1", n)
	}
	if e.ModelID() != "mock:16" {
		t.Errorf("ModelID = %s", e.ModelID())
	}
}

func TestNew_providers(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.EmbeddingConfig
		wantID  string
		wantErr bool
	}{
		{"mock", config.EmbeddingConfig{Provider: "mock", Dimensions: 8}, "mock:8", false},
		{"ollama", config.EmbeddingConfig{Provider: "ollama", Model: "nomic-embed-text", BaseURL: "http://localhost:11434", Dimensions: 768}, "ollama:nomic-embed-text", false},
		{"openai", config.EmbeddingConfig{Provider: "OpenAI", Model: "all-minilm", BaseURL: "http://localhost:11434", Dimensions: 384}, "openai:all-minilm", false},
		{"unknown", config.EmbeddingConfig{Provider: "word2vec"}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := New(tt.cfg)
			if tt.wantErr {
				if err == nil {
					t.Error("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			defer e.Close()
			if e.ModelID() != tt.wantID {
				t.Errorf("ModelID = %s, want %s", e.ModelID(), tt.wantID)
			}
		})
	}
}

func TestOllamaEmbedder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embeddings" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		var req ollamaEmbeddingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if req.Model != "all-minilm" {
			http.Error(w, "wrong model", http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(ollamaEmbeddingResponse{Embedding: []float64{3, 4, 0}})
	}))
	defer srv.Close()

	e := NewOllamaEmbedder(srv.URL+"/", "all-minilm", 3, srv.Client())
	v, err := e.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if math.Abs(float64(v[0])-0.6) > 1e-6 || math.Abs(float64(v[1])-0.8) > 1e-6 {
		t.Errorf("expected normalised [0.6 0.8 0], got %v", v)
	}
	batch, err := e.EmbedBatch(context.Background(), []string{"a", "b"})
	if err != nil || len(batch) != 2 {
		t.Errorf("EmbedBatch: %v, len %d", err, len(batch))
	}
}

func TestOllamaEmbedder_errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	e := NewOllamaEmbedder(srv.URL, "missing", 3, nil)
	_, err := e.Embed(context.Background(), "hello")
	if err == nil || !strings.Contains(err.Error(), "404") {
		t.Errorf("expected status error, got %v", err)
	}
}

func TestOllamaEmbedder_dimensionMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(ollamaEmbeddingResponse{Embedding: []float64{1, 2}})
	}))
	defer srv.Close()

	e := NewOllamaEmbedder(srv.URL, "m", 384, nil)
	if _, err := e.Embed(context.Background(), "x"); err == nil {
		t.Error("expected dimension mismatch error")
	}
}

func TestOpenAIEmbedder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/embeddings" {
			http.NotFound(w, r)
			return
		}
		var req struct {
			Input []string `json:"input"`
			Model string   `json:"model"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		type item struct {
			Object    string    `json:"object"`
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		}
		// Reply in reverse order to check results are placed by index.
		data := make([]item, 0, len(req.Input))
		for i := len(req.Input) - 1; i >= 0; i-- {
			data = append(data, item{Object: "embedding", Embedding: []float32{1, float32(i)}, Index: i})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"data":   data,
			"model":  req.Model,
		})
	}))
	defer srv.Close()

	e := NewOpenAIEmbedder(srv.URL, "", "all-minilm", 2)
	out, err := e.EmbedBatch(context.Background(), []string{"first", "second"})
	if err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("len = %d", len(out))
	}
	if out[0][0] != 1 || out[0][1] != 0 {
		t.Errorf("vector 0 = %v, want [1 0]", out[0])
	}
	if out[1][1] <= 0 {
		t.Errorf("vector 1 = %v, want second component set", out[1])
	}
	if _, err := e.Embed(context.Background(), "single"); err != nil {
		t.Errorf("Embed: %v", err)
	}
}

func TestOpenAIBaseURL(t *testing.T) {
	tests := map[string]string{
		"http://localhost:11434":     "http://localhost:11434/v1",
		"http://localhost:11434/":    "http://localhost:11434/v1",
		"http://localhost:11434/v1":  "http://localhost:11434/v1",
		"https://api.example.com/v1/": "https://api.example.com/v1",
	}
	for in, want := range tests {
		if got := OpenAIBaseURL(in); got != want {
			t.Errorf("OpenAIBaseURL(%q) = %q, want %q", in, got, want)
		}
	}
}
