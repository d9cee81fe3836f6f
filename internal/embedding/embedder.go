// Package embedding turns text into fixed-length vectors for similarity search.
package embedding

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/hyperjump/pdfqa/internal/config"
	"github.com/hyperjump/pdfqa/pkg/utils"
	"go.uber.org/zap"
)

// Embedder produces vector embeddings for text. Identical input under the same
// model yields identical vectors.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	// ModelID identifies the model so an index can be matched to the embedder that built it.
	ModelID() string
	Close() error
}

// Provider names accepted by New.
const (
	ProviderONNX   = "onnx"
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
	ProviderMock   = "mock"
)

type options struct {
	logger     *zap.Logger
	httpClient *http.Client
}

// Option configures embedders created by New.
type Option func(*options)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithHTTPClient sets the HTTP client used by remote providers.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// New creates the embedder described by cfg. Indexing and querying both obtain
// their embedder here so they always share one model configuration.
func New(cfg config.EmbeddingConfig, opts ...Option) (Embedder, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	logger := utils.OrNop(o.logger)
	if o.httpClient == nil {
		o.httpClient = http.DefaultClient
	}

	if cfg.Token() == "" && cfg.TokenEnv != "" {
		logger.Debug("embedding credential not set; continuing without it", zap.String("env", cfg.TokenEnv))
	}

	var (
		emb Embedder
		err error
	)
	switch strings.ToLower(cfg.Provider) {
	case ProviderONNX, "":
		emb, err = NewONNXEmbedder(ONNXOptions{
			ModelPath:  cfg.ModelPath,
			VocabPath:  cfg.VocabPath,
			Model:      cfg.Model,
			Output:     cfg.Output,
			Pooling:    cfg.Pooling,
			Dimensions: cfg.Dimensions,
			MaxTokens:  cfg.MaxTokens,
			CacheSize:  cfg.CacheSize,
		})
	case ProviderOllama:
		emb = WithCache(NewOllamaEmbedder(cfg.BaseURL, cfg.Model, cfg.Dimensions, o.httpClient), cfg.CacheSize)
	case ProviderOpenAI:
		emb = WithCache(NewOpenAIEmbedder(cfg.BaseURL, cfg.Token(), cfg.Model, cfg.Dimensions), cfg.CacheSize)
	case ProviderMock:
		emb = NewMockEmbedder(cfg.Dimensions)
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("create %s embedder: %w", cfg.Provider, err)
	}
	logger.Info("embedder ready", zap.String("model", emb.ModelID()), zap.Int("dimensions", emb.Dimensions()))
	return emb, nil
}

// embedEach calls embed for every text, stopping at the first error or cancellation.
func embedEach(ctx context.Context, texts []string, embed func(context.Context, string) ([]float32, error)) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		emb, err := embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embed text %d: %w", i, err)
		}
		embeddings[i] = emb
	}
	return embeddings, nil
}

// checkDimensions rejects vectors whose length does not match the configured size.
func checkDimensions(v []float32, want int) error {
	if want > 0 && len(v) != want {
		return fmt.Errorf("embedding has %d dimensions, expected %d", len(v), want)
	}
	if len(v) == 0 {
		return fmt.Errorf("empty embedding returned")
	}
	return nil
}
