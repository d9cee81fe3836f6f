// Package llm generates answers from a composed prompt using a local language model.
package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/hyperjump/pdfqa/internal/config"
	"github.com/hyperjump/pdfqa/pkg/utils"
	"go.uber.org/zap"
)

// Generator produces a completion for a prompt. Calls are not retried.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	// Model names the model answers come from.
	Model() string
}

// Provider names accepted by New.
const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
)

type options struct {
	logger     *zap.Logger
	httpClient *http.Client
}

// Option configures generators created by New.
type Option func(*options)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithHTTPClient overrides the HTTP client. Its timeout replaces llm.timeout_seconds.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// New creates the generator described by cfg.
func New(cfg config.LLMConfig, opts ...Option) (Generator, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.httpClient == nil {
		o.httpClient = &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second}
	}
	logger := utils.OrNop(o.logger)
	if cfg.Model == "" {
		return nil, fmt.Errorf("llm.model is required")
	}

	var g Generator
	switch strings.ToLower(cfg.Provider) {
	case ProviderOllama, "":
		g = NewOllamaGenerator(cfg.BaseURL, cfg.Model, cfg.Temperature, o.httpClient, logger)
	case ProviderOpenAI:
		g = NewOpenAIGenerator(cfg.BaseURL, cfg.APIKey(), cfg.Model, cfg.Temperature, o.httpClient)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
	logger.Info("answer generator ready",
		zap.String("provider", cfg.Provider),
		zap.String("model", cfg.Model),
		zap.Float64("temperature", cfg.Temperature))
	return g, nil
}
