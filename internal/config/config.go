// Package config provides configuration loading and structs for pdfqa.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Data      DataConfig      `yaml:"data"`
	Index     IndexConfig     `yaml:"index"`
	Chunking  ChunkingConfig  `yaml:"chunking"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	LLM       LLMConfig       `yaml:"llm"`
	Prompt    PromptConfig    `yaml:"prompt"`
	Chat      ChatConfig      `yaml:"chat"`
	Watch     WatchConfig     `yaml:"watch"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	// MaxUploadMB caps the multipart body size for document uploads.
	MaxUploadMB int `yaml:"max_upload_mb"`
}

// DataConfig points at the directory of source documents.
type DataConfig struct {
	Dir        string   `yaml:"dir"`
	Extensions []string `yaml:"extensions"`
}

// Rebuild policies for an index that already exists on disk.
const (
	// RebuildIfMissing only builds when no index is persisted; a stale index is reported, not rebuilt.
	RebuildIfMissing = "if_missing"
	// RebuildIfStale also rebuilds when the data directory no longer matches the index manifest.
	RebuildIfStale = "if_stale"
)

// IndexConfig holds the persisted vector index settings.
type IndexConfig struct {
	Path          string `yaml:"path"`
	Type          string `yaml:"type"`
	TopK          int    `yaml:"top_k"`
	RebuildPolicy string `yaml:"rebuild_policy"`
}

// ChunkingConfig holds chunk size and overlap, both in characters.
type ChunkingConfig struct {
	Size    int `yaml:"size"`
	Overlap int `yaml:"overlap"`
}

// EmbeddingConfig selects and configures the embedding provider.
type EmbeddingConfig struct {
	// Provider is one of: onnx, ollama, openai, mock.
	Provider   string `yaml:"provider"`
	Model      string `yaml:"model"`
	ModelPath  string `yaml:"model_path"`
	// VocabPath is the WordPiece vocab.txt for the onnx provider; defaults to the
	// file beside ModelPath.
	VocabPath string `yaml:"vocab_path"`
	// Output and Pooling describe the ONNX graph output: last_hidden_state with
	// mean pooling, or an already pooled output with pooling none.
	Output     string `yaml:"output"`
	Pooling    string `yaml:"pooling"`
	Dimensions int    `yaml:"dimensions"`
	MaxTokens  int    `yaml:"max_tokens"`
	CacheSize  int    `yaml:"cache_size"`
	BaseURL    string `yaml:"base_url"`
	// TokenEnv names the environment variable holding the provider credential.
	TokenEnv string `yaml:"token_env"`
}

// LLMConfig configures the answer generator.
type LLMConfig struct {
	// Provider is one of: ollama, openai.
	Provider       string  `yaml:"provider"`
	BaseURL        string  `yaml:"base_url"`
	Model          string  `yaml:"model"`
	Temperature    float64 `yaml:"temperature"`
	TimeoutSeconds int     `yaml:"timeout_seconds"`
	APIKeyEnv      string  `yaml:"api_key_env"`
}

// PromptConfig holds the prompt templates. Slots are written as {context} and {question}.
type PromptConfig struct {
	Template string `yaml:"template"`
	// FilteredTemplate is used by the upload-driven chat after threshold filtering.
	FilteredTemplate string `yaml:"filtered_template"`
}

// ChatConfig holds front-end behaviour.
type ChatConfig struct {
	Title               string  `yaml:"title"`
	ExitPhrase          string  `yaml:"exit_phrase"`
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
	NoMatchMessage      string  `yaml:"no_match_message"`
}

// WatchConfig enables rebuilding when the data directory changes.
type WatchConfig struct {
	Enabled    bool `yaml:"enabled"`
	DebounceMS int  `yaml:"debounce_ms"`
}

// Token returns the embedding credential from the environment, or "" when unset.
func (e *EmbeddingConfig) Token() string {
	if e.TokenEnv == "" {
		return ""
	}
	return os.Getenv(e.TokenEnv)
}

// APIKey returns the LLM API key from the environment, or "" when unset.
func (l *LLMConfig) APIKey() string {
	if l.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(l.APIKeyEnv)
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// A missing file yields the defaults with paths relative to the working directory.
// Returns an error if the file exists but cannot be read or parsed.
func Load(path string) (*Config, error) {
	cfg := seed()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	ApplyEnv(&cfg)
	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Data.Dir = expandPath(cfg.Data.Dir, configDir)
	cfg.Index.Path = expandPath(cfg.Index.Path, configDir)
	if cfg.Embedding.ModelPath != "" {
		cfg.Embedding.ModelPath = expandPath(cfg.Embedding.ModelPath, configDir)
	}
	if cfg.Embedding.VocabPath != "" {
		cfg.Embedding.VocabPath = expandPath(cfg.Embedding.VocabPath, configDir)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadEnv loads variables from .env files into the process environment.
// Existing variables win; a missing file is not an error.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Validate reports settings that would make the pipeline misbehave.
func Validate(cfg *Config) error {
	if cfg.Chunking.Size <= 0 {
		return fmt.Errorf("chunking.size must be positive, got %d", cfg.Chunking.Size)
	}
	if cfg.Chunking.Overlap < 0 || cfg.Chunking.Overlap >= cfg.Chunking.Size {
		return fmt.Errorf("chunking.overlap must be in [0, size), got %d", cfg.Chunking.Overlap)
	}
	switch cfg.Index.RebuildPolicy {
	case RebuildIfMissing, RebuildIfStale:
	default:
		return fmt.Errorf("index.rebuild_policy %q: want %s or %s", cfg.Index.RebuildPolicy, RebuildIfMissing, RebuildIfStale)
	}
	if cfg.Chat.SimilarityThreshold < 0 || cfg.Chat.SimilarityThreshold > 1 {
		return fmt.Errorf("chat.similarity_threshold must be in [0, 1], got %f", cfg.Chat.SimilarityThreshold)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the working directory.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}
