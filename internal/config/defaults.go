package config

import (
	"os"
	"strings"
)

// DefaultTemplate is the instruction prompt used for every question.
const DefaultTemplate = `
Use the pieces of information provided in the context to answer the user's question.
If you don't know the answer, say you don't know — do not make it up.
Only refer to the context provided.

Context: {context}
Question: {question}

Start the answer directly without unnecessary text.
`

// DefaultFilteredTemplate is the short prompt used after similarity filtering.
const DefaultFilteredTemplate = "Use the following context to answer:\n{context}\n\nQ: {question}\nA:"

// seed returns a Config holding the defaults of settings whose zero value is a
// legitimate choice. Load decodes the file over it, so only keys absent from the
// file keep these values.
func seed() Config {
	return Config{
		Chunking: ChunkingConfig{Overlap: 50},
		LLM:      LLMConfig{Temperature: 0.5},
		Chat:     ChatConfig{SimilarityThreshold: 0.6},
	}
}

// Default returns a Config with every default applied.
func Default() *Config {
	cfg := seed()
	ApplyDefaults(&cfg)
	return &cfg
}

// ApplyDefaults sets default values for any zero values in cfg. Chunk overlap,
// temperature and similarity threshold accept zero and are left alone; see Default.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8501
	}
	if cfg.Server.MaxUploadMB == 0 {
		cfg.Server.MaxUploadMB = 200
	}
	if cfg.Data.Dir == "" {
		cfg.Data.Dir = "data/"
	}
	if cfg.Data.Extensions == nil {
		cfg.Data.Extensions = []string{".pdf"}
	}
	if cfg.Index.Path == "" {
		cfg.Index.Path = "vectorstore/db_faiss"
	}
	if cfg.Index.Type == "" {
		cfg.Index.Type = "memory"
	}
	if cfg.Index.TopK == 0 {
		cfg.Index.TopK = 3
	}
	if cfg.Index.RebuildPolicy == "" {
		cfg.Index.RebuildPolicy = RebuildIfMissing
	}
	if cfg.Chunking.Size == 0 {
		cfg.Chunking.Size = 500
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "onnx"
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "sentence-transformers/all-MiniLM-L6-v2"
	}
	if cfg.Embedding.Provider == "onnx" {
		if cfg.Embedding.ModelPath == "" {
			cfg.Embedding.ModelPath = "models/all-MiniLM-L6-v2/model.onnx"
		}
		if cfg.Embedding.Output == "" {
			cfg.Embedding.Output = "last_hidden_state"
		}
		if cfg.Embedding.Pooling == "" {
			cfg.Embedding.Pooling = "mean"
		}
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 384
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 256
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.Embedding.TokenEnv == "" {
		cfg.Embedding.TokenEnv = "HF_TOKEN"
	}
	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = "ollama"
	}
	if cfg.LLM.BaseURL == "" {
		cfg.LLM.BaseURL = "http://localhost:11434"
	}
	if cfg.Embedding.BaseURL == "" && cfg.Embedding.Provider != "onnx" {
		cfg.Embedding.BaseURL = cfg.LLM.BaseURL
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "mistral"
	}
	if cfg.LLM.TimeoutSeconds == 0 {
		cfg.LLM.TimeoutSeconds = 300
	}
	if cfg.Prompt.Template == "" {
		cfg.Prompt.Template = DefaultTemplate
	}
	if cfg.Prompt.FilteredTemplate == "" {
		cfg.Prompt.FilteredTemplate = DefaultFilteredTemplate
	}
	if cfg.Chat.Title == "" {
		cfg.Chat.Title = "Lawyer-Bot"
	}
	if cfg.Chat.ExitPhrase == "" {
		cfg.Chat.ExitPhrase = "exit the chatbot"
	}
	if cfg.Chat.NoMatchMessage == "" {
		cfg.Chat.NoMatchMessage = "I couldn't find relevant information in the uploaded documents for your query."
	}
	if cfg.Watch.DebounceMS == 0 {
		cfg.Watch.DebounceMS = 400
	}
}

// ApplyEnv overrides provider settings from the environment. Runs before ApplyDefaults
// so that an unset variable falls through to the default.
func ApplyEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("OLLAMA_HOST")); v != "" {
		if !strings.HasPrefix(v, "http://") && !strings.HasPrefix(v, "https://") {
			v = "http://" + v
		}
		cfg.LLM.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("PDFQA_LLM_MODEL")); v != "" {
		cfg.LLM.Model = v
	}
	if v := strings.TrimSpace(os.Getenv("PDFQA_EMBEDDING_PROVIDER")); v != "" {
		cfg.Embedding.Provider = v
	}
}
