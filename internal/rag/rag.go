// Package rag ties loading, chunking, indexing, retrieval, and generation into the
// question-answering pipeline used by the chat front ends.
package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/hyperjump/pdfqa/internal/chunker"
	"github.com/hyperjump/pdfqa/internal/config"
	"github.com/hyperjump/pdfqa/internal/embedding"
	"github.com/hyperjump/pdfqa/internal/fileid"
	"github.com/hyperjump/pdfqa/internal/llm"
	"github.com/hyperjump/pdfqa/internal/loader"
	"github.com/hyperjump/pdfqa/internal/models"
	"github.com/hyperjump/pdfqa/internal/prompt"
	"github.com/hyperjump/pdfqa/internal/vectorstore"
	"github.com/hyperjump/pdfqa/pkg/utils"
	"go.uber.org/zap"
)

var (
	// ErrNoIndex means no index is loaded, either because none was built or
	// because the data directory holds no documents.
	ErrNoIndex = errors.New("no documents are indexed")
	// ErrEmptyQuestion is returned for blank questions.
	ErrEmptyQuestion = errors.New("question is empty")
	// ErrNoDocuments means BuildOrLoad found nothing to index. It wraps
	// vectorstore.ErrNoValidChunks.
	ErrNoDocuments = fmt.Errorf("data directory has no documents: %w", vectorstore.ErrNoValidChunks)
)

// TokenCounter estimates the size of a prompt.
type TokenCounter func(text string) (int, error)

// Pipeline answers questions over the documents in the configured data directory.
// All operations are serialised: one rebuild or one query runs at a time.
type Pipeline struct {
	mu sync.Mutex

	cfg       *config.Config
	embedder  embedding.Embedder
	generator llm.Generator
	loader    *loader.Loader
	chunker   *chunker.Chunker
	template  *prompt.Template
	filtered  *prompt.Template
	store     *vectorstore.Store

	countTokens TokenCounter
	logger      *zap.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// WithTokenCounter replaces the prompt token counter.
func WithTokenCounter(fn TokenCounter) Option {
	return func(p *Pipeline) { p.countTokens = fn }
}

// New creates a pipeline. No index is loaded until BuildOrLoad or Rebuild is called.
// The embedder and generator are owned by the caller.
func New(cfg *config.Config, emb embedding.Embedder, gen llm.Generator, opts ...Option) (*Pipeline, error) {
	p := &Pipeline{
		cfg:         cfg,
		embedder:    emb,
		generator:   gen,
		countTokens: prompt.CountTokens,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = utils.OrNop(p.logger)

	ch, err := chunker.New(cfg.Chunking.Size, cfg.Chunking.Overlap)
	if err != nil {
		return nil, err
	}
	p.chunker = ch
	if p.template, err = prompt.Parse(cfg.Prompt.Template); err != nil {
		return nil, fmt.Errorf("prompt.template: %w", err)
	}
	if p.filtered, err = prompt.Parse(cfg.Prompt.FilteredTemplate); err != nil {
		return nil, fmt.Errorf("prompt.filtered_template: %w", err)
	}
	p.loader = loader.New(cfg.Data.Extensions, loader.WithLogger(p.logger))
	return p, nil
}

// Loader returns the document loader, for listing data directory contents.
func (p *Pipeline) Loader() *loader.Loader {
	return p.loader
}

// Ready reports whether an index is loaded.
func (p *Pipeline) Ready() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.store != nil
}

// BuildOrLoad loads the persisted index, building it first when none exists.
// When the data directory has changed since the index was built, the index is
// rebuilt under the if_stale policy and only reported under if_missing.
// A build that finds no documents fails with ErrNoDocuments.
func (p *Pipeline) BuildOrLoad(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	path := p.cfg.Index.Path
	if !vectorstore.Exists(path) {
		p.logger.Info("no persisted index, building", zap.String("path", path))
		return p.buildLocked(ctx)
	}

	if stale, reason := p.staleLocked(); stale {
		if p.cfg.Index.RebuildPolicy == config.RebuildIfStale {
			p.logger.Info("index is stale, rebuilding", zap.String("reason", reason))
			return p.buildLocked(ctx)
		}
		p.logger.Warn("index may be stale; run build to refresh it",
			zap.String("path", path), zap.String("reason", reason))
	}

	store, err := vectorstore.Load(ctx, path, p.embedder, vectorstore.WithLogger(p.logger))
	if err != nil {
		if errors.Is(err, vectorstore.ErrModelMismatch) && p.cfg.Index.RebuildPolicy == config.RebuildIfStale {
			p.logger.Info("index was built with another model, rebuilding", zap.Error(err))
			return p.buildLocked(ctx)
		}
		return fmt.Errorf("load index: %w", err)
	}
	p.replaceStoreLocked(store)
	return nil
}

// buildLocked rebuilds for BuildOrLoad, which unlike Rebuild needs an index to exist.
func (p *Pipeline) buildLocked(ctx context.Context) error {
	if _, err := p.rebuildLocked(ctx); err != nil {
		return err
	}
	if p.store == nil {
		return fmt.Errorf("%w: %s", ErrNoDocuments, p.cfg.Data.Dir)
	}
	return nil
}

// staleLocked compares the data directory and chunking settings with the manifest.
func (p *Pipeline) staleLocked() (bool, string) {
	m, err := vectorstore.ReadManifest(p.cfg.Index.Path)
	if err != nil {
		return false, ""
	}
	files, err := p.loader.ListFiles(p.cfg.Data.Dir)
	if err != nil {
		return false, ""
	}
	if fp := fileid.Fingerprint(files); fp != m.Fingerprint {
		return true, "data directory changed"
	}
	if m.ChunkSize != p.chunker.Size() || m.ChunkOverlap != p.chunker.Overlap() {
		return true, "chunking settings changed"
	}
	return false, ""
}

// Rebuild re-indexes every matching file currently in the data directory and
// replaces the persisted index. When the directory holds no matching files the
// index is removed and queries return ErrNoIndex until documents are added.
func (p *Pipeline) Rebuild(ctx context.Context) (*loader.Report, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rebuildLocked(ctx)
}

// Refresh rebuilds only when the data directory no longer matches the index, or
// when no index exists yet. It reports whether a rebuild ran.
func (p *Pipeline) Refresh(ctx context.Context) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.store != nil || vectorstore.Exists(p.cfg.Index.Path) {
		if stale, _ := p.staleLocked(); !stale {
			return false, nil
		}
	}
	_, err := p.rebuildLocked(ctx)
	return true, err
}

func (p *Pipeline) rebuildLocked(ctx context.Context) (*loader.Report, error) {
	start := time.Now()
	dir := p.cfg.Data.Dir
	files, err := p.loader.ListFiles(dir)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		p.logger.Info("data directory is empty, clearing index", zap.String("dir", dir))
		return &loader.Report{}, p.clearLocked()
	}

	docs, report, err := p.loader.LoadDirectory(ctx, dir)
	if err != nil {
		return nil, err
	}
	chunks := p.chunker.Split(docs)
	p.logger.Debug("split documents",
		zap.Int("documents", len(docs)),
		zap.Int("chunks", len(chunks)))

	// Release the docstore before its directory is swapped out.
	hadStore := p.store != nil
	p.replaceStoreLocked(nil)

	store, err := vectorstore.Build(ctx, p.cfg.Index.Path, chunks, p.embedder, vectorstore.BuildOptions{
		IndexType:    p.cfg.Index.Type,
		ChunkSize:    p.chunker.Size(),
		ChunkOverlap: p.chunker.Overlap(),
		Sources:      files,
	}, vectorstore.WithLogger(p.logger))
	if err != nil {
		if errors.Is(err, vectorstore.ErrNoValidChunks) {
			// Nothing indexable is left; serving the previous documents would be wrong.
			if cerr := p.clearLocked(); cerr != nil {
				p.logger.Warn("failed to clear index", zap.Error(cerr))
			}
			return report, err
		}
		if hadStore {
			p.reloadLocked(ctx)
		}
		return report, fmt.Errorf("build index: %w", err)
	}
	p.replaceStoreLocked(store)
	p.logger.Info("index rebuilt",
		zap.Int("files", report.Files),
		zap.Int("skipped", len(report.Skipped)),
		zap.Int("chunks", store.Size()),
		zap.Duration("elapsed", time.Since(start)))
	return report, nil
}

// reloadLocked reopens the untouched previous index after a failed build.
func (p *Pipeline) reloadLocked(ctx context.Context) {
	store, err := vectorstore.Load(ctx, p.cfg.Index.Path, p.embedder, vectorstore.WithLogger(p.logger))
	if err != nil {
		p.logger.Warn("failed to reopen previous index", zap.Error(err))
		return
	}
	p.store = store
}

func (p *Pipeline) clearLocked() error {
	p.replaceStoreLocked(nil)
	return vectorstore.Remove(p.cfg.Index.Path)
}

func (p *Pipeline) replaceStoreLocked(s *vectorstore.Store) {
	if p.store != nil && p.store != s {
		if err := p.store.Close(); err != nil {
			p.logger.Warn("failed to close index", zap.Error(err))
		}
	}
	p.store = s
}

// Answer retrieves the top_k chunks for question and asks the model to answer from them.
func (p *Pipeline) Answer(ctx context.Context, question string) (*models.QueryResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	start := time.Now()
	question, matches, err := p.retrieveLocked(ctx, question)
	if err != nil {
		return nil, err
	}
	answer, tokens, err := p.generateLocked(ctx, p.template, question, matches)
	if err != nil {
		return nil, err
	}
	return p.result(question, answer, matches, tokens, start), nil
}

// AnswerFiltered is Answer with matches below chat.similarity_threshold dropped.
// When none remain the configured no-match message is returned and the model is not called.
func (p *Pipeline) AnswerFiltered(ctx context.Context, question string) (*models.QueryResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	start := time.Now()
	question, matches, err := p.retrieveLocked(ctx, question)
	if err != nil {
		return nil, err
	}
	kept := FilterMatches(matches, p.cfg.Chat.SimilarityThreshold)
	p.logger.Debug("filtered matches",
		zap.Int("retrieved", len(matches)),
		zap.Int("kept", len(kept)),
		zap.Float64("threshold", p.cfg.Chat.SimilarityThreshold))
	if len(kept) == 0 {
		r := p.result(question, p.cfg.Chat.NoMatchMessage, nil, 0, start)
		r.Filtered = true
		return r, nil
	}
	answer, tokens, err := p.generateLocked(ctx, p.filtered, question, kept)
	if err != nil {
		return nil, err
	}
	return p.result(question, answer, kept, tokens, start), nil
}

func (p *Pipeline) retrieveLocked(ctx context.Context, question string) (string, []*models.Match, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", nil, ErrEmptyQuestion
	}
	if p.store == nil {
		return "", nil, ErrNoIndex
	}
	matches, err := p.store.Search(ctx, question, p.cfg.Index.TopK)
	if err != nil {
		return "", nil, fmt.Errorf("retrieve: %w", err)
	}
	return question, matches, nil
}

func (p *Pipeline) generateLocked(ctx context.Context, tmpl *prompt.Template, question string, matches []*models.Match) (string, int, error) {
	text, err := tmpl.Render(prompt.JoinContext(matches), question)
	if err != nil {
		return "", 0, fmt.Errorf("compose prompt: %w", err)
	}
	tokens, err := p.countTokens(text)
	if err != nil {
		p.logger.Debug("token count unavailable", zap.Error(err))
	}
	p.logger.Debug("generating answer",
		zap.String("model", p.generator.Model()),
		zap.Int("matches", len(matches)),
		zap.Int("prompt_tokens", tokens))
	answer, err := p.generator.Generate(ctx, text)
	if err != nil {
		return "", tokens, fmt.Errorf("generate answer: %w", err)
	}
	return answer, tokens, nil
}

func (p *Pipeline) result(question, answer string, matches []*models.Match, tokens int, start time.Time) *models.QueryResult {
	return &models.QueryResult{
		Question:     question,
		Answer:       answer,
		Matches:      matches,
		Sources:      models.Sources(matches),
		PromptTokens: tokens,
		QueryTime:    time.Since(start).Milliseconds(),
	}
}

// Close releases the loaded index.
func (p *Pipeline) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.store == nil {
		return nil
	}
	err := p.store.Close()
	p.store = nil
	return err
}
