// Package loader reads source files from a data directory into page-level documents.
package loader

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hyperjump/pdfqa/internal/models"
	"github.com/hyperjump/pdfqa/pkg/utils"
	"go.uber.org/zap"
)

// DefaultExtensions is the extension filter used when none is configured.
var DefaultExtensions = []string{".pdf"}

// Failure records a file that could not be read.
type Failure struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

// Report summarises a directory load.
type Report struct {
	Files     int       `json:"files"`
	Documents int       `json:"documents"`
	Skipped   []Failure `json:"skipped,omitempty"`
}

// Loader reads files whose extension is in its filter.
type Loader struct {
	extensions map[string]bool
	logger     *zap.Logger
}

// Option configures a Loader.
type Option func(*Loader)

// WithLogger sets the logger for skipped-file warnings.
func WithLogger(l *zap.Logger) Option {
	return func(ld *Loader) {
		ld.logger = l
	}
}

// New returns a Loader for the given extensions (with leading dot, case-insensitive).
// An empty list selects DefaultExtensions.
func New(extensions []string, opts ...Option) *Loader {
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}
	l := &Loader{extensions: make(map[string]bool, len(extensions))}
	for _, ext := range extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		l.extensions[ext] = true
	}
	for _, opt := range opts {
		opt(l)
	}
	l.logger = utils.OrNop(l.logger)
	return l
}

// Matches reports whether path has an accepted extension.
func (l *Loader) Matches(path string) bool {
	return l.extensions[strings.ToLower(filepath.Ext(path))]
}

// LoadDirectory reads every matching file directly inside dir, in name order, and
// returns one document per page. A missing or unreadable directory is an error.
// Files that fail to parse are skipped and recorded in the report.
func (l *Loader) LoadDirectory(ctx context.Context, dir string) ([]models.Document, *Report, error) {
	files, err := l.ListFiles(dir)
	if err != nil {
		return nil, nil, err
	}
	report := &Report{}
	var docs []models.Document
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		pages, err := l.LoadFile(f.Path)
		if err != nil {
			l.logger.Warn("skipping unreadable file", zap.String("path", f.Path), zap.Error(err))
			report.Skipped = append(report.Skipped, Failure{Path: f.Path, Error: err.Error()})
			continue
		}
		report.Files++
		report.Documents += len(pages)
		docs = append(docs, pages...)
	}
	l.logger.Info("loaded documents",
		zap.String("dir", dir),
		zap.Int("files", report.Files),
		zap.Int("documents", report.Documents),
		zap.Int("skipped", len(report.Skipped)))
	return docs, report, nil
}

// LoadFile reads one file into per-page documents.
func (l *Loader) LoadFile(path string) ([]models.Document, error) {
	pages, err := ExtractPages(path)
	if err != nil {
		return nil, err
	}
	docs := make([]models.Document, 0, len(pages))
	for i, text := range pages {
		docs = append(docs, models.Document{
			Text:     text,
			Metadata: models.Metadata{Source: path, Page: i},
		})
	}
	return docs, nil
}

// ListFiles returns the matching regular files directly inside dir, sorted by name.
func (l *Loader) ListFiles(dir string) ([]models.SourceFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read data directory %s: %w", dir, err)
	}
	var files []models.SourceFile
	for _, e := range entries {
		if e.IsDir() || !l.Matches(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if !info.Mode().IsRegular() {
			continue
		}
		files = append(files, models.SourceFile{
			Name:       e.Name(),
			Path:       filepath.Join(dir, e.Name()),
			Size:       info.Size(),
			ModifiedAt: info.ModTime(),
		})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}
