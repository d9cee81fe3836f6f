package rag

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/hyperjump/pdfqa/internal/loader"
	"github.com/hyperjump/pdfqa/internal/models"
	"go.uber.org/zap"
)

var (
	// ErrInvalidName is returned for document names that are not a plain file name
	// with an accepted extension.
	ErrInvalidName = errors.New("invalid document name")
	// ErrDocumentNotFound is returned when removing a file that is not in the data directory.
	ErrDocumentNotFound = errors.New("document not found")
)

// Documents lists the matching files in the data directory. A missing directory
// yields an empty list.
func (p *Pipeline) Documents() ([]models.SourceFile, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	files, err := p.loader.ListFiles(p.cfg.Data.Dir)
	if err != nil && errors.Is(err, os.ErrNotExist) {
		return []models.SourceFile{}, nil
	}
	return files, err
}

// SaveDocument writes r into the data directory as name, replacing any file with
// that name. The index is not rebuilt; call Rebuild once all files are saved.
func (p *Pipeline) SaveDocument(name string, r io.Reader) (*models.SourceFile, error) {
	if err := p.checkName(name); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	dir := p.cfg.Data.Dir
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+name+".upload-")
	if err != nil {
		return nil, fmt.Errorf("create upload file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("write %s: %w", name, err)
	}
	dst := filepath.Join(dir, name)
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return nil, fmt.Errorf("save %s: %w", name, err)
	}
	info, err := os.Stat(dst)
	if err != nil {
		return nil, err
	}
	p.logger.Info("document saved", zap.String("path", dst), zap.Int64("bytes", info.Size()))
	return &models.SourceFile{Name: name, Path: dst, Size: info.Size(), ModifiedAt: info.ModTime()}, nil
}

// RemoveDocument deletes name from the data directory and rebuilds the index from
// the files that remain.
func (p *Pipeline) RemoveDocument(ctx context.Context, name string) (*loader.Report, error) {
	if err := p.checkName(name); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	path := filepath.Join(p.cfg.Data.Dir, name)
	if err := os.Remove(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrDocumentNotFound, name)
		}
		return nil, fmt.Errorf("remove %s: %w", name, err)
	}
	p.logger.Info("document removed", zap.String("path", path))
	return p.rebuildLocked(ctx)
}

func (p *Pipeline) checkName(name string) error {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if !p.loader.Matches(name) {
		return fmt.Errorf("%w: %q has an unsupported extension", ErrInvalidName, name)
	}
	return nil
}
