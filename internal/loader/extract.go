package loader

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ExtractPages reads the file at path and returns its text split into pages.
// PDFs yield one entry per page, spreadsheets one per sheet, presentations one per
// slide. Formats without pagination yield a single entry.
func ExtractPages(path string) ([]string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return ExtractPagesBytes(content, strings.ToLower(filepath.Ext(path)))
}

// ExtractPagesBytes extracts pages from content based on ext (with leading dot).
// Unknown extensions are treated as plain text.
func ExtractPagesBytes(content []byte, ext string) ([]string, error) {
	switch ext {
	case ".pdf":
		return extractPDF(content)
	case ".xlsx":
		return extractExcel(content)
	case ".pptx":
		return extractPPTX(content)
	case ".docx":
		text, err := extractDOCX(content)
		if err != nil {
			return nil, err
		}
		return []string{text}, nil
	default:
		return []string{extractPlain(content)}, nil
	}
}
