// Package cli formats pipeline results for the command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/hyperjump/pdfqa/internal/loader"
	"github.com/hyperjump/pdfqa/internal/models"
	"github.com/hyperjump/pdfqa/internal/rag"
	"github.com/hyperjump/pdfqa/pkg/utils"
)

// OutputFormat selects text or JSON output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat validates a --output flag value.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(s) {
	case OutputText, "":
		return OutputText, nil
	case OutputJSON:
		return OutputJSON, nil
	default:
		return "", fmt.Errorf("invalid output format %q (use text or json)", s)
	}
}

// snippetLen bounds the source excerpt printed under a text answer.
const snippetLen = 160

// WriteAnswer writes a query result to w in the given format.
func WriteAnswer(w io.Writer, result *models.QueryResult, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, result)
	}
	fmt.Fprintf(w, "\n%s\n\n", result.Answer)
	if len(result.Sources) > 0 {
		fmt.Fprintln(w, "Sources:")
		for i, s := range result.Sources {
			fmt.Fprintf(w, "  %d. %s, page %d (score %.4f)\n", i+1, filepath.Base(s.Source), s.Page+1, s.Score)
			if s.Snippet != "" {
				fmt.Fprintf(w, "     %s\n", utils.Truncate(s.Snippet, snippetLen))
			}
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintf(w, "Answered in %dms\n", result.QueryTime)
	return nil
}

// WriteStatus writes pipeline status to w in the given format.
func WriteStatus(w io.Writer, st *rag.Status, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, st)
	}
	ready := "no index"
	if st.Ready {
		ready = "loaded"
	} else if st.Chunks > 0 {
		ready = "built, not loaded"
	}
	fmt.Fprintf(w, "Index:           %s (%s)\n", st.IndexPath, ready)
	fmt.Fprintf(w, "Index type:      %s\n", st.IndexType)
	fmt.Fprintf(w, "Data directory:  %s\n", st.DataDir)
	fmt.Fprintf(w, "Embedding model: %s (%d dims)\n", st.EmbeddingModel, st.Dimensions)
	if st.LLMModel != "" {
		fmt.Fprintf(w, "LLM model:       %s\n", st.LLMModel)
	}
	fmt.Fprintf(w, "Sources:         %d\n", st.Sources)
	fmt.Fprintf(w, "Chunks:          %d\n", st.Chunks)
	if !st.BuiltAt.IsZero() {
		fmt.Fprintf(w, "Built:           %s\n", st.BuiltAt.Local().Format(time.RFC3339))
	}
	if st.Stale {
		fmt.Fprintf(w, "Stale:           yes (%s); run 'pdfqa build'\n", st.StaleReason)
	}
	fmt.Fprintf(w, "Disk usage:      index %s, data %s\n", FormatBytes(st.IndexBytes), FormatBytes(st.DataBytes))
	return nil
}

// WriteReport summarises a directory load.
func WriteReport(w io.Writer, report *loader.Report, chunks int) {
	fmt.Fprintf(w, "Indexed %d file(s), %d page(s), %d chunk(s)\n", report.Files, report.Documents, chunks)
	for _, f := range report.Skipped {
		fmt.Fprintf(w, "  skipped %s: %s\n", filepath.Base(f.Path), f.Error)
	}
}

// FormatBytes renders n with a binary unit suffix.
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
