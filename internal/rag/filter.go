package rag

import (
	"sort"

	"github.com/hyperjump/pdfqa/internal/models"
)

// FilterMatches returns the matches scoring at least threshold, highest score first.
// Equal scores keep their input order. The input is not modified.
func FilterMatches(matches []*models.Match, threshold float64) []*models.Match {
	kept := make([]*models.Match, 0, len(matches))
	for _, m := range matches {
		if m != nil && m.Score >= threshold {
			kept = append(kept, m)
		}
	}
	sort.SliceStable(kept, func(i, j int) bool { return kept[i].Score > kept[j].Score })
	return kept
}
