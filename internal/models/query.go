package models

// Match is a chunk returned by similarity search with its score.
// Score is cosine similarity in [-1, 1]; higher is closer.
type Match struct {
	Chunk *Chunk  `json:"chunk"`
	Score float64 `json:"score"`
	Rank  int     `json:"rank"`
}

// Source is the reference shown to the user alongside an answer.
type Source struct {
	Source  string  `json:"source"`
	Page    int     `json:"page"`
	Score   float64 `json:"score"`
	Snippet string  `json:"snippet,omitempty"`
}

// Sources derives display references from matches, in match order.
func Sources(matches []*Match) []Source {
	out := make([]Source, 0, len(matches))
	for _, m := range matches {
		if m == nil || m.Chunk == nil {
			continue
		}
		out = append(out, Source{
			Source:  m.Chunk.Metadata.Source,
			Page:    m.Chunk.Metadata.Page,
			Score:   m.Score,
			Snippet: m.Chunk.Text,
		})
	}
	return out
}
