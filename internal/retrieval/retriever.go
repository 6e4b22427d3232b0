package retrieval

import (
	"context"
	"strings"
)

// ChunkResult is a retrieved chunk. Score is the vector distance to the
// query; lower is more relevant.
type ChunkResult struct {
	ID      string  `json:"id"`
	FileID  string  `json:"file_id"`
	FileExt string  `json:"file_ext"`
	Text    string  `json:"text"`
	Score   float32 `json:"score"`
}

// Searcher is the query side of the embedding index.
type Searcher interface {
	Query(ctx context.Context, text string, k int) ([]ScoredRecord, error)
}

// Retriever normalizes queries and shapes index results.
type Retriever struct {
	index Searcher
}

// NewRetriever creates a Retriever over the given index.
func NewRetriever(index Searcher) *Retriever {
	return &Retriever{index: index}
}

// NormalizeQuery lowercases, trims and collapses internal whitespace.
func NormalizeQuery(q string) string {
	return strings.Join(strings.Fields(strings.ToLower(q)), " ")
}

// Retrieve returns up to topK chunks for query, most relevant first. An
// empty query samples the index broadly.
func (r *Retriever) Retrieve(ctx context.Context, query string, topK int) ([]ChunkResult, error) {
	scored, err := r.index.Query(ctx, NormalizeQuery(query), topK)
	if err != nil {
		return nil, err
	}

	chunks := make([]ChunkResult, len(scored))
	for i, s := range scored {
		chunks[i] = ChunkResult{
			ID:      s.ID,
			FileID:  s.FileID,
			FileExt: s.FileExt,
			Text:    s.Text,
			Score:   s.Distance,
		}
	}
	return chunks, nil
}
