package retrieval

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
)

// Chunk is a piece of document text about to be indexed.
type Chunk struct {
	Text    string
	FileID  string
	FileExt string
	UID     string
}

// ID is the content-addressed record id of the chunk.
func (c Chunk) ID() string {
	return c.FileID + "_" + c.UID
}

// ContentHash returns the hex SHA-256 of a chunk's text.
func ContentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// TextEmbedder turns text into vectors.
type TextEmbedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Index is the deduplicating embedding store: it only embeds and writes
// chunks whose ids are not yet present in the backing VectorStore.
type Index struct {
	store    VectorStore
	embedder TextEmbedder
	logger   *slog.Logger
}

func NewIndex(store VectorStore, embedder TextEmbedder) *Index {
	return &Index{store: store, embedder: embedder, logger: slog.Default()}
}

// UpsertChunks writes the chunks whose ids are new and returns how many
// records were added. Repeating a call with the same chunks adds nothing.
func (ix *Index) UpsertChunks(ctx context.Context, chunks []Chunk) (int, error) {
	if len(chunks) == 0 {
		return 0, nil
	}

	ids := make([]string, 0, len(chunks))
	seen := make(map[string]bool, len(chunks))
	var unique []Chunk
	for _, c := range chunks {
		id := c.ID()
		if seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
		unique = append(unique, c)
	}

	existing, err := ix.store.ExistingIDs(ctx, ids)
	if err != nil {
		return 0, err
	}

	var fresh []Chunk
	for _, c := range unique {
		if !existing[c.ID()] {
			fresh = append(fresh, c)
		}
	}
	if len(fresh) == 0 {
		return 0, nil
	}

	texts := make([]string, len(fresh))
	for i, c := range fresh {
		texts[i] = c.Text
	}
	vectors, err := ix.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embedding %d chunks: %w", len(fresh), err)
	}
	if len(vectors) != len(fresh) {
		return 0, fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(fresh))
	}

	records := make([]Record, len(fresh))
	for i, c := range fresh {
		records[i] = Record{
			ID:        c.ID(),
			FileID:    c.FileID,
			FileExt:   c.FileExt,
			Hash:      ContentHash(c.Text),
			Text:      c.Text,
			Embedding: vectors[i],
		}
	}

	n, err := ix.store.Insert(ctx, records)
	if err != nil {
		return 0, err
	}
	ix.logger.Debug("chunks indexed", "submitted", len(chunks), "inserted", n)
	return n, nil
}

// Query returns the k records nearest to text. Blank text is a valid query
// that samples the index instead of failing.
func (ix *Index) Query(ctx context.Context, text string, k int) ([]ScoredRecord, error) {
	var vec []float32
	if strings.TrimSpace(text) != "" {
		v, err := ix.embedder.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		vec = v
	}
	return ix.store.Search(ctx, vec, k)
}

// DeleteByFile removes every record belonging to fileID.
func (ix *Index) DeleteByFile(ctx context.Context, fileID string) (int, error) {
	return ix.store.DeleteByFile(ctx, fileID)
}

// ClearAll removes every record.
func (ix *Index) ClearAll(ctx context.Context) error {
	return ix.store.Clear(ctx)
}

func (ix *Index) Count(ctx context.Context) (int, error) {
	return ix.store.Count(ctx)
}

func (ix *Index) CountByFile(ctx context.Context, fileID string) (int, error) {
	return ix.store.CountByFile(ctx, fileID)
}
