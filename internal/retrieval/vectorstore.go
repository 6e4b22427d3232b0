package retrieval

import (
	"context"
	"time"
)

// VectorStore is the interface for vector storage and similarity search
// backends. SQLiteStore is the default; PGVectorStore serves deployments
// that already run Postgres with the pgvector extension.
//
// Implementations must be safe for concurrent use and must never insert a
// record whose id is already present.
type VectorStore interface {
	// Insert adds records whose ids are not yet stored and returns how many
	// were actually written.
	Insert(ctx context.Context, records []Record) (int, error)

	// ExistingIDs returns the subset of ids already stored.
	ExistingIDs(ctx context.Context, ids []string) (map[string]bool, error)

	// Search returns up to topK records ordered by ascending cosine distance.
	// A zero query vector is valid: it returns a sample dealt round-robin
	// across files, every record at distance 1.
	Search(ctx context.Context, vector []float32, topK int) ([]ScoredRecord, error)

	// DeleteByFile removes every record of the given file and returns the count.
	DeleteByFile(ctx context.Context, fileID string) (int, error)

	// Clear removes every record.
	Clear(ctx context.Context) error

	// Count returns the number of stored records.
	Count(ctx context.Context) (int, error)

	// CountByFile returns the number of records stored for one file.
	CountByFile(ctx context.Context, fileID string) (int, error)
}

// Record is one embedded chunk.
type Record struct {
	ID        string
	FileID    string
	FileExt   string
	Hash      string
	Text      string
	Embedding []float32
	CreatedAt time.Time
}

// ScoredRecord is a Record with its distance to the query vector. Lower is
// more relevant.
type ScoredRecord struct {
	Record
	Distance float32
}
