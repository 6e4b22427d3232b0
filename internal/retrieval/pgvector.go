package retrieval

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// Compile-time check that PGVectorStore implements VectorStore.
var _ VectorStore = (*PGVectorStore)(nil)

const pgSchema = `
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS embeddings (
    id         TEXT PRIMARY KEY,
    file_id    TEXT NOT NULL,
    file_ext   TEXT NOT NULL,
    hash       TEXT NOT NULL,
    text_chunk TEXT NOT NULL,
    embedding  vector NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_embeddings_file_id ON embeddings(file_id);
`

// PGVectorStore keeps embeddings in Postgres and lets pgvector compute
// cosine distance with the <=> operator.
type PGVectorStore struct {
	pool *pgxpool.Pool
}

// OpenPGVectorStore connects to Postgres and creates the embeddings table.
func OpenPGVectorStore(ctx context.Context, connString string) (*PGVectorStore, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parsing postgres url: %w", err)
	}
	cfg.MaxConns = 10
	cfg.MaxConnLifetime = time.Hour
	cfg.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating postgres pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}

	if _, err := pool.Exec(ctx, pgSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("creating embeddings schema: %w", err)
	}
	return &PGVectorStore{pool: pool}, nil
}

// Close releases the connection pool.
func (s *PGVectorStore) Close() {
	s.pool.Close()
}

func (s *PGVectorStore) Insert(ctx context.Context, records []Record) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	batch := &pgx.Batch{}
	for _, r := range records {
		createdAt := r.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		batch.Queue(`
			INSERT INTO embeddings (id, file_id, file_ext, hash, text_chunk, embedding, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (id) DO NOTHING`,
			r.ID, r.FileID, r.FileExt, r.Hash, r.Text, pgvector.NewVector(r.Embedding), createdAt,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	inserted := 0
	for i := range records {
		tag, err := br.Exec()
		if err != nil {
			return inserted, fmt.Errorf("inserting record %s: %w", records[i].ID, err)
		}
		inserted += int(tag.RowsAffected())
	}
	return inserted, nil
}

func (s *PGVectorStore) ExistingIDs(ctx context.Context, ids []string) (map[string]bool, error) {
	existing := make(map[string]bool)
	if len(ids) == 0 {
		return existing, nil
	}
	rows, err := s.pool.Query(ctx, "SELECT id FROM embeddings WHERE id = ANY($1)", ids)
	if err != nil {
		return nil, fmt.Errorf("querying existing ids: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		existing[id] = true
	}
	return existing, rows.Err()
}

func (s *PGVectorStore) Search(ctx context.Context, vector []float32, topK int) ([]ScoredRecord, error) {
	if topK <= 0 {
		return nil, nil
	}

	var rows pgx.Rows
	var err error
	if norm(vector) == 0 {
		// Cosine distance is undefined for a zero vector; deal a sample
		// round-robin over files, random within each file.
		rows, err = s.pool.Query(ctx, `
			SELECT id, file_id, file_ext, hash, text_chunk, embedding, created_at, 1.0::float8 FROM (
				SELECT *, ROW_NUMBER() OVER (PARTITION BY file_id ORDER BY random()) AS pick
				FROM embeddings
			) AS s ORDER BY pick, file_id LIMIT $1`, topK)
	} else {
		rows, err = s.pool.Query(ctx, `
			SELECT id, file_id, file_ext, hash, text_chunk, embedding, created_at, (embedding <=> $1)::float8 AS distance
			FROM embeddings ORDER BY distance, id LIMIT $2`,
			pgvector.NewVector(vector), topK)
	}
	if err != nil {
		return nil, fmt.Errorf("searching embeddings: %w", err)
	}
	defer rows.Close()

	var results []ScoredRecord
	for rows.Next() {
		var r ScoredRecord
		var vec pgvector.Vector
		var distance float64
		if err := rows.Scan(&r.ID, &r.FileID, &r.FileExt, &r.Hash, &r.Text, &vec, &r.CreatedAt, &distance); err != nil {
			return nil, fmt.Errorf("scanning embedding row: %w", err)
		}
		r.Embedding = vec.Slice()
		r.Distance = float32(distance)
		results = append(results, r)
	}
	return results, rows.Err()
}

func (s *PGVectorStore) DeleteByFile(ctx context.Context, fileID string) (int, error) {
	tag, err := s.pool.Exec(ctx, "DELETE FROM embeddings WHERE file_id = $1", fileID)
	if err != nil {
		return 0, fmt.Errorf("deleting records of %s: %w", fileID, err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *PGVectorStore) Clear(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, "TRUNCATE embeddings"); err != nil {
		return fmt.Errorf("clearing embeddings: %w", err)
	}
	return nil
}

func (s *PGVectorStore) Count(ctx context.Context) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM embeddings").Scan(&count)
	return count, err
}

func (s *PGVectorStore) CountByFile(ctx context.Context, fileID string) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM embeddings WHERE file_id = $1", fileID).Scan(&count)
	return count, err
}
