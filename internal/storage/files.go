package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// GetFileRecord returns the stored fingerprint for fileID or ErrNotFound.
func (s *Store) GetFileRecord(ctx context.Context, fileID string) (FileRecord, error) {
	var r FileRecord
	var processedAt string
	err := s.db.QueryRowContext(ctx, `
		SELECT file_id, path, ext, hash, modified_at, chunk_count, processed_at
		FROM files WHERE file_id = ?`, fileID,
	).Scan(&r.FileID, &r.Path, &r.Ext, &r.Hash, &r.ModifiedAt, &r.ChunkCount, &processedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return FileRecord{}, ErrNotFound
	}
	if err != nil {
		return FileRecord{}, fmt.Errorf("getting file record %s: %w", fileID, err)
	}
	if r.ProcessedAt, err = parseTime("processed_at", processedAt); err != nil {
		return FileRecord{}, err
	}
	return r, nil
}

// UpsertFileRecord inserts or replaces the single record for r.FileID.
func (s *Store) UpsertFileRecord(ctx context.Context, r FileRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO files (file_id, path, ext, hash, modified_at, chunk_count, processed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(file_id) DO UPDATE SET
			path = excluded.path,
			ext = excluded.ext,
			hash = excluded.hash,
			modified_at = excluded.modified_at,
			chunk_count = excluded.chunk_count,
			processed_at = excluded.processed_at`,
		r.FileID, r.Path, r.Ext, r.Hash, r.ModifiedAt, r.ChunkCount, formatTime(r.ProcessedAt),
	)
	if err != nil {
		return fmt.Errorf("upserting file record %s: %w", r.FileID, err)
	}
	return nil
}

// ListFileRecords returns every registry record ordered by file id.
func (s *Store) ListFileRecords(ctx context.Context) ([]FileRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT file_id, path, ext, hash, modified_at, chunk_count, processed_at
		FROM files ORDER BY file_id`)
	if err != nil {
		return nil, fmt.Errorf("listing file records: %w", err)
	}
	defer rows.Close()

	var records []FileRecord
	for rows.Next() {
		var r FileRecord
		var processedAt string
		if err := rows.Scan(&r.FileID, &r.Path, &r.Ext, &r.Hash, &r.ModifiedAt, &r.ChunkCount, &processedAt); err != nil {
			return nil, err
		}
		if r.ProcessedAt, err = parseTime("processed_at", processedAt); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// DeleteAllFileRecords forgets every fingerprint so the next ingestion
// reprocesses all files. Only called on an explicit index reset.
func (s *Store) DeleteAllFileRecords(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM files"); err != nil {
		return fmt.Errorf("clearing file records: %w", err)
	}
	return nil
}
