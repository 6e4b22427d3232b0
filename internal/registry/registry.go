// Package registry tracks content fingerprints of ingested files so that
// unchanged files are not reprocessed.
package registry

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kalambet/docquiz/internal/storage"
)

// RecordStore abstracts persistence of file records.
type RecordStore interface {
	GetFileRecord(ctx context.Context, fileID string) (storage.FileRecord, error)
	UpsertFileRecord(ctx context.Context, r storage.FileRecord) error
}

// Fingerprint is the identity and content state of a file at check time.
type Fingerprint struct {
	FileID  string
	Path    string
	Ext     string
	Hash    string
	ModTime int64 // unix nanoseconds
}

// FileID derives the stable identity of a file: its base name without extension.
func FileID(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// FileExt returns the lower-cased extension without the dot, or "unknown".
func FileExt(path string) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	if ext == "" {
		return "unknown"
	}
	return ext
}

// Compute hashes the full file content with SHA-256 and reads its mtime.
func Compute(path string) (Fingerprint, error) {
	f, err := os.Open(path)
	if err != nil {
		return Fingerprint{}, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return Fingerprint{}, fmt.Errorf("stat %s: %w", path, err)
	}

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return Fingerprint{}, fmt.Errorf("hashing %s: %w", path, err)
	}

	return Fingerprint{
		FileID:  FileID(path),
		Path:    path,
		Ext:     FileExt(path),
		Hash:    hex.EncodeToString(h.Sum(nil)),
		ModTime: info.ModTime().UnixNano(),
	}, nil
}

// Registry decides whether a file needs processing and records processed files.
type Registry struct {
	store RecordStore
	now   func() time.Time
}

func New(store RecordStore) *Registry {
	return &Registry{store: store, now: time.Now}
}

// Check fingerprints path and reports whether it differs from the stored
// record. A file with no record is changed. A hash mismatch is always a
// change, and so is an mtime mismatch.
func (r *Registry) Check(ctx context.Context, path string) (Fingerprint, bool, error) {
	fp, err := Compute(path)
	if err != nil {
		return Fingerprint{}, false, err
	}

	rec, err := r.store.GetFileRecord(ctx, fp.FileID)
	if errors.Is(err, storage.ErrNotFound) {
		return fp, true, nil
	}
	if err != nil {
		return Fingerprint{}, false, fmt.Errorf("loading record for %s: %w", fp.FileID, err)
	}

	changed := rec.Hash != fp.Hash || rec.ModifiedAt != fp.ModTime
	return fp, changed, nil
}

// HasChanged is Check without the fingerprint.
func (r *Registry) HasChanged(ctx context.Context, path string) (bool, error) {
	_, changed, err := r.Check(ctx, path)
	return changed, err
}

// Known reports whether a record exists for fileID.
func (r *Registry) Known(ctx context.Context, fileID string) (bool, error) {
	_, err := r.store.GetFileRecord(ctx, fileID)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// Upsert records fp as processed with chunkCount chunks, replacing any prior
// record for the same file id. The fingerprint should be the one taken before
// processing so that edits made during processing are detected next time.
func (r *Registry) Upsert(ctx context.Context, fp Fingerprint, chunkCount int) error {
	return r.store.UpsertFileRecord(ctx, storage.FileRecord{
		FileID:      fp.FileID,
		Path:        fp.Path,
		Ext:         fp.Ext,
		Hash:        fp.Hash,
		ModifiedAt:  fp.ModTime,
		ChunkCount:  chunkCount,
		ProcessedAt: r.now(),
	})
}
