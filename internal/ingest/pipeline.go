// Package ingest turns document files into indexed chunks, skipping files
// whose content has not changed since they were last processed.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/kalambet/docquiz/internal/chunker"
	"github.com/kalambet/docquiz/internal/registry"
	"github.com/kalambet/docquiz/internal/retrieval"
)

const (
	DefaultMaxConcurrent = 5
	DefaultBatchSize     = 16
)

// Per-file outcomes.
const (
	StatusProcessed = "processed"
	StatusSkipped   = "skipped"
	StatusError     = "error"
)

// FileResult is the outcome of processing one file.
type FileResult struct {
	Status string `json:"status"`
	Chunks int    `json:"chunks"`
	Error  string `json:"error,omitempty"`
}

// ChangeTracker decides which files need processing and records the ones
// that were processed.
type ChangeTracker interface {
	Check(ctx context.Context, path string) (registry.Fingerprint, bool, error)
	Known(ctx context.Context, fileID string) (bool, error)
	Upsert(ctx context.Context, fp registry.Fingerprint, chunkCount int) error
}

// TextExtractor reads the text of a file.
type TextExtractor interface {
	Extract(ctx context.Context, path string) (string, error)
}

// ChunkIndex is the write side of the embedding index.
type ChunkIndex interface {
	UpsertChunks(ctx context.Context, chunks []retrieval.Chunk) (int, error)
	DeleteByFile(ctx context.Context, fileID string) (int, error)
}

// Options tunes a Pipeline. Zero values select the defaults.
type Options struct {
	MaxConcurrent int
	BatchSize     int
	ChunkSize     int
}

// Pipeline processes files concurrently with a bounded number in flight.
type Pipeline struct {
	tracker   ChangeTracker
	extractor TextExtractor
	index     ChunkIndex
	opts      Options
	logger    *slog.Logger
}

func NewPipeline(tracker ChangeTracker, extractor TextExtractor, index ChunkIndex, opts Options) *Pipeline {
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = DefaultMaxConcurrent
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = chunker.DefaultMaxChars
	}
	return &Pipeline{
		tracker:   tracker,
		extractor: extractor,
		index:     index,
		opts:      opts,
		logger:    slog.Default(),
	}
}

// ProcessFiles processes every path and returns the outcome keyed by file id.
// A failure in one file is recorded in its result and never affects the
// others. A file's registry record is only written after all of its chunks
// are indexed.
func (p *Pipeline) ProcessFiles(ctx context.Context, paths []string) map[string]FileResult {
	results := make(map[string]FileResult, len(paths))
	var mu sync.Mutex
	record := func(fileID string, r FileResult) {
		mu.Lock()
		results[fileID] = r
		mu.Unlock()
	}

	gate := semaphore.NewWeighted(int64(p.opts.MaxConcurrent))
	var g errgroup.Group
	for _, path := range paths {
		g.Go(func() error {
			fileID := registry.FileID(path)
			if err := gate.Acquire(ctx, 1); err != nil {
				record(fileID, FileResult{Status: StatusError, Error: err.Error()})
				return nil
			}
			defer gate.Release(1)

			r := p.processFile(ctx, path)
			switch r.Status {
			case StatusError:
				p.logger.Warn("ingest failed", "file_id", fileID, "error", r.Error)
			case StatusSkipped:
				p.logger.Info("ingest skipped", "file_id", fileID)
			default:
				p.logger.Info("ingest processed", "file_id", fileID, "chunks", r.Chunks)
			}
			record(fileID, r)
			return nil
		})
	}
	g.Wait()
	return results
}

func (p *Pipeline) processFile(ctx context.Context, path string) FileResult {
	fail := func(err error) FileResult {
		return FileResult{Status: StatusError, Error: err.Error()}
	}

	fp, changed, err := p.tracker.Check(ctx, path)
	if err != nil {
		return fail(err)
	}
	if !changed {
		return FileResult{Status: StatusSkipped}
	}

	text, err := p.extractor.Extract(ctx, path)
	if err != nil {
		return fail(fmt.Errorf("extracting %s: %w", fp.FileID, err))
	}

	known, err := p.tracker.Known(ctx, fp.FileID)
	if err != nil {
		return fail(err)
	}
	if known {
		n, err := p.index.DeleteByFile(ctx, fp.FileID)
		if err != nil {
			return fail(fmt.Errorf("removing stale chunks of %s: %w", fp.FileID, err))
		}
		p.logger.Debug("removed stale chunks", "file_id", fp.FileID, "count", n)
	}

	if strings.TrimSpace(text) == "" {
		if err := p.tracker.Upsert(ctx, fp, 0); err != nil {
			return fail(fmt.Errorf("recording %s: %w", fp.FileID, err))
		}
		return FileResult{Status: StatusProcessed}
	}

	chunks := p.chunks(fp, text)
	for start := 0; start < len(chunks); start += p.opts.BatchSize {
		if err := ctx.Err(); err != nil {
			return fail(err)
		}
		end := min(start+p.opts.BatchSize, len(chunks))
		if _, err := p.index.UpsertChunks(ctx, chunks[start:end]); err != nil {
			return fail(fmt.Errorf("indexing %s: %w", fp.FileID, err))
		}
	}

	if err := p.tracker.Upsert(ctx, fp, len(chunks)); err != nil {
		return fail(fmt.Errorf("recording %s: %w", fp.FileID, err))
	}
	return FileResult{Status: StatusProcessed, Chunks: len(chunks)}
}

// chunks splits text and tags each piece with a uid built from its position
// and the file hash, so reprocessing identical content yields identical ids.
func (p *Pipeline) chunks(fp registry.Fingerprint, text string) []retrieval.Chunk {
	pieces := chunker.ChunkText(text, p.opts.ChunkSize)
	prefix := fp.Hash
	if len(prefix) > 12 {
		prefix = prefix[:12]
	}
	out := make([]retrieval.Chunk, len(pieces))
	for i, t := range pieces {
		out[i] = retrieval.Chunk{
			Text:    t,
			FileID:  fp.FileID,
			FileExt: fp.Ext,
			UID:     fmt.Sprintf("%d-%s", i, prefix),
		}
	}
	return out
}
