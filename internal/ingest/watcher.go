package ingest

import (
	"context"
	"log/slog"
	"time"
)

// Watcher polls an upload directory and feeds new or changed files to a
// Pipeline. Unchanged files are skipped by the pipeline's change tracker,
// so each poll only costs a hash per file.
type Watcher struct {
	pipeline *Pipeline
	dir      string
	exts     []string
	poll     time.Duration
	logger   *slog.Logger
}

// NewWatcher creates a Watcher for dir. If pollInterval is <= 0, it defaults
// to 30s. A nil exts means DefaultExtensions.
func NewWatcher(p *Pipeline, dir string, exts []string, pollInterval time.Duration) *Watcher {
	if pollInterval <= 0 {
		pollInterval = 30 * time.Second
	}
	return &Watcher{
		pipeline: p,
		dir:      dir,
		exts:     exts,
		poll:     pollInterval,
		logger:   slog.Default(),
	}
}

// Run polls until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		if _, err := w.RunOnce(ctx); err != nil {
			w.logger.Error("watch iteration failed", "dir", w.dir, "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(w.poll):
		}
	}
}

// RunOnce scans the directory once and returns the per-file results.
func (w *Watcher) RunOnce(ctx context.Context) (map[string]FileResult, error) {
	paths, err := DiscoverFiles(w.dir, w.exts)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return map[string]FileResult{}, nil
	}
	results := w.pipeline.ProcessFiles(ctx, paths)
	processed := 0
	for _, r := range results {
		if r.Status == StatusProcessed {
			processed++
		}
	}
	if processed > 0 {
		w.logger.Info("watch picked up files", "dir", w.dir, "processed", processed)
	}
	return results, nil
}
