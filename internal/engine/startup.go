package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// ErrNotRunning is returned by EnsureReady when the backend is unreachable.
var ErrNotRunning = errors.New("language model backend is not reachable")

// EnsureReady checks that e is reachable and that every named model is
// available, pulling missing ones. Progress is written to w. Empty and
// repeated names are ignored.
func EnsureReady(ctx context.Context, e Engine, w io.Writer, models ...string) error {
	if !e.IsRunning(ctx) {
		return ErrNotRunning
	}

	seen := make(map[string]bool, len(models))
	for _, model := range models {
		if model == "" || seen[model] {
			continue
		}
		seen[model] = true

		if e.HasModel(ctx, model) {
			fmt.Fprintf(w, "model %s: ready\n", model)
			continue
		}

		fmt.Fprintf(w, "model %s: pulling...\n", model)
		last := ""
		err := e.PullModel(ctx, model, func(p PullProgress) {
			line := p.Status
			if p.Total > 0 {
				line = fmt.Sprintf("%s %.0f%%", p.Status, float64(p.Completed)/float64(p.Total)*100)
			}
			if line != last {
				fmt.Fprintf(w, "  %s\n", line)
				last = line
			}
		})
		if err != nil {
			return fmt.Errorf("pulling model %s: %w", model, err)
		}
		fmt.Fprintf(w, "model %s: ready\n", model)
	}
	return nil
}
