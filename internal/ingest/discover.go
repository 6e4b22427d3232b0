package ingest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DefaultExtensions are the file types picked up from an upload directory.
var DefaultExtensions = []string{"pdf", "txt", "md", "docx", "xlsx", "jpg", "png", "mp3", "mp4", "m4a", "wav"}

// DiscoverFiles lists the regular files directly inside dir whose extension
// is in exts, sorted by name. A nil exts means DefaultExtensions.
func DiscoverFiles(dir string, exts []string) ([]string, error) {
	if exts == nil {
		exts = DefaultExtensions
	}
	allowed := make(map[string]bool, len(exts))
	for _, e := range exts {
		allowed[strings.ToLower(strings.TrimPrefix(e, "."))] = true
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", dir, err)
	}

	var paths []string
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(e.Name()), "."))
		if allowed[ext] {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	return paths, nil
}
