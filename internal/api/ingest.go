package api

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/kalambet/docquiz/internal/ingest"
)

const maxUploadSize = 50 << 20 // 50MB

// handleIngest stores any uploaded "file" parts in the upload directory, then
// processes the whole directory. Unchanged files come back as skipped.
func handleIngest(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
			r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
			if err := r.ParseMultipartForm(8 << 20); err != nil {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid upload: %v", err)
				return
			}
			for _, fh := range r.MultipartForm.File["file"] {
				if err := saveUpload(deps.UploadDir, fh.Filename, func() (io.ReadCloser, error) { return fh.Open() }); err != nil {
					httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
					return
				}
			}
		}

		results, err := deps.Ingester.RunOnce(r.Context())
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "ingestion failed: %v", err)
			return
		}
		if len(results) == 0 {
			httpError(w, http.StatusNotFound, "not_found", "no documents found")
			return
		}
		writeJSON(w, map[string]any{"files": results})
	}
}

func saveUpload(dir, name string, open func() (io.ReadCloser, error)) error {
	name = filepath.Base(name)
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	if name == "." || name == string(filepath.Separator) || !slices.Contains(ingest.DefaultExtensions, ext) {
		return fmt.Errorf("unsupported file %q", name)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating upload directory: %w", err)
	}

	src, err := open()
	if err != nil {
		return fmt.Errorf("reading upload %q: %w", name, err)
	}
	defer src.Close()

	dst, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		return fmt.Errorf("saving upload %q: %w", name, err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return fmt.Errorf("saving upload %q: %w", name, err)
	}
	return dst.Close()
}
