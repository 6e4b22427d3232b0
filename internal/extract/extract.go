// Package extract turns document files into plain text for chunking.
package extract

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrUnsupported is returned for file types with no registered extractor.
var ErrUnsupported = errors.New("unsupported file type")

// Extractor reads the text content of one file format.
type Extractor interface {
	Extract(ctx context.Context, path string) (string, error)
}

// ExtractorFunc adapts a function to Extractor.
type ExtractorFunc func(ctx context.Context, path string) (string, error)

func (f ExtractorFunc) Extract(ctx context.Context, path string) (string, error) {
	return f(ctx, path)
}

// Registry dispatches extraction by lowercase file extension.
type Registry struct {
	byExt map[string]Extractor
}

// NewRegistry returns a Registry with the built-in text, pdf, docx and xlsx
// extractors.
func NewRegistry() *Registry {
	r := &Registry{byExt: make(map[string]Extractor)}
	r.Register("txt", ExtractorFunc(plainText))
	r.Register("md", ExtractorFunc(plainText))
	r.Register("pdf", ExtractorFunc(pdfText))
	r.Register("docx", ExtractorFunc(docxText))
	r.Register("xlsx", ExtractorFunc(xlsxText))
	return r
}

// Register sets the extractor for ext, replacing any previous one.
func (r *Registry) Register(ext string, e Extractor) {
	r.byExt[strings.ToLower(strings.TrimPrefix(ext, "."))] = e
}

// Supports reports whether ext has an extractor.
func (r *Registry) Supports(ext string) bool {
	_, ok := r.byExt[strings.ToLower(strings.TrimPrefix(ext, "."))]
	return ok
}

// Extract returns the text of the file at path.
func (r *Registry) Extract(ctx context.Context, path string) (string, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	e, ok := r.byExt[ext]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupported, ext)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return e.Extract(ctx, path)
}

func plainText(_ context.Context, path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", filepath.Base(path), err)
	}
	return string(b), nil
}
