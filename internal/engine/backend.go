package engine

import (
	"context"
	"fmt"
)

// Backend names accepted by New.
const (
	BackendOllama = "ollama"
	BackendGemini = "gemini"
)

// BackendConfig selects and configures a backend.
type BackendConfig struct {
	Backend       string
	OllamaBaseURL string
	GeminiAPIKey  string
}

// New returns the configured backend. An empty backend selects Ollama.
func New(ctx context.Context, cfg BackendConfig) (Engine, error) {
	switch cfg.Backend {
	case "", BackendOllama:
		return NewOllamaEngine(cfg.OllamaBaseURL), nil
	case BackendGemini:
		return NewGeminiEngine(ctx, cfg.GeminiAPIKey)
	default:
		return nil, fmt.Errorf("unknown engine backend %q", cfg.Backend)
	}
}
