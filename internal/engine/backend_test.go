package engine

import (
	"context"
	"testing"
)

func TestNew_DefaultsToOllama(t *testing.T) {
	for _, backend := range []string{"", BackendOllama} {
		e, err := New(context.Background(), BackendConfig{Backend: backend, OllamaBaseURL: "http://localhost:11434"})
		if err != nil {
			t.Fatalf("New(%q): %v", backend, err)
		}
		if _, ok := e.(*OllamaEngine); !ok {
			t.Errorf("New(%q) returned %T, want *OllamaEngine", backend, e)
		}
	}
}

func TestNew_GeminiRequiresKey(t *testing.T) {
	if _, err := New(context.Background(), BackendConfig{Backend: BackendGemini}); err == nil {
		t.Error("expected error for missing gemini api key")
	}
}

func TestNew_UnknownBackend(t *testing.T) {
	if _, err := New(context.Background(), BackendConfig{Backend: "mlx"}); err == nil {
		t.Error("expected error for unknown backend")
	}
}
