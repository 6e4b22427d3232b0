package engine

import "context"

// Engine abstracts a language model backend. The quiz generator, the
// answerer and the embedder depend on this interface rather than on a
// concrete Ollama or Gemini client.
type Engine interface {
	// Chat sends messages to model and returns the assistant's reply.
	// A non-nil jsonSchema asks the backend for JSON output.
	Chat(ctx context.Context, model string, messages []Message, jsonSchema *Schema) (string, error)

	// Embed returns the embedding vector for text.
	Embed(ctx context.Context, model string, text string) ([]float32, error)

	// IsRunning reports whether the backend is reachable.
	IsRunning(ctx context.Context) bool

	ListModels(ctx context.Context) ([]string, error)
	HasModel(ctx context.Context, name string) bool

	// PullModel downloads a model. onProgress may be nil.
	PullModel(ctx context.Context, name string, onProgress func(PullProgress)) error
}
