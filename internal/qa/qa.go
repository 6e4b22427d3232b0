// Package qa answers questions from indexed documents.
package qa

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kalambet/docquiz/internal/composer"
	"github.com/kalambet/docquiz/internal/engine"
	"github.com/kalambet/docquiz/internal/retrieval"
)

const (
	DefaultTopK     = 5
	DefaultLanguage = "English"

	// NoInformation is returned when the model produced no answer.
	NoInformation = "The context does not contain information to answer this question."
)

// ErrNoContext is returned when nothing is indexed for the question.
var ErrNoContext = errors.New("no indexed context")

const instructions = `You answer questions using only the provided context.
If the context does not contain the answer, say so.
Cite the sources you used in the form [file_id.ext].
Respond in %s.`

// Retriever finds chunks relevant to a question.
type Retriever interface {
	Retrieve(ctx context.Context, query string, topK int) ([]retrieval.ChunkResult, error)
}

// Chatter is the generation capability.
type Chatter interface {
	Chat(ctx context.Context, model string, messages []engine.Message, jsonSchema *engine.Schema) (string, error)
}

// Answer is a generated answer with the chunks it was grounded on.
type Answer struct {
	Text    string                  `json:"answer"`
	Sources []retrieval.ChunkResult `json:"sources"`
}

type Answerer struct {
	retriever Retriever
	chat      Chatter
	model     string
	topK      int
	composer  *composer.Composer
	logger    *slog.Logger
}

// NewAnswerer creates an Answerer retrieving topK chunks per question.
// topK <= 0 selects DefaultTopK.
func NewAnswerer(retriever Retriever, chat Chatter, model string, topK int) *Answerer {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &Answerer{
		retriever: retriever,
		chat:      chat,
		model:     model,
		topK:      topK,
		composer:  composer.New(0),
		logger:    slog.Default(),
	}
}

// Answer retrieves context for query and asks the model to answer from it.
// A model failure is reported in the answer text rather than as an error.
func (a *Answerer) Answer(ctx context.Context, query, language string) (Answer, error) {
	if strings.TrimSpace(query) == "" {
		return Answer{}, errors.New("question is empty")
	}
	if language == "" {
		language = DefaultLanguage
	}

	chunks, err := a.retriever.Retrieve(ctx, query, a.topK)
	if err != nil {
		return Answer{}, fmt.Errorf("retrieving context: %w", err)
	}
	if len(chunks) == 0 {
		return Answer{}, ErrNoContext
	}

	msgs := a.composer.Compose(fmt.Sprintf(instructions, language), chunks, query)
	out, err := a.chat.Chat(ctx, a.model, msgs, nil)
	if err != nil {
		a.logger.Warn("answer generation failed", "error", err)
		return Answer{Text: fmt.Sprintf("Error generating answer: %v", err), Sources: chunks}, nil
	}
	out = strings.TrimSpace(out)
	if out == "" {
		out = NoInformation
	}
	return Answer{Text: out, Sources: chunks}, nil
}
