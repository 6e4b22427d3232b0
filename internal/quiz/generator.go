// Package quiz generates quizzes from indexed documents, grades answers and
// runs quiz sessions.
package quiz

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kalambet/docquiz/internal/composer"
	"github.com/kalambet/docquiz/internal/engine"
	"github.com/kalambet/docquiz/internal/retrieval"
	"github.com/kalambet/docquiz/internal/storage"
)

const (
	DefaultNumQuestions  = 3
	DefaultContextChunks = 8
	DefaultMaxRetries    = 2
	DefaultLanguage      = "English"
)

// Chatter is the generation capability.
type Chatter interface {
	Chat(ctx context.Context, model string, messages []engine.Message, jsonSchema *engine.Schema) (string, error)
}

// ChunkRetriever finds context chunks for a topic.
type ChunkRetriever interface {
	Retrieve(ctx context.Context, query string, topK int) ([]retrieval.ChunkResult, error)
}

// QuizCreator persists a quiz with its questions.
type QuizCreator interface {
	CreateQuiz(ctx context.Context, questions []storage.Question) (storage.Quiz, error)
}

// Request describes a quiz to generate. An empty Topic samples the whole
// index.
type Request struct {
	Topic        string `json:"topic"`
	NumQuestions int    `json:"num_questions"`
	Language     string `json:"language"`
}

// GeneratorOptions tunes a Generator. Zero values select the defaults; use a
// negative MaxRetries for no retries.
type GeneratorOptions struct {
	ContextChunks int
	MaxRetries    int
}

type Generator struct {
	retriever ChunkRetriever
	store     QuizCreator
	chat      Chatter
	model     string
	composer  *composer.Composer
	opts      GeneratorOptions
	logger    *slog.Logger
}

func NewGenerator(retriever ChunkRetriever, store QuizCreator, chat Chatter, model string, opts GeneratorOptions) *Generator {
	if opts.ContextChunks <= 0 {
		opts.ContextChunks = DefaultContextChunks
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = DefaultMaxRetries
	} else if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	return &Generator{
		retriever: retriever,
		store:     store,
		chat:      chat,
		model:     model,
		composer:  composer.New(0),
		opts:      opts,
		logger:    slog.Default(),
	}
}

// Generate retrieves context for the topic, asks the model for questions and
// persists the quiz. Replies that cannot be coerced into questions are
// retried; when every attempt fails the quiz is persisted empty. An
// unreachable model is returned as an error.
func (g *Generator) Generate(ctx context.Context, req Request) (storage.Quiz, error) {
	if req.NumQuestions <= 0 {
		req.NumQuestions = DefaultNumQuestions
	}
	if req.Language == "" {
		req.Language = DefaultLanguage
	}

	chunks, err := g.retriever.Retrieve(ctx, req.Topic, g.opts.ContextChunks)
	if err != nil {
		return storage.Quiz{}, fmt.Errorf("retrieving context: %w", err)
	}
	if len(chunks) == 0 {
		g.logger.Warn("no indexed content for quiz", "topic", req.Topic)
		return g.store.CreateQuiz(ctx, nil)
	}

	msgs := g.composer.Compose(
		fmt.Sprintf(generationInstructions, req.NumQuestions, req.Language),
		chunks,
		generationUserPrompt(req.Topic),
	)

	var questions []storage.Question
	for attempt := 0; attempt <= g.opts.MaxRetries; attempt++ {
		raw, err := g.chat.Chat(ctx, g.model, msgs, nil)
		if err != nil {
			return storage.Quiz{}, fmt.Errorf("generating questions: %w", err)
		}
		questions, err = ParseQuestions(raw)
		if err == nil {
			break
		}
		g.logger.Warn("unusable quiz reply", "attempt", attempt+1, "error", err, "response", raw)
	}

	if len(questions) > req.NumQuestions {
		questions = questions[:req.NumQuestions]
	}
	for i := range questions {
		if questions[i].Topic == "" {
			questions[i].Topic = req.Topic
		}
	}
	quiz, err := g.store.CreateQuiz(ctx, questions)
	if err != nil {
		return storage.Quiz{}, err
	}
	g.logger.Info("quiz created", "quiz_id", quiz.ID, "topic", quiz.Topic, "questions", quiz.QuestionCount)
	return quiz, nil
}
