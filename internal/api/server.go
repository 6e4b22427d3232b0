package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/docquiz/internal/ingest"
	"github.com/kalambet/docquiz/internal/qa"
	"github.com/kalambet/docquiz/internal/quiz"
	"github.com/kalambet/docquiz/internal/retrieval"
	"github.com/kalambet/docquiz/internal/storage"
	"github.com/kalambet/docquiz/internal/tracker"
)

// Ingester processes everything in the upload directory.
type Ingester interface {
	RunOnce(ctx context.Context) (map[string]ingest.FileResult, error)
}

// Retriever finds indexed chunks for a query.
type Retriever interface {
	Retrieve(ctx context.Context, query string, topK int) ([]retrieval.ChunkResult, error)
}

// Asker answers a question from indexed documents.
type Asker interface {
	Answer(ctx context.Context, query, language string) (qa.Answer, error)
}

// QuizGenerator creates and persists a quiz.
type QuizGenerator interface {
	Generate(ctx context.Context, req quiz.Request) (storage.Quiz, error)
}

// UserTracker is the user and topic side of the system.
type UserTracker interface {
	GetOrCreateUser(ctx context.Context, name string) (storage.User, error)
	GetUserProfile(ctx context.Context, userID string) (tracker.Profile, error)
	GetWeakTopics(ctx context.Context, userID string, threshold float64) ([]tracker.TopicAccuracy, error)
	GetUserSummary(ctx context.Context, userID string) (tracker.Summary, error)
	SuggestTopic(ctx context.Context, userID string, threshold float64) (string, error)
}

// QuizHistory lists a user's recent quizzes.
type QuizHistory interface {
	GetLastQuizzes(ctx context.Context, userID string, limit int) ([]storage.QuizHistory, error)
}

// Deps holds everything the HTTP handlers call into.
type Deps struct {
	Ingester  Ingester
	UploadDir string
	Asker     Asker
	Generator QuizGenerator
	Sessions  *Sessions
	Users     UserTracker
	History   QuizHistory
	Language  string
	// WeakThreshold is the accuracy percentage below which a topic is weak.
	WeakThreshold float64
	// Token enables bearer authentication when non-empty.
	Token string
}

// NewHandler returns the HTTP API router.
func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Get("/health", handleHealth)

	r.Group(func(r chi.Router) {
		if deps.Token != "" {
			r.Use(BearerAuth(deps.Token))
		}

		r.Post("/ingest", handleIngest(deps))
		r.Post("/chat", handleChat(deps))

		r.Post("/quiz/create", handleCreateQuiz(deps))
		r.Get("/quiz/{quiz_id}/start", handleStartQuiz(deps))
		r.Post("/quiz/answer", handleAnswerQuiz(deps))

		r.Post("/users/register", handleRegisterUser(deps))
		r.Get("/users/{user_id}", handleGetUser(deps))
		r.Get("/users/{user_id}/weak-topics", handleWeakTopics(deps))
		r.Get("/users/{user_id}/summary", handleUserSummary(deps))
		r.Get("/users/{user_id}/quizzes", handleUserQuizzes(deps))
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}
