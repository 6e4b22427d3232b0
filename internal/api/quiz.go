package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/docquiz/internal/quiz"
	"github.com/kalambet/docquiz/internal/storage"
)

type QuizCreateRequest struct {
	Topic        string `json:"topic"`
	NumQuestions int    `json:"num_questions"`
	Language     string `json:"language"`
	// UserID, when set with an empty Topic, targets the user's weakest topic.
	UserID string `json:"user_id"`
}

type QuizCreateResponse struct {
	QuizID         string `json:"quiz_id"`
	Topic          string `json:"topic"`
	TotalQuestions int    `json:"total_questions"`
}

type QuizAnswerRequest struct {
	QuizID     string `json:"quiz_id"`
	QuestionID string `json:"question_id"`
	UserID     string `json:"user_id"`
	UserAnswer string `json:"user_answer"`
}

type QuizAnswerResponse struct {
	Correct      bool              `json:"correct"`
	Feedback     string            `json:"feedback"`
	Score        float64           `json:"score"`
	NextQuestion *storage.Question `json:"next_question"`
	Summary      *quiz.Summary     `json:"summary,omitempty"`
}

func handleCreateQuiz(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req QuizCreateRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if req.Language == "" {
			req.Language = deps.Language
		}

		if deps.Ingester != nil {
			if _, err := deps.Ingester.RunOnce(r.Context()); err != nil {
				slog.Warn("ingest before quiz failed", "error", err)
			}
		}

		if req.Topic == "" && req.UserID != "" {
			topic, err := deps.Users.SuggestTopic(r.Context(), req.UserID, deps.WeakThreshold)
			if err != nil {
				httpError(w, http.StatusInternalServerError, "api_error", "failed to pick topic: %v", err)
				return
			}
			req.Topic = topic
		}

		q, err := deps.Generator.Generate(r.Context(), quiz.Request{
			Topic:        req.Topic,
			NumQuestions: req.NumQuestions,
			Language:     req.Language,
		})
		if err != nil {
			httpError(w, http.StatusBadGateway, "api_error", "quiz generation failed: %v", err)
			return
		}
		writeJSON(w, QuizCreateResponse{QuizID: q.ID, Topic: q.Topic, TotalQuestions: q.QuestionCount})
	}
}

func handleStartQuiz(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		quizID := chi.URLParam(r, "quiz_id")
		userID := r.URL.Query().Get("user_id")
		if userID == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "user_id is required")
			return
		}

		sess := deps.Sessions.Open(userID, quizID)
		q, err := sess.Start(r.Context(), userID, quizID)
		if errors.Is(err, storage.ErrNotFound) {
			deps.Sessions.Close(userID, quizID)
			httpError(w, http.StatusNotFound, "not_found", "quiz not found")
			return
		}
		if err != nil {
			deps.Sessions.Close(userID, quizID)
			httpError(w, http.StatusInternalServerError, "api_error", "failed to start quiz: %v", err)
			return
		}
		if q == nil {
			deps.Sessions.Close(userID, quizID)
			httpError(w, http.StatusNotFound, "not_found", "no questions found")
			return
		}
		writeJSON(w, q)
	}
}

func handleAnswerQuiz(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req QuizAnswerRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if req.QuizID == "" || req.QuestionID == "" || req.UserID == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "quiz_id, question_id and user_id are required")
			return
		}

		sess := deps.Sessions.Get(req.UserID, req.QuizID)
		if sess == nil {
			httpError(w, http.StatusNotFound, "not_found", "no active session for this quiz; start it first")
			return
		}

		res, err := sess.Answer(r.Context(), req.QuestionID, req.UserAnswer)
		switch {
		case errors.Is(err, quiz.ErrCompleted), errors.Is(err, quiz.ErrNotStarted):
			httpError(w, http.StatusConflict, "invalid_request_error", "%v", err)
			return
		case errors.Is(err, storage.ErrNotFound):
			httpError(w, http.StatusNotFound, "not_found", "question not found")
			return
		case err != nil:
			httpError(w, http.StatusInternalServerError, "api_error", "failed to record answer: %v", err)
			return
		}
		if res.Summary != nil {
			deps.Sessions.Close(req.UserID, req.QuizID)
		}

		writeJSON(w, QuizAnswerResponse{
			Correct:      res.Correct,
			Feedback:     res.Feedback,
			Score:        res.Score,
			NextQuestion: res.Next,
			Summary:      res.Summary,
		})
	}
}
