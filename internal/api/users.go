package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/docquiz/internal/storage"
	"github.com/kalambet/docquiz/internal/tracker"
)

type UserRequest struct {
	Name string `json:"name"`
}

func handleRegisterUser(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req UserRequest
		if !decodeBody(w, r, &req) {
			return
		}
		req.Name = strings.TrimSpace(req.Name)
		if req.Name == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "name is required")
			return
		}

		u, err := deps.Users.GetOrCreateUser(r.Context(), req.Name)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to register user: %v", err)
			return
		}
		writeJSON(w, u)
	}
}

func handleGetUser(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := deps.Users.GetUserProfile(r.Context(), chi.URLParam(r, "user_id"))
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "user not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get user: %v", err)
			return
		}
		if p.Topics == nil {
			p.Topics = []tracker.TopicAccuracy{}
		}
		writeJSON(w, p)
	}
}

func handleWeakTopics(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := chi.URLParam(r, "user_id")
		threshold := parseFloatParam(r, "threshold", deps.WeakThreshold)

		weak, err := deps.Users.GetWeakTopics(r.Context(), userID, threshold)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get weak topics: %v", err)
			return
		}
		if weak == nil {
			weak = []tracker.TopicAccuracy{}
		}
		writeJSON(w, map[string]any{"user_id": userID, "weak_topics": weak})
	}
}

func handleUserSummary(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := chi.URLParam(r, "user_id")
		s, err := deps.Users.GetUserSummary(r.Context(), userID)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get summary: %v", err)
			return
		}
		writeJSON(w, map[string]any{"user_id": userID, "summary": s})
	}
}

func handleUserQuizzes(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := parseIntParam(r, "limit", 5, 50)
		history, err := deps.History.GetLastQuizzes(r.Context(), chi.URLParam(r, "user_id"), limit)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list quizzes: %v", err)
			return
		}
		if history == nil {
			history = []storage.QuizHistory{}
		}
		writeJSON(w, history)
	}
}
