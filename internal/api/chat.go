package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/kalambet/docquiz/internal/qa"
)

type ChatRequest struct {
	Query    string `json:"query"`
	Language string `json:"language"`
}

func handleChat(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ChatRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if strings.TrimSpace(req.Query) == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "query is required")
			return
		}
		if req.Language == "" {
			req.Language = deps.Language
		}

		ans, err := deps.Asker.Answer(r.Context(), req.Query, req.Language)
		if errors.Is(err, qa.ErrNoContext) {
			httpError(w, http.StatusNotFound, "not_found", "no relevant context found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "answering failed: %v", err)
			return
		}
		writeJSON(w, ans)
	}
}
