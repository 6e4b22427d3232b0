package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/kalambet/docquiz/internal/api"
	"github.com/kalambet/docquiz/internal/config"
	"github.com/kalambet/docquiz/internal/ingest"
	"github.com/kalambet/docquiz/internal/qa"
	"github.com/kalambet/docquiz/internal/storage"
	"github.com/kalambet/docquiz/internal/tracker"
)

type apiClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

var newAPIClient = func() (*apiClient, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return &apiClient{
		baseURL: fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port),
		token:   cfg.Server.APIToken,
		// Quiz generation and grading call the model, so allow for slow replies.
		httpClient: &http.Client{Timeout: 5 * time.Minute},
	}, nil
}

func (c *apiClient) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshalling request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req)
}

func (c *apiClient) send(req *http.Request) (*http.Response, error) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("server not reachable, is docquiz running? (%w)", err)
	}
	return resp, nil
}

func (c *apiClient) get(ctx context.Context, path string) (*http.Response, error) {
	return c.do(ctx, http.MethodGet, path, nil)
}

func (c *apiClient) post(ctx context.Context, path string, body any) (*http.Response, error) {
	return c.do(ctx, http.MethodPost, path, body)
}

// upload sends one file as a multipart ingest request.
func (c *apiClient) upload(ctx context.Context, path string) (map[string]ingest.FileResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/ingest", &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp, err := c.send(req)
	if err != nil {
		return nil, err
	}
	var out struct {
		Files map[string]ingest.FileResult `json:"files"`
	}
	if err := decodeJSON(resp, &out); err != nil {
		return nil, err
	}
	return out.Files, nil
}

func (c *apiClient) scan(ctx context.Context) (map[string]ingest.FileResult, error) {
	resp, err := c.post(ctx, "/ingest", struct{}{})
	if err != nil {
		return nil, err
	}
	var out struct {
		Files map[string]ingest.FileResult `json:"files"`
	}
	if err := decodeJSON(resp, &out); err != nil {
		return nil, err
	}
	return out.Files, nil
}

func (c *apiClient) chat(ctx context.Context, query, language string) (qa.Answer, error) {
	var out qa.Answer
	resp, err := c.post(ctx, "/chat", api.ChatRequest{Query: query, Language: language})
	if err != nil {
		return out, err
	}
	return out, decodeJSON(resp, &out)
}

func (c *apiClient) registerUser(ctx context.Context, name string) (storage.User, error) {
	var u storage.User
	resp, err := c.post(ctx, "/users/register", map[string]string{"name": name})
	if err != nil {
		return u, err
	}
	return u, decodeJSON(resp, &u)
}

func (c *apiClient) userProfile(ctx context.Context, userID string) (tracker.Profile, error) {
	var p tracker.Profile
	resp, err := c.get(ctx, "/users/"+url.PathEscape(userID))
	if err != nil {
		return p, err
	}
	return p, decodeJSON(resp, &p)
}

func (c *apiClient) weakTopics(ctx context.Context, userID string, threshold float64) ([]tracker.TopicAccuracy, error) {
	path := "/users/" + url.PathEscape(userID) + "/weak-topics"
	if threshold > 0 {
		path += fmt.Sprintf("?threshold=%g", threshold)
	}
	resp, err := c.get(ctx, path)
	if err != nil {
		return nil, err
	}
	var out struct {
		WeakTopics []tracker.TopicAccuracy `json:"weak_topics"`
	}
	return out.WeakTopics, decodeJSON(resp, &out)
}

func (c *apiClient) userSummary(ctx context.Context, userID string) (tracker.Summary, error) {
	resp, err := c.get(ctx, "/users/"+url.PathEscape(userID)+"/summary")
	if err != nil {
		return tracker.Summary{}, err
	}
	var out struct {
		Summary tracker.Summary `json:"summary"`
	}
	return out.Summary, decodeJSON(resp, &out)
}

func (c *apiClient) userQuizzes(ctx context.Context, userID string, limit int) ([]storage.QuizHistory, error) {
	resp, err := c.get(ctx, fmt.Sprintf("/users/%s/quizzes?limit=%d", url.PathEscape(userID), limit))
	if err != nil {
		return nil, err
	}
	var out []storage.QuizHistory
	return out, decodeJSON(resp, &out)
}

func (c *apiClient) createQuiz(ctx context.Context, req api.QuizCreateRequest) (api.QuizCreateResponse, error) {
	var out api.QuizCreateResponse
	resp, err := c.post(ctx, "/quiz/create", req)
	if err != nil {
		return out, err
	}
	return out, decodeJSON(resp, &out)
}

func (c *apiClient) startQuiz(ctx context.Context, quizID, userID string) (*storage.Question, error) {
	path := fmt.Sprintf("/quiz/%s/start?user_id=%s", url.PathEscape(quizID), url.QueryEscape(userID))
	resp, err := c.get(ctx, path)
	if err != nil {
		return nil, err
	}
	var q storage.Question
	if err := decodeJSON(resp, &q); err != nil {
		return nil, err
	}
	return &q, nil
}

func (c *apiClient) answerQuiz(ctx context.Context, req api.QuizAnswerRequest) (api.QuizAnswerResponse, error) {
	var out api.QuizAnswerResponse
	resp, err := c.post(ctx, "/quiz/answer", req)
	if err != nil {
		return out, err
	}
	return out, decodeJSON(resp, &out)
}

func decodeJSON(resp *http.Response, v any) error {
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		var envelope struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("server returned %d (failed to read body: %w)", resp.StatusCode, err)
		}
		if json.Unmarshal(body, &envelope) == nil && envelope.Error.Message != "" {
			return fmt.Errorf("server returned %d: %s", resp.StatusCode, envelope.Error.Message)
		}
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, string(body))
	}
	return json.NewDecoder(resp.Body).Decode(v)
}
