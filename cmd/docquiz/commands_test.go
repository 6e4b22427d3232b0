package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/kalambet/docquiz/internal/api"
	"github.com/kalambet/docquiz/internal/ingest"
	"github.com/kalambet/docquiz/internal/quiz"
	"github.com/kalambet/docquiz/internal/storage"
)

type recordedRequest struct {
	Method      string
	Path        string
	Body        string
	Auth        string
	ContentType string
}

type testServer struct {
	server   *httptest.Server
	requests []recordedRequest
}

func newTestServer(t *testing.T, responses map[string]string) *testServer {
	t.Helper()
	ts := &testServer{}

	ts.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body bytes.Buffer
		body.ReadFrom(r.Body)

		ts.requests = append(ts.requests, recordedRequest{
			Method:      r.Method,
			Path:        r.URL.RequestURI(),
			Body:        body.String(),
			Auth:        r.Header.Get("Authorization"),
			ContentType: r.Header.Get("Content-Type"),
		})

		if resp, ok := responses[r.Method+" "+r.URL.Path]; ok {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(resp))
			return
		}

		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":{"message":"quiz not found","type":"not_found"}}`))
	}))

	t.Cleanup(ts.server.Close)
	return ts
}

func (ts *testServer) client() *apiClient {
	return &apiClient{
		baseURL:    ts.server.URL,
		token:      "test-token",
		httpClient: ts.server.Client(),
	}
}

var ctx = context.Background()

func TestIngestRemote_UploadsEachFile(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /ingest": `{"files":{"notes":{"status":"processed","chunks":3}}}`,
	})

	path := filepath.Join(t.TempDir(), "notes.md")
	if err := os.WriteFile(path, []byte("# Channels\nbuffered and unbuffered"), 0o644); err != nil {
		t.Fatal(err)
	}

	results, err := ingestRemote(ctx, ts.client(), []string{path})
	if err != nil {
		t.Fatalf("ingestRemote: %v", err)
	}
	if got := results["notes"]; got.Status != ingest.StatusProcessed || got.Chunks != 3 {
		t.Errorf("result = %+v, want processed with 3 chunks", got)
	}

	if len(ts.requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(ts.requests))
	}
	r := ts.requests[0]
	if !strings.HasPrefix(r.ContentType, "multipart/form-data") {
		t.Errorf("content type = %q, want multipart", r.ContentType)
	}
	if !strings.Contains(r.Body, `filename="notes.md"`) || !strings.Contains(r.Body, "buffered and unbuffered") {
		t.Errorf("upload body missing file part: %q", r.Body)
	}
	if r.Auth != "Bearer test-token" {
		t.Errorf("auth = %q, want Bearer test-token", r.Auth)
	}
}

func TestIngestRemote_ScanWithoutArgs(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /ingest": `{"files":{"a":{"status":"skipped","chunks":0}}}`,
	})

	results, err := ingestRemote(ctx, ts.client(), nil)
	if err != nil {
		t.Fatalf("ingestRemote: %v", err)
	}
	if results["a"].Status != ingest.StatusSkipped {
		t.Errorf("results = %+v, want a skipped", results)
	}
	if ts.requests[0].ContentType != "application/json" {
		t.Errorf("content type = %q, want application/json", ts.requests[0].ContentType)
	}
}

func TestUpload_MissingFile(t *testing.T) {
	ts := newTestServer(t, nil)
	if _, err := ts.client().upload(ctx, filepath.Join(t.TempDir(), "nope.pdf")); err == nil {
		t.Fatal("expected error for missing file")
	}
	if len(ts.requests) != 0 {
		t.Errorf("sent %d requests, want 0", len(ts.requests))
	}
}

func TestAskCommand(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /chat": `{"answer":"Channels synchronize goroutines [lec1.pdf].","sources":[{"id":"lec1_0","file_id":"lec1","file_ext":"pdf","text":"...","score":0.1}]}`,
	})

	ans, err := ts.client().chat(ctx, "what do channels do?", "German")
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if !strings.Contains(ans.Text, "[lec1.pdf]") {
		t.Errorf("answer = %q, want citation", ans.Text)
	}
	if len(ans.Sources) != 1 || ans.Sources[0].FileID != "lec1" {
		t.Errorf("sources = %+v, want lec1", ans.Sources)
	}

	var body api.ChatRequest
	if err := json.Unmarshal([]byte(ts.requests[0].Body), &body); err != nil {
		t.Fatalf("body parse error: %v", err)
	}
	if body.Query != "what do channels do?" || body.Language != "German" {
		t.Errorf("body = %+v", body)
	}
}

func TestUserCommands(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /users/register":       `{"user_id":"u-1","name":"ada","created_at":"2026-01-01T00:00:00Z"}`,
		"GET /users/u-1/weak-topics": `{"user_id":"u-1","weak_topics":[{"topic":"select","attempts":5,"correct":1,"accuracy":20}]}`,
		"GET /users/u-1/summary":     `{"user_id":"u-1","summary":{"attempts":3,"correct":1,"accuracy":33.33}}`,
		"GET /users/u-1/quizzes":     `[{"quiz_id":"q-1","topic":"select","created_at":"2026-01-02T00:00:00Z","answered":2,"avg_score":0.5}]`,
		"GET /users/u-1":             `{"user_id":"u-1","name":"ada","joined_at":"2026-01-01T00:00:00Z","topics":[]}`,
	})
	client := ts.client()

	u, err := client.registerUser(ctx, "ada")
	if err != nil || u.ID != "u-1" {
		t.Fatalf("registerUser = (%+v, %v), want u-1", u, err)
	}

	weak, err := client.weakTopics(ctx, "u-1", 55)
	if err != nil {
		t.Fatalf("weakTopics: %v", err)
	}
	if len(weak) != 1 || weak[0].Topic != "select" {
		t.Errorf("weak = %+v, want select", weak)
	}
	if got := ts.requests[1].Path; got != "/users/u-1/weak-topics?threshold=55" {
		t.Errorf("path = %q, want threshold query", got)
	}

	s, err := client.userSummary(ctx, "u-1")
	if err != nil {
		t.Fatalf("userSummary: %v", err)
	}
	if s.Attempts != 3 || s.Accuracy != 33.33 {
		t.Errorf("summary = %+v", s)
	}

	history, err := client.userQuizzes(ctx, "u-1", 7)
	if err != nil {
		t.Fatalf("userQuizzes: %v", err)
	}
	if len(history) != 1 || history[0].AvgScore != 0.5 {
		t.Errorf("history = %+v", history)
	}
	if got := ts.requests[3].Path; got != "/users/u-1/quizzes?limit=7" {
		t.Errorf("path = %q, want limit query", got)
	}

	p, err := client.userProfile(ctx, "u-1")
	if err != nil || p.Name != "ada" {
		t.Errorf("userProfile = (%+v, %v), want ada", p, err)
	}
}

func TestWeakTopics_DefaultThresholdOmitsQuery(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /users/u-1/weak-topics": `{"weak_topics":[]}`,
	})
	if _, err := ts.client().weakTopics(ctx, "u-1", 0); err != nil {
		t.Fatalf("weakTopics: %v", err)
	}
	if got := ts.requests[0].Path; got != "/users/u-1/weak-topics" {
		t.Errorf("path = %q, want no query", got)
	}
}

func TestQuizClientFlow(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /quiz/create":   `{"quiz_id":"q-9","topic":"channels","total_questions":2}`,
		"GET /quiz/q-9/start": `{"id":"q1","quiz_id":"q-9","position":0,"question":"What blocks?","type":"open_ended","topic":"channels"}`,
		"POST /quiz/answer":   `{"correct":true,"feedback":"Right.","score":1,"next_question":null,"summary":{"total":1,"correct":1,"score":1,"max_score":1}}`,
	})
	client := ts.client()

	created, err := client.createQuiz(ctx, api.QuizCreateRequest{UserID: "u-1", NumQuestions: 2})
	if err != nil {
		t.Fatalf("createQuiz: %v", err)
	}
	if created.QuizID != "q-9" || created.TotalQuestions != 2 {
		t.Errorf("created = %+v", created)
	}

	q, err := client.startQuiz(ctx, "q-9", "u 1")
	if err != nil {
		t.Fatalf("startQuiz: %v", err)
	}
	if q.ID != "q1" || q.Type != storage.OpenEnded {
		t.Errorf("question = %+v", q)
	}
	if got := ts.requests[1].Path; got != "/quiz/q-9/start?user_id=u+1" {
		t.Errorf("path = %q, want escaped user_id", got)
	}

	res, err := client.answerQuiz(ctx, api.QuizAnswerRequest{QuizID: "q-9", QuestionID: "q1", UserID: "u-1", UserAnswer: "unbuffered send"})
	if err != nil {
		t.Fatalf("answerQuiz: %v", err)
	}
	if !res.Correct || res.NextQuestion != nil || res.Summary == nil {
		t.Errorf("answer = %+v, want correct final answer with summary", res)
	}
}

func TestDecodeJSON_ErrorEnvelope(t *testing.T) {
	ts := newTestServer(t, nil)
	_, err := ts.client().startQuiz(ctx, "missing", "u-1")
	if err == nil {
		t.Fatal("expected error for 404")
	}
	if err.Error() != "server returned 404: quiz not found" {
		t.Errorf("error = %q, want envelope message", err.Error())
	}
}

func TestServerStopped(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.server.Close()

	_, err := ts.client().get(ctx, "/health")
	if err == nil {
		t.Fatal("expected error for stopped server")
	}
	if !strings.Contains(err.Error(), "not reachable") {
		t.Errorf("error = %q, want it to mention 'not reachable'", err.Error())
	}
}

func TestQuizCommand_RequiresUser(t *testing.T) {
	defer rootCmd.SetArgs(nil)

	rootCmd.SetArgs([]string{"quiz"})
	err := rootCmd.Execute()
	if err == nil {
		t.Fatal("expected error for missing --user")
	}
	if !strings.Contains(err.Error(), "--user") {
		t.Errorf("error = %q, want it to mention --user", err.Error())
	}
}

func TestNoColorFlag(t *testing.T) {
	old := noColor
	defer func() { noColor = old }()

	noColor = true
	style := lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Bold(true)
	if got := colorize(style, "test message"); got != "test message" {
		t.Errorf("colorize = %q, want plain text", got)
	}
}

func TestPrintFileResults(t *testing.T) {
	old := noColor
	defer func() { noColor = old }()
	noColor = true

	var buf bytes.Buffer
	failed := printFileResults(&buf, map[string]ingest.FileResult{
		"b.pdf": {Status: ingest.StatusError, Error: "no text extracted"},
		"a.md":  {Status: ingest.StatusProcessed, Chunks: 4},
		"c.txt": {Status: ingest.StatusSkipped},
	})
	if failed != 1 {
		t.Errorf("failed = %d, want 1", failed)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3", len(lines))
	}
	if !strings.Contains(lines[0], "a.md (4 chunks)") {
		t.Errorf("first line = %q, want a.md sorted first", lines[0])
	}
	if !strings.Contains(lines[1], "b.pdf: no text extracted") {
		t.Errorf("second line = %q, want error detail", lines[1])
	}
}

func TestResolveAnswer(t *testing.T) {
	mc := &storage.Question{Type: storage.MultipleChoice, Options: []string{"send", "receive", "close", "select"}}
	open := &storage.Question{Type: storage.OpenEnded}

	tests := []struct {
		q     *storage.Question
		input string
		want  string
	}{
		{mc, "a", "send"},
		{mc, " C ", "close"},
		{mc, "D", "select"},
		{mc, "E", "E"},
		{mc, "receive", "receive"},
		{open, "a", "a"},
		{open, "  it blocks  ", "it blocks"},
		{nil, "b", "b"},
		{mc, "   ", ""},
	}
	for _, tt := range tests {
		if got := resolveAnswer(tt.q, tt.input); got != tt.want {
			t.Errorf("resolveAnswer(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

// mockAnswerer implements quizAnswerer for testing.
type mockAnswerer struct {
	answerFn func(ctx context.Context, req api.QuizAnswerRequest) (api.QuizAnswerResponse, error)
}

func (m *mockAnswerer) answerQuiz(ctx context.Context, req api.QuizAnswerRequest) (api.QuizAnswerResponse, error) {
	return m.answerFn(ctx, req)
}

func typeText(m tea.Model, s string) tea.Model {
	for _, r := range s {
		msg := tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
		if r == ' ' {
			msg = tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
		}
		m, _ = m.Update(msg)
	}
	return m
}

func TestQuizModel_Flow(t *testing.T) {
	q1 := &storage.Question{ID: "q1", Text: "Which keyword waits on channels?", Type: storage.MultipleChoice, Options: []string{"go", "defer", "select", "range"}}
	q2 := &storage.Question{ID: "q2", Text: "What does close do?", Type: storage.OpenEnded}

	var got []api.QuizAnswerRequest
	client := &mockAnswerer{answerFn: func(_ context.Context, req api.QuizAnswerRequest) (api.QuizAnswerResponse, error) {
		got = append(got, req)
		if req.QuestionID == "q1" {
			return api.QuizAnswerResponse{Correct: true, Feedback: "Correct", Score: 1, NextQuestion: q2}, nil
		}
		return api.QuizAnswerResponse{Correct: false, Feedback: "Not quite", Score: 0.3,
			Summary: &quiz.Summary{Total: 5, Correct: 3, Answered: 2, AnsweredCorrect: 1, Score: 1.3, MaxScore: 2}}, nil
	}}

	var m tea.Model = newQuizModel(ctx, client, "u-1", "qz", "channels", 2, q1)
	if !strings.Contains(m.View(), "C) select") {
		t.Errorf("view missing lettered options:\n%s", m.View())
	}

	m = typeText(m, "c")
	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if cmd == nil {
		t.Fatal("enter should submit the answer")
	}
	if m.(quizModel).phase != phaseGrading {
		t.Errorf("phase = %v, want grading", m.(quizModel).phase)
	}
	m, _ = m.Update(cmd())
	if len(got) != 1 || got[0].UserAnswer != "select" || got[0].UserID != "u-1" || got[0].QuizID != "qz" {
		t.Fatalf("requests = %+v, want letter mapped to option", got)
	}
	if !strings.Contains(m.View(), "Correct") {
		t.Errorf("feedback view missing verdict:\n%s", m.View())
	}

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if qm := m.(quizModel); qm.question.ID != "q2" || qm.asked != 2 || len(qm.input) != 0 {
		t.Fatalf("model = %+v, want second question with empty input", qm)
	}

	m = typeText(m, "ends it")
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyBackspace})
	m, cmd = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m, _ = m.Update(cmd())
	if got[1].UserAnswer != "ends i" {
		t.Errorf("answer = %q, want %q", got[1].UserAnswer, "ends i")
	}

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	qm := m.(quizModel)
	if qm.phase != phaseDone {
		t.Fatalf("phase = %v, want done", qm.phase)
	}
	if !strings.Contains(qm.View(), "1 of 2 correct this run, 3 of 5 across all attempts") {
		t.Errorf("view = %q, want run and quiz-wide counts", qm.View())
	}
	if !strings.Contains(qm.View(), "Score 1.30 / 2") {
		t.Errorf("summary view = %q", qm.View())
	}
	if _, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter}); cmd == nil {
		t.Error("any key on the summary should quit")
	}
}

func TestQuizModel_EmptyAnswerNotSubmitted(t *testing.T) {
	client := &mockAnswerer{answerFn: func(context.Context, api.QuizAnswerRequest) (api.QuizAnswerResponse, error) {
		t.Fatal("answer should not be submitted")
		return api.QuizAnswerResponse{}, nil
	}}
	var m tea.Model = newQuizModel(ctx, client, "u", "qz", "", 0, &storage.Question{ID: "q1", Text: "?"})
	m = typeText(m, "  ")
	if _, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter}); cmd != nil {
		t.Error("blank answer produced a command")
	}
}

func TestQuizModel_GradingErrorQuits(t *testing.T) {
	client := &mockAnswerer{answerFn: func(context.Context, api.QuizAnswerRequest) (api.QuizAnswerResponse, error) {
		return api.QuizAnswerResponse{}, errors.New("server returned 409")
	}}
	var m tea.Model = newQuizModel(ctx, client, "u", "qz", "", 0, &storage.Question{ID: "q1", Text: "?"})
	m = typeText(m, "x")
	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m, cmd = m.Update(cmd())
	if cmd == nil {
		t.Error("grading error should quit")
	}
	if m.(quizModel).err == nil {
		t.Error("err not recorded")
	}
}

func TestQuizModel_NoQuestions(t *testing.T) {
	m := newQuizModel(ctx, nil, "u", "qz", "", 0, nil)
	if m.phase != phaseDone {
		t.Errorf("phase = %v, want done", m.phase)
	}
	if !strings.Contains(m.View(), "No questions") {
		t.Errorf("view = %q", m.View())
	}
}
