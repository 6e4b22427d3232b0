package api

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kalambet/docquiz/internal/ingest"
	"github.com/kalambet/docquiz/internal/qa"
	"github.com/kalambet/docquiz/internal/retrieval"
	"github.com/kalambet/docquiz/internal/storage"
	"github.com/kalambet/docquiz/internal/tracker"
)

// --- mocks ---

type mockRetriever struct {
	chunks []retrieval.ChunkResult
	err    error
	gotK   int
	mu     sync.Mutex
}

func (m *mockRetriever) Retrieve(_ context.Context, _ string, k int) ([]retrieval.ChunkResult, error) {
	m.mu.Lock()
	m.gotK = k
	m.mu.Unlock()
	return m.chunks, m.err
}

// --- helpers ---

func newTestMCPDeps(t *testing.T) (MCPDeps, *storage.Store) {
	t.Helper()
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	return MCPDeps{
		Retriever: &mockRetriever{},
		Asker: &mockAsker{answerFn: func(_ context.Context, q, lang string) (qa.Answer, error) {
			return qa.Answer{Text: "answer to " + q + " in " + lang}, nil
		}},
		Ingester:      &mockIngester{results: map[string]ingest.FileResult{"a": {Status: ingest.StatusSkipped}}},
		Users:         tracker.New(store),
		Files:         store,
		Language:      "English",
		WeakThreshold: 70,
	}, store
}

func toolText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("no content in result")
	}
	tc, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected TextContent, got %T", result.Content[0])
	}
	return tc.Text
}

func makeCallToolRequest(name string, args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func makeReadResourceRequest(uri string) mcp.ReadResourceRequest {
	return mcp.ReadResourceRequest{
		Params: mcp.ReadResourceParams{
			URI: uri,
		},
	}
}

// --- tests ---

func TestMCPTool_Recall_ReturnsChunks(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	r := &mockRetriever{chunks: []retrieval.ChunkResult{
		{ID: "go_0", FileID: "go", FileExt: "md", Text: "goroutines", Score: 0.1},
	}}
	deps.Retriever = r

	result, err := mcpRecall(deps)(context.Background(), makeCallToolRequest("recall", map[string]interface{}{
		"query": "concurrency",
		"limit": float64(500),
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", toolText(t, result))
	}

	var chunks []retrieval.ChunkResult
	if err := json.Unmarshal([]byte(toolText(t, result)), &chunks); err != nil {
		t.Fatalf("result is not JSON: %v", err)
	}
	if len(chunks) != 1 || chunks[0].FileID != "go" {
		t.Errorf("chunks = %+v", chunks)
	}
	if r.gotK != 50 {
		t.Errorf("limit passed = %d, want clamped 50", r.gotK)
	}
}

func TestMCPTool_Recall_EmptyAndError(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	result, _ := mcpRecall(deps)(context.Background(), makeCallToolRequest("recall", map[string]interface{}{"query": "x"}))
	if toolText(t, result) != "[]" {
		t.Errorf("empty recall = %q, want []", toolText(t, result))
	}

	deps.Retriever = &mockRetriever{err: errors.New("index offline")}
	result, _ = mcpRecall(deps)(context.Background(), makeCallToolRequest("recall", map[string]interface{}{"query": "x"}))
	if !result.IsError || !strings.Contains(toolText(t, result), "index offline") {
		t.Errorf("error result = %+v", result)
	}

	result, _ = mcpRecall(deps)(context.Background(), makeCallToolRequest("recall", map[string]interface{}{}))
	if !result.IsError {
		t.Error("missing query should be a tool error")
	}
}

func TestMCPTool_Ask(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	result, _ := mcpAsk(deps)(context.Background(), makeCallToolRequest("ask", map[string]interface{}{
		"question": "what is a goroutine?",
	}))
	if got := toolText(t, result); got != "answer to what is a goroutine? in English" {
		t.Errorf("ask = %q", got)
	}

	deps.Asker = &mockAsker{answerFn: func(context.Context, string, string) (qa.Answer, error) {
		return qa.Answer{}, qa.ErrNoContext
	}}
	result, _ = mcpAsk(deps)(context.Background(), makeCallToolRequest("ask", map[string]interface{}{"question": "q"}))
	if !result.IsError {
		t.Error("no context should be a tool error")
	}
}

func TestMCPTool_Ingest(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	result, _ := mcpIngest(deps)(context.Background(), makeCallToolRequest("ingest", nil))
	var files map[string]ingest.FileResult
	if err := json.Unmarshal([]byte(toolText(t, result)), &files); err != nil {
		t.Fatalf("result is not JSON: %v", err)
	}
	if files["a"].Status != ingest.StatusSkipped {
		t.Errorf("files = %+v", files)
	}

	deps.Ingester = &mockIngester{err: errors.New("upload dir missing")}
	result, _ = mcpIngest(deps)(context.Background(), makeCallToolRequest("ingest", nil))
	if !result.IsError {
		t.Error("ingest failure should be a tool error")
	}
}

func TestMCPTool_WeakTopics(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	ctx := context.Background()
	tr := deps.Users.(*tracker.Tracker)
	for i := 0; i < 10; i++ {
		tr.UpdateTopicPerformance(ctx, "u1", "Algebra", i < 5)
		tr.UpdateTopicPerformance(ctx, "u1", "Geometry", i < 8)
	}

	result, _ := mcpWeakTopics(deps)(ctx, makeCallToolRequest("weak_topics", map[string]interface{}{"user_id": "u1"}))
	var weak []tracker.TopicAccuracy
	if err := json.Unmarshal([]byte(toolText(t, result)), &weak); err != nil {
		t.Fatalf("result is not JSON: %v", err)
	}
	if len(weak) != 1 || weak[0].Topic != "Algebra" {
		t.Errorf("weak = %+v, want Algebra only", weak)
	}

	result, _ = mcpWeakTopics(deps)(ctx, makeCallToolRequest("weak_topics", map[string]interface{}{
		"user_id":   "u1",
		"threshold": float64(90),
	}))
	weak = nil
	json.Unmarshal([]byte(toolText(t, result)), &weak)
	if len(weak) != 2 {
		t.Errorf("weak at 90 = %+v, want both topics", weak)
	}
}

func TestMCPResource_Files(t *testing.T) {
	deps, store := newTestMCPDeps(t)
	if err := store.UpsertFileRecord(context.Background(), storage.FileRecord{
		FileID: "lecture", Path: "/up/lecture.pdf", Ext: "pdf", Hash: "h", ChunkCount: 7, ProcessedAt: time.Now(),
	}); err != nil {
		t.Fatalf("UpsertFileRecord: %v", err)
	}

	contents, err := mcpResourceFiles(deps)(context.Background(), makeReadResourceRequest("docquiz://files"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tc, ok := contents[0].(mcp.TextResourceContents)
	if !ok {
		t.Fatalf("expected TextResourceContents, got %T", contents[0])
	}
	var files []map[string]any
	if err := json.Unmarshal([]byte(tc.Text), &files); err != nil {
		t.Fatalf("resource is not JSON: %v", err)
	}
	if len(files) != 1 || files[0]["file_id"] != "lecture" || files[0]["chunks"] != float64(7) {
		t.Errorf("files = %+v", files)
	}
}

func TestMCPServer_ConcurrentCalls(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	deps.Retriever = &mockRetriever{chunks: []retrieval.ChunkResult{{ID: "c1", Text: "test", Score: 0.1}}}
	recall := mcpRecall(deps)
	ask := mcpAsk(deps)

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			var err error
			if i%2 == 0 {
				_, err = recall(context.Background(), makeCallToolRequest("recall", map[string]interface{}{"query": "test"}))
			} else {
				_, err = ask(context.Background(), makeCallToolRequest("ask", map[string]interface{}{"question": "test"}))
			}
			if err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Fatalf("concurrent call failed: %v", err)
	}
}

func TestNewMCPServer(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	if s := NewMCPServer(deps, "test"); s == nil {
		t.Fatal("NewMCPServer returned nil")
	}
}
