package quiz

import (
	"context"
	"sync"
	"testing"

	"github.com/kalambet/docquiz/internal/engine"
	"github.com/kalambet/docquiz/internal/retrieval"
	"github.com/kalambet/docquiz/internal/storage"
)

// mockChatter replays responses in order; the last one repeats.
type mockChatter struct {
	mu        sync.Mutex
	responses []string
	err       error
	calls     int
	lastMsgs  []engine.Message
}

func (m *mockChatter) Chat(_ context.Context, _ string, msgs []engine.Message, _ *engine.Schema) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.lastMsgs = msgs
	if m.err != nil {
		return "", m.err
	}
	if len(m.responses) == 0 {
		return "", nil
	}
	i := min(m.calls-1, len(m.responses)-1)
	return m.responses[i], nil
}

type mockRetriever struct {
	retrieveFn func(ctx context.Context, query string, topK int) ([]retrieval.ChunkResult, error)
}

func (m *mockRetriever) Retrieve(ctx context.Context, query string, topK int) ([]retrieval.ChunkResult, error) {
	return m.retrieveFn(ctx, query, topK)
}

func openTestStore(t *testing.T) *storage.Store {
	t.Helper()
	s, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("storage.Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func mustCreateQuiz(t *testing.T, s *storage.Store, qs ...storage.Question) storage.Quiz {
	t.Helper()
	quiz, err := s.CreateQuiz(context.Background(), qs)
	if err != nil {
		t.Fatalf("CreateQuiz: %v", err)
	}
	return quiz
}

func mcQuestion(text, answer, topic string) storage.Question {
	return storage.Question{
		Text:    text,
		Type:    storage.MultipleChoice,
		Options: []string{answer, "wrong 1", "wrong 2", "wrong 3"},
		Answer:  answer,
		Topic:   topic,
	}
}

func openQuestion(text, answer, topic string) storage.Question {
	return storage.Question{Text: text, Type: storage.OpenEnded, Answer: answer, Topic: topic}
}
