package quiz

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/kalambet/docquiz/internal/retrieval"
	"github.com/kalambet/docquiz/internal/storage"
)

const validReply = `[
  {"type":"multiple_choice","question":"Where do light reactions occur?","topic":"Photosynthesis",
   "options":["thylakoid","stroma","nucleus","cytoplasm"],"answer":"thylakoid"},
  {"type":"open_ended","question":"What does chlorophyll absorb?","topic":"Photosynthesis","options":null,"answer":"light"},
  {"type":"open_ended","question":"Name the products.","topic":"Chemistry","options":null,"answer":"glucose and oxygen"}
]`

func bioRetriever(gotQuery *string) *mockRetriever {
	return &mockRetriever{retrieveFn: func(_ context.Context, q string, k int) ([]retrieval.ChunkResult, error) {
		if gotQuery != nil {
			*gotQuery = q
		}
		return []retrieval.ChunkResult{{ID: "bio_0", FileID: "bio", FileExt: "pdf", Text: "light reactions occur in the thylakoid"}}, nil
	}}
}

func TestGenerate_PersistsQuiz(t *testing.T) {
	store := openTestStore(t)
	chat := &mockChatter{responses: []string{validReply}}
	var query string
	g := NewGenerator(bioRetriever(&query), store, chat, "mistral", GeneratorOptions{})

	quiz, err := g.Generate(context.Background(), Request{Topic: "photosynthesis", NumQuestions: 3, Language: "Spanish"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if quiz.QuestionCount != 3 || quiz.Topic != "Photosynthesis" {
		t.Errorf("quiz = %+v, want 3 questions on Photosynthesis", quiz)
	}
	if query != "photosynthesis" {
		t.Errorf("retrieval query = %q", query)
	}
	if !strings.Contains(chat.lastMsgs[0].Content, "Spanish") || !strings.Contains(chat.lastMsgs[0].Content, "[bio.pdf]") {
		t.Errorf("prompt missing language or cited context: %q", chat.lastMsgs[0].Content)
	}
	q, err := store.GetQuestion(context.Background(), quiz.ID, 0)
	if err != nil || q == nil || q.Answer != "thylakoid" {
		t.Errorf("first question = %+v, %v", q, err)
	}
}

func TestGenerate_RetriesThenSucceeds(t *testing.T) {
	store := openTestStore(t)
	chat := &mockChatter{responses: []string{"not json", `{"oops": true}`, validReply}}
	g := NewGenerator(bioRetriever(nil), store, chat, "m", GeneratorOptions{MaxRetries: 2})

	quiz, err := g.Generate(context.Background(), Request{NumQuestions: 3})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if chat.calls != 3 {
		t.Errorf("calls = %d, want 3", chat.calls)
	}
	if quiz.QuestionCount != 3 {
		t.Errorf("QuestionCount = %d, want 3", quiz.QuestionCount)
	}
}

func TestGenerate_ExhaustedRetriesYieldEmptyQuiz(t *testing.T) {
	store := openTestStore(t)
	chat := &mockChatter{responses: []string{"garbage"}}
	g := NewGenerator(bioRetriever(nil), store, chat, "m", GeneratorOptions{MaxRetries: 2})

	quiz, err := g.Generate(context.Background(), Request{Topic: "x"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if chat.calls != 3 {
		t.Errorf("calls = %d, want 1 + 2 retries", chat.calls)
	}
	if quiz.QuestionCount != 0 || quiz.Topic != storage.DefaultTopic {
		t.Errorf("quiz = %+v, want empty General quiz", quiz)
	}
	q, err := store.GetQuestion(context.Background(), quiz.ID, 0)
	if err != nil || q != nil {
		t.Errorf("GetQuestion = (%v, %v), want (nil, nil)", q, err)
	}
}

func TestGenerate_NoRetries(t *testing.T) {
	chat := &mockChatter{responses: []string{"garbage"}}
	g := NewGenerator(bioRetriever(nil), openTestStore(t), chat, "m", GeneratorOptions{MaxRetries: -1})
	if _, err := g.Generate(context.Background(), Request{}); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if chat.calls != 1 {
		t.Errorf("calls = %d, want 1", chat.calls)
	}
}

func TestGenerate_TruncatesAndFillsTopic(t *testing.T) {
	store := openTestStore(t)
	reply := `[{"type":"open_ended","question":"a","answer":"1"},{"type":"open_ended","question":"b","answer":"2"}]`
	g := NewGenerator(bioRetriever(nil), store, &mockChatter{responses: []string{reply}}, "m", GeneratorOptions{})

	quiz, err := g.Generate(context.Background(), Request{Topic: "Cells", NumQuestions: 1})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if quiz.QuestionCount != 1 || quiz.Topic != "Cells" {
		t.Errorf("quiz = %+v, want 1 question on Cells", quiz)
	}
}

func TestGenerate_EndpointDown(t *testing.T) {
	g := NewGenerator(bioRetriever(nil), openTestStore(t), &mockChatter{err: errors.New("connection refused")}, "m", GeneratorOptions{})
	if _, err := g.Generate(context.Background(), Request{}); err == nil {
		t.Error("expected error when the model is unreachable")
	}
}

func TestGenerate_NoContext(t *testing.T) {
	chat := &mockChatter{responses: []string{validReply}}
	r := &mockRetriever{retrieveFn: func(context.Context, string, int) ([]retrieval.ChunkResult, error) { return nil, nil }}
	quiz, err := NewGenerator(r, openTestStore(t), chat, "m", GeneratorOptions{}).Generate(context.Background(), Request{})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if quiz.QuestionCount != 0 || chat.calls != 0 {
		t.Errorf("quiz = %+v calls = %d, want empty quiz without generation", quiz, chat.calls)
	}
}
