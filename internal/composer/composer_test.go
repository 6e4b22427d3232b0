package composer

import (
	"strings"
	"testing"

	"github.com/kalambet/docquiz/internal/engine"
	"github.com/kalambet/docquiz/internal/retrieval"
)

func chunk(id string, score float32, text string) retrieval.ChunkResult {
	return retrieval.ChunkResult{ID: id, FileID: id, FileExt: "pdf", Text: text, Score: score}
}

func TestCompose_NoChunks(t *testing.T) {
	msgs := New(0).Compose("answer briefly", nil, "what is osmosis?")
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}
	if msgs[0].Role != engine.RoleSystem || msgs[0].Content != "answer briefly" {
		t.Errorf("system = %+v", msgs[0])
	}
	if msgs[1].Role != engine.RoleUser || msgs[1].Content != "what is osmosis?" {
		t.Errorf("user = %+v", msgs[1])
	}
}

func TestCompose_CitesSources(t *testing.T) {
	msgs := New(0).Compose("rules", []retrieval.ChunkResult{chunk("bio", 0.1, "cells divide")}, "q")
	if !strings.Contains(msgs[0].Content, "Context:\n[bio.pdf] cells divide") {
		t.Errorf("system = %q, want cited context", msgs[0].Content)
	}
}

func TestContext_MostRelevantFirst(t *testing.T) {
	got := New(0).Context([]retrieval.ChunkResult{
		chunk("far", 0.9, "far text"),
		chunk("near", 0.1, "near text"),
	})
	if strings.Index(got, "[near.pdf]") > strings.Index(got, "[far.pdf]") {
		t.Errorf("context = %q, want nearest chunk first", got)
	}
}

func TestContext_TokenBudget(t *testing.T) {
	long := strings.Repeat("x", 400)
	c := New(120)
	got := c.Context([]retrieval.ChunkResult{
		chunk("a", 0.1, long),
		chunk("b", 0.2, long),
		chunk("c", 0.3, "short"),
	})
	if strings.Contains(got, "[b.pdf]") {
		t.Error("second long chunk should not fit the budget")
	}
	if !strings.Contains(got, "[a.pdf]") || !strings.Contains(got, "[c.pdf]") {
		t.Errorf("context = %q, want a and c", got)
	}
}

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"", 0},
		{"abc", 1},
		{"abcd", 1},
		{"abcde", 2},
	}
	for _, tt := range tests {
		if got := EstimateTokens(tt.in); got != tt.want {
			t.Errorf("EstimateTokens(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
