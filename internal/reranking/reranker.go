// Package reranking re-scores retrieved chunks with the chat model so that
// question answering sees the most relevant context first.
package reranking

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kalambet/docquiz/internal/engine"
	"github.com/kalambet/docquiz/internal/retrieval"
)

const (
	defaultConcurrency = 3
	defaultTimeout     = 20 * time.Second
	defaultOverfetch   = 2
)

// Retriever is the underlying vector search.
type Retriever interface {
	Retrieve(ctx context.Context, query string, topK int) ([]retrieval.ChunkResult, error)
}

// Chatter sends a prompt to the chat model.
type Chatter interface {
	Chat(ctx context.Context, model string, messages []engine.Message, jsonSchema *engine.Schema) (string, error)
}

type Options struct {
	// Threshold drops chunks whose relevance (0..1) is below it.
	Threshold float64
	// Timeout bounds the whole scoring pass. On expiry the vector order is kept.
	Timeout time.Duration
	// Overfetch multiplies topK when asking the inner retriever for candidates.
	Overfetch   int
	Concurrency int
}

// Reranker wraps another Retriever and reorders its results by model-judged
// relevance. Reranked chunks carry Score = 1 - relevance so that lower still
// means more relevant downstream.
type Reranker struct {
	inner  Retriever
	chat   Chatter
	model  string
	opts   Options
	logger *slog.Logger
}

func New(inner Retriever, chat Chatter, model string, opts Options) *Reranker {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.Overfetch <= 0 {
		opts.Overfetch = defaultOverfetch
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultConcurrency
	}
	return &Reranker{inner: inner, chat: chat, model: model, opts: opts, logger: slog.Default()}
}

// Retrieve fetches candidates from the inner retriever and returns up to
// topK of them, most relevant first. A blank query is passed through since
// there is nothing to judge relevance against.
func (r *Reranker) Retrieve(ctx context.Context, query string, topK int) ([]retrieval.ChunkResult, error) {
	if strings.TrimSpace(query) == "" || topK <= 0 {
		return r.inner.Retrieve(ctx, query, topK)
	}

	candidates, err := r.inner.Retrieve(ctx, query, topK*r.opts.Overfetch)
	if err != nil {
		return nil, err
	}
	ranked := r.Rerank(ctx, query, candidates)
	if len(ranked) > topK {
		ranked = ranked[:topK]
	}
	return ranked, nil
}

type scored struct {
	chunk     retrieval.ChunkResult
	relevance float64
}

// Rerank scores every chunk against query, drops those below the threshold
// and sorts the rest by relevance. If scoring does not finish in time the
// chunks are returned unchanged, distances included. A chunk whose score cannot be obtained
// keeps its place with neutral relevance.
func (r *Reranker) Rerank(ctx context.Context, query string, chunks []retrieval.ChunkResult) []retrieval.ChunkResult {
	if len(chunks) < 2 {
		return chunks
	}

	tctx, cancel := context.WithTimeout(ctx, r.opts.Timeout)
	defer cancel()

	results := make([]scored, len(chunks))
	g, gctx := errgroup.WithContext(tctx)
	g.SetLimit(r.opts.Concurrency)
	for i, ch := range chunks {
		g.Go(func() error {
			rel, err := r.score(gctx, query, ch)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				r.logger.Debug("rerank score failed, keeping chunk", "chunk", ch.ID, "error", err)
				rel = r.opts.Threshold
			}
			results[i] = scored{chunk: ch, relevance: rel}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		r.logger.Warn("rerank timed out, using vector order", "chunks", len(chunks), "error", err)
		return chunks
	}

	kept := results[:0]
	for _, s := range results {
		if s.relevance >= r.opts.Threshold {
			kept = append(kept, s)
		}
	}
	sort.SliceStable(kept, func(i, j int) bool { return kept[i].relevance > kept[j].relevance })

	out := make([]retrieval.ChunkResult, len(kept))
	for i, s := range kept {
		out[i] = s.chunk
		out[i].Score = float32(1 - s.relevance)
	}
	return out
}

var scoreSchema = &engine.Schema{
	Type: "object",
	Properties: map[string]engine.SchemaProperty{
		"score": {Type: "number", Description: "Relevance from 0.0 to 1.0"},
	},
	Required: []string{"score"},
}

func (r *Reranker) score(ctx context.Context, query string, ch retrieval.ChunkResult) (float64, error) {
	prompt := "Rate how useful the following passage is for answering the question, from 0.0 (useless) to 1.0 (answers it).\n" +
		"Question: " + query + "\n" +
		"Passage: " + ch.Text + "\n" +
		`Respond with only a JSON object: {"score": <number>}`

	resp, err := r.chat.Chat(ctx, r.model, []engine.Message{{Role: engine.RoleUser, Content: prompt}}, scoreSchema)
	if err != nil {
		return 0, err
	}
	return parseScore(resp)
}

// parseScore extracts {"score": x} from a model reply that may be wrapped in
// a code fence or surrounded by prose, clamping x to [0, 1].
func parseScore(resp string) (float64, error) {
	s := strings.TrimSpace(resp)
	if idx := strings.Index(s, "```"); idx != -1 {
		s = strings.TrimPrefix(s[idx+3:], "json")
		if end := strings.Index(s, "```"); end != -1 {
			s = s[:end]
		}
	}

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end <= start {
		return 0, fmt.Errorf("no JSON object in %q", resp)
	}
	var obj struct {
		Score *float64 `json:"score"`
	}
	if err := json.Unmarshal([]byte(s[start:end+1]), &obj); err != nil {
		return 0, fmt.Errorf("unmarshal score: %w", err)
	}
	if obj.Score == nil {
		return 0, fmt.Errorf("missing score in %q", resp)
	}
	return min(max(*obj.Score, 0), 1), nil
}
