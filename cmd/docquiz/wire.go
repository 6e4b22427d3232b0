package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/kalambet/docquiz/internal/config"
	"github.com/kalambet/docquiz/internal/engine"
	"github.com/kalambet/docquiz/internal/extract"
	"github.com/kalambet/docquiz/internal/ingest"
	"github.com/kalambet/docquiz/internal/qa"
	"github.com/kalambet/docquiz/internal/quiz"
	"github.com/kalambet/docquiz/internal/registry"
	"github.com/kalambet/docquiz/internal/reranking"
	"github.com/kalambet/docquiz/internal/retrieval"
	"github.com/kalambet/docquiz/internal/storage"
	"github.com/kalambet/docquiz/internal/tracker"
)

// app is the fully wired service graph shared by every command.
type app struct {
	cfg       config.Config
	store     *storage.Store
	engine    engine.Engine
	index     *retrieval.Index
	retriever *retrieval.Retriever
	pipeline  *ingest.Pipeline
	watcher   *ingest.Watcher
	generator *quiz.Generator
	evaluator *quiz.Evaluator
	tracker   *tracker.Tracker
	answerer  *qa.Answerer

	closers []func()
}

func setupLogging(cfg config.Config) {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Log.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

func newApp(ctx context.Context, cfg config.Config) (*app, error) {
	a := &app{cfg: cfg}

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return nil, fmt.Errorf("opening storage: %w", err)
	}
	a.store = store
	a.closers = append(a.closers, func() {
		if err := store.Close(); err != nil {
			slog.Warn("closing storage", "error", err)
		}
	})

	eng, err := engine.New(ctx, engine.BackendConfig{
		Backend:       cfg.Engine.Backend,
		OllamaBaseURL: cfg.Ollama.BaseURL,
		GeminiAPIKey:  cfg.Gemini.APIKey,
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("creating engine: %w", err)
	}
	a.engine = eng
	if c, ok := eng.(io.Closer); ok {
		a.closers = append(a.closers, func() { c.Close() })
	}

	vectors, err := a.openVectorStore(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	embedder := retrieval.NewEmbedder(eng, cfg.EmbedModel())
	a.index = retrieval.NewIndex(vectors, embedder)
	a.retriever = retrieval.NewRetriever(a.index)

	a.pipeline = ingest.NewPipeline(registry.New(store), extract.NewRegistry(), a.index, ingest.Options{
		MaxConcurrent: cfg.Ingest.MaxConcurrent,
		BatchSize:     cfg.Ingest.BatchSize,
		ChunkSize:     cfg.Ingest.ChunkSize,
	})
	poll, err := time.ParseDuration(cfg.Ingest.PollInterval)
	if err != nil {
		slog.Warn("invalid ingest poll interval, using default 30s", "value", cfg.Ingest.PollInterval, "error", err)
		poll = 0
	}
	a.watcher = ingest.NewWatcher(a.pipeline, cfg.Storage.UploadDir, nil, poll)

	a.tracker = tracker.New(store)
	model := cfg.ChatModel()
	a.generator = quiz.NewGenerator(a.retriever, store, eng, model, quiz.GeneratorOptions{
		ContextChunks: cfg.Quiz.ContextChunks,
		MaxRetries:    cfg.Quiz.MaxRetries,
	})
	a.evaluator = quiz.NewEvaluator(store, a.tracker, eng, model, cfg.Response.Language, cfg.Quiz.PassThreshold)
	var answerSource qa.Retriever = a.retriever
	if cfg.Retrieval.Rerank {
		answerSource = reranking.New(a.retriever, eng, model, reranking.Options{Threshold: cfg.Retrieval.RerankThreshold})
	}
	a.answerer = qa.NewAnswerer(answerSource, eng, model, cfg.Retrieval.TopK)

	return a, nil
}

func (a *app) openVectorStore(ctx context.Context) (retrieval.VectorStore, error) {
	switch a.cfg.Vector.Backend {
	case "pgvector":
		pg, err := retrieval.OpenPGVectorStore(ctx, a.cfg.Vector.PostgresURL)
		if err != nil {
			return nil, fmt.Errorf("opening pgvector store: %w", err)
		}
		a.closers = append(a.closers, pg.Close)
		return pg, nil
	default:
		return retrieval.NewSQLiteStore(a.store.DB()), nil
	}
}

// ensureEngine verifies the backend is reachable and the configured models
// are available.
func (a *app) ensureEngine(ctx context.Context, w io.Writer) error {
	if err := engine.EnsureReady(ctx, a.engine, w, a.cfg.ChatModel(), a.cfg.EmbedModel()); err != nil {
		return fmt.Errorf("%s backend: %w", a.cfg.Engine.Backend, err)
	}
	return nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// loadApp loads config, installs logging and wires the app.
func loadApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	setupLogging(cfg)
	return newApp(ctx, cfg)
}
