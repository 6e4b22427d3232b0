package config

import (
	"fmt"
	"os"
	"strconv"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kBool
	kFloat
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	secret  bool
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.port", typ: kInt, env: "DOCQUIZ_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "server.api_token", typ: kString, env: "DOCQUIZ_SERVER_API_TOKEN",
		secret: true,
		apply:   func(cfg *Config, v any) { cfg.Server.APIToken = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.APIToken },
	},
	{
		key: "engine.backend", typ: kString, env: "DOCQUIZ_ENGINE_BACKEND",
		apply:   func(cfg *Config, v any) { cfg.Engine.Backend = v.(string) },
		extract: func(cfg Config) any { return cfg.Engine.Backend },
	},
	{
		key: "ollama.base_url", typ: kString, env: "DOCQUIZ_OLLAMA_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Ollama.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Ollama.BaseURL },
	},
	{
		key: "ollama.chat_model", typ: kString, env: "DOCQUIZ_OLLAMA_CHAT_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Ollama.ChatModel = v.(string) },
		extract: func(cfg Config) any { return cfg.Ollama.ChatModel },
	},
	{
		key: "ollama.embed_model", typ: kString, env: "DOCQUIZ_OLLAMA_EMBED_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Ollama.EmbedModel = v.(string) },
		extract: func(cfg Config) any { return cfg.Ollama.EmbedModel },
	},
	{
		key: "gemini.api_key", typ: kString, env: "DOCQUIZ_GEMINI_API_KEY",
		secret: true,
		apply:   func(cfg *Config, v any) { cfg.Gemini.APIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Gemini.APIKey },
	},
	{
		key: "gemini.chat_model", typ: kString, env: "DOCQUIZ_GEMINI_CHAT_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Gemini.ChatModel = v.(string) },
		extract: func(cfg Config) any { return cfg.Gemini.ChatModel },
	},
	{
		key: "gemini.embed_model", typ: kString, env: "DOCQUIZ_GEMINI_EMBED_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Gemini.EmbedModel = v.(string) },
		extract: func(cfg Config) any { return cfg.Gemini.EmbedModel },
	},
	{
		key: "storage.data_dir", typ: kString, env: "DOCQUIZ_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "storage.upload_dir", typ: kString, env: "DOCQUIZ_STORAGE_UPLOAD_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.UploadDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.UploadDir },
	},
	{
		key: "vector.backend", typ: kString, env: "DOCQUIZ_VECTOR_BACKEND",
		apply:   func(cfg *Config, v any) { cfg.Vector.Backend = v.(string) },
		extract: func(cfg Config) any { return cfg.Vector.Backend },
	},
	{
		key: "vector.postgres_url", typ: kString, env: "DOCQUIZ_VECTOR_POSTGRES_URL",
		apply:   func(cfg *Config, v any) { cfg.Vector.PostgresURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Vector.PostgresURL },
	},
	{
		key: "ingest.max_concurrent", typ: kInt, env: "DOCQUIZ_INGEST_MAX_CONCURRENT",
		apply:   func(cfg *Config, v any) { cfg.Ingest.MaxConcurrent = v.(int) },
		extract: func(cfg Config) any { return cfg.Ingest.MaxConcurrent },
	},
	{
		key: "ingest.batch_size", typ: kInt, env: "DOCQUIZ_INGEST_BATCH_SIZE",
		apply:   func(cfg *Config, v any) { cfg.Ingest.BatchSize = v.(int) },
		extract: func(cfg Config) any { return cfg.Ingest.BatchSize },
	},
	{
		key: "ingest.chunk_size", typ: kInt, env: "DOCQUIZ_INGEST_CHUNK_SIZE",
		apply:   func(cfg *Config, v any) { cfg.Ingest.ChunkSize = v.(int) },
		extract: func(cfg Config) any { return cfg.Ingest.ChunkSize },
	},
	{
		key: "ingest.poll_interval", typ: kString, env: "DOCQUIZ_INGEST_POLL_INTERVAL",
		apply:   func(cfg *Config, v any) { cfg.Ingest.PollInterval = v.(string) },
		extract: func(cfg Config) any { return cfg.Ingest.PollInterval },
	},
	{
		key: "ingest.watch", typ: kBool, env: "DOCQUIZ_INGEST_WATCH",
		apply:   func(cfg *Config, v any) { cfg.Ingest.Watch = v.(bool) },
		extract: func(cfg Config) any { return cfg.Ingest.Watch },
	},
	{
		key: "retrieval.top_k", typ: kInt, env: "DOCQUIZ_RETRIEVAL_TOP_K",
		apply:   func(cfg *Config, v any) { cfg.Retrieval.TopK = v.(int) },
		extract: func(cfg Config) any { return cfg.Retrieval.TopK },
	},
	{
		key: "retrieval.rerank", typ: kBool, env: "DOCQUIZ_RETRIEVAL_RERANK",
		apply:   func(cfg *Config, v any) { cfg.Retrieval.Rerank = v.(bool) },
		extract: func(cfg Config) any { return cfg.Retrieval.Rerank },
	},
	{
		key: "retrieval.rerank_threshold", typ: kFloat, env: "DOCQUIZ_RETRIEVAL_RERANK_THRESHOLD",
		apply:   func(cfg *Config, v any) { cfg.Retrieval.RerankThreshold = v.(float64) },
		extract: func(cfg Config) any { return cfg.Retrieval.RerankThreshold },
	},
	{
		key: "quiz.num_questions", typ: kInt, env: "DOCQUIZ_QUIZ_NUM_QUESTIONS",
		apply:   func(cfg *Config, v any) { cfg.Quiz.NumQuestions = v.(int) },
		extract: func(cfg Config) any { return cfg.Quiz.NumQuestions },
	},
	{
		key: "quiz.context_chunks", typ: kInt, env: "DOCQUIZ_QUIZ_CONTEXT_CHUNKS",
		apply:   func(cfg *Config, v any) { cfg.Quiz.ContextChunks = v.(int) },
		extract: func(cfg Config) any { return cfg.Quiz.ContextChunks },
	},
	{
		key: "quiz.max_retries", typ: kInt, env: "DOCQUIZ_QUIZ_MAX_RETRIES",
		apply:   func(cfg *Config, v any) { cfg.Quiz.MaxRetries = v.(int) },
		extract: func(cfg Config) any { return cfg.Quiz.MaxRetries },
	},
	{
		key: "quiz.pass_threshold", typ: kInt, env: "DOCQUIZ_QUIZ_PASS_THRESHOLD",
		apply:   func(cfg *Config, v any) { cfg.Quiz.PassThreshold = v.(int) },
		extract: func(cfg Config) any { return cfg.Quiz.PassThreshold },
	},
	{
		key: "tracker.weak_threshold", typ: kFloat, env: "DOCQUIZ_TRACKER_WEAK_THRESHOLD",
		apply:   func(cfg *Config, v any) { cfg.Tracker.WeakThreshold = v.(float64) },
		extract: func(cfg Config) any { return cfg.Tracker.WeakThreshold },
	},
	{
		key: "response.language", typ: kString, env: "DOCQUIZ_RESPONSE_LANGUAGE",
		apply:   func(cfg *Config, v any) { cfg.Response.Language = v.(string) },
		extract: func(cfg Config) any { return cfg.Response.Language },
	},
	{
		key: "log.level", typ: kString, env: "DOCQUIZ_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		switch s.typ {
		case kString:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kInt:
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kBool:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok && v != "" {
				if bv, err := strconv.ParseBool(v); err == nil {
					s.apply(cfg, bv)
				} else {
					fmt.Fprintf(os.Stderr, "[WARN] could not parse bool from config key %s=%q: %v. Using default value.\n", s.key, v, err)
				}
			}
		case kFloat:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok && v != "" {
				if f, err := strconv.ParseFloat(v, 64); err == nil {
					s.apply(cfg, f)
				} else {
					fmt.Fprintf(os.Stderr, "[WARN] could not parse float from config key %s=%q: %v. Using default value.\n", s.key, v, err)
				}
			}
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		if s.env == "" {
			continue
		}
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, raw)
		case kInt:
			if i, err := strconv.Atoi(raw); err == nil {
				s.apply(cfg, i)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse integer from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		case kBool:
			if b, err := strconv.ParseBool(raw); err == nil {
				s.apply(cfg, b)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse bool from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		case kFloat:
			if f, err := strconv.ParseFloat(raw, 64); err == nil {
				s.apply(cfg, f)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse float from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		}
	}
}
