package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig
	Engine    EngineConfig
	Ollama    OllamaConfig
	Gemini    GeminiConfig
	Storage   StorageConfig
	Vector    VectorConfig
	Ingest    IngestConfig
	Retrieval RetrievalConfig
	Quiz      QuizConfig
	Tracker   TrackerConfig
	Response  ResponseConfig
	Log       LogConfig
}

type ServerConfig struct {
	Port     int
	APIToken string
}

type EngineConfig struct {
	Backend string
}

type OllamaConfig struct {
	BaseURL    string
	ChatModel  string
	EmbedModel string
}

type GeminiConfig struct {
	APIKey     string
	ChatModel  string
	EmbedModel string
}

type StorageConfig struct {
	DataDir   string
	UploadDir string
}

type VectorConfig struct {
	Backend     string
	PostgresURL string
}

type IngestConfig struct {
	MaxConcurrent int
	BatchSize     int
	ChunkSize     int
	PollInterval  string
	Watch         bool
}

type RetrievalConfig struct {
	TopK int
	// Rerank scores retrieved chunks with the chat model before answering.
	Rerank          bool
	RerankThreshold float64
}

type QuizConfig struct {
	NumQuestions  int
	ContextChunks int
	MaxRetries    int
	PassThreshold int
}

type TrackerConfig struct {
	WeakThreshold float64
}

type ResponseConfig struct {
	Language string
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{Port: 8000},
		Engine: EngineConfig{Backend: "ollama"},
		Ollama: OllamaConfig{
			BaseURL:    "http://localhost:11434",
			ChatModel:  "mistral",
			EmbedModel: "nomic-embed-text",
		},
		Gemini: GeminiConfig{
			ChatModel:  "gemini-1.5-flash-latest",
			EmbedModel: "text-embedding-004",
		},
		Storage: StorageConfig{DataDir: defaultDataDir()},
		Vector:  VectorConfig{Backend: "sqlite"},
		Ingest: IngestConfig{
			MaxConcurrent: 5,
			BatchSize:     16,
			ChunkSize:     300,
			PollInterval:  "30s",
			Watch:         true,
		},
		Retrieval: RetrievalConfig{TopK: 5, RerankThreshold: 0.3},
		Quiz: QuizConfig{
			NumQuestions:  3,
			ContextChunks: 8,
			MaxRetries:    2,
			PassThreshold: 60,
		},
		Tracker:  TrackerConfig{WeakThreshold: 70},
		Response: ResponseConfig{Language: "English"},
		Log:      LogConfig{Level: "info"},
	}
}

// ChatModel returns the chat model of the configured engine backend.
func (c Config) ChatModel() string {
	if c.Engine.Backend == "gemini" {
		return c.Gemini.ChatModel
	}
	return c.Ollama.ChatModel
}

// EmbedModel returns the embedding model of the configured engine backend.
func (c Config) EmbedModel() string {
	if c.Engine.Backend == "gemini" {
		return c.Gemini.EmbedModel
	}
	return c.Ollama.EmbedModel
}

// Load reads configuration in order of increasing precedence: built-in
// defaults, the YAML file at $XDG_CONFIG_HOME/docquiz/config.yaml, and
// DOCQUIZ_* environment variables. A .env file in the working directory is
// loaded into the environment first; variables already set are kept.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("loading .env: %w", err)
	}
	return loadWith(newFileBackend(configFilePath()))
}

func loadWith(b ConfigBackend) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}
	applyEnvOverrides(&cfg)

	if cfg.Storage.UploadDir == "" {
		cfg.Storage.UploadDir = filepath.Join(cfg.Storage.DataDir, "uploads")
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.Engine.Backend {
	case "ollama":
	case "gemini":
		if c.Gemini.APIKey == "" {
			return fmt.Errorf("missing required config: Gemini API key. Set it via environment variable DOCQUIZ_GEMINI_API_KEY")
		}
	default:
		return fmt.Errorf("invalid engine.backend %q: want ollama or gemini", c.Engine.Backend)
	}

	switch c.Vector.Backend {
	case "sqlite":
	case "pgvector":
		if c.Vector.PostgresURL == "" {
			return fmt.Errorf("missing required config: vector.postgres_url for the pgvector backend")
		}
	default:
		return fmt.Errorf("invalid vector.backend %q: want sqlite or pgvector", c.Vector.Backend)
	}
	return nil
}

func defaultDataDir() string {
	dir := os.Getenv("XDG_DATA_HOME")
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".local", "share")
		} else {
			return "docquiz-data"
		}
	}
	return filepath.Join(dir, "docquiz")
}

func configFilePath() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".config")
		} else {
			dir = "."
		}
	}
	return filepath.Join(dir, "docquiz", "config.yaml")
}
