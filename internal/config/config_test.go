package config

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// clearEnv blanks every DOCQUIZ_* variable for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, s := range specs {
		t.Setenv(s.env, "")
	}
}

// TestDefaults verifies all default values are applied when no file exists.
func TestDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := loadWith(newFileBackend(filepath.Join(t.TempDir(), "missing.yaml")))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 8000 {
		t.Errorf("Server.Port = %d, want 8000", cfg.Server.Port)
	}
	if cfg.Engine.Backend != "ollama" {
		t.Errorf("Engine.Backend = %q, want ollama", cfg.Engine.Backend)
	}
	if cfg.Ollama.ChatModel != "mistral" {
		t.Errorf("Ollama.ChatModel = %q, want mistral", cfg.Ollama.ChatModel)
	}
	if cfg.Ollama.EmbedModel != "nomic-embed-text" {
		t.Errorf("Ollama.EmbedModel = %q, want nomic-embed-text", cfg.Ollama.EmbedModel)
	}
	if cfg.Vector.Backend != "sqlite" {
		t.Errorf("Vector.Backend = %q, want sqlite", cfg.Vector.Backend)
	}
	if cfg.Ingest.MaxConcurrent != 5 || cfg.Ingest.BatchSize != 16 || cfg.Ingest.ChunkSize != 300 {
		t.Errorf("Ingest = %+v, want 5/16/300", cfg.Ingest)
	}
	if !cfg.Ingest.Watch {
		t.Error("Ingest.Watch = false, want true")
	}
	if cfg.Quiz.MaxRetries != 2 || cfg.Quiz.PassThreshold != 60 {
		t.Errorf("Quiz = %+v", cfg.Quiz)
	}
	if cfg.Tracker.WeakThreshold != 70 {
		t.Errorf("Tracker.WeakThreshold = %v, want 70", cfg.Tracker.WeakThreshold)
	}
	if cfg.Storage.UploadDir != filepath.Join(cfg.Storage.DataDir, "uploads") {
		t.Errorf("Storage.UploadDir = %q, want under data dir", cfg.Storage.UploadDir)
	}
	if cfg.ChatModel() != "mistral" || cfg.EmbedModel() != "nomic-embed-text" {
		t.Errorf("models = %q/%q", cfg.ChatModel(), cfg.EmbedModel())
	}
}

// TestYAMLParsing verifies nested YAML sections map onto dotted keys.
func TestYAMLParsing(t *testing.T) {
	clearEnv(t)
	path := writeTempConfig(t, `
server:
  port: 9000
ollama:
  base_url: http://custom:11434
  chat_model: llama3
storage:
  data_dir: /tmp/docquiz-test
ingest:
  max_concurrent: 2
  watch: false
tracker:
  weak_threshold: 55.5
response:
  language: Spanish
`)

	cfg, err := loadWith(newFileBackend(path))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("Server.Port = %d, want 9000", cfg.Server.Port)
	}
	if cfg.Ollama.BaseURL != "http://custom:11434" {
		t.Errorf("Ollama.BaseURL = %q", cfg.Ollama.BaseURL)
	}
	if cfg.Ollama.ChatModel != "llama3" {
		t.Errorf("Ollama.ChatModel = %q", cfg.Ollama.ChatModel)
	}
	if cfg.Storage.UploadDir != "/tmp/docquiz-test/uploads" {
		t.Errorf("Storage.UploadDir = %q", cfg.Storage.UploadDir)
	}
	if cfg.Ingest.MaxConcurrent != 2 {
		t.Errorf("Ingest.MaxConcurrent = %d, want 2", cfg.Ingest.MaxConcurrent)
	}
	if cfg.Ingest.Watch {
		t.Error("Ingest.Watch = true, want false")
	}
	if cfg.Tracker.WeakThreshold != 55.5 {
		t.Errorf("Tracker.WeakThreshold = %v, want 55.5", cfg.Tracker.WeakThreshold)
	}
	if cfg.Response.Language != "Spanish" {
		t.Errorf("Response.Language = %q", cfg.Response.Language)
	}
}

// TestEnvOverride verifies that environment variables override file values.
func TestEnvOverride(t *testing.T) {
	clearEnv(t)
	path := writeTempConfig(t, "server:\n  port: 9000\n")
	t.Setenv("DOCQUIZ_SERVER_PORT", "9100")
	t.Setenv("DOCQUIZ_SERVER_API_TOKEN", "secret")
	t.Setenv("DOCQUIZ_RETRIEVAL_TOP_K", "not-a-number")

	cfg, err := loadWith(newFileBackend(path))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 9100 {
		t.Errorf("Server.Port = %d, want 9100", cfg.Server.Port)
	}
	if cfg.Server.APIToken != "secret" {
		t.Errorf("Server.APIToken = %q, want secret", cfg.Server.APIToken)
	}
	if cfg.Retrieval.TopK != 5 {
		t.Errorf("Retrieval.TopK = %d, want default 5 on parse failure", cfg.Retrieval.TopK)
	}
}

// TestSecretsIgnoredInFile verifies secrets are only read from the environment.
func TestSecretsIgnoredInFile(t *testing.T) {
	clearEnv(t)
	path := writeTempConfig(t, "engine:\n  backend: gemini\ngemini:\n  api_key: from-file\n")

	_, err := loadWith(newFileBackend(path))
	if err == nil || !strings.Contains(err.Error(), "missing required config") {
		t.Fatalf("err = %v, want missing Gemini key", err)
	}

	t.Setenv("DOCQUIZ_GEMINI_API_KEY", "from-env")
	cfg, err := loadWith(newFileBackend(path))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Gemini.APIKey != "from-env" {
		t.Errorf("Gemini.APIKey = %q, want from-env", cfg.Gemini.APIKey)
	}
	if cfg.ChatModel() != "gemini-1.5-flash-latest" {
		t.Errorf("ChatModel = %q", cfg.ChatModel())
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"bad engine", "engine:\n  backend: openai\n", "invalid engine.backend"},
		{"bad vector", "vector:\n  backend: redis\n", "invalid vector.backend"},
		{"pgvector without url", "vector:\n  backend: pgvector\n", "vector.postgres_url"},
		{"pgvector with url", "vector:\n  backend: pgvector\n  postgres_url: postgres://localhost/docquiz\n", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			_, err := loadWith(newFileBackend(writeTempConfig(t, tt.yaml)))
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("err = %v, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestSetKey(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "docquiz", "config.yaml")
	b := newFileBackend(path)

	if err := setKeyIn(b, "server.port", "7000"); err != nil {
		t.Fatalf("set int: %v", err)
	}
	if err := setKeyIn(b, "ollama.chat_model", "gemma"); err != nil {
		t.Fatalf("set string: %v", err)
	}
	if err := setKeyIn(b, "tracker.weak_threshold", "65"); err != nil {
		t.Fatalf("set float: %v", err)
	}
	if err := setKeyIn(b, "ingest.watch", "false"); err != nil {
		t.Fatalf("set bool: %v", err)
	}

	cfg, err := loadWith(newFileBackend(path))
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if cfg.Server.Port != 7000 || cfg.Ollama.ChatModel != "gemma" || cfg.Tracker.WeakThreshold != 65 || cfg.Ingest.Watch {
		t.Errorf("reloaded = port %d model %q threshold %v watch %v", cfg.Server.Port, cfg.Ollama.ChatModel, cfg.Tracker.WeakThreshold, cfg.Ingest.Watch)
	}

	if err := setKeyIn(b, "server.port", "abc"); err == nil {
		t.Error("expected error for invalid integer")
	}
	if err := setKeyIn(b, "gemini.api_key", "x"); err == nil || !strings.Contains(err.Error(), "DOCQUIZ_GEMINI_API_KEY") {
		t.Errorf("secret set err = %v", err)
	}
	if err := setKeyIn(b, "no.such_key", "x"); err == nil {
		t.Error("expected error for unknown key")
	}

	if err := b.Delete("server.port"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, _ := newFileBackend(path).GetInt("server.port"); ok {
		t.Error("server.port still present after Delete")
	}
}

func TestShowAllHidesSecrets(t *testing.T) {
	cfg := defaults()
	cfg.Gemini.APIKey = "hidden"
	for _, ki := range ShowAll(cfg) {
		if ki.Value == "hidden" {
			t.Errorf("secret exposed under %s", ki.Key)
		}
	}
	keys := ValidKeys()
	if slices.Contains(keys, "gemini.api_key") || !slices.Contains(keys, "vector.backend") {
		t.Errorf("ValidKeys = %v", keys)
	}
}
