package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

const (
	DefaultGeminiChatModel  = "gemini-1.5-flash-latest"
	DefaultGeminiEmbedModel = "text-embedding-004"
)

// ErrHostedModel is returned by GeminiEngine.PullModel. Gemini models are
// served remotely and cannot be downloaded.
var ErrHostedModel = errors.New("gemini models are hosted and cannot be pulled")

// GeminiEngine serves Engine from the Google Gemini API.
type GeminiEngine struct {
	client *genai.Client
}

// NewGeminiEngine creates a client authenticated with apiKey. Close releases
// the underlying connection.
func NewGeminiEngine(ctx context.Context, apiKey string) (*GeminiEngine, error) {
	if apiKey == "" {
		return nil, errors.New("gemini: api key is required")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}
	return &GeminiEngine{client: client}, nil
}

func (e *GeminiEngine) Close() error { return e.client.Close() }

// Chat maps system messages to the model's system instruction and replays the
// remaining turns as chat history before sending the final user turn.
func (e *GeminiEngine) Chat(ctx context.Context, model string, messages []Message, jsonSchema *Schema) (string, error) {
	system, history, last, err := splitMessages(messages)
	if err != nil {
		return "", err
	}

	m := e.client.GenerativeModel(model)
	if system != "" {
		m.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	}
	if jsonSchema != nil {
		m.ResponseMIMEType = "application/json"
		m.ResponseSchema = toGeminiSchema(jsonSchema)
	}

	cs := m.StartChat()
	cs.History = history
	resp, err := cs.SendMessage(ctx, last.Parts...)
	if err != nil {
		return "", fmt.Errorf("gemini chat: %w", err)
	}
	return responseText(resp), nil
}

func (e *GeminiEngine) Embed(ctx context.Context, model string, text string) ([]float32, error) {
	res, err := e.client.EmbeddingModel(model).EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, fmt.Errorf("gemini embed: %w", err)
	}
	if res.Embedding == nil || len(res.Embedding.Values) == 0 {
		return nil, errors.New("gemini embed: empty embedding")
	}
	return res.Embedding.Values, nil
}

// IsRunning reports whether the API answers a model listing.
func (e *GeminiEngine) IsRunning(ctx context.Context) bool {
	_, err := e.client.ListModels(ctx).Next()
	return err == nil || errors.Is(err, iterator.Done)
}

func (e *GeminiEngine) ListModels(ctx context.Context) ([]string, error) {
	var names []string
	it := e.client.ListModels(ctx)
	for {
		info, err := it.Next()
		if errors.Is(err, iterator.Done) {
			return names, nil
		}
		if err != nil {
			return nil, fmt.Errorf("listing gemini models: %w", err)
		}
		names = append(names, trimModelName(info.Name))
	}
}

func (e *GeminiEngine) HasModel(ctx context.Context, name string) bool {
	names, err := e.ListModels(ctx)
	if err != nil {
		return false
	}
	want := trimModelName(name)
	for _, n := range names {
		if n == want {
			return true
		}
	}
	return false
}

func (e *GeminiEngine) PullModel(context.Context, string, func(PullProgress)) error {
	return ErrHostedModel
}

// splitMessages separates system text from the conversation. The final
// message must come from the user.
func splitMessages(messages []Message) (string, []*genai.Content, *genai.Content, error) {
	var system []string
	var turns []*genai.Content
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			system = append(system, m.Content)
		case RoleAssistant:
			turns = append(turns, &genai.Content{Role: "model", Parts: []genai.Part{genai.Text(m.Content)}})
		default:
			turns = append(turns, &genai.Content{Role: "user", Parts: []genai.Part{genai.Text(m.Content)}})
		}
	}
	if len(turns) == 0 || turns[len(turns)-1].Role != "user" {
		return "", nil, nil, errors.New("gemini chat: last message must be from the user")
	}
	return strings.Join(system, "\n\n"), turns[:len(turns)-1], turns[len(turns)-1], nil
}

func toGeminiSchema(s *Schema) *genai.Schema {
	out := &genai.Schema{Type: genai.TypeObject, Required: s.Required}
	if len(s.Properties) == 0 {
		return out
	}
	out.Properties = make(map[string]*genai.Schema, len(s.Properties))
	for k, p := range s.Properties {
		t, ok := geminiType(p.Type)
		if !ok {
			// Nested shapes are not described by SchemaProperty; fall back to
			// plain JSON mode.
			return nil
		}
		out.Properties[k] = &genai.Schema{Type: t, Description: p.Description}
	}
	return out
}

func geminiType(t string) (genai.Type, bool) {
	switch t {
	case "string":
		return genai.TypeString, true
	case "number":
		return genai.TypeNumber, true
	case "integer":
		return genai.TypeInteger, true
	case "boolean":
		return genai.TypeBoolean, true
	}
	return genai.TypeUnspecified, false
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			sb.WriteString(string(txt))
		}
	}
	return sb.String()
}

func trimModelName(name string) string {
	return strings.TrimPrefix(name, "models/")
}
