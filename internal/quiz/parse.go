package quiz

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/kalambet/docquiz/internal/storage"
)

// ErrNoValidQuestions is returned when a generation reply holds no usable
// question.
var ErrNoValidQuestions = errors.New("no valid questions in reply")

// rawQuestion accepts the shapes models actually produce.
type rawQuestion struct {
	Type     string          `json:"type"`
	Question string          `json:"question"`
	Topic    string          `json:"topic"`
	Options  json.RawMessage `json:"options"`
	Answer   json.RawMessage `json:"answer"`
}

// ParseQuestions coerces a raw generation reply into canonical questions.
// It accepts fenced output, a bare array, a single object, or an object
// wrapping the array under "questions". Option lists may be strings or
// objects with a text field, and answers may be option letters. Invalid
// items are dropped; a reply with no valid item is an error.
func ParseQuestions(raw string) ([]storage.Question, error) {
	items, err := decodeItems(stripFences(raw))
	if err != nil {
		return nil, err
	}

	var out []storage.Question
	for _, it := range items {
		if q, ok := normalize(it); ok {
			out = append(out, q)
		}
	}
	if len(out) == 0 {
		return nil, ErrNoValidQuestions
	}
	return out, nil
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	if end := strings.LastIndex(s, "```"); end >= 0 {
		s = s[:end]
	}
	return strings.TrimSpace(s)
}

func decodeItems(s string) ([]rawQuestion, error) {
	start := strings.IndexAny(s, "[{")
	if start < 0 {
		return nil, fmt.Errorf("reply is not JSON")
	}
	s = s[start:]
	if end := strings.LastIndexAny(s, "]}"); end >= 0 {
		s = s[:end+1]
	}

	if s[0] == '[' {
		var items []rawQuestion
		if err := json.Unmarshal([]byte(s), &items); err != nil {
			return nil, fmt.Errorf("decoding question array: %w", err)
		}
		return items, nil
	}

	var wrapper struct {
		Questions []rawQuestion `json:"questions"`
	}
	if err := json.Unmarshal([]byte(s), &wrapper); err == nil && len(wrapper.Questions) > 0 {
		return wrapper.Questions, nil
	}
	var single rawQuestion
	if err := json.Unmarshal([]byte(s), &single); err != nil {
		return nil, fmt.Errorf("decoding question object: %w", err)
	}
	return []rawQuestion{single}, nil
}

func normalize(it rawQuestion) (storage.Question, bool) {
	q := storage.Question{
		Text:  strings.TrimSpace(it.Question),
		Topic: strings.TrimSpace(it.Topic),
	}
	answer := scalarString(it.Answer)
	if q.Text == "" || answer == "" {
		return storage.Question{}, false
	}

	switch normalizeType(it.Type) {
	case storage.MultipleChoice:
		opts := optionList(it.Options)
		if len(opts) != 4 {
			return storage.Question{}, false
		}
		answer, ok := matchOption(answer, opts)
		if !ok {
			return storage.Question{}, false
		}
		q.Type, q.Options, q.Answer = storage.MultipleChoice, opts, answer
	case storage.OpenEnded:
		q.Type, q.Answer = storage.OpenEnded, answer
	default:
		return storage.Question{}, false
	}
	return q, true
}

func normalizeType(t string) storage.QuestionType {
	t = strings.ToLower(strings.TrimSpace(t))
	t = strings.NewReplacer("-", "_", " ", "_").Replace(t)
	switch t {
	case "multiple_choice", "mcq", "choice":
		return storage.MultipleChoice
	case "open_ended", "open", "short_answer":
		return storage.OpenEnded
	}
	return ""
}

func optionList(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var strs []string
	if err := json.Unmarshal(raw, &strs); err == nil {
		return trimAll(strs)
	}
	var objs []map[string]any
	if err := json.Unmarshal(raw, &objs); err == nil {
		out := make([]string, 0, len(objs))
		for _, o := range objs {
			for _, key := range []string{"text", "option", "value", "label"} {
				if s, ok := o[key].(string); ok {
					out = append(out, s)
					break
				}
			}
		}
		return trimAll(out)
	}
	var keyed map[string]string
	if err := json.Unmarshal(raw, &keyed); err == nil {
		out := make([]string, 0, len(keyed))
		for _, k := range []string{"A", "B", "C", "D"} {
			if s, ok := keyed[k]; ok {
				out = append(out, s)
			}
		}
		return trimAll(out)
	}
	return nil
}

func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// matchOption resolves an answer to one of the options: exact text, a
// case-insensitive match, or a letter A-D.
func matchOption(answer string, opts []string) (string, bool) {
	for _, o := range opts {
		if strings.EqualFold(o, answer) {
			return o, true
		}
	}
	letter := strings.ToUpper(strings.TrimRight(answer, ").:"))
	if len(letter) == 1 && letter[0] >= 'A' && letter[0] <= 'D' {
		return opts[letter[0]-'A'], true
	}
	return "", false
}

func scalarString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return ""
}
