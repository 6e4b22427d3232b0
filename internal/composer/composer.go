// Package composer assembles chat prompts around retrieved document chunks
// while keeping the injected context inside a token budget.
package composer

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kalambet/docquiz/internal/engine"
	"github.com/kalambet/docquiz/internal/retrieval"
)

const defaultMaxContextTokens = 3000

type Composer struct {
	MaxContextTokens int
}

// New creates a Composer. If maxContextTokens <= 0, the default (3000) is used.
func New(maxContextTokens int) *Composer {
	if maxContextTokens <= 0 {
		maxContextTokens = defaultMaxContextTokens
	}
	return &Composer{MaxContextTokens: maxContextTokens}
}

// Compose returns a system message holding instructions and the context
// block, followed by the user message.
func (c *Composer) Compose(instructions string, chunks []retrieval.ChunkResult, user string) []engine.Message {
	system := instructions
	if block := c.Context(chunks); block != "" {
		system += "\n\nContext:\n" + block
	}
	return []engine.Message{
		{Role: engine.RoleSystem, Content: system},
		{Role: engine.RoleUser, Content: user},
	}
}

// Context renders chunks as "[file_id.ext] text" entries, most relevant
// (lowest distance) first. Entries that would exceed the budget are skipped.
func (c *Composer) Context(chunks []retrieval.ChunkResult) string {
	if len(chunks) == 0 {
		return ""
	}
	sorted := make([]retrieval.ChunkResult, len(chunks))
	copy(sorted, chunks)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Score < sorted[j].Score
	})

	remaining := c.MaxContextTokens
	var entries []string
	for _, ch := range sorted {
		entry := FormatChunk(ch)
		tokens := EstimateTokens(entry)
		if tokens > remaining {
			continue
		}
		entries = append(entries, entry)
		remaining -= tokens
	}
	return strings.Join(entries, "\n\n")
}

// FormatChunk renders one chunk with its source citation.
func FormatChunk(ch retrieval.ChunkResult) string {
	return fmt.Sprintf("[%s.%s] %s", ch.FileID, ch.FileExt, ch.Text)
}

// EstimateTokens approximates a token count at 4 bytes per token.
func EstimateTokens(text string) int {
	return (len(text) + 3) / 4
}
