// Package chunker splits extracted document text into bounded, ordered
// segments suitable for embedding.
package chunker

import (
	"strings"
	"unicode/utf8"
)

// DefaultMaxChars is the per-chunk character budget used when none is given.
const DefaultMaxChars = 300

// ChunkText greedily packs consecutive lines into chunks of at most maxChars
// characters. Input that fits the budget comes back whole, trimmed. Otherwise
// a line that does not fit starts the next chunk and a single line longer than
// the budget is split on its own. Lines keep their indentation and blank lines
// inside a chunk survive. The result preserves text order and contains only
// non-empty trimmed strings. Empty input yields nil.
func ChunkText(text string, maxChars int) []string {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}

	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}
	if utf8.RuneCountInString(trimmed) <= maxChars {
		return []string{trimmed}
	}

	var chunks []string
	var buf strings.Builder
	bufLen := 0

	flush := func() {
		if c := strings.TrimSpace(buf.String()); c != "" {
			chunks = append(chunks, c)
		}
		buf.Reset()
		bufLen = 0
	}

	for _, line := range strings.Split(trimmed, "\n") {
		line = strings.TrimRight(line, " \t\r")
		if line == "" {
			if bufLen > 0 && bufLen+1 < maxChars {
				buf.WriteByte('\n')
				bufLen++
			}
			continue
		}
		for _, piece := range splitLong(line, maxChars) {
			n := utf8.RuneCountInString(piece)
			if bufLen > 0 && bufLen+1+n > maxChars {
				flush()
			}
			if bufLen > 0 {
				buf.WriteByte('\n')
				bufLen++
			}
			buf.WriteString(piece)
			bufLen += n
		}
	}
	flush()

	return chunks
}

// splitLong breaks a line that exceeds maxChars into pieces, preferring the
// last space inside each window.
func splitLong(line string, maxChars int) []string {
	if utf8.RuneCountInString(line) <= maxChars {
		return []string{line}
	}

	var pieces []string
	runes := []rune(line)
	for len(runes) > maxChars {
		cut := maxChars
		for i := maxChars; i > maxChars/2; i-- {
			if runes[i] == ' ' {
				cut = i
				break
			}
		}
		if p := strings.TrimSpace(string(runes[:cut])); p != "" {
			pieces = append(pieces, p)
		}
		runes = []rune(strings.TrimLeft(string(runes[cut:]), " "))
	}
	if p := strings.TrimSpace(string(runes)); p != "" {
		pieces = append(pieces, p)
	}
	return pieces
}
