package main

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/charmbracelet/lipgloss"

	"github.com/kalambet/docquiz/internal/ingest"
)

var (
	styleOK    = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	styleErr   = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	styleWarn  = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	styleStep  = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	styleLabel = lipgloss.NewStyle().Bold(true)
	styleDim   = lipgloss.NewStyle().Faint(true)
)

// colorize renders text with style unless --no-color is set.
func colorize(style lipgloss.Style, text string) string {
	if noColor {
		return text
	}
	return style.Render(text)
}

func printSuccess(format string, args ...any) {
	fmt.Fprintln(os.Stderr, colorize(styleOK, "✓ "+fmt.Sprintf(format, args...)))
}

func printError(format string, args ...any) {
	fmt.Fprintln(os.Stderr, colorize(styleErr, "✗ "+fmt.Sprintf(format, args...)))
}

func printWarning(format string, args ...any) {
	fmt.Fprintln(os.Stderr, colorize(styleWarn, "⚠ "+fmt.Sprintf(format, args...)))
}

func printStatus(label string, format string, args ...any) {
	fmt.Fprintf(os.Stderr, "  %s %s\n", colorize(styleLabel, label+":"), fmt.Sprintf(format, args...))
}

func printStep(format string, args ...any) {
	fmt.Fprintln(os.Stderr, colorize(styleStep, "→ "+fmt.Sprintf(format, args...)))
}

// printFileResults writes one line per file, sorted by path, and returns the
// number of files that failed.
func printFileResults(w io.Writer, results map[string]ingest.FileResult) int {
	paths := make([]string, 0, len(results))
	for p := range results {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	failed := 0
	for _, p := range paths {
		r := results[p]
		switch r.Status {
		case ingest.StatusProcessed:
			fmt.Fprintf(w, "%s %s (%d chunks)\n", colorize(styleOK, "processed"), p, r.Chunks)
		case ingest.StatusSkipped:
			fmt.Fprintf(w, "%s %s\n", colorize(styleDim, "skipped  "), p)
		default:
			failed++
			fmt.Fprintf(w, "%s %s: %s\n", colorize(styleErr, "error    "), p, r.Error)
		}
	}
	return failed
}
