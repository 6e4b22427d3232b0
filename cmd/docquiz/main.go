package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

var noColor bool

var rootCmd = &cobra.Command{
	Use:   "docquiz",
	Short: "Ingest documents, ask questions about them and take adaptive quizzes",
	Long: `docquiz indexes PDF, DOCX, XLSX, text and Markdown files, answers
questions grounded in them and generates quizzes that track each learner's
weak topics.

Start the server with "docquiz serve", then use the other commands against it.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.AddCommand(serveCmd, mcpCmd, statusCmd, ingestCmd, askCmd, quizCmd, userCmd, indexCmd, configCmd)
}

func main() {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		noColor = true
	}
	if err := rootCmd.Execute(); err != nil {
		printError("%v", err)
		os.Exit(1)
	}
}

// versionLine is printed by long-running commands on startup.
func versionLine() string {
	return fmt.Sprintf("docquiz version %s", version)
}
