package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kalambet/docquiz/internal/config"
	"github.com/kalambet/docquiz/internal/ingest"
)

// --- ingest ---

var ingestCmd = &cobra.Command{
	Use:   "ingest [file...]",
	Short: "Index documents",
	Long: `Index documents into the knowledge base.

With file arguments, each file is uploaded to the running server and the
upload directory is reprocessed. Without arguments, the server rescans its
upload directory. Use --local to process a directory without the server.

Examples:
  docquiz ingest lecture1.pdf notes.md
  docquiz ingest
  docquiz ingest --local ~/courses/go`,
	RunE: func(cmd *cobra.Command, args []string) error {
		local, _ := cmd.Flags().GetString("local")
		if local != "" {
			return ingestLocal(cmd.Context(), local)
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		results, err := ingestRemote(cmd.Context(), client, args)
		if err != nil {
			return err
		}
		if failed := printFileResults(os.Stdout, results); failed > 0 {
			return fmt.Errorf("%d file(s) failed", failed)
		}
		return nil
	},
}

func ingestRemote(ctx context.Context, client *apiClient, paths []string) (map[string]ingest.FileResult, error) {
	if len(paths) == 0 {
		return client.scan(ctx)
	}
	var results map[string]ingest.FileResult
	for _, p := range paths {
		printStep("uploading %s", p)
		r, err := client.upload(ctx, p)
		if err != nil {
			return nil, fmt.Errorf("uploading %s: %w", p, err)
		}
		results = r
	}
	return results, nil
}

func ingestLocal(ctx context.Context, dir string) error {
	a, err := loadApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.ensureEngine(ctx, os.Stderr); err != nil {
		return err
	}
	paths, err := ingest.DiscoverFiles(dir, nil)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		printWarning("no supported documents in %s", dir)
		return nil
	}
	printStep("processing %d file(s)", len(paths))
	if failed := printFileResults(os.Stdout, a.pipeline.ProcessFiles(ctx, paths)); failed > 0 {
		return fmt.Errorf("%d file(s) failed", failed)
	}
	return nil
}

func init() {
	ingestCmd.Flags().String("local", "", "process this directory in-process instead of via the server")
}

// --- ask ---

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer a question from the indexed documents",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		language, _ := cmd.Flags().GetString("language")
		showSources, _ := cmd.Flags().GetBool("sources")

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		ans, err := client.chat(cmd.Context(), strings.Join(args, " "), language)
		if err != nil {
			return err
		}

		fmt.Println(ans.Text)
		if showSources {
			fmt.Println()
			for _, s := range ans.Sources {
				fmt.Printf("%s %s.%s %s\n", colorize(styleDim, fmt.Sprintf("[%.3f]", s.Score)), s.FileID, s.FileExt, colorize(styleDim, s.ID))
			}
		}
		return nil
	},
}

func init() {
	askCmd.Flags().String("language", "", "response language (default from config)")
	askCmd.Flags().Bool("sources", false, "list the chunks the answer was grounded on")
}

// --- user ---

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage learners and show their progress",
}

var userRegisterCmd = &cobra.Command{
	Use:   "register <name>",
	Short: "Register a learner (returns the existing one if the name is taken)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		u, err := client.registerUser(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		printSuccess("%s registered", u.Name)
		fmt.Println(u.ID)
		return nil
	},
}

var userShowCmd = &cobra.Command{
	Use:   "show <user-id>",
	Short: "Show a learner's profile as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		p, err := client.userProfile(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(p)
	},
}

var userWeakCmd = &cobra.Command{
	Use:   "weak <user-id>",
	Short: "List topics below the accuracy threshold, weakest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		threshold, _ := cmd.Flags().GetFloat64("threshold")
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		topics, err := client.weakTopics(cmd.Context(), args[0], threshold)
		if err != nil {
			return err
		}
		if len(topics) == 0 {
			printSuccess("no weak topics")
			return nil
		}
		for _, t := range topics {
			fmt.Printf("%6.2f%%  %d/%d  %s\n", t.Accuracy, t.Correct, t.Attempts, t.Topic)
		}
		return nil
	},
}

var userSummaryCmd = &cobra.Command{
	Use:   "summary <user-id>",
	Short: "Show overall accuracy and recent quizzes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		s, err := client.userSummary(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		printStatus("Answered", "%d", s.Attempts)
		printStatus("Correct", "%d", s.Correct)
		printStatus("Accuracy", "%.2f%%", s.Accuracy)

		history, err := client.userQuizzes(cmd.Context(), args[0], limit)
		if err != nil {
			return err
		}
		for _, h := range history {
			fmt.Printf("%s  %-24s %d answered, avg %.2f  %s\n",
				h.CreatedAt.Format("2006-01-02 15:04"), h.Topic, h.Answered, h.AvgScore, colorize(styleDim, h.QuizID))
		}
		return nil
	},
}

func init() {
	userWeakCmd.Flags().Float64("threshold", 0, "accuracy percentage below which a topic is weak (default from config)")
	userSummaryCmd.Flags().Int("limit", 5, "number of recent quizzes to list")
	userCmd.AddCommand(userRegisterCmd, userShowCmd, userWeakCmd, userSummaryCmd)
}

// --- index ---

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Manage the vector index",
}

var indexClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every indexed chunk and forget processed files",
	RunE: func(cmd *cobra.Command, args []string) error {
		yes, _ := cmd.Flags().GetBool("yes")
		if !yes && !confirm("This deletes every indexed chunk. Continue?") {
			printWarning("aborted")
			return nil
		}

		a, err := loadApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.index.ClearAll(cmd.Context()); err != nil {
			return fmt.Errorf("clearing index: %w", err)
		}
		// Without this the next scan would skip every unchanged file.
		if err := a.store.DeleteAllFileRecords(cmd.Context()); err != nil {
			return fmt.Errorf("clearing file records: %w", err)
		}
		printSuccess("index cleared")
		return nil
	},
}

func init() {
	indexClearCmd.Flags().BoolP("yes", "y", false, "do not ask for confirmation")
	indexCmd.AddCommand(indexClearCmd)
}

func confirm(prompt string) bool {
	fmt.Fprintf(os.Stderr, "%s [y/N] ", prompt)
	line, _ := bufio.NewReader(os.Stdin).ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or change configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		for _, k := range config.ShowAll(cfg) {
			fmt.Printf("  %s = %s\n", colorize(styleLabel, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Write a value to the config file",
	Long:  "Write a value to the config file. Secrets are read from the environment only.\n\nKeys: " + strings.Join(config.ValidKeys(), ", "),
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.SetKey(args[0], args[1]); err != nil {
			return err
		}
		printSuccess("Set %s = %s", args[0], args[1])
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd, configSetCmd)
}
