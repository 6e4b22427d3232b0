package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/kalambet/docquiz/internal/api"
	"github.com/kalambet/docquiz/internal/config"
	"github.com/kalambet/docquiz/internal/engine"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API in the foreground",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve search and question answering to MCP clients over stdio",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMCP()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show server, model backend and index status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus()
	},
}

func (a *app) handler() http.Handler {
	return api.NewHandler(api.Deps{
		Ingester:      a.watcher,
		UploadDir:     a.cfg.Storage.UploadDir,
		Asker:         a.answerer,
		Generator:     a.generator,
		Sessions:      api.NewSessions(a.store, a.evaluator),
		Users:         a.tracker,
		History:       a.store,
		Language:      a.cfg.Response.Language,
		WeakThreshold: a.cfg.Tracker.WeakThreshold,
		Token:         a.cfg.Server.APIToken,
	})
}

func runServer() error {
	fmt.Fprintln(os.Stderr, versionLine())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := loadApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.ensureEngine(ctx, os.Stderr); err != nil {
		return err
	}
	if err := os.MkdirAll(a.cfg.Storage.UploadDir, 0o755); err != nil {
		return fmt.Errorf("creating upload dir: %w", err)
	}
	if a.cfg.Server.APIToken == "" {
		slog.Warn("API token not set, HTTP API is unauthenticated")
	}

	if a.cfg.Ingest.Watch {
		go a.watcher.Run(ctx)
		slog.Info("watching upload directory", "dir", a.cfg.Storage.UploadDir, "interval", a.cfg.Ingest.PollInterval)
	}

	addr := fmt.Sprintf("127.0.0.1:%d", a.cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           a.handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("docquiz listening", "addr", addr, "engine", a.cfg.Engine.Backend, "vectors", a.cfg.Vector.Backend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "shutting down...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func runMCP() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := loadApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	// stdout carries the protocol, so readiness output goes to stderr.
	if err := a.ensureEngine(ctx, os.Stderr); err != nil {
		return err
	}

	mcpSrv := api.NewMCPServer(api.MCPDeps{
		Retriever:     a.retriever,
		Asker:         a.answerer,
		Ingester:      a.watcher,
		Users:         a.tracker,
		Files:         a.store,
		Language:      a.cfg.Response.Language,
		WeakThreshold: a.cfg.Tracker.WeakThreshold,
	}, version)

	slog.Info("MCP server started (stdio transport)")
	if err := server.NewStdioServer(mcpSrv).Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("mcp server: %w", err)
	}
	return nil
}

func showStatus() error {
	cfg, err := config.Load()
	if err != nil {
		printError("config error: %v", err)
		return nil
	}

	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port))
	if err != nil {
		printStatus("Server", "stopped")
	} else {
		resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			printStatus("Server", "running on port %d", cfg.Server.Port)
		} else {
			printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	a, err := newApp(ctx, cfg)
	if err != nil {
		printError("%v", err)
		return nil
	}
	defer a.Close()

	if a.engine.IsRunning(ctx) {
		printStatus("Engine", "%s reachable", cfg.Engine.Backend)
		for _, m := range []string{cfg.ChatModel(), cfg.EmbedModel()} {
			state := "missing"
			if a.engine.HasModel(ctx, m) {
				state = "ready"
			}
			printStatus("Model", "%s (%s)", m, state)
		}
	} else {
		printStatus("Engine", "%s not reachable (%v)", cfg.Engine.Backend, engine.ErrNotRunning)
	}

	if n, err := a.index.Count(ctx); err == nil {
		printStatus("Chunks", "%d (%s)", n, cfg.Vector.Backend)
	} else {
		printStatus("Chunks", "unavailable: %v", err)
	}
	if files, err := a.store.ListFileRecords(ctx); err == nil {
		printStatus("Files", "%d", len(files))
	}
	printStatus("Upload dir", "%s", cfg.Storage.UploadDir)
	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}
