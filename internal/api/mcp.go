package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/docquiz/internal/qa"
	"github.com/kalambet/docquiz/internal/storage"
)

// FileLister lists the files recorded by the change registry.
type FileLister interface {
	ListFileRecords(ctx context.Context) ([]storage.FileRecord, error)
}

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Retriever     Retriever
	Asker         Asker
	Ingester      Ingester
	Users         UserTracker
	Files         FileLister
	Language      string
	WeakThreshold float64
}

// NewMCPServer creates an MCP server exposing document search, question
// answering, ingestion and learner progress.
func NewMCPServer(deps MCPDeps, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"docquiz",
		version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("docquiz: search and question answering over ingested documents, with per-learner quiz progress."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("recall",
			mcp.WithDescription("Semantically search the ingested documents and return the most relevant chunks."),
			mcp.WithString("query", mcp.Description("Search query"), mcp.Required()),
			mcp.WithNumber("limit", mcp.Description("Maximum number of results (default 5)")),
		),
		mcpRecall(deps),
	)

	s.AddTool(
		mcp.NewTool("ask",
			mcp.WithDescription("Answer a question using only the ingested documents, citing sources."),
			mcp.WithString("question", mcp.Description("The question to answer"), mcp.Required()),
			mcp.WithString("language", mcp.Description("Response language (default from config)")),
		),
		mcpAsk(deps),
	)

	s.AddTool(
		mcp.NewTool("ingest",
			mcp.WithDescription("Process new or changed files in the upload directory."),
		),
		mcpIngest(deps),
	)

	s.AddTool(
		mcp.NewTool("weak_topics",
			mcp.WithDescription("List a learner's topics with accuracy below the threshold, weakest first."),
			mcp.WithString("user_id", mcp.Description("Learner id"), mcp.Required()),
			mcp.WithNumber("threshold", mcp.Description("Accuracy percentage (default 70)")),
		),
		mcpWeakTopics(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"docquiz://files",
			"Ingested Files",
			mcp.WithResourceDescription("Files known to the change registry with their chunk counts"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceFiles(deps),
	)

	return s
}

func mcpRecall(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := req.RequireString("query")
		if err != nil {
			return mcpError("query is required"), nil
		}

		limit := req.GetInt("limit", 5)
		if limit <= 0 {
			limit = 5
		}
		if limit > 50 {
			limit = 50
		}

		chunks, err := deps.Retriever.Retrieve(ctx, query, limit)
		if err != nil {
			return mcpError(fmt.Sprintf("recall failed: %v", err)), nil
		}
		if len(chunks) == 0 {
			return mcpText("[]"), nil
		}

		b, err := json.Marshal(chunks)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal results: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpAsk(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		question, err := req.RequireString("question")
		if err != nil {
			return mcpError("question is required"), nil
		}
		language := req.GetString("language", deps.Language)

		ans, err := deps.Asker.Answer(ctx, question, language)
		if errors.Is(err, qa.ErrNoContext) {
			return mcpError("no relevant context found; ingest documents first"), nil
		}
		if err != nil {
			return mcpError(fmt.Sprintf("ask failed: %v", err)), nil
		}
		return mcpText(ans.Text), nil
	}
}

func mcpIngest(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		results, err := deps.Ingester.RunOnce(ctx)
		if err != nil {
			return mcpError(fmt.Sprintf("ingest failed: %v", err)), nil
		}
		b, err := json.Marshal(results)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal results: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpWeakTopics(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		userID, err := req.RequireString("user_id")
		if err != nil {
			return mcpError("user_id is required"), nil
		}
		threshold := req.GetFloat("threshold", deps.WeakThreshold)

		weak, err := deps.Users.GetWeakTopics(ctx, userID, threshold)
		if err != nil {
			return mcpError(fmt.Sprintf("weak topics failed: %v", err)), nil
		}
		if len(weak) == 0 {
			return mcpText("[]"), nil
		}
		b, err := json.Marshal(weak)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal topics: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpResourceFiles(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		records, err := deps.Files.ListFileRecords(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list files: %w", err)
		}

		type fileSummary struct {
			FileID      string `json:"file_id"`
			Ext         string `json:"ext"`
			Chunks      int    `json:"chunks"`
			ProcessedAt string `json:"processed_at"`
		}
		files := make([]fileSummary, len(records))
		for i, rec := range records {
			files[i] = fileSummary{
				FileID:      rec.FileID,
				Ext:         rec.Ext,
				Chunks:      rec.ChunkCount,
				ProcessedAt: rec.ProcessedAt.Format(time.RFC3339),
			}
		}

		b, err := json.Marshal(files)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal files: %w", err)
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
