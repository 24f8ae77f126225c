// Package mcp provides a Model Context Protocol server for the extraction
// pipeline.
//
// It exposes summary generation, note-type detection, and the run archive
// as MCP tools, plus recent runs and archive statistics as MCP resources.
// Supports stdio transport for editor and assistant integrations.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/openchart/scribe/internal/pipeline"
	"github.com/openchart/scribe/internal/store"
)

// ServerConfig holds configuration for the MCP server.
type ServerConfig struct {
	Orchestrator *pipeline.Orchestrator
	Archive      store.Archive // optional; nil disables run persistence tools
	Version      string
}

// dbMu serializes tool calls that touch the archive database. The mcp-go
// library dispatches handlers concurrently via goroutines, and SQLite
// supports only one writer at a time.
var dbMu sync.Mutex

// NewServer creates a configured MCP server with all tools and resources.
func NewServer(cfg ServerConfig) *server.MCPServer {
	ver := cfg.Version
	if ver == "" {
		ver = "dev"
	}

	s := server.NewMCPServer(
		"Scribe",
		ver,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(true, false),
	)

	registerGenerateTool(s, cfg.Orchestrator, cfg.Archive)
	registerDetectTool(s, cfg.Orchestrator)
	if cfg.Archive != nil {
		registerRunsTool(s, cfg.Archive)
		registerRunGetTool(s, cfg.Archive)
		registerStatsTool(s, cfg.Archive)
		registerRecentResource(s, cfg.Archive)
		registerStatsResource(s, cfg.Archive)
	}

	return s
}

func registerGenerateTool(s *server.MCPServer, o *pipeline.Orchestrator, archive store.Archive) {
	tool := mcp.NewTool("scribe_generate",
		mcp.WithDescription("Run the hybrid extraction pipeline over raw clinical note text. Returns the structured record, narrative, validation report, and per-stage provenance."),
		mcp.WithString("text",
			mcp.Required(),
			mcp.Description("Raw clinical note text, one or more notes"),
		),
		mcp.WithBoolean("save",
			mcp.Description("Persist the run to the archive (default: false)"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		text, err := req.RequireString("text")
		if err != nil {
			return mcp.NewToolResultError("text is required"), nil
		}

		res, err := o.Generate(ctx, text)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("generate error: %v", err)), nil
		}

		data, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("encoding result: %v", err)), nil
		}

		if archive != nil && req.GetBool("save", false) {
			dbMu.Lock()
			_, serr := archive.SaveRun(ctx, &store.Run{
				Approach:     res.Metadata.Approach,
				LLMProvider:  res.Metadata.LLMProvider,
				Valid:        res.Validation.IsValid,
				Completeness: res.Validation.Completeness,
				InputChars:   len(text),
				ResultJSON:   string(data),
			})
			dbMu.Unlock()
			if serr != nil {
				return mcp.NewToolResultError(fmt.Sprintf("archiving run: %v", serr)), nil
			}
		}

		return mcp.NewToolResultText(string(data)), nil
	})
}

func registerDetectTool(s *server.MCPServer, o *pipeline.Orchestrator) {
	tool := mcp.NewTool("scribe_detect",
		mcp.WithDescription("Segment raw clinical text into typed note categories (admission, progress, consultant, procedure, final) without running extraction."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithString("text",
			mcp.Required(),
			mcp.Description("Raw clinical note text"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		text, err := req.RequireString("text")
		if err != nil {
			return mcp.NewToolResultError("text is required"), nil
		}
		data, err := json.MarshalIndent(o.Detect(text), "", "  ")
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("encoding bundle: %v", err)), nil
		}
		return mcp.NewToolResultText(string(data)), nil
	})
}

func registerRunsTool(s *server.MCPServer, archive store.Archive) {
	tool := mcp.NewTool("scribe_runs",
		mcp.WithDescription("List archived pipeline runs, newest first."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of runs (default: 20, max: 100)"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		limit := int(req.GetFloat("limit", 20))
		if limit <= 0 {
			limit = 20
		}
		if limit > 100 {
			limit = 100
		}

		runs, err := archive.ListRuns(ctx, store.ListOpts{Limit: limit})
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("listing runs: %v", err)), nil
		}
		data, err := json.MarshalIndent(summaries(runs), "", "  ")
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("encoding runs: %v", err)), nil
		}
		return mcp.NewToolResultText(string(data)), nil
	})
}

func registerRunGetTool(s *server.MCPServer, archive store.Archive) {
	tool := mcp.NewTool("scribe_run_get",
		mcp.WithDescription("Fetch one archived run by ID, including its full result envelope."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("Run ID"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		id, err := req.RequireString("id")
		if err != nil {
			return mcp.NewToolResultError("id is required"), nil
		}
		run, err := archive.GetRun(ctx, id)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("run %s: %v", id, err)), nil
		}
		return mcp.NewToolResultText(run.ResultJSON), nil
	})
}

func registerStatsTool(s *server.MCPServer, archive store.Archive) {
	tool := mcp.NewTool("scribe_stats",
		mcp.WithDescription("Archive statistics: run counts by validity and approach."),
		mcp.WithReadOnlyHintAnnotation(true),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		st, err := archive.Stats(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("stats error: %v", err)), nil
		}
		data, err := json.MarshalIndent(st, "", "  ")
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("encoding stats: %v", err)), nil
		}
		return mcp.NewToolResultText(string(data)), nil
	})
}

// runSummary is the list-view projection of a run, without the result body.
type runSummary struct {
	ID           string  `json:"id"`
	CreatedAt    string  `json:"created_at"`
	Approach     string  `json:"approach"`
	LLMProvider  string  `json:"llm_provider,omitempty"`
	Valid        bool    `json:"valid"`
	Completeness float64 `json:"completeness"`
	InputChars   int     `json:"input_chars"`
}

func summaries(runs []*store.Run) []runSummary {
	out := make([]runSummary, 0, len(runs))
	for _, r := range runs {
		out = append(out, runSummary{
			ID:           r.ID,
			CreatedAt:    r.CreatedAt.Format("2006-01-02 15:04:05"),
			Approach:     r.Approach,
			LLMProvider:  r.LLMProvider,
			Valid:        r.Valid,
			Completeness: r.Completeness,
			InputChars:   r.InputChars,
		})
	}
	return out
}
