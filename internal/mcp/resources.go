package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/openchart/scribe/internal/store"
)

func registerRecentResource(s *server.MCPServer, archive store.Archive) {
	resource := mcp.NewResource(
		"scribe://runs/recent",
		"Recent Runs",
		mcp.WithResourceDescription("The 20 most recent archived pipeline runs."),
		mcp.WithMIMEType("application/json"),
	)

	s.AddResource(resource, func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		runs, err := archive.ListRuns(ctx, store.ListOpts{Limit: 20})
		if err != nil {
			return nil, fmt.Errorf("listing recent runs: %w", err)
		}
		data, err := json.MarshalIndent(summaries(runs), "", "  ")
		if err != nil {
			return nil, fmt.Errorf("encoding recent runs: %w", err)
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(data),
			},
		}, nil
	})
}

func registerStatsResource(s *server.MCPServer, archive store.Archive) {
	resource := mcp.NewResource(
		"scribe://stats",
		"Archive Statistics",
		mcp.WithResourceDescription("Run counts by validity and approach, plus database size."),
		mcp.WithMIMEType("application/json"),
	)

	s.AddResource(resource, func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		st, err := archive.Stats(ctx)
		if err != nil {
			return nil, fmt.Errorf("reading stats: %w", err)
		}
		data, err := json.MarshalIndent(st, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("encoding stats: %w", err)
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(data),
			},
		}, nil
	})
}
