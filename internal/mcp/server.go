// Package mcp exposes read-only practice queries as MCP tools and resources.
package mcp

import (
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// New creates an MCP server with all tools and resources registered.
func New(ds DataSource, version string, log *slog.Logger) *server.MCPServer {
	s := server.NewMCPServer("FretLog", version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithInstructions("FretLog guitar practice tracker. Query exercises, progress charts, daily summaries and the practice history. Exercises can be named by ID or by name."),
	)

	h := &handlers{ds: ds, log: log}

	s.AddTools(
		server.ServerTool{Tool: toolListExercises, Handler: h.listExercises},
		server.ServerTool{Tool: toolGetExerciseStats, Handler: h.getExerciseStats},
		server.ServerTool{Tool: toolGetExerciseChart, Handler: h.getExerciseChart},
		server.ServerTool{Tool: toolGetDailySummary, Handler: h.getDailySummary},
		server.ServerTool{Tool: toolGetInactiveExercises, Handler: h.getInactiveExercises},
		server.ServerTool{Tool: toolGetPracticeHistory, Handler: h.getPracticeHistory},
	)

	s.AddResources(
		server.ServerResource{Resource: resOverview, Handler: h.overview},
	)

	return s
}

// handlers holds dependencies for MCP tool/resource handlers.
type handlers struct {
	ds  DataSource
	log *slog.Logger
}

var resOverview = mcp.NewResource(
	"fretlog://overview",
	"Practice Overview",
	mcp.WithResourceDescription("Every exercise with its statistics, total practice time and the exercises due for practice"),
	mcp.WithMIMEType("application/json"),
)
