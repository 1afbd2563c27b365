package mcp

import (
	"log/slog"

	"github.com/claude/repcoach/internal/profile"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// New creates an MCP server with all tools and resources registered.
func New(ds DataSource, registry *profile.Registry, version string, log *slog.Logger) *server.MCPServer {
	s := server.NewMCPServer("RepCoach", version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithInstructions("RepCoach movement analysis server. Query exercise sessions, repetition scores, form-fault trends, and the exercise catalog."),
	)

	h := &handlers{ds: ds, registry: registry, log: log}

	// Tools
	s.AddTools(
		server.ServerTool{Tool: toolListExercises, Handler: h.listExercises},
		server.ServerTool{Tool: toolGetSessions, Handler: h.getSessions},
		server.ServerTool{Tool: toolGetSessionDetail, Handler: h.getSessionDetail},
		server.ServerTool{Tool: toolGetFormTrends, Handler: h.getFormTrends},
		server.ServerTool{Tool: toolComparePeriods, Handler: h.comparePeriods},
	)

	// Resources
	s.AddResources(
		server.ServerResource{Resource: resRecentSessions, Handler: h.recentSessions},
		server.ServerResource{Resource: resExerciseCatalog, Handler: h.exerciseCatalog},
	)

	return s
}

// handlers holds dependencies for MCP tool/resource handlers.
type handlers struct {
	ds       DataSource
	registry *profile.Registry
	log      *slog.Logger
}

// --- Resource definitions ---

var resRecentSessions = mcp.NewResource(
	"repcoach://recent_sessions",
	"Recent Sessions",
	mcp.WithResourceDescription("Evaluated exercise sessions from the last 14 days"),
	mcp.WithMIMEType("application/json"),
)

var resExerciseCatalog = mcp.NewResource(
	"repcoach://exercise_catalog",
	"Exercise Catalog",
	mcp.WithResourceDescription("All supported exercises with their repetition thresholds and form rules"),
	mcp.WithMIMEType("application/json"),
)
