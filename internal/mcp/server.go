package mcp

import (
	"context"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/bull/pdf-ingest/internal/jobs"
	"github.com/bull/pdf-ingest/internal/storage"
)

// JobQueue is the job surface the tools use.
type JobQueue interface {
	Submit(ctx context.Context, kind jobs.Kind, inputs []string) (string, error)
	Status(ctx context.Context, id string) (*jobs.Record, error)
	List(ctx context.Context, limit int) ([]jobs.Record, error)
}

// Server wraps the MCP server with dependencies.
type Server struct {
	server *mcp.Server
}

// Config holds server dependencies.
type Config struct {
	Queue   JobQueue
	Index   storage.Index
	Version string
	Logger  *slog.Logger
}

// NewServer creates a configured MCP server with tools registered.
func NewServer(cfg *Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	version := cfg.Version
	if version == "" {
		version = "v0.1.0"
	}
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "pdf-ingest",
		Version: version,
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_job_status",
		Description: "Get the state of an ingestion job by ID, including its result or failure reason.",
	}, makeJobStatusHandler(cfg.Queue, logger))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_jobs",
		Description: "List recent ingestion jobs, newest first.",
	}, makeListJobsHandler(cfg.Queue, logger))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_index_status",
		Description: "Get the document count of the index and the number of jobs in each state.",
	}, makeStatusHandler(cfg.Index, cfg.Queue, logger))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "submit_ingest",
		Description: "Submit local paths for ingestion, or URLs to fetch and ingest. Returns the job ID.",
	}, makeSubmitHandler(cfg.Queue))

	return &Server{server: server}
}

// Run starts the server with stdio transport (blocks until client disconnects).
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// MCPServer returns the underlying MCP server instance.
func (s *Server) MCPServer() *mcp.Server {
	return s.server
}
