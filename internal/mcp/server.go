package mcp

import (
	"context"
	"fmt"
	"io"

	"github.com/mark3labs/mcp-go/server"

	"github.com/lininn/gitlab-review-mcp/internal/config"
	"github.com/lininn/gitlab-review-mcp/internal/gitlab"
	"github.com/lininn/gitlab-review-mcp/internal/logging"
)

const serverName = "gitlab-review-mcp"

// Server represents an MCP server instance using mcp-go
type Server struct {
	config    *config.Config
	logger    *logging.AppLogger
	service   *gitlab.Service
	mcpServer *server.MCPServer
}

// NewServer creates the MCP server and registers every tool. service carries
// the GitLab client and resolver; it is shared by all tool calls.
func NewServer(cfg *config.Config, logger *logging.AppLogger, service *gitlab.Service, version string) *Server {
	if logger == nil {
		logger = logging.GetDefault()
	}

	s := &Server{
		config:  cfg,
		logger:  logger,
		service: service,
		mcpServer: server.NewMCPServer(
			serverName,
			version,
			server.WithToolCapabilities(true),
			server.WithRecovery(),
			server.WithInstructions(instructions),
		),
	}
	s.registerTools()
	return s
}

// MCPServer exposes the underlying mcp-go server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// Serve speaks JSON-RPC over the given streams until ctx is cancelled or in
// reaches EOF.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	s.logger.Info("Starting MCP server", "gitlab", s.config.GitLabURL, "tools", len(toolNames))

	stdio := server.NewStdioServer(s.mcpServer)
	stdio.SetErrorLogger(s.logger.StandardLog())

	if err := stdio.Listen(ctx, in, out); err != nil && ctx.Err() == nil {
		return fmt.Errorf("MCP server failed: %w", err)
	}

	s.logger.Info("MCP server stopped")
	return nil
}

const instructions = `Tools for reviewing and opening GitLab merge requests.

Project identity is resolved in order: the projectId argument (numeric ID, group/project path, web URL, or merge request URL), then the GitLab remote of workingDirectory, then a project search. Every GitLab result includes the resolution provenance.

Failures are returned as JSON with success=false, an error kind, the resolution attempts, and suggestions for fixing the input.`
