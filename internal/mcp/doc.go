// Package mcp exposes the GitLab review operations as Model Context Protocol
// tools using mcp-go (github.com/mark3labs/mcp-go).
//
// # Tools
//
//   - resolve_gitlab_project: project identity resolution with the full attempt trail
//   - get_merge_request, get_merge_request_changes: read a merge request and its diffs
//   - create_merge_request, add_merge_request_comment: write operations
//   - get_current_branch, get_git_remote_info: local git inspection
//   - analyze_code: rule-based static checks over code or a file
//
// # Arguments
//
// Tool arguments are decoded through an alias table rather than a fixed
// struct: the project may arrive as projectId, project_id, project,
// projectPath, project_path, repository, or repository_path, and numbers may
// arrive as strings. Values that cannot be coerced are treated as absent.
// The advertised JSON schemas list the canonical names and allow additional
// properties so that aliases pass client-side validation.
//
// # Results
//
// Every result is JSON text. Failures from GitLab or from argument
// validation are returned as a structured payload with IsError set, never as
// JSON-RPC errors, so the assistant sees the attempts and suggestions.
//
// # Usage
//
// The server is started as a subprocess by an MCP client:
//
//	gitlab-review-mcp serve
//
// It reads JSON-RPC requests from stdin and writes responses to stdout until
// it receives EOF or is terminated. Logs go to stderr.
package mcp
