package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/lininn/gitlab-review-mcp/internal/analyzer"
	"github.com/lininn/gitlab-review-mcp/internal/gitinfo"
	"github.com/lininn/gitlab-review-mcp/internal/gitlab"
	"github.com/lininn/gitlab-review-mcp/pkg/fileops"
)

const (
	toolResolveProject  = "resolve_gitlab_project"
	toolGetMergeRequest = "get_merge_request"
	toolGetChanges      = "get_merge_request_changes"
	toolCreateMR        = "create_merge_request"
	toolAddComment      = "add_merge_request_comment"
	toolCurrentBranch   = "get_current_branch"
	toolRemoteInfo      = "get_git_remote_info"
	toolAnalyzeCode     = "analyze_code"
)

var toolNames = []string{
	toolResolveProject,
	toolGetMergeRequest,
	toolGetChanges,
	toolCreateMR,
	toolAddComment,
	toolCurrentBranch,
	toolRemoteInfo,
	toolAnalyzeCode,
}

// toolFunc is the body of a tool. A *gitlab.Failure error becomes an IsError
// result; any other error is returned to mcp-go as a protocol error.
type toolFunc func(ctx context.Context, args toolArgs) (any, error)

type toolSpec struct {
	name        string
	description string
	params      any
	readOnly    bool
	run         toolFunc
}

func (s *Server) toolSpecs() []toolSpec {
	return []toolSpec{
		{
			name:        toolResolveProject,
			description: "Resolve a GitLab project from an ID, path, URL, the local git remote, or a project search. Returns the verified project and every attempt made.",
			params:      &projectParams{},
			readOnly:    true,
			run:         s.resolveProject,
		},
		{
			name:        toolGetMergeRequest,
			description: "Fetch a merge request with its reviewers, labels, and approval state.",
			params:      &mergeRequestParams{},
			readOnly:    true,
			run:         s.getMergeRequest,
		},
		{
			name:        toolGetChanges,
			description: "List the files changed by a merge request with their diffs. Large diffs are truncated.",
			params:      &mergeRequestParams{},
			readOnly:    true,
			run:         s.getChanges,
		},
		{
			name:        toolCreateMR,
			description: "Open a merge request. The source branch defaults to the checked-out branch and the title is generated from the branch name when omitted.",
			params:      &createParams{},
			run:         s.createMergeRequest,
		},
		{
			name:        toolAddComment,
			description: "Add a comment to a merge request.",
			params:      &commentParams{},
			run:         s.addComment,
		},
		{
			name:        toolCurrentBranch,
			description: "Report the checked-out branch and all local and remote branches of a git working copy.",
			params:      &gitParams{},
			readOnly:    true,
			run:         s.currentBranch,
		},
		{
			name:        toolRemoteInfo,
			description: "Show the git remotes of a working copy and the GitLab project the selected remote points at.",
			params:      &gitParams{},
			readOnly:    true,
			run:         s.remoteInfo,
		},
		{
			name:        toolAnalyzeCode,
			description: "Run quick static checks (debug output, TODO markers, long lines, deep nesting, hard-coded secrets, unused imports) over code or a file and score the result.",
			params:      &analyzeParams{},
			readOnly:    true,
			run:         s.analyzeCode,
		},
	}
}

func (s *Server) registerTools() {
	for _, spec := range s.toolSpecs() {
		tool := mcp.NewToolWithRawSchema(spec.name, spec.description, inputSchema(spec.params))
		readOnly := spec.readOnly
		tool.Annotations.ReadOnlyHint = &readOnly
		s.mcpServer.AddTool(tool, s.handler(spec.name, spec.run))
	}
}

func (s *Server) handler(name string, run toolFunc) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		raw := req.GetArguments()
		s.logger.LogToolCall(name, raw)
		defer s.logger.LogPerformance(name, time.Now())

		logger := s.logger.With("tool", name)
		out, err := run(ctx, decodeArgs(raw))
		if err != nil {
			if f, ok := gitlab.AsFailure(err); ok {
				logger.Warn("Tool call failed", "kind", f.Kind(), "message", f.Message)
				return jsonResult(f, true)
			}
			logger.Error("Tool call error", "error", err)
			return nil, err
		}
		return jsonResult(out, false)
	}
}

func jsonResult(v any, isError bool) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode tool result: %w", err)
	}
	result := mcp.NewToolResultText(string(data))
	result.IsError = isError
	return result, nil
}

func (a toolArgs) resolveInput() gitlab.ResolveInput {
	return gitlab.ResolveInput{
		ProjectID:        a.ProjectID,
		WorkingDirectory: a.WorkingDirectory,
		RemoteName:       a.RemoteName,
	}
}

func (a toolArgs) mergeRequestInput() gitlab.MergeRequestInput {
	return gitlab.MergeRequestInput{Project: a.resolveInput(), IID: a.MergeRequestIID}
}

func (s *Server) resolveProject(ctx context.Context, args toolArgs) (any, error) {
	return s.service.Resolve(ctx, args.resolveInput())
}

func (s *Server) getMergeRequest(ctx context.Context, args toolArgs) (any, error) {
	return s.service.FetchMergeRequest(ctx, args.mergeRequestInput())
}

func (s *Server) getChanges(ctx context.Context, args toolArgs) (any, error) {
	return s.service.GetChanges(ctx, args.mergeRequestInput())
}

func (s *Server) addComment(ctx context.Context, args toolArgs) (any, error) {
	return s.service.AddComment(ctx, gitlab.CommentInput{
		MergeRequestInput: args.mergeRequestInput(),
		Body:              args.Body,
	})
}

type createResponse struct {
	*gitlab.CreateResult
	SourceBranchFromGit bool   `json:"sourceBranchFromGit,omitempty"`
	Template            string `json:"template,omitempty"`
}

func (s *Server) createMergeRequest(ctx context.Context, args toolArgs) (any, error) {
	in := gitlab.CreateInput{
		Project:            args.resolveInput(),
		SourceBranch:       args.SourceBranch,
		TargetBranch:       args.TargetBranch,
		Title:              args.Title,
		Description:        args.Description,
		AssigneeID:         args.AssigneeID,
		ReviewerIDs:        args.ReviewerIDs,
		Labels:             args.Labels,
		RemoveSourceBranch: args.RemoveSourceBranch,
		Squash:             args.Squash,
	}

	var resp createResponse
	branch := gitinfo.CurrentBranchInfo(args.WorkingDirectory)

	// An explicitly blank sourceBranch is left for CreateMergeRequest to reject.
	if !args.HasSourceBranch && branch.CurrentBranch != "" {
		in.SourceBranch = branch.CurrentBranch
		resp.SourceBranchFromGit = true
		s.logger.Debug("Using current git branch as source", "branch", branch.CurrentBranch)
	}

	if branch.IsGitRepository {
		tpl, err := gitlab.LoadTemplate(branch.RepositoryRoot)
		switch {
		case err != nil:
			s.logger.Warn("Ignoring merge request template", "error", err)
		case tpl != nil:
			tpl.Apply(&in)
			resp.Template = tpl.Path
		}
	}

	result, err := s.service.CreateMergeRequest(ctx, in)
	if err != nil {
		return nil, err
	}
	resp.CreateResult = result
	return resp, nil
}

type branchResponse struct {
	WorkingDirectory string `json:"workingDirectory"`
	gitinfo.BranchInfo
}

func (s *Server) currentBranch(_ context.Context, args toolArgs) (any, error) {
	dir, err := fileops.ResolveDirectory(args.WorkingDirectory)
	if err != nil {
		return nil, gitlab.InvalidArgument(err.Error(), "Pass workingDirectory with an existing directory inside a git checkout")
	}
	return branchResponse{WorkingDirectory: dir, BranchInfo: gitinfo.CurrentBranchInfo(dir)}, nil
}

type remoteResponse struct {
	WorkingDirectory string `json:"workingDirectory"`
	gitinfo.RemoteInfo
}

func (s *Server) remoteInfo(_ context.Context, args toolArgs) (any, error) {
	dir, err := fileops.ResolveDirectory(args.WorkingDirectory)
	if err != nil {
		return nil, gitlab.InvalidArgument(err.Error(), "Pass workingDirectory with an existing directory inside a git checkout")
	}
	remote := args.RemoteName
	if remote == "" && s.config != nil {
		remote = s.config.DefaultRemote
	}
	return remoteResponse{WorkingDirectory: dir, RemoteInfo: gitinfo.GetRemoteInfo(dir, remote)}, nil
}

func (s *Server) analyzeCode(_ context.Context, args toolArgs) (any, error) {
	if args.HasCode && strings.TrimSpace(args.Code) != "" {
		return analyzer.Analyze(args.Code, analyzer.Options{Language: args.Language, FileName: args.FileName}), nil
	}

	if args.FilePath == "" {
		return nil, gitlab.InvalidArgument("Either code or filePath is required",
			"Pass the source text as code",
			"Or pass filePath with a file to read (up to 1 MiB)",
		)
	}

	path := fileops.ExpandPath(args.FilePath)
	if !filepath.IsAbs(path) && args.WorkingDirectory != "" {
		path = filepath.Join(args.WorkingDirectory, path)
	}

	report, err := analyzer.AnalyzeFile(path, args.Language)
	if err != nil {
		return nil, gitlab.InvalidArgument(err.Error(), "Check that filePath names a readable file no larger than 1 MiB")
	}
	return report, nil
}
