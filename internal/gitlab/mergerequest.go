package gitlab

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/lininn/gitlab-review-mcp/internal/httpclient"
	"github.com/lininn/gitlab-review-mcp/internal/logging"
)

// DefaultMaxDiffBytes bounds each file diff returned by GetChanges.
const DefaultMaxDiffBytes = 50 * 1024

// ServiceOptions configures a Service.
type ServiceOptions struct {
	DefaultTargetBranch string
	// APIHost is only used to phrase not_detected suggestions.
	APIHost      string
	MaxDiffBytes int
	Logger       *logging.AppLogger
}

// Service orchestrates merge request operations on top of project
// resolution. Every call is independent; Service keeps no per-call state.
type Service struct {
	api           Requester
	resolver      *Resolver
	defaultTarget string
	apiHost       string
	maxDiffBytes  int
	logger        *logging.AppLogger
}

// NewService creates a Service.
func NewService(api Requester, resolver *Resolver, opts ServiceOptions) *Service {
	if opts.DefaultTargetBranch == "" {
		opts.DefaultTargetBranch = "main"
	}
	if opts.MaxDiffBytes <= 0 {
		opts.MaxDiffBytes = DefaultMaxDiffBytes
	}
	if opts.Logger == nil {
		opts.Logger = logging.GetDefault()
	}
	return &Service{
		api:           api,
		resolver:      resolver,
		defaultTarget: opts.DefaultTargetBranch,
		apiHost:       opts.APIHost,
		maxDiffBytes:  opts.MaxDiffBytes,
		logger:        opts.Logger,
	}
}

// Resolve runs project resolution and converts every failure into a *Failure.
func (s *Service) Resolve(ctx context.Context, in ResolveInput) (*ResolutionResult, error) {
	res, err := s.resolver.Resolve(ctx, in)
	if err != nil {
		return res, APIFailure(OpResolve, err, res, nil)
	}
	if !res.Success {
		return res, ResolutionFailure(res, s.apiHost)
	}
	return res, nil
}

// MergeRequestInput identifies one merge request. IID may be zero when the
// project field holds a merge request URL.
type MergeRequestInput struct {
	Project ResolveInput
	IID     int
}

func (in MergeRequestInput) resolveIID() int {
	if in.IID > 0 {
		return in.IID
	}
	if ref, ok := ParseProjectReference(in.Project.ProjectID); ok {
		return ref.MergeRequestIID
	}
	return 0
}

func missingIID() *Failure {
	return InvalidArgument("A merge request IID is required",
		"Pass mergeRequestIid (the number shown in the merge request URL)",
		"Or paste the full merge request URL as projectId",
	)
}

func mergeRequestPath(projectID string, iid int) string {
	return "projects/" + projectID + "/merge_requests/" + strconv.Itoa(iid)
}

// FetchResult is the outcome of FetchMergeRequest.
type FetchResult struct {
	Success      bool         `json:"success"`
	MergeRequest MergeRequest `json:"mergeRequest"`
	Resolution   Provenance   `json:"resolution"`
}

// FetchMergeRequest resolves the project, then reads the merge request and
// its approval state concurrently. Approvals are best-effort: instances
// without the approvals API still return the merge request.
func (s *Service) FetchMergeRequest(ctx context.Context, in MergeRequestInput) (*FetchResult, error) {
	iid := in.resolveIID()
	if iid <= 0 {
		return nil, missingIID()
	}

	res, err := s.Resolve(ctx, in.Project)
	if err != nil {
		return nil, err
	}

	endpoint := mergeRequestPath(res.NormalizedProjectID, iid)

	var (
		mr        apiMergeRequest
		approvals *Approvals
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		resp, err := s.api.RequestWithRateLimit(gctx, endpoint, httpclient.RequestOptions{})
		if err != nil {
			return err
		}
		return resp.Decode(&mr)
	})
	g.Go(func() error {
		// Approvals are optional, so a rate limit here is not waited out.
		resp, err := s.api.Request(gctx, endpoint+"/approvals", httpclient.RequestOptions{})
		if err != nil {
			s.logger.Debug("Approvals unavailable", "endpoint", endpoint, "error", err)
			return nil
		}
		var raw apiApprovals
		if err := resp.Decode(&raw); err != nil {
			s.logger.Debug("Approvals response not understood", "error", err)
			return nil
		}
		approvals = raw.curated()
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, APIFailure(OpFetch, err, res, nil)
	}

	curated := mr.curated()
	curated.Approvals = approvals

	return &FetchResult{
		Success:      true,
		MergeRequest: curated,
		Resolution:   res.provenance(),
	}, nil
}

// ChangesResult is the outcome of GetChanges.
type ChangesResult struct {
	Success    bool         `json:"success"`
	IID        int          `json:"iid"`
	Changes    []FileChange `json:"changes"`
	Overflow   bool         `json:"overflow"`
	Resolution Provenance   `json:"resolution"`
}

// GetChanges returns the file diffs of a merge request, each truncated to
// MaxDiffBytes.
func (s *Service) GetChanges(ctx context.Context, in MergeRequestInput) (*ChangesResult, error) {
	iid := in.resolveIID()
	if iid <= 0 {
		return nil, missingIID()
	}

	res, err := s.Resolve(ctx, in.Project)
	if err != nil {
		return nil, err
	}

	resp, err := s.api.RequestWithRateLimit(ctx, mergeRequestPath(res.NormalizedProjectID, iid)+"/changes", httpclient.RequestOptions{})
	if err != nil {
		return nil, APIFailure(OpChanges, err, res, nil)
	}

	var raw apiChanges
	if err := resp.Decode(&raw); err != nil {
		return nil, APIFailure(OpChanges, err, res, nil)
	}

	changes := make([]FileChange, 0, len(raw.Changes))
	for _, c := range raw.Changes {
		fc := FileChange{
			OldPath:     c.OldPath,
			NewPath:     c.NewPath,
			NewFile:     c.NewFile,
			RenamedFile: c.RenamedFile,
			DeletedFile: c.DeletedFile,
			Diff:        c.Diff,
		}
		if len(fc.Diff) > s.maxDiffBytes {
			fc.Diff = truncateUTF8(fc.Diff, s.maxDiffBytes)
			fc.DiffTruncated = true
		}
		changes = append(changes, fc)
	}

	return &ChangesResult{
		Success:    true,
		IID:        iid,
		Changes:    changes,
		Overflow:   raw.Overflow,
		Resolution: res.provenance(),
	}, nil
}

// CreateInput holds the arguments of CreateMergeRequest. Zero values mean
// "not provided".
type CreateInput struct {
	Project            ResolveInput
	SourceBranch       string
	TargetBranch       string
	Title              string
	Description        string
	AssigneeID         *int64
	ReviewerIDs        []int64
	Labels             []string
	RemoveSourceBranch bool
	Squash             bool
}

// CreateResult is the outcome of CreateMergeRequest.
type CreateResult struct {
	Success        bool         `json:"success"`
	MergeRequest   MergeRequest `json:"mergeRequest"`
	TitleGenerated bool         `json:"titleGenerated"`
	Resolution     Provenance   `json:"resolution"`
}

// BuildCreateRequest returns the POST body. Optional fields are omitted
// unless provided; the two boolean flags are only sent when true.
func BuildCreateRequest(in CreateInput, targetBranch, title string) map[string]any {
	body := map[string]any{
		"source_branch": in.SourceBranch,
		"target_branch": targetBranch,
		"title":         title,
	}
	if strings.TrimSpace(in.Description) != "" {
		body["description"] = in.Description
	}
	if in.AssigneeID != nil {
		body["assignee_id"] = *in.AssigneeID
	}
	if len(in.ReviewerIDs) > 0 {
		body["reviewer_ids"] = in.ReviewerIDs
	}
	if len(in.Labels) > 0 {
		body["labels"] = strings.Join(in.Labels, ",")
	}
	if in.RemoveSourceBranch {
		body["remove_source_branch"] = true
	}
	if in.Squash {
		body["squash"] = true
	}
	return body
}

// CreateMergeRequest validates the source branch, resolves the project and
// opens a merge request. A missing title is generated from the branch name.
func (s *Service) CreateMergeRequest(ctx context.Context, in CreateInput) (*CreateResult, error) {
	in.SourceBranch = strings.TrimSpace(in.SourceBranch)
	if in.SourceBranch == "" {
		return nil, InvalidArgument("sourceBranch is required",
			"Pass sourceBranch with the name of a pushed branch",
			"Or run the tool from a checkout of that branch and omit sourceBranch",
		)
	}

	target := strings.TrimSpace(in.TargetBranch)
	if target == "" {
		target = s.defaultTarget
	}

	res, err := s.Resolve(ctx, in.Project)
	if err != nil {
		return nil, err
	}

	title := strings.TrimSpace(in.Title)
	generated := false
	if title == "" {
		title = GenerateTitle(in.SourceBranch)
		generated = true
	}

	body := BuildCreateRequest(in, target, title)
	s.logger.Debug("Creating merge request",
		"project", res.RawProjectID,
		"source", in.SourceBranch,
		"target", target)
	s.logger.DebugObject("merge request payload", body)

	start := time.Now()
	resp, err := s.api.RequestWithRateLimit(ctx, "projects/"+res.NormalizedProjectID+"/merge_requests", httpclient.RequestOptions{
		Method: http.MethodPost,
		Data:   body,
	})
	s.logger.LogPerformance("create merge request", start)
	if err != nil {
		return nil, APIFailure(OpCreate, err, res, body)
	}

	var mr apiMergeRequest
	if err := resp.Decode(&mr); err != nil {
		return nil, APIFailure(OpCreate, err, res, body)
	}

	return &CreateResult{
		Success:        true,
		MergeRequest:   mr.curated(),
		TitleGenerated: generated,
		Resolution:     res.provenance(),
	}, nil
}

// CommentInput is a note to add to a merge request.
type CommentInput struct {
	MergeRequestInput
	Body string
}

// CommentResult is the outcome of AddComment.
type CommentResult struct {
	Success    bool       `json:"success"`
	IID        int        `json:"iid"`
	Note       Note       `json:"note"`
	Resolution Provenance `json:"resolution"`
}

// AddComment posts a note on a merge request.
func (s *Service) AddComment(ctx context.Context, in CommentInput) (*CommentResult, error) {
	if strings.TrimSpace(in.Body) == "" {
		return nil, InvalidArgument("Comment body is required", "Pass body with the comment text")
	}
	iid := in.resolveIID()
	if iid <= 0 {
		return nil, missingIID()
	}

	res, err := s.Resolve(ctx, in.Project)
	if err != nil {
		return nil, err
	}

	request := map[string]any{"body": in.Body}
	resp, err := s.api.RequestWithRateLimit(ctx, mergeRequestPath(res.NormalizedProjectID, iid)+"/notes", httpclient.RequestOptions{
		Method: http.MethodPost,
		Data:   request,
	})
	if err != nil {
		return nil, APIFailure(OpComment, err, res, request)
	}

	var note apiNote
	if err := resp.Decode(&note); err != nil {
		return nil, APIFailure(OpComment, err, res, request)
	}

	return &CommentResult{
		Success: true,
		IID:     iid,
		Note: Note{
			ID:        note.ID,
			Body:      note.Body,
			Author:    note.Author,
			CreatedAt: note.CreatedAt,
			System:    note.System,
		},
		Resolution: res.provenance(),
	}, nil
}

// truncateUTF8 cuts s to at most n bytes without splitting a rune.
func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// AsFailure extracts a *Failure from err.
func AsFailure(err error) (*Failure, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}
