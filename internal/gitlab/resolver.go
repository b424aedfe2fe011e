package gitlab

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/lininn/gitlab-review-mcp/internal/gitinfo"
	"github.com/lininn/gitlab-review-mcp/internal/httpclient"
	"github.com/lininn/gitlab-review-mcp/internal/logging"
	"github.com/lininn/gitlab-review-mcp/internal/metrics"
)

const searchPageSize = 20

// Requester issues GitLab API calls. *httpclient.Client satisfies it.
type Requester interface {
	Request(ctx context.Context, endpoint string, opts httpclient.RequestOptions) (*httpclient.Response, error)
	RequestWithRateLimit(ctx context.Context, endpoint string, opts httpclient.RequestOptions) (*httpclient.Response, error)
}

// RemoteInspector reads the named git remote of a working directory.
type RemoteInspector func(dir, remoteName string) gitinfo.RemoteInfo

// ResolveInput is the caller-supplied identity hints for one resolution.
type ResolveInput struct {
	ProjectID        string
	WorkingDirectory string
	RemoteName       string
}

// ResolverOptions configures a Resolver.
type ResolverOptions struct {
	// APIHost is host[:port] of the configured API. Git remotes on another
	// host are discarded. Empty disables the check.
	APIHost       string
	DefaultRemote string
	// InspectRemote defaults to gitinfo.GetRemoteInfo.
	InspectRemote RemoteInspector
	Logger        *logging.AppLogger
}

// Resolver turns loosely specified project hints into a verified project.
// It holds no per-run state and is safe for concurrent use.
type Resolver struct {
	api           Requester
	apiHost       string
	defaultRemote string
	inspectRemote RemoteInspector
	logger        *logging.AppLogger
}

// NewResolver creates a Resolver backed by api.
func NewResolver(api Requester, opts ResolverOptions) *Resolver {
	if opts.InspectRemote == nil {
		opts.InspectRemote = gitinfo.GetRemoteInfo
	}
	if opts.DefaultRemote == "" {
		opts.DefaultRemote = "origin"
	}
	if opts.Logger == nil {
		opts.Logger = logging.GetDefault()
	}
	return &Resolver{
		api:           api,
		apiHost:       strings.ToLower(opts.APIHost),
		defaultRemote: opts.DefaultRemote,
		inspectRemote: opts.InspectRemote,
		logger:        opts.Logger,
	}
}

type resolveState string

const (
	statePending   resolveState = "PENDING"
	stateVerifying resolveState = "VERIFYING"
	stateVerified  resolveState = "VERIFIED"
	stateExhausted resolveState = "EXHAUSTED"
)

// resolution is the mutable bookkeeping of a single Resolve call.
type resolution struct {
	r      *Resolver
	in     ResolveInput
	result *ResolutionResult
	state  resolveState

	queue []Candidate
	seen  map[string]bool

	inputInvalid    bool
	gitTierDone     bool
	searchTierDone  bool
	inputSearchTerm string
	gitSearchTerm   string
	inputPath       string
	gitPath         string
}

// Resolve tries candidates strictly one at a time: direct input first, then
// the git remote, then a project search. The first candidate that verifies
// wins. A 404 moves on to the next candidate; any other API or transport
// error aborts the run and is returned alongside the partial result, whose
// Attempts still records every request made.
func (r *Resolver) Resolve(ctx context.Context, in ResolveInput) (*ResolutionResult, error) {
	start := time.Now()
	defer r.logger.LogPerformance("resolve project", start)

	run := &resolution{
		r:     r,
		in:    in,
		state: statePending,
		seen:  make(map[string]bool),
		result: &ResolutionResult{
			Attempts:          []AttemptRecord{},
			ProvidedProjectID: in.ProjectID,
		},
	}

	err := run.execute(ctx)
	if err != nil {
		metrics.ObserveResolution("error", "")
		return run.result, err
	}

	if run.result.Success {
		metrics.ObserveResolution("verified", string(run.result.Source))
	} else {
		metrics.ObserveResolution(string(run.result.Reason), "")
	}
	return run.result, nil
}

func (run *resolution) execute(ctx context.Context) error {
	run.enqueueInput()
	if len(run.queue) == 0 {
		run.enqueueGitRemote()
	}

	for {
		if len(run.queue) == 0 {
			if err := run.nextTier(ctx); err != nil {
				run.transition(stateExhausted)
				return err
			}
			if len(run.queue) == 0 {
				run.transition(stateExhausted)
				run.result.Reason = run.failureReason()
				return nil
			}
		}

		candidate := run.queue[0]
		run.queue = run.queue[1:]

		run.transition(stateVerifying)
		verified, err := run.verify(ctx, candidate)
		if err != nil {
			run.transition(stateExhausted)
			return err
		}
		if verified {
			run.transition(stateVerified)
			return nil
		}
		run.transition(statePending)
	}
}

func (run *resolution) transition(to resolveState) {
	if run.state == to {
		return
	}
	run.r.logger.LogStateTransition("resolver", string(run.state), string(to))
	run.state = to
}

// nextTier generates the git remote tier, then the search tier, each at most once.
func (run *resolution) nextTier(ctx context.Context) error {
	if !run.gitTierDone {
		run.enqueueGitRemote()
		if len(run.queue) > 0 {
			return nil
		}
	}
	if !run.searchTierDone {
		return run.enqueueSearch(ctx)
	}
	return nil
}

func (run *resolution) enqueue(c Candidate) bool {
	if run.seen[c.NormalizedProjectID] {
		run.r.logger.Debug("Skipping duplicate candidate",
			"normalized", c.NormalizedProjectID,
			"source", c.Source)
		return false
	}
	run.seen[c.NormalizedProjectID] = true
	run.queue = append(run.queue, c)
	return true
}

func (run *resolution) enqueueInput() {
	raw := run.in.ProjectID
	if raw == "" {
		return
	}

	metadata := map[string]string{"providedProjectId": raw}
	projectID := raw
	if ref, ok := ParseProjectReference(raw); ok {
		projectID = ref.ProjectPath
		metadata["extractedFromUrl"] = "true"
		metadata["urlHost"] = ref.Host
		if ref.MergeRequestIID > 0 {
			run.result.MergeRequestIID = ref.MergeRequestIID
			metadata["mergeRequestIid"] = strconv.Itoa(ref.MergeRequestIID)
		}
	}

	normalized, err := NormalizeProjectID(projectID)
	if err != nil {
		run.inputInvalid = true
		run.r.logger.Debug("Project identifier failed normalization", "input", raw, "error", err)
		return
	}
	if normalized.Warning != "" {
		run.r.logger.Warn(normalized.Warning)
		run.result.Diagnostics = append(run.result.Diagnostics, normalized.Warning)
	}

	trimmed := strings.TrimSpace(projectID)
	run.inputSearchTerm = lastSegment(trimmed)
	if !IsNumericID(trimmed) {
		run.inputPath = decodedPath(trimmed)
	}

	run.enqueue(Candidate{
		RawProjectID:        trimmed,
		NormalizedProjectID: normalized.Value,
		Source:              SourceInput,
		Metadata:            metadata,
	})
}

func (run *resolution) enqueueGitRemote() {
	run.gitTierDone = true

	remoteName := run.in.RemoteName
	if remoteName == "" {
		remoteName = run.r.defaultRemote
	}

	info := run.r.inspectRemote(run.in.WorkingDirectory, remoteName)
	if !info.IsGitLabProject || info.ProjectPath == "" {
		run.r.logger.Debug("No usable git remote",
			"dir", run.in.WorkingDirectory,
			"remote", remoteName,
			"isGitRepository", info.IsGitRepository)
		return
	}

	if !run.r.hostMatches(info.Host) {
		note := fmt.Sprintf("git remote %q points at %s but the API is %s; remote ignored",
			remoteName, info.Host, run.r.apiHost)
		run.r.logger.Warn("Discarding git remote on a different host",
			"remote", remoteName,
			"remoteHost", info.Host,
			"apiHost", run.r.apiHost)
		run.result.Diagnostics = append(run.result.Diagnostics, note)
		return
	}

	normalized, err := NormalizeProjectID(info.ProjectPath)
	if err != nil {
		return
	}

	run.gitSearchTerm = lastSegment(info.ProjectPath)
	run.gitPath = info.ProjectPath

	run.enqueue(Candidate{
		RawProjectID:        info.ProjectPath,
		NormalizedProjectID: normalized.Value,
		Source:              SourceGitRemote,
		Metadata: map[string]string{
			"workingDirectory": run.in.WorkingDirectory,
			"remoteName":       remoteName,
			"remoteUrl":        info.RemoteURL,
		},
	})
}

type searchResult struct {
	ID                int64  `json:"id"`
	Name              string `json:"name"`
	Path              string `json:"path"`
	PathWithNamespace string `json:"path_with_namespace"`
	WebURL            string `json:"web_url"`
}

func (run *resolution) enqueueSearch(ctx context.Context) error {
	run.searchTierDone = true

	term, fullPath := run.inputSearchTerm, run.inputPath
	if term == "" {
		term, fullPath = run.gitSearchTerm, run.gitPath
	}
	if term == "" {
		return nil
	}

	query := url.Values{}
	query.Set("search", term)
	query.Set("simple", "true")
	query.Set("per_page", strconv.Itoa(searchPageSize))

	resp, err := run.r.api.RequestWithRateLimit(ctx, "projects", httpclient.RequestOptions{Query: query})
	if err != nil {
		if httpclient.StatusCode(err) == http.StatusNotFound {
			return nil
		}
		return fmt.Errorf("project search for %q failed: %w", term, err)
	}

	var results []searchResult
	if err := resp.Decode(&results); err != nil {
		return fmt.Errorf("project search for %q failed: %w", term, err)
	}

	best, matchedBy, ok := rankSearchResults(results, fullPath, term)
	if !ok {
		run.r.logger.Debug("Project search returned no results", "term", term)
		return nil
	}

	if run.seen[url.PathEscape(best.PathWithNamespace)] {
		return nil
	}

	run.enqueue(Candidate{
		RawProjectID:        best.PathWithNamespace,
		NormalizedProjectID: strconv.FormatInt(best.ID, 10),
		Source:              SourceSearch,
		Metadata: map[string]string{
			"searchTerm": term,
			"matchedBy":  matchedBy,
		},
	})
	return nil
}

// rankSearchResults prefers an exact path_with_namespace match, then an
// exact path, then an exact name, then the first result.
func rankSearchResults(results []searchResult, fullPath, term string) (searchResult, string, bool) {
	if len(results) == 0 {
		return searchResult{}, "", false
	}
	if fullPath != "" {
		for _, r := range results {
			if r.PathWithNamespace == fullPath {
				return r, "path_with_namespace", true
			}
		}
	}
	for _, r := range results {
		if r.Path == term {
			return r, "path", true
		}
	}
	for _, r := range results {
		if r.Name == term {
			return r, "name", true
		}
	}
	return results[0], "first_result", true
}

// verify sends GET projects/:id. It returns (true, nil) when the candidate
// resolves, (false, nil) on 404, and an error for anything else.
func (run *resolution) verify(ctx context.Context, c Candidate) (bool, error) {
	attempt := AttemptRecord{Candidate: c}

	resp, err := run.r.api.RequestWithRateLimit(ctx, "projects/"+c.NormalizedProjectID, httpclient.RequestOptions{})
	if err != nil {
		attempt.Status = httpclient.StatusCode(err)
		attempt.ErrorMessage = apiErrorMessage(err)
		run.result.Attempts = append(run.result.Attempts, attempt)

		if attempt.Status == http.StatusNotFound {
			run.r.logger.Debug("Candidate not found",
				"candidate", c.RawProjectID,
				"source", c.Source)
			return false, nil
		}
		return false, err
	}

	var project ProjectData
	if err := resp.Decode(&project); err != nil {
		attempt.Status = resp.Status
		attempt.ErrorMessage = err.Error()
		run.result.Attempts = append(run.result.Attempts, attempt)
		return false, err
	}

	attempt.Success = true
	attempt.Status = resp.Status
	attempt.ProjectData = &project
	run.result.Attempts = append(run.result.Attempts, attempt)

	run.result.Success = true
	run.result.RawProjectID = c.RawProjectID
	run.result.NormalizedProjectID = c.NormalizedProjectID
	run.result.Source = c.Source
	run.result.ProjectData = &project

	run.r.logger.Debug("Project resolved",
		"project", project.PathWithNamespace,
		"id", project.ID,
		"source", c.Source)
	return true, nil
}

func (run *resolution) failureReason() FailureReason {
	if run.inputInvalid {
		return ReasonInvalidFormat
	}
	for _, a := range run.result.Attempts {
		if a.Status == http.StatusNotFound {
			return ReasonNotFound
		}
	}
	return ReasonNotDetected
}

// hostMatches compares host names without ports, since scp-style remotes never
// carry the web port.
func (r *Resolver) hostMatches(remoteHost string) bool {
	if r.apiHost == "" {
		return true
	}
	return hostname(r.apiHost) == hostname(strings.ToLower(remoteHost))
}

func hostname(hostport string) string {
	if h, _, err := net.SplitHostPort(hostport); err == nil {
		return h
	}
	return hostport
}

func decodedPath(id string) string {
	if decoded, err := url.PathUnescape(id); err == nil {
		return decoded
	}
	return id
}

// apiErrorMessage prefers GitLab's {"message": ...} or {"error": ...} body.
func apiErrorMessage(err error) string {
	var httpErr *httpclient.HTTPError
	if !errors.As(err, &httpErr) {
		return err.Error()
	}
	if msg := extractAPIMessage(httpErr.Body); msg != "" {
		return msg
	}
	return fmt.Sprintf("API returned status %d", httpErr.Status)
}
