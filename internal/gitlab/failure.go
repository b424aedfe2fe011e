package gitlab

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/lininn/gitlab-review-mcp/internal/httpclient"
)

// ErrorKind classifies a Failure.
type ErrorKind string

const (
	KindInvalidFormat   ErrorKind = "invalid_format"
	KindNotDetected     ErrorKind = "not_detected"
	KindNotFound        ErrorKind = "not_found"
	KindAuth            ErrorKind = "auth_error"
	KindTransport       ErrorKind = "transport_error"
	KindConflict        ErrorKind = "conflict"
	KindBadRequest      ErrorKind = "bad_request"
	KindAPI             ErrorKind = "api_error"
	KindInvalidArgument ErrorKind = "invalid_argument"
)

// FailureError is the machine-readable part of a Failure.
type FailureError struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

// FailureDetails carries everything needed to correct the input without
// reading server logs.
type FailureDetails struct {
	ProvidedProjectID string          `json:"providedProjectId,omitempty"`
	Reason            FailureReason   `json:"reason,omitempty"`
	Attempts          []AttemptRecord `json:"attempts,omitempty"`
	Diagnostics       []string        `json:"diagnostics,omitempty"`
	Status            int             `json:"status,omitempty"`
	ResponseBody      string          `json:"responseBody,omitempty"`
	Request           any             `json:"request,omitempty"`
	Resolution        *Provenance     `json:"resolution,omitempty"`
}

// Failure is the structured error payload of every tool. It implements error
// so operations can return it; the tool layer serialises it instead of
// surfacing a transport-level error.
type Failure struct {
	Success     bool           `json:"success"`
	Err         FailureError   `json:"error"`
	Message     string         `json:"message"`
	Details     FailureDetails `json:"details"`
	Suggestions []string       `json:"suggestions"`
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s: %s", f.Err.Kind, f.Message)
}

// Kind returns the failure classification.
func (f *Failure) Kind() ErrorKind {
	return f.Err.Kind
}

func newFailure(kind ErrorKind, message string, suggestions ...string) *Failure {
	if suggestions == nil {
		suggestions = []string{}
	}
	return &Failure{
		Success:     false,
		Err:         FailureError{Kind: kind, Message: message},
		Message:     message,
		Suggestions: suggestions,
	}
}

// InvalidArgument reports a missing or malformed tool argument. No API call
// is made for these.
func InvalidArgument(message string, suggestions ...string) *Failure {
	return newFailure(KindInvalidArgument, message, suggestions...)
}

// ResolutionFailure converts an unsuccessful ResolutionResult into a Failure
// with suggestions tailored to the reason.
func ResolutionFailure(res *ResolutionResult, apiHost string) *Failure {
	var f *Failure
	switch res.Reason {
	case ReasonInvalidFormat:
		f = newFailure(KindInvalidFormat,
			fmt.Sprintf("Project identifier %q is not a valid GitLab project reference", res.ProvidedProjectID),
			"Provide a numeric project ID such as 12345",
			"Provide the full namespace path such as group/subgroup/project",
			"Paste the project or merge request URL directly",
		)
	case ReasonNotFound:
		f = newFailure(KindNotFound,
			fmt.Sprintf("No GitLab project matched after %d attempt(s)", len(res.Attempts)),
			"Check the spelling of the namespace path, including nested groups",
			"GitLab answers 404 for projects the token cannot see; confirm the token user is a member of the project",
			"Use the numeric project ID shown on the project overview page",
		)
	default:
		target := "the configured GitLab instance"
		if apiHost != "" {
			target = apiHost
		}
		f = newFailure(KindNotDetected,
			"Could not determine which GitLab project to use",
			"Pass projectId (numeric ID, namespace path or project URL)",
			"Pass workingDirectory pointing inside a git checkout of the project",
			fmt.Sprintf("Make sure the git remote (default origin) points at %s", target),
		)
	}

	f.Details.ProvidedProjectID = res.ProvidedProjectID
	f.Details.Reason = res.Reason
	f.Details.Attempts = res.Attempts
	f.Details.Diagnostics = res.Diagnostics
	return f
}

// Operation names used to tailor API failure suggestions.
const (
	OpResolve = "resolve"
	OpFetch   = "fetch"
	OpCreate  = "create"
	OpChanges = "changes"
	OpComment = "comment"
)

// APIFailure converts an executor error into a Failure classified by HTTP
// status. res, when non-nil, contributes the attempt trail; request is the
// payload that was sent, if any.
func APIFailure(op string, err error, res *ResolutionResult, request any) *Failure {
	status := httpclient.StatusCode(err)

	var f *Failure
	switch {
	case errors.Is(err, httpclient.ErrTransport):
		f = newFailure(KindTransport,
			"Could not reach the GitLab API: "+err.Error(),
			"Check network connectivity and GITLAB_API_URL",
			"Increase GITLAB_TIMEOUT for slow instances",
		)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		f = newFailure(KindAuth, authMessage(op, status), authSuggestions(op, status)...)
	case status == http.StatusNotFound:
		f = newFailure(KindNotFound, notFoundMessage(op), notFoundSuggestions(op)...)
	case status == http.StatusConflict:
		f = newFailure(KindConflict,
			"A merge request for this source branch already exists",
			"Fetch the existing merge request with get_merge_request",
			"Close the existing merge request or pick a different source branch",
		)
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		f = newFailure(KindBadRequest, badRequestMessage(op, err), badRequestSuggestions(op)...)
	case status != 0:
		f = newFailure(KindAPI,
			fmt.Sprintf("GitLab API returned status %d", status),
			"Retry later; the GitLab instance may be degraded",
		)
	default:
		f = newFailure(KindAPI, err.Error())
	}

	var httpErr *httpclient.HTTPError
	if errors.As(err, &httpErr) {
		f.Details.Status = httpErr.Status
		f.Details.ResponseBody = httpErr.Body
	}
	f.Details.Request = request

	if res != nil {
		f.Details.ProvidedProjectID = res.ProvidedProjectID
		f.Details.Attempts = res.Attempts
		f.Details.Diagnostics = res.Diagnostics
		if res.Success {
			p := res.provenance()
			f.Details.Resolution = &p
		}
	}
	return f
}

func authMessage(op string, status int) string {
	if status == http.StatusUnauthorized {
		return "GitLab rejected the access token (401 Unauthorized)"
	}
	switch op {
	case OpCreate:
		return "The token user is not allowed to create merge requests in this project (403 Forbidden)"
	case OpComment:
		return "The token user is not allowed to comment on this merge request (403 Forbidden)"
	default:
		return "The token user is not allowed to access this resource (403 Forbidden)"
	}
}

func authSuggestions(op string, status int) []string {
	if status == http.StatusUnauthorized {
		return []string{
			"Set GITLAB_TOKEN or run 'gitlab-review-mcp token set'",
			"Check that the token has not expired or been revoked",
			"The token needs the api scope (read_api is enough for read-only tools)",
		}
	}
	out := []string{"Check the token user's role in the project"}
	switch op {
	case OpCreate:
		out = append(out, "Creating merge requests requires at least the Developer role")
	case OpComment:
		out = append(out, "The merge request discussion may be locked")
	}
	return append(out, "A 403 can also mean the API rate limit was exceeded; retry after a short wait")
}

func notFoundMessage(op string) string {
	switch op {
	case OpCreate:
		return "GitLab could not find the project or one of the branches"
	case OpFetch, OpChanges, OpComment:
		return "Merge request not found in the resolved project"
	default:
		return "Resource not found"
	}
}

func notFoundSuggestions(op string) []string {
	switch op {
	case OpCreate:
		return []string{
			"Push the source branch before creating the merge request",
			"Check that the target branch exists",
		}
	case OpFetch, OpChanges, OpComment:
		return []string{
			"Check the merge request IID (the number shown in the URL, not the global ID)",
			"Confirm the merge request belongs to the resolved project",
		}
	default:
		return []string{}
	}
}

func badRequestMessage(op string, err error) string {
	msg := apiErrorMessage(err)
	if op == OpCreate {
		return "GitLab rejected the merge request: " + msg
	}
	return "GitLab rejected the request: " + msg
}

func badRequestSuggestions(op string) []string {
	if op != OpCreate {
		return []string{"Check the request arguments"}
	}
	return []string{
		"Check that the source branch exists on the remote and has been pushed",
		"Check that the target branch exists",
		"Source and target branches must differ",
		"An open merge request may already exist for this source branch",
	}
}

// extractAPIMessage pulls a readable message out of a GitLab error body. The
// message field may be a string, a list, or a map of field errors.
func extractAPIMessage(body string) string {
	var payload struct {
		Message json.RawMessage `json:"message"`
		Error   string          `json:"error"`
	}
	if err := json.Unmarshal([]byte(body), &payload); err != nil {
		return strings.TrimSpace(body)
	}

	if len(payload.Message) > 0 {
		var s string
		if err := json.Unmarshal(payload.Message, &s); err == nil {
			return s
		}
		var list []string
		if err := json.Unmarshal(payload.Message, &list); err == nil {
			return strings.Join(list, "; ")
		}
		var fields map[string][]string
		if err := json.Unmarshal(payload.Message, &fields); err == nil {
			keys := make([]string, 0, len(fields))
			for k := range fields {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			parts := make([]string, 0, len(keys))
			for _, k := range keys {
				parts = append(parts, k+" "+strings.Join(fields[k], ", "))
			}
			return strings.Join(parts, "; ")
		}
		return string(payload.Message)
	}
	return payload.Error
}
