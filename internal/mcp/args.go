package mcp

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/lininn/gitlab-review-mcp/pkg/fileops"
)

// Accepted external names per field, in lookup order. The first name is the
// one advertised in tool schemas.
var (
	projectAliases = []string{"projectId", "project_id", "project", "projectPath", "project_path", "repository", "repository_path"}
	iidAliases     = []string{"pullRequestNumber", "pull_request_number", "mergeRequestIid", "merge_request_iid", "mergeRequestId", "merge_request_id", "iid"}
	dirAliases     = []string{"workingDirectory", "working_directory", "cwd"}
	remoteAliases  = []string{"remoteName", "remote_name", "remote"}

	sourceBranchAliases = []string{"sourceBranch", "source_branch"}
	targetBranchAliases = []string{"targetBranch", "target_branch"}
	titleAliases        = []string{"title"}
	descriptionAliases  = []string{"description"}
	assigneeAliases     = []string{"assigneeId", "assignee_id"}
	reviewerAliases     = []string{"reviewerIds", "reviewer_ids"}
	labelAliases        = []string{"labels"}
	removeSourceAliases = []string{"removeSourceBranch", "remove_source_branch"}
	squashAliases       = []string{"squash"}
	bodyAliases         = []string{"body", "comment", "note"}
	codeAliases         = []string{"code", "content"}
	filePathAliases     = []string{"filePath", "file_path", "path"}
	fileNameAliases     = []string{"fileName", "file_name"}
	languageAliases     = []string{"language", "lang"}
)

// arguments is the raw argument object of one tool call.
type arguments map[string]any

// lookup returns the value of the first alias present with a non-null value.
func (a arguments) lookup(aliases []string) (any, bool) {
	for _, name := range aliases {
		if v, ok := a[name]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

func (a arguments) str(aliases []string) (string, bool) {
	v, ok := a.lookup(aliases)
	if !ok {
		return "", false
	}
	return ToOptionalString(v)
}

func (a arguments) number(aliases []string) (int64, bool) {
	v, ok := a.lookup(aliases)
	if !ok {
		return 0, false
	}
	return ToOptionalNumber(v)
}

func (a arguments) boolean(aliases []string) (bool, bool) {
	v, ok := a.lookup(aliases)
	if !ok {
		return false, false
	}
	return ToOptionalBool(v)
}

// toolArgs is the decoded, alias-free view of a tool call. Pointer and
// "Has" fields distinguish an omitted argument from a zero value.
type toolArgs struct {
	ProjectID        string
	MergeRequestIID  int
	WorkingDirectory string
	RemoteName       string

	SourceBranch       string
	HasSourceBranch    bool
	TargetBranch       string
	Title              string
	Description        string
	AssigneeID         *int64
	ReviewerIDs        []int64
	Labels             []string
	RemoveSourceBranch bool
	Squash             bool

	Body     string
	Code     string
	HasCode  bool
	FilePath string
	FileName string
	Language string
}

// decodeArgs applies the alias table and coercions. Values that cannot be
// coerced are treated as absent.
func decodeArgs(raw map[string]any) toolArgs {
	a := arguments(raw)
	var out toolArgs

	// Kept raw: the resolver trims it and echoes the original on failure.
	out.ProjectID, _ = a.str(projectAliases)
	if n, ok := a.number(iidAliases); ok && n > 0 && n <= math.MaxInt32 {
		out.MergeRequestIID = int(n)
	}
	if s, ok := a.str(dirAliases); ok {
		out.WorkingDirectory = fileops.ExpandPath(strings.TrimSpace(s))
	}
	if s, ok := a.str(remoteAliases); ok {
		out.RemoteName = strings.TrimSpace(s)
	}

	out.SourceBranch, out.HasSourceBranch = a.str(sourceBranchAliases)
	out.TargetBranch, _ = a.str(targetBranchAliases)
	out.Title, _ = a.str(titleAliases)
	out.Description, _ = a.str(descriptionAliases)
	if n, ok := a.number(assigneeAliases); ok {
		out.AssigneeID = &n
	}
	if v, ok := a.lookup(reviewerAliases); ok {
		out.ReviewerIDs, _ = ToOptionalNumberList(v)
	}
	if v, ok := a.lookup(labelAliases); ok {
		out.Labels, _ = ToOptionalStringList(v)
	}
	out.RemoveSourceBranch, _ = a.boolean(removeSourceAliases)
	out.Squash, _ = a.boolean(squashAliases)

	out.Body, _ = a.str(bodyAliases)
	out.Code, out.HasCode = a.str(codeAliases)
	if s, ok := a.str(filePathAliases); ok {
		out.FilePath = strings.TrimSpace(s)
	}
	out.FileName, _ = a.str(fileNameAliases)
	out.Language, _ = a.str(languageAliases)

	return out
}

// ToOptionalString accepts strings as-is and renders integral numbers
// without a fractional part. Anything else is absent.
func ToOptionalString(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case json.Number:
		return t.String(), true
	case float64:
		if math.IsInf(t, 0) || math.IsNaN(t) {
			return "", false
		}
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case int:
		return strconv.Itoa(t), true
	case int64:
		return strconv.FormatInt(t, 10), true
	}
	return "", false
}

// ToOptionalNumber accepts integral numbers and numeric strings.
func ToOptionalNumber(v any) (int64, bool) {
	switch t := v.(type) {
	case float64:
		if t != math.Trunc(t) || math.IsInf(t, 0) || math.IsNaN(t) || math.Abs(t) > 1<<53 {
			return 0, false
		}
		return int64(t), true
	case int:
		return int64(t), true
	case int64:
		return t, true
	case json.Number:
		n, err := t.Int64()
		return n, err == nil
	case string:
		s := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(t), "!"))
		n, err := strconv.ParseInt(s, 10, 64)
		return n, err == nil
	}
	return 0, false
}

// ToOptionalBool accepts booleans, the strings true/false/yes/no/1/0 in any
// case, and the numbers 0 and 1.
func ToOptionalBool(v any) (bool, bool) {
	switch t := v.(type) {
	case bool:
		return t, true
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "yes", "1", "on":
			return true, true
		case "false", "no", "0", "off":
			return false, true
		}
	case float64:
		if t == 0 || t == 1 {
			return t == 1, true
		}
	}
	return false, false
}

// ToOptionalNumberList accepts a list of numbers, a comma-separated string,
// or a single number. Any element that is not a number makes the whole
// value absent.
func ToOptionalNumberList(v any) ([]int64, bool) {
	var items []any
	switch t := v.(type) {
	case []any:
		items = t
	case []int64:
		return t, true
	case string:
		for part := range strings.SplitSeq(t, ",") {
			if part = strings.TrimSpace(part); part != "" {
				items = append(items, part)
			}
		}
	default:
		items = []any{v}
	}

	out := make([]int64, 0, len(items))
	for _, item := range items {
		n, ok := ToOptionalNumber(item)
		if !ok {
			return nil, false
		}
		out = append(out, n)
	}
	return out, true
}

// ToOptionalStringList accepts a list of strings or a comma-separated string.
// Blank entries are dropped.
func ToOptionalStringList(v any) ([]string, bool) {
	var out []string
	switch t := v.(type) {
	case string:
		for part := range strings.SplitSeq(t, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	case []any:
		for _, item := range t {
			s, ok := ToOptionalString(item)
			if !ok {
				return nil, false
			}
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	case []string:
		out = t
	default:
		return nil, false
	}
	return out, true
}
