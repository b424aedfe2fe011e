package gitlab

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

// ProjectReference is what can be recovered from a pasted project or merge
// request URL.
type ProjectReference struct {
	Host            string
	ProjectPath     string
	MergeRequestIID int
}

var (
	scpReferencePattern = regexp.MustCompile(`^[^@/\s]+@([^:/\s]+):(.+)$`)
	mergeRequestPattern = regexp.MustCompile(`^(.+?)(?:/-)?/merge_requests/(\d+)(?:/.*)?$`)
)

// ParseProjectReference recognises SSH (git@host:path) and HTTP(S) URLs,
// optionally ending in /-/merge_requests/<iid> or /merge_requests/<iid>.
// Plain identifiers such as "group/project" or "123" are not references and
// return ok=false.
func ParseProjectReference(input string) (ProjectReference, bool) {
	input = strings.TrimSpace(input)
	if input == "" {
		return ProjectReference{}, false
	}

	var host, path string
	switch {
	case strings.HasPrefix(input, "http://") || strings.HasPrefix(input, "https://"):
		parsed, err := url.Parse(input)
		if err != nil || parsed.Host == "" {
			return ProjectReference{}, false
		}
		host = strings.ToLower(parsed.Host)
		path = parsed.Path
	default:
		matches := scpReferencePattern.FindStringSubmatch(input)
		if matches == nil {
			return ProjectReference{}, false
		}
		host = strings.ToLower(matches[1])
		path = matches[2]
	}

	path = strings.Trim(path, "/")
	ref := ProjectReference{Host: host}

	if m := mergeRequestPattern.FindStringSubmatch(path); m != nil {
		iid, err := strconv.Atoi(m[2])
		if err == nil && iid > 0 {
			ref.MergeRequestIID = iid
		}
		path = m[1]
	} else if i := strings.Index(path, "/-/"); i >= 0 {
		// other project pages such as /-/tree/main or /-/issues/3
		path = path[:i]
	}

	path = strings.TrimSuffix(strings.TrimSuffix(path, "/-"), ".git")
	if !strings.Contains(path, "/") {
		return ProjectReference{}, false
	}
	ref.ProjectPath = path

	return ref, true
}
