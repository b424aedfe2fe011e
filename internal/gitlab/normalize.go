package gitlab

import (
	"errors"
	"net/url"
	"regexp"
	"strings"
)

// ErrEmptyProjectID is returned when an identifier is empty after trimming.
var ErrEmptyProjectID = errors.New("project identifier is empty")

var (
	numericIDPattern = regexp.MustCompile(`^\d+$`)

	// Namespace paths: two or more segments of ASCII word characters, dots,
	// dashes, or CJK script characters.
	projectPathPattern = regexp.MustCompile(
		`^[A-Za-z0-9._\-\p{Han}\p{Hiragana}\p{Katakana}\p{Hangul}]+(?:/[A-Za-z0-9._\-\p{Han}\p{Hiragana}\p{Katakana}\p{Hangul}]+)+$`)
)

// NormalizedID is an API-ready project identifier. Warning is set when the
// input did not look like a numeric ID or a namespace path and was encoded
// on a best-effort basis.
type NormalizedID struct {
	Value   string
	Warning string
}

// NormalizeProjectID converts a raw identifier into the form used in
// projects/{id} endpoints. Numeric IDs and strings that already contain a
// percent sign are returned unchanged; paths are percent-encoded once so
// "group/project" becomes "group%2Fproject".
func NormalizeProjectID(raw string) (NormalizedID, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return NormalizedID{}, ErrEmptyProjectID
	}

	switch {
	case numericIDPattern.MatchString(trimmed):
		return NormalizedID{Value: trimmed}, nil
	case strings.Contains(trimmed, "%"):
		return NormalizedID{Value: trimmed}, nil
	case projectPathPattern.MatchString(trimmed):
		return NormalizedID{Value: url.PathEscape(trimmed)}, nil
	default:
		return NormalizedID{
			Value:   url.PathEscape(trimmed),
			Warning: "project identifier " + quote(trimmed) + " is neither a numeric ID nor a namespace path; encoded as-is",
		}, nil
	}
}

// IsNumericID reports whether id is a GitLab numeric project ID.
func IsNumericID(id string) bool {
	return numericIDPattern.MatchString(strings.TrimSpace(id))
}

// lastSegment returns the final path segment of a raw or encoded identifier.
func lastSegment(id string) string {
	id = strings.TrimSpace(id)
	if decoded, err := url.PathUnescape(id); err == nil {
		id = decoded
	}
	id = strings.Trim(id, "/")
	if i := strings.LastIndex(id, "/"); i >= 0 {
		return id[i+1:]
	}
	return id
}

func quote(s string) string {
	return `"` + s + `"`
}
