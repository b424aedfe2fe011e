package analyzer

import (
	"fmt"
	"strings"

	"github.com/lininn/gitlab-review-mcp/pkg/fileops"
)

// AnalyzeFile reads path (bounded by fileops.MaxSourceFileSize) and analyzes
// it. An empty language is detected from the file extension.
func AnalyzeFile(path, language string) (*Report, error) {
	data, err := fileops.ReadFileLimited(path, fileops.MaxSourceFileSize)
	if err != nil {
		return nil, fmt.Errorf("cannot analyze %s: %w", path, err)
	}
	return Analyze(string(data), Options{Language: language, FileName: path}), nil
}

var severityIcons = map[Severity]string{
	SeverityError:   "🔴",
	SeverityWarning: "🟡",
	SeverityInfo:    "🔵",
}

// Markdown renders the report for humans. The output is also what the CLI
// feeds to glamour.
func (r *Report) Markdown() string {
	var b strings.Builder

	title := "Code analysis"
	if r.FileName != "" {
		title += ": `" + r.FileName + "`"
	}
	fmt.Fprintf(&b, "# %s\n\n", title)
	fmt.Fprintf(&b, "**Language:** %s  \n", r.Language)
	fmt.Fprintf(&b, "**Score:** %d/100  \n", r.Summary.Score)
	fmt.Fprintf(&b, "**Issues:** %d (%d errors, %d warnings, %d info)\n\n",
		r.Summary.TotalIssues, r.Summary.Errors, r.Summary.Warnings, r.Summary.Info)

	if len(r.Issues) == 0 {
		b.WriteString("No issues found.\n")
		return b.String()
	}

	b.WriteString("| Line | Severity | Rule | Message | Suggestion |\n")
	b.WriteString("|-----:|----------|------|---------|------------|\n")
	for _, issue := range r.Issues {
		fmt.Fprintf(&b, "| %d | %s %s | `%s` | %s | %s |\n",
			issue.Line,
			severityIcons[issue.Severity], issue.Severity,
			issue.Rule,
			escapeCell(issue.Message),
			escapeCell(issue.Suggestion))
	}
	return b.String()
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
