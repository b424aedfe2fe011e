// Package analyzer runs a regex-driven quality pass over source text. Each
// rule looks at one line at a time, plus one whole-file pass for imports that
// are never referenced.
package analyzer

import (
	"fmt"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
)

// Severity of an Issue.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

const (
	defaultMaxLineLength = 120
	pythonMaxLineLength  = 79
	maxNestingLevel      = 4
)

// Issue is one finding.
type Issue struct {
	Line       int      `json:"line"`
	Rule       string   `json:"rule"`
	Severity   Severity `json:"severity"`
	Message    string   `json:"message"`
	Suggestion string   `json:"suggestion,omitempty"`
	Snippet    string   `json:"snippet,omitempty"`
}

// Summary aggregates a report.
type Summary struct {
	TotalIssues int `json:"totalIssues"`
	Errors      int `json:"errors"`
	Warnings    int `json:"warnings"`
	Info        int `json:"info"`
	Lines       int `json:"lines"`
	Score       int `json:"score"`
}

// Report is the result of Analyze.
type Report struct {
	FileName string  `json:"fileName,omitempty"`
	Language string  `json:"language"`
	Issues   []Issue `json:"issues"`
	Summary  Summary `json:"summary"`
}

// Options tunes a single analysis. Language wins over detection from FileName.
type Options struct {
	Language string
	FileName string
}

// lineRule matches a single line. An empty languages list applies everywhere.
type lineRule struct {
	id         string
	severity   Severity
	languages  []string
	pattern    *regexp.Regexp
	message    string
	suggestion string
}

func (r lineRule) appliesTo(lang string) bool {
	return len(r.languages) == 0 || slices.Contains(r.languages, lang)
}

var lineRules = []lineRule{
	{
		id:         "todo-comment",
		severity:   SeverityInfo,
		pattern:    regexp.MustCompile(`(?:#|//|/\*|--)\s*(TODO|FIXME|XXX|HACK)\b`),
		message:    "Unresolved TODO/FIXME marker",
		suggestion: "Resolve the marker or track it in an issue",
	},
	{
		id:         "debug-print",
		severity:   SeverityWarning,
		languages:  []string{"python"},
		pattern:    regexp.MustCompile(`^\s*print\(`),
		message:    "print() call left in code",
		suggestion: "Use the logging module instead of print()",
	},
	{
		id:         "debug-print",
		severity:   SeverityWarning,
		languages:  []string{"javascript", "typescript"},
		pattern:    regexp.MustCompile(`\bconsole\.(log|debug)\(`),
		message:    "console.log call left in code",
		suggestion: "Remove debug output or use a proper logger",
	},
	{
		id:         "debug-print",
		severity:   SeverityWarning,
		languages:  []string{"go"},
		pattern:    regexp.MustCompile(`\bfmt\.Print(ln|f)?\(`),
		message:    "fmt.Print call left in code",
		suggestion: "Use a structured logger instead of printing to stdout",
	},
	{
		id:         "bare-except",
		severity:   SeverityWarning,
		languages:  []string{"python"},
		pattern:    regexp.MustCompile(`^\s*except\s*:`),
		message:    "Bare except clause swallows every exception",
		suggestion: "Catch specific exception types",
	},
	{
		id:         "loose-equality",
		severity:   SeverityInfo,
		languages:  []string{"javascript", "typescript"},
		pattern:    regexp.MustCompile(`[^=!]==[^=]|!=[^=]`),
		message:    "Loose equality comparison",
		suggestion: "Use === or !== to avoid type coercion",
	},
	{
		id:         "hardcoded-secret",
		severity:   SeverityError,
		pattern:    regexp.MustCompile(`(?i)\b(password|passwd|secret|api_?key|access_?token|private_?token)\b\s*[:=]\s*["'][^"']{4,}["']`),
		message:    "Possible hard-coded credential",
		suggestion: "Load secrets from the environment or a secret store",
	},
	{
		id:         "trailing-whitespace",
		severity:   SeverityInfo,
		pattern:    regexp.MustCompile(`\S[ \t]+$|^[ \t]+$`),
		message:    "Trailing whitespace",
		suggestion: "Strip trailing whitespace (configure your editor to do it on save)",
	},
}

var extensionLanguages = map[string]string{
	".py":   "python",
	".js":   "javascript",
	".jsx":  "javascript",
	".mjs":  "javascript",
	".cjs":  "javascript",
	".ts":   "typescript",
	".tsx":  "typescript",
	".go":   "go",
	".java": "java",
	".rb":   "ruby",
	".rs":   "rust",
	".c":    "c",
	".h":    "c",
	".cpp":  "cpp",
	".cc":   "cpp",
	".hpp":  "cpp",
	".cs":   "csharp",
	".php":  "php",
	".sh":   "shell",
	".kt":   "kotlin",
	".sql":  "sql",
}

// DetectLanguage maps a file name to a language by extension.
func DetectLanguage(fileName string) string {
	if lang, ok := extensionLanguages[strings.ToLower(filepath.Ext(fileName))]; ok {
		return lang
	}
	return "unknown"
}

// Analyze runs every applicable rule over code.
func Analyze(code string, opts Options) *Report {
	lang := strings.ToLower(strings.TrimSpace(opts.Language))
	if lang == "" {
		lang = DetectLanguage(opts.FileName)
	}
	lang = canonicalLanguage(lang)

	code = strings.ReplaceAll(code, "\r\n", "\n")
	lines := strings.Split(code, "\n")
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}

	report := &Report{
		FileName: opts.FileName,
		Language: lang,
		Issues:   []Issue{},
	}

	maxLen := defaultMaxLineLength
	if lang == "python" {
		maxLen = pythonMaxLineLength
	}

	for i, line := range lines {
		lineNo := i + 1

		for _, rule := range lineRules {
			if rule.appliesTo(lang) && rule.pattern.MatchString(line) {
				report.add(Issue{
					Line:       lineNo,
					Rule:       rule.id,
					Severity:   rule.severity,
					Message:    rule.message,
					Suggestion: rule.suggestion,
					Snippet:    snippet(line),
				})
			}
		}

		if n := len([]rune(line)); n > maxLen {
			report.add(Issue{
				Line:       lineNo,
				Rule:       "line-too-long",
				Severity:   SeverityWarning,
				Message:    fmt.Sprintf("Line is %d characters long (limit %d)", n, maxLen),
				Suggestion: "Split the line or extract a variable",
				Snippet:    snippet(line),
			})
		}

		if level := nestingLevel(line, lang); level >= maxNestingLevel {
			report.add(Issue{
				Line:       lineNo,
				Rule:       "deep-nesting",
				Severity:   SeverityWarning,
				Message:    fmt.Sprintf("Code is nested %d levels deep", level),
				Suggestion: "Use early returns or extract a function to flatten the logic",
				Snippet:    snippet(line),
			})
		}
	}

	for _, issue := range unusedImports(lines, lang) {
		report.add(issue)
	}

	slices.SortStableFunc(report.Issues, func(a, b Issue) int { return a.Line - b.Line })
	report.Summary.Lines = len(lines)
	report.Summary.Score = score(report.Summary)
	return report
}

func (r *Report) add(issue Issue) {
	r.Issues = append(r.Issues, issue)
	r.Summary.TotalIssues++
	switch issue.Severity {
	case SeverityError:
		r.Summary.Errors++
	case SeverityWarning:
		r.Summary.Warnings++
	default:
		r.Summary.Info++
	}
}

func score(s Summary) int {
	return max(0, 100-10*s.Errors-5*s.Warnings-s.Info)
}

func canonicalLanguage(lang string) string {
	switch lang {
	case "py", "python3":
		return "python"
	case "js", "node":
		return "javascript"
	case "ts":
		return "typescript"
	case "golang":
		return "go"
	}
	return lang
}

// nestingLevel counts indentation units on a non-blank line. Tabs count as
// one unit; spaces are grouped by 2 for JavaScript/TypeScript and 4 elsewhere.
func nestingLevel(line, lang string) int {
	if strings.TrimSpace(line) == "" {
		return 0
	}
	unit := 4
	if lang == "javascript" || lang == "typescript" {
		unit = 2
	}

	tabs, spaces := 0, 0
	for _, r := range line {
		switch r {
		case '\t':
			tabs++
		case ' ':
			spaces++
		default:
			return tabs + spaces/unit
		}
	}
	return tabs + spaces/unit
}

var (
	pyImportPattern     = regexp.MustCompile(`^\s*import\s+([\w.]+)(?:\s+as\s+(\w+))?\s*$`)
	pyFromImportPattern = regexp.MustCompile(`^\s*from\s+[\w.]+\s+import\s+(\w+)(?:\s+as\s+(\w+))?\s*$`)
	jsImportPattern     = regexp.MustCompile(`^\s*import\s+(\w+)\s+from\s+['"]`)
	jsRequirePattern    = regexp.MustCompile(`^\s*(?:const|let|var)\s+(\w+)\s*=\s*require\(`)
)

// unusedImports flags single-name imports whose binding never appears again.
func unusedImports(lines []string, lang string) []Issue {
	type binding struct {
		name string
		line int
	}

	var bindings []binding
	for i, line := range lines {
		var m []string
		switch lang {
		case "python":
			if m = pyImportPattern.FindStringSubmatch(line); m == nil {
				m = pyFromImportPattern.FindStringSubmatch(line)
			}
		case "javascript", "typescript":
			if m = jsImportPattern.FindStringSubmatch(line); m == nil {
				m = jsRequirePattern.FindStringSubmatch(line)
			}
		default:
			return nil
		}
		if m == nil {
			continue
		}

		name := m[1]
		if len(m) > 2 && m[2] != "" {
			name = m[2]
		}
		// "import os.path" binds "os"
		name, _, _ = strings.Cut(name, ".")
		bindings = append(bindings, binding{name: name, line: i + 1})
	}

	var issues []Issue
	for _, b := range bindings {
		ref := regexp.MustCompile(`\b` + regexp.QuoteMeta(b.name) + `\b`)
		used := false
		for i, line := range lines {
			if i+1 == b.line {
				continue
			}
			if ref.MatchString(stripComment(line, lang)) {
				used = true
				break
			}
		}
		if !used {
			issues = append(issues, Issue{
				Line:       b.line,
				Rule:       "unused-import",
				Severity:   SeverityWarning,
				Message:    fmt.Sprintf("Import %q is never used", b.name),
				Suggestion: "Remove the unused import",
				Snippet:    snippet(lines[b.line-1]),
			})
		}
	}
	return issues
}

func stripComment(line, lang string) string {
	marker := "//"
	if lang == "python" {
		marker = "#"
	}
	if i := strings.Index(line, marker); i >= 0 {
		return line[:i]
	}
	return line
}

func snippet(line string) string {
	line = strings.TrimSpace(line)
	if r := []rune(line); len(r) > 80 {
		return string(r[:77]) + "..."
	}
	return line
}
