package gitlab

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// GenerateTitle derives a merge request title from a source branch name.
//
// bugfix/ and hotfix/ become "fix: ", docs/ and refactor/ keep their type,
// and the remainder is left verbatim. Everything else (including branches
// with feature/ or feat/ stripped) has dashes and underscores turned into
// spaces, each word capitalised, and a "feat: " prefix.
func GenerateTitle(sourceBranch string) string {
	branch := strings.TrimSpace(sourceBranch)

	for _, rule := range []struct{ prefix, kind string }{
		{"bugfix/", "fix"},
		{"hotfix/", "fix"},
		{"docs/", "docs"},
		{"refactor/", "refactor"},
	} {
		if rest, ok := strings.CutPrefix(branch, rule.prefix); ok {
			return rule.kind + ": " + rest
		}
	}

	if rest, ok := strings.CutPrefix(branch, "feature/"); ok {
		branch = rest
	} else if rest, ok := strings.CutPrefix(branch, "feat/"); ok {
		branch = rest
	}

	words := strings.Fields(strings.NewReplacer("-", " ", "_", " ").Replace(branch))
	for i, w := range words {
		words[i] = capitalize(w)
	}
	return "feat: " + strings.Join(words, " ")
}

func capitalize(word string) string {
	r, size := utf8.DecodeRuneInString(word)
	if r == utf8.RuneError {
		return word
	}
	return string(unicode.ToUpper(r)) + word[size:]
}
