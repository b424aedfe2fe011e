package gitlab

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/frontmatter"
)

// DefaultTemplatePath is where GitLab looks for the default merge request
// description template, relative to the repository root.
const DefaultTemplatePath = ".gitlab/merge_request_templates/Default.md"

const maxTemplateSize = 64 * 1024

// Template is a merge request description template. The optional front
// matter can preset creation options.
type Template struct {
	TargetBranch       string   `yaml:"target_branch"`
	Squash             *bool    `yaml:"squash"`
	RemoveSourceBranch *bool    `yaml:"remove_source_branch"`
	Labels             []string `yaml:"labels"`

	Body string `yaml:"-"`
	Path string `yaml:"-"`
}

// LoadTemplate reads the default template under repoRoot. A missing file
// returns (nil, nil).
func LoadTemplate(repoRoot string) (*Template, error) {
	if repoRoot == "" {
		return nil, nil
	}
	path := filepath.Join(repoRoot, filepath.FromSlash(DefaultTemplatePath))

	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to stat merge request template: %w", err)
	}
	if info.Size() > maxTemplateSize {
		return nil, fmt.Errorf("merge request template %s exceeds %d bytes", path, maxTemplateSize)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read merge request template: %w", err)
	}

	tpl, err := ParseTemplate(content)
	if err != nil {
		return nil, fmt.Errorf("invalid merge request template %s: %w", path, err)
	}
	tpl.Path = path
	return tpl, nil
}

// ParseTemplate splits optional YAML front matter from the template body.
func ParseTemplate(content []byte) (*Template, error) {
	var tpl Template
	rest, err := frontmatter.Parse(bytes.NewReader(content), &tpl)
	if err != nil {
		return nil, fmt.Errorf("failed to parse front matter: %w", err)
	}
	tpl.Body = strings.TrimSpace(string(rest))
	return &tpl, nil
}

// Apply fills options the caller left unset. Explicit caller values always win.
func (t *Template) Apply(in *CreateInput) {
	if t == nil {
		return
	}
	if strings.TrimSpace(in.Description) == "" {
		in.Description = t.Body
	}
	if strings.TrimSpace(in.TargetBranch) == "" {
		in.TargetBranch = t.TargetBranch
	}
	if len(in.Labels) == 0 {
		in.Labels = t.Labels
	}
	if !in.Squash && t.Squash != nil {
		in.Squash = *t.Squash
	}
	if !in.RemoveSourceBranch && t.RemoveSourceBranch != nil {
		in.RemoveSourceBranch = *t.RemoveSourceBranch
	}
}
