package gitlab

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseProjectReference(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		want   ProjectReference
		wantOK bool
	}{
		{
			name:   "merge request URL",
			input:  "https://gitlab.com/group/project/-/merge_requests/42",
			want:   ProjectReference{Host: "gitlab.com", ProjectPath: "group/project", MergeRequestIID: 42},
			wantOK: true,
		},
		{
			name:   "legacy merge request URL with diffs tab",
			input:  "https://gitlab.example.com/a/b/c/merge_requests/7/diffs",
			want:   ProjectReference{Host: "gitlab.example.com", ProjectPath: "a/b/c", MergeRequestIID: 7},
			wantOK: true,
		},
		{
			name:   "project URL",
			input:  "https://gitlab.com/group/project",
			want:   ProjectReference{Host: "gitlab.com", ProjectPath: "group/project"},
			wantOK: true,
		},
		{
			name:   "project page under /-/",
			input:  "https://gitlab.com/group/project/-/tree/main",
			want:   ProjectReference{Host: "gitlab.com", ProjectPath: "group/project"},
			wantOK: true,
		},
		{
			name:   "clone URL",
			input:  "https://gitlab.com/group/project.git",
			want:   ProjectReference{Host: "gitlab.com", ProjectPath: "group/project"},
			wantOK: true,
		},
		{
			name:   "ssh remote",
			input:  "git@GitLab.com:group/sub/project.git",
			want:   ProjectReference{Host: "gitlab.com", ProjectPath: "group/sub/project"},
			wantOK: true,
		},
		{name: "plain path", input: "group/project"},
		{name: "numeric id", input: "123"},
		{name: "empty", input: "  "},
		{name: "host only", input: "https://gitlab.com/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseProjectReference(tt.input)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}
