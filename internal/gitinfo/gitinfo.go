// Package gitinfo inspects a local working copy: the checked-out branch, the
// branch list, and the remote URLs that identify the GitLab project.
//
// Every query takes the directory explicitly and opens it with go-git, so the
// process working directory is never changed and concurrent inspections of
// different checkouts are safe.
package gitinfo

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"slices"
	"sort"
	"strings"

	"github.com/go-git/go-git/v6"
	"github.com/go-git/go-git/v6/plumbing"
)

const defaultRemote = "origin"

// BranchInfo describes the branch state of a working copy. A directory that
// is not inside a repository yields IsGitRepository=false and empty fields.
type BranchInfo struct {
	CurrentBranch   string   `json:"currentBranch"`
	AllBranches     []string `json:"allBranches"`
	IsGitRepository bool     `json:"isGitRepository"`
	RepositoryRoot  string   `json:"repositoryRoot"`
}

// Remote is one configured remote and its first URL.
type Remote struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// RemoteInfo is the project identity derived from a named remote. When the
// remote is missing or unparseable, IsGitLabProject is false and Remotes still
// lists everything that is configured.
type RemoteInfo struct {
	Remotes         []Remote `json:"remotes"`
	RemoteName      string   `json:"remoteName"`
	RemoteURL       string   `json:"remoteUrl,omitempty"`
	ProjectID       string   `json:"projectId,omitempty"`
	ProjectPath     string   `json:"projectPath,omitempty"`
	GitLabURL       string   `json:"gitlabUrl,omitempty"`
	Host            string   `json:"host,omitempty"`
	IsGitLabProject bool     `json:"isGitlabProject"`
	IsGitRepository bool     `json:"isGitRepository"`
}

// RemoteURL is a parsed remote: the host that serves it and the full
// namespace path of the project (nested groups included, no .git suffix).
type RemoteURL struct {
	Scheme string
	Host   string
	Path   string
}

// WebURL is the browser base URL of the instance hosting the remote.
func (r RemoteURL) WebURL() string {
	scheme := r.Scheme
	if scheme != "http" {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}

var scpLikePattern = regexp.MustCompile(`^(?:[^@/]+@)?([^:/]+):(.+)$`)

// ParseRemoteURL understands scp-like SSH (git@host:group/project.git),
// ssh://, http:// and https:// remote forms.
func ParseRemoteURL(raw string) (RemoteURL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return RemoteURL{}, errors.New("remote URL is empty")
	}

	if !strings.Contains(raw, "://") {
		matches := scpLikePattern.FindStringSubmatch(raw)
		if matches == nil {
			return RemoteURL{}, fmt.Errorf("unsupported remote URL format: %s", raw)
		}
		path, err := cleanProjectPath(matches[2])
		if err != nil {
			return RemoteURL{}, err
		}
		return RemoteURL{Scheme: "ssh", Host: strings.ToLower(matches[1]), Path: path}, nil
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return RemoteURL{}, fmt.Errorf("invalid remote URL: %w", err)
	}
	if parsed.Host == "" {
		return RemoteURL{}, fmt.Errorf("remote URL missing host: %s", raw)
	}

	host := strings.ToLower(parsed.Host)
	switch parsed.Scheme {
	case "http", "https":
	case "ssh", "git":
		// The port on an ssh:// URL belongs to sshd, not the web instance.
		host = strings.ToLower(parsed.Hostname())
	default:
		return RemoteURL{}, fmt.Errorf("unsupported remote URL scheme %q", parsed.Scheme)
	}

	path, err := cleanProjectPath(parsed.Path)
	if err != nil {
		return RemoteURL{}, err
	}

	return RemoteURL{Scheme: parsed.Scheme, Host: host, Path: path}, nil
}

func cleanProjectPath(p string) (string, error) {
	p = strings.Trim(p, "/")
	p = strings.TrimSuffix(p, ".git")
	p = strings.TrimSuffix(p, "/")

	segments := strings.Split(p, "/")
	if len(segments) < 2 || slices.Contains(segments, "") {
		return "", fmt.Errorf("remote path should contain namespace/project: %q", p)
	}
	return p, nil
}

func open(dir string) (*git.Repository, error) {
	if dir == "" {
		dir = "."
	}
	return git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
}

// CurrentBranchInfo reports the branch state of the repository containing dir.
func CurrentBranchInfo(dir string) BranchInfo {
	info := BranchInfo{AllBranches: []string{}}

	repo, err := open(dir)
	if err != nil {
		return info
	}
	info.IsGitRepository = true

	if wt, err := repo.Worktree(); err == nil {
		info.RepositoryRoot = wt.Filesystem.Root()
	}

	info.CurrentBranch = currentBranch(repo)
	info.AllBranches = listBranches(repo)

	return info
}

// currentBranch handles the unborn case (fresh repository, no commits) where
// HEAD points at a branch that has no reference yet.
func currentBranch(repo *git.Repository) string {
	head, err := repo.Reference(plumbing.HEAD, false)
	if err != nil {
		return ""
	}
	if head.Type() == plumbing.SymbolicReference && head.Target().IsBranch() {
		return head.Target().Short()
	}
	return ""
}

func listBranches(repo *git.Repository) []string {
	var local, remote []string

	refs, err := repo.References()
	if err != nil {
		return []string{}
	}
	_ = refs.ForEach(func(ref *plumbing.Reference) error {
		name := ref.Name()
		switch {
		case name.IsBranch():
			local = append(local, name.Short())
		case name.IsRemote():
			short := strings.TrimPrefix(name.String(), "refs/remotes/")
			if short == "HEAD" || strings.HasSuffix(short, "/HEAD") {
				return nil
			}
			if rest, ok := strings.CutPrefix(short, defaultRemote+"/"); ok {
				short = rest
			}
			remote = append(remote, short)
		}
		return nil
	})

	sort.Strings(local)
	sort.Strings(remote)

	seen := make(map[string]bool, len(local)+len(remote))
	branches := make([]string, 0, len(local)+len(remote))
	for _, b := range append(local, remote...) {
		if !seen[b] {
			seen[b] = true
			branches = append(branches, b)
		}
	}
	return branches
}

// ListRemotes returns every configured remote, sorted by name.
func ListRemotes(dir string) ([]Remote, error) {
	repo, err := open(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot open git repository: %w", err)
	}
	return remotesOf(repo)
}

func remotesOf(repo *git.Repository) ([]Remote, error) {
	remotes, err := repo.Remotes()
	if err != nil {
		return nil, fmt.Errorf("cannot list remotes: %w", err)
	}

	out := make([]Remote, 0, len(remotes))
	for _, r := range remotes {
		cfg := r.Config()
		if cfg == nil {
			continue
		}
		entry := Remote{Name: cfg.Name}
		if len(cfg.URLs) > 0 {
			entry.URL = cfg.URLs[0]
		}
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// GetRemoteInfo parses the named remote (origin when empty) of the repository
// containing dir.
func GetRemoteInfo(dir, remoteName string) RemoteInfo {
	if remoteName == "" {
		remoteName = defaultRemote
	}
	info := RemoteInfo{Remotes: []Remote{}, RemoteName: remoteName}

	repo, err := open(dir)
	if err != nil {
		return info
	}
	info.IsGitRepository = true

	remotes, err := remotesOf(repo)
	if err != nil {
		return info
	}
	info.Remotes = remotes

	idx := slices.IndexFunc(remotes, func(r Remote) bool { return r.Name == remoteName })
	if idx < 0 {
		return info
	}
	info.RemoteURL = remotes[idx].URL

	parsed, err := ParseRemoteURL(info.RemoteURL)
	if err != nil {
		return info
	}

	info.ProjectID = parsed.Path
	info.ProjectPath = parsed.Path
	info.Host = parsed.Host
	info.GitLabURL = parsed.WebURL()
	info.IsGitLabProject = true
	return info
}
