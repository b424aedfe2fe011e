package gitlab

// Source is the provenance of a candidate project identity.
type Source string

const (
	SourceInput     Source = "input"
	SourceGitRemote Source = "git_remote"
	SourceSearch    Source = "search"
)

// FailureReason explains why no candidate verified.
type FailureReason string

const (
	ReasonInvalidFormat FailureReason = "invalid_format"
	ReasonNotFound      FailureReason = "not_found"
	ReasonNotDetected   FailureReason = "not_detected"
)

// Candidate is one hypothesis about which project the caller means. It is
// built by a single producer and verified at most once.
type Candidate struct {
	RawProjectID        string            `json:"rawProjectId"`
	NormalizedProjectID string            `json:"normalizedProjectId"`
	Source              Source            `json:"source"`
	Metadata            map[string]string `json:"metadata,omitempty"`
}

// ProjectData is the subset of GET projects/:id the resolver keeps.
type ProjectData struct {
	ID                int64  `json:"id"`
	Name              string `json:"name"`
	Path              string `json:"path,omitempty"`
	PathWithNamespace string `json:"path_with_namespace"`
	WebURL            string `json:"web_url"`
	Visibility        string `json:"visibility,omitempty"`
	DefaultBranch     string `json:"default_branch,omitempty"`
}

// AttemptRecord is the outcome of sending one candidate to the API.
type AttemptRecord struct {
	Candidate    Candidate    `json:"candidate"`
	Success      bool         `json:"success"`
	Status       int          `json:"status,omitempty"`
	ErrorMessage string       `json:"errorMessage,omitempty"`
	ProjectData  *ProjectData `json:"projectData,omitempty"`
}

// ResolutionResult is the final outcome of one resolution run. Attempts lists
// every candidate that reached the API, in the order they were tried.
type ResolutionResult struct {
	Success             bool            `json:"success"`
	RawProjectID        string          `json:"rawProjectId,omitempty"`
	NormalizedProjectID string          `json:"normalizedProjectId,omitempty"`
	Source              Source          `json:"source,omitempty"`
	ProjectData         *ProjectData    `json:"projectData,omitempty"`
	Reason              FailureReason   `json:"reason,omitempty"`
	Attempts            []AttemptRecord `json:"attempts"`
	ProvidedProjectID   string          `json:"providedProjectId"`
	MergeRequestIID     int             `json:"mergeRequestIid,omitempty"`
	Diagnostics         []string        `json:"diagnostics,omitempty"`
}

// Provenance is the resolution summary attached to successful MR operations.
type Provenance struct {
	RawProjectID        string       `json:"rawProjectId"`
	NormalizedProjectID string       `json:"normalizedProjectId"`
	Source              Source       `json:"source"`
	Project             *ProjectData `json:"project,omitempty"`
	AttemptCount        int          `json:"attemptCount"`
}

func (r *ResolutionResult) provenance() Provenance {
	return Provenance{
		RawProjectID:        r.RawProjectID,
		NormalizedProjectID: r.NormalizedProjectID,
		Source:              r.Source,
		Project:             r.ProjectData,
		AttemptCount:        len(r.Attempts),
	}
}

// User is a GitLab user reference as embedded in merge request payloads.
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
	WebURL   string `json:"web_url,omitempty"`
}

// Milestone as embedded in merge request payloads.
type Milestone struct {
	ID    int64  `json:"id"`
	IID   int64  `json:"iid"`
	Title string `json:"title"`
	State string `json:"state,omitempty"`
}

// apiMergeRequest mirrors the fields of GET projects/:id/merge_requests/:iid
// that are re-exposed.
type apiMergeRequest struct {
	ID                  int64      `json:"id"`
	IID                 int64      `json:"iid"`
	ProjectID           int64      `json:"project_id"`
	Title               string     `json:"title"`
	Description         string     `json:"description"`
	State               string     `json:"state"`
	Draft               bool       `json:"draft"`
	SourceBranch        string     `json:"source_branch"`
	TargetBranch        string     `json:"target_branch"`
	Author              *User      `json:"author"`
	Assignees           []User     `json:"assignees"`
	Reviewers           []User     `json:"reviewers"`
	Labels              []string   `json:"labels"`
	Milestone           *Milestone `json:"milestone"`
	WebURL              string     `json:"web_url"`
	CreatedAt           string     `json:"created_at"`
	UpdatedAt           string     `json:"updated_at"`
	MergedAt            string     `json:"merged_at"`
	ClosedAt            string     `json:"closed_at"`
	UserNotesCount      int        `json:"user_notes_count"`
	ChangesCount        string     `json:"changes_count"`
	Upvotes             int        `json:"upvotes"`
	Downvotes           int        `json:"downvotes"`
	DetailedMergeStatus string     `json:"detailed_merge_status"`
	HasConflicts        bool       `json:"has_conflicts"`
	SHA                 string     `json:"sha"`
}

// Approvals is the curated GET projects/:id/merge_requests/:iid/approvals.
type Approvals struct {
	Approved          bool   `json:"approved"`
	ApprovalsRequired int    `json:"approvalsRequired"`
	ApprovalsLeft     int    `json:"approvalsLeft"`
	ApprovedBy        []User `json:"approvedBy"`
}

type apiApprovals struct {
	Approved          bool `json:"approved"`
	ApprovalsRequired int  `json:"approvals_required"`
	ApprovalsLeft     int  `json:"approvals_left"`
	ApprovedBy        []struct {
		User User `json:"user"`
	} `json:"approved_by"`
}

// MergeRequest is the curated view returned by every merge request tool.
type MergeRequest struct {
	ID                  int64      `json:"id"`
	IID                 int64      `json:"iid"`
	ProjectID           int64      `json:"projectId,omitempty"`
	Title               string     `json:"title"`
	Description         string     `json:"description"`
	State               string     `json:"state"`
	Draft               bool       `json:"draft"`
	SourceBranch        string     `json:"sourceBranch"`
	TargetBranch        string     `json:"targetBranch"`
	Author              *User      `json:"author,omitempty"`
	WebURL              string     `json:"webUrl"`
	CreatedAt           string     `json:"createdAt,omitempty"`
	UpdatedAt           string     `json:"updatedAt,omitempty"`
	MergedAt            string     `json:"mergedAt,omitempty"`
	ClosedAt            string     `json:"closedAt,omitempty"`
	UserNotesCount      int        `json:"userNotesCount"`
	ChangesCount        string     `json:"changesCount,omitempty"`
	Upvotes             int        `json:"upvotes"`
	Downvotes           int        `json:"downvotes"`
	DetailedMergeStatus string     `json:"detailedMergeStatus,omitempty"`
	HasConflicts        bool       `json:"hasConflicts"`
	SHA                 string     `json:"sha,omitempty"`
	Approvals           *Approvals `json:"approvals,omitempty"`
	Reviewers           []User     `json:"reviewers"`
	Assignees           []User     `json:"assignees"`
	Labels              []string   `json:"labels"`
	Milestone           *Milestone `json:"milestone,omitempty"`
}

func (m apiMergeRequest) curated() MergeRequest {
	return MergeRequest{
		ID:                  m.ID,
		IID:                 m.IID,
		ProjectID:           m.ProjectID,
		Title:               m.Title,
		Description:         m.Description,
		State:               m.State,
		Draft:               m.Draft,
		SourceBranch:        m.SourceBranch,
		TargetBranch:        m.TargetBranch,
		Author:              m.Author,
		WebURL:              m.WebURL,
		CreatedAt:           m.CreatedAt,
		UpdatedAt:           m.UpdatedAt,
		MergedAt:            m.MergedAt,
		ClosedAt:            m.ClosedAt,
		UserNotesCount:      m.UserNotesCount,
		ChangesCount:        m.ChangesCount,
		Upvotes:             m.Upvotes,
		Downvotes:           m.Downvotes,
		DetailedMergeStatus: m.DetailedMergeStatus,
		HasConflicts:        m.HasConflicts,
		SHA:                 m.SHA,
		Reviewers:           nonNilUsers(m.Reviewers),
		Assignees:           nonNilUsers(m.Assignees),
		Labels:              nonNilStrings(m.Labels),
		Milestone:           m.Milestone,
	}
}

func (a apiApprovals) curated() *Approvals {
	out := &Approvals{
		Approved:          a.Approved,
		ApprovalsRequired: a.ApprovalsRequired,
		ApprovalsLeft:     a.ApprovalsLeft,
		ApprovedBy:        make([]User, 0, len(a.ApprovedBy)),
	}
	for _, entry := range a.ApprovedBy {
		out.ApprovedBy = append(out.ApprovedBy, entry.User)
	}
	return out
}

// FileChange is one file of GET projects/:id/merge_requests/:iid/changes.
type FileChange struct {
	OldPath       string `json:"oldPath"`
	NewPath       string `json:"newPath"`
	NewFile       bool   `json:"newFile"`
	RenamedFile   bool   `json:"renamedFile"`
	DeletedFile   bool   `json:"deletedFile"`
	Diff          string `json:"diff"`
	DiffTruncated bool   `json:"diffTruncated,omitempty"`
}

type apiChanges struct {
	Changes []struct {
		OldPath     string `json:"old_path"`
		NewPath     string `json:"new_path"`
		NewFile     bool   `json:"new_file"`
		RenamedFile bool   `json:"renamed_file"`
		DeletedFile bool   `json:"deleted_file"`
		Diff        string `json:"diff"`
	} `json:"changes"`
	Overflow bool `json:"overflow"`
}

// Note is a created merge request comment.
type Note struct {
	ID        int64  `json:"id"`
	Body      string `json:"body"`
	Author    *User  `json:"author,omitempty"`
	CreatedAt string `json:"createdAt,omitempty"`
	System    bool   `json:"system"`
}

type apiNote struct {
	ID        int64  `json:"id"`
	Body      string `json:"body"`
	Author    *User  `json:"author"`
	CreatedAt string `json:"created_at"`
	System    bool   `json:"system"`
}

func nonNilUsers(u []User) []User {
	if u == nil {
		return []User{}
	}
	return u
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
