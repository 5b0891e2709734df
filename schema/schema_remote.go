package schema

import (
	"time"
)

// RepoFilter narrows a repository listing to one organization, one user or a search query.
// When every field is empty, the authenticated user's repositories are listed.
type RepoFilter struct {
	Org    string `json:"org,omitempty"`
	User   string `json:"user,omitempty"`
	Search string `json:"search,omitempty"`
}

// Organization is a remote organization or group.
type Organization struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	URL         string `json:"url,omitempty"`
}

// Repository is a remote repository as reported by a provider.
type Repository struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	FullName      string    `json:"full_name"`
	DefaultBranch string    `json:"default_branch"`
	Description   string    `json:"description,omitempty"`
	URL           string    `json:"url"`
	Language      string    `json:"language,omitempty"`
	Stars         int       `json:"stars"`
	Forks         int       `json:"forks"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Author is a contributor to a remote repository.
type Author struct {
	ID            int64  `json:"id"`
	Username      string `json:"username"`
	Email         string `json:"email,omitempty"`
	Name          string `json:"name,omitempty"`
	URL           string `json:"url,omitempty"`
	Contributions int    `json:"contributions"`
}

// FileChange is the per-file delta reported for a remote commit.
type FileChange struct {
	Path      string `json:"path"`
	Additions int    `json:"additions"`
	Deletions int    `json:"deletions"`
	Status    string `json:"status,omitempty"`
}

// CommitStats is the delta of a single remote commit.
type CommitStats struct {
	SHA       string       `json:"sha"`
	Additions int          `json:"additions"`
	Deletions int          `json:"deletions"`
	Files     []FileChange `json:"files,omitempty"`
}

// RepoStats summarises recent history of a remote repository.
type RepoStats struct {
	TotalCommits    int       `json:"total_commits"`
	Additions       int       `json:"additions"`
	Deletions       int       `json:"deletions"`
	CommitsPerWeek  float64   `json:"commits_per_week"`
	Authors         []Author  `json:"authors,omitempty"`
	FirstCommitDate time.Time `json:"first_commit_date,omitzero"`
	LastCommitDate  time.Time `json:"last_commit_date,omitzero"`
}

// RemoteCommit is a commit listed from a provider.
type RemoteCommit struct {
	SHA            string    `json:"sha"`
	Message        string    `json:"message"`
	AuthorName     string    `json:"author_name"`
	AuthorEmail    string    `json:"author_email"`
	AuthorWhen     time.Time `json:"author_when"`
	CommitterName  string    `json:"committer_name"`
	CommitterEmail string    `json:"committer_email"`
	CommitterWhen  time.Time `json:"committer_when"`
	Parents        int       `json:"parents"`
}

// PullRequest is a pull request or merge request listed from a provider.
type PullRequest struct {
	Number         int        `json:"number"`
	Title          string     `json:"title"`
	State          string     `json:"state"`
	AuthorLogin    string     `json:"author_login"`
	AuthorName     string     `json:"author_name,omitempty"`
	AuthorEmail    string     `json:"author_email,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	MergedAt       *time.Time `json:"merged_at,omitempty"`
	ClosedAt       *time.Time `json:"closed_at,omitempty"`
	HeadBranch     string     `json:"head_branch"`
	BaseBranch     string     `json:"base_branch"`
	CommentCount   int        `json:"comment_count"`
	ReviewCount    int        `json:"review_count"`
	FirstReviewAt  *time.Time `json:"first_review_at,omitempty"`
	FirstCommentAt *time.Time `json:"first_comment_at,omitempty"`
}

// BlameRange attributes a contiguous span of lines to one commit.
type BlameRange struct {
	StartingLine int    `json:"starting_line"`
	EndingLine   int    `json:"ending_line"`
	CommitSHA    string `json:"commit_sha"`
	Author       string `json:"author"`
	AuthorEmail  string `json:"author_email"`
	AgeSeconds   int64  `json:"age_seconds"`
}

// FileBlame is the blame of one file at one ref.
type FileBlame struct {
	Path   string       `json:"path"`
	Ref    string       `json:"ref"`
	Ranges []BlameRange `json:"ranges"`
}

// BatchResult is the outcome of processing one repository during a batch sync.
// When Success is false, Error is set and Stats may be nil.
type BatchResult struct {
	Repository   Repository      `json:"repository"`
	Stats        *RepoStats      `json:"stats,omitempty"`
	Commits      []RemoteCommit  `json:"-"`
	PullRequests []PullRequest   `json:"-"`
	Success      bool            `json:"success"`
	Error        string          `json:"error,omitempty"`
	Stored       bool            `json:"stored"`
	Backfill     *BackfillResult `json:"backfill,omitempty"`
}

// BackfillResult records which fact families were filled in after the main write.
type BackfillResult struct {
	Files        int `json:"files"`
	CommitStats  int `json:"commit_stats"`
	BlameLines   int `json:"blame_lines"`
	FailedCommit int `json:"failed_commits"`
	FailedBlame  int `json:"failed_blame"`
}

// BatchSummary is the end-of-run report of a batch sync.
type BatchSummary struct {
	Provider   Provider      `json:"provider"`
	Pattern    string        `json:"pattern,omitempty"`
	Total      int           `json:"total"`
	Successful int           `json:"successful"`
	Failed     int           `json:"failed"`
	Stored     int           `json:"stored"`
	Duration   time.Duration `json:"duration_ns"`
	Results    []BatchResult `json:"results"`
}
