package schema

import (
	"time"

	"github.com/google/uuid"
)

// Repo is the root fact record. Every other fact refers to it by ID.
type Repo struct {
	ID        uuid.UUID      `json:"id"`
	Repo      string         `json:"repo"` // local path or remote full name
	Ref       string         `json:"ref,omitempty"`
	Settings  map[string]any `json:"settings,omitempty"`
	Tags      []string       `json:"tags,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// GitFile is a tracked file at HEAD, optionally with a content snapshot.
type GitFile struct {
	RepoID     uuid.UUID `json:"repo_id"`
	Path       string    `json:"path"`
	Executable bool      `json:"executable"`
	Contents   *string   `json:"contents,omitempty"`
	LastSynced time.Time `json:"last_synced"`
}

// GitCommit is one commit reachable from the synced ref.
type GitCommit struct {
	RepoID         uuid.UUID `json:"repo_id"`
	Hash           string    `json:"hash"`
	Message        string    `json:"message"`
	AuthorName     string    `json:"author_name"`
	AuthorEmail    string    `json:"author_email"`
	AuthorWhen     time.Time `json:"author_when"`
	CommitterName  string    `json:"committer_name"`
	CommitterEmail string    `json:"committer_email"`
	CommitterWhen  time.Time `json:"committer_when"`
	Parents        int       `json:"parents"`
	LastSynced     time.Time `json:"last_synced"`
}

// GitCommitStat holds the line delta of one file in one commit.
type GitCommitStat struct {
	RepoID      uuid.UUID `json:"repo_id"`
	CommitHash  string    `json:"commit_hash"`
	FilePath    string    `json:"file_path"`
	Additions   int       `json:"additions"`
	Deletions   int       `json:"deletions"`
	OldFileMode string    `json:"old_file_mode"`
	NewFileMode string    `json:"new_file_mode"`
	LastSynced  time.Time `json:"last_synced"`
}

// GitBlame attributes one line of a file to the commit that last touched it.
type GitBlame struct {
	RepoID      uuid.UUID `json:"repo_id"`
	Path        string    `json:"path"`
	LineNo      int       `json:"line_no"`
	AuthorEmail string    `json:"author_email"`
	AuthorName  string    `json:"author_name"`
	AuthorWhen  time.Time `json:"author_when"`
	CommitHash  string    `json:"commit_hash"`
	Line        string    `json:"line"`
	LastSynced  time.Time `json:"last_synced"`
}

// GitPullRequest is a pull request or merge request attached to a repo.
type GitPullRequest struct {
	RepoID         uuid.UUID  `json:"repo_id"`
	Number         int        `json:"number"`
	Title          string     `json:"title"`
	State          string     `json:"state"`
	AuthorName     string     `json:"author_name"`
	AuthorEmail    string     `json:"author_email"`
	CreatedAt      time.Time  `json:"created_at"`
	MergedAt       *time.Time `json:"merged_at,omitempty"`
	ClosedAt       *time.Time `json:"closed_at,omitempty"`
	HeadBranch     string     `json:"head_branch"`
	BaseBranch     string     `json:"base_branch"`
	ReviewCount    int        `json:"review_count"`
	CommentCount   int        `json:"comment_count"`
	FirstReviewAt  *time.Time `json:"first_review_at,omitempty"`
	FirstCommentAt *time.Time `json:"first_comment_at,omitempty"`
	LastSynced     time.Time  `json:"last_synced"`
}

// IsAggregateMarker reports whether the stat row is a synthetic totals row.
func (s GitCommitStat) IsAggregateMarker() bool {
	return s.FilePath == AggregateStatsMarker
}
