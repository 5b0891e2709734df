package parquet

import (
	"fmt"
	"time"

	"github.com/huangsam/gitpulse/schema"
)

// RepoRow maps to the repos table.
type RepoRow struct {
	ID         string    `parquet:"id,snappy"`
	Repo       string    `parquet:"repo,snappy"`
	Ref        string    `parquet:"ref,snappy"`
	Settings   *string   `parquet:"settings,optional,snappy"` // JSON
	Tags       []string  `parquet:"tags,list"`
	CreatedAt  time.Time `parquet:"created_at,snappy"`
	LastSynced time.Time `parquet:"last_synced,snappy"`
}

// Key returns the repo id.
func (r RepoRow) Key() string { return r.ID }

// Version returns the sync time.
func (r RepoRow) Version() time.Time { return r.LastSynced }

// FileRow maps to the git_files table.
type FileRow struct {
	RepoID     string    `parquet:"repo_id,snappy"`
	Path       string    `parquet:"path,snappy"`
	Executable bool      `parquet:"executable"`
	Contents   *string   `parquet:"contents,optional,snappy"`
	LastSynced time.Time `parquet:"last_synced,snappy"`
}

func (r FileRow) Key() string        { return r.RepoID + ":" + r.Path }
func (r FileRow) Version() time.Time { return r.LastSynced }

// FromGitFile converts a file fact into its columnar row.
func FromGitFile(f schema.GitFile, synced time.Time) FileRow {
	return FileRow{
		RepoID:     f.RepoID.String(),
		Path:       f.Path,
		Executable: f.Executable,
		Contents:   f.Contents,
		LastSynced: synced.UTC(),
	}
}

// CommitRow maps to the git_commits table.
type CommitRow struct {
	RepoID         string    `parquet:"repo_id,snappy"`
	Hash           string    `parquet:"hash,snappy"`
	Message        string    `parquet:"message,snappy"`
	AuthorName     string    `parquet:"author_name,snappy"`
	AuthorEmail    string    `parquet:"author_email,snappy"`
	AuthorWhen     time.Time `parquet:"author_when,snappy"`
	CommitterName  string    `parquet:"committer_name,snappy"`
	CommitterEmail string    `parquet:"committer_email,snappy"`
	CommitterWhen  time.Time `parquet:"committer_when,snappy"`
	Parents        int32     `parquet:"parents"`
	LastSynced     time.Time `parquet:"last_synced,snappy"`
}

func (r CommitRow) Key() string        { return r.RepoID + ":" + r.Hash }
func (r CommitRow) Version() time.Time { return r.LastSynced }

// FromGitCommit converts a commit fact into its columnar row.
func FromGitCommit(c schema.GitCommit, synced time.Time) CommitRow {
	return CommitRow{
		RepoID:         c.RepoID.String(),
		Hash:           c.Hash,
		Message:        c.Message,
		AuthorName:     c.AuthorName,
		AuthorEmail:    c.AuthorEmail,
		AuthorWhen:     c.AuthorWhen.UTC(),
		CommitterName:  c.CommitterName,
		CommitterEmail: c.CommitterEmail,
		CommitterWhen:  c.CommitterWhen.UTC(),
		Parents:        int32(c.Parents),
		LastSynced:     synced.UTC(),
	}
}

// CommitStatRow maps to the git_commit_stats table.
type CommitStatRow struct {
	RepoID      string    `parquet:"repo_id,snappy"`
	CommitHash  string    `parquet:"commit_hash,snappy"`
	FilePath    string    `parquet:"file_path,snappy"`
	Additions   int32     `parquet:"additions"`
	Deletions   int32     `parquet:"deletions"`
	OldFileMode string    `parquet:"old_file_mode,snappy"`
	NewFileMode string    `parquet:"new_file_mode,snappy"`
	LastSynced  time.Time `parquet:"last_synced,snappy"`
}

func (r CommitStatRow) Key() string        { return r.RepoID + ":" + r.CommitHash + ":" + r.FilePath }
func (r CommitStatRow) Version() time.Time { return r.LastSynced }

// FromGitCommitStat converts a commit stat fact into its columnar row.
func FromGitCommitStat(s schema.GitCommitStat, synced time.Time) CommitStatRow {
	return CommitStatRow{
		RepoID:      s.RepoID.String(),
		CommitHash:  s.CommitHash,
		FilePath:    s.FilePath,
		Additions:   int32(s.Additions),
		Deletions:   int32(s.Deletions),
		OldFileMode: s.OldFileMode,
		NewFileMode: s.NewFileMode,
		LastSynced:  synced.UTC(),
	}
}

// BlameRow maps to the git_blame table.
type BlameRow struct {
	RepoID      string    `parquet:"repo_id,snappy"`
	Path        string    `parquet:"path,snappy"`
	LineNo      int32     `parquet:"line_no"`
	AuthorEmail string    `parquet:"author_email,snappy"`
	AuthorName  string    `parquet:"author_name,snappy"`
	AuthorWhen  time.Time `parquet:"author_when,snappy"`
	CommitHash  string    `parquet:"commit_hash,snappy"`
	Line        string    `parquet:"line,snappy"`
	LastSynced  time.Time `parquet:"last_synced,snappy"`
}

func (r BlameRow) Key() string        { return fmt.Sprintf("%s:%s:%d", r.RepoID, r.Path, r.LineNo) }
func (r BlameRow) Version() time.Time { return r.LastSynced }

// FromGitBlame converts a blame line into its columnar row.
func FromGitBlame(b schema.GitBlame, synced time.Time) BlameRow {
	return BlameRow{
		RepoID:      b.RepoID.String(),
		Path:        b.Path,
		LineNo:      int32(b.LineNo),
		AuthorEmail: b.AuthorEmail,
		AuthorName:  b.AuthorName,
		AuthorWhen:  b.AuthorWhen.UTC(),
		CommitHash:  b.CommitHash,
		Line:        b.Line,
		LastSynced:  synced.UTC(),
	}
}

// PullRequestRow maps to the git_pull_requests table.
type PullRequestRow struct {
	RepoID         string     `parquet:"repo_id,snappy"`
	Number         int64      `parquet:"number"`
	Title          string     `parquet:"title,snappy"`
	State          string     `parquet:"state,snappy"`
	AuthorName     string     `parquet:"author_name,snappy"`
	AuthorEmail    string     `parquet:"author_email,snappy"`
	CreatedAt      time.Time  `parquet:"created_at,snappy"`
	MergedAt       *time.Time `parquet:"merged_at,optional,snappy"`
	ClosedAt       *time.Time `parquet:"closed_at,optional,snappy"`
	HeadBranch     string     `parquet:"head_branch,snappy"`
	BaseBranch     string     `parquet:"base_branch,snappy"`
	ReviewCount    int32      `parquet:"review_count"`
	CommentCount   int32      `parquet:"comment_count"`
	FirstReviewAt  *time.Time `parquet:"first_review_at,optional,snappy"`
	FirstCommentAt *time.Time `parquet:"first_comment_at,optional,snappy"`
	LastSynced     time.Time  `parquet:"last_synced,snappy"`
}

func (r PullRequestRow) Key() string        { return fmt.Sprintf("%s:%d", r.RepoID, r.Number) }
func (r PullRequestRow) Version() time.Time { return r.LastSynced }

// FromGitPullRequest converts a pull request fact into its columnar row.
func FromGitPullRequest(p schema.GitPullRequest, synced time.Time) PullRequestRow {
	return PullRequestRow{
		RepoID:         p.RepoID.String(),
		Number:         int64(p.Number),
		Title:          p.Title,
		State:          p.State,
		AuthorName:     p.AuthorName,
		AuthorEmail:    p.AuthorEmail,
		CreatedAt:      p.CreatedAt.UTC(),
		MergedAt:       timePtr(p.MergedAt),
		ClosedAt:       timePtr(p.ClosedAt),
		HeadBranch:     p.HeadBranch,
		BaseBranch:     p.BaseBranch,
		ReviewCount:    int32(p.ReviewCount),
		CommentCount:   int32(p.CommentCount),
		FirstReviewAt:  timePtr(p.FirstReviewAt),
		FirstCommentAt: timePtr(p.FirstCommentAt),
		LastSynced:     synced.UTC(),
	}
}

// ToRow converts the pull request into the slice the daily rollup reads.
func (r PullRequestRow) ToRow() schema.PullRequestRow {
	return schema.PullRequestRow{
		RepoID:      ParseID(r.RepoID),
		Number:      int(r.Number),
		AuthorEmail: r.AuthorEmail,
		AuthorName:  r.AuthorName,
		CreatedAt:   r.CreatedAt.UTC(),
		MergedAt:    timePtr(r.MergedAt),
	}
}
