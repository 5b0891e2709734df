package batch

import (
	"time"

	"github.com/google/uuid"
	"github.com/huangsam/gitpulse/schema"
)

// unknownMode fills file modes that providers do not report.
const unknownMode = "unknown"

func toGitCommits(repoID uuid.UUID, commits []schema.RemoteCommit, synced time.Time) []schema.GitCommit {
	out := make([]schema.GitCommit, 0, len(commits))
	for _, c := range commits {
		out = append(out, schema.GitCommit{
			RepoID:         repoID,
			Hash:           c.SHA,
			Message:        c.Message,
			AuthorName:     c.AuthorName,
			AuthorEmail:    c.AuthorEmail,
			AuthorWhen:     c.AuthorWhen.UTC(),
			CommitterName:  c.CommitterName,
			CommitterEmail: c.CommitterEmail,
			CommitterWhen:  c.CommitterWhen.UTC(),
			Parents:        c.Parents,
			LastSynced:     synced,
		})
	}
	return out
}

func toGitPullRequests(repoID uuid.UUID, prs []schema.PullRequest, synced time.Time) []schema.GitPullRequest {
	out := make([]schema.GitPullRequest, 0, len(prs))
	for _, pr := range prs {
		name := pr.AuthorName
		if name == "" {
			name = pr.AuthorLogin
		}
		out = append(out, schema.GitPullRequest{
			RepoID:         repoID,
			Number:         pr.Number,
			Title:          pr.Title,
			State:          pr.State,
			AuthorName:     name,
			AuthorEmail:    pr.AuthorEmail,
			CreatedAt:      pr.CreatedAt.UTC(),
			MergedAt:       utcPtr(pr.MergedAt),
			ClosedAt:       utcPtr(pr.ClosedAt),
			HeadBranch:     pr.HeadBranch,
			BaseBranch:     pr.BaseBranch,
			ReviewCount:    pr.ReviewCount,
			CommentCount:   pr.CommentCount,
			FirstReviewAt:  utcPtr(pr.FirstReviewAt),
			FirstCommentAt: utcPtr(pr.FirstCommentAt),
			LastSynced:     synced,
		})
	}
	return out
}

// aggregateStat is the marker row carrying totals without a per-file breakdown.
func aggregateStat(repoID uuid.UUID, hash string, additions, deletions int, synced time.Time) schema.GitCommitStat {
	return schema.GitCommitStat{
		RepoID:      repoID,
		CommitHash:  hash,
		FilePath:    schema.AggregateStatsMarker,
		Additions:   additions,
		Deletions:   deletions,
		OldFileMode: unknownMode,
		NewFileMode: unknownMode,
		LastSynced:  synced,
	}
}

// blameLines expands contiguous ranges into one row per line. Ages are relative
// to fetchedAt; ranges without an age keep a zero author time.
func blameLines(repoID uuid.UUID, blame schema.FileBlame, fetchedAt, synced time.Time) []schema.GitBlame {
	var out []schema.GitBlame
	for _, rng := range blame.Ranges {
		var when time.Time
		if rng.AgeSeconds > 0 {
			when = fetchedAt.Add(-time.Duration(rng.AgeSeconds) * time.Second).UTC()
		}
		for line := rng.StartingLine; line <= rng.EndingLine; line++ {
			out = append(out, schema.GitBlame{
				RepoID:      repoID,
				Path:        blame.Path,
				LineNo:      line,
				AuthorEmail: rng.AuthorEmail,
				AuthorName:  rng.Author,
				AuthorWhen:  when,
				CommitHash:  rng.CommitSHA,
				LastSynced:  synced,
			})
		}
	}
	return out
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
