package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/huangsam/gitpulse/schema"
	"go.uber.org/zap"
)

const commitStatRowsQuery = `
SELECT c.repo_id AS repo_id,
       c.hash AS commit_hash,
       c.author_email AS author_email,
       c.author_name AS author_name,
       c.committer_when AS committer_when,
       COALESCE(s.file_path, '') AS file_path,
       COALESCE(s.additions, 0) AS additions,
       COALESCE(s.deletions, 0) AS deletions
FROM git_commits c
LEFT JOIN git_commit_stats s ON s.repo_id = c.repo_id AND s.commit_hash = c.hash
WHERE c.committer_when >= ? AND c.committer_when < ?`

const pullRequestRowsQuery = `
SELECT repo_id, number, author_email, author_name, created_at, merged_at
FROM git_pull_requests
WHERE ((created_at >= ? AND created_at < ?) OR (merged_at >= ? AND merged_at < ?))`

type commitStatScan struct {
	RepoID        uuid.UUID      `db:"repo_id"`
	CommitHash    string         `db:"commit_hash"`
	AuthorEmail   sql.NullString `db:"author_email"`
	AuthorName    sql.NullString `db:"author_name"`
	CommitterWhen dbTime         `db:"committer_when"`
	FilePath      string         `db:"file_path"`
	Additions     int            `db:"additions"`
	Deletions     int            `db:"deletions"`
}

type pullRequestScan struct {
	RepoID      uuid.UUID      `db:"repo_id"`
	Number      int            `db:"number"`
	AuthorEmail sql.NullString `db:"author_email"`
	AuthorName  sql.NullString `db:"author_name"`
	CreatedAt   dbTime         `db:"created_at"`
	MergedAt    dbTime         `db:"merged_at"`
}

// LoadCommitStatRows returns every commit whose committer time falls in [start, end),
// joined with its per-file stats. Commits without stats yield one row with an empty path.
func (s *SQLStore) LoadCommitStatRows(ctx context.Context, start, end time.Time, repoID *uuid.UUID) ([]schema.CommitStatRow, error) {
	query := commitStatRowsQuery
	args := []any{s.dialect.timestamp(start), s.dialect.timestamp(end)}
	if repoID != nil {
		query += " AND c.repo_id = ?"
		args = append(args, *repoID)
	}
	query += " ORDER BY c.repo_id, c.hash, file_path"

	var scanned []commitStatScan
	if err := s.db.SelectContext(ctx, &scanned, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to load commit stat rows: %w", err)
	}
	rows := make([]schema.CommitStatRow, 0, len(scanned))
	for _, r := range scanned {
		rows = append(rows, schema.CommitStatRow{
			RepoID:        r.RepoID,
			CommitHash:    r.CommitHash,
			AuthorEmail:   r.AuthorEmail.String,
			AuthorName:    r.AuthorName.String,
			CommitterWhen: r.CommitterWhen.Time,
			FilePath:      r.FilePath,
			Additions:     r.Additions,
			Deletions:     r.Deletions,
		})
	}
	s.log.Debug("Loaded commit stat rows", zap.Int("rows", len(rows)))
	return rows, nil
}

// LoadPullRequestRows returns pull requests created or merged in [start, end).
func (s *SQLStore) LoadPullRequestRows(ctx context.Context, start, end time.Time, repoID *uuid.UUID) ([]schema.PullRequestRow, error) {
	from, to := s.dialect.timestamp(start), s.dialect.timestamp(end)
	query := pullRequestRowsQuery
	args := []any{from, to, from, to}
	if repoID != nil {
		query += " AND repo_id = ?"
		args = append(args, *repoID)
	}
	query += " ORDER BY repo_id, number"

	var scanned []pullRequestScan
	if err := s.db.SelectContext(ctx, &scanned, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to load pull request rows: %w", err)
	}
	rows := make([]schema.PullRequestRow, 0, len(scanned))
	for _, r := range scanned {
		rows = append(rows, schema.PullRequestRow{
			RepoID:      r.RepoID,
			Number:      r.Number,
			AuthorEmail: r.AuthorEmail.String,
			AuthorName:  r.AuthorName.String,
			CreatedAt:   r.CreatedAt.Time,
			MergedAt:    r.MergedAt.ptr(),
		})
	}
	return rows, nil
}

// WriteRepoMetrics upserts repo rollups keyed by (repo_id, day).
func (s *SQLStore) WriteRepoMetrics(ctx context.Context, rows []schema.RepoMetricsDailyRecord) error {
	cols := []string{
		"repo_id", "day", "commits_count", "total_loc_touched", "avg_commit_size_loc",
		"large_commit_ratio", "prs_merged", "median_pr_cycle_hours", "computed_at",
	}
	return s.upsertRows(ctx, repoMetricsTable, cols, []string{"repo_id", "day"}, len(rows), func(i int) []any {
		r := rows[i]
		return []any{
			r.RepoID, s.dialect.day(r.Day), r.CommitsCount, r.TotalLOCTouched, r.AvgCommitSizeLOC,
			r.LargeCommitRatio, r.PRsMerged, r.MedianPRCycleHours, s.dialect.timestamp(s.synced(r.ComputedAt)),
		}
	})
}

// WriteUserMetrics upserts identity rollups keyed by (repo_id, day, author_email).
func (s *SQLStore) WriteUserMetrics(ctx context.Context, rows []schema.UserMetricsDailyRecord) error {
	cols := []string{
		"repo_id", "day", "author_email", "commits_count", "loc_added", "loc_deleted", "files_changed",
		"large_commits_count", "avg_commit_size_loc", "prs_authored", "prs_merged", "avg_pr_cycle_hours",
		"median_pr_cycle_hours", "computed_at",
	}
	return s.upsertRows(ctx, userMetricsTable, cols, []string{"repo_id", "day", "author_email"}, len(rows), func(i int) []any {
		r := rows[i]
		return []any{
			r.RepoID, s.dialect.day(r.Day), r.AuthorEmail, r.CommitsCount, r.LOCAdded, r.LOCDeleted, r.FilesChanged,
			r.LargeCommitsCount, r.AvgCommitSizeLOC, r.PRsAuthored, r.PRsMerged, r.AvgPRCycleHours,
			r.MedianPRCycleHours, s.dialect.timestamp(s.synced(r.ComputedAt)),
		}
	})
}

// WriteCommitMetrics upserts per-commit records keyed by (repo_id, day, commit_hash).
func (s *SQLStore) WriteCommitMetrics(ctx context.Context, rows []schema.CommitMetricsRecord) error {
	cols := []string{
		"repo_id", "day", "commit_hash", "author_email", "total_loc", "files_changed", "size_bucket", "computed_at",
	}
	return s.upsertRows(ctx, commitMetricsTable, cols, []string{"repo_id", "day", "commit_hash"}, len(rows), func(i int) []any {
		r := rows[i]
		return []any{
			r.RepoID, s.dialect.day(r.Day), r.CommitHash, r.AuthorEmail, r.TotalLOC, r.FilesChanged,
			string(r.SizeBucket), s.dialect.timestamp(s.synced(r.ComputedAt)),
		}
	})
}

// WriteFileMetrics upserts hotspot snapshots keyed by (repo_id, day, path).
func (s *SQLStore) WriteFileMetrics(ctx context.Context, rows []schema.FileMetricsRecord) error {
	cols := []string{
		"repo_id", "day", "path", "churn", "contributors", "commits_count", "hotspot_score", "computed_at",
	}
	return s.upsertRows(ctx, fileMetricsTable, cols, []string{"repo_id", "day", "path"}, len(rows), func(i int) []any {
		r := rows[i]
		return []any{
			r.RepoID, s.dialect.day(r.Day), r.Path, r.Churn, r.Contributors, r.CommitsCount,
			r.HotspotScore, s.dialect.timestamp(s.synced(r.ComputedAt)),
		}
	})
}

// WriteWorkItemMetrics upserts team flow records keyed by (day, provider, work_scope_id, team_id).
func (s *SQLStore) WriteWorkItemMetrics(ctx context.Context, rows []schema.WorkItemMetricsDailyRecord) error {
	cols := []string{
		"day", "provider", "work_scope_id", "team_id", "team_name", "items_started", "items_completed",
		"items_started_unassigned", "items_completed_unassigned", "wip_count_end_of_day",
		"wip_unassigned_end_of_day", "cycle_time_p50_hours", "cycle_time_p90_hours", "lead_time_p50_hours",
		"lead_time_p90_hours", "wip_age_p50_hours", "wip_age_p90_hours", "bug_completed_ratio",
		"story_points_completed", "computed_at",
	}
	keys := []string{"day", "provider", "work_scope_id", "team_id"}
	return s.upsertRows(ctx, workItemMetricsTable, cols, keys, len(rows), func(i int) []any {
		r := rows[i]
		return []any{
			s.dialect.day(r.Day), r.Provider, r.WorkScopeID, r.TeamID, r.TeamName, r.ItemsStarted, r.ItemsCompleted,
			r.ItemsStartedUnassigned, r.ItemsCompletedUnassigned, r.WIPCountEndOfDay,
			r.WIPUnassignedEndOfDay, r.CycleTimeP50Hours, r.CycleTimeP90Hours, r.LeadTimeP50Hours,
			r.LeadTimeP90Hours, r.WIPAgeP50Hours, r.WIPAgeP90Hours, r.BugCompletedRatio,
			r.StoryPointsCompleted, s.dialect.timestamp(s.synced(r.ComputedAt)),
		}
	})
}

// WriteWorkItemUserMetrics upserts assignee flow records.
func (s *SQLStore) WriteWorkItemUserMetrics(ctx context.Context, rows []schema.WorkItemUserMetricsDailyRecord) error {
	cols := []string{
		"day", "provider", "work_scope_id", "user_identity", "team_id", "team_name", "items_started",
		"items_completed", "wip_count_end_of_day", "cycle_time_p50_hours", "cycle_time_p90_hours", "computed_at",
	}
	keys := []string{"day", "provider", "work_scope_id", "user_identity", "team_id"}
	return s.upsertRows(ctx, workItemUserMetricsTable, cols, keys, len(rows), func(i int) []any {
		r := rows[i]
		return []any{
			s.dialect.day(r.Day), r.Provider, r.WorkScopeID, r.UserIdentity, r.TeamID, r.TeamName, r.ItemsStarted,
			r.ItemsCompleted, r.WIPCountEndOfDay, r.CycleTimeP50Hours, r.CycleTimeP90Hours,
			s.dialect.timestamp(s.synced(r.ComputedAt)),
		}
	})
}

// WriteWorkItemCycleTimes upserts one record per completed work item, keyed by (provider, work_item_id).
func (s *SQLStore) WriteWorkItemCycleTimes(ctx context.Context, rows []schema.WorkItemCycleTimeRecord) error {
	cols := []string{
		"provider", "work_item_id", "day", "work_scope_id", "team_id", "team_name", "assignee", "type",
		"status", "created_at", "started_at", "completed_at", "cycle_time_hours", "lead_time_hours", "computed_at",
	}
	return s.upsertRows(ctx, workItemCycleTimesTable, cols, []string{"provider", "work_item_id"}, len(rows), func(i int) []any {
		r := rows[i]
		return []any{
			r.Provider, r.WorkItemID, s.dialect.day(r.Day), r.WorkScopeID, r.TeamID, r.TeamName, r.Assignee, r.Type,
			r.Status, s.dialect.timestamp(r.CreatedAt), s.dialect.timestampPtr(r.StartedAt),
			s.dialect.timestamp(r.CompletedAt), r.CycleTimeHours, r.LeadTimeHours,
			s.dialect.timestamp(s.synced(r.ComputedAt)),
		}
	})
}
