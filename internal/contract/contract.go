// Package contract provides interfaces and shared utilities for internal architecture.
package contract

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/huangsam/gitpulse/schema"
)

// FactStore is the write contract every storage backend implements.
// Inserting an empty slice is a no-op. Re-inserting a record with the same
// natural key must not create a duplicate.
type FactStore interface {
	// Backend returns the backend the store was opened for.
	Backend() schema.Backend

	// --- Writes ---

	InsertRepo(ctx context.Context, repo schema.Repo) error
	InsertGitFileData(ctx context.Context, files []schema.GitFile) error
	InsertGitCommitData(ctx context.Context, commits []schema.GitCommit) error
	InsertGitCommitStats(ctx context.Context, stats []schema.GitCommitStat) error
	InsertBlameData(ctx context.Context, lines []schema.GitBlame) error
	InsertGitPullRequests(ctx context.Context, prs []schema.GitPullRequest) error

	// --- Existence probes used to decide what to backfill ---

	HasAnyGitFiles(ctx context.Context, repoID uuid.UUID) (bool, error)
	// HasAnyGitCommitStats counts per-commit marker rows but not the repository-level one.
	HasAnyGitCommitStats(ctx context.Context, repoID uuid.UUID) (bool, error)
	HasAnyGitBlame(ctx context.Context, repoID uuid.UUID) (bool, error)

	// Status reports row counts and freshness per fact table.
	Status(ctx context.Context) (schema.StoreStatus, error)

	Close() error
}

// FactLoader reads the fact rows the daily metrics job consumes.
// A nil repoID means all repositories.
type FactLoader interface {
	LoadCommitStatRows(ctx context.Context, start, end time.Time, repoID *uuid.UUID) ([]schema.CommitStatRow, error)
	LoadPullRequestRows(ctx context.Context, start, end time.Time, repoID *uuid.UUID) ([]schema.PullRequestRow, error)
}

// MetricsSink persists derived metric records. Writes upsert on the natural key
// of each record, or append versioned rows for append-only backends.
type MetricsSink interface {
	WriteRepoMetrics(ctx context.Context, rows []schema.RepoMetricsDailyRecord) error
	WriteUserMetrics(ctx context.Context, rows []schema.UserMetricsDailyRecord) error
	WriteCommitMetrics(ctx context.Context, rows []schema.CommitMetricsRecord) error
	WriteFileMetrics(ctx context.Context, rows []schema.FileMetricsRecord) error
	WriteWorkItemMetrics(ctx context.Context, rows []schema.WorkItemMetricsDailyRecord) error
	WriteWorkItemUserMetrics(ctx context.Context, rows []schema.WorkItemUserMetricsDailyRecord) error
	WriteWorkItemCycleTimes(ctx context.Context, rows []schema.WorkItemCycleTimeRecord) error
}

// MetricsBackend is a store that can both feed and receive the daily metrics job.
type MetricsBackend interface {
	FactLoader
	MetricsSink
}

// Connector is a read-only client for a remote hosting provider.
// Repositories are addressed by full name ("owner/name", or the full group path on GitLab).
// A max of 0 or less means no limit.
type Connector interface {
	Provider() schema.Provider

	ListOrganizations(ctx context.Context, max int) ([]schema.Organization, error)
	ListRepositories(ctx context.Context, filter schema.RepoFilter, max int) ([]schema.Repository, error)
	ListRepositoriesWithPattern(ctx context.Context, filter schema.RepoFilter, pattern string, max int) ([]schema.Repository, error)
	GetContributors(ctx context.Context, fullName string, max int) ([]schema.Author, error)
	GetCommitStats(ctx context.Context, fullName, sha string) (schema.CommitStats, error)
	GetRepoStats(ctx context.Context, fullName string, maxCommits int) (schema.RepoStats, error)
	ListCommits(ctx context.Context, fullName string, since *time.Time, max int) ([]schema.RemoteCommit, error)
	GetPullRequests(ctx context.Context, fullName, state string, max int) ([]schema.PullRequest, error)
	// WalkPullRequests pages through pull requests, pacing every page through gate.
	WalkPullRequests(ctx context.Context, fullName, state string, max int, gate Gate, fn func([]schema.PullRequest) error) error
	GetFileBlame(ctx context.Context, fullName, path, ref string) (schema.FileBlame, error)
	ListFiles(ctx context.Context, fullName, ref string) ([]string, error)
}

// Gate paces calls that share one rate-limit budget.
type Gate interface {
	Wait(ctx context.Context) error
	Penalize(retryAfter time.Duration) time.Duration
	Reset()
}

// TeamResolver maps an identity to its team. Unknown identities resolve to empty strings.
type TeamResolver interface {
	Resolve(identity string) (teamID, teamName string)
}

// WorkItemSource supplies work items for the work-item metrics.
type WorkItemSource interface {
	WorkItems(ctx context.Context) ([]schema.WorkItem, error)
}
