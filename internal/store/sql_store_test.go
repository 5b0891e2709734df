package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/huangsam/gitpulse/schema"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var (
	testRepoID  = uuid.MustParse("7c9e6679-7425-40de-944b-e07fc1f90ae7")
	otherRepoID = uuid.MustParse("1b4e28ba-2fa1-11d2-883f-0016d3cca427")
	testDay     = time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
)

// newMemoryStore opens a migrated in-memory SQLite store.
func newMemoryStore(t *testing.T) *SQLStore {
	t.Helper()
	s, err := OpenSQL(context.Background(), schema.SQLiteBackend, "sqlite://:memory:", zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// setupMockStore wraps a sqlmock connection in a store for the given dialect.
func setupMockStore(t *testing.T, backend schema.Backend) (*SQLStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	s := newSQLStore(sqlx.NewDb(db, "sqlmock"), backend, nil)
	t.Cleanup(func() { _ = s.Close() })
	return s, mock
}

func sampleCommits() []schema.GitCommit {
	return []schema.GitCommit{
		{
			RepoID: testRepoID, Hash: "aaa111", Message: "feat: add api",
			AuthorName: "Alice", AuthorEmail: "alice@example.com", AuthorWhen: testDay.Add(9 * time.Hour),
			CommitterName: "Alice", CommitterEmail: "alice@example.com", CommitterWhen: testDay.Add(9 * time.Hour),
			Parents: 1,
		},
		{
			RepoID: testRepoID, Hash: "bbb222", Message: "docs",
			AuthorName: "Bob", AuthorEmail: "bob@example.com", AuthorWhen: testDay.Add(23 * time.Hour),
			CommitterName: "Bob", CommitterEmail: "bob@example.com", CommitterWhen: testDay.Add(23 * time.Hour),
			Parents: 1,
		},
		{
			RepoID: testRepoID, Hash: "ccc333", Message: "next day",
			AuthorName: "Alice", AuthorEmail: "alice@example.com", AuthorWhen: testDay.Add(25 * time.Hour),
			CommitterName: "Alice", CommitterEmail: "alice@example.com", CommitterWhen: testDay.Add(25 * time.Hour),
			Parents: 1,
		},
		{
			RepoID: otherRepoID, Hash: "ddd444", Message: "other repo",
			AuthorName: "Carol", AuthorEmail: "carol@example.com", AuthorWhen: testDay.Add(12 * time.Hour),
			CommitterName: "Carol", CommitterEmail: "carol@example.com", CommitterWhen: testDay.Add(12 * time.Hour),
			Parents: 2,
		},
	}
}

func sampleStats() []schema.GitCommitStat {
	return []schema.GitCommitStat{
		{RepoID: testRepoID, CommitHash: "aaa111", FilePath: "api/server.go", Additions: 120, Deletions: 10},
		{RepoID: testRepoID, CommitHash: "aaa111", FilePath: "api/handler.go", Additions: 40, Deletions: 0},
		{RepoID: testRepoID, CommitHash: "ccc333", FilePath: "README.md", Additions: 1, Deletions: 1},
		{RepoID: otherRepoID, CommitHash: "ddd444", FilePath: "main.go", Additions: 5, Deletions: 5},
	}
}

func TestSQLStore_InsertRepoRefreshesExisting(t *testing.T) {
	ctx := context.Background()
	s := newMemoryStore(t)
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.InsertRepo(ctx, schema.Repo{ID: testRepoID, Repo: "acme/api", Tags: []string{"a"}, CreatedAt: created}))
	require.NoError(t, s.InsertRepo(ctx, schema.Repo{ID: testRepoID, Repo: "acme/api", Tags: []string{"a", "b"}}))

	var row struct {
		N    int    `db:"n"`
		Tags string `db:"tags"`
	}
	require.NoError(t, s.db.Get(&row, "SELECT COUNT(*) AS n, MAX(tags) AS tags FROM repos"))
	assert.Equal(t, 1, row.N)
	assert.JSONEq(t, `["a","b"]`, row.Tags)

	var createdAt dbTime
	require.NoError(t, s.db.Get(&createdAt, "SELECT created_at FROM repos"))
	assert.True(t, created.Equal(createdAt.Time))
}

func TestSQLStore_InsertsAreIdempotent(t *testing.T) {
	ctx := context.Background()
	s := newMemoryStore(t)

	for range 2 {
		require.NoError(t, s.InsertGitCommitData(ctx, sampleCommits()))
		require.NoError(t, s.InsertGitCommitStats(ctx, sampleStats()))
	}
	require.NoError(t, s.InsertGitCommitData(ctx, nil))

	status, err := s.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, schema.TransactionalFamily, status.Family)

	counts := map[string]int64{}
	for _, table := range status.Tables {
		counts[table.Name] = table.Rows
	}
	assert.Equal(t, int64(4), counts[gitCommitsTable])
	assert.Equal(t, int64(4), counts[gitCommitStatTable])
	assert.Equal(t, int64(0), counts[gitBlameTable])
}

func TestSQLStore_ExistenceProbes(t *testing.T) {
	ctx := context.Background()
	s := newMemoryStore(t)

	marker := schema.GitCommitStat{
		RepoID: testRepoID, CommitHash: schema.AggregateStatsMarker, FilePath: schema.AggregateStatsMarker,
		Additions: 10, Deletions: 2,
	}
	require.NoError(t, s.InsertGitCommitStats(ctx, []schema.GitCommitStat{marker}))

	hasStats, err := s.HasAnyGitCommitStats(ctx, testRepoID)
	require.NoError(t, err)
	assert.False(t, hasStats, "the repository marker does not count as commit stats")

	commitMarker := schema.GitCommitStat{RepoID: testRepoID, CommitHash: "abc123", FilePath: schema.AggregateStatsMarker}
	require.NoError(t, s.InsertGitCommitStats(ctx, []schema.GitCommitStat{commitMarker}))
	hasStats, err = s.HasAnyGitCommitStats(ctx, testRepoID)
	require.NoError(t, err)
	assert.True(t, hasStats, "a per-commit marker means the commit was backfilled")

	other := schema.GitCommitStat{RepoID: otherRepoID, CommitHash: "def456", FilePath: "main.go"}
	require.NoError(t, s.InsertGitCommitStats(ctx, []schema.GitCommitStat{other}))
	hasStats, err = s.HasAnyGitCommitStats(ctx, uuid.New())
	require.NoError(t, err)
	assert.False(t, hasStats)

	contents := "package main"
	require.NoError(t, s.InsertGitFileData(ctx, []schema.GitFile{{RepoID: testRepoID, Path: "main.go", Contents: &contents}}))
	hasFiles, err := s.HasAnyGitFiles(ctx, testRepoID)
	require.NoError(t, err)
	assert.True(t, hasFiles)

	hasFiles, err = s.HasAnyGitFiles(ctx, otherRepoID)
	require.NoError(t, err)
	assert.False(t, hasFiles)

	require.NoError(t, s.InsertBlameData(ctx, []schema.GitBlame{{
		RepoID: testRepoID, Path: "main.go", LineNo: 1, AuthorEmail: "alice@example.com", CommitHash: "aaa111", Line: "package main",
	}}))
	hasBlame, err := s.HasAnyGitBlame(ctx, testRepoID)
	require.NoError(t, err)
	assert.True(t, hasBlame)
}

func TestSQLStore_LoadCommitStatRows(t *testing.T) {
	ctx := context.Background()
	s := newMemoryStore(t)
	require.NoError(t, s.InsertGitCommitData(ctx, sampleCommits()))
	require.NoError(t, s.InsertGitCommitStats(ctx, sampleStats()))

	start, end := schema.DayWindow(testDay)

	t.Run("all repos", func(t *testing.T) {
		rows, err := s.LoadCommitStatRows(ctx, start, end, nil)
		require.NoError(t, err)
		// aaa111 has two files, bbb222 has none, ddd444 has one; ccc333 is outside the window
		require.Len(t, rows, 4)

		byHash := map[string][]schema.CommitStatRow{}
		for _, r := range rows {
			byHash[r.CommitHash] = append(byHash[r.CommitHash], r)
		}
		require.Len(t, byHash["aaa111"], 2)
		assert.Equal(t, "api/handler.go", byHash["aaa111"][0].FilePath)
		assert.Equal(t, "api/server.go", byHash["aaa111"][1].FilePath)
		assert.Equal(t, 120, byHash["aaa111"][1].Additions)
		assert.True(t, testDay.Add(9*time.Hour).Equal(byHash["aaa111"][0].CommitterWhen))

		require.Len(t, byHash["bbb222"], 1)
		assert.Empty(t, byHash["bbb222"][0].FilePath)
		assert.Equal(t, "bob@example.com", byHash["bbb222"][0].AuthorEmail)
		assert.NotContains(t, byHash, "ccc333")
	})

	t.Run("single repo", func(t *testing.T) {
		rows, err := s.LoadCommitStatRows(ctx, start, end, &otherRepoID)
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, otherRepoID, rows[0].RepoID)
		assert.Equal(t, "main.go", rows[0].FilePath)
	})
}

func TestSQLStore_LoadPullRequestRows(t *testing.T) {
	ctx := context.Background()
	s := newMemoryStore(t)

	mergedInWindow := testDay.Add(10 * time.Hour)
	mergedLater := testDay.Add(50 * time.Hour)
	prs := []schema.GitPullRequest{
		{RepoID: testRepoID, Number: 1, State: "merged", AuthorEmail: "alice@example.com", CreatedAt: testDay.Add(-72 * time.Hour), MergedAt: &mergedInWindow},
		{RepoID: testRepoID, Number: 2, State: "open", AuthorEmail: "bob@example.com", CreatedAt: testDay.Add(2 * time.Hour)},
		{RepoID: testRepoID, Number: 3, State: "merged", AuthorEmail: "bob@example.com", CreatedAt: testDay.Add(-48 * time.Hour), MergedAt: &mergedLater},
	}
	require.NoError(t, s.InsertGitPullRequests(ctx, prs))

	start, end := schema.DayWindow(testDay)
	rows, err := s.LoadPullRequestRows(ctx, start, end, nil)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, 1, rows[0].Number)
	require.NotNil(t, rows[0].MergedAt)
	assert.True(t, mergedInWindow.Equal(*rows[0].MergedAt))
	assert.Equal(t, 2, rows[1].Number)
	assert.Nil(t, rows[1].MergedAt)
}

func TestSQLStore_WriteMetricsUpserts(t *testing.T) {
	ctx := context.Background()
	s := newMemoryStore(t)

	first := schema.RepoMetricsDailyRecord{RepoID: testRepoID, Day: testDay, CommitsCount: 1, TotalLOCTouched: 10}
	second := first
	second.CommitsCount = 3
	require.NoError(t, s.WriteRepoMetrics(ctx, []schema.RepoMetricsDailyRecord{first}))
	require.NoError(t, s.WriteRepoMetrics(ctx, []schema.RepoMetricsDailyRecord{second}))

	var commits []int
	require.NoError(t, s.db.Select(&commits, "SELECT commits_count FROM repo_metrics_daily"))
	assert.Equal(t, []int{3}, commits)

	p50 := 12.5
	require.NoError(t, s.WriteWorkItemMetrics(ctx, []schema.WorkItemMetricsDailyRecord{
		{Day: testDay, Provider: "jira", WorkScopeID: "PLAT", TeamID: "core", TeamName: "Core", CycleTimeP50Hours: &p50},
		{Day: testDay, Provider: "jira", WorkScopeID: "PLAT", TeamID: "", TeamName: ""},
	}))
	var nullCycles int
	require.NoError(t, s.db.Get(&nullCycles, "SELECT COUNT(*) FROM work_item_metrics_daily WHERE cycle_time_p50_hours IS NULL"))
	assert.Equal(t, 1, nullCycles)

	require.NoError(t, s.WriteUserMetrics(ctx, []schema.UserMetricsDailyRecord{{RepoID: testRepoID, Day: testDay, AuthorEmail: "alice@example.com"}}))
	require.NoError(t, s.WriteCommitMetrics(ctx, []schema.CommitMetricsRecord{{RepoID: testRepoID, Day: testDay, CommitHash: "aaa111", SizeBucket: schema.SmallCommit}}))
	require.NoError(t, s.WriteFileMetrics(ctx, []schema.FileMetricsRecord{{RepoID: testRepoID, Day: testDay, Path: "api/server.go", HotspotScore: 1.5}}))
	require.NoError(t, s.WriteWorkItemUserMetrics(ctx, []schema.WorkItemUserMetricsDailyRecord{{Day: testDay, Provider: "jira", WorkScopeID: "PLAT", UserIdentity: "alice@example.com"}}))
	require.NoError(t, s.WriteWorkItemCycleTimes(ctx, []schema.WorkItemCycleTimeRecord{{
		Provider: "jira", WorkItemID: "PLAT-1", Day: testDay, CreatedAt: testDay.Add(-time.Hour), CompletedAt: testDay.Add(time.Hour), LeadTimeHours: 2,
	}}))

	var day string
	require.NoError(t, s.db.Get(&day, "SELECT day FROM file_metrics_daily"))
	assert.Equal(t, "2024-03-15", day)
}

func TestSQLStore_ExistsWithMock(t *testing.T) {
	tests := []struct {
		name      string
		mockSetup func(sqlmock.Sqlmock)
		expected  bool
		expectErr bool
	}{
		{
			name: "row found",
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("SELECT 1 FROM git_files").
					WillReturnRows(sqlmock.NewRows([]string{"one"}).AddRow(1))
			},
			expected: true,
		},
		{
			name: "no rows",
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("SELECT 1 FROM git_files").WillReturnError(sql.ErrNoRows)
			},
			expected: false,
		},
		{
			name: "query failure",
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("SELECT 1 FROM git_files").WillReturnError(errors.New("connection reset"))
			},
			expectErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, mock := setupMockStore(t, schema.PostgresBackend)
			tt.mockSetup(mock)

			found, err := s.HasAnyGitFiles(context.Background(), testRepoID)
			if tt.expectErr {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.expected, found)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestSQLStore_UpsertRowsWithMock(t *testing.T) {
	rows := []schema.FileMetricsRecord{
		{RepoID: testRepoID, Day: testDay, Path: "a.go", Churn: 10, ComputedAt: testDay},
		{RepoID: testRepoID, Day: testDay, Path: "b.go", Churn: 5, ComputedAt: testDay},
	}

	t.Run("commits on success", func(t *testing.T) {
		s, mock := setupMockStore(t, schema.PostgresBackend)
		mock.ExpectBegin()
		prep := mock.ExpectPrepare(`INSERT INTO file_metrics_daily .* ON CONFLICT \(repo_id, day, path\) DO UPDATE SET`)
		prep.ExpectExec().WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "a.go", 10, 0, 0, 0.0, sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))
		prep.ExpectExec().WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "b.go", 5, 0, 0, 0.0, sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		require.NoError(t, s.WriteFileMetrics(context.Background(), rows))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back on failure", func(t *testing.T) {
		s, mock := setupMockStore(t, schema.PostgresBackend)
		mock.ExpectBegin()
		prep := mock.ExpectPrepare("INSERT INTO file_metrics_daily")
		prep.ExpectExec().WillReturnError(errors.New("deadlock detected"))
		mock.ExpectRollback()

		err := s.WriteFileMetrics(context.Background(), rows)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "file_metrics_daily")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("empty input does nothing", func(t *testing.T) {
		s, mock := setupMockStore(t, schema.PostgresBackend)
		require.NoError(t, s.WriteFileMetrics(context.Background(), nil))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
