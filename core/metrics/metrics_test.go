package metrics

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/huangsam/gitpulse/internal/store"
	"github.com/huangsam/gitpulse/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var (
	testDay    = time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)
	computedAt = time.Date(2024, 5, 11, 3, 0, 0, 0, time.UTC)
	repoA      = uuid.MustParse("11111111-1111-1111-1111-111111111111")
	repoB      = uuid.MustParse("22222222-2222-2222-2222-222222222222")
)

func at(h int) time.Time { return testDay.Add(time.Duration(h) * time.Hour) }

func tp(t time.Time) *time.Time { return &t }

func statRow(repo uuid.UUID, hash, email, path string, when time.Time, add, del int) schema.CommitStatRow {
	return schema.CommitStatRow{
		RepoID:        repo,
		CommitHash:    hash,
		AuthorEmail:   email,
		CommitterWhen: when,
		FilePath:      path,
		Additions:     add,
		Deletions:     del,
	}
}

func TestComputeDailyMetricsRollup(t *testing.T) {
	stats := []schema.CommitStatRow{
		statRow(repoA, "c1", "alice@example.com", "a.go", at(9), 30, 5),
		statRow(repoA, "c1", "alice@example.com", "b.go", at(9), 10, 5),
		statRow(repoA, "c2", "alice@example.com", "a.go", at(11), 5, 5),
	}
	prs := []schema.PullRequestRow{{
		RepoID:      repoA,
		Number:      7,
		AuthorEmail: "alice@example.com",
		CreatedAt:   at(8),
		MergedAt:    tp(at(11)),
	}}

	result, err := ComputeDailyMetrics(at(15), stats, prs, computedAt, true)
	require.NoError(t, err)
	assert.Equal(t, testDay, result.Day)

	require.Len(t, result.UserMetrics, 1)
	u := result.UserMetrics[0]
	assert.Equal(t, "alice@example.com", u.AuthorEmail)
	assert.Equal(t, 2, u.CommitsCount)
	assert.Equal(t, 45, u.LOCAdded)
	assert.Equal(t, 15, u.LOCDeleted)
	assert.Equal(t, 2, u.FilesChanged)
	assert.Equal(t, 1, u.PRsAuthored)
	assert.Equal(t, 1, u.PRsMerged)
	assert.InDelta(t, 3.0, u.MedianPRCycleHours, 1e-9)
	assert.InDelta(t, 3.0, u.AvgPRCycleHours, 1e-9)
	assert.InDelta(t, 30.0, u.AvgCommitSizeLOC, 1e-9)
	assert.Zero(t, u.LargeCommitsCount)
	assert.Equal(t, computedAt, u.ComputedAt)

	require.Len(t, result.RepoMetrics, 1)
	r := result.RepoMetrics[0]
	assert.Equal(t, 2, r.CommitsCount)
	assert.Equal(t, 60, r.TotalLOCTouched)
	assert.Equal(t, 1, r.PRsMerged)
	assert.InDelta(t, 3.0, r.MedianPRCycleHours, 1e-9)
	assert.Zero(t, r.LargeCommitRatio)

	require.Len(t, result.CommitMetrics, 2)
	assert.Equal(t, "c1", result.CommitMetrics[0].CommitHash)
	assert.Equal(t, 50, result.CommitMetrics[0].TotalLOC)
	assert.Equal(t, 2, result.CommitMetrics[0].FilesChanged)
	assert.Equal(t, schema.SmallCommit, result.CommitMetrics[0].SizeBucket)
}

func TestComputeDailyMetricsEdgeCases(t *testing.T) {
	t.Run("empty input yields empty output", func(t *testing.T) {
		result, err := ComputeDailyMetrics(testDay, nil, nil, computedAt, true)
		require.NoError(t, err)
		assert.Empty(t, result.UserMetrics)
		assert.Empty(t, result.RepoMetrics)
		assert.Empty(t, result.CommitMetrics)
	})

	t.Run("commit metrics are opt-in", func(t *testing.T) {
		stats := []schema.CommitStatRow{statRow(repoA, "c1", "a@x", "a.go", at(1), 1, 1)}
		result, err := ComputeDailyMetrics(testDay, stats, nil, computedAt, false)
		require.NoError(t, err)
		assert.Empty(t, result.CommitMetrics)
		assert.Len(t, result.UserMetrics, 1)
	})

	t.Run("large commits and name fallback", func(t *testing.T) {
		stats := []schema.CommitStatRow{
			{RepoID: repoA, CommitHash: "big", AuthorName: "Bob", CommitterWhen: at(2), FilePath: "x.go", Additions: 400},
			{RepoID: repoA, CommitHash: "small", CommitterWhen: at(3), FilePath: "y.go", Additions: 1},
		}
		result, err := ComputeDailyMetrics(testDay, stats, nil, computedAt, true)
		require.NoError(t, err)
		require.Len(t, result.UserMetrics, 2)
		assert.Equal(t, "Bob", result.UserMetrics[0].AuthorEmail)
		assert.Equal(t, 1, result.UserMetrics[0].LargeCommitsCount)
		assert.Equal(t, "unknown", result.UserMetrics[1].AuthorEmail)
		assert.InDelta(t, 0.5, result.RepoMetrics[0].LargeCommitRatio, 1e-9)
	})

	t.Run("pr merged outside the day counts only as authored", func(t *testing.T) {
		prs := []schema.PullRequestRow{{RepoID: repoB, AuthorEmail: "c@x", CreatedAt: at(1), MergedAt: tp(at(30))}}
		result, err := ComputeDailyMetrics(testDay, nil, prs, computedAt, false)
		require.NoError(t, err)
		require.Len(t, result.UserMetrics, 1)
		assert.Equal(t, 1, result.UserMetrics[0].PRsAuthored)
		assert.Zero(t, result.UserMetrics[0].PRsMerged)
		assert.Zero(t, result.UserMetrics[0].MedianPRCycleHours)
		require.Len(t, result.RepoMetrics, 1)
		assert.Equal(t, repoB, result.RepoMetrics[0].RepoID)
	})

	t.Run("rows without repository are rejected", func(t *testing.T) {
		_, err := ComputeDailyMetrics(testDay, []schema.CommitStatRow{{CommitHash: "c"}}, nil, computedAt, false)
		assert.ErrorIs(t, err, ErrInvalidRow)
		_, err = ComputeDailyMetrics(testDay, nil, []schema.PullRequestRow{{Number: 1}}, computedAt, false)
		assert.ErrorIs(t, err, ErrInvalidRow)
	})

	t.Run("output is ordered by repository then identity", func(t *testing.T) {
		stats := []schema.CommitStatRow{
			statRow(repoB, "c3", "a@x", "a.go", at(1), 1, 0),
			statRow(repoA, "c2", "z@x", "a.go", at(1), 1, 0),
			statRow(repoA, "c1", "b@x", "a.go", at(1), 1, 0),
		}
		result, err := ComputeDailyMetrics(testDay, stats, nil, computedAt, false)
		require.NoError(t, err)
		require.Len(t, result.UserMetrics, 3)
		assert.Equal(t, "b@x", result.UserMetrics[0].AuthorEmail)
		assert.Equal(t, "z@x", result.UserMetrics[1].AuthorEmail)
		assert.Equal(t, repoB, result.UserMetrics[2].RepoID)
	})
}

type staticTeams map[string][2]string

func (s staticTeams) Resolve(identity string) (string, string) {
	team := s[identity]
	return team[0], team[1]
}

func TestComputeWorkItemMetricsDaily(t *testing.T) {
	points := 3.0
	items := []schema.WorkItem{
		{
			WorkItemID: "J-1", Provider: "jira", WorkScopeID: "CORE", Type: "Bug", Status: "done",
			Assignees: []string{"alice"}, StoryPoints: &points,
			CreatedAt: at(-48), StartedAt: tp(at(-24)), CompletedAt: tp(at(12)),
		},
		{
			WorkItemID: "J-2", Provider: "jira", WorkScopeID: "CORE", Type: "story", Status: "in progress",
			Assignees: []string{"alice"},
			CreatedAt: at(-10), StartedAt: tp(at(4)),
		},
		{
			WorkItemID: "J-3", Provider: "jira", WorkScopeID: "CORE", Type: "task", Status: "done",
			CreatedAt: at(1), CompletedAt: tp(at(5)),
		},
		{
			WorkItemID: "J-4", Provider: "jira", WorkScopeID: "CORE", Type: "task",
			CreatedAt: at(30), StartedAt: tp(at(31)),
		},
		{
			WorkItemID: "J-5", Provider: "jira", WorkScopeID: "CORE", Type: "task",
			CreatedAt: at(-100), StartedAt: tp(at(-90)), CompletedAt: tp(at(-80)),
		},
	}
	teams := staticTeams{"alice": {"platform", "Platform"}}

	result := ComputeWorkItemMetricsDaily(testDay, items, computedAt, teams)

	require.Len(t, result.Groups, 2)
	unteamed, platform := result.Groups[0], result.Groups[1]

	assert.Equal(t, "", unteamed.TeamID)
	assert.Equal(t, 1, unteamed.ItemsCompleted)
	assert.Equal(t, 1, unteamed.ItemsCompletedUnassigned)
	assert.Nil(t, unteamed.CycleTimeP50Hours)
	require.NotNil(t, unteamed.LeadTimeP50Hours)
	assert.InDelta(t, 4.0, *unteamed.LeadTimeP50Hours, 1e-9)

	assert.Equal(t, "platform", platform.TeamID)
	assert.Equal(t, "Platform", platform.TeamName)
	assert.Equal(t, 1, platform.ItemsStarted)
	assert.Equal(t, 1, platform.ItemsCompleted)
	assert.Equal(t, 1, platform.WIPCountEndOfDay)
	assert.InDelta(t, 1.0, platform.BugCompletedRatio, 1e-9)
	assert.InDelta(t, 3.0, platform.StoryPointsCompleted, 1e-9)
	require.NotNil(t, platform.CycleTimeP50Hours)
	assert.InDelta(t, 36.0, *platform.CycleTimeP50Hours, 1e-9)
	require.NotNil(t, platform.WIPAgeP50Hours)
	assert.InDelta(t, 20.0, *platform.WIPAgeP50Hours, 1e-9)

	require.Len(t, result.Users, 2)
	assert.Equal(t, "alice", result.Users[0].UserIdentity)
	assert.Equal(t, 1, result.Users[0].WIPCountEndOfDay)
	assert.Equal(t, schema.UnassignedIdentity, result.Users[1].UserIdentity)

	require.Len(t, result.CycleTimes, 2)
	for _, ct := range result.CycleTimes {
		assert.Equal(t, testDay, ct.Day)
		assert.Equal(t, computedAt, ct.ComputedAt)
	}

	t.Run("nil resolver leaves teams empty", func(t *testing.T) {
		result := ComputeWorkItemMetricsDaily(testDay, items, computedAt, nil)
		require.Len(t, result.Groups, 1)
		assert.Empty(t, result.Groups[0].TeamID)
		assert.Equal(t, 2, result.Groups[0].ItemsCompleted)
	})
}

func TestComputeFileHotspots(t *testing.T) {
	rows := []schema.CommitStatRow{
		statRow(repoA, "c1", "a@x", "hot.go", at(-48), 100, 20),
		statRow(repoA, "c2", "b@x", "hot.go", at(-24), 50, 10),
		statRow(repoA, "c3", "a@x", "cold.go", at(-1), 1, 0),
		statRow(repoB, "c4", "a@x", "other.go", at(1), 500, 0),
		{RepoID: repoA, CommitHash: "c5", CommitterWhen: at(2), Additions: 1000},
	}

	records, err := ComputeFileHotspots(repoA, at(12), rows, computedAt)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "hot.go", records[0].Path)
	assert.Equal(t, 180, records[0].Churn)
	assert.Equal(t, 2, records[0].Contributors)
	assert.Equal(t, 2, records[0].CommitsCount)
	assert.Equal(t, testDay, records[0].Day)
	assert.Greater(t, records[0].HotspotScore, records[1].HotspotScore)

	_, err = ComputeFileHotspots(uuid.Nil, testDay, rows, computedAt)
	assert.ErrorIs(t, err, ErrInvalidRow)
}

func TestDateRange(t *testing.T) {
	days := DateRange(at(17), 3)
	require.Len(t, days, 3)
	assert.Equal(t, testDay.AddDate(0, 0, -2), days[0])
	assert.Equal(t, testDay, days[2])
	assert.Len(t, DateRange(testDay, 0), 1)
}

// memBackend is an in-memory MetricsBackend that filters facts by window.
type memBackend struct {
	mu     sync.Mutex
	stats  []schema.CommitStatRow
	prs    []schema.PullRequestRow
	repos  []schema.RepoMetricsDailyRecord
	users  []schema.UserMetricsDailyRecord
	cms    []schema.CommitMetricsRecord
	files  []schema.FileMetricsRecord
	groups []schema.WorkItemMetricsDailyRecord
	wusers []schema.WorkItemUserMetricsDailyRecord
	cycles []schema.WorkItemCycleTimeRecord
}

func (m *memBackend) LoadCommitStatRows(_ context.Context, start, end time.Time, repoID *uuid.UUID) ([]schema.CommitStatRow, error) {
	var out []schema.CommitStatRow
	for _, r := range m.stats {
		if inWindow(r.CommitterWhen, start, end) && (repoID == nil || *repoID == r.RepoID) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memBackend) LoadPullRequestRows(_ context.Context, start, end time.Time, repoID *uuid.UUID) ([]schema.PullRequestRow, error) {
	var out []schema.PullRequestRow
	for _, r := range m.prs {
		touched := inWindow(r.CreatedAt, start, end) || (r.MergedAt != nil && inWindow(*r.MergedAt, start, end))
		if touched && (repoID == nil || *repoID == r.RepoID) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memBackend) WriteRepoMetrics(_ context.Context, rows []schema.RepoMetricsDailyRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.repos = append(m.repos, rows...)
	return nil
}

func (m *memBackend) WriteUserMetrics(_ context.Context, rows []schema.UserMetricsDailyRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users = append(m.users, rows...)
	return nil
}

func (m *memBackend) WriteCommitMetrics(_ context.Context, rows []schema.CommitMetricsRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cms = append(m.cms, rows...)
	return nil
}

func (m *memBackend) WriteFileMetrics(_ context.Context, rows []schema.FileMetricsRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files = append(m.files, rows...)
	return nil
}

func (m *memBackend) WriteWorkItemMetrics(_ context.Context, rows []schema.WorkItemMetricsDailyRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.groups = append(m.groups, rows...)
	return nil
}

func (m *memBackend) WriteWorkItemUserMetrics(_ context.Context, rows []schema.WorkItemUserMetricsDailyRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.wusers = append(m.wusers, rows...)
	return nil
}

func (m *memBackend) WriteWorkItemCycleTimes(_ context.Context, rows []schema.WorkItemCycleTimeRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cycles = append(m.cycles, rows...)
	return nil
}

type itemList []schema.WorkItem

func (l itemList) WorkItems(context.Context) ([]schema.WorkItem, error) { return l, nil }

func TestDailyJobRun(t *testing.T) {
	backend := &memBackend{
		stats: []schema.CommitStatRow{
			statRow(repoA, "old", "bob@x", "a.go", at(-72), 10, 0),
			statRow(repoA, "c1", "alice@x", "a.go", at(-20), 40, 10),
			statRow(repoA, "c2", "alice@x", "b.go", at(5), 5, 5),
			statRow(repoB, "c3", "carol@x", "z.go", at(6), 1, 1),
		},
		prs: []schema.PullRequestRow{
			{RepoID: repoA, Number: 1, AuthorEmail: "alice@x", CreatedAt: at(1), MergedAt: tp(at(4))},
		},
	}
	items := itemList{{WorkItemID: "J-1", Provider: "jira", WorkScopeID: "CORE", CreatedAt: at(-5), StartedAt: tp(at(1))}}

	job := NewDailyJob(backend, JobOptions{
		Backend:           schema.SQLiteBackend,
		HotspotWindowDays: 3,
		CommitMetrics:     true,
		WorkItems:         items,
	}, zap.NewNop())
	job.now = func() time.Time { return computedAt }

	summary, err := job.Run(context.Background(), testDay, 2, nil)
	require.NoError(t, err)
	assert.Equal(t, schema.SQLiteBackend, summary.Backend)
	require.Len(t, summary.Days, 2)

	yesterday, today := summary.Days[0], summary.Days[1]
	assert.Equal(t, testDay.AddDate(0, 0, -1), yesterday.Day)
	assert.Equal(t, 1, yesterday.Commits)
	assert.Equal(t, 1, yesterday.Hotspots)
	assert.Equal(t, 2, today.Repos)
	assert.Equal(t, 2, today.Users)
	assert.Equal(t, 1, today.PRRowsScanned)
	assert.Equal(t, 1, today.WorkItemGroups)

	// today's hotspot window covers c1, c2 and c3 but not the 3-day-old commit
	var todayFiles []schema.FileMetricsRecord
	for _, f := range backend.files {
		if f.Day.Equal(testDay) {
			todayFiles = append(todayFiles, f)
		}
	}
	assert.Len(t, todayFiles, 3)
	for _, f := range todayFiles {
		if f.RepoID == repoA && f.Path == "a.go" {
			assert.Equal(t, 50, f.Churn)
			assert.Equal(t, 1, f.Contributors)
		}
	}

	for _, r := range backend.repos {
		assert.Equal(t, computedAt, r.ComputedAt)
	}
}

func TestDailyJobScopedToRepository(t *testing.T) {
	backend := &memBackend{stats: []schema.CommitStatRow{
		statRow(repoA, "c1", "alice@x", "a.go", at(5), 5, 5),
		statRow(repoB, "c2", "bob@x", "b.go", at(5), 5, 5),
	}}
	job := NewDailyJob(backend, JobOptions{}, nil)

	_, err := job.Run(context.Background(), testDay, 1, &repoB)
	require.NoError(t, err)
	require.Len(t, backend.repos, 1)
	assert.Equal(t, repoB, backend.repos[0].RepoID)
	assert.Empty(t, backend.groups, "no work item source configured")
}

func TestDailyJobFailures(t *testing.T) {
	t.Run("load error aborts", func(t *testing.T) {
		m := &store.MockMetricsBackend{}
		m.On("LoadCommitStatRows", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("connection reset"))

		_, err := NewDailyJob(m, JobOptions{}, zap.NewNop()).Run(context.Background(), testDay, 1, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "connection reset")
		assert.Contains(t, err.Error(), "2024-05-10")
		m.AssertNotCalled(t, "WriteRepoMetrics", mock.Anything, mock.Anything)
	})

	t.Run("invalid row aborts before writing", func(t *testing.T) {
		m := &store.MockMetricsBackend{}
		m.On("LoadCommitStatRows", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return([]schema.CommitStatRow{{CommitHash: "orphan"}}, nil)
		m.On("LoadPullRequestRows", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil, nil)

		_, err := NewDailyJob(m, JobOptions{}, zap.NewNop()).Run(context.Background(), testDay, 1, nil)
		assert.ErrorIs(t, err, ErrInvalidRow)
		m.AssertNotCalled(t, "WriteRepoMetrics", mock.Anything, mock.Anything)
	})

	t.Run("write error aborts", func(t *testing.T) {
		m := &store.MockMetricsBackend{}
		m.On("LoadCommitStatRows", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil, nil)
		m.On("LoadPullRequestRows", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil, nil)
		m.On("WriteRepoMetrics", mock.Anything, mock.Anything).Return(errors.New("read-only"))

		_, err := NewDailyJob(m, JobOptions{}, zap.NewNop()).Run(context.Background(), testDay, 1, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "read-only")
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := NewDailyJob(&memBackend{}, JobOptions{}, nil).Run(ctx, testDay, 3, nil)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestDailyJobHotspots(t *testing.T) {
	backend := &memBackend{stats: []schema.CommitStatRow{
		statRow(repoA, "c1", "alice@x", "a.go", at(-200), 100, 0),
		statRow(repoA, "c2", "alice@x", "b.go", at(-2), 5, 0),
	}}
	job := NewDailyJob(backend, JobOptions{HotspotWindowDays: 2}, nil)

	records, err := job.Hotspots(context.Background(), repoA, testDay, 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "b.go", records[0].Path)

	records, err = job.Hotspots(context.Background(), repoA, testDay, 30)
	require.NoError(t, err)
	assert.Len(t, records, 2)
	assert.Empty(t, backend.files, "hotspot queries do not write")
}
