package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/huangsam/gitpulse/internal/contract"
	"github.com/huangsam/gitpulse/schema"
	"github.com/stretchr/testify/mock"
)

// MockFactStore is a mock implementation of contract.FactStore for testing.
type MockFactStore struct {
	mock.Mock
}

var _ contract.FactStore = &MockFactStore{} // Compile-time check

// Backend implements the FactStore interface.
func (m *MockFactStore) Backend() schema.Backend {
	ret := m.Called()
	backend, _ := ret.Get(0).(schema.Backend)
	return backend
}

// InsertRepo implements the FactStore interface.
func (m *MockFactStore) InsertRepo(ctx context.Context, repo schema.Repo) error {
	return m.Called(ctx, repo).Error(0)
}

// InsertGitFileData implements the FactStore interface.
func (m *MockFactStore) InsertGitFileData(ctx context.Context, files []schema.GitFile) error {
	return m.Called(ctx, files).Error(0)
}

// InsertGitCommitData implements the FactStore interface.
func (m *MockFactStore) InsertGitCommitData(ctx context.Context, commits []schema.GitCommit) error {
	return m.Called(ctx, commits).Error(0)
}

// InsertGitCommitStats implements the FactStore interface.
func (m *MockFactStore) InsertGitCommitStats(ctx context.Context, stats []schema.GitCommitStat) error {
	return m.Called(ctx, stats).Error(0)
}

// InsertBlameData implements the FactStore interface.
func (m *MockFactStore) InsertBlameData(ctx context.Context, lines []schema.GitBlame) error {
	return m.Called(ctx, lines).Error(0)
}

// InsertGitPullRequests implements the FactStore interface.
func (m *MockFactStore) InsertGitPullRequests(ctx context.Context, prs []schema.GitPullRequest) error {
	return m.Called(ctx, prs).Error(0)
}

// HasAnyGitFiles implements the FactStore interface.
func (m *MockFactStore) HasAnyGitFiles(ctx context.Context, repoID uuid.UUID) (bool, error) {
	args := m.Called(ctx, repoID)
	return args.Bool(0), args.Error(1)
}

// HasAnyGitCommitStats implements the FactStore interface.
func (m *MockFactStore) HasAnyGitCommitStats(ctx context.Context, repoID uuid.UUID) (bool, error) {
	args := m.Called(ctx, repoID)
	return args.Bool(0), args.Error(1)
}

// HasAnyGitBlame implements the FactStore interface.
func (m *MockFactStore) HasAnyGitBlame(ctx context.Context, repoID uuid.UUID) (bool, error) {
	args := m.Called(ctx, repoID)
	return args.Bool(0), args.Error(1)
}

// Status implements the FactStore interface.
func (m *MockFactStore) Status(ctx context.Context) (schema.StoreStatus, error) {
	args := m.Called(ctx)
	status, _ := args.Get(0).(schema.StoreStatus)
	return status, args.Error(1)
}

// Close implements the FactStore interface.
func (m *MockFactStore) Close() error {
	return m.Called().Error(0)
}

// MockMetricsBackend is a mock implementation of contract.MetricsBackend for testing.
type MockMetricsBackend struct {
	mock.Mock
}

var _ contract.MetricsBackend = &MockMetricsBackend{} // Compile-time check

// LoadCommitStatRows implements the FactLoader interface.
func (m *MockMetricsBackend) LoadCommitStatRows(ctx context.Context, start, end time.Time, repoID *uuid.UUID) ([]schema.CommitStatRow, error) {
	args := m.Called(ctx, start, end, repoID)
	rows, _ := args.Get(0).([]schema.CommitStatRow)
	return rows, args.Error(1)
}

// LoadPullRequestRows implements the FactLoader interface.
func (m *MockMetricsBackend) LoadPullRequestRows(ctx context.Context, start, end time.Time, repoID *uuid.UUID) ([]schema.PullRequestRow, error) {
	args := m.Called(ctx, start, end, repoID)
	rows, _ := args.Get(0).([]schema.PullRequestRow)
	return rows, args.Error(1)
}

// WriteRepoMetrics implements the MetricsSink interface.
func (m *MockMetricsBackend) WriteRepoMetrics(ctx context.Context, rows []schema.RepoMetricsDailyRecord) error {
	return m.Called(ctx, rows).Error(0)
}

// WriteUserMetrics implements the MetricsSink interface.
func (m *MockMetricsBackend) WriteUserMetrics(ctx context.Context, rows []schema.UserMetricsDailyRecord) error {
	return m.Called(ctx, rows).Error(0)
}

// WriteCommitMetrics implements the MetricsSink interface.
func (m *MockMetricsBackend) WriteCommitMetrics(ctx context.Context, rows []schema.CommitMetricsRecord) error {
	return m.Called(ctx, rows).Error(0)
}

// WriteFileMetrics implements the MetricsSink interface.
func (m *MockMetricsBackend) WriteFileMetrics(ctx context.Context, rows []schema.FileMetricsRecord) error {
	return m.Called(ctx, rows).Error(0)
}

// WriteWorkItemMetrics implements the MetricsSink interface.
func (m *MockMetricsBackend) WriteWorkItemMetrics(ctx context.Context, rows []schema.WorkItemMetricsDailyRecord) error {
	return m.Called(ctx, rows).Error(0)
}

// WriteWorkItemUserMetrics implements the MetricsSink interface.
func (m *MockMetricsBackend) WriteWorkItemUserMetrics(ctx context.Context, rows []schema.WorkItemUserMetricsDailyRecord) error {
	return m.Called(ctx, rows).Error(0)
}

// WriteWorkItemCycleTimes implements the MetricsSink interface.
func (m *MockMetricsBackend) WriteWorkItemCycleTimes(ctx context.Context, rows []schema.WorkItemCycleTimeRecord) error {
	return m.Called(ctx, rows).Error(0)
}
