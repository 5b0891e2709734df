package remote

import (
	"context"
	"time"

	"github.com/huangsam/gitpulse/internal/contract"
	"github.com/huangsam/gitpulse/schema"
	"github.com/stretchr/testify/mock"
)

// MockConnector is a mock implementation of contract.Connector for testing.
type MockConnector struct {
	mock.Mock
}

var _ contract.Connector = &MockConnector{} // Compile-time check

// Provider implements the Connector interface.
func (m *MockConnector) Provider() schema.Provider {
	ret := m.Called()
	provider, _ := ret.Get(0).(schema.Provider)
	return provider
}

// ListOrganizations implements the Connector interface.
func (m *MockConnector) ListOrganizations(ctx context.Context, max int) ([]schema.Organization, error) {
	args := m.Called(ctx, max)
	orgs, _ := args.Get(0).([]schema.Organization)
	return orgs, args.Error(1)
}

// ListRepositories implements the Connector interface.
func (m *MockConnector) ListRepositories(ctx context.Context, filter schema.RepoFilter, max int) ([]schema.Repository, error) {
	args := m.Called(ctx, filter, max)
	repos, _ := args.Get(0).([]schema.Repository)
	return repos, args.Error(1)
}

// ListRepositoriesWithPattern implements the Connector interface.
func (m *MockConnector) ListRepositoriesWithPattern(ctx context.Context, filter schema.RepoFilter, pattern string, max int) ([]schema.Repository, error) {
	args := m.Called(ctx, filter, pattern, max)
	repos, _ := args.Get(0).([]schema.Repository)
	return repos, args.Error(1)
}

// GetContributors implements the Connector interface.
func (m *MockConnector) GetContributors(ctx context.Context, fullName string, max int) ([]schema.Author, error) {
	args := m.Called(ctx, fullName, max)
	authors, _ := args.Get(0).([]schema.Author)
	return authors, args.Error(1)
}

// GetCommitStats implements the Connector interface.
func (m *MockConnector) GetCommitStats(ctx context.Context, fullName, sha string) (schema.CommitStats, error) {
	args := m.Called(ctx, fullName, sha)
	stats, _ := args.Get(0).(schema.CommitStats)
	return stats, args.Error(1)
}

// GetRepoStats implements the Connector interface.
func (m *MockConnector) GetRepoStats(ctx context.Context, fullName string, maxCommits int) (schema.RepoStats, error) {
	args := m.Called(ctx, fullName, maxCommits)
	stats, _ := args.Get(0).(schema.RepoStats)
	return stats, args.Error(1)
}

// ListCommits implements the Connector interface.
func (m *MockConnector) ListCommits(ctx context.Context, fullName string, since *time.Time, max int) ([]schema.RemoteCommit, error) {
	args := m.Called(ctx, fullName, since, max)
	commits, _ := args.Get(0).([]schema.RemoteCommit)
	return commits, args.Error(1)
}

// GetPullRequests implements the Connector interface.
func (m *MockConnector) GetPullRequests(ctx context.Context, fullName, state string, max int) ([]schema.PullRequest, error) {
	args := m.Called(ctx, fullName, state, max)
	prs, _ := args.Get(0).([]schema.PullRequest)
	return prs, args.Error(1)
}

// WalkPullRequests implements the Connector interface. When the mock returns a
// []schema.PullRequest as its first value, it is handed to fn as a single page.
func (m *MockConnector) WalkPullRequests(ctx context.Context, fullName, state string, max int, gate contract.Gate, fn func([]schema.PullRequest) error) error {
	args := m.Called(ctx, fullName, state, max, gate)
	if page, ok := args.Get(0).([]schema.PullRequest); ok && len(page) > 0 {
		if err := fn(page); err != nil {
			return err
		}
	}
	return args.Error(1)
}

// GetFileBlame implements the Connector interface.
func (m *MockConnector) GetFileBlame(ctx context.Context, fullName, path, ref string) (schema.FileBlame, error) {
	args := m.Called(ctx, fullName, path, ref)
	blame, _ := args.Get(0).(schema.FileBlame)
	return blame, args.Error(1)
}

// ListFiles implements the Connector interface.
func (m *MockConnector) ListFiles(ctx context.Context, fullName, ref string) ([]string, error) {
	args := m.Called(ctx, fullName, ref)
	files, _ := args.Get(0).([]string)
	return files, args.Error(1)
}
