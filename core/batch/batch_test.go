package batch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/huangsam/gitpulse/internal/contract"
	"github.com/huangsam/gitpulse/internal/remote"
	"github.com/huangsam/gitpulse/internal/store"
	"github.com/huangsam/gitpulse/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var syncTime = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func testRepos() []schema.Repository {
	return []schema.Repository{
		{ID: 1, FullName: "acme/api", DefaultBranch: "main", URL: "https://github.com/acme/api", Language: "Go"},
		{ID: 2, FullName: "acme/broken", DefaultBranch: "main", URL: "https://github.com/acme/broken"},
		{ID: 3, FullName: "acme/web", DefaultBranch: "trunk", URL: "https://github.com/acme/web", Language: "TypeScript"},
	}
}

// writes records what reaches the fact store and flags overlapping writes.
type writes struct {
	mu         sync.Mutex
	inflight   atomic.Int32
	overlapped atomic.Bool
	repos      []schema.Repo
	commits    []schema.GitCommit
	prs        []schema.GitPullRequest
	stats      []schema.GitCommitStat
	files      []schema.GitFile
	blame      []schema.GitBlame
}

func (w *writes) enter() func() {
	if w.inflight.Add(1) > 1 {
		w.overlapped.Store(true)
	}
	time.Sleep(2 * time.Millisecond)
	return func() { w.inflight.Add(-1) }
}

func newFactStore(present bool) (*store.MockFactStore, *writes) {
	w := &writes{}
	m := &store.MockFactStore{}
	m.On("InsertRepo", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		defer w.enter()()
		w.mu.Lock()
		defer w.mu.Unlock()
		w.repos = append(w.repos, args.Get(1).(schema.Repo))
	}).Return(nil)
	m.On("InsertGitCommitData", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		defer w.enter()()
		w.mu.Lock()
		defer w.mu.Unlock()
		w.commits = append(w.commits, args.Get(1).([]schema.GitCommit)...)
	}).Return(nil)
	m.On("InsertGitPullRequests", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		w.mu.Lock()
		defer w.mu.Unlock()
		w.prs = append(w.prs, args.Get(1).([]schema.GitPullRequest)...)
	}).Return(nil)
	m.On("InsertGitCommitStats", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		w.mu.Lock()
		defer w.mu.Unlock()
		w.stats = append(w.stats, args.Get(1).([]schema.GitCommitStat)...)
	}).Return(nil)
	m.On("InsertGitFileData", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		w.mu.Lock()
		defer w.mu.Unlock()
		w.files = append(w.files, args.Get(1).([]schema.GitFile)...)
	}).Return(nil)
	m.On("InsertBlameData", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		w.mu.Lock()
		defer w.mu.Unlock()
		w.blame = append(w.blame, args.Get(1).([]schema.GitBlame)...)
	}).Return(nil)
	m.On("HasAnyGitFiles", mock.Anything, mock.Anything).Return(present, nil)
	m.On("HasAnyGitCommitStats", mock.Anything, mock.Anything).Return(present, nil)
	m.On("HasAnyGitBlame", mock.Anything, mock.Anything).Return(present, nil)
	return m, w
}

func newConnector() *remote.MockConnector {
	c := &remote.MockConnector{}
	c.On("Provider").Return(schema.GitHubProvider)
	c.On("ListRepositoriesWithPattern", mock.Anything, schema.RepoFilter{Org: "acme"}, "acme/*", 0).Return(testRepos(), nil)
	c.On("GetRepoStats", mock.Anything, "acme/broken", mock.Anything).Return(nil, errors.New("boom"))
	c.On("GetRepoStats", mock.Anything, mock.Anything, mock.Anything).Return(schema.RepoStats{TotalCommits: 2, Additions: 30, Deletions: 12}, nil)
	c.On("ListCommits", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return([]schema.RemoteCommit{
		{SHA: "aaa", AuthorEmail: "dev@acme.io", CommitterWhen: syncTime.Add(-time.Hour)},
		{SHA: "bbb", AuthorEmail: "dev@acme.io", CommitterWhen: syncTime.Add(-2 * time.Hour)},
	}, nil)
	c.On("WalkPullRequests", mock.Anything, mock.Anything, "all", mock.Anything, mock.Anything).Return([]schema.PullRequest{
		{Number: 7, AuthorLogin: "dev", CreatedAt: syncTime.Add(-48 * time.Hour)},
	}, nil)
	return c
}

func TestOrchestratorIsolatesFailures(t *testing.T) {
	conn := newConnector()
	fs, w := newFactStore(true)

	var seen []string
	var mu sync.Mutex
	orch := NewOrchestrator(conn, fs, nil, Options{
		MaxConcurrent: 3,
		BatchSize:     10,
		PullRequests:  true,
		Backfill:      true,
		OnResult: func(r schema.BatchResult) {
			mu.Lock()
			defer mu.Unlock()
			seen = append(seen, r.Repository.FullName)
		},
	}, zap.NewNop())

	summary, err := orch.Run(context.Background(), schema.RepoFilter{Org: "acme"}, "acme/*")
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 2, summary.Successful)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 2, summary.Stored)
	assert.Equal(t, schema.GitHubProvider, summary.Provider)
	assert.ElementsMatch(t, []string{"acme/api", "acme/broken", "acme/web"}, seen)

	require.Len(t, summary.Results, 3)
	broken := summary.Results[1]
	assert.Equal(t, "acme/broken", broken.Repository.FullName)
	assert.False(t, broken.Success)
	assert.Contains(t, broken.Error, "boom")
	assert.False(t, broken.Stored)

	assert.False(t, w.overlapped.Load(), "writes must be serialized on one writer")
	require.Len(t, w.repos, 2)
	assert.Len(t, w.commits, 4)
	assert.Len(t, w.prs, 2)
	assert.Equal(t, "dev", w.prs[0].AuthorName)

	var markers int
	for _, st := range w.stats {
		if st.CommitHash == schema.AggregateStatsMarker && st.FilePath == schema.AggregateStatsMarker {
			markers++
			assert.Equal(t, 30, st.Additions)
			assert.Equal(t, 12, st.Deletions)
		}
	}
	assert.Equal(t, 2, markers)

	for _, repo := range w.repos {
		assert.Equal(t, true, repo.Settings["batch_processed"])
		assert.Equal(t, "github", repo.Settings["source"])
		assert.Equal(t, schema.RemoteRepoID(schema.GitHubProvider, schema.Repository{URL: "https://github.com/" + repo.Repo}), repo.ID)
		if repo.Repo == "acme/api" {
			assert.Equal(t, []string{"github", "Go"}, repo.Tags)
		}
	}

	conn.AssertNotCalled(t, "ListFiles", mock.Anything, mock.Anything, mock.Anything)
	fs.AssertNotCalled(t, "InsertGitFileData", mock.Anything, mock.Anything)
}

func TestOrchestratorBackfill(t *testing.T) {
	conn := newConnector()
	conn.On("ListFiles", mock.Anything, mock.Anything, mock.Anything).Return([]string{"main.go", "logo.png", "README.md"}, nil)
	conn.On("GetCommitStats", mock.Anything, mock.Anything, "aaa").Return(schema.CommitStats{
		SHA: "aaa", Additions: 5, Deletions: 1,
		Files: []schema.FileChange{{Path: "main.go", Additions: 5, Deletions: 1}, {Path: "logo.png", Additions: 0, Deletions: 0}},
	}, nil)
	conn.On("GetCommitStats", mock.Anything, mock.Anything, "bbb").Return(schema.CommitStats{SHA: "bbb", Additions: 9, Deletions: 3}, nil)
	conn.On("GetFileBlame", mock.Anything, mock.Anything, "main.go", mock.Anything).Return(schema.FileBlame{
		Ranges: []schema.BlameRange{{StartingLine: 1, EndingLine: 3, CommitSHA: "aaa", Author: "Dev", AuthorEmail: "dev@acme.io", AgeSeconds: 3600}},
	}, nil)
	conn.On("GetFileBlame", mock.Anything, mock.Anything, "README.md", mock.Anything).Return(nil, errors.New("too large"))

	fs, w := newFactStore(false)
	orch := NewOrchestrator(conn, fs, nil, Options{MaxConcurrent: 1, BatchSize: 2, BlameLimit: 10, Backfill: true}, zap.NewNop())
	orch.now = func() time.Time { return syncTime }

	summary, err := orch.Run(context.Background(), schema.RepoFilter{Org: "acme"}, "acme/*")
	require.NoError(t, err)
	require.Len(t, summary.Results, 3)

	api := summary.Results[0]
	require.NotNil(t, api.Backfill)
	assert.Equal(t, 2, api.Backfill.Files, "skippable paths are not backfilled")
	assert.Equal(t, 2, api.Backfill.CommitStats)
	assert.Equal(t, 3, api.Backfill.BlameLines)
	assert.Equal(t, 1, api.Backfill.FailedBlame)

	conn.AssertNotCalled(t, "WalkPullRequests", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)

	var perCommitMarker bool
	for _, st := range w.stats {
		assert.NotEqual(t, "logo.png", st.FilePath)
		if st.CommitHash == "bbb" {
			perCommitMarker = true
			assert.Equal(t, schema.AggregateStatsMarker, st.FilePath)
			assert.Equal(t, 9, st.Additions)
		}
	}
	assert.True(t, perCommitMarker)

	var apiBlame []schema.GitBlame
	for _, b := range w.blame {
		if b.RepoID == w.repos[0].ID {
			apiBlame = append(apiBlame, b)
		}
	}
	require.Len(t, apiBlame, 3)
	assert.Equal(t, "main.go", apiBlame[0].Path)
	assert.Equal(t, 1, apiBlame[0].LineNo)
	assert.Equal(t, 3, apiBlame[2].LineNo)
	assert.Equal(t, syncTime.Add(-time.Hour), apiBlame[0].AuthorWhen)
}

func TestOrchestratorBackfillBlameMode(t *testing.T) {
	tests := []struct {
		name      string
		mode      schema.BlameMode
		limit     int
		wantCalls int
	}{
		{name: "none fetches no blame", mode: schema.BlameNone, wantCalls: 0},
		{name: "all fetches every file", mode: schema.BlameAll, wantCalls: 6},
		{name: "sample honours the limit", mode: schema.BlameSample, limit: 1, wantCalls: 2},
		{name: "unset falls back to sample", limit: 2, wantCalls: 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn := newConnector()
			conn.On("ListFiles", mock.Anything, mock.Anything, mock.Anything).Return([]string{"a.go", "b.go", "c.go"}, nil)
			conn.On("GetCommitStats", mock.Anything, mock.Anything, mock.Anything).Return(schema.CommitStats{Additions: 1}, nil)
			conn.On("GetFileBlame", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(schema.FileBlame{
				Ranges: []schema.BlameRange{{StartingLine: 1, EndingLine: 1, CommitSHA: "aaa"}},
			}, nil)
			fs, w := newFactStore(false)

			orch := NewOrchestrator(conn, fs, nil, Options{
				MaxConcurrent: 1,
				Blame:         tt.mode,
				BlameLimit:    tt.limit,
				Backfill:      true,
			}, zap.NewNop())
			_, err := orch.Run(context.Background(), schema.RepoFilter{Org: "acme"}, "acme/*")
			require.NoError(t, err)

			conn.AssertNumberOfCalls(t, "GetFileBlame", tt.wantCalls)
			assert.Len(t, w.blame, tt.wantCalls)
			assert.Len(t, w.files, 6, "files are backfilled whatever the blame mode")
			if tt.mode == schema.BlameNone {
				fs.AssertNotCalled(t, "HasAnyGitBlame", mock.Anything, mock.Anything)
			}
		})
	}
}

func TestOptionsFromConfigCarriesBlameMode(t *testing.T) {
	opts := OptionsFromConfig(&contract.Config{Blame: schema.BlameNone, BlameLimit: 7, MaxRepos: 3})
	assert.Equal(t, schema.BlameNone, opts.Blame)
	assert.Equal(t, 7, opts.BlameLimit)
	assert.Equal(t, 3, opts.MaxRepos)
}

func TestOrchestratorMarksCommitsWithFinalStatsErrors(t *testing.T) {
	conn := newConnector()
	conn.On("ListFiles", mock.Anything, mock.Anything, mock.Anything).Return(nil, nil)
	conn.On("GetCommitStats", mock.Anything, mock.Anything, "aaa").Return(nil, &remote.NotFoundError{Provider: schema.GitHubProvider, Resource: "aaa"})
	conn.On("GetCommitStats", mock.Anything, mock.Anything, "bbb").Return(nil, &remote.APIError{Provider: schema.GitHubProvider, Status: 502, Transient: true})
	fs, w := newFactStore(false)

	orch := NewOrchestrator(conn, fs, nil, Options{MaxConcurrent: 1, Blame: schema.BlameNone, Backfill: true}, zap.NewNop())
	summary, err := orch.Run(context.Background(), schema.RepoFilter{Org: "acme"}, "acme/*")
	require.NoError(t, err)

	api := summary.Results[0]
	require.NotNil(t, api.Backfill)
	assert.Equal(t, 2, api.Backfill.FailedCommit)
	assert.Equal(t, 1, api.Backfill.CommitStats)

	var hashes []string
	for _, st := range w.stats {
		if st.CommitHash == schema.AggregateStatsMarker {
			continue
		}
		hashes = append(hashes, st.CommitHash)
		assert.Equal(t, schema.AggregateStatsMarker, st.FilePath)
		assert.Zero(t, st.Additions)
		assert.Zero(t, st.Deletions)
	}
	assert.Equal(t, []string{"aaa", "aaa"}, hashes, "only the final failure is marked, once per repository")
}

func TestOrchestratorListingFailureAborts(t *testing.T) {
	conn := &remote.MockConnector{}
	conn.On("Provider").Return(schema.GitLabProvider)
	conn.On("ListRepositories", mock.Anything, mock.Anything, 5).Return(nil, &remote.AuthenticationError{Provider: schema.GitLabProvider})
	fs := &store.MockFactStore{}

	orch := NewOrchestrator(conn, fs, nil, Options{MaxRepos: 5}, zap.NewNop())
	_, err := orch.Run(context.Background(), schema.RepoFilter{Org: "acme"}, "")
	require.Error(t, err)
	var authErr *remote.AuthenticationError
	assert.ErrorAs(t, err, &authErr)
	fs.AssertNotCalled(t, "InsertRepo", mock.Anything, mock.Anything)
}

func TestOrchestratorStoreFailureIsPerRepository(t *testing.T) {
	conn := newConnector()
	fs := &store.MockFactStore{}
	fs.On("InsertRepo", mock.Anything, mock.MatchedBy(func(r schema.Repo) bool { return r.Repo == "acme/api" })).Return(errors.New("constraint"))
	fs.On("InsertRepo", mock.Anything, mock.Anything).Return(nil)
	fs.On("InsertGitCommitData", mock.Anything, mock.Anything).Return(nil)
	fs.On("InsertGitCommitStats", mock.Anything, mock.Anything).Return(nil)

	orch := NewOrchestrator(conn, fs, nil, Options{MaxConcurrent: 2}, zap.NewNop())
	summary, err := orch.Run(context.Background(), schema.RepoFilter{Org: "acme"}, "acme/*")
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Successful)
	assert.Equal(t, 1, summary.Stored)
	assert.Contains(t, summary.Results[0].Error, "constraint")
}

func TestOrchestratorCancelled(t *testing.T) {
	conn := newConnector()
	fs, _ := newFactStore(true)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	orch := NewOrchestrator(conn, fs, nil, Options{MaxConcurrent: 2}, zap.NewNop())
	summary, err := orch.Run(ctx, schema.RepoFilter{Org: "acme"}, "acme/*")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, summary.Stored)
}

func TestInsertBatches(t *testing.T) {
	var sizes []int
	err := insertBatches(context.Background(), []int{1, 2, 3, 4, 5}, 2, func(_ context.Context, part []int) error {
		sizes = append(sizes, len(part))
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{2, 2, 1}, sizes)

	err = insertBatches(context.Background(), []int{1, 2, 3}, 2, func(context.Context, []int) error { return errors.New("stop") })
	assert.EqualError(t, err, "stop")
}
