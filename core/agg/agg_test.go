package agg

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/huangsam/gitpulse/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	repoA = uuid.MustParse("11111111-1111-4111-8111-111111111111")
	repoB = uuid.MustParse("22222222-2222-4222-8222-222222222222")
	when  = time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
)

func TestIdentity(t *testing.T) {
	tests := []struct {
		name, email, author, expected string
	}{
		{"email wins", " alice@example.com ", "Alice", "alice@example.com"},
		{"name fallback", "  ", " Alice ", "Alice"},
		{"unknown", "", "", schema.UnknownIdentity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Identity(tt.email, tt.author))
		})
	}
}

func TestAggregateCommits(t *testing.T) {
	rows := []schema.CommitStatRow{
		{RepoID: repoB, CommitHash: "c3", AuthorEmail: "carol@example.com", CommitterWhen: when},
		{RepoID: repoA, CommitHash: "c1", AuthorEmail: "alice@example.com", CommitterWhen: when, FilePath: "a.go", Additions: 30, Deletions: 5},
		{RepoID: repoA, CommitHash: "c1", AuthorEmail: "alice@example.com", CommitterWhen: when, FilePath: "b.go", Additions: 10, Deletions: 5},
		{RepoID: repoA, CommitHash: "c2", AuthorName: "Bob", CommitterWhen: when, FilePath: "a.go", Additions: -4, Deletions: 2},
		{RepoID: repoA, CommitHash: "c2", AuthorName: "Bob", CommitterWhen: when, FilePath: schema.AggregateStatsMarker, Additions: 7},
	}

	commits, err := AggregateCommits(rows)
	require.NoError(t, err)
	require.Len(t, commits, 3)

	c1 := commits[0]
	assert.Equal(t, "c1", c1.Hash)
	assert.Equal(t, "alice@example.com", c1.Identity)
	assert.Equal(t, 40, c1.Additions)
	assert.Equal(t, 10, c1.Deletions)
	assert.Equal(t, 50, c1.TotalLOC())
	assert.Len(t, c1.Files, 2)

	c2 := commits[1]
	assert.Equal(t, "Bob", c2.Identity)
	assert.Equal(t, 7, c2.Additions, "negative additions clamp and the marker adds its totals")
	assert.Equal(t, 2, c2.Deletions)
	assert.Len(t, c2.Files, 1, "marker rows are not files")

	c3 := commits[2]
	assert.Equal(t, repoB, c3.RepoID)
	assert.Zero(t, c3.TotalLOC())
	assert.Empty(t, c3.Files)
}

func TestAggregateCommitsRejectsInvalidRows(t *testing.T) {
	_, err := AggregateCommits([]schema.CommitStatRow{{CommitHash: "c1"}})
	assert.ErrorIs(t, err, ErrInvalidRow)

	_, err = AggregateCommits([]schema.CommitStatRow{{RepoID: repoA}})
	assert.ErrorIs(t, err, ErrInvalidRow)
}

func TestAggregateFiles(t *testing.T) {
	rows := []schema.CommitStatRow{
		{RepoID: repoA, CommitHash: "c1", AuthorEmail: "alice@example.com", FilePath: "a.go", Additions: 10, Deletions: 2},
		{RepoID: repoA, CommitHash: "c2", AuthorEmail: "bob@example.com", FilePath: "a.go", Additions: 3, Deletions: 1},
		{RepoID: repoA, CommitHash: "c3", AuthorEmail: "alice@example.com", FilePath: "a.go", Additions: 1},
		{RepoID: repoA, CommitHash: "c3", AuthorEmail: "alice@example.com", FilePath: "b.go", Additions: 5},
		{RepoID: repoA, CommitHash: "c4", AuthorEmail: "alice@example.com"},
		{RepoID: repoA, CommitHash: "c5", FilePath: schema.AggregateStatsMarker, Additions: 100},
	}

	files, err := AggregateFiles(rows)
	require.NoError(t, err)
	require.Len(t, files, 2)

	assert.Equal(t, FileAggregate{Path: "a.go", Churn: 17, Commits: 3, Contributors: 2}, files[0])
	assert.Equal(t, FileAggregate{Path: "b.go", Churn: 5, Commits: 1, Contributors: 1}, files[1])

	_, err = AggregateFiles([]schema.CommitStatRow{{FilePath: "x.go"}})
	assert.ErrorIs(t, err, ErrInvalidRow)
}
