// Package agg folds joined commit-stat rows into per-commit and per-file aggregates.
package agg

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/huangsam/gitpulse/schema"
)

// ErrInvalidRow is returned for rows that cannot be attributed to a repository.
var ErrInvalidRow = errors.New("invalid fact row")

// Identity returns the trimmed email, else the trimmed name, else schema.UnknownIdentity.
func Identity(email, name string) string {
	if e := strings.TrimSpace(email); e != "" {
		return e
	}
	if n := strings.TrimSpace(name); n != "" {
		return n
	}
	return schema.UnknownIdentity
}

// CommitKey identifies a commit across repositories.
type CommitKey struct {
	RepoID uuid.UUID
	Hash   string
}

// CommitAggregate is one commit with its stat rows summed.
type CommitAggregate struct {
	CommitKey
	Identity      string
	CommitterWhen time.Time
	Additions     int
	Deletions     int
	Files         map[string]struct{}
}

// TotalLOC is additions plus deletions.
func (c *CommitAggregate) TotalLOC() int {
	return c.Additions + c.Deletions
}

// AggregateCommits sums stat rows per (repo, hash). A row with an empty path is a
// commit without stats and still yields the commit. Aggregate marker rows add to
// the line totals but not to the file set. Negative deltas count as zero.
// The result is sorted by repo id then hash.
func AggregateCommits(rows []schema.CommitStatRow) ([]*CommitAggregate, error) {
	byKey := make(map[CommitKey]*CommitAggregate)
	for i, row := range rows {
		if row.RepoID == uuid.Nil || row.CommitHash == "" {
			return nil, fmt.Errorf("%w: row %d has no repository id or commit hash", ErrInvalidRow, i)
		}
		key := CommitKey{RepoID: row.RepoID, Hash: row.CommitHash}
		c, ok := byKey[key]
		if !ok {
			c = &CommitAggregate{
				CommitKey:     key,
				Identity:      Identity(row.AuthorEmail, row.AuthorName),
				CommitterWhen: row.CommitterWhen,
				Files:         make(map[string]struct{}),
			}
			byKey[key] = c
		}
		if row.FilePath == "" {
			continue
		}
		c.Additions += max(row.Additions, 0)
		c.Deletions += max(row.Deletions, 0)
		if row.FilePath != schema.AggregateStatsMarker {
			c.Files[row.FilePath] = struct{}{}
		}
	}

	out := make([]*CommitAggregate, 0, len(byKey))
	for _, c := range byKey {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].RepoID != out[j].RepoID {
			return out[i].RepoID.String() < out[j].RepoID.String()
		}
		return out[i].Hash < out[j].Hash
	})
	return out, nil
}

// FileAggregate is the activity of one path over a window.
type FileAggregate struct {
	Path         string
	Churn        int
	Commits      int
	Contributors int
}

// AggregateFiles folds stat rows per path: churn is additions plus deletions,
// commits and contributors are distinct counts. Rows without a path and aggregate
// marker rows are ignored. The result is sorted by path.
func AggregateFiles(rows []schema.CommitStatRow) ([]FileAggregate, error) {
	type acc struct {
		churn   int
		commits map[string]struct{}
		authors map[string]struct{}
	}
	byPath := make(map[string]*acc)
	for i, row := range rows {
		if row.RepoID == uuid.Nil {
			return nil, fmt.Errorf("%w: row %d has no repository id", ErrInvalidRow, i)
		}
		if row.FilePath == "" || row.FilePath == schema.AggregateStatsMarker {
			continue
		}
		a, ok := byPath[row.FilePath]
		if !ok {
			a = &acc{commits: make(map[string]struct{}), authors: make(map[string]struct{})}
			byPath[row.FilePath] = a
		}
		a.churn += max(row.Additions, 0) + max(row.Deletions, 0)
		a.commits[row.CommitHash] = struct{}{}
		a.authors[Identity(row.AuthorEmail, row.AuthorName)] = struct{}{}
	}

	out := make([]FileAggregate, 0, len(byPath))
	for path, a := range byPath {
		out = append(out, FileAggregate{
			Path:         path,
			Churn:        a.churn,
			Commits:      len(a.commits),
			Contributors: len(a.authors),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}
