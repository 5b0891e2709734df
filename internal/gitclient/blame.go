package gitclient

import (
	"context"
	"fmt"
	"sort"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/google/uuid"
	"github.com/huangsam/gitpulse/schema"
)

// SelectBlameFiles picks the files that get line attribution.
// BlameAll keeps every file and BlameNone none. BlameSample keeps up to limit files
// spread evenly over the path-sorted list so that every directory has a chance to be sampled.
func SelectBlameFiles(files []string, mode schema.BlameMode, limit int) []string {
	sorted := append([]string(nil), files...)
	sort.Strings(sorted)

	switch mode {
	case schema.BlameNone:
		return nil
	case schema.BlameAll:
		return sorted
	}

	if limit <= 0 {
		return nil
	}
	if len(sorted) <= limit {
		return sorted
	}
	picked := make([]string, 0, limit)
	step := float64(len(sorted)) / float64(limit)
	for i := range limit {
		picked = append(picked, sorted[int(float64(i)*step)])
	}
	return picked
}

// blameFile attributes every line of path at head. Line numbers start at 1.
func blameFile(ctx context.Context, repo *git.Repository, repoID uuid.UUID, head plumbing.Hash, path string) ([]schema.GitBlame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	commit, err := repo.CommitObject(head)
	if err != nil {
		return nil, fmt.Errorf("failed to load commit %s: %w", head, err)
	}
	result, err := git.Blame(commit, path)
	if err != nil {
		return nil, fmt.Errorf("blame %s: %w", path, err)
	}

	lines := make([]schema.GitBlame, 0, len(result.Lines))
	for i, line := range result.Lines {
		lines = append(lines, schema.GitBlame{
			RepoID:      repoID,
			Path:        path,
			LineNo:      i + 1,
			AuthorEmail: line.Author,
			AuthorName:  line.AuthorName,
			AuthorWhen:  line.Date.UTC(),
			CommitHash:  line.Hash.String(),
			Line:        line.Text,
		})
	}
	return lines, nil
}
