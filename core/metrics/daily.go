// Package metrics computes day-keyed aggregates from fact rows and runs the daily job.
// Compute functions are pure: they do no I/O and depend only on their arguments.
package metrics

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/huangsam/gitpulse/core/agg"
	"github.com/huangsam/gitpulse/core/algo"
	"github.com/huangsam/gitpulse/schema"
)

// ErrInvalidRow is returned for structurally invalid input rows.
var ErrInvalidRow = agg.ErrInvalidRow

type userKey struct {
	repoID   uuid.UUID
	identity string
}

type userAcc struct {
	commits     int
	added       int
	deleted     int
	files       map[string]struct{}
	large       int
	prsAuthored int
	prsMerged   int
	cycleHours  []float64
}

func (k userKey) less(o userKey) bool {
	if k.repoID != o.repoID {
		return k.repoID.String() < o.repoID.String()
	}
	return k.identity < o.identity
}

// ComputeDailyMetrics rolls the commit-stat and pull request rows of one UTC day
// up into per-user, per-repo and (optionally) per-commit records.
//
// PRs count as authored when created inside the day and as merged when merged
// inside the day; cycle time is merged minus created, in hours. With no merged
// PRs the cycle-time columns are 0.
func ComputeDailyMetrics(day time.Time, statRows []schema.CommitStatRow, prRows []schema.PullRequestRow, computedAt time.Time, includeCommitMetrics bool) (schema.DailyMetricsResult, error) {
	start, end := schema.DayWindow(day)
	computedAt = computedAt.UTC()
	result := schema.DailyMetricsResult{Day: start}

	commits, err := agg.AggregateCommits(statRows)
	if err != nil {
		return result, err
	}

	users := make(map[userKey]*userAcc)
	user := func(k userKey) *userAcc {
		u, ok := users[k]
		if !ok {
			u = &userAcc{files: make(map[string]struct{})}
			users[k] = u
		}
		return u
	}

	for _, c := range commits {
		u := user(userKey{repoID: c.RepoID, identity: c.Identity})
		u.commits++
		u.added += c.Additions
		u.deleted += c.Deletions
		for f := range c.Files {
			u.files[f] = struct{}{}
		}
		if algo.IsLargeCommit(c.TotalLOC()) {
			u.large++
		}
	}

	repos := make(map[uuid.UUID]struct{})
	repoCycles := make(map[uuid.UUID][]float64)
	for i, pr := range prRows {
		if pr.RepoID == uuid.Nil {
			return result, fmt.Errorf("%w: pull request row %d has no repository id", ErrInvalidRow, i)
		}
		repos[pr.RepoID] = struct{}{}
		u := user(userKey{repoID: pr.RepoID, identity: agg.Identity(pr.AuthorEmail, pr.AuthorName)})

		created := pr.CreatedAt.UTC()
		if inWindow(created, start, end) {
			u.prsAuthored++
		}
		if pr.MergedAt != nil && inWindow(pr.MergedAt.UTC(), start, end) {
			u.prsMerged++
			hours := pr.MergedAt.Sub(created).Hours()
			u.cycleHours = append(u.cycleHours, hours)
			repoCycles[pr.RepoID] = append(repoCycles[pr.RepoID], hours)
		}
	}

	keys := make([]userKey, 0, len(users))
	for k := range users {
		keys = append(keys, k)
		repos[k.repoID] = struct{}{}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].less(keys[j]) })

	type repoAcc struct{ commits, loc, large, merged int }
	repoTotals := make(map[uuid.UUID]*repoAcc)

	for _, k := range keys {
		u := users[k]
		touched := u.added + u.deleted
		result.UserMetrics = append(result.UserMetrics, schema.UserMetricsDailyRecord{
			RepoID:             k.repoID,
			Day:                start,
			AuthorEmail:        k.identity,
			CommitsCount:       u.commits,
			LOCAdded:           u.added,
			LOCDeleted:         u.deleted,
			FilesChanged:       len(u.files),
			LargeCommitsCount:  u.large,
			AvgCommitSizeLOC:   algo.Ratio(touched, u.commits),
			PRsAuthored:        u.prsAuthored,
			PRsMerged:          u.prsMerged,
			AvgPRCycleHours:    algo.Mean(u.cycleHours),
			MedianPRCycleHours: algo.Median(u.cycleHours),
			ComputedAt:         computedAt,
		})

		r, ok := repoTotals[k.repoID]
		if !ok {
			r = &repoAcc{}
			repoTotals[k.repoID] = r
		}
		r.commits += u.commits
		r.loc += touched
		r.large += u.large
		r.merged += u.prsMerged
	}

	repoIDs := make([]uuid.UUID, 0, len(repos))
	for id := range repos {
		repoIDs = append(repoIDs, id)
	}
	sort.Slice(repoIDs, func(i, j int) bool { return repoIDs[i].String() < repoIDs[j].String() })

	for _, id := range repoIDs {
		r := repoTotals[id]
		if r == nil {
			r = &repoAcc{}
		}
		result.RepoMetrics = append(result.RepoMetrics, schema.RepoMetricsDailyRecord{
			RepoID:             id,
			Day:                start,
			CommitsCount:       r.commits,
			TotalLOCTouched:    r.loc,
			AvgCommitSizeLOC:   algo.Ratio(r.loc, r.commits),
			LargeCommitRatio:   algo.Ratio(r.large, r.commits),
			PRsMerged:          r.merged,
			MedianPRCycleHours: algo.Median(repoCycles[id]),
			ComputedAt:         computedAt,
		})
	}

	if includeCommitMetrics {
		for _, c := range commits {
			result.CommitMetrics = append(result.CommitMetrics, schema.CommitMetricsRecord{
				RepoID:       c.RepoID,
				CommitHash:   c.Hash,
				Day:          start,
				AuthorEmail:  c.Identity,
				TotalLOC:     c.TotalLOC(),
				FilesChanged: len(c.Files),
				SizeBucket:   algo.SizeBucketFor(c.TotalLOC()),
				ComputedAt:   computedAt,
			})
		}
	}
	return result, nil
}

// inWindow reports whether t lies in the half-open window [start, end).
func inWindow(t, start, end time.Time) bool {
	return !t.Before(start) && t.Before(end)
}
