package metrics

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/huangsam/gitpulse/core/agg"
	"github.com/huangsam/gitpulse/core/algo"
	"github.com/huangsam/gitpulse/schema"
)

// ComputeFileHotspots scores every file of repoID touched in windowRows.
// Rows of other repositories are ignored. The result is sorted by score, highest first.
func ComputeFileHotspots(repoID uuid.UUID, day time.Time, windowRows []schema.CommitStatRow, computedAt time.Time) ([]schema.FileMetricsRecord, error) {
	if repoID == uuid.Nil {
		return nil, fmt.Errorf("%w: hotspots need a repository id", ErrInvalidRow)
	}
	own := make([]schema.CommitStatRow, 0, len(windowRows))
	for _, row := range windowRows {
		if row.RepoID == repoID {
			own = append(own, row)
		}
	}
	files, err := agg.AggregateFiles(own)
	if err != nil {
		return nil, err
	}

	dayStart := schema.UTCDay(day)
	records := make([]schema.FileMetricsRecord, 0, len(files))
	for _, f := range files {
		records = append(records, schema.FileMetricsRecord{
			RepoID:       repoID,
			Day:          dayStart,
			Path:         f.Path,
			Churn:        f.Churn,
			Contributors: f.Contributors,
			CommitsCount: f.Commits,
			HotspotScore: algo.HotspotScore(f.Churn, f.Contributors, f.Commits),
			ComputedAt:   computedAt.UTC(),
		})
	}
	return algo.RankHotspots(records, 0), nil
}
