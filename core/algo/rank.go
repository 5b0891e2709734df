package algo

import (
	"sort"

	"github.com/huangsam/gitpulse/schema"
)

// RankHotspots sorts file snapshots by hotspot score in descending order and
// returns the top 'limit' entries. Ties are broken by churn, then by path, so the
// order is stable across runs. A limit of 0 or less keeps every entry.
func RankHotspots(files []schema.FileMetricsRecord, limit int) []schema.FileMetricsRecord {
	sort.SliceStable(files, func(i, j int) bool {
		if files[i].HotspotScore != files[j].HotspotScore {
			return files[i].HotspotScore > files[j].HotspotScore
		}
		if files[i].Churn != files[j].Churn {
			return files[i].Churn > files[j].Churn
		}
		return files[i].Path < files[j].Path
	})
	if limit > 0 && len(files) > limit {
		return files[:limit]
	}
	return files
}
