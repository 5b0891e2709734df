package algo

import (
	"math"

	"github.com/huangsam/gitpulse/schema"
)

// Commit size thresholds in lines touched (additions + deletions).
const (
	SmallCommitMaxLOC  = 50
	MediumCommitMaxLOC = 300
)

// Hotspot weights.
const (
	churnWeight        = 0.4
	contributorsWeight = 0.3
	commitsWeight      = 0.3
)

// SizeBucketFor classifies a commit by lines touched.
func SizeBucketFor(totalLOC int) schema.SizeBucket {
	switch {
	case totalLOC <= SmallCommitMaxLOC:
		return schema.SmallCommit
	case totalLOC <= MediumCommitMaxLOC:
		return schema.MediumCommit
	default:
		return schema.LargeCommit
	}
}

// IsLargeCommit reports whether a commit lands in the large bucket.
func IsLargeCommit(totalLOC int) bool {
	return totalLOC > MediumCommitMaxLOC
}

// HotspotScore combines churn, distinct contributors and commits of a file:
//
//	0.4*ln(1+churn) + 0.3*contributors + 0.3*commits
//
// Negative inputs count as zero.
func HotspotScore(churn, contributors, commits int) float64 {
	return churnWeight*math.Log1p(float64(max(churn, 0))) +
		contributorsWeight*float64(max(contributors, 0)) +
		commitsWeight*float64(max(commits, 0))
}
