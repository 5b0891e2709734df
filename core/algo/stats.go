// Package algo has the pure statistics behind the daily metrics and hotspot ranking.
package algo

import (
	"math"
	"slices"
)

// Percentile returns the p-th percentile of values using linear interpolation
// between closest ranks. An empty sample yields 0, p <= 0 the minimum and
// p >= 100 the maximum. The input is not modified.
func Percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := slices.Clone(values)
	slices.Sort(sorted)

	if p <= 0 {
		return sorted[0]
	}
	if p >= 100 {
		return sorted[len(sorted)-1]
	}

	rank := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}

// PercentilePtr is Percentile with nil for an empty sample, for "no data" columns.
func PercentilePtr(values []float64, p float64) *float64 {
	if len(values) == 0 {
		return nil
	}
	v := Percentile(values, p)
	return &v
}

// Median is the 50th percentile.
func Median(values []float64) float64 {
	return Percentile(values, 50)
}

// Mean returns the arithmetic mean, or 0 for an empty sample.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// Ratio returns num/den, or 0 when den is 0.
func Ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}
