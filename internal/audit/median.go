package audit

import (
	"sort"
)

// Median computes the standard median of the monthly traffic values: the
// middle value, or the average of the two middle values for an even count.
// Zero when there are no values.
func Median(values []int64) float64 {
	if len(values) == 0 {
		return 0
	}

	sorted := make([]int64, len(values))
	copy(sorted, values)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return float64(sorted[mid])
	}
	return float64(sorted[mid-1]+sorted[mid]) / 2
}
