package indicators

import (
	"math"
	"sort"
)

// percentileValue returns the value at the given percentile (0..1) of a
// sorted slice, linearly interpolating at rank percentile*(n-1). The
// rank convention determines where the tier boundaries fall and must
// not change independently of the classification tests.
func percentileValue(sorted []float64, percentile float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}

	if percentile <= 0 {
		return sorted[0]
	}
	if percentile >= 1 {
		return sorted[n-1]
	}

	index := percentile * float64(n-1)
	lower := int(math.Floor(index))
	upper := int(math.Ceil(index))

	if lower == upper {
		return sorted[lower]
	}

	// Linear interpolation
	weight := index - float64(lower)
	return sorted[lower]*(1-weight) + sorted[upper]*weight
}

// sortedCopy returns an ascending copy of values, leaving the input
// untouched.
func sortedCopy(values []float64) []float64 {
	out := make([]float64, len(values))
	copy(out, values)
	sort.Float64s(out)
	return out
}
