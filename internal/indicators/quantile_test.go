package indicators

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPercentileValue(t *testing.T) {
	tests := []struct {
		name       string
		sorted     []float64
		percentile float64
		want       float64
	}{
		{
			name:       "empty slice",
			sorted:     []float64{},
			percentile: 0.5,
			want:       0,
		},
		{
			name:       "single value",
			sorted:     []float64{7.5},
			percentile: 0.33,
			want:       7.5,
		},
		{
			name:       "percentile at or below zero returns first",
			sorted:     []float64{1, 2, 3},
			percentile: 0,
			want:       1,
		},
		{
			name:       "percentile at or above one returns last",
			sorted:     []float64{1, 2, 3},
			percentile: 1,
			want:       3,
		},
		{
			name:       "median of even count interpolates",
			sorted:     []float64{1, 2, 3, 4},
			percentile: 0.5,
			want:       2.5,
		},
		{
			name:       "median of odd count is exact",
			sorted:     []float64{10, 20, 30},
			percentile: 0.5,
			want:       20,
		},
		{
			name:       "33rd percentile of four values",
			sorted:     []float64{1, 2, 3, 4},
			percentile: 0.33,
			want:       1.99, // rank 0.99 between 1 and 2
		},
		{
			name:       "66th percentile of four values",
			sorted:     []float64{1, 2, 3, 4},
			percentile: 0.66,
			want:       2.98, // rank 1.98 between 2 and 3
		},
		{
			name:       "exact rank needs no interpolation",
			sorted:     []float64{1, 2, 3, 4, 5},
			percentile: 0.25,
			want:       2, // rank 1.0 lands on the second value
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := percentileValue(tt.sorted, tt.percentile)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestSortedCopy(t *testing.T) {
	values := []float64{3, 1, 2}

	sorted := sortedCopy(values)

	assert.Equal(t, []float64{1, 2, 3}, sorted)
	assert.Equal(t, []float64{3, 1, 2}, values, "input must not be mutated")
}
