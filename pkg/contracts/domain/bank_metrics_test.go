package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsValidClassification(t *testing.T) {
	for _, label := range ValidClassifications {
		assert.True(t, IsValidClassification(label), label)
	}

	assert.False(t, IsValidClassification(""))
	assert.False(t, IsValidClassification("Stellar performance"))
	assert.False(t, IsValidClassification("low performance"))
}

func TestBankMetricsKey(t *testing.T) {
	m := BankMetrics{Bank: "BNP", Year: 2023, Month: 6}
	assert.Equal(t, PeriodKey{BankGroupID: "BNP", Year: 2023, Month: 6}, m.Key())
}

func TestFloat(t *testing.T) {
	p := Float(0.125)
	assert.NotNil(t, p)
	assert.Equal(t, 0.125, *p)

	// Each call yields an independent pointer.
	q := Float(0.125)
	assert.NotSame(t, p, q)
}

func TestBankMetricsFilterMatches(t *testing.T) {
	row := BankMetrics{
		Bank:           "Banco General",
		Year:           2023,
		Month:          6,
		Classification: ClassificationHigh,
	}

	tests := []struct {
		name    string
		filter  BankMetricsFilter
		matches bool
	}{
		{
			name:    "empty filter matches everything",
			filter:  BankMetricsFilter{},
			matches: true,
		},
		{
			name:    "bank match",
			filter:  BankMetricsFilter{Banks: []string{"Banco General"}},
			matches: true,
		},
		{
			name:    "bank match within list",
			filter:  BankMetricsFilter{Banks: []string{"BNP", "Banco General"}},
			matches: true,
		},
		{
			name:    "bank mismatch",
			filter:  BankMetricsFilter{Banks: []string{"BNP"}},
			matches: false,
		},
		{
			name:    "year match",
			filter:  BankMetricsFilter{Year: 2023},
			matches: true,
		},
		{
			name:    "year mismatch",
			filter:  BankMetricsFilter{Year: 2024},
			matches: false,
		},
		{
			name:    "month mismatch",
			filter:  BankMetricsFilter{Month: 7},
			matches: false,
		},
		{
			name:    "classification match",
			filter:  BankMetricsFilter{Classification: ClassificationHigh},
			matches: true,
		},
		{
			name:    "classification mismatch",
			filter:  BankMetricsFilter{Classification: ClassificationLow},
			matches: false,
		},
		{
			name: "all constraints must hold",
			filter: BankMetricsFilter{
				Banks:          []string{"Banco General"},
				Year:           2023,
				Month:          6,
				Classification: ClassificationMedium,
			},
			matches: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.matches, tt.filter.Matches(&row))
		})
	}
}
