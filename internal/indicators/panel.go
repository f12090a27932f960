package indicators

import (
	"fmt"
	"sort"

	"sbpcli/internal/errors"
	"sbpcli/pkg/contracts/domain"
)

// cellKey addresses one wide-table column: a (category, indicator) pair.
type cellKey struct {
	category  string
	indicator string
}

// Panel is the pivoted wide table built from raw balance records: for
// every period key, the sum of each (category, indicator) line item
// seen in that period. Absent pairs read as 0 through Get; absence is
// an expected condition, not an error.
type Panel struct {
	cells map[domain.PeriodKey]map[cellKey]float64
	// coerced counts records whose value was unparsable and entered the
	// panel as a 0-contribution.
	coerced int
}

// BuildPanel pivots raw records into a Panel. Records are grouped by
// period key and (category, indicator); duplicate line items accumulate
// by summation. A record flagged ValueMissing registers its period key
// but adds nothing to the sums.
//
// Every record must be structurally sound (non-empty bank group,
// plausible year, month 1-12). The first malformed record aborts the
// build with a validation error naming it; malformed input is the one
// fatal condition of the pivot.
func BuildPanel(records []domain.BalanceRecord) (*Panel, error) {
	panel := &Panel{cells: make(map[domain.PeriodKey]map[cellKey]float64)}

	for i := range records {
		record := &records[i]
		if err := domain.ValidateBalanceRecord(record); err != nil {
			return nil, errors.NewAppValidationError(
				fmt.Sprintf("malformed balance record at index %d (%s/%s)", i, record.Category, record.Indicator), err)
		}

		key := record.Key()
		bucket, ok := panel.cells[key]
		if !ok {
			bucket = make(map[cellKey]float64)
			panel.cells[key] = bucket
		}

		if record.ValueMissing {
			panel.coerced++
			continue
		}
		bucket[cellKey{category: record.Category, indicator: record.Indicator}] += record.Value
	}

	return panel, nil
}

// Get returns the summed value of the (category, indicator) line item
// for the period, or 0 when the pair is absent. This is the safe-get
// accessor every downstream ratio is built on.
func (p *Panel) Get(key domain.PeriodKey, category, indicator string) float64 {
	return p.cells[key][cellKey{category: category, indicator: indicator}]
}

// CategorySum returns the sum of every line item present under the
// category for the period, or 0 when the category is entirely absent.
func (p *Panel) CategorySum(key domain.PeriodKey, category string) float64 {
	var total float64
	for cell, value := range p.cells[key] {
		if cell.category == category {
			total += value
		}
	}
	return total
}

// Keys returns every period key in the panel sorted by bank group,
// year, month. The sort keeps engine output deterministic across runs.
func (p *Panel) Keys() []domain.PeriodKey {
	keys := make([]domain.PeriodKey, 0, len(p.cells))
	for key := range p.cells {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		return keys[i].Less(keys[j])
	})
	return keys
}

// Len returns the number of distinct period keys.
func (p *Panel) Len() int {
	return len(p.cells)
}

// CoercedCount returns how many records entered the panel with a
// missing value.
func (p *Panel) CoercedCount() int {
	return p.coerced
}
