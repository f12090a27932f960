// Package indicators implements the SBP balance-sheet indicator engine.
//
// The engine turns raw long-format line items (one record per bank
// group, category, indicator, and month) into one derived metrics row
// per (bank, year, month): the DuPont decomposition (ROA, Leverage,
// ROE), a quantile classification of ROE, and seven secondary soundness
// ratios.
//
// # Stages
//
// The computation is a single pass with internal stages:
//
//  1. Pivot: group records by period key and (category, indicator),
//     summing duplicate line items (panel.go).
//  2. Core metrics: pull the six Patrimonio items through the safe-get
//     accessor and derive equity as the five-term sum.
//  3. Primary ratios: ROA, Leverage, ROE with nil on zero denominators.
//  4. Classification: 33rd/66th-percentile thresholds over all non-nil
//     ROE values with linear interpolation (quantile.go); ties fall
//     into the lower tier.
//  5. Secondary ratios: liquidity, deposit mix, coverage, extra
//     leverage, capitalization, provision-adjusted ROE.
//  6. Assembly: rows sorted by (bank, year, month).
//
// # Absence and undefined values
//
// A (category, indicator) pair absent from a period is an expected
// condition and reads as 0 through Panel.Get. A ratio whose denominator
// is exactly zero is undefined and carried as a nil *float64, never a
// coerced zero and never an error. Records whose value could not be
// parsed register their period but contribute nothing to the sums.
//
// # Usage
//
//	engine := indicators.NewEngine(logger, indicators.DefaultEngineConfig())
//	result, err := engine.ComputeFromRecords(ctx, records)
//	if err != nil {
//	    return err
//	}
//	for _, row := range result.Metrics {
//	    fmt.Println(row.Bank, row.Year, row.Month, row.Classification)
//	}
//
// The engine keeps no state between invocations; it is a pure function
// of its input and safe to call concurrently.
package indicators
