package domain

import (
	"time"
)

// Classification labels assigned to each observation from the
// dataset-wide ROE quantiles. These exact strings are part of the
// artifact contract consumed by the downstream trainer and dashboard.
const (
	ClassificationLow     = "Low performance"
	ClassificationMedium  = "Medium performance"
	ClassificationHigh    = "High performance"
	ClassificationUnknown = "Unknown"
)

// BankMetrics represents the Single Source of Truth (SSOT) for one
// derived indicator row: every financial soundness metric for a single
// (bank, year, month) observation. The indicator engine is the only
// producer; exporters, the HTTP API, and downstream consumers must use
// this structure unchanged.
//
// Nullability: every ratio field is a *float64. A nil pointer means the
// ratio is undefined for this observation (its denominator was exactly
// zero, or an input ratio was itself undefined). Undefined is a valid,
// expected state — it serializes as JSON null and as an empty CSV cell,
// never as zero.
type BankMetrics struct {
	// === PERIOD KEY (output grain, unique per row) ===

	// Bank is the reporting bank group (source "Subgrupo").
	Bank string `json:"bank" csv:"Bank" validate:"required"`

	// Year is the reporting year.
	Year int `json:"year" csv:"Year" validate:"required,min=1990,max=2100"`

	// Month is the reporting month 1-12.
	Month int `json:"month" csv:"Month" validate:"required,min=1,max=12"`

	// === CORE BALANCE FIGURES (thousands of balboas, absent items count 0) ===

	// NetIncome is Patrimonio / Utilidad De Periodo.
	NetIncome float64 `json:"net_income" csv:"net_income"`

	// TotalAssets is Patrimonio / Pasivo Y Patrimonio, the balance-sheet
	// total (assets = liabilities + equity).
	TotalAssets float64 `json:"total_assets" csv:"total_assets"`

	// Equity is always the five-term sum capital + other reserves +
	// prior-period net income + securities mark-to-market + net income.
	// It is never read from a single source line item.
	Equity float64 `json:"equity" csv:"equity"`

	// === DUPONT DECOMPOSITION ===

	// ROA is NetIncome / TotalAssets; nil when TotalAssets == 0.
	ROA *float64 `json:"roa" csv:"ROA"`

	// Leverage is TotalAssets / Equity; nil when Equity == 0.
	Leverage *float64 `json:"leverage" csv:"Leverage"`

	// ROE is ROA × Leverage; nil when either factor is nil.
	ROE *float64 `json:"roe" csv:"ROE"`

	// Classification is the quantile tier of ROE across the whole
	// dataset: one of the Classification* constants. Rows with nil ROE
	// carry ClassificationUnknown.
	Classification string `json:"classification" csv:"classification" validate:"required"`

	// === SECONDARY SOUNDNESS RATIOS (each independently nil on a zero denominator) ===

	// LiquidityRatio is Σ(Activos Liquidos) / Σ(Depositos), both sums
	// taken over every indicator present under the category.
	LiquidityRatio *float64 `json:"liquidity_ratio" csv:"liquidity_ratio"`

	// DepositDiversity is Depositos/De Particulares over Depositos/De Bancos.
	DepositDiversity *float64 `json:"deposit_diversity" csv:"deposit_diversity"`

	// DepositViewToPlazo is Depositos/A La Vista over Depositos/A Plazo.
	DepositViewToPlazo *float64 `json:"deposit_view_to_plazo" csv:"deposit_view_to_plazo"`

	// CoverageRatio is Cartera Crediticia/Menos Provisiones over the
	// domestic + foreign credit portfolio.
	CoverageRatio *float64 `json:"coverage_ratio" csv:"coverage_ratio"`

	// LeverageRatioExtra is (Obligaciones + Otros Pasivos, domestic and
	// foreign) / Equity.
	LeverageRatioExtra *float64 `json:"leverage_ratio_extra" csv:"leverage_ratio_extra"`

	// CapitalizationRatio is Equity / TotalAssets.
	CapitalizationRatio *float64 `json:"capitalization_ratio" csv:"capitalization_ratio"`

	// AdjustedROE is ROE × Locales / (Locales − Menos Provisiones
	// Locales); nil when that denominator is zero or ROE is nil.
	AdjustedROE *float64 `json:"adjusted_roe" csv:"adjusted_ROE"`
}

// BankMetricsColumns is the exact column order of the exported flat
// artifact. Downstream consumers index by these names; the order is a
// contract and must not change.
var BankMetricsColumns = []string{
	"Bank",
	"Year",
	"Month",
	"net_income",
	"total_assets",
	"equity",
	"ROA",
	"Leverage",
	"ROE",
	"classification",
	"liquidity_ratio",
	"deposit_diversity",
	"deposit_view_to_plazo",
	"coverage_ratio",
	"leverage_ratio_extra",
	"capitalization_ratio",
	"adjusted_ROE",
}

// ValidClassifications enumerates every label the engine may assign.
var ValidClassifications = []string{
	ClassificationLow,
	ClassificationMedium,
	ClassificationHigh,
	ClassificationUnknown,
}

// IsValidClassification reports whether label is one of the four
// assignable classification strings.
func IsValidClassification(label string) bool {
	for _, valid := range ValidClassifications {
		if label == valid {
			return true
		}
	}
	return false
}

// Key returns the row's period key.
func (m *BankMetrics) Key() PeriodKey {
	return PeriodKey{BankGroupID: m.Bank, Year: m.Year, Month: m.Month}
}

// Float returns a pointer to v. Convenience constructor for the
// nullable ratio fields, mirroring how the engine and tests build rows.
func Float(v float64) *float64 {
	return &v
}

// ClassificationThresholds carries the dataset-wide ROE quantile cut
// points used for a run. Exposed through run metadata so consumers can
// see where the tier boundaries fell.
type ClassificationThresholds struct {
	// Lower is the 33rd-percentile ROE (ties classify downward).
	Lower float64 `json:"lower"`

	// Upper is the 66th-percentile ROE.
	Upper float64 `json:"upper"`

	// SampleCount is the number of non-null ROE observations the
	// quantiles were computed from. When below the engine minimum both
	// thresholds default to zero.
	SampleCount int `json:"sample_count"`

	// Defaulted is true when SampleCount was insufficient and the
	// (0, 0) fallback thresholds were used.
	Defaulted bool `json:"defaulted"`
}

// BankMetricsFilter selects rows from a computed indicator table.
// Zero values mean "no constraint".
type BankMetricsFilter struct {
	// Banks filters by bank group name, exact match, any of.
	Banks []string `json:"banks,omitempty"`

	// Year filters to a single reporting year.
	Year int `json:"year,omitempty" validate:"omitempty,min=1990,max=2100"`

	// Month filters to a single reporting month.
	Month int `json:"month,omitempty" validate:"omitempty,min=1,max=12"`

	// Classification filters by tier label.
	Classification string `json:"classification,omitempty"`

	// Limit caps the number of rows returned; 0 means no cap.
	Limit int `json:"limit,omitempty" validate:"omitempty,min=1,max=10000"`

	// Offset skips rows for pagination.
	Offset int `json:"offset,omitempty" validate:"omitempty,min=0"`
}

// Matches reports whether a row satisfies the filter's constraints
// (ignoring Limit/Offset, which are applied by the caller).
func (f *BankMetricsFilter) Matches(m *BankMetrics) bool {
	if len(f.Banks) > 0 {
		found := false
		for _, bank := range f.Banks {
			if m.Bank == bank {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.Year != 0 && m.Year != f.Year {
		return false
	}
	if f.Month != 0 && m.Month != f.Month {
		return false
	}
	if f.Classification != "" && m.Classification != f.Classification {
		return false
	}
	return true
}

// BankMetricsResponse is the paginated API payload for indicator
// queries.
type BankMetricsResponse struct {
	// Metrics contains the matching rows after pagination.
	Metrics []BankMetrics `json:"metrics"`

	// TotalCount is the number of rows matching the filter before
	// pagination.
	TotalCount int `json:"total_count"`

	// Limit and Offset echo the applied pagination.
	Limit  int `json:"limit"`
	Offset int `json:"offset"`

	// GeneratedAt is when this response was assembled.
	GeneratedAt time.Time `json:"generated_at"`
}

// RunMetadata describes one pipeline run: provenance for the exported
// artifact, written alongside it and served by the API.
type RunMetadata struct {
	// RunID is the unique identifier assigned to the run.
	RunID string `json:"run_id"`

	// GeneratedAt is the artifact creation time.
	GeneratedAt time.Time `json:"generated_at"`

	// SourceFiles lists the raw inputs the records came from.
	SourceFiles []string `json:"source_files"`

	// RecordCount is the number of structurally valid raw records
	// ingested (coerced-missing values included).
	RecordCount int `json:"record_count"`

	// CoercedValues counts raw cells whose value text was unparsable
	// and entered the pivot as missing.
	CoercedValues int `json:"coerced_values"`

	// PeriodCount is the number of derived rows (unique period keys).
	PeriodCount int `json:"period_count"`

	// Thresholds are the classification cut points used.
	Thresholds ClassificationThresholds `json:"thresholds"`

	// NullRatios counts nil cells per ratio column, keyed by the
	// artifact column name.
	NullRatios map[string]int `json:"null_ratios,omitempty"`
}
