package indicators

import (
	"context"
	"log/slog"

	"sbpcli/pkg/contracts/domain"
)

// EngineConfig holds the tunable parameters of the indicator engine.
type EngineConfig struct {
	// LowerQuantile and UpperQuantile are the dataset-wide ROE
	// percentile cut points separating the performance tiers.
	LowerQuantile float64
	UpperQuantile float64

	// MinQuantileSamples is the smallest number of non-nil ROE values
	// for which quantile thresholds are computed; below it both
	// thresholds default to 0 and classification proceeds with
	// degraded discrimination.
	MinQuantileSamples int
}

// DefaultEngineConfig returns the production configuration: 33rd/66th
// percentile tiers, quantiles defaulted below 3 samples.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		LowerQuantile:      0.33,
		UpperQuantile:      0.66,
		MinQuantileSamples: 3,
	}
}

// Engine is the Single Source of Truth for indicator derivation. It
// pivots raw balance records into a wide panel, extracts the core
// balance figures, derives the DuPont and secondary ratios with
// null-aware division, and classifies ROE into performance tiers.
//
// The engine holds no state between invocations and never mutates its
// input; repeated runs over identical records yield identical output.
type Engine struct {
	logger *slog.Logger
	config EngineConfig
}

// NewEngine creates an indicator engine. A nil logger falls back to
// slog.Default; zero config fields take their defaults.
func NewEngine(logger *slog.Logger, config EngineConfig) *Engine {
	if logger == nil {
		logger = slog.Default()
	}

	defaults := DefaultEngineConfig()
	if config.LowerQuantile <= 0 {
		config.LowerQuantile = defaults.LowerQuantile
	}
	if config.UpperQuantile <= 0 {
		config.UpperQuantile = defaults.UpperQuantile
	}
	if config.MinQuantileSamples <= 0 {
		config.MinQuantileSamples = defaults.MinQuantileSamples
	}

	return &Engine{logger: logger, config: config}
}

// Result carries the derived rows plus the run-level diagnostics the
// exporters record as artifact provenance.
type Result struct {
	// Metrics holds one row per period key, sorted by (bank, year,
	// month).
	Metrics []domain.BankMetrics

	// Thresholds are the ROE classification cut points used for this
	// run.
	Thresholds domain.ClassificationThresholds

	// CoercedValues counts input records whose value was unparsable
	// and contributed nothing to the pivot sums.
	CoercedValues int
}

// ComputeFromRecords derives the full indicator table from raw balance
// records. Missing line items and zero denominators are expected
// conditions handled via 0-substitution and nil ratios; the only error
// is a structurally malformed record, which fails the run immediately.
//
// The context is used for log correlation only; the computation is
// bounded and has no cancellation points.
func (e *Engine) ComputeFromRecords(ctx context.Context, records []domain.BalanceRecord) (*Result, error) {
	e.logger.InfoContext(ctx, "deriving bank indicators",
		slog.Int("record_count", len(records)))

	if len(records) == 0 {
		return &Result{
			Metrics:    []domain.BankMetrics{},
			Thresholds: domain.ClassificationThresholds{Defaulted: true},
		}, nil
	}

	panel, err := BuildPanel(records)
	if err != nil {
		return nil, err
	}

	keys := panel.Keys()
	metrics := make([]domain.BankMetrics, 0, len(keys))
	roes := make([]float64, 0, len(keys))

	for _, key := range keys {
		row := e.deriveRow(panel, key)
		if row.ROE != nil {
			roes = append(roes, *row.ROE)
		}
		metrics = append(metrics, row)
	}

	thresholds := e.classificationThresholds(ctx, roes)
	for i := range metrics {
		metrics[i].Classification = classify(metrics[i].ROE, thresholds)
	}

	e.logger.InfoContext(ctx, "derived bank indicators",
		slog.Int("period_count", len(metrics)),
		slog.Int("roe_samples", len(roes)),
		slog.Int("coerced_values", panel.CoercedCount()),
		slog.Float64("threshold_lower", thresholds.Lower),
		slog.Float64("threshold_upper", thresholds.Upper))

	return &Result{
		Metrics:       metrics,
		Thresholds:    thresholds,
		CoercedValues: panel.CoercedCount(),
	}, nil
}

// deriveRow computes every metric for one period key. All line items
// flow through the panel's safe-get, so an absent item reads as 0 and
// only zero denominators produce nil ratios.
func (e *Engine) deriveRow(panel *Panel, key domain.PeriodKey) domain.BankMetrics {
	netIncome := panel.Get(key, domain.CategoryEquity, domain.IndicatorNetIncome)
	totalAssets := panel.Get(key, domain.CategoryEquity, domain.IndicatorTotalAssets)
	capital := panel.Get(key, domain.CategoryEquity, domain.IndicatorCapital)
	otherReserves := panel.Get(key, domain.CategoryEquity, domain.IndicatorOtherReserves)
	priorNetIncome := panel.Get(key, domain.CategoryEquity, domain.IndicatorPriorNetIncome)
	securitiesGain := panel.Get(key, domain.CategoryEquity, domain.IndicatorSecuritiesGain)

	// Equity is always the five-term sum, never a single line item.
	equity := capital + otherReserves + priorNetIncome + securitiesGain + netIncome

	roa := ratio(netIncome, totalAssets)
	leverage := ratio(totalAssets, equity)
	roe := product(roa, leverage)

	liquidAssets := panel.CategorySum(key, domain.CategoryLiquidAssets)
	totalDeposits := panel.CategorySum(key, domain.CategoryDeposits)

	retailDeposits := panel.Get(key, domain.CategoryDeposits, domain.IndicatorRetailDeposits)
	interbankDeposits := panel.Get(key, domain.CategoryDeposits, domain.IndicatorInterbankDeposits)
	demandDeposits := panel.Get(key, domain.CategoryDeposits, domain.IndicatorDemandDeposits)
	termDeposits := panel.Get(key, domain.CategoryDeposits, domain.IndicatorTermDeposits)

	domesticCredit := panel.Get(key, domain.CategoryCreditPortfolio, domain.IndicatorDomestic)
	foreignCredit := panel.Get(key, domain.CategoryCreditPortfolio, domain.IndicatorForeign)
	provisions := panel.Get(key, domain.CategoryCreditPortfolio, domain.IndicatorProvisions)
	localProvisions := panel.Get(key, domain.CategoryCreditPortfolio, domain.IndicatorLocalProvisions)

	obligations := panel.Get(key, domain.CategoryObligations, domain.IndicatorDomestic) +
		panel.Get(key, domain.CategoryObligations, domain.IndicatorForeign)
	otherLiabilities := panel.Get(key, domain.CategoryOtherLiabilities, domain.IndicatorDomestic) +
		panel.Get(key, domain.CategoryOtherLiabilities, domain.IndicatorForeign)

	return domain.BankMetrics{
		Bank:        key.BankGroupID,
		Year:        key.Year,
		Month:       key.Month,
		NetIncome:   netIncome,
		TotalAssets: totalAssets,
		Equity:      equity,
		ROA:         roa,
		Leverage:    leverage,
		ROE:         roe,

		LiquidityRatio:      ratio(liquidAssets, totalDeposits),
		DepositDiversity:    ratio(retailDeposits, interbankDeposits),
		DepositViewToPlazo:  ratio(demandDeposits, termDeposits),
		CoverageRatio:       ratio(provisions, domesticCredit+foreignCredit),
		LeverageRatioExtra:  ratio(obligations+otherLiabilities, equity),
		CapitalizationRatio: ratio(equity, totalAssets),
		AdjustedROE:         adjustedROE(roe, domesticCredit, localProvisions),
	}
}

// classificationThresholds computes the ROE quantile cut points over
// all non-nil ROE samples, defaulting both to zero below the configured
// minimum sample count.
func (e *Engine) classificationThresholds(ctx context.Context, roes []float64) domain.ClassificationThresholds {
	thresholds := domain.ClassificationThresholds{SampleCount: len(roes)}

	if len(roes) < e.config.MinQuantileSamples {
		thresholds.Defaulted = true
		e.logger.WarnContext(ctx, "insufficient ROE samples for quantile thresholds, defaulting to zero",
			slog.Int("sample_count", len(roes)),
			slog.Int("required", e.config.MinQuantileSamples))
		return thresholds
	}

	sorted := sortedCopy(roes)
	thresholds.Lower = percentileValue(sorted, e.config.LowerQuantile)
	thresholds.Upper = percentileValue(sorted, e.config.UpperQuantile)
	return thresholds
}

// classify assigns the performance tier for a ROE value. Values exactly
// equal to a threshold fall into the lower tier; nil ROE is Unknown.
func classify(roe *float64, thresholds domain.ClassificationThresholds) string {
	switch {
	case roe == nil:
		return domain.ClassificationUnknown
	case *roe <= thresholds.Lower:
		return domain.ClassificationLow
	case *roe <= thresholds.Upper:
		return domain.ClassificationMedium
	default:
		return domain.ClassificationHigh
	}
}

// ratio returns numerator/denominator, or nil when the denominator is
// exactly zero. An undefined ratio is an expected domain condition.
func ratio(numerator, denominator float64) *float64 {
	if denominator == 0 {
		return nil
	}
	value := numerator / denominator
	return &value
}

// product multiplies two nullable factors; nil propagates.
func product(a, b *float64) *float64 {
	if a == nil || b == nil {
		return nil
	}
	value := *a * *b
	return &value
}

// adjustedROE scales ROE by the domestic portfolio provision factor:
// ROE * locales / (locales - local provisions). Undefined when the
// adjusted denominator is zero or ROE itself is undefined.
func adjustedROE(roe *float64, domesticCredit, localProvisions float64) *float64 {
	denominator := domesticCredit - localProvisions
	if denominator == 0 || roe == nil {
		return nil
	}
	value := *roe * (domesticCredit / denominator)
	return &value
}
