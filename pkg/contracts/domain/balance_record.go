package domain

import (
	"fmt"
	"strings"
)

// BalanceRecord represents the Single Source of Truth (SSOT) for one raw
// balance-sheet line item as published by the Superintendencia de Bancos
// de Panamá (SBP). Every ingestion path (workbook parser, CSV reader,
// API upload) must produce this structure; the indicator engine consumes
// it unchanged.
//
// The record is long-format: one row per (bank group, category,
// indicator, period) with a single numeric value. Category and Indicator
// are free-form identifier strings taken verbatim from the source data
// (Spanish line-item names such as "Patrimonio" / "Utilidad De Periodo").
// The set of pairs is open: downstream consumers must never assume a
// fixed vocabulary.
//
// Usage:
//
//	record := domain.BalanceRecord{
//	    BankGroupID: "Banco General",
//	    Category:    "Patrimonio",
//	    Indicator:   "Utilidad De Periodo",
//	    Year:        2023,
//	    Month:       4,
//	    Value:       152_340.500,
//	}
type BalanceRecord struct {
	// BankGroupID identifies the reporting bank group (source column
	// "Subgrupo"). Non-empty, taken verbatim from the source.
	BankGroupID string `json:"bank_group_id" csv:"Subgrupo" validate:"required,min=1,max=255"`

	// Category is the balance-sheet section the line item belongs to
	// (source column "Categoría"), e.g. "Patrimonio", "Depositos",
	// "Cartera Crediticia".
	Category string `json:"category" csv:"Categoria" validate:"required,min=1,max=255"`

	// Indicator is the line item within the category (source column
	// "Indicador"), e.g. "Capital", "De Particulares", "Locales".
	Indicator string `json:"indicator" csv:"Indicador" validate:"required,min=1,max=255"`

	// Year is the reporting year (source column "Año").
	Year int `json:"year" csv:"Anio" validate:"required,min=1990,max=2100"`

	// Month is the reporting month 1-12 (source column "Mes").
	// Source cells may carry month names ("Enero", "February"); parsers
	// normalize them to the numeric form before constructing the record.
	Month int `json:"month" csv:"Mes" validate:"required,min=1,max=12"`

	// Value is the reported amount in thousands of balboas (source
	// column "Valor"). Only meaningful when ValueMissing is false.
	Value float64 `json:"value" csv:"Valor"`

	// ValueMissing marks a source cell whose text could not be parsed
	// as a number. Such records register their period in the pivot but
	// contribute nothing to aggregation sums. Missing is not zero: a
	// literal 0 in the source keeps ValueMissing false.
	ValueMissing bool `json:"value_missing,omitempty" csv:"-"`
}

// PeriodKey is the (bank, year, month) grain of the indicator output.
// Each key identifies at most one derived metrics row.
type PeriodKey struct {
	BankGroupID string `json:"bank_group_id"`
	Year        int    `json:"year"`
	Month       int    `json:"month"`
}

// Key returns the record's period key.
func (r *BalanceRecord) Key() PeriodKey {
	return PeriodKey{BankGroupID: r.BankGroupID, Year: r.Year, Month: r.Month}
}

// String renders the key in the canonical "bank/year-month" form used in
// logs and diagnostics.
func (k PeriodKey) String() string {
	return fmt.Sprintf("%s/%04d-%02d", k.BankGroupID, k.Year, k.Month)
}

// Less orders keys by bank group, then year, then month. Used for the
// deterministic output ordering of the indicator engine.
func (k PeriodKey) Less(other PeriodKey) bool {
	if k.BankGroupID != other.BankGroupID {
		return k.BankGroupID < other.BankGroupID
	}
	if k.Year != other.Year {
		return k.Year < other.Year
	}
	return k.Month < other.Month
}

// BalanceRecordValidationRules defines the structural constraints a
// record must satisfy before it may enter the pivot. A violation is a
// malformed-input condition and fails the run; it is never silently
// dropped.
var BalanceRecordValidationRules = struct {
	MinYear  int
	MaxYear  int
	MinMonth int
	MaxMonth int
}{
	MinYear:  1990,
	MaxYear:  2100,
	MinMonth: 1,
	MaxMonth: 12,
}

// ValidateBalanceRecord checks the structural integrity of a record:
// the period key components must be present and plausible. Value
// contents are NOT validated here; an unparsable value is a recoverable
// condition expressed through ValueMissing, not an error.
//
// Returns nil when the record is structurally sound, otherwise an error
// naming the offending field.
func ValidateBalanceRecord(record *BalanceRecord) error {
	if record == nil {
		return fmt.Errorf("balance record cannot be nil")
	}
	if strings.TrimSpace(record.BankGroupID) == "" {
		return fmt.Errorf("bank group id is required")
	}
	if strings.TrimSpace(record.Category) == "" {
		return fmt.Errorf("category is required")
	}
	if strings.TrimSpace(record.Indicator) == "" {
		return fmt.Errorf("indicator is required")
	}
	if record.Year < BalanceRecordValidationRules.MinYear || record.Year > BalanceRecordValidationRules.MaxYear {
		return fmt.Errorf("year %d outside plausible range %d-%d",
			record.Year, BalanceRecordValidationRules.MinYear, BalanceRecordValidationRules.MaxYear)
	}
	if record.Month < BalanceRecordValidationRules.MinMonth || record.Month > BalanceRecordValidationRules.MaxMonth {
		return fmt.Errorf("month %d outside range %d-%d",
			record.Month, BalanceRecordValidationRules.MinMonth, BalanceRecordValidationRules.MaxMonth)
	}
	return nil
}

// Line-item coordinates used by the indicator engine. Values are the
// verbatim category/indicator strings from the SBP publication; they
// live here so every component references one vocabulary.
const (
	CategoryEquity           = "Patrimonio"
	CategoryLiquidAssets     = "Activos Liquidos"
	CategoryDeposits         = "Depositos"
	CategoryCreditPortfolio  = "Cartera Crediticia"
	CategoryObligations      = "Obligaciones"
	CategoryOtherLiabilities = "Otros Pasivos"

	IndicatorNetIncome         = "Utilidad De Periodo"
	IndicatorTotalAssets       = "Pasivo Y Patrimonio"
	IndicatorCapital           = "Capital"
	IndicatorOtherReserves     = "Otras Reservas"
	IndicatorPriorNetIncome    = "Utilidad De Periodos Anteriores"
	IndicatorSecuritiesGain    = "Ganancia O Perdida En Valores Disponible Para La Venta"
	IndicatorRetailDeposits    = "De Particulares"
	IndicatorInterbankDeposits = "De Bancos"
	IndicatorDemandDeposits    = "A La Vista"
	IndicatorTermDeposits      = "A Plazo"
	IndicatorDomestic          = "Locales"
	IndicatorForeign           = "Extranjero"
	IndicatorProvisions        = "Menos Provisiones"
	IndicatorLocalProvisions   = "Menos Provisiones Locales"
)
