package dataprocessing

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"sbpcli/internal/errors"
	"sbpcli/pkg/contracts/domain"
)

// Sheet names the SBP balance workbooks have shipped with over the
// years. Tried in order before falling back to a header scan.
var preferredSheetNames = []string{"Balance", "Balance de Bancos", "Datos", "Data", "Hoja1", "Sheet1"}

// WorkbookReport carries the records parsed from one source file plus
// ingest diagnostics.
type WorkbookReport struct {
	SourceFile    string
	SheetName     string
	Records       []domain.BalanceRecord
	SkippedRows   int
	CoercedValues int
}

// Parser reads SBP balance-sheet workbooks into long-format balance
// records. The workbook layout is one row per line item with the six
// columns Subgrupo, Categoría, Indicador, Año, Mes, Valor; the header
// row is located dynamically so column order and extra leading rows do
// not matter.
type Parser struct {
	logger *slog.Logger
}

// NewParser creates a workbook parser. A nil logger falls back to
// slog.Default.
func NewParser(logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Parser{logger: logger}
}

// ParseFile reads one SBP workbook and extracts every balance record.
// Rows without a complete period key (section headers, totals, blank
// filler) are skipped and counted; value cells that fail numeric
// parsing produce records flagged ValueMissing rather than aborting.
func (p *Parser) ParseFile(ctx context.Context, filePath string) (*WorkbookReport, error) {
	f, err := excelize.OpenFile(filePath)
	if err != nil {
		return nil, errors.NewParsingError(fmt.Sprintf("failed to open workbook %s", filepath.Base(filePath)), err)
	}
	defer f.Close()

	rows, sheetName, err := p.findDataSheet(f)
	if err != nil {
		return nil, err
	}

	report := &WorkbookReport{SourceFile: filePath, SheetName: sheetName}
	if err := p.parseGrid(ctx, rows, report); err != nil {
		return nil, err
	}

	p.logger.InfoContext(ctx, "parsed balance workbook",
		slog.String("file", filepath.Base(filePath)),
		slog.String("sheet", sheetName),
		slog.Int("record_count", len(report.Records)),
		slog.Int("skipped_rows", report.SkippedRows),
		slog.Int("coerced_values", report.CoercedValues))

	return report, nil
}

// findDataSheet returns the rows of the sheet holding the balance data:
// a preferred name when present, otherwise the first sheet whose early
// rows contain the expected headers.
func (p *Parser) findDataSheet(f *excelize.File) ([][]string, string, error) {
	for _, name := range preferredSheetNames {
		if rows, err := f.GetRows(name); err == nil && len(rows) > 1 {
			return rows, name, nil
		}
	}

	for _, name := range f.GetSheetList() {
		rows, err := f.GetRows(name)
		if err != nil || len(rows) < 2 {
			continue
		}
		scan := rows
		if len(scan) > 10 {
			scan = scan[:10]
		}
		for _, row := range scan {
			if _, ok := detectHeader(row); ok {
				return rows, name, nil
			}
		}
	}

	return nil, "", errors.NewParsingError("could not find balance data sheet in workbook", nil)
}

// parseGrid converts a raw cell grid into balance records, appending to
// the report. The grid must contain a header row with the six source
// columns.
func (p *Parser) parseGrid(ctx context.Context, rows [][]string, report *WorkbookReport) error {
	headerRow := -1
	var cols columnMap
	for i, row := range rows {
		if mapped, ok := detectHeader(row); ok {
			headerRow = i
			cols = mapped
			break
		}
	}
	if headerRow == -1 {
		return errors.NewParsingError("could not find header row with Subgrupo/Categoria/Indicador/Anio/Mes/Valor columns", nil)
	}

	for i := headerRow + 1; i < len(rows); i++ {
		record, outcome := buildRecord(rows[i], cols)
		switch outcome {
		case rowOK:
			if record.ValueMissing {
				report.CoercedValues++
			}
			report.Records = append(report.Records, record)
		case rowSkipped:
			report.SkippedRows++
		}
	}

	if len(report.Records) == 0 {
		return errors.NewParsingError("no balance records found after header row", nil)
	}
	return nil
}

// columnMap locates the six source columns within the header row.
type columnMap struct {
	bank      int
	category  int
	indicator int
	year      int
	month     int
	value     int
}

// detectHeader reports whether a row is the balance header and where
// each column sits. Matching is case- and accent-insensitive so
// "Categoría" and "categoria" both resolve.
func detectHeader(row []string) (columnMap, bool) {
	cols := columnMap{bank: -1, category: -1, indicator: -1, year: -1, month: -1, value: -1}
	for i, cell := range row {
		switch header := normalizeHeader(cell); {
		case header == "subgrupo" || header == "banco" || header == "bank":
			cols.bank = i
		case strings.HasPrefix(header, "categor"):
			cols.category = i
		case strings.HasPrefix(header, "indicador") || header == "indicator":
			cols.indicator = i
		case header == "ano" || header == "anio" || header == "year":
			cols.year = i
		case header == "mes" || header == "month":
			cols.month = i
		case header == "valor" || header == "value":
			cols.value = i
		}
	}
	found := cols.bank >= 0 && cols.category >= 0 && cols.indicator >= 0 &&
		cols.year >= 0 && cols.month >= 0 && cols.value >= 0
	return cols, found
}

// normalizeHeader lowercases, trims, and strips the accented characters
// seen in the source headers. A leading byte-order mark is dropped so
// CSV exports saved as UTF-8 with BOM still match.
func normalizeHeader(header string) string {
	header = strings.TrimPrefix(header, "\uFEFF")
	header = strings.ToLower(strings.TrimSpace(header))
	replacer := strings.NewReplacer("á", "a", "é", "e", "í", "i", "ó", "o", "ú", "u", "ñ", "n")
	return replacer.Replace(header)
}

type rowOutcome int

const (
	rowOK rowOutcome = iota
	rowSkipped
)

// buildRecord converts one data row into a balance record. Rows missing
// any period key component (blank filler, section totals) are skipped;
// an unparsable value yields a record flagged ValueMissing.
func buildRecord(row []string, cols columnMap) (domain.BalanceRecord, rowOutcome) {
	get := func(idx int) string {
		if idx >= 0 && idx < len(row) {
			return strings.TrimSpace(row[idx])
		}
		return ""
	}

	bank := get(cols.bank)
	category := get(cols.category)
	indicator := get(cols.indicator)
	if bank == "" || category == "" || indicator == "" {
		return domain.BalanceRecord{}, rowSkipped
	}

	year, err := strconv.Atoi(get(cols.year))
	if err != nil {
		return domain.BalanceRecord{}, rowSkipped
	}
	month, err := ParseMonth(get(cols.month))
	if err != nil {
		return domain.BalanceRecord{}, rowSkipped
	}

	record := domain.BalanceRecord{
		BankGroupID: bank,
		Category:    category,
		Indicator:   indicator,
		Year:        year,
		Month:       month,
	}

	value, ok := ParseValue(get(cols.value))
	if !ok {
		record.ValueMissing = true
	} else {
		record.Value = value
	}
	return record, rowOK
}

// monthNames maps the Spanish and English month names that appear in
// the source data to their numbers.
var monthNames = map[string]int{
	"enero": 1, "febrero": 2, "marzo": 3, "abril": 4, "mayo": 5,
	"junio": 6, "julio": 7, "agosto": 8, "septiembre": 9, "setiembre": 9,
	"octubre": 10, "noviembre": 11, "diciembre": 12,
	"january": 1, "february": 2, "march": 3, "april": 4, "may": 5,
	"june": 6, "july": 7, "august": 8, "september": 9,
	"october": 10, "november": 11, "december": 12,
}

// ParseMonth normalizes a month cell: a number 1-12 or a Spanish or
// English month name.
func ParseMonth(cell string) (int, error) {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return 0, fmt.Errorf("empty month cell")
	}

	if month, err := strconv.Atoi(cell); err == nil {
		if month < 1 || month > 12 {
			return 0, fmt.Errorf("month %d out of range", month)
		}
		return month, nil
	}

	if month, ok := monthNames[normalizeHeader(cell)]; ok {
		return month, nil
	}
	return 0, fmt.Errorf("unrecognized month %q", cell)
}

// ParseValue interprets a value cell as a float. Thousands separators
// are stripped and accounting parentheses negate; anything else that
// fails to parse reports ok=false, marking the value missing rather
// than zero.
func ParseValue(cell string) (float64, bool) {
	cell = strings.TrimSpace(cell)
	if cell == "" || cell == "-" {
		return 0, false
	}

	negative := false
	if strings.HasPrefix(cell, "(") && strings.HasSuffix(cell, ")") {
		negative = true
		cell = cell[1 : len(cell)-1]
	}
	cell = strings.ReplaceAll(cell, ",", "")

	value, err := strconv.ParseFloat(cell, 64)
	if err != nil {
		return 0, false
	}
	if negative {
		value = -value
	}
	return value, true
}
