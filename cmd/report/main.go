package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strconv"

	"sbpcli/internal/config"
	"sbpcli/pkg/contracts/domain"
)

// ratioColumns are the nullable artifact columns counted for the null
// summaries, in contract order.
var ratioColumns = []string{
	"ROA",
	"Leverage",
	"ROE",
	"liquidity_ratio",
	"deposit_diversity",
	"deposit_view_to_plazo",
	"coverage_ratio",
	"leverage_ratio_extra",
	"capitalization_ratio",
	"adjusted_ROE",
}

// indicatorRow is the slice of one artifact row this report needs:
// the period key, the classified ROE, and how many ratio cells were
// undefined.
type indicatorRow struct {
	Bank           string
	Year           int
	Month          int
	ROE            *float64
	Classification string
	NullRatios     int
}

func main() {
	inPath := flag.String("in", "", "indicators csv artifact (defaults to data/reports/indicators/financials_processed.csv)")
	flag.Parse()

	// Initialize paths
	paths, err := config.GetPaths()
	if err != nil {
		slog.Error("Failed to initialize paths", "error", err)
		os.Exit(1)
	}

	if *inPath == "" {
		*inPath = paths.IndicatorsCSV
	}

	slog.Info("Loading indicator artifact", "path", *inPath)

	if _, err := os.Stat(*inPath); os.IsNotExist(err) {
		slog.Error("Indicator artifact not found",
			"path", *inPath,
			"hint", "Run processor first to generate indicators")
		os.Exit(1)
	}

	rows, err := loadIndicatorRows(*inPath)
	if err != nil {
		slog.Error("Failed to load indicator artifact", "error", err)
		os.Exit(1)
	}
	if len(rows) == 0 {
		slog.Error("No indicator rows found in artifact",
			"path", *inPath,
			"hint", "Check if processor generated valid data")
		os.Exit(1)
	}

	slog.Info("Loaded indicator rows", "rows", len(rows))

	printBankSummary(os.Stdout, rows)
	printClassificationSummary(os.Stdout, rows)
}

// loadIndicatorRows reads the artifact rows from csvPath.
func loadIndicatorRows(csvPath string) ([]indicatorRow, error) {
	file, err := os.Open(csvPath)
	if err != nil {
		return nil, fmt.Errorf("open indicators csv: %w", err)
	}
	defer file.Close()

	return parseIndicatorRows(file)
}

// parseIndicatorRows decodes artifact rows from r. Columns are located
// by header name so reordered exports still load; rows with a broken
// period key are skipped.
func parseIndicatorRows(r io.Reader) ([]indicatorRow, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	idx := make(map[string]int, len(header))
	for i, col := range header {
		idx[col] = i
	}
	for _, col := range []string{"Bank", "Year", "Month", "ROE", "classification"} {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("missing column %q in indicators csv", col)
		}
	}

	cell := func(record []string, col string) (string, bool) {
		i, ok := idx[col]
		if !ok || i >= len(record) {
			return "", false
		}
		return record[i], true
	}

	var rows []indicatorRow
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}

		bank, _ := cell(record, "Bank")
		yearStr, _ := cell(record, "Year")
		monthStr, _ := cell(record, "Month")

		year, yearErr := strconv.Atoi(yearStr)
		month, monthErr := strconv.Atoi(monthStr)
		if bank == "" || yearErr != nil || monthErr != nil {
			continue // skip rows without a usable period key
		}

		row := indicatorRow{Bank: bank, Year: year, Month: month}

		if v, ok := cell(record, "ROE"); ok && v != "" {
			if roe, err := strconv.ParseFloat(v, 64); err == nil {
				row.ROE = &roe
			}
		}
		if v, ok := cell(record, "classification"); ok {
			row.Classification = v
		}
		for _, col := range ratioColumns {
			if v, ok := cell(record, col); ok && v == "" {
				row.NullRatios++
			}
		}

		rows = append(rows, row)
	}

	return rows, nil
}

// summary aggregates indicator rows for one bank or one tier.
type summary struct {
	Rows      int
	ROESum    float64
	ROECount  int
	NullCells int
}

func (s *summary) add(row indicatorRow) {
	s.Rows++
	s.NullCells += row.NullRatios
	if row.ROE != nil {
		s.ROESum += *row.ROE
		s.ROECount++
	}
}

// meanROE returns the average of the defined ROE values; ok is false
// when every row's ROE was undefined.
func (s *summary) meanROE() (float64, bool) {
	if s.ROECount == 0 {
		return 0, false
	}
	return s.ROESum / float64(s.ROECount), true
}

// formatMean renders a mean ROE cell, with n/a for all-null groups.
func formatMean(s *summary) string {
	mean, ok := s.meanROE()
	if !ok {
		return "       n/a"
	}
	return fmt.Sprintf("%10.6f", mean)
}

// printBankSummary renders one line per bank, ordered by mean ROE
// descending with all-null banks last.
func printBankSummary(w io.Writer, rows []indicatorRow) {
	byBank := make(map[string]*summary)
	for _, row := range rows {
		s, ok := byBank[row.Bank]
		if !ok {
			s = &summary{}
			byBank[row.Bank] = s
		}
		s.add(row)
	}

	banks := make([]string, 0, len(byBank))
	for bank := range byBank {
		banks = append(banks, bank)
	}
	sort.Slice(banks, func(i, j int) bool {
		mi, oki := byBank[banks[i]].meanROE()
		mj, okj := byBank[banks[j]].meanROE()
		if oki != okj {
			return oki
		}
		if mi != mj {
			return mi > mj
		}
		return banks[i] < banks[j]
	})

	fmt.Fprintf(w, "\n=== PER-BANK SUMMARY (%d banks, %d rows) ===\n", len(banks), len(rows))
	fmt.Fprintln(w, "Bank                           | Rows | Mean ROE   | Null cells")
	fmt.Fprintln(w, "-------------------------------|------|------------|-----------")
	for _, bank := range banks {
		s := byBank[bank]
		fmt.Fprintf(w, "%-30s | %4d | %s | %10d\n", bank, s.Rows, formatMean(s), s.NullCells)
	}
}

// printClassificationSummary renders one line per performance tier in
// the contract label order.
func printClassificationSummary(w io.Writer, rows []indicatorRow) {
	byTier := make(map[string]*summary)
	for _, row := range rows {
		s, ok := byTier[row.Classification]
		if !ok {
			s = &summary{}
			byTier[row.Classification] = s
		}
		s.add(row)
	}

	fmt.Fprintln(w, "\n=== PER-CLASSIFICATION SUMMARY ===")
	fmt.Fprintln(w, "Classification        | Rows | Mean ROE   | Null cells")
	fmt.Fprintln(w, "----------------------|------|------------|-----------")
	for _, label := range domain.ValidClassifications {
		s, ok := byTier[label]
		if !ok {
			s = &summary{}
		}
		fmt.Fprintf(w, "%-21s | %4d | %s | %10d\n", label, s.Rows, formatMean(s), s.NullCells)
	}
}
