package exporter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"sbpcli/internal/config"
	"sbpcli/pkg/contracts/domain"
)

// IndicatorsExporter writes the derived indicator artifacts: the flat
// CSV table consumed by the dashboard and trainer, a JSON mirror, and
// the run metadata document.
type IndicatorsExporter struct {
	csvWriter *CSVWriter
	logger    *slog.Logger
}

// NewIndicatorsExporter creates a new indicators exporter
func NewIndicatorsExporter(paths *config.Paths, logger *slog.Logger) *IndicatorsExporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &IndicatorsExporter{
		csvWriter: NewCSVWriter(paths, logger),
		logger:    logger,
	}
}

// ExportCSV writes the indicator table with the contract column order.
// Undefined ratios become empty cells. Rows are written in the order
// received; the engine already emits them sorted by (Bank, Year, Month).
func (e *IndicatorsExporter) ExportCSV(ctx context.Context, metrics []domain.BankMetrics, outputPath string) error {
	csvRecords := make([][]string, 0, len(metrics))
	for _, m := range metrics {
		csvRecords = append(csvRecords, metricsToCSVRow(m))
	}

	// No BOM: the artifact is read back by analysis tooling, not Excel.
	return e.csvWriter.WriteCSV(ctx, outputPath, WriteOptions{
		Headers: domain.BankMetricsColumns,
		Records: csvRecords,
	})
}

// ExportJSON writes the indicator table as a JSON array. Undefined
// ratios serialize as null.
func (e *IndicatorsExporter) ExportJSON(ctx context.Context, metrics []domain.BankMetrics, outputPath string) error {
	e.logger.InfoContext(ctx, "writing indicators json",
		slog.String("path", outputPath),
		slog.Int("row_count", len(metrics)))

	return writeJSONFile(outputPath, metrics)
}

// ExportRunMetadata writes the provenance document for a pipeline run.
func (e *IndicatorsExporter) ExportRunMetadata(ctx context.Context, meta domain.RunMetadata, outputPath string) error {
	e.logger.InfoContext(ctx, "writing run metadata",
		slog.String("path", outputPath),
		slog.String("run_id", meta.RunID))

	return writeJSONFile(outputPath, meta)
}

// ExportBalanceRecordsCSV writes raw long-format records, the combined
// input artifact re-read by later runs. Values use shortest round-trip
// formatting; missing values become empty cells. Streamed row by row:
// a full history is hundreds of thousands of records.
func (e *IndicatorsExporter) ExportBalanceRecordsCSV(ctx context.Context, records []domain.BalanceRecord, outputPath string) error {
	headers := []string{"Subgrupo", "Categoria", "Indicador", "Ano", "Mes", "Valor"}

	stream, err := e.csvWriter.CreateStreamWriter(ctx, outputPath, headers)
	if err != nil {
		return err
	}

	for i, r := range records {
		value := ""
		if !r.ValueMissing {
			value = formatValue(r.Value)
		}
		row := []string{
			r.BankGroupID,
			r.Category,
			r.Indicator,
			formatInt(r.Year),
			formatInt(r.Month),
			value,
		}
		if err := stream.WriteRecord(row); err != nil {
			stream.Close()
			return fmt.Errorf("failed to write record %d: %w", i, err)
		}
	}

	return stream.Close()
}

// metricsToCSVRow converts one indicator row into the contract column
// order.
func metricsToCSVRow(m domain.BankMetrics) []string {
	return []string{
		m.Bank,
		formatInt(m.Year),
		formatInt(m.Month),
		formatMonetary(m.NetIncome),
		formatMonetary(m.TotalAssets),
		formatMonetary(m.Equity),
		formatRatio(m.ROA),
		formatRatio(m.Leverage),
		formatRatio(m.ROE),
		m.Classification,
		formatRatio(m.LiquidityRatio),
		formatRatio(m.DepositDiversity),
		formatRatio(m.DepositViewToPlazo),
		formatRatio(m.CoverageRatio),
		formatRatio(m.LeverageRatioExtra),
		formatRatio(m.CapitalizationRatio),
		formatRatio(m.AdjustedROE),
	}
}

// NullRatioCounts tallies undefined cells per ratio column, keyed by
// artifact column name. Used for run metadata.
func NullRatioCounts(metrics []domain.BankMetrics) map[string]int {
	counts := make(map[string]int)
	add := func(column string, v *float64) {
		if v == nil {
			counts[column]++
		}
	}

	for i := range metrics {
		m := &metrics[i]
		add("ROA", m.ROA)
		add("Leverage", m.Leverage)
		add("ROE", m.ROE)
		add("liquidity_ratio", m.LiquidityRatio)
		add("deposit_diversity", m.DepositDiversity)
		add("deposit_view_to_plazo", m.DepositViewToPlazo)
		add("coverage_ratio", m.CoverageRatio)
		add("leverage_ratio_extra", m.LeverageRatioExtra)
		add("capitalization_ratio", m.CapitalizationRatio)
		add("adjusted_ROE", m.AdjustedROE)
	}
	return counts
}

// SortedNullRatioColumns returns the column names present in counts in
// deterministic order, for logging.
func SortedNullRatioColumns(counts map[string]int) []string {
	columns := make([]string, 0, len(counts))
	for column := range counts {
		columns = append(columns, column)
	}
	sort.Strings(columns)
	return columns
}

// writeJSONFile marshals v with indentation and writes the file.
func writeJSONFile(outputPath string, v any) error {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal json: %w", err)
	}
	data = append(data, '\n')

	if err := os.WriteFile(outputPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}
