package exporter

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sbpcli/internal/config"
	"sbpcli/pkg/contracts/domain"
)

func newTestExporter(t *testing.T) (*IndicatorsExporter, string) {
	t.Helper()

	tempDir := t.TempDir()
	exp := NewIndicatorsExporter(&config.Paths{
		ReportsDir: filepath.Join(tempDir, "reports"),
	}, nil)
	return exp, tempDir
}

func sampleMetrics() []domain.BankMetrics {
	return []domain.BankMetrics{
		{
			Bank:        "Banca Oficial",
			Year:        2024,
			Month:       1,
			NetIncome:   100,
			TotalAssets: 1000,
			Equity:      400,

			ROA:                 domain.Float(0.1),
			Leverage:            domain.Float(2.5),
			ROE:                 domain.Float(0.25),
			Classification:      domain.ClassificationHigh,
			LiquidityRatio:      domain.Float(0.5),
			DepositDiversity:    nil,
			DepositViewToPlazo:  domain.Float(0.6),
			CoverageRatio:       domain.Float(0.05),
			LeverageRatioExtra:  domain.Float(1.5),
			CapitalizationRatio: domain.Float(0.4),
			AdjustedROE:         domain.Float(0.26),
		},
		{
			// Zero-assets period: every dependent ratio is undefined.
			Bank:           "Banca Privada",
			Year:           2024,
			Month:          1,
			Classification: domain.ClassificationUnknown,
		},
	}
}

func TestIndicatorsExporter_ExportCSV(t *testing.T) {
	exp, tempDir := newTestExporter(t)
	outputPath := filepath.Join(tempDir, "reports", "financials_processed.csv")

	require.NoError(t, exp.ExportCSV(context.Background(), sampleMetrics(), outputPath))

	f, err := os.Open(outputPath)
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)

	// Header must match the contract order exactly.
	assert.Equal(t, domain.BankMetricsColumns, rows[0])

	first := rows[1]
	assert.Equal(t, "Banca Oficial", first[0])
	assert.Equal(t, "2024", first[1])
	assert.Equal(t, "1", first[2])
	assert.Equal(t, "100.000", first[3])
	assert.Equal(t, "1000.000", first[4])
	assert.Equal(t, "400.000", first[5])
	assert.Equal(t, "0.100000", first[6])
	assert.Equal(t, "2.500000", first[7])
	assert.Equal(t, "0.250000", first[8])
	assert.Equal(t, domain.ClassificationHigh, first[9])
	assert.Equal(t, "", first[11], "undefined deposit_diversity must be empty")

	second := rows[2]
	assert.Equal(t, "Banca Privada", second[0])
	assert.Equal(t, domain.ClassificationUnknown, second[9])
	for _, idx := range []int{6, 7, 8, 10, 11, 12, 13, 14, 15, 16} {
		assert.Equal(t, "", second[idx], "column %d should be empty for the all-undefined row", idx)
	}
}

func TestIndicatorsExporter_ExportCSV_NoBOM(t *testing.T) {
	exp, tempDir := newTestExporter(t)
	outputPath := filepath.Join(tempDir, "reports", "financials_processed.csv")

	require.NoError(t, exp.ExportCSV(context.Background(), sampleMetrics(), outputPath))

	content, err := os.ReadFile(outputPath)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(content), "Bank,"),
		"indicator artifact must start with the header, no BOM")
}

func TestIndicatorsExporter_ExportJSON(t *testing.T) {
	exp, tempDir := newTestExporter(t)
	outputPath := filepath.Join(tempDir, "reports", "financials_processed.json")

	require.NoError(t, exp.ExportJSON(context.Background(), sampleMetrics(), outputPath))

	data, err := os.ReadFile(outputPath)
	require.NoError(t, err)

	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Len(t, decoded, 2)

	assert.Equal(t, "Banca Oficial", decoded[0]["bank"])
	assert.InDelta(t, 0.25, decoded[0]["roe"].(float64), 1e-9)
	assert.Nil(t, decoded[0]["deposit_diversity"], "undefined ratio must be JSON null")
	assert.Nil(t, decoded[1]["roe"])
	assert.Equal(t, domain.ClassificationUnknown, decoded[1]["classification"])
}

func TestIndicatorsExporter_ExportRunMetadata(t *testing.T) {
	exp, tempDir := newTestExporter(t)
	outputPath := filepath.Join(tempDir, "reports", "run_metadata.json")

	meta := domain.RunMetadata{
		RunID:         "run-123",
		GeneratedAt:   time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
		SourceFiles:   []string{"balance_2024_01.xlsx"},
		RecordCount:   42,
		CoercedValues: 2,
		PeriodCount:   7,
		Thresholds: domain.ClassificationThresholds{
			Lower:       0.01,
			Upper:       0.05,
			SampleCount: 7,
		},
		NullRatios: map[string]int{"ROE": 1},
	}

	require.NoError(t, exp.ExportRunMetadata(context.Background(), meta, outputPath))

	data, err := os.ReadFile(outputPath)
	require.NoError(t, err)

	var decoded domain.RunMetadata
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, meta.RunID, decoded.RunID)
	assert.Equal(t, meta.RecordCount, decoded.RecordCount)
	assert.Equal(t, meta.Thresholds, decoded.Thresholds)
	assert.Equal(t, 1, decoded.NullRatios["ROE"])
}

func TestIndicatorsExporter_ExportBalanceRecordsCSV(t *testing.T) {
	exp, tempDir := newTestExporter(t)
	outputPath := filepath.Join(tempDir, "reports", "balance_records.csv")

	records := []domain.BalanceRecord{
		{BankGroupID: "Banca Oficial", Category: "Patrimonio", Indicator: "Capital", Year: 2024, Month: 1, Value: 1250.5},
		{BankGroupID: "Banca Oficial", Category: "Depositos", Indicator: "A Plazo", Year: 2024, Month: 1, ValueMissing: true},
	}

	require.NoError(t, exp.ExportBalanceRecordsCSV(context.Background(), records, outputPath))

	f, err := os.Open(outputPath)
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, []string{"Subgrupo", "Categoria", "Indicador", "Ano", "Mes", "Valor"}, rows[0])
	assert.Equal(t, []string{"Banca Oficial", "Patrimonio", "Capital", "2024", "1", "1250.5"}, rows[1])
	assert.Equal(t, "", rows[2][5], "missing value must round-trip as an empty cell")
}

func TestNullRatioCounts(t *testing.T) {
	counts := NullRatioCounts(sampleMetrics())

	assert.Equal(t, 1, counts["ROA"], "one row has undefined ROA")
	assert.Equal(t, 1, counts["ROE"])
	assert.Equal(t, 2, counts["deposit_diversity"], "undefined in both rows")
	assert.Equal(t, 1, counts["liquidity_ratio"])

	columns := SortedNullRatioColumns(counts)
	assert.IsIncreasing(t, columns)
}
