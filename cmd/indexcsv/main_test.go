package main

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"sbpcli/internal/dataprocessing"
	"sbpcli/internal/files"
	"sbpcli/pkg/contracts/domain"
)

// writeWorkbook saves a balance workbook with the given rows to a temp
// file and returns its path.
func writeWorkbook(t *testing.T, rows [][]interface{}) string {
	t.Helper()

	f := excelize.NewFile()
	f.SetSheetName(f.GetSheetName(0), "Balance")
	for i, row := range rows {
		for j, val := range row {
			col, err := excelize.ColumnNumberToName(j + 1)
			require.NoError(t, err)
			require.NoError(t, f.SetCellValue("Balance", col+strconv.Itoa(i+1), val))
		}
	}

	path := filepath.Join(t.TempDir(), "balance_2024_01.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func TestPeriodCoverage(t *testing.T) {
	tests := []struct {
		name         string
		records      []domain.BalanceRecord
		expectedFrom string
		expectedTo   string
		expectedN    int
	}{
		{
			name:         "no records",
			records:      nil,
			expectedFrom: "",
			expectedTo:   "",
			expectedN:    0,
		},
		{
			name: "single month",
			records: []domain.BalanceRecord{
				{Year: 2024, Month: 3},
				{Year: 2024, Month: 3},
			},
			expectedFrom: "2024-03",
			expectedTo:   "2024-03",
			expectedN:    1,
		},
		{
			name: "months across years",
			records: []domain.BalanceRecord{
				{Year: 2024, Month: 2},
				{Year: 2023, Month: 11},
				{Year: 2024, Month: 1},
				{Year: 2023, Month: 11},
			},
			expectedFrom: "2023-11",
			expectedTo:   "2024-02",
			expectedN:    3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			from, to, n := periodCoverage(tt.records)
			assert.Equal(t, tt.expectedFrom, from)
			assert.Equal(t, tt.expectedTo, to)
			assert.Equal(t, tt.expectedN, n)
		})
	}
}

func TestCatalogRow(t *testing.T) {
	fi := files.FileInfo{
		Name:    "balance_2024_01.xlsx",
		Path:    "/data/downloads/balance_2024_01.xlsx",
		Size:    2048,
		ModTime: time.Date(2024, 2, 10, 8, 30, 0, 0, time.UTC),
	}
	report := &dataprocessing.WorkbookReport{
		Records: []domain.BalanceRecord{
			{Year: 2024, Month: 1},
			{Year: 2024, Month: 1},
			{Year: 2024, Month: 2},
		},
		SkippedRows:   4,
		CoercedValues: 1,
	}

	row := catalogRow(fi, report)
	require.Len(t, row, len(catalogHeader))
	assert.Equal(t, "balance_2024_01.xlsx", row[0])
	assert.Equal(t, "2048", row[1])
	assert.Equal(t, "2024-02-10T08:30:00Z", row[2])
	assert.Equal(t, "2024-01", row[3])
	assert.Equal(t, "2024-02", row[4])
	assert.Equal(t, "2", row[5])
	assert.Equal(t, "3", row[6])
	assert.Equal(t, "4", row[7])
	assert.Equal(t, "1", row[8])
}

func TestWriteCatalog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog", "workbooks.csv")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))

	rows := [][]string{
		{"balance_2024_01.xlsx", "2048", "2024-02-10T08:30:00Z", "2024-01", "2024-01", "1", "10", "2", "0"},
		{"balance_2024_02.xlsx", "4096", "2024-03-10T08:30:00Z", "2024-02", "2024-02", "1", "12", "0", "1"},
	}
	require.NoError(t, writeCatalog(path, rows))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	all, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, catalogHeader, all[0])
	assert.Equal(t, rows[0], all[1])
	assert.Equal(t, rows[1], all[2])
}

func TestWriteCatalogEmptyRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "workbooks.csv")
	require.NoError(t, writeCatalog(path, nil))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	all, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, all, 1, "header only")
	assert.Equal(t, catalogHeader, all[0])
}

func TestParseSourceWorkbook(t *testing.T) {
	path := writeWorkbook(t, [][]interface{}{
		{"Subgrupo", "Categoría", "Indicador", "Año", "Mes", "Valor"},
		{"Banca Oficial", "Patrimonio", "Utilidad De Periodo", 2024, "Enero", 100},
		{"Banca Oficial", "Patrimonio", "Pasivo Y Patrimonio", 2024, "Enero", 1000},
	})

	parser := dataprocessing.NewParser(nil)
	report, err := parseSource(context.Background(), parser, path)
	require.NoError(t, err)
	assert.Len(t, report.Records, 2)
}

func TestParseSourceCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "balance_dump.csv")
	content := "Subgrupo,Categoría,Indicador,Año,Mes,Valor\n" +
		"Banca Oficial,Patrimonio,Utilidad De Periodo,2024,Enero,100\n" +
		"Banca Oficial,Patrimonio,Pasivo Y Patrimonio,2024,Febrero,1000\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	parser := dataprocessing.NewParser(nil)
	report, err := parseSource(context.Background(), parser, path)
	require.NoError(t, err)
	require.Len(t, report.Records, 2)

	from, to, n := periodCoverage(report.Records)
	assert.Equal(t, "2024-01", from)
	assert.Equal(t, "2024-02", to)
	assert.Equal(t, 2, n)
}
