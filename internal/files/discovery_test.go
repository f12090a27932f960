package files

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDiscovery(t *testing.T) {
	basePath := "/test/base"
	discovery := NewDiscovery(basePath)
	
	assert.NotNil(t, discovery)
	assert.Equal(t, basePath, discovery.basePath)
}

func TestFindExcelFiles(t *testing.T) {
	tests := []struct {
		name          string
		files         []string
		expectedCount int
		description   string
	}{
		{
			name:          "only Excel files",
			files:         []string{"report1.xlsx", "report2.xls", "report3.XLSX"},
			expectedCount: 3,
			description:   "Should find all Excel files regardless of case",
		},
		{
			name:          "mixed file types",
			files:         []string{"report.xlsx", "data.csv", "doc.pdf", "sheet.xls"},
			expectedCount: 2,
			description:   "Should find only Excel files",
		},
		{
			name:          "no Excel files",
			files:         []string{"data.csv", "doc.pdf", "readme.txt"},
			expectedCount: 0,
			description:   "Should find no Excel files",
		},
		{
			name:          "empty directory",
			files:         []string{},
			expectedCount: 0,
			description:   "Should handle empty directory",
		},
		{
			name:          "Excel files with various names",
			files:         []string{"2025_01_15_report.xlsx", "daily-report.xls", "index.XLSX"},
			expectedCount: 3,
			description:   "Should find Excel files with various naming patterns",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpDir := t.TempDir()
			discovery := NewDiscovery(tmpDir)

			testDir := "excel_test"
			fullTestDir := filepath.Join(tmpDir, testDir)
			err := os.MkdirAll(fullTestDir, 0755)
			require.NoError(t, err)

			// Create test files with different modification times
			for i, filename := range tt.files {
				filePath := filepath.Join(fullTestDir, filename)
				err := os.WriteFile(filePath, []byte("test content"), 0644)
				require.NoError(t, err)

				// Set different modification times to test sorting
				modTime := time.Now().Add(time.Duration(i) * time.Minute)
				err = os.Chtimes(filePath, modTime, modTime)
				require.NoError(t, err)
			}

			files, err := discovery.FindExcelFiles(testDir)
			assert.NoError(t, err, tt.description)
			assert.Equal(t, tt.expectedCount, len(files), tt.description)

			// Verify files are sorted by modification time (oldest first)
			if len(files) > 1 {
				for i := 1; i < len(files); i++ {
					assert.True(t, files[i-1].ModTime.Before(files[i].ModTime) ||
						files[i-1].ModTime.Equal(files[i].ModTime),
						"Files should be sorted by modification time")
				}
			}

			// Verify file properties
			for _, file := range files {
				assert.NotEmpty(t, file.Name)
				assert.NotEmpty(t, file.Path)
				assert.False(t, file.IsDir)
				assert.Greater(t, file.Size, int64(0))
				assert.False(t, file.ModTime.IsZero())
			}
		})
	}
}

func TestFindWorkbookFiles(t *testing.T) {
	tests := []struct {
		name            string
		files           []string
		expectedPeriods []string
		description     string
	}{
		{
			name: "valid monthly workbooks",
			files: []string{
				"balance_2024_01.xlsx",
				"balance_2024_02.xlsx",
				"balance_2024_03.xlsx",
			},
			expectedPeriods: []string{"2024_01", "2024_02", "2024_03"},
			description:     "Should find and map monthly workbooks by period",
		},
		{
			name: "mixed workbook files",
			files: []string{
				"balance_2024_01.xlsx",
				"SBP_Panama_Balance_de_Bancos.xlsx",
				"balance_2024_02.xlsx",
				"notes.xlsx",
			},
			expectedPeriods: []string{"2024_01", "2024_02"},
			description:     "Should skip workbooks without a period in the name",
		},
		{
			name:            "invalid periods ignored",
			files:           []string{"balance_2024_13.xlsx", "balance_1850_01.xlsx", "balance_abc_01.xlsx"},
			expectedPeriods: []string{},
			description:     "Should reject out-of-range years and months",
		},
		{
			name:            "empty directory",
			files:           []string{},
			expectedPeriods: []string{},
			description:     "Should handle empty directory",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpDir := t.TempDir()
			discovery := NewDiscovery(tmpDir)

			testDir := "workbook_test"
			fullTestDir := filepath.Join(tmpDir, testDir)
			err := os.MkdirAll(fullTestDir, 0755)
			require.NoError(t, err)

			// Create test files
			for _, filename := range tt.files {
				filePath := filepath.Join(fullTestDir, filename)
				err := os.WriteFile(filePath, []byte("workbook content"), 0644)
				require.NoError(t, err)
			}

			workbooks, err := discovery.FindWorkbookFiles(testDir)
			assert.NoError(t, err, tt.description)
			assert.Equal(t, len(tt.expectedPeriods), len(workbooks), tt.description)

			// Verify expected periods are found
			for _, expectedPeriod := range tt.expectedPeriods {
				file, exists := workbooks[expectedPeriod]
				assert.True(t, exists, "Expected period %s should be found", expectedPeriod)
				assert.NotEmpty(t, file.Name)
				assert.NotEmpty(t, file.Path)
				assert.False(t, file.IsDir)
			}
		})
	}
}

func TestWorkbookPeriod(t *testing.T) {
	tests := []struct {
		name          string
		filename      string
		expectedYear  int
		expectedMonth int
		expectedOK    bool
	}{
		{
			name:          "standard monthly workbook",
			filename:      "balance_2024_01.xlsx",
			expectedYear:  2024,
			expectedMonth: 1,
			expectedOK:    true,
		},
		{
			name:          "uppercase extension",
			filename:      "Balance_2023_12.XLSX",
			expectedYear:  2023,
			expectedMonth: 12,
			expectedOK:    true,
		},
		{
			name:          "legacy xls extension",
			filename:      "balance_2019_06.xls",
			expectedYear:  2019,
			expectedMonth: 6,
			expectedOK:    true,
		},
		{
			name:       "consolidated workbook",
			filename:   "SBP_Panama_Balance_de_Bancos.xlsx",
			expectedOK: false,
		},
		{
			name:       "month out of range",
			filename:   "balance_2024_13.xlsx",
			expectedOK: false,
		},
		{
			name:       "year out of range",
			filename:   "balance_1850_01.xlsx",
			expectedOK: false,
		},
		{
			name:       "non-numeric parts",
			filename:   "balance_year_month.xlsx",
			expectedOK: false,
		},
		{
			name:       "missing month",
			filename:   "balance_2024.xlsx",
			expectedOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			year, month, ok := WorkbookPeriod(tt.filename)
			assert.Equal(t, tt.expectedOK, ok)
			if tt.expectedOK {
				assert.Equal(t, tt.expectedYear, year)
				assert.Equal(t, tt.expectedMonth, month)
			}
		})
	}
}

func TestFindRawSources(t *testing.T) {
	tests := []struct {
		name          string
		files         []string
		expectedNames []string
		description   string
	}{
		{
			name: "workbooks and CSV dumps together",
			files: []string{
				"balance_2024_02.xlsx",
				"balance_2024_01.xlsx",
				"legacy_export.csv",
			},
			expectedNames: []string{"balance_2024_01.xlsx", "balance_2024_02.xlsx", "legacy_export.csv"},
			description:   "Should return all source files sorted by name",
		},
		{
			name: "non-source files skipped",
			files: []string{
				"balance_2024_01.xlsx",
				"readme.txt",
				"archive.zip",
			},
			expectedNames: []string{"balance_2024_01.xlsx"},
			description:   "Should ignore files that are neither workbooks nor CSVs",
		},
		{
			name:          "empty directory",
			files:         []string{},
			expectedNames: []string{},
			description:   "Should handle empty directory",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpDir := t.TempDir()
			discovery := NewDiscovery(tmpDir)

			testDir := "sources_test"
			fullTestDir := filepath.Join(tmpDir, testDir)
			err := os.MkdirAll(fullTestDir, 0755)
			require.NoError(t, err)

			for _, filename := range tt.files {
				filePath := filepath.Join(fullTestDir, filename)
				err := os.WriteFile(filePath, []byte("content"), 0644)
				require.NoError(t, err)
			}

			sources, err := discovery.FindRawSources(testDir)
			assert.NoError(t, err, tt.description)
			require.Equal(t, len(tt.expectedNames), len(sources), tt.description)

			for i, expectedName := range tt.expectedNames {
				assert.Equal(t, expectedName, sources[i].Name)
			}
		})
	}
}

func TestGetLatestFile(t *testing.T) {
	tests := []struct {
		name        string
		files       []FileInfo
		expectFound bool
		expectedIdx int
		description string
	}{
		{
			name: "multiple files with different times",
			files: []FileInfo{
				{Name: "old.txt", ModTime: time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)},
				{Name: "latest.txt", ModTime: time.Date(2025, 1, 12, 0, 0, 0, 0, time.UTC)},
				{Name: "middle.txt", ModTime: time.Date(2025, 1, 11, 0, 0, 0, 0, time.UTC)},
			},
			expectFound: true,
			expectedIdx: 1, // latest.txt
			description: "Should return file with latest modification time",
		},
		{
			name: "single file",
			files: []FileInfo{
				{Name: "only.txt", ModTime: time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)},
			},
			expectFound: true,
			expectedIdx: 0,
			description: "Should return single file",
		},
		{
			name:        "empty slice",
			files:       []FileInfo{},
			expectFound: false,
			expectedIdx: -1,
			description: "Should return false for empty slice",
		},
		{
			name: "files with same time",
			files: []FileInfo{
				{Name: "file1.txt", ModTime: time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)},
				{Name: "file2.txt", ModTime: time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)},
			},
			expectFound: true,
			expectedIdx: 0, // Should return first one
			description: "Should return first file when times are equal",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			latest, found := GetLatestFile(tt.files)
			
			assert.Equal(t, tt.expectFound, found, tt.description)
			
			if tt.expectFound {
				expectedFile := tt.files[tt.expectedIdx]
				assert.Equal(t, expectedFile.Name, latest.Name)
				assert.Equal(t, expectedFile.ModTime, latest.ModTime)
			}
		})
	}
}

func TestAbsolutePaths(t *testing.T) {
	tmpDir := t.TempDir()
	discovery := NewDiscovery("/base/path") // Different from tmpDir

	// Create test directory with absolute path
	testDir := filepath.Join(tmpDir, "absolute_test")
	err := os.MkdirAll(testDir, 0755)
	require.NoError(t, err)

	// Create test files
	testFiles := []string{"test1.xlsx", "test2.csv"}
	for _, filename := range testFiles {
		filePath := filepath.Join(testDir, filename)
		err := os.WriteFile(filePath, []byte("test content"), 0644)
		require.NoError(t, err)
	}

	t.Run("FindExcelFiles with absolute path", func(t *testing.T) {
		files, err := discovery.FindExcelFiles(testDir) // Using absolute path
		assert.NoError(t, err)
		assert.Equal(t, 1, len(files)) // Only .xlsx files
	})

	t.Run("FindRawSources with absolute path", func(t *testing.T) {
		files, err := discovery.FindRawSources(testDir) // Using absolute path
		assert.NoError(t, err)
		assert.Equal(t, 2, len(files)) // Workbook and CSV
	})
}

func TestErrorHandling(t *testing.T) {
	discovery := NewDiscovery("/base/path")

	t.Run("non-existent directory", func(t *testing.T) {
		_, err := discovery.FindExcelFiles("/non/existent/directory")
		assert.Error(t, err)
	})

	t.Run("non-existent sources directory", func(t *testing.T) {
		_, err := discovery.FindRawSources("/non/existent/directory")
		assert.Error(t, err)
	})
}

// Benchmark file discovery operations
func BenchmarkFindExcelFiles(b *testing.B) {
	tmpDir := b.TempDir()
	discovery := NewDiscovery(tmpDir)

	// Create many test files
	testDir := filepath.Join(tmpDir, "benchmark_test")
	os.MkdirAll(testDir, 0755)

	for i := 0; i < 100; i++ {
		filename := filepath.Join(testDir, fmt.Sprintf("file_%03d.xlsx", i))
		os.WriteFile(filename, []byte("test"), 0644)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = discovery.FindExcelFiles("benchmark_test")
	}
}