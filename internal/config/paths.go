package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// Paths contains all the application paths
// This is the single source of truth for ALL file paths in the application
type Paths struct {
	ExecutableDir string
	WebDir        string
	StaticDir     string
	DataDir       string
	DownloadsDir  string
	ReportsDir    string
	CacheDir      string
	LogsDir       string

	// Report subdirectories for organized structure
	CombinedReportsDir   string
	IndicatorsReportsDir string
	CatalogReportsDir    string

	// Well-known files (simplified paths in output directory)
	BalanceWorkbook   string
	BalanceRecordsCSV string
	IndicatorsCSV     string
	IndicatorsJSON    string
	RunMetadataJSON   string
	CatalogCSV        string
}

// GetPaths returns the application paths relative to the executable location
// All paths are ALWAYS relative to the executable directory, never the current working directory
func GetPaths() (*Paths, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("failed to get executable path: %v", err)
	}

	// Resolve symlinks to get the actual executable location
	exe, err = filepath.EvalSymlinks(exe)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve executable symlinks: %v", err)
	}

	exeDir := filepath.Dir(exe)

	// All paths are relative to the executable directory so the
	// application works the same from dev/ or dist/:
	// dist/
	//   ├── data/
	//   │   ├── downloads/     (xlsx workbooks from the fetcher)
	//   │   ├── reports/       (generated CSV/JSON artifacts)
	//   │   └── cache/         (temporary files)
	//   ├── logs/              (application logs)
	//   └── web/               (frontend assets)

	dataDir := filepath.Join(exeDir, DefaultDataDir)
	reportsDir := filepath.Join(dataDir, "reports")

	combinedReportsDir := filepath.Join(reportsDir, "combined")
	indicatorsReportsDir := filepath.Join(reportsDir, "indicators")
	catalogReportsDir := filepath.Join(reportsDir, "catalog")

	downloadsDir := filepath.Join(dataDir, "downloads")

	paths := &Paths{
		ExecutableDir: exeDir,
		DataDir:       dataDir,
		WebDir:        filepath.Join(exeDir, DefaultWebDir),
		StaticDir:     filepath.Join(exeDir, DefaultWebDir, "static"),
		DownloadsDir:  downloadsDir,
		ReportsDir:    reportsDir,
		CacheDir:      filepath.Join(dataDir, "cache"),
		LogsDir:       filepath.Join(exeDir, DefaultLogsDir),

		CombinedReportsDir:   combinedReportsDir,
		IndicatorsReportsDir: indicatorsReportsDir,
		CatalogReportsDir:    catalogReportsDir,

		// Well-known files. The workbook and indicator names match the
		// published SBP artifact names so existing tooling keeps working.
		BalanceWorkbook:   filepath.Join(downloadsDir, BalanceWorkbookName),
		BalanceRecordsCSV: filepath.Join(combinedReportsDir, "balance_records.csv"),
		IndicatorsCSV:     filepath.Join(indicatorsReportsDir, IndicatorsCSVName),
		IndicatorsJSON:    filepath.Join(indicatorsReportsDir, "financials_processed.json"),
		RunMetadataJSON:   filepath.Join(indicatorsReportsDir, "run_metadata.json"),
		CatalogCSV:        filepath.Join(catalogReportsDir, "workbooks.csv"),
	}

	return paths, nil
}

// EnsureDirectories creates all required directories if they don't exist
func (p *Paths) EnsureDirectories() error {
	// Base directories needed by all processes. Each process creates its
	// own report subdirectories as needed.
	directories := []string{
		p.DataDir,
		p.DownloadsDir,
		p.ReportsDir,
		p.CacheDir,
		p.LogsDir,
	}

	logger := slog.Default()

	for _, dir := range directories {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %v", dir, err)
		}

		if logger != nil {
			logger.Debug("Ensured directory exists",
				slog.String("directory", dir))
		}
	}

	return nil
}

// GetRelativePath returns a path relative to the executable directory
func (p *Paths) GetRelativePath(subpath string) string {
	return filepath.Join(p.ExecutableDir, subpath)
}

// FileExists checks if a file exists
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}

// GetWebFilePath returns the path to a web file
func (p *Paths) GetWebFilePath(filename string) string {
	return filepath.Join(p.WebDir, filename)
}

// GetStaticFilePath returns the path to a static file
func (p *Paths) GetStaticFilePath(filename string) string {
	return filepath.Join(p.StaticDir, filename)
}

// GetDownloadPath returns the path for a downloaded file
func (p *Paths) GetDownloadPath(filename string) string {
	return filepath.Join(p.DownloadsDir, filename)
}

// GetReportPath returns the path for a report file
func (p *Paths) GetReportPath(filename string) string {
	return filepath.Join(p.ReportsDir, filename)
}

// GetLogPath returns the path for a log file
func (p *Paths) GetLogPath(filename string) string {
	return filepath.Join(p.LogsDir, filename)
}

// GetCachePath returns the path for a cache file
func (p *Paths) GetCachePath(filename string) string {
	return filepath.Join(p.CacheDir, filename)
}

// GetWorkbookPath returns the path for a downloaded balance workbook
func (p *Paths) GetWorkbookPath(filename string) string {
	return filepath.Join(p.DownloadsDir, filename)
}

// GetWorkbookPathForPeriod returns the expected path for a monthly
// balance workbook (e.g. balance_2024_01.xlsx)
func (p *Paths) GetWorkbookPathForPeriod(year, month int) string {
	filename := fmt.Sprintf("balance_%04d_%02d.xlsx", year, month)
	return filepath.Join(p.DownloadsDir, filename)
}

// LogPathResolution logs detailed path resolution information for debugging
func (p *Paths) LogPathResolution() {
	logger := slog.Default()
	if logger == nil {
		return
	}

	logger.Info("Path resolution summary",
		slog.Group("directories",
			slog.String("executable", p.ExecutableDir),
			slog.String("data", p.DataDir),
			slog.String("downloads", p.DownloadsDir),
			slog.String("reports", p.ReportsDir),
			slog.String("cache", p.CacheDir),
			slog.String("logs", p.LogsDir),
			slog.String("web", p.WebDir),
		),
		slog.Group("report_files",
			slog.String("balance_records_csv", p.BalanceRecordsCSV),
			slog.String("indicators_csv", p.IndicatorsCSV),
			slog.String("indicators_json", p.IndicatorsJSON),
			slog.String("run_metadata_json", p.RunMetadataJSON),
			slog.String("catalog_csv", p.CatalogCSV),
		))
}
