package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"sbpcli/internal/config"
	"sbpcli/internal/dataprocessing"
	"sbpcli/internal/files"
	"sbpcli/internal/infrastructure"
	"sbpcli/pkg/contracts/domain"
)

// catalogHeader is the column order of the workbook catalog artifact.
var catalogHeader = []string{
	"File",
	"SizeBytes",
	"Modified",
	"PeriodFrom",
	"PeriodTo",
	"Periods",
	"Records",
	"SkippedRows",
	"CoercedValues",
}

func main() {
	dir := flag.String("dir", "", "directory containing raw balance files (defaults to data/downloads relative to executable)")
	out := flag.String("out", "", "output csv file path (defaults to data/reports/catalog/workbooks.csv)")
	logLevel := flag.String("loglevel", "", "log level override: debug, info, warn or error")
	flag.Parse()

	// Initialize paths first to get default directories
	paths, err := config.GetPaths()
	if err != nil {
		slog.Error("Failed to initialize paths", "error", err)
		os.Exit(1)
	}

	// Use centralized directories as defaults if not specified
	if *dir == "" {
		*dir = paths.DownloadsDir
	}
	if *out == "" {
		*out = paths.CatalogCSV
	}

	// Ensure all required directories exist
	if err := paths.EnsureDirectories(); err != nil {
		slog.Error("Failed to create required directories", "error", err)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Warn("Failed to load config, using defaults", "error", err)
		cfg = &config.Config{
			Logging: config.LoggingConfig{
				Level:    "info",
				Format:   "json",
				Output:   "both",
				FilePath: paths.GetLogPath("indexcsv.log"),
			},
		}
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		slog.Warn("Failed to initialize logger, using default", "error", err)
		logger = slog.Default()
	}

	logger.Info("Starting workbook cataloguing",
		slog.String("input_dir", *dir),
		slog.String("output_file", *out),
		slog.String("executable_dir", paths.ExecutableDir))

	outDir := filepath.Dir(*out)
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		logger.Error("Cannot create output directory",
			slog.String("path", outDir),
			slog.String("error", err.Error()))
		os.Exit(1)
	}

	discovery := files.NewDiscovery(paths.ExecutableDir)
	sources, err := discovery.FindRawSources(*dir)
	if err != nil {
		logger.Error("Failed to read directory",
			slog.String("dir", *dir),
			slog.String("error", err.Error()))
		fmt.Fprintf(os.Stderr, "failed to read directory: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Found %d balance source files\n", len(sources))

	parser := dataprocessing.NewParser(logger)
	ctx := context.Background()

	rows := make([][]string, 0, len(sources))
	catalogued := 0
	failures := 0

	for i, fi := range sources {
		logger.Info("Cataloguing file",
			slog.Int("current", i+1),
			slog.Int("total", len(sources)),
			slog.String("filename", fi.Name))
		fmt.Printf("Cataloguing file %d of %d: %s\n", i+1, len(sources), fi.Name)

		report, err := parseSource(ctx, parser, fi.Path)
		if err != nil {
			logger.Warn("Error cataloguing file",
				slog.String("filename", fi.Name),
				slog.String("error", err.Error()))
			failures++
			continue
		}

		rows = append(rows, catalogRow(fi, report))
		catalogued++
	}

	if err := writeCatalog(*out, rows); err != nil {
		logger.Error("Failed to write catalog",
			slog.String("path", *out),
			slog.String("error", err.Error()))
		fmt.Fprintf(os.Stderr, "failed to write catalog: %v\n", err)
		os.Exit(1)
	}

	logger.Info("Workbook cataloguing completed",
		slog.Int("catalogued", catalogued),
		slog.Int("failures", failures),
		slog.String("output_path", *out))
	fmt.Printf("Catalog complete: %d files (%d failed)\n", catalogued, failures)

	if failures > 0 {
		os.Exit(1)
	}
}

// parseSource reads one raw file through the same parser the pipeline
// uses, dispatching on extension like the parse stage does.
func parseSource(ctx context.Context, parser *dataprocessing.Parser, path string) (*dataprocessing.WorkbookReport, error) {
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		return parser.ParseCSVFile(ctx, path)
	}
	return parser.ParseFile(ctx, path)
}

// catalogRow renders one catalog line for a parsed source file.
func catalogRow(fi files.FileInfo, report *dataprocessing.WorkbookReport) []string {
	from, to, distinct := periodCoverage(report.Records)
	return []string{
		fi.Name,
		strconv.FormatInt(fi.Size, 10),
		fi.ModTime.UTC().Format("2006-01-02T15:04:05Z"),
		from,
		to,
		strconv.Itoa(distinct),
		strconv.Itoa(len(report.Records)),
		strconv.Itoa(report.SkippedRows),
		strconv.Itoa(report.CoercedValues),
	}
}

// periodCoverage reports the earliest and latest (year, month) seen in
// the records plus the number of distinct months. Empty records yield
// empty bounds.
func periodCoverage(records []domain.BalanceRecord) (from, to string, distinct int) {
	type month struct{ year, month int }

	seen := make(map[month]struct{})
	var lo, hi month
	for _, r := range records {
		m := month{r.Year, r.Month}
		seen[m] = struct{}{}
		if lo.year == 0 || m.year < lo.year || (m.year == lo.year && m.month < lo.month) {
			lo = m
		}
		if m.year > hi.year || (m.year == hi.year && m.month > hi.month) {
			hi = m
		}
	}

	if len(seen) == 0 {
		return "", "", 0
	}
	return fmt.Sprintf("%04d-%02d", lo.year, lo.month),
		fmt.Sprintf("%04d-%02d", hi.year, hi.month),
		len(seen)
}

// writeCatalog writes the header plus rows to path, truncating any
// previous catalog.
func writeCatalog(path string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create catalog %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(catalogHeader); err != nil {
		return fmt.Errorf("write catalog header: %w", err)
	}
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			return fmt.Errorf("write catalog row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush catalog: %w", err)
	}

	return nil
}
