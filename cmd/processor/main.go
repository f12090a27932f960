package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"sbpcli/internal/config"
	"sbpcli/internal/dataprocessing"
	"sbpcli/internal/exporter"
	"sbpcli/internal/files"
	"sbpcli/internal/indicators"
	"sbpcli/internal/infrastructure"
	"sbpcli/internal/pipeline"
	"sbpcli/pkg/contracts/domain"
)

func main() {
	inDir := flag.String("in", "", "input directory for raw balance files (defaults to data/downloads relative to executable)")
	outDir := flag.String("out", "", "output directory for artifacts (defaults to data/reports relative to executable)")
	format := flag.String("format", pipeline.FormatBoth, "indicator artifact format: csv, json or both")
	logLevel := flag.String("loglevel", "", "log level override: debug, info, warn or error")
	flag.Parse()

	if !pipeline.ValidFormat(*format) {
		fmt.Fprintf(os.Stderr, "invalid -format %q: want csv, json or both\n", *format)
		os.Exit(1)
	}

	// Initialize paths first to get default directories
	paths, err := config.GetPaths()
	if err != nil {
		slog.Error("Failed to initialize paths", "error", err)
		os.Exit(1)
	}

	// Use centralized directories as defaults if not specified
	if *inDir == "" {
		*inDir = paths.DownloadsDir
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
				FilePath: paths.GetLogPath("process.log"),
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

	logger.Info("Starting balance-sheet processing",
		slog.String("input_dir", *inDir),
		slog.String("output_dir", *outDir),
		slog.String("format", *format),
		slog.String("executable_dir", paths.ExecutableDir))

	// Discover every workbook and CSV dump in the input directory,
	// sorted by name so monthly files feed the pipeline in period order.
	discovery := files.NewDiscovery(paths.ExecutableDir)
	sources, err := discovery.FindRawSources(*inDir)
	if err != nil {
		logger.Error("Failed to read input directory", slog.String("error", err.Error()))
		fmt.Fprintf(os.Stderr, "failed to read input directory: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Found %d balance source files\n", len(sources))
	if len(sources) == 0 {
		logger.Warn("No balance source files found",
			slog.String("input_dir", *inDir),
			slog.String("patterns", "*.xlsx, *.xls, *.csv"))
		fmt.Fprintf(os.Stderr, "no balance source files found in %s\n", *inDir)
		os.Exit(1)
	}

	opts := pipeline.DefaultExportOptions(paths)
	if *outDir != "" {
		if err := os.MkdirAll(*outDir, 0o755); err != nil {
			logger.Error("Error creating output directory", slog.String("error", err.Error()))
			os.Exit(1)
		}
		opts.IndicatorsCSV = filepath.Join(*outDir, "financials_processed.csv")
		opts.IndicatorsJSON = filepath.Join(*outDir, "financials_processed.json")
		opts.RunMetadataJSON = filepath.Join(*outDir, "run_metadata.json")
		opts.BalanceCSV = filepath.Join(*outDir, "balance_records.csv")
	}
	opts.Format = *format

	parser := dataprocessing.NewParser(logger)
	engine := indicators.NewEngine(logger, indicators.EngineConfig{
		LowerQuantile:      cfg.Pipeline.LowerQuantile,
		UpperQuantile:      cfg.Pipeline.UpperQuantile,
		MinQuantileSamples: cfg.Pipeline.MinQuantileSamples,
	})
	writer := exporter.NewIndicatorsExporter(paths, logger)

	manager := pipeline.NewManager(logger, pipeline.WithProgress(func(p pipeline.Progress) {
		printProgress(os.Stdout, p)
	}))
	manager.Register(
		pipeline.NewParseStage(parser, logger),
		pipeline.NewComputeStage(engine, logger),
		pipeline.NewExportStage(writer, opts, logger),
	)

	sourcePaths := make([]string, 0, len(sources))
	for _, f := range sources {
		sourcePaths = append(sourcePaths, f.Path)
	}

	runID := fmt.Sprintf("cli-%s", time.Now().UTC().Format("20060102-150405"))
	state := pipeline.NewState(runID, sourcePaths)

	start := time.Now()
	if err := manager.Run(context.Background(), state); err != nil {
		logger.Error("Pipeline run failed",
			slog.String("run_id", runID),
			slog.String("error", err.Error()))
		fmt.Fprintf(os.Stderr, "pipeline failed: %v\n", err)
		os.Exit(1)
	}

	logger.Info("Pipeline run completed",
		slog.String("run_id", runID),
		slog.Duration("duration", time.Since(start)),
		slog.Int("records", state.Count(pipeline.CountRecordsParsed)),
		slog.Int("periods", state.Count(pipeline.CountPeriodsComputed)))

	printSummary(os.Stdout, state)
}

// printProgress renders one pipeline progress event as a console line.
func printProgress(w io.Writer, p pipeline.Progress) {
	fmt.Fprintf(w, "[%3.0f%%] %-8s %s\n", p.Percent, p.StageID+":", p.Message)
}

// printSummary renders the run outcome: parse counters, classification
// counts per tier, the quantile thresholds and the artifact paths.
func printSummary(w io.Writer, state *pipeline.State) {
	result := state.Result()
	if result == nil {
		return
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Files parsed:     %d\n", state.Count(pipeline.CountFilesParsed))
	fmt.Fprintf(w, "Records parsed:   %d\n", state.Count(pipeline.CountRecordsParsed))
	fmt.Fprintf(w, "Rows skipped:     %d\n", state.Count(pipeline.CountRowsSkipped))
	fmt.Fprintf(w, "Values coerced:   %d\n", state.Count(pipeline.CountValuesCoerced))
	fmt.Fprintf(w, "Periods computed: %d\n", state.Count(pipeline.CountPeriodsComputed))

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Classification summary")
	fmt.Fprintln(w, "----------------------")
	counts := classificationCounts(result.Metrics)
	for _, label := range domain.ValidClassifications {
		fmt.Fprintf(w, "%-19s %6d\n", label, counts[label])
	}
	fmt.Fprintf(w, "%-19s %6d\n", "Total", len(result.Metrics))

	if result.Thresholds.Defaulted {
		fmt.Fprintf(w, "\nROE thresholds defaulted to 0 (%d samples)\n", result.Thresholds.SampleCount)
	} else {
		fmt.Fprintf(w, "\nROE thresholds: lower=%.6f upper=%.6f (%d samples)\n",
			result.Thresholds.Lower, result.Thresholds.Upper, result.Thresholds.SampleCount)
	}

	artifacts := state.Artifacts()
	if len(artifacts) == 0 {
		return
	}
	keys := make([]string, 0, len(artifacts))
	for key := range artifacts {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Artifacts")
	fmt.Fprintln(w, "---------")
	for _, key := range keys {
		fmt.Fprintf(w, "%-21s %s\n", key, artifacts[key])
	}
}

// classificationCounts tallies indicator rows per performance tier.
func classificationCounts(metrics []domain.BankMetrics) map[string]int {
	counts := make(map[string]int, len(domain.ValidClassifications))
	for _, m := range metrics {
		counts[m.Classification]++
	}
	return counts
}
