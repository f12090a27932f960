package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"sbpcli/internal/config"
	"sbpcli/internal/dataprocessing"
	apierrors "sbpcli/internal/errors"
	"sbpcli/internal/exporter"
	"sbpcli/internal/indicators"
	"sbpcli/pkg/contracts/domain"
)

// Export format selectors for the export stage and the processor CLI.
const (
	FormatCSV  = "csv"
	FormatJSON = "json"
	FormatBoth = "both"
)

// ValidFormat reports whether format names a supported artifact
// format.
func ValidFormat(format string) bool {
	switch format {
	case FormatCSV, FormatJSON, FormatBoth:
		return true
	}
	return false
}

// RecordParser reads one raw source file into balance records.
// *dataprocessing.Parser is the production implementation.
type RecordParser interface {
	ParseFile(ctx context.Context, path string) (*dataprocessing.WorkbookReport, error)
	ParseCSVFile(ctx context.Context, path string) (*dataprocessing.WorkbookReport, error)
}

// IndicatorEngine derives the indicator table from balance records.
type IndicatorEngine interface {
	ComputeFromRecords(ctx context.Context, records []domain.BalanceRecord) (*indicators.Result, error)
}

// ArtifactWriter persists derived metrics and run metadata.
// *exporter.IndicatorsExporter is the production implementation.
type ArtifactWriter interface {
	ExportCSV(ctx context.Context, metrics []domain.BankMetrics, outputPath string) error
	ExportJSON(ctx context.Context, metrics []domain.BankMetrics, outputPath string) error
	ExportRunMetadata(ctx context.Context, meta domain.RunMetadata, outputPath string) error
	ExportBalanceRecordsCSV(ctx context.Context, records []domain.BalanceRecord, outputPath string) error
}

// ParseStage reads every source file in the state into balance
// records. Workbooks and long-format CSVs are both accepted; the
// extension selects the reader.
type ParseStage struct {
	parser RecordParser
	logger *slog.Logger
}

// NewParseStage creates the ingestion stage.
func NewParseStage(parser RecordParser, logger *slog.Logger) *ParseStage {
	if logger == nil {
		logger = slog.Default()
	}
	return &ParseStage{parser: parser, logger: logger}
}

// ID implements Stage.
func (s *ParseStage) ID() string { return StageIDParse }

// Name implements Stage.
func (s *ParseStage) Name() string { return StageNameParse }

// Timeout bounds a full parse pass across every discovered source file.
func (s *ParseStage) Timeout() time.Duration { return config.ParseStageTimeout }

// Execute parses every source file and stores the combined record
// slice. Ingest diagnostics (skipped rows, coerced values) accumulate
// into the state counters.
func (s *ParseStage) Execute(ctx context.Context, state *State) error {
	sources := state.Sources()
	if len(sources) == 0 {
		return apierrors.NewNotFoundError("raw balance files")
	}

	var records []domain.BalanceRecord
	for i, source := range sources {
		if err := ctx.Err(); err != nil {
			return err
		}

		report, err := s.parseOne(ctx, source)
		if err != nil {
			return err
		}

		records = append(records, report.Records...)
		state.AddCount(CountFilesParsed, 1)
		state.AddCount(CountRecordsParsed, len(report.Records))
		state.AddCount(CountRowsSkipped, report.SkippedRows)
		state.AddCount(CountValuesCoerced, report.CoercedValues)

		state.Report(float64(i+1)/float64(len(sources))*100,
			fmt.Sprintf("parsed %s (%d records)", filepath.Base(source), len(report.Records)))
	}

	if len(records) == 0 {
		return apierrors.NewParsingError("source files contained no balance records", nil)
	}

	state.SetRecords(records)
	s.logger.InfoContext(ctx, "parse_stage_completed",
		slog.Int("files", len(sources)),
		slog.Int("records", len(records)),
		slog.Int("rows_skipped", state.Count(CountRowsSkipped)),
		slog.Int("values_coerced", state.Count(CountValuesCoerced)))

	return nil
}

func (s *ParseStage) parseOne(ctx context.Context, path string) (*dataprocessing.WorkbookReport, error) {
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		return s.parser.ParseCSVFile(ctx, path)
	}
	return s.parser.ParseFile(ctx, path)
}

// ComputeStage derives the indicator table from the parsed records.
type ComputeStage struct {
	engine IndicatorEngine
	logger *slog.Logger
}

// NewComputeStage creates the derivation stage.
func NewComputeStage(engine IndicatorEngine, logger *slog.Logger) *ComputeStage {
	if logger == nil {
		logger = slog.Default()
	}
	return &ComputeStage{engine: engine, logger: logger}
}

// ID implements Stage.
func (s *ComputeStage) ID() string { return StageIDCompute }

// Name implements Stage.
func (s *ComputeStage) Name() string { return StageNameCompute }

// Timeout bounds the derivation pass.
func (s *ComputeStage) Timeout() time.Duration { return config.ComputeStageTimeout }

// Execute runs the engine over the state's records and stores the
// result.
func (s *ComputeStage) Execute(ctx context.Context, state *State) error {
	records := state.Records()
	if len(records) == 0 {
		return apierrors.NewAppValidationError("no balance records available for derivation", nil)
	}

	state.Report(10, fmt.Sprintf("deriving indicators from %d records", len(records)))

	result, err := s.engine.ComputeFromRecords(ctx, records)
	if err != nil {
		return err
	}

	state.SetResult(result)
	state.AddCount(CountPeriodsComputed, len(result.Metrics))

	state.Report(100, fmt.Sprintf("derived %d period rows", len(result.Metrics)))
	return nil
}

// ExportOptions selects which artifacts the export stage writes and
// where. Empty paths skip that artifact; an empty Format means both.
type ExportOptions struct {
	Format          string
	IndicatorsCSV   string
	IndicatorsJSON  string
	RunMetadataJSON string
	BalanceCSV      string
}

// DefaultExportOptions writes every artifact to its well-known path.
func DefaultExportOptions(paths *config.Paths) ExportOptions {
	return ExportOptions{
		Format:          FormatBoth,
		IndicatorsCSV:   paths.IndicatorsCSV,
		IndicatorsJSON:  paths.IndicatorsJSON,
		RunMetadataJSON: paths.RunMetadataJSON,
		BalanceCSV:      paths.BalanceRecordsCSV,
	}
}

// ExportStage writes the derived metrics, the flattened record dump
// and the run metadata to disk.
type ExportStage struct {
	writer ArtifactWriter
	opts   ExportOptions
	logger *slog.Logger
}

// NewExportStage creates the artifact stage.
func NewExportStage(writer ArtifactWriter, opts ExportOptions, logger *slog.Logger) *ExportStage {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Format == "" {
		opts.Format = FormatBoth
	}
	return &ExportStage{writer: writer, opts: opts, logger: logger}
}

// ID implements Stage.
func (s *ExportStage) ID() string { return StageIDExport }

// Name implements Stage.
func (s *ExportStage) Name() string { return StageNameExport }

// Timeout bounds the artifact writes.
func (s *ExportStage) Timeout() time.Duration { return config.ExportStageTimeout }

// Execute writes the selected artifacts and records their paths in the
// state. Run metadata is always written when a path is configured,
// regardless of the indicator format.
func (s *ExportStage) Execute(ctx context.Context, state *State) error {
	result := state.Result()
	if result == nil {
		return apierrors.NewAppValidationError("no derived metrics available for export", nil)
	}

	writeCSV := s.opts.Format == FormatCSV || s.opts.Format == FormatBoth
	writeJSON := s.opts.Format == FormatJSON || s.opts.Format == FormatBoth

	if writeCSV && s.opts.IndicatorsCSV != "" {
		if err := s.writer.ExportCSV(ctx, result.Metrics, s.opts.IndicatorsCSV); err != nil {
			return err
		}
		state.SetArtifact(ArtifactIndicatorsCSV, s.opts.IndicatorsCSV)
		state.Report(25, "wrote "+filepath.Base(s.opts.IndicatorsCSV))
	}

	if writeJSON && s.opts.IndicatorsJSON != "" {
		if err := s.writer.ExportJSON(ctx, result.Metrics, s.opts.IndicatorsJSON); err != nil {
			return err
		}
		state.SetArtifact(ArtifactIndicatorsJSON, s.opts.IndicatorsJSON)
		state.Report(50, "wrote "+filepath.Base(s.opts.IndicatorsJSON))
	}

	if s.opts.BalanceCSV != "" {
		if err := s.writer.ExportBalanceRecordsCSV(ctx, state.Records(), s.opts.BalanceCSV); err != nil {
			return err
		}
		state.SetArtifact(ArtifactBalanceCSV, s.opts.BalanceCSV)
		state.Report(75, "wrote "+filepath.Base(s.opts.BalanceCSV))
	}

	nullCounts := exporter.NullRatioCounts(result.Metrics)
	for _, n := range nullCounts {
		state.AddCount(CountNullRatios, n)
	}

	if s.opts.RunMetadataJSON != "" {
		meta := BuildRunMetadata(state, result, nullCounts)
		if err := s.writer.ExportRunMetadata(ctx, meta, s.opts.RunMetadataJSON); err != nil {
			return err
		}
		state.SetArtifact(ArtifactRunMetadata, s.opts.RunMetadataJSON)
	}

	s.logger.InfoContext(ctx, "export_stage_completed",
		slog.String("format", s.opts.Format),
		slog.Int("artifacts", len(state.Artifacts())))

	return nil
}

// BuildRunMetadata assembles the provenance record written alongside
// the indicator artifacts.
func BuildRunMetadata(state *State, result *indicators.Result, nullCounts map[string]int) domain.RunMetadata {
	sources := state.Sources()
	names := make([]string, len(sources))
	for i, source := range sources {
		names[i] = filepath.Base(source)
	}

	return domain.RunMetadata{
		RunID:         state.RunID(),
		GeneratedAt:   time.Now().UTC(),
		SourceFiles:   names,
		RecordCount:   len(state.Records()),
		CoercedValues: result.CoercedValues,
		PeriodCount:   len(result.Metrics),
		Thresholds:    result.Thresholds,
		NullRatios:    nullCounts,
	}
}
