package dataprocessing

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"sbpcli/internal/errors"
)

// ParseCSVFile reads balance records from a long-format CSV export.
// The file must carry the same six columns as the workbooks; the header
// row is located with the same tolerant matching, so files saved from a
// workbook round-trip cleanly.
func (p *Parser) ParseCSVFile(ctx context.Context, filePath string) (*WorkbookReport, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, errors.NewParsingError(fmt.Sprintf("failed to open csv %s", filepath.Base(filePath)), err)
	}
	defer f.Close()

	report, err := p.parseCSV(ctx, f)
	if err != nil {
		return nil, err
	}
	report.SourceFile = filePath

	p.logger.InfoContext(ctx, "parsed balance csv",
		slog.String("file", filepath.Base(filePath)),
		slog.Int("record_count", len(report.Records)),
		slog.Int("skipped_rows", report.SkippedRows),
		slog.Int("coerced_values", report.CoercedValues))

	return report, nil
}

// parseCSV streams rows from r into a report. Ragged rows are tolerated
// because source exports sometimes drop trailing empty cells.
func (p *Parser) parseCSV(ctx context.Context, r io.Reader) (*WorkbookReport, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	report := &WorkbookReport{}
	headerFound := false
	var cols columnMap

	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.NewParsingError("failed to read csv row", err)
		}

		if !headerFound {
			if mapped, ok := detectHeader(row); ok {
				headerFound = true
				cols = mapped
			}
			continue
		}

		record, outcome := buildRecord(row, cols)
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

	if !headerFound {
		return nil, errors.NewParsingError("could not find header row with Subgrupo/Categoria/Indicador/Anio/Mes/Valor columns", nil)
	}
	if len(report.Records) == 0 {
		return nil, errors.NewParsingError("no balance records found after header row", nil)
	}
	return report, nil
}
