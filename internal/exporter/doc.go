// Package exporter writes the SBP Lens output artifacts.
//
// This package contains two main components:
//
// CSVWriter: Core CSV writing functionality with support for headers,
// streaming, appending, and UTF-8 BOM for Excel compatibility.
//
// IndicatorsExporter: Writes the derived indicator table (CSV with the
// contract column order plus a JSON mirror), the raw combined
// balance-record CSV, and the run metadata document.
//
// Example usage:
//
//	exp := exporter.NewIndicatorsExporter(paths, logger)
//
//	// Export the indicator table
//	err := exp.ExportCSV(ctx, metrics, paths.IndicatorsCSV)
//
//	// Export run provenance
//	err = exp.ExportRunMetadata(ctx, meta, paths.RunMetadataJSON)
//
// Undefined ratios are preserved through every format: empty cells in
// CSV, null in JSON. They are never written as zero.
package exporter
