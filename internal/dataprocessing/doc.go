// Package dataprocessing reads SBP balance-sheet publications into
// long-format balance records. It handles both the xlsx workbooks the
// Superintendencia publishes and the CSV exports produced from them.
//
// # Architecture
//
// The package has two entry points sharing one row pipeline:
//
// 1. Parser.ParseFile: opens a workbook, locates the data sheet and
// header row, and streams rows into records
// 2. Parser.ParseCSVFile: same pipeline over a long-format CSV export
//
// # Usage
//
// Basic parsing example:
//
//	parser := dataprocessing.NewParser(logger)
//	report, err := parser.ParseFile(ctx, "balance_2024.xlsx")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	records := report.Records
//
// # Tolerance rules
//
// Source files are irregular, so the parser is deliberately lenient
// about layout and strict about meaning:
//
//   - Header row found by content, not position; accents and case do
//     not matter, column order does not matter
//   - Month cells accept numbers or Spanish/English month names
//   - Value cells accept thousands separators and accounting
//     parentheses; anything unparsable flags the record ValueMissing
//     instead of inventing a zero
//   - Rows without a complete bank/category/indicator/year/month key
//     (section totals, blank filler) are skipped and counted
//
// Structural failures, a workbook with no data sheet or no header row,
// return typed parsing errors.
package dataprocessing
