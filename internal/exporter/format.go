package exporter

import (
	"fmt"
	"strconv"
)

// formatMonetary formats a balance amount for CSV output with exactly
// 3 decimal places, matching the precision of the source workbooks.
func formatMonetary(f float64) string {
	return fmt.Sprintf("%.3f", f)
}

// formatRatio formats a nullable ratio for CSV output. An undefined
// ratio becomes an empty cell, never a zero.
func formatRatio(r *float64) string {
	if r == nil {
		return ""
	}
	return fmt.Sprintf("%.6f", *r)
}

// formatValue formats a raw record value with shortest round-trip
// precision so re-reading the CSV reproduces the exact float.
func formatValue(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// formatInt formats an int value for CSV output
func formatInt(i int) string {
	return strconv.Itoa(i)
}
