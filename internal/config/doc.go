// Package config provides centralized configuration management for the SBP
// Lens system. It handles loading configuration from multiple sources,
// validation, and provides a type-safe API for accessing configuration
// values throughout the application.
//
// # Configuration Sources
//
// Configuration is loaded from the following sources in order of precedence:
//
//	1. Environment variables (highest priority)
//	2. Configuration files (YAML)
//	3. Default values (lowest priority)
//
// # Environment Variables
//
// All environment variables follow the pattern SBP_* for namespacing:
//
//	SBP_SERVER_PORT=8080
//	SBP_LOGGING_LEVEL=info
//	SBP_PIPELINE_LOWER_QUANTILE=0.33
//	SBP_FETCHER_BASE_URL=https://www.superbancos.gob.pa
//
// # Path Management
//
// The package provides centralized path management through the Paths type,
// which handles all file system paths relative to the executable location:
//
//	paths, err := config.GetPaths()
//	workbookPath := paths.GetWorkbookPath("balance_2024_01.xlsx")
//	reportPath := paths.GetReportPath("financials_processed.csv")
//
// # Validation
//
// All configuration is validated at load time to ensure:
//
//	- Values are within acceptable ranges
//	- Quantile bounds are ordered and inside (0,1)
//	- File paths are accessible
//
// # Usage
//
// Load configuration at application startup:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
package config
