// Package files locates and maintains the on-disk data tree of the
// SBP balance-sheet pipeline.
//
// Discovery finds pipeline inputs: balance workbooks, CSV dumps, and
// files matching specific patterns. It also extracts the reporting
// period from monthly workbook names.
//
// Manager answers maintenance questions about the tree: whether a
// file or area exists, its metadata, and how many bytes the tree
// holds. Health and readiness checks are its main consumers.
//
// Example usage:
//
//	discovery := files.NewDiscovery("/path/to/base")
//	workbooks, err := discovery.FindWorkbookFiles("downloads")
//
//	manager := files.NewManager(paths, logger)
//	if manager.Exists("reports/indicators/indicators.csv") {
//		info, _ := manager.Stat("reports/indicators/indicators.csv")
//		fmt.Println(info.Size())
//	}
package files
